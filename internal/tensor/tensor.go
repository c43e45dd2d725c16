package tensor

import (
	"errors"
	"fmt"
	"slices"
)

// ErrShapeMismatch is matched by every ShapeError.
var ErrShapeMismatch = errors.New("tensor: shape mismatch")

// ShapeError reports a tensor whose shape differs from the one required.
type ShapeError struct {
	Expected []int
	Actual   []int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("tensor: shape mismatch: expected %v, got %v", e.Expected, e.Actual)
}

func (e *ShapeError) Unwrap() error { return ErrShapeMismatch }

// Tensor is a dense row-major array of float64 values.
type Tensor struct {
	Shape []int
	Data  []float64
}

// New allocates a zero-filled tensor of the given shape.
func New(shape ...int) Tensor {
	return Tensor{Shape: slices.Clone(shape), Data: make([]float64, Size(shape))}
}

// FromData wraps data in a tensor, failing if the shape does not cover it exactly.
func FromData(data []float64, shape ...int) (Tensor, error) {
	if Size(shape) != len(data) {
		return Tensor{}, &ShapeError{Expected: slices.Clone(shape), Actual: []int{len(data)}}
	}
	return Tensor{Shape: slices.Clone(shape), Data: data}, nil
}

// Size returns the number of elements covered by shape.
func Size(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Len returns the number of elements.
func (t Tensor) Len() int { return len(t.Data) }

// Dims returns the number of axes.
func (t Tensor) Dims() int { return len(t.Shape) }

// At returns the element at the given multi-dimensional index.
func (t Tensor) At(idx ...int) float64 {
	if len(idx) != len(t.Shape) {
		panic(fmt.Sprintf("tensor: At called with %d indices on %d-d tensor", len(idx), len(t.Shape)))
	}
	off := 0
	for i, ix := range idx {
		if ix < 0 || ix >= t.Shape[i] {
			panic(fmt.Sprintf("tensor: index %d out of range on axis %d (size %d)", ix, i, t.Shape[i]))
		}
		off = off*t.Shape[i] + ix
	}
	return t.Data[off]
}

// Row returns a view of the i-th slice along the leading axis.
func (t Tensor) Row(i int) Tensor {
	if len(t.Shape) == 0 {
		panic("tensor: Row on scalar tensor")
	}
	inner := t.Shape[1:]
	n := Size(inner)
	return Tensor{Shape: inner, Data: t.Data[i*n : (i+1)*n]}
}

// Clone returns a deep copy.
func (t Tensor) Clone() Tensor {
	return Tensor{Shape: slices.Clone(t.Shape), Data: slices.Clone(t.Data)}
}

// SameShape reports whether t and o have identical shapes.
func (t Tensor) SameShape(o Tensor) bool {
	return slices.Equal(t.Shape, o.Shape)
}

// Equal reports whether t and o have the same shape and elements.
func (t Tensor) Equal(o Tensor) bool {
	return t.SameShape(o) && slices.Equal(t.Data, o.Data)
}

// Stack joins equally shaped tensors along a new leading axis.
func Stack(ts []Tensor) (Tensor, error) {
	if len(ts) == 0 {
		return Tensor{}, errors.New("tensor: stack of zero tensors")
	}
	first := ts[0]
	out := New(append([]int{len(ts)}, first.Shape...)...)
	n := first.Len()
	for i, t := range ts {
		if !t.SameShape(first) {
			return Tensor{}, fmt.Errorf("stack element %d: %w", i, &ShapeError{Expected: first.Shape, Actual: t.Shape})
		}
		copy(out.Data[i*n:], t.Data)
	}
	return out, nil
}
