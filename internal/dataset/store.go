// Package dataset provides index-addressed sample stores and the readers
// that populate them from CSV tables, synthetic generators and tar shards.
package dataset

import (
	"fmt"

	"github.com/pkg/errors"

	"finetune-forge/internal/tensor"
)

// ErrOutOfRange is matched by every IndexError.
var ErrOutOfRange = errors.New("dataset: index out of range")

// IndexError reports access outside [0, Len).
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("dataset: index %d out of range [0,%d)", e.Index, e.Len)
}

func (e *IndexError) Unwrap() error { return ErrOutOfRange }

// Sample is one (features, label) record.
type Sample struct {
	Features tensor.Tensor
	Label    int
}

// Store is a fixed-length collection of samples addressed by position.
//
// Len must be O(1) and never change. Get must be deterministic and must not
// mutate the store; callers treat the returned features as read-only.
type Store interface {
	Len() int
	Get(i int) (Sample, error)
}

func checkIndex(i, n int) error {
	if i < 0 || i >= n {
		return &IndexError{Index: i, Len: n}
	}
	return nil
}
