package model

import (
	"fmt"
	"math"
	"math/rand"
	"slices"

	"gonum.org/v1/gonum/mat"

	"finetune-forge/internal/tensor"
)

// BackboneConfig describes the frozen feature extractor.
type BackboneConfig struct {
	Channels int
	Height   int
	Width    int
	// Grid is the side of the adaptive average pool output.
	Grid int
	// Dim is the width of the extracted feature vector.
	Dim  int
	Seed int64
}

// Backbone pools CHW images onto a Grid×Grid lattice and projects the result
// through fixed weights followed by ReLU. Its weights never change after
// construction.
type Backbone struct {
	cfg  BackboneConfig
	proj *mat.Dense
}

// NewBackbone builds a backbone with seeded He-initialised weights.
func NewBackbone(cfg BackboneConfig) (*Backbone, error) {
	switch {
	case cfg.Channels <= 0, cfg.Height <= 0, cfg.Width <= 0:
		return nil, fmt.Errorf("backbone: invalid input shape %dx%dx%d", cfg.Channels, cfg.Height, cfg.Width)
	case cfg.Grid <= 0 || cfg.Grid > cfg.Height || cfg.Grid > cfg.Width:
		return nil, fmt.Errorf("backbone: grid %d does not fit %dx%d input", cfg.Grid, cfg.Height, cfg.Width)
	case cfg.Dim <= 0:
		return nil, fmt.Errorf("backbone: dim must be > 0 (got %d)", cfg.Dim)
	}
	in := cfg.Channels * cfg.Grid * cfg.Grid
	rng := rand.New(rand.NewSource(cfg.Seed))
	scale := math.Sqrt(2 / float64(in))
	weights := make([]float64, cfg.Dim*in)
	for i := range weights {
		weights[i] = rng.NormFloat64() * scale
	}
	return &Backbone{cfg: cfg, proj: mat.NewDense(cfg.Dim, in, weights)}, nil
}

// InputShape returns the per-sample CHW shape the backbone accepts.
func (b *Backbone) InputShape() []int {
	return []int{b.cfg.Channels, b.cfg.Height, b.cfg.Width}
}

// Dim returns the feature width.
func (b *Backbone) Dim() int { return b.cfg.Dim }

// Extract maps a [n,C,H,W] batch to an n×Dim feature matrix.
func (b *Backbone) Extract(inputs tensor.Tensor) (*mat.Dense, error) {
	if inputs.Dims() != 4 || !slices.Equal(inputs.Shape[1:], b.InputShape()) {
		want := append([]int{-1}, b.InputShape()...)
		return nil, fmt.Errorf("backbone: %w", &tensor.ShapeError{Expected: want, Actual: inputs.Shape})
	}
	n := inputs.Shape[0]
	g := b.cfg.Grid
	in := b.cfg.Channels * g * g
	pooled := mat.NewDense(n, in, nil)
	for i := 0; i < n; i++ {
		b.pool(inputs.Row(i), pooled.RawRowView(i))
	}
	out := mat.NewDense(n, b.cfg.Dim, nil)
	out.Mul(pooled, b.proj.T())
	out.Apply(func(_, _ int, v float64) float64 { return math.Max(v, 0) }, out)
	return out, nil
}

func (b *Backbone) pool(img tensor.Tensor, dst []float64) {
	c, h, w, g := b.cfg.Channels, b.cfg.Height, b.cfg.Width, b.cfg.Grid
	for ch := 0; ch < c; ch++ {
		plane := img.Data[ch*h*w : (ch+1)*h*w]
		for gy := 0; gy < g; gy++ {
			y0, y1 := gy*h/g, ((gy+1)*h+g-1)/g
			for gx := 0; gx < g; gx++ {
				x0, x1 := gx*w/g, ((gx+1)*w+g-1)/g
				sum := 0.0
				for y := y0; y < y1; y++ {
					for x := x0; x < x1; x++ {
						sum += plane[y*w+x]
					}
				}
				dst[(ch*g+gy)*g+gx] = sum / float64((y1-y0)*(x1-x0))
			}
		}
	}
}
