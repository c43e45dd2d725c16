package dataset

import (
	"math/rand"

	"github.com/pkg/errors"
)

// SyntheticOptions configures a generated pixel table.
type SyntheticOptions struct {
	Samples int
	Classes int
	Height  int
	Width   int
	Seed    int64
}

// Synthetic generates a reproducible table of random pixels. Each image is
// brightened in proportion to its label so that a classifier has something
// to learn.
func Synthetic(opts SyntheticOptions) (*Table, error) {
	if opts.Samples <= 0 {
		return nil, errors.Errorf("synthetic: samples must be > 0 (got %d)", opts.Samples)
	}
	if opts.Classes <= 0 {
		return nil, errors.Errorf("synthetic: classes must be > 0 (got %d)", opts.Classes)
	}
	if opts.Height <= 0 || opts.Width <= 0 {
		return nil, errors.Errorf("synthetic: invalid image size %dx%d", opts.Height, opts.Width)
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	npix := opts.Height * opts.Width
	t := &Table{
		Labels: make([]int, opts.Samples),
		Pixels: make([]uint8, opts.Samples*npix),
		Height: opts.Height,
		Width:  opts.Width,
	}
	step := 192 / opts.Classes
	for i := range t.Labels {
		label := rng.Intn(opts.Classes)
		t.Labels[i] = label
		base := label * step
		for j := 0; j < npix; j++ {
			t.Pixels[i*npix+j] = uint8(base + rng.Intn(64))
		}
	}
	return t, nil
}
