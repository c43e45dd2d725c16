package dataset

import (
	"slices"

	"github.com/pkg/errors"

	"finetune-forge/internal/transform"
)

// Flat stores single channel images as one contiguous pixel buffer and
// derives features on access.
type Flat struct {
	pixels        []uint8
	labels        []int
	height, width int
	tf            transform.Func
}

// NewFlat builds a store over len(labels) images of height×width pixels.
// A nil tf produces [1,height,width] tensors scaled to [0,1].
func NewFlat(pixels []uint8, labels []int, height, width int, tf transform.Func) (*Flat, error) {
	if height <= 0 || width <= 0 {
		return nil, errors.Errorf("dataset: invalid image size %dx%d", height, width)
	}
	if len(pixels) != len(labels)*height*width {
		return nil, errors.Errorf("dataset: pixel buffer holds %d values, want %d for %d images of %dx%d",
			len(pixels), len(labels)*height*width, len(labels), height, width)
	}
	if tf == nil {
		tf = transform.Pipeline{}.Func()
	}
	return &Flat{
		pixels: slices.Clone(pixels),
		labels: slices.Clone(labels),
		height: height,
		width:  width,
		tf:     tf,
	}, nil
}

// Len returns the number of images.
func (f *Flat) Len() int { return len(f.labels) }

// Get reshapes the i-th pixel run into a grid and applies the transform.
func (f *Flat) Get(i int) (Sample, error) {
	if err := checkIndex(i, len(f.labels)); err != nil {
		return Sample{}, err
	}
	n := f.height * f.width
	// cap the view so a transform cannot append into the next image
	pix := f.pixels[i*n : (i+1)*n : (i+1)*n]
	feat, err := f.tf(transform.Grid(pix, f.height, f.width))
	if err != nil {
		return Sample{}, errors.Wrapf(err, "dataset: transform sample %d", i)
	}
	return Sample{Features: feat, Label: f.labels[i]}, nil
}
