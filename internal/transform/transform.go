// Package transform converts decoded images into model-ready tensors.
//
// A Pipeline runs a sequence of image steps (colour widening, resize, crop),
// converts the result to a CHW tensor scaled to [0,1] and finishes with tensor
// steps such as per-channel normalisation. Every step is pure: inputs are never
// mutated and identical inputs always yield identical outputs.
package transform

import (
	"fmt"
	"image"

	"finetune-forge/internal/tensor"
)

// Func is applied to a raw sample at access time.
type Func func(img image.Image) (tensor.Tensor, error)

// ImageStep rewrites an image.
type ImageStep func(img image.Image) image.Image

// TensorStep rewrites a CHW tensor.
type TensorStep func(t tensor.Tensor) (tensor.Tensor, error)

// Pipeline is an ordered set of image steps followed by tensor steps.
type Pipeline struct {
	Images  []ImageStep
	Tensors []TensorStep
}

// Apply runs every step of the pipeline on img.
func (p Pipeline) Apply(img image.Image) (tensor.Tensor, error) {
	if img == nil {
		return tensor.Tensor{}, fmt.Errorf("transform: nil image")
	}
	for _, step := range p.Images {
		img = step(img)
	}
	t := ToTensor(img)
	for i, step := range p.Tensors {
		var err error
		if t, err = step(t); err != nil {
			return tensor.Tensor{}, fmt.Errorf("transform: tensor step %d: %w", i, err)
		}
	}
	return t, nil
}

// Func returns Apply as a Func.
func (p Pipeline) Func() Func { return p.Apply }

// Standard ImageNet per-channel statistics.
var (
	ImageNetMean = []float64{0.485, 0.456, 0.406}
	ImageNetStd  = []float64{0.229, 0.224, 0.225}
)

// ImageNet returns the pipeline expected by ImageNet-pretrained backbones:
// widen to RGB, resize the shorter side, center crop and normalise.
func ImageNet(resize, crop int) Pipeline {
	return Normalized(resize, crop, ImageNetMean, ImageNetStd)
}

// Normalized is ImageNet with caller supplied statistics. A nil mean skips normalisation.
func Normalized(resize, crop int, mean, std []float64) Pipeline {
	p := Pipeline{Images: []ImageStep{GrayToRGB()}}
	if resize > 0 {
		p.Images = append(p.Images, Resize(resize))
	}
	if crop > 0 {
		p.Images = append(p.Images, CenterCrop(crop))
	}
	if mean != nil {
		p.Tensors = append(p.Tensors, Normalize(mean, std))
	}
	if crop > 0 {
		p.Tensors = append(p.Tensors, ExpectShape(3, crop, crop))
	}
	return p
}
