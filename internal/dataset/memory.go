package dataset

import (
	"slices"

	"github.com/pkg/errors"

	"finetune-forge/internal/tensor"
)

// Memory holds pre-materialised feature tensors.
type Memory struct {
	features []tensor.Tensor
	labels   []int
}

// NewMemory builds a store from parallel feature and label slices. The
// tensors are copied, so later changes by the caller are not visible.
func NewMemory(features []tensor.Tensor, labels []int) (*Memory, error) {
	if len(features) != len(labels) {
		return nil, errors.Errorf("dataset: %d features but %d labels", len(features), len(labels))
	}
	owned := make([]tensor.Tensor, len(features))
	for i, f := range features {
		owned[i] = f.Clone()
	}
	return &Memory{features: owned, labels: slices.Clone(labels)}, nil
}

// Len returns the number of samples.
func (m *Memory) Len() int { return len(m.labels) }

// Get returns the i-th sample.
func (m *Memory) Get(i int) (Sample, error) {
	if err := checkIndex(i, len(m.labels)); err != nil {
		return Sample{}, err
	}
	return Sample{Features: m.features[i], Label: m.labels[i]}, nil
}
