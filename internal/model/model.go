package model

import "finetune-forge/internal/tensor"

// Batch represents a minibatch of stacked inputs and their labels.
type Batch struct {
	Inputs tensor.Tensor
	Labels []int
}

// Model defines the training functionality required by the trainer.
type Model interface {
	TrainStep(batch Batch) (float64, error)
	Evaluate(batch Batch) (correct int, loss float64, err error)
}
