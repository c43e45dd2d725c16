package model

import (
	"errors"
	"fmt"

	"finetune-forge/internal/tensor"
)

// Classifier is a frozen Backbone topped with a trainable Linear head.
type Classifier struct {
	Backbone *Backbone
	Head     *Linear
}

// NewClassifier attaches a fresh head with numClasses outputs to backbone.
func NewClassifier(backbone *Backbone, numClasses int, lr float64, seed int64) (*Classifier, error) {
	if backbone == nil {
		return nil, errors.New("classifier: nil backbone")
	}
	c := &Classifier{Backbone: backbone}
	if err := c.ReplaceHead(numClasses, lr, seed); err != nil {
		return nil, err
	}
	return c, nil
}

// ReplaceHead discards the current head and installs an untrained one.
func (c *Classifier) ReplaceHead(numClasses int, lr float64, seed int64) error {
	if numClasses <= 0 {
		return fmt.Errorf("classifier: classes must be > 0 (got %d)", numClasses)
	}
	c.Head = NewLinear(numClasses, c.Backbone.Dim(), lr, seed)
	return nil
}

// TrainStep updates the head on one batch and returns its loss.
func (c *Classifier) TrainStep(batch Batch) (float64, error) {
	feats, err := c.Backbone.Extract(batch.Inputs)
	if err != nil {
		return 0, err
	}
	return c.Head.Step(feats, batch.Labels)
}

// Evaluate scores one batch without training.
func (c *Classifier) Evaluate(batch Batch) (int, float64, error) {
	feats, err := c.Backbone.Extract(batch.Inputs)
	if err != nil {
		return 0, 0, err
	}
	return c.Head.Score(feats, batch.Labels)
}

// Predict returns the most likely class of every sample in inputs.
func (c *Classifier) Predict(inputs tensor.Tensor) ([]int, error) {
	feats, err := c.Backbone.Extract(inputs)
	if err != nil {
		return nil, err
	}
	return c.Head.Predict(feats), nil
}

var _ Model = (*Classifier)(nil)
