package model

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Linear is a softmax classifier trained with minibatch SGD.
type Linear struct {
	numClasses int
	inputSize  int
	weights    []float64
	bias       []float64
	lr         float64
}

// NewLinear constructs the head with small random weights.
func NewLinear(numClasses, inputSize int, lr float64, seed int64) *Linear {
	if numClasses <= 0 {
		numClasses = 10
	}
	if inputSize <= 0 {
		inputSize = 64
	}
	if lr <= 0 {
		lr = 0.01
	}
	rng := rand.New(rand.NewSource(seed))
	weights := make([]float64, numClasses*inputSize)
	for i := range weights {
		weights[i] = (rng.Float64()*2 - 1) * 0.01
	}
	return &Linear{
		numClasses: numClasses,
		inputSize:  inputSize,
		weights:    weights,
		bias:       make([]float64, numClasses),
		lr:         lr,
	}
}

// NumClasses returns the output width.
func (m *Linear) NumClasses() int { return m.numClasses }

// Step applies one averaged SGD update over the rows of features and
// returns the mean cross-entropy before the update.
func (m *Linear) Step(features *mat.Dense, labels []int) (float64, error) {
	n, err := m.check(features, labels)
	if err != nil {
		return 0, err
	}
	gradW := make([]float64, len(m.weights))
	gradB := make([]float64, m.numClasses)
	totalLoss := 0.0
	for i := 0; i < n; i++ {
		input := features.RawRowView(i)
		probs := softmax(m.logits(input))
		totalLoss += -math.Log(math.Max(probs[labels[i]], 1e-9))

		probs[labels[i]] -= 1
		for c, grad := range probs {
			gradB[c] += grad
			floats.AddScaled(gradW[c*m.inputSize:(c+1)*m.inputSize], grad, input)
		}
	}
	step := -m.lr / float64(n)
	floats.AddScaled(m.weights, step, gradW)
	floats.AddScaled(m.bias, step, gradB)
	return totalLoss / float64(n), nil
}

// Score returns the number of rows predicted correctly and the mean loss,
// without updating weights.
func (m *Linear) Score(features *mat.Dense, labels []int) (int, float64, error) {
	n, err := m.check(features, labels)
	if err != nil {
		return 0, 0, err
	}
	correct := 0
	totalLoss := 0.0
	for i := 0; i < n; i++ {
		probs := softmax(m.logits(features.RawRowView(i)))
		totalLoss += -math.Log(math.Max(probs[labels[i]], 1e-9))
		if floats.MaxIdx(probs) == labels[i] {
			correct++
		}
	}
	return correct, totalLoss / float64(n), nil
}

// Predict returns the most likely class of every row.
func (m *Linear) Predict(features *mat.Dense) []int {
	n, _ := features.Dims()
	out := make([]int, n)
	for i := range out {
		out[i] = floats.MaxIdx(m.logits(features.RawRowView(i)))
	}
	return out
}

func (m *Linear) check(features *mat.Dense, labels []int) (int, error) {
	n, cols := features.Dims()
	if cols != m.inputSize {
		return 0, fmt.Errorf("head: feature width %d, want %d", cols, m.inputSize)
	}
	if n != len(labels) || n == 0 {
		return 0, fmt.Errorf("head: %d feature rows for %d labels", n, len(labels))
	}
	for _, l := range labels {
		if l < 0 || l >= m.numClasses {
			return 0, fmt.Errorf("head: label %d outside [0,%d)", l, m.numClasses)
		}
	}
	return n, nil
}

func (m *Linear) logits(input []float64) []float64 {
	out := make([]float64, m.numClasses)
	for c := range out {
		out[c] = m.bias[c] + floats.Dot(m.weights[c*m.inputSize:(c+1)*m.inputSize], input)
	}
	return out
}

func softmax(logits []float64) []float64 {
	maxLogit := floats.Max(logits)
	out := make([]float64, len(logits))
	sum := 0.0
	for i, v := range logits {
		out[i] = math.Exp(v - maxLogit)
		sum += out[i]
	}
	floats.Scale(1/sum, out)
	return out
}
