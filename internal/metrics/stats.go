package metrics

import "time"

// Window accumulates per-step timings between two log lines.
type Window struct {
	samples  int
	data     time.Duration
	compute  time.Duration
	steps    int
	lossSum  float64
	lastLoss float64
}

// Record adds one training step.
func (w *Window) Record(batchSize int, dataTime, computeTime time.Duration, loss float64) {
	w.samples += batchSize
	w.data += dataTime
	w.compute += computeTime
	w.steps++
	w.lossSum += loss
	w.lastLoss = loss
}

// Snapshot returns aggregated metrics and resets the window.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{Steps: w.steps, LastLoss: w.lastLoss}
	total := w.data + w.compute
	if total > 0 {
		snap.SamplesPerSec = float64(w.samples) / total.Seconds()
	}
	if w.steps > 0 {
		snap.AvgDataMS = (w.data.Seconds() * 1000) / float64(w.steps)
		snap.AvgComputeMS = (w.compute.Seconds() * 1000) / float64(w.steps)
		snap.AvgLoss = w.lossSum / float64(w.steps)
	}
	*w = Window{}
	return snap
}

// Snapshot represents loggable step metrics.
type Snapshot struct {
	Steps         int
	SamplesPerSec float64
	AvgDataMS     float64
	AvgComputeMS  float64
	AvgLoss       float64
	LastLoss      float64
}

// Accuracy tracks correct predictions and a sample-weighted mean loss.
type Accuracy struct {
	correct int
	total   int
	lossSum float64
}

// Add records a batch of n samples of which correct were right and whose
// mean loss was loss.
func (a *Accuracy) Add(n, correct int, loss float64) {
	a.total += n
	a.correct += correct
	a.lossSum += loss * float64(n)
}

// Total returns the number of samples recorded.
func (a *Accuracy) Total() int { return a.total }

// Rate returns the fraction of correct predictions, or zero when empty.
func (a *Accuracy) Rate() float64 {
	if a.total == 0 {
		return 0
	}
	return float64(a.correct) / float64(a.total)
}

// Loss returns the mean loss per sample, or zero when empty.
func (a *Accuracy) Loss() float64 {
	if a.total == 0 {
		return 0
	}
	return a.lossSum / float64(a.total)
}
