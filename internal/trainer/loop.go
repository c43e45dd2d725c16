package trainer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"finetune-forge/internal/loader"
	"finetune-forge/internal/logging"
	"finetune-forge/internal/metrics"
	"finetune-forge/internal/model"
)

// RunConfig captures the knobs required by the training loop.
type RunConfig struct {
	Train *loader.Loader
	// Valid is evaluated after every epoch when set.
	Valid    *loader.Loader
	Model    model.Model
	Epochs   int
	LogEvery int
	Logger   *slog.Logger
}

// EpochStats summarises one epoch.
type EpochStats struct {
	Epoch     int
	Steps     int
	TrainLoss float64
	HasValid  bool
	ValidLoss float64
	ValidAcc  float64
	Duration  time.Duration
}

// Run executes cfg.Epochs passes over the training loader, drawing a new
// order for each, and returns the per-epoch history.
func Run(ctx context.Context, cfg RunConfig) ([]EpochStats, error) {
	if cfg.Epochs <= 0 {
		return nil, errors.New("trainer: epochs must be > 0")
	}
	if cfg.Train == nil || cfg.Model == nil {
		return nil, errors.New("trainer: train loader and model are required")
	}
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = 50
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	log := cfg.Logger
	every := &rate.Sometimes{Every: cfg.LogEvery}

	history := make([]EpochStats, 0, cfg.Epochs)
	step := 0
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		start := time.Now()
		var window metrics.Window
		var train metrics.Accuracy
		stats := EpochStats{Epoch: epoch}

		pass := cfg.Train.Pass()
		for {
			startData := time.Now()
			batch, err := pass.Next(ctx)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return history, err
			}
			dataTime := time.Since(startData)

			startCompute := time.Now()
			loss, err := cfg.Model.TrainStep(model.Batch{Inputs: batch.Inputs, Labels: batch.Labels})
			if err != nil {
				return history, err
			}
			computeTime := time.Since(startCompute)

			step++
			stats.Steps++
			train.Add(batch.Size(), 0, loss)
			window.Record(batch.Size(), dataTime, computeTime, loss)
			every.Do(func() {
				snap := window.Snapshot()
				log.InfoContext(ctx, "train step",
					"epoch", epoch,
					"step", step,
					"samples_per_sec", snap.SamplesPerSec,
					"data_ms", snap.AvgDataMS,
					"compute_ms", snap.AvgComputeMS,
					"loss", snap.LastLoss,
					"avg_loss", snap.AvgLoss,
				)
			})
		}
		stats.TrainLoss = train.Loss()

		if cfg.Valid != nil {
			acc, err := Evaluate(ctx, cfg.Model, cfg.Valid)
			if err != nil {
				return history, err
			}
			stats.HasValid = true
			stats.ValidLoss = acc.Loss()
			stats.ValidAcc = acc.Rate()
		}
		stats.Duration = time.Since(start)
		history = append(history, stats)

		attrs := []any{
			"epoch", epoch,
			"steps", stats.Steps,
			"train_loss", stats.TrainLoss,
			"duration", stats.Duration,
		}
		if stats.HasValid {
			attrs = append(attrs, "valid_loss", stats.ValidLoss, "valid_acc", stats.ValidAcc)
		}
		log.InfoContext(ctx, "epoch complete", attrs...)
	}
	return history, nil
}

// Evaluate scores m over one pass of l.
func Evaluate(ctx context.Context, m model.Model, l *loader.Loader) (metrics.Accuracy, error) {
	var acc metrics.Accuracy
	for batch, err := range l.Batches(ctx) {
		if err != nil {
			return acc, err
		}
		correct, loss, err := m.Evaluate(model.Batch{Inputs: batch.Inputs, Labels: batch.Labels})
		if err != nil {
			return acc, err
		}
		acc.Add(batch.Size(), correct, loss)
	}
	return acc, nil
}
