// Package app turns a validated Config into stores, loaders and a model and
// runs the fine-tuning loop over them.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"finetune-forge/internal/config"
	"finetune-forge/internal/dataset"
	"finetune-forge/internal/loader"
	"finetune-forge/internal/model"
	"finetune-forge/internal/source"
	"finetune-forge/internal/trainer"
	"finetune-forge/internal/transform"
)

// Run builds everything cfg describes and trains.
func Run(ctx context.Context, cfg *config.Config, log *slog.Logger) ([]trainer.EpochStats, error) {
	runCfg, err := Build(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return trainer.Run(ctx, runCfg)
}

// Build prepares the trainer configuration without running it.
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger) (trainer.RunConfig, error) {
	raw, err := openRaw(ctx, cfg)
	if err != nil {
		return trainer.RunConfig{}, err
	}
	log.InfoContext(ctx, "dataset loaded", "source", cfg.Source, "samples", raw.Len())

	tf, err := buildTransform(cfg, raw, log)
	if err != nil {
		return trainer.RunConfig{}, err
	}
	store, err := raw.with(tf)
	if err != nil {
		return trainer.RunConfig{}, err
	}

	var trainStore, validStore dataset.Store = store, nil
	if cfg.ValidFraction > 0 {
		train, valid, err := dataset.Split(store, cfg.ValidFraction, cfg.Seed)
		if err != nil {
			return trainer.RunConfig{}, err
		}
		trainStore = train
		if valid.Len() > 0 {
			validStore = valid
		}
	}

	trainLoader, err := loader.New(trainStore, loader.Options{
		BatchSize: cfg.BatchSize,
		Shuffle:   cfg.Shuffle,
		DropLast:  cfg.DropLast,
		Seed:      cfg.Seed,
		Workers:   cfg.NumWorkers,
	})
	if err != nil {
		return trainer.RunConfig{}, fmt.Errorf("train loader: %w", err)
	}
	var validLoader *loader.Loader
	if validStore != nil {
		validLoader, err = loader.New(validStore, loader.Options{
			BatchSize: cfg.BatchSize,
			Seed:      cfg.Seed,
			Workers:   cfg.NumWorkers,
		})
		if err != nil {
			return trainer.RunConfig{}, fmt.Errorf("valid loader: %w", err)
		}
	}

	backbone, err := model.NewBackbone(model.BackboneConfig{
		Channels: 3,
		Height:   cfg.Crop,
		Width:    cfg.Crop,
		Grid:     cfg.FeatureGrid,
		Dim:      cfg.FeatureDim,
		Seed:     cfg.Seed,
	})
	if err != nil {
		return trainer.RunConfig{}, err
	}
	clf, err := model.NewClassifier(backbone, cfg.NumClasses, cfg.LearningRate, cfg.Seed)
	if err != nil {
		return trainer.RunConfig{}, err
	}

	log.InfoContext(ctx, "loaders ready",
		"train_samples", trainStore.Len(),
		"train_batches", trainLoader.Len(),
		"valid", validLoader != nil,
		"batch_size", cfg.BatchSize,
		"shuffle", cfg.Shuffle,
		"workers", trainLoader.Options().Workers,
		"seed", trainLoader.Options().Seed,
	)

	return trainer.RunConfig{
		Train:    trainLoader,
		Valid:    validLoader,
		Model:    clf,
		Epochs:   cfg.Epochs,
		LogEvery: cfg.LogEvery,
		Logger:   log,
	}, nil
}

// rawData is the untransformed content of a source.
type rawData struct {
	table   *dataset.Table
	records []dataset.Record
}

func (r rawData) Len() int {
	if r.table != nil {
		return r.table.Len()
	}
	return len(r.records)
}

func (r rawData) with(tf transform.Func) (dataset.Store, error) {
	if r.table != nil {
		return r.table.Store(tf)
	}
	return dataset.NewEncoded(r.records, tf), nil
}

func openRaw(ctx context.Context, cfg *config.Config) (rawData, error) {
	switch cfg.Source {
	case config.SourceSynthetic:
		n := cfg.SyntheticSamples
		if cfg.MaxSamples > 0 {
			n = min(n, cfg.MaxSamples)
		}
		table, err := dataset.Synthetic(dataset.SyntheticOptions{
			Samples: n,
			Classes: cfg.NumClasses,
			Height:  cfg.ImageHeight,
			Width:   cfg.ImageWidth,
			Seed:    cfg.Seed,
		})
		return rawData{table: table}, err
	case config.SourceCSV:
		rc, err := source.Open(ctx, cfg.DataPath, source.S3Options{
			Endpoint: cfg.S3Endpoint,
			Region:   cfg.S3Region,
			Secure:   cfg.S3Secure,
		})
		if err != nil {
			return rawData{}, err
		}
		defer rc.Close()
		table, err := dataset.ReadCSV(rc, dataset.CSVOptions{
			Height:  cfg.ImageHeight,
			Width:   cfg.ImageWidth,
			MaxRows: cfg.MaxSamples,
		})
		if err != nil {
			return rawData{}, fmt.Errorf("read %s: %w", cfg.DataPath, err)
		}
		return rawData{table: table}, nil
	case config.SourceShards:
		roots := cfg.ShardRoots
		if len(roots) == 0 {
			roots = []string{cfg.DataPath}
		}
		paths, err := dataset.Discover(roots)
		if err != nil {
			return rawData{}, err
		}
		records, err := dataset.LoadShards(ctx, paths, cfg.NumWorkers)
		if err != nil {
			return rawData{}, err
		}
		if cfg.MaxSamples > 0 && len(records) > cfg.MaxSamples {
			records = records[:cfg.MaxSamples]
		}
		return rawData{records: records}, nil
	}
	return rawData{}, fmt.Errorf("unknown source %q", cfg.Source)
}

func buildTransform(cfg *config.Config, raw rawData, log *slog.Logger) (transform.Func, error) {
	switch cfg.Normalize {
	case config.NormalizeImageNet:
		return transform.ImageNet(cfg.Resize, cfg.Crop).Func(), nil
	case config.NormalizeNone:
		return transform.Normalized(cfg.Resize, cfg.Crop, nil, nil).Func(), nil
	}
	plain, err := raw.with(transform.Normalized(cfg.Resize, cfg.Crop, nil, nil).Func())
	if err != nil {
		return nil, err
	}
	mean, std, err := dataset.ChannelStats(plain)
	if err != nil {
		return nil, err
	}
	for c := range std {
		if std[c] == 0 {
			std[c] = 1
		}
	}
	log.Info("dataset statistics", "mean", mean, "std", std)
	return transform.Normalized(cfg.Resize, cfg.Crop, mean, std).Func(), nil
}
