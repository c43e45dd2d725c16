package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"finetune-forge/internal/app"
	"finetune-forge/internal/config"
	"finetune-forge/internal/logging"
	"finetune-forge/internal/trainer"
)

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config (defaults apply when empty)")
	source := flag.String("source", "", "Override data source: synthetic, csv or shards")
	dataPath := flag.String("data", "", "Override data path (local path or s3://bucket/key)")
	epochs := flag.Int("epochs", 0, "Number of training epochs")
	batchSize := flag.Int("batch-size", 0, "Batch size")
	numWorkers := flag.Int("num-workers", 0, "Concurrent sample reads per batch")
	seed := flag.Int64("seed", 0, "PRNG seed")
	logEvery := flag.Int("log-every", 0, "Log every N steps")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	noShuffle := flag.Bool("no-shuffle", false, "Visit samples in storage order")
	historyPath := flag.String("history", "", "Write per-epoch history CSV to this path")

	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			fatal("failed to load config: %v", err)
		}
	}

	cfg.ApplyOverrides(config.Overrides{
		Source:     *source,
		DataPath:   *dataPath,
		Epochs:     *epochs,
		BatchSize:  *batchSize,
		NumWorkers: *numWorkers,
		Seed:       *seed,
		LogEvery:   *logEvery,
		LogLevel:   *logLevel,
		NoShuffle:  *noShuffle,
	})

	if err := cfg.Validate(); err != nil {
		fatal("invalid config: %v", err)
	}

	logger, err := logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		fatal("invalid logging config: %v", err)
	}
	logger, _ = logging.WithRun(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	history, err := app.Run(ctx, cfg, logger)
	if err != nil {
		logger.Error("training failed", "error", err)
		stop()
		os.Exit(1)
	}

	if *historyPath != "" {
		if err := writeHistory(*historyPath, history); err != nil {
			logger.Error("write history failed", "path", *historyPath, "error", err)
			stop()
			os.Exit(1)
		}
		logger.Info("history written", "path", *historyPath, "epochs", len(history))
	}
}

func writeHistory(path string, history []trainer.EpochStats) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := trainer.WriteHistory(f, history); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
