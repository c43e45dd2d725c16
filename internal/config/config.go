package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"go.yaml.in/yaml/v3"
)

// Data sources understood by the binary.
const (
	SourceSynthetic = "synthetic"
	SourceCSV       = "csv"
	SourceShards    = "shards"
)

// Normalisation modes.
const (
	NormalizeImageNet = "imagenet"
	NormalizeDataset  = "dataset"
	NormalizeNone     = "none"
)

// Config captures the runtime knobs for a fine-tuning run.
type Config struct {
	Source           string   `yaml:"source"`
	DataPath         string   `yaml:"data_path"`
	ShardRoots       []string `yaml:"shard_roots"`
	ImageHeight      int      `yaml:"image_height"`
	ImageWidth       int      `yaml:"image_width"`
	SyntheticSamples int      `yaml:"synthetic_samples"`
	MaxSamples       int      `yaml:"max_samples"`
	NumClasses       int      `yaml:"num_classes"`
	ValidFraction    float64  `yaml:"valid_fraction"`

	Resize    int    `yaml:"resize"`
	Crop      int    `yaml:"crop"`
	Normalize string `yaml:"normalize"`

	BatchSize  int  `yaml:"batch_size"`
	Shuffle    bool `yaml:"shuffle"`
	DropLast   bool `yaml:"drop_last"`
	NumWorkers int  `yaml:"num_workers"`

	Epochs       int     `yaml:"epochs"`
	LearningRate float64 `yaml:"learning_rate"`
	Seed         int64   `yaml:"seed"`
	LogEvery     int     `yaml:"log_every"`

	FeatureGrid int `yaml:"feature_grid"`
	FeatureDim  int `yaml:"feature_dim"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	S3Endpoint string `yaml:"s3_endpoint"`
	S3Region   string `yaml:"s3_region"`
	S3Secure   bool   `yaml:"s3_secure"`
}

// Overrides captures CLI supplied values.
type Overrides struct {
	Source     string
	DataPath   string
	Epochs     int
	BatchSize  int
	NumWorkers int
	Seed       int64
	LogEvery   int
	LogLevel   string
	NoShuffle  bool
}

// Default returns the configuration applied before any file is read: a
// ten sample synthetic set fed to a 224×224 ImageNet style pipeline.
func Default() *Config {
	return &Config{
		Source:           SourceSynthetic,
		ImageHeight:      28,
		ImageWidth:       28,
		SyntheticSamples: 10,
		NumClasses:       10,
		Resize:           256,
		Crop:             224,
		Normalize:        NormalizeImageNet,
		BatchSize:        2,
		Shuffle:          true,
		NumWorkers:       1,
		Epochs:           1,
		LearningRate:     0.01,
		Seed:             42,
		LogEvery:         50,
		FeatureGrid:      7,
		FeatureDim:       64,
		LogLevel:         "info",
		LogFormat:        "text",
		S3Secure:         true,
	}
}

// Load reads and validates a Config from YAML.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse decodes YAML over Default. Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if len(bytes.TrimSpace(raw)) == 0 {
		return cfg, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Source != "" {
		c.Source = o.Source
	}
	if o.DataPath != "" {
		c.DataPath = o.DataPath
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.NumWorkers > 0 {
		c.NumWorkers = o.NumWorkers
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.LogEvery > 0 {
		c.LogEvery = o.LogEvery
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if o.NoShuffle {
		c.Shuffle = false
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	switch c.Source {
	case SourceSynthetic:
		if c.SyntheticSamples <= 0 {
			return fmt.Errorf("synthetic_samples must be > 0 (got %d)", c.SyntheticSamples)
		}
	case SourceCSV:
		if c.DataPath == "" {
			return errors.New("data_path must be set for csv source")
		}
	case SourceShards:
		if c.DataPath == "" && len(c.ShardRoots) == 0 {
			return errors.New("data_path or shard_roots must be set for shards source")
		}
	default:
		return fmt.Errorf("unknown source %q", c.Source)
	}
	if c.Source != SourceShards && (c.ImageHeight <= 0 || c.ImageWidth <= 0) {
		return fmt.Errorf("image size must be > 0 (got %dx%d)", c.ImageHeight, c.ImageWidth)
	}
	if c.MaxSamples < 0 {
		return fmt.Errorf("max_samples must be >= 0 (got %d)", c.MaxSamples)
	}
	if c.NumClasses <= 0 {
		return fmt.Errorf("num_classes must be > 0 (got %d)", c.NumClasses)
	}
	if c.ValidFraction < 0 || c.ValidFraction >= 1 {
		return fmt.Errorf("valid_fraction must be in [0,1) (got %g)", c.ValidFraction)
	}
	if c.Crop <= 0 {
		return fmt.Errorf("crop must be > 0 (got %d)", c.Crop)
	}
	if c.Resize < 0 {
		return fmt.Errorf("resize must be >= 0 (got %d)", c.Resize)
	}
	switch c.Normalize {
	case NormalizeImageNet, NormalizeDataset, NormalizeNone:
	default:
		return fmt.Errorf("unknown normalize mode %q", c.Normalize)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.NumWorkers <= 0 {
		return fmt.Errorf("num_workers must be > 0 (got %d)", c.NumWorkers)
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be > 0 (got %g)", c.LearningRate)
	}
	if c.FeatureGrid <= 0 || c.FeatureGrid > c.Crop {
		return fmt.Errorf("feature_grid must be in [1,%d] (got %d)", c.Crop, c.FeatureGrid)
	}
	if c.FeatureDim <= 0 {
		return fmt.Errorf("feature_dim must be > 0 (got %d)", c.FeatureDim)
	}
	if c.LogEvery <= 0 {
		c.LogEvery = 50
	}
	return nil
}
