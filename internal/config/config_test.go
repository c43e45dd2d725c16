package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, SourceSynthetic, cfg.Source)
	assert.Equal(t, 10, cfg.SyntheticSamples)
	assert.Equal(t, 224, cfg.Crop)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	body := `# mnist fine-tune
source: csv
data_path: "data/train.csv.gz"
batch_size: 32
shuffle: false
valid_fraction: 0.1
log_every: 0
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, SourceCSV, cfg.Source)
	assert.Equal(t, "data/train.csv.gz", cfg.DataPath)
	assert.Equal(t, 32, cfg.BatchSize)
	assert.False(t, cfg.Shuffle)
	assert.Equal(t, 0.1, cfg.ValidFraction)
	assert.Equal(t, 28, cfg.ImageHeight, "unset keys keep defaults")
	assert.Equal(t, 50, cfg.LogEvery, "validate fills log_every")
}

func TestParseRejectsUnknownKey(t *testing.T) {
	_, err := Parse(strings.NewReader("bogus: 1\n"))
	assert.Error(t, err)

	cfg, err := Parse(strings.NewReader("\n"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyOverrides(t *testing.T) {
	cfg := Default()
	cfg.ApplyOverrides(Overrides{BatchSize: 8, Epochs: 3, NoShuffle: true, DataPath: "x.csv", Source: SourceCSV})
	assert.Equal(t, 8, cfg.BatchSize)
	assert.Equal(t, 3, cfg.Epochs)
	assert.False(t, cfg.Shuffle)
	assert.Equal(t, "x.csv", cfg.DataPath)
	assert.Equal(t, int64(42), cfg.Seed, "zero override keeps value")
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"batch size":   func(c *Config) { c.BatchSize = 0 },
		"csv path":     func(c *Config) { c.Source = SourceCSV },
		"shard roots":  func(c *Config) { c.Source = SourceShards },
		"source":       func(c *Config) { c.Source = "parquet" },
		"fraction":     func(c *Config) { c.ValidFraction = 1 },
		"normalize":    func(c *Config) { c.Normalize = "zscore" },
		"grid":         func(c *Config) { c.FeatureGrid = 500 },
		"epochs":       func(c *Config) { c.Epochs = -1 },
		"lr":           func(c *Config) { c.LearningRate = 0 },
		"workers":      func(c *Config) { c.NumWorkers = 0 },
		"image size":   func(c *Config) { c.ImageWidth = 0 },
		"synthetic":    func(c *Config) { c.SyntheticSamples = 0 },
		"classes":      func(c *Config) { c.NumClasses = 0 },
		"max samples":  func(c *Config) { c.MaxSamples = -1 },
		"resize":       func(c *Config) { c.Resize = -1 },
		"feature dim":  func(c *Config) { c.FeatureDim = 0 },
		"crop":         func(c *Config) { c.Crop = 0 },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		assert.Error(t, cfg.Validate(), name)
	}
	var nilCfg *Config
	assert.Error(t, nilCfg.Validate())
}
