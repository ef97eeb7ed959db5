package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.KNN.TopFeatures != 8 || cfg.KNN.TopNeighbors != 100 || cfg.KNN.VoteWindow != 5 || cfg.KNN.PredictionSize != 3 {
		t.Errorf("unexpected knn defaults %+v", cfg.KNN)
	}
	if cfg.Data.ProgressInterval != 10000 {
		t.Errorf("progress interval = %d, want 10000", cfg.Data.ProgressInterval)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knn.yaml")
	content := `
knn:
  topFeatures: 4
  workers: 3
data:
  trainPath: train.csv
redis:
  enabled: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SKNN_KNN_TOP_NEIGHBORS", "20")
	t.Setenv("SKNN_KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.KNN.TopFeatures != 4 || cfg.KNN.Workers != 3 || cfg.KNN.TopNeighbors != 20 {
		t.Errorf("unexpected knn config %+v", cfg.KNN)
	}
	if cfg.KNN.VoteWindow != 5 {
		t.Errorf("vote window default lost: %d", cfg.KNN.VoteWindow)
	}
	if cfg.Data.TrainPath != "train.csv" || !cfg.Redis.Enabled {
		t.Errorf("file values not applied: %+v %+v", cfg.Data, cfg.Redis)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero top features", func(c *Config) { c.KNN.TopFeatures = 0 }},
		{"negative neighbors", func(c *Config) { c.KNN.TopNeighbors = -1 }},
		{"zero prediction size", func(c *Config) { c.KNN.PredictionSize = 0 }},
		{"zero workers", func(c *Config) { c.KNN.Workers = 0 }},
		{"kafka without topic", func(c *Config) {
			c.Kafka.Enabled = true
			c.Kafka.Topics.Predictions = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, apperrors.ErrInvalidInput) {
				t.Errorf("Validate() = %v, want ErrInvalidInput", err)
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
