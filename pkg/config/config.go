// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for the
// classifier (KNN, Data) and for every optional subsystem the serve and
// classify modes can attach (Server, Redis, Kafka, Postgres, Metrics).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	KNN      KNNConfig      `yaml:"knn"`
	Data     DataConfig     `yaml:"data"`
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// KNNConfig holds the truncation points of the retrieval pipeline and the
// query-phase parallelism.
type KNNConfig struct {
	TopFeatures    int `yaml:"topFeatures"`
	TopNeighbors   int `yaml:"topNeighbors"`
	VoteWindow     int `yaml:"voteWindow"`
	PredictionSize int `yaml:"predictionSize"`
	Workers        int `yaml:"workers"`
	BatchSize      int `yaml:"batchSize"`
}

// DataConfig locates the training and query streams and the prediction output.
type DataConfig struct {
	TrainPath        string `yaml:"trainPath"`
	TestPath         string `yaml:"testPath"`
	OutputPath       string `yaml:"outputPath"`
	MaxLineBytes     int    `yaml:"maxLineBytes"`
	ProgressInterval int    `yaml:"progressInterval"`
	ProgressBar      bool   `yaml:"progressBar"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	QueryTimeout    time.Duration `yaml:"queryTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	Queries     string `yaml:"queries"`
	Predictions string `yaml:"predictions"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep the defaults, which reproduce the reference
// truncation points K=8, N=100, M=5 and a prediction size of 3.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration without reading any file or
// environment variable.
func Default() *Config {
	return defaultConfig()
}

// Validate rejects settings the classifier cannot run with.
func (c *Config) Validate() error {
	checks := []struct {
		name  string
		value int
	}{
		{"knn.topFeatures", c.KNN.TopFeatures},
		{"knn.topNeighbors", c.KNN.TopNeighbors},
		{"knn.voteWindow", c.KNN.VoteWindow},
		{"knn.predictionSize", c.KNN.PredictionSize},
		{"knn.workers", c.KNN.Workers},
		{"knn.batchSize", c.KNN.BatchSize},
	}
	for _, chk := range checks {
		if chk.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", apperrors.ErrInvalidInput, chk.name, chk.value)
		}
	}
	if c.Data.MaxLineBytes < 0 {
		return fmt.Errorf("%w: data.maxLineBytes must not be negative", apperrors.ErrInvalidInput)
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topics.Predictions == "") {
		return fmt.Errorf("%w: kafka sink needs brokers and a predictions topic", apperrors.ErrInvalidInput)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		KNN: KNNConfig{
			TopFeatures:    8,
			TopNeighbors:   100,
			VoteWindow:     5,
			PredictionSize: 3,
			Workers:        1,
			BatchSize:      256,
		},
		Data: DataConfig{
			OutputPath:       "-",
			MaxLineBytes:     16 << 20,
			ProgressInterval: 10000,
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			QueryTimeout:    5 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "sparseknn",
			User:            "sparseknn",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "sparse-knn",
			Topics: KafkaTopics{
				Queries:     "knn.queries",
				Predictions: "knn.predictions",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Port: 9090,
		},
	}
}

// applyEnvOverrides reads SKNN_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	intVars := map[string]*int{
		"SKNN_KNN_TOP_FEATURES":    &cfg.KNN.TopFeatures,
		"SKNN_KNN_TOP_NEIGHBORS":   &cfg.KNN.TopNeighbors,
		"SKNN_KNN_VOTE_WINDOW":     &cfg.KNN.VoteWindow,
		"SKNN_KNN_PREDICTION_SIZE": &cfg.KNN.PredictionSize,
		"SKNN_KNN_WORKERS":         &cfg.KNN.Workers,
		"SKNN_SERVER_PORT":         &cfg.Server.Port,
		"SKNN_POSTGRES_PORT":       &cfg.Postgres.Port,
		"SKNN_METRICS_PORT":        &cfg.Metrics.Port,
	}
	for name, dst := range intVars {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	stringVars := map[string]*string{
		"SKNN_DATA_TRAIN_PATH":   &cfg.Data.TrainPath,
		"SKNN_DATA_TEST_PATH":    &cfg.Data.TestPath,
		"SKNN_DATA_OUTPUT_PATH":  &cfg.Data.OutputPath,
		"SKNN_POSTGRES_HOST":     &cfg.Postgres.Host,
		"SKNN_POSTGRES_DATABASE": &cfg.Postgres.Database,
		"SKNN_POSTGRES_USER":     &cfg.Postgres.User,
		"SKNN_POSTGRES_PASSWORD": &cfg.Postgres.Password,
		"SKNN_POSTGRES_SSLMODE":  &cfg.Postgres.SSLMode,
		"SKNN_REDIS_ADDR":        &cfg.Redis.Addr,
		"SKNN_REDIS_PASSWORD":    &cfg.Redis.Password,
		"SKNN_KAFKA_QUERIES":     &cfg.Kafka.Topics.Queries,
		"SKNN_KAFKA_PREDICTIONS": &cfg.Kafka.Topics.Predictions,
		"SKNN_KAFKA_GROUP":       &cfg.Kafka.ConsumerGroup,
		"SKNN_LOGGING_LEVEL":     &cfg.Logging.Level,
		"SKNN_LOGGING_FORMAT":    &cfg.Logging.Format,
	}
	for name, dst := range stringVars {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	boolVars := map[string]*bool{
		"SKNN_POSTGRES_ENABLED": &cfg.Postgres.Enabled,
		"SKNN_REDIS_ENABLED":    &cfg.Redis.Enabled,
		"SKNN_KAFKA_ENABLED":    &cfg.Kafka.Enabled,
		"SKNN_METRICS_ENABLED":  &cfg.Metrics.Enabled,
	}
	for name, dst := range boolVars {
		if v := os.Getenv(name); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}
	if v := os.Getenv("SKNN_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
}
