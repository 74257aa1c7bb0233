// Package config loads medrisk settings from a YAML file and MEDRISK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"medrisk/logging"
)

// EnvPrefix prefixes every environment override, e.g. MEDRISK_SERVER_PORT.
const EnvPrefix = "MEDRISK"

// Config is the full process configuration shared by the server and the CLIs.
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Log       logging.Config  `yaml:"log" envconfig:"LOG"`
	Model     ModelConfig     `yaml:"model" envconfig:"MODEL"`
	Training  TrainingConfig  `yaml:"training" envconfig:"TRAINING"`
	Generator GeneratorConfig `yaml:"generator" envconfig:"GENERATOR"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" envconfig:"MAX_BODY_BYTES"`
	AllowedOrigins  []string      `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
}

// ModelConfig locates the model artifact.
type ModelConfig struct {
	Artifact string `yaml:"artifact" envconfig:"ARTIFACT"`
	Type     string `yaml:"type" envconfig:"TYPE"`
}

// TrainingConfig drives cmd/train_model.
type TrainingConfig struct {
	Dataset   string  `yaml:"dataset" envconfig:"DATASET"`
	Seed      int64   `yaml:"seed" envconfig:"SEED"`
	TestRatio float64 `yaml:"test_ratio" envconfig:"TEST_RATIO"`
	SearchCV  int     `yaml:"search_cv" envconfig:"SEARCH_CV"`
	FinalCV   int     `yaml:"final_cv" envconfig:"FINAL_CV"`
	SMOTEK    int     `yaml:"smote_k" envconfig:"SMOTE_K"`
	Workers   int     `yaml:"workers" envconfig:"WORKERS"`
	// RunLog is the sqlite file recording each run. Empty disables it.
	RunLog string `yaml:"run_log" envconfig:"RUN_LOG"`
}

// GeneratorConfig drives cmd/generate_data.
type GeneratorConfig struct {
	Seed    int64  `yaml:"seed" envconfig:"SEED"`
	Samples int    `yaml:"samples" envconfig:"SAMPLES"`
	Output  string `yaml:"output" envconfig:"OUTPUT"`
}

// Default returns the built-in configuration used when no file or env override is present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            5000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    1 << 20,
			AllowedOrigins:  []string{"*"},
		},
		Log: logging.DefaultConfig(),
		Model: ModelConfig{
			Artifact: "models/model.json",
			Type:     "random_forest",
		},
		Training: TrainingConfig{
			Dataset:   "data/medical_data.csv",
			Seed:      42,
			TestRatio: 0.2,
			SearchCV:  3,
			FinalCV:   5,
			SMOTEK:    5,
			RunLog:    "data/training_runs.db",
		},
		Generator: GeneratorConfig{
			Seed:    42,
			Samples: 5000,
			Output:  "data/medical_data.csv",
		},
	}
}

// Load starts from Default, overlays path when it exists (an empty path skips the file),
// then applies MEDRISK_* environment variables, which win over the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.New("server.max_body_bytes must be positive")
	}
	if c.Model.Artifact == "" {
		return errors.New("model.artifact is required")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	t := c.Training
	if t.TestRatio <= 0 || t.TestRatio >= 1 {
		return fmt.Errorf("training.test_ratio must be in (0,1), got %v", t.TestRatio)
	}
	if t.SearchCV < 2 || t.FinalCV < 2 {
		return fmt.Errorf("training cv folds must be at least 2, got %d/%d", t.SearchCV, t.FinalCV)
	}
	if t.SMOTEK < 1 {
		return fmt.Errorf("training.smote_k must be positive, got %d", t.SMOTEK)
	}
	if c.Generator.Samples <= 0 {
		return fmt.Errorf("generator.samples must be positive, got %d", c.Generator.Samples)
	}
	return nil
}
