package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Defaults used when neither the settings file nor flags provide a value.
const (
	DefaultQAPath      = "data/generate_QA.parquet"
	DefaultCorpusPath  = "data/generate_Corpus.parquet"
	DefaultProjectDir  = "benchmark"
	DefaultMaxAttempts = 6
	DefaultBaseDelay   = 5 * time.Second
	DefaultMaxDelay    = 2 * time.Minute
)

// DefaultPath is the settings file used when none is named.
const DefaultPath = "ragtrial.yaml"

// LoadSettings is Load for command-line tools: a missing DefaultPath yields
// defaults, while any other missing path is an error.
func LoadSettings(path string) (*AppConfig, error) {
	if path == DefaultPath {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return Load("")
		}
	}
	return Load(path)
}

// Load reads configuration from a YAML file. An empty path yields defaults.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Expand environment variables in the YAML content
		expandedData := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Credentials.MinCount == 0 {
		cfg.Credentials.MinCount = 2
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = DefaultBaseDelay
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = DefaultMaxDelay
	}

	if cfg.Data.QA == "" {
		cfg.Data.QA = DefaultQAPath
	}
	if cfg.Data.Corpus == "" {
		cfg.Data.Corpus = DefaultCorpusPath
	}
	if cfg.Data.ProjectDir == "" {
		cfg.Data.ProjectDir = DefaultProjectDir
	}

	if cfg.Device == "" {
		cfg.Device = "auto"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
	}

	cfg.Evaluator = cfg.Evaluator.WithDefaults()
	cfg.Redis = cfg.Redis.WithDefaults()
	cfg.Database = cfg.Database.WithDefaults()
}
