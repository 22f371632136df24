package config

import (
	"time"

	"github.com/vietddude/ragtrial/internal/evaluator"
	redisclient "github.com/vietddude/ragtrial/internal/infra/redis"
	"github.com/vietddude/ragtrial/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Credentials CredentialsConfig  `yaml:"credentials"`
	Retry       RetryConfig        `yaml:"retry"`
	Evaluator   evaluator.Config   `yaml:"evaluator"`
	Data        DataConfig         `yaml:"data"`
	Device      string             `yaml:"device"` // auto, cpu, mps, cuda
	Server      ServerConfig       `yaml:"server"`
	Logging     LoggingConfig      `yaml:"logging"`
	Storage     StorageConfig      `yaml:"storage"`
	Redis       redisclient.Config `yaml:"redis"`
	Database    postgres.Config    `yaml:"database"`
}

// CredentialsConfig describes the credential pool.
type CredentialsConfig struct {
	Env      []string `yaml:"env"`       // variable names, read after .env is loaded
	Keys     []string `yaml:"keys"`      // literal keys, usually ${VAR} references
	MinCount int      `yaml:"min_count"` // default 2
}

// RetryConfig holds resilient invoker settings.
type RetryConfig struct {
	MaxAttempts   int           `yaml:"max_attempts"`
	BaseDelay     time.Duration `yaml:"base_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	Jitter        float64       `yaml:"jitter"`         // fraction, 0 = deterministic
	SwallowErrors bool          `yaml:"swallow_errors"` // legacy: exit 0 on failure
}

// DataConfig holds the dataset and working directory paths.
type DataConfig struct {
	Config     string `yaml:"config"` // evaluation engine config
	QA         string `yaml:"qa"`
	Corpus     string `yaml:"corpus"`
	ProjectDir string `yaml:"project_dir"`
}

// ServerConfig holds the health/metrics HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"` // 0 = disabled
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// StorageConfig selects the trial ledger backend.
type StorageConfig struct {
	Backend   string        `yaml:"backend"`   // memory, redis, postgres
	Retention time.Duration `yaml:"retention"` // 0 = keep forever
}
