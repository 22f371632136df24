// Package evaluator implements the external evaluation engine as seen by the
// trial driver.
//
// This package contains:
//   - Evaluator interface: starts one evaluation trial with an explicit credential
//   - CommandEvaluator: runs the engine CLI as a child process
//   - HTTPEvaluator: calls an engine service over HTTP
//   - GRPCEvaluator: calls an engine service over gRPC
//
// Every implementation reports quota exhaustion as a resilience.RateLimitError
// (or a gRPC ResourceExhausted status) so the invoker can rotate credentials.
package evaluator

import (
	"context"
	"fmt"
	"time"
)

// Kinds of evaluator transport.
const (
	KindCommand = "command"
	KindHTTP    = "http"
	KindGRPC    = "grpc"
)

// Trial carries everything one evaluation run needs.
type Trial struct {
	ConfigPath string
	QAPath     string
	CorpusPath string
	ProjectDir string
	Device     string
	Credential string
}

// Evaluator starts evaluation trials.
type Evaluator interface {
	// Name identifies the transport in logs and metrics
	Name() string

	// StartTrial blocks until the engine finishes the trial
	StartTrial(ctx context.Context, t Trial) error

	// Close cleans up resources
	Close() error
}

// Config selects and configures the evaluator.
type Config struct {
	Kind              string        `yaml:"kind"`
	Command           []string      `yaml:"command"`              // argv prefix for KindCommand
	Endpoint          string        `yaml:"endpoint"`             // base URL or host:port
	Method            string        `yaml:"method"`               // gRPC full method name
	Timeout           time.Duration `yaml:"timeout"`              // per attempt, 0 = none
	CredentialEnv     string        `yaml:"credential_env"`       // child env var receiving the key
	DeviceEnv         string        `yaml:"device_env"`           // child env var receiving the device
	RateLimitExitCode int           `yaml:"rate_limit_exit_code"` // 0 = only pattern detection
	KillGrace         time.Duration `yaml:"kill_grace"`           // wait for output after exit or cancel
}

// WithDefaults fills unset fields.
func (c Config) WithDefaults() Config {
	if c.Kind == "" {
		c.Kind = KindCommand
	}
	if len(c.Command) == 0 {
		c.Command = []string{"autorag", "evaluate"}
	}
	if c.Method == "" {
		c.Method = "/ragtrial.v1.Evaluator/StartTrial"
	}
	if c.CredentialEnv == "" {
		c.CredentialEnv = "OPENAI_API_KEY"
	}
	if c.DeviceEnv == "" {
		c.DeviceEnv = "EVAL_DEVICE"
	}
	if c.KillGrace <= 0 {
		c.KillGrace = 5 * time.Second
	}
	return c
}

// New creates the evaluator selected by cfg.Kind.
func New(cfg Config) (Evaluator, error) {
	cfg = cfg.WithDefaults()

	switch cfg.Kind {
	case KindCommand:
		return NewCommandEvaluator(cfg), nil
	case KindHTTP:
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("http evaluator requires an endpoint")
		}
		return NewHTTPEvaluator(cfg), nil
	case KindGRPC:
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("grpc evaluator requires an endpoint")
		}
		ev, err := NewGRPCEvaluator(cfg)
		if err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown evaluator kind %q", cfg.Kind)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
