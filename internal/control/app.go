package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vietddude/ragtrial/internal/core/domain"
	"github.com/vietddude/ragtrial/internal/core/worker"
	"github.com/vietddude/ragtrial/internal/credential"
	"github.com/vietddude/ragtrial/internal/dataset"
	"github.com/vietddude/ragtrial/internal/device"
	"github.com/vietddude/ragtrial/internal/evaluator"
	"github.com/vietddude/ragtrial/internal/health"
	"github.com/vietddude/ragtrial/internal/resilience"
)

// App wires the credential pool, invoker, evaluator, ledger and health
// server for one driver run.
type App struct {
	cfg          Config
	pool         *credential.Pool
	evaluator    evaluator.Evaluator
	ledger       *Ledger
	runner       *Runner
	healthServer *health.Server
	pruner       *worker.Pruner
	log          *slog.Logger
}

// Config holds the application configuration.
type Config struct {
	Port        int // health server, 0 = disabled
	Credentials credential.Source
	Retry       resilience.Config
	Evaluator   evaluator.Config
	Paths       dataset.Paths
	Device      string
	Ledger      LedgerConfig

	// Optional overrides, mostly for tests
	Lookup       credential.LookupFunc // nil reads the process environment
	NewEvaluator func(evaluator.Config) (evaluator.Evaluator, error)
	InvokeOpts   []resilience.Option
}

// NewApp creates an App with all dependencies initialized. Configuration
// errors surface here, before any evaluation attempt.
func NewApp(ctx context.Context, cfg Config) (*App, error) {
	pool, err := credential.Load(cfg.Credentials, cfg.Lookup)
	if err != nil {
		return nil, err
	}

	dev, err := device.Resolve(cfg.Device)
	if err != nil {
		return nil, err
	}

	invoker, err := resilience.NewInvoker(pool, cfg.Retry, cfg.InvokeOpts...)
	if err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}

	newEvaluator := cfg.NewEvaluator
	if newEvaluator == nil {
		newEvaluator = evaluator.New
	}
	ev, err := newEvaluator(cfg.Evaluator)
	if err != nil {
		return nil, fmt.Errorf("failed to init evaluator: %w", err)
	}

	ledger, err := OpenLedger(ctx, cfg.Ledger)
	if err != nil {
		_ = ev.Close()
		return nil, err
	}

	runner := NewRunner(pool, invoker, ev, ledger, RunnerConfig{
		Paths:   cfg.Paths,
		Device:  dev,
		Backend: ledger.Backend,
	})

	app := &App{
		cfg:       cfg,
		pool:      pool,
		evaluator: ev,
		ledger:    ledger,
		runner:    runner,
		pruner:    worker.NewPruner(cfg.Ledger.Retention, ledger),
		log:       slog.Default().With("component", "app"),
	}
	if cfg.Port > 0 {
		app.healthServer = health.NewServer(runner, cfg.Port)
	}
	return app, nil
}

// Start starts background components.
func (a *App) Start(ctx context.Context) error {
	if a.healthServer != nil {
		go func() {
			if err := a.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("Health server failed", "error", err)
			}
		}()
		a.log.Info("Health server listening", "port", a.cfg.Port)
	}

	// Start Pruner
	go a.pruner.Start(ctx)
	return nil
}

// Run drives the trial.
func (a *App) Run(ctx context.Context) (*domain.TrialRecord, error) {
	return a.runner.Run(ctx)
}

// Runner returns the trial runner.
func (a *App) Runner() *Runner {
	return a.runner
}

// Ledger returns the opened trial ledger.
func (a *App) Ledger() *Ledger {
	return a.ledger
}

// Stop releases everything NewApp acquired.
func (a *App) Stop(ctx context.Context) error {
	var errs []error
	if a.healthServer != nil {
		if err := a.healthServer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("health server: %w", err))
		}
	}
	if err := a.evaluator.Close(); err != nil {
		errs = append(errs, fmt.Errorf("evaluator: %w", err))
	}
	if err := a.ledger.Close(); err != nil {
		errs = append(errs, fmt.Errorf("ledger: %w", err))
	}
	return errors.Join(errs...)
}
