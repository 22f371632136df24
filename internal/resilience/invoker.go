// Package resilience wraps a single blocking call so that rate-limit failures
// are absorbed by rotating credentials and backing off.
//
// This package contains:
//   - Invoker: bounded retry loop with credential rotation
//   - Backoff: exponential delay policy with ceiling and jitter
//   - Classify: maps operation errors to retry decisions
//   - ValidTransitions: the invocation state machine
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/ragtrial/internal/core/domain"
	"github.com/vietddude/ragtrial/internal/credential"
	"github.com/vietddude/ragtrial/internal/metrics"
)

// Operation is the wrapped external call. It receives the active credential
// explicitly; it must not read it from shared process state.
type Operation func(ctx context.Context, cred string) error

// Config defines retry behavior.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64

	// SwallowErrors reproduces the legacy driver: terminal failures are
	// logged and Invoke returns a nil error. Result still carries them.
	SwallowErrors bool
}

// DefaultConfig provides the recommended defaults.
var DefaultConfig = Config{
	MaxAttempts: 6,
	BaseDelay:   5 * time.Second,
	MaxDelay:    2 * time.Minute,
}

// Validate rejects configurations the invoker cannot honor.
func (c Config) Validate() error {
	if c.MaxAttempts < 0 {
		return fmt.Errorf("max attempts must be positive, got %d", c.MaxAttempts)
	}
	if c.BaseDelay < 0 {
		return fmt.Errorf("base delay must be positive, got %s", c.BaseDelay)
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		return fmt.Errorf("jitter must be within [0, 1], got %g", c.Jitter)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultConfig.MaxAttempts
	}
	if c.BaseDelay == 0 {
		c.BaseDelay = DefaultConfig.BaseDelay
	}
	return c
}

// Attempt records one call of the operation.
type Attempt struct {
	Number     int
	Credential string // masked
	Class      Class
	Err        error
	Delay      time.Duration // wait that followed this attempt
	StartedAt  time.Time
	Duration   time.Duration
}

// Result is the explicit outcome of an invocation.
type Result struct {
	Outcome  domain.TrialOutcome
	Attempts []Attempt
	Err      error
}

// Credentials returns the masked credential used by each attempt, in order.
func (r Result) Credentials() []string {
	out := make([]string, len(r.Attempts))
	for i, a := range r.Attempts {
		out[i] = a.Credential
	}
	return out
}

// TotalDelay returns the time spent in backoff.
func (r Result) TotalDelay() time.Duration {
	var total time.Duration
	for _, a := range r.Attempts {
		total += a.Delay
	}
	return total
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Invoker executes an operation with credential rotation on rate limits.
type Invoker struct {
	pool    *credential.Pool
	cfg     Config
	backoff *Backoff
	sleep   SleepFunc
	log     *slog.Logger

	onTransition func(Transition)
}

// Option customizes an Invoker.
type Option func(*Invoker)

// WithSleep replaces the context-aware timer sleep.
func WithSleep(fn SleepFunc) Option {
	return func(iv *Invoker) { iv.sleep = fn }
}

// WithLogger sets the logger used for attempt reports.
func WithLogger(l *slog.Logger) Option {
	return func(iv *Invoker) { iv.log = l }
}

// NewInvoker creates an invoker bound to pool.
func NewInvoker(pool *credential.Pool, cfg Config, opts ...Option) (*Invoker, error) {
	if pool == nil {
		return nil, &credential.ConfigurationError{Reason: "credential pool is nil"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	iv := &Invoker{
		pool:    pool,
		cfg:     cfg,
		backoff: NewBackoff(cfg.BaseDelay, cfg.MaxDelay, cfg.Jitter),
		sleep:   sleepContext,
		log:     slog.Default().With("component", "invoker"),
	}
	for _, opt := range opts {
		opt(iv)
	}
	return iv, nil
}

// SetStateChangeCallback registers fn to receive every state transition.
func (iv *Invoker) SetStateChangeCallback(fn func(Transition)) {
	iv.onTransition = fn
}

// Config returns the effective configuration.
func (iv *Invoker) Config() Config {
	return iv.cfg
}

// Invoke runs op until it succeeds, fails with a non-rate-limit error, or
// MaxAttempts rate-limited attempts have been made.
func (iv *Invoker) Invoke(ctx context.Context, op Operation) (Result, error) {
	var res Result
	state := domain.InvokeStateReady

	move := func(to domain.InvokeState, attempt int, reason string) {
		t := NewTransition(state, to, attempt, reason)
		if !t.IsValid() {
			// Unreachable with the loop below; keep the report honest.
			iv.log.Error("Invalid invoke transition", "from", state, "to", to, "error", ErrInvalidTransition)
		}
		state = to
		if iv.onTransition != nil {
			iv.onTransition(t)
		}
	}

	if err := ctx.Err(); err != nil {
		move(domain.InvokeStateCanceled, 0, "context done before first attempt")
		res.Outcome = domain.OutcomeCanceled
		res.Err = err
		return res, err
	}

	for attempt := 1; ; attempt++ {
		cred := iv.pool.Current()
		metrics.ActiveCredentialIndex.Set(float64(iv.pool.Index()))
		move(domain.InvokeStateAttempting, attempt, "using "+credential.Mask(cred))

		start := time.Now()
		err := op(ctx, cred)
		a := Attempt{
			Number:     attempt,
			Credential: credential.Mask(cred),
			Err:        err,
			StartedAt:  start,
			Duration:   time.Since(start),
		}

		class, hint := Classify(err)
		a.Class = class
		metrics.AttemptsTotal.WithLabelValues(a.Credential, class.String()).Inc()

		if err == nil {
			res.Attempts = append(res.Attempts, a)
			move(domain.InvokeStateSucceeded, attempt, "operation returned")
			res.Outcome = domain.OutcomeSucceeded
			iv.log.Info("Evaluation succeeded", "attempt", attempt, "credential", a.Credential)
			return res, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			res.Attempts = append(res.Attempts, a)
			return iv.cancel(res, move, attempt, ctxErr)
		}

		if class != ClassRateLimited {
			res.Attempts = append(res.Attempts, a)
			move(domain.InvokeStateFailed, attempt, err.Error())
			res.Outcome = domain.OutcomeFailed
			res.Err = &OperationError{Attempt: attempt, Err: err}
			iv.log.Error("Evaluation failed", "attempt", attempt, "credential", a.Credential, "error", err)
			return iv.finish(res)
		}

		if attempt >= iv.cfg.MaxAttempts {
			res.Attempts = append(res.Attempts, a)
			move(domain.InvokeStateRateLimited, attempt, "attempts exhausted")
			res.Outcome = domain.OutcomeRateLimited
			res.Err = &ExhaustedError{Attempts: attempt, Last: err}
			iv.log.Error("Rate limit persisted, giving up",
				"attempts", attempt,
				"credentials", iv.pool.Size(),
				"error", err,
			)
			return iv.finish(res)
		}

		wait := iv.backoff.WithHint(iv.backoff.Delay(attempt), hint)
		a.Delay = wait
		res.Attempts = append(res.Attempts, a)
		move(domain.InvokeStateBackoff, attempt, err.Error())

		next := iv.pool.Advance()
		metrics.RotationsTotal.Inc()
		metrics.ActiveCredentialIndex.Set(float64(iv.pool.Index()))
		metrics.BackoffSeconds.Observe(wait.Seconds())

		iv.log.Warn("Rate limited, rotating credential",
			"attempt", attempt,
			"max_attempts", iv.cfg.MaxAttempts,
			"from", a.Credential,
			"to", credential.Mask(next),
			"delay", wait,
		)

		if err := iv.sleep(ctx, wait); err != nil {
			return iv.cancel(res, move, attempt, err)
		}
	}
}

func (iv *Invoker) cancel(
	res Result,
	move func(domain.InvokeState, int, string),
	attempt int,
	err error,
) (Result, error) {
	move(domain.InvokeStateCanceled, attempt, err.Error())
	res.Outcome = domain.OutcomeCanceled
	res.Err = err
	iv.log.Warn("Evaluation canceled", "attempt", attempt, "error", err)
	return res, err
}

// finish applies the legacy swallow policy to terminal failures.
func (iv *Invoker) finish(res Result) (Result, error) {
	if iv.cfg.SwallowErrors {
		return res, nil
	}
	return res, res.Err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsRetriesExhausted reports whether err came from an exhausted invocation.
func IsRetriesExhausted(err error) bool {
	return errors.Is(err, ErrRetriesExhausted)
}
