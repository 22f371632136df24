package control

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/ragtrial/internal/core/domain"
	"github.com/vietddude/ragtrial/internal/credential"
	"github.com/vietddude/ragtrial/internal/dataset"
	"github.com/vietddude/ragtrial/internal/device"
	"github.com/vietddude/ragtrial/internal/evaluator"
	"github.com/vietddude/ragtrial/internal/health"
	"github.com/vietddude/ragtrial/internal/infra/storage"
	"github.com/vietddude/ragtrial/internal/metrics"
	"github.com/vietddude/ragtrial/internal/resilience"
)

const saveTimeout = 10 * time.Second

// Runner drives one evaluation trial through the resilient invoker and
// records the outcome in the trial ledger.
type Runner struct {
	pool      *credential.Pool
	invoker   *resilience.Invoker
	evaluator evaluator.Evaluator
	ledger    storage.TrialRepository
	backend   string
	paths     dataset.Paths
	device    device.Device
	log       *slog.Logger

	newID func() string

	mu     sync.RWMutex
	status runStatus
}

type runStatus struct {
	trialID    string
	state      domain.InvokeState
	detail     string
	attempt    int
	credential string
	ledgerErr  error
	updatedAt  time.Time
}

// RunnerConfig holds the per-trial inputs.
type RunnerConfig struct {
	Paths   dataset.Paths
	Device  device.Device
	Backend string // ledger backend name, for metrics
}

// NewRunner creates a runner. The runner subscribes to the invoker's state
// changes to serve health reports.
func NewRunner(
	pool *credential.Pool,
	invoker *resilience.Invoker,
	ev evaluator.Evaluator,
	ledger storage.TrialRepository,
	cfg RunnerConfig,
) *Runner {
	r := &Runner{
		pool:      pool,
		invoker:   invoker,
		evaluator: ev,
		ledger:    ledger,
		backend:   cfg.Backend,
		paths:     cfg.Paths,
		device:    cfg.Device,
		log:       slog.Default().With("component", "runner"),
		newID:     uuid.NewString,
		status: runStatus{
			state:     domain.InvokeStateReady,
			updatedAt: time.Now(),
		},
	}
	invoker.SetStateChangeCallback(r.onTransition)
	return r
}

func (r *Runner) onTransition(t resilience.Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.state = t.To
	r.status.detail = t.Reason
	r.status.attempt = t.Attempt
	r.status.credential = credential.Mask(r.pool.Current())
	r.status.updatedAt = t.Timestamp

	r.log.Debug("Invoke state changed",
		"from", t.From,
		"to", t.To,
		"attempt", t.Attempt,
		"state", resilience.StateDescription(t.To),
	)
}

// Run validates the inputs, invokes the evaluator and persists the trial.
// The returned record is nil only when validation fails.
func (r *Runner) Run(ctx context.Context) (*domain.TrialRecord, error) {
	if err := r.paths.Validate(); err != nil {
		return nil, fmt.Errorf("invalid trial inputs: %w", err)
	}
	if err := r.paths.EnsureProjectDir(); err != nil {
		return nil, err
	}

	record := &domain.TrialRecord{
		ID:         r.newID(),
		ConfigPath: r.paths.Config,
		QAPath:     r.paths.QA,
		CorpusPath: r.paths.Corpus,
		ProjectDir: r.paths.ProjectDir,
		Device:     string(r.device),
		Evaluator:  r.evaluator.Name(),
		StartedAt:  time.Now(),
	}

	r.mu.Lock()
	r.status.trialID = record.ID
	r.mu.Unlock()

	r.log.Info("Starting evaluation trial",
		"trial", record.ID,
		"evaluator", record.Evaluator,
		"device", record.Device,
		"credentials", r.pool.Size(),
		"project_dir", record.ProjectDir,
	)

	res, err := r.invoker.Invoke(ctx, func(ctx context.Context, cred string) error {
		return r.evaluator.StartTrial(ctx, evaluator.Trial{
			ConfigPath: r.paths.Config,
			QAPath:     r.paths.QA,
			CorpusPath: r.paths.Corpus,
			ProjectDir: r.paths.ProjectDir,
			Device:     string(r.device),
			Credential: cred,
		})
	})

	record.FinishedAt = time.Now()
	record.Outcome = res.Outcome
	record.Attempts = len(res.Attempts)
	record.Credentials = res.Credentials()
	if res.Err != nil {
		record.Error = res.Err.Error()
	}

	metrics.TrialsTotal.WithLabelValues(string(record.Outcome), record.Evaluator).Inc()
	metrics.TrialDuration.WithLabelValues(record.Evaluator).Observe(record.Duration().Seconds())

	r.save(ctx, record)

	r.log.Info("Evaluation trial finished",
		"trial", record.ID,
		"outcome", record.Outcome,
		"attempts", record.Attempts,
		"waited", res.TotalDelay(),
		"duration", record.Duration(),
	)
	return record, err
}

// save writes the record even when ctx is already canceled. Ledger failures
// are reported but never change the trial result.
func (r *Runner) save(ctx context.Context, record *domain.TrialRecord) {
	if r.ledger == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()

	err := r.ledger.Save(saveCtx, record)

	r.mu.Lock()
	r.status.ledgerErr = err
	r.mu.Unlock()

	if err != nil {
		metrics.LedgerErrorsTotal.WithLabelValues(r.backend).Inc()
		r.log.Error("Failed to record trial", "trial", record.ID, "backend", r.backend, "error", err)
	}
}

// Report implements health.Reporter.
func (r *Runner) Report(ctx context.Context) health.Report {
	r.mu.RLock()
	st := r.status
	r.mu.RUnlock()

	report := health.Report{
		Status:     health.StatusHealthy,
		TrialID:    st.trialID,
		State:      string(st.state),
		Detail:     st.detail,
		Attempt:    st.attempt,
		Credential: st.credential,
		Ledger:     r.backend,
		UpdatedAt:  st.updatedAt,
	}

	switch st.state {
	case domain.InvokeStateBackoff, domain.InvokeStateCanceled:
		report.Status = health.StatusDegraded
	case domain.InvokeStateRateLimited, domain.InvokeStateFailed:
		report.Status = health.StatusCritical
	}
	if st.ledgerErr != nil {
		report.Status = health.StatusCritical
		report.Detail = "ledger: " + st.ledgerErr.Error()
	}
	return report
}
