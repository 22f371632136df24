package domain

import "time"

// TrialOutcome is the terminal result of one evaluation trial.
type TrialOutcome string

const (
	OutcomeSucceeded   TrialOutcome = "succeeded"
	OutcomeRateLimited TrialOutcome = "rate_limited" // attempts exhausted while still rate limited
	OutcomeFailed      TrialOutcome = "failed"       // non-recoverable engine error
	OutcomeCanceled    TrialOutcome = "canceled"
)

// IsFailure reports whether the outcome should make the driver exit non-zero.
func (o TrialOutcome) IsFailure() bool {
	return o != OutcomeSucceeded
}

// TrialRecord is the ledger entry written once a trial finishes.
type TrialRecord struct {
	ID          string       `json:"id"`
	ConfigPath  string       `json:"config_path"`
	QAPath      string       `json:"qa_path"`
	CorpusPath  string       `json:"corpus_path"`
	ProjectDir  string       `json:"project_dir"`
	Device      string       `json:"device"`
	Evaluator   string       `json:"evaluator"`
	Outcome     TrialOutcome `json:"outcome"`
	Attempts    int          `json:"attempts"`
	Credentials []string     `json:"credentials"` // masked labels, in the order they were used
	Error       string       `json:"error,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
}

// Duration returns the wall time of the trial including backoff waits.
func (r *TrialRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
