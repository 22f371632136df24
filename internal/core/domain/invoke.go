package domain

// InvokeState is the state of a resilient invocation.
type InvokeState string

const (
	InvokeStateReady       InvokeState = "ready"
	InvokeStateAttempting  InvokeState = "attempting"
	InvokeStateBackoff     InvokeState = "backoff"
	InvokeStateSucceeded   InvokeState = "succeeded"
	InvokeStateRateLimited InvokeState = "failed_rate_limited"
	InvokeStateFailed      InvokeState = "failed_other"
	InvokeStateCanceled    InvokeState = "canceled"
)

// IsTerminal reports whether no further transition can leave the state.
func (s InvokeState) IsTerminal() bool {
	switch s {
	case InvokeStateSucceeded, InvokeStateRateLimited, InvokeStateFailed, InvokeStateCanceled:
		return true
	default:
		return false
	}
}

// Outcome maps a terminal state to the trial outcome recorded in the ledger.
func (s InvokeState) Outcome() TrialOutcome {
	switch s {
	case InvokeStateSucceeded:
		return OutcomeSucceeded
	case InvokeStateRateLimited:
		return OutcomeRateLimited
	case InvokeStateCanceled:
		return OutcomeCanceled
	default:
		return OutcomeFailed
	}
}
