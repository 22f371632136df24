package resilience

import (
	"errors"
	"time"

	"github.com/vietddude/ragtrial/internal/core/domain"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// ValidTransitions defines allowed state transitions.
// Key is the current state, value is the list of valid next states.
var ValidTransitions = map[domain.InvokeState][]domain.InvokeState{
	domain.InvokeStateReady: {domain.InvokeStateAttempting, domain.InvokeStateCanceled},
	domain.InvokeStateAttempting: {
		domain.InvokeStateSucceeded,
		domain.InvokeStateBackoff,
		domain.InvokeStateRateLimited,
		domain.InvokeStateFailed,
		domain.InvokeStateCanceled,
	},
	domain.InvokeStateBackoff: {domain.InvokeStateAttempting, domain.InvokeStateCanceled},
}

// CanTransition checks if a transition from one state to another is valid.
func CanTransition(from, to domain.InvokeState) bool {
	for _, target := range ValidTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// Transition represents a state change with metadata.
type Transition struct {
	From      domain.InvokeState
	To        domain.InvokeState
	Attempt   int
	Reason    string
	Timestamp time.Time
}

// NewTransition creates a new transition record.
func NewTransition(from, to domain.InvokeState, attempt int, reason string) Transition {
	return Transition{
		From:      from,
		To:        to,
		Attempt:   attempt,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// IsValid returns true if this transition is allowed by the state machine.
func (t Transition) IsValid() bool {
	return CanTransition(t.From, t.To)
}

// StateDescription returns a human-readable description of a state.
func StateDescription(s domain.InvokeState) string {
	switch s {
	case domain.InvokeStateReady:
		return "Ready - no attempt made yet"
	case domain.InvokeStateAttempting:
		return "Attempting - evaluation call in progress"
	case domain.InvokeStateBackoff:
		return "Backoff - rate limited, waiting before the next credential"
	case domain.InvokeStateSucceeded:
		return "Succeeded - evaluation finished"
	case domain.InvokeStateRateLimited:
		return "Failed - still rate limited after the last attempt"
	case domain.InvokeStateFailed:
		return "Failed - evaluation returned a non-recoverable error"
	case domain.InvokeStateCanceled:
		return "Canceled - stopped by signal or deadline"
	default:
		return "Unknown state"
	}
}
