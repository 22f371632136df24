package resilience

import (
	"errors"
	"fmt"
	"time"
)

// ErrRetriesExhausted matches every *ExhaustedError via errors.Is.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RateLimitError marks a failure as recoverable by rotating credentials.
// Evaluators return it when the engine reports an exceeded quota.
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration // server hint, 0 when absent
}

// RateLimited wraps err as a *RateLimitError.
func RateLimited(err error, retryAfter time.Duration) error {
	if err == nil {
		err = errors.New("rate limit exceeded")
	}
	return &RateLimitError{Err: err, RetryAfter: retryAfter}
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// ExhaustedError is returned when every attempt was rate limited.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("still rate limited after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Is makes errors.Is(err, ErrRetriesExhausted) true.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrRetriesExhausted
}

// OperationError wraps a non-recoverable failure of the wrapped operation.
type OperationError struct {
	Attempt int
	Err     error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("attempt %d failed: %v", e.Attempt, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }
