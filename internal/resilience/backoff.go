package resilience

import (
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Backoff computes exponential delays with an optional ceiling and jitter.
//
// The delay after attempt k (1-based) is
//
//	min(min(Base * Multiplier^(k-1), Max) * (1 ± Jitter), Max)
//
// With Jitter 0 the sequence is deterministic: Base, 2*Base, 4*Base, ...
type Backoff struct {
	Base       time.Duration
	Multiplier float64
	Max        time.Duration // 0 = no ceiling
	Jitter     float64       // fraction in [0, 1]
}

// NewBackoff creates a doubling backoff.
func NewBackoff(base, maxDelay time.Duration, jitter float64) *Backoff {
	return &Backoff{
		Base:       base,
		Multiplier: 2.0,
		Max:        maxDelay,
		Jitter:     jitter,
	}
}

// policy builds a fresh exponential schedule. Elapsed-time stopping is
// disabled; the invoker bounds attempts itself.
func (b *Backoff) policy() *backoff.ExponentialBackOff {
	mult := b.Multiplier
	if mult <= 0 {
		mult = 2.0
	}
	ceiling := b.Max
	if ceiling <= 0 {
		ceiling = time.Duration(math.MaxInt64)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = b.Base
	eb.Multiplier = mult
	eb.MaxInterval = ceiling
	eb.RandomizationFactor = b.Jitter
	eb.MaxElapsedTime = 0
	eb.Reset()
	return eb
}

// Delay returns the wait after the given attempt (1-based).
func (b *Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	eb := b.policy()
	var delay time.Duration
	for i := 0; i < attempt; i++ {
		delay = eb.NextBackOff()
	}

	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

// WithHint applies a server retry-after hint on top of the computed delay.
func (b *Backoff) WithHint(delay, hint time.Duration) time.Duration {
	if hint <= delay {
		return delay
	}
	if b.Max > 0 && hint > b.Max {
		return b.Max
	}
	return hint
}
