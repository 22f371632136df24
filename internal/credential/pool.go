// Package credential manages the rotating pool of API credentials handed to the
// evaluation engine.
//
// This package contains:
//   - Pool: ordered credentials with a cyclic cursor
//   - ConfigurationError: raised when the pool cannot be built
//   - FromEnv/Load: reading credentials from the process environment
package credential

import (
	"fmt"
	"strings"
	"sync"
)

// Pool holds an ordered list of credentials and the index of the active one.
// The index is always in [0, Size()); rotation wraps around.
type Pool struct {
	mu    sync.RWMutex
	creds []string
	index int
}

// NewPool creates a pool positioned at the first credential.
func NewPool(creds []string) (*Pool, error) {
	if len(creds) == 0 {
		return nil, &ConfigurationError{Reason: "credential pool is empty"}
	}
	for i, c := range creds {
		if strings.TrimSpace(c) == "" {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("credential #%d is unset", i+1)}
		}
	}

	owned := make([]string, len(creds))
	copy(owned, creds)
	return &Pool{creds: owned}, nil
}

// Current returns the active credential.
func (p *Pool) Current() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.creds[p.index]
}

// Advance rotates to the next credential and returns it.
func (p *Pool) Advance() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.index = (p.index + 1) % len(p.creds)
	return p.creds[p.index]
}

// Index returns the position of the active credential.
func (p *Pool) Index() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.index
}

// Size returns the number of credentials in the pool.
func (p *Pool) Size() int {
	return len(p.creds)
}

// Labels returns masked forms of every credential, in pool order.
func (p *Pool) Labels() []string {
	labels := make([]string, len(p.creds))
	for i, c := range p.creds {
		labels[i] = Mask(c)
	}
	return labels
}

// Mask shortens a credential to a form that is safe to log.
func Mask(cred string) string {
	if len(cred) <= 8 {
		return "****"
	}
	return cred[:3] + "..." + cred[len(cred)-4:]
}
