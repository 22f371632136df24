package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/ragtrial/internal/core/domain"
)

// Backend names accepted by storage.backend.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

var (
	// ErrTrialNotFound is returned when a trial record doesn't exist
	ErrTrialNotFound = errors.New("trial not found")
)

// TrialRepository handles trial ledger storage operations
type TrialRepository interface {
	// Save inserts or replaces a trial record
	Save(ctx context.Context, trial *domain.TrialRecord) error

	// Get retrieves a trial by ID
	Get(ctx context.Context, id string) (*domain.TrialRecord, error)

	// List returns the most recent trials first, at most limit (0 = all)
	List(ctx context.Context, limit int) ([]*domain.TrialRecord, error)

	// DeleteBefore removes trials started before t and returns how many were removed
	DeleteBefore(ctx context.Context, t time.Time) (int, error)
}
