package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/ragtrial/internal/core/domain"
	"github.com/vietddude/ragtrial/internal/infra/storage"
)

// TrialRepo keeps trial records in process memory.
type TrialRepo struct {
	trials map[string]*domain.TrialRecord
	mu     sync.RWMutex
}

func NewTrialRepo() *TrialRepo {
	return &TrialRepo{
		trials: make(map[string]*domain.TrialRecord),
	}
}

func (r *TrialRepo) Save(ctx context.Context, trial *domain.TrialRecord) error {
	if trial == nil || trial.ID == "" {
		return fmt.Errorf("trial record requires an id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trials[trial.ID] = clone(trial)
	return nil
}

func (r *TrialRepo) Get(ctx context.Context, id string) (*domain.TrialRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.trials[id]
	if !ok {
		return nil, storage.ErrTrialNotFound
	}
	return clone(t), nil
}

func (r *TrialRepo) List(ctx context.Context, limit int) ([]*domain.TrialRecord, error) {
	r.mu.RLock()
	out := make([]*domain.TrialRecord, 0, len(r.trials))
	for _, t := range r.trials {
		out = append(out, clone(t))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *TrialRepo) DeleteBefore(ctx context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, t := range r.trials {
		if t.StartedAt.Before(before) {
			delete(r.trials, id)
			n++
		}
	}
	return n, nil
}

func clone(t *domain.TrialRecord) *domain.TrialRecord {
	c := *t
	c.Credentials = append([]string(nil), t.Credentials...)
	return &c
}
