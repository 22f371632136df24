package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/ragtrial/internal/core/domain"
	"github.com/vietddude/ragtrial/internal/infra/storage"
)

// TrialRepo implements storage.TrialRepository using Redis.
// IDs live in a list (newest first) and records in a hash keyed by ID.
type TrialRepo struct {
	client *Client
}

// NewTrialRepo creates a new Redis-backed trial repository.
func NewTrialRepo(client *Client) *TrialRepo {
	return &TrialRepo{client: client}
}

// Save stores the record and trims the ledger to the configured size.
func (r *TrialRepo) Save(ctx context.Context, trial *domain.TrialRecord) error {
	if trial == nil || trial.ID == "" {
		return fmt.Errorf("trial record requires an id")
	}

	data, err := json.Marshal(trial)
	if err != nil {
		return fmt.Errorf("failed to marshal trial: %w", err)
	}

	c := r.client
	existed, err := c.rdb.HExists(ctx, c.dataKey(), trial.ID).Result()
	if err != nil {
		return fmt.Errorf("hexists failed: %w", err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, c.dataKey(), trial.ID, data)
	if !existed {
		pipe.LPush(ctx, c.indexKey(), trial.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save trial: %w", err)
	}

	return r.trim(ctx)
}

func (r *TrialRepo) trim(ctx context.Context) error {
	c := r.client
	if c.max <= 0 {
		return nil
	}

	stale, err := c.rdb.LRange(ctx, c.indexKey(), c.max, -1).Result()
	if err != nil {
		return fmt.Errorf("lrange failed: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	pipe := c.rdb.TxPipeline()
	pipe.LTrim(ctx, c.indexKey(), 0, c.max-1)
	pipe.HDel(ctx, c.dataKey(), stale...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to trim ledger: %w", err)
	}
	return nil
}

// Get retrieves a trial by ID.
func (r *TrialRepo) Get(ctx context.Context, id string) (*domain.TrialRecord, error) {
	data, err := r.client.rdb.HGet(ctx, r.client.dataKey(), id).Bytes()
	if err == redis.Nil {
		return nil, storage.ErrTrialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("hget failed: %w", err)
	}

	var trial domain.TrialRecord
	if err := json.Unmarshal(data, &trial); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trial: %w", err)
	}
	return &trial, nil
}

// List returns the newest trials first.
func (r *TrialRepo) List(ctx context.Context, limit int) ([]*domain.TrialRecord, error) {
	c := r.client
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	ids, err := c.rdb.LRange(ctx, c.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange failed: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	values, err := c.rdb.HMGet(ctx, c.dataKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("hmget failed: %w", err)
	}

	trials := make([]*domain.TrialRecord, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// Index entry without data
			continue
		}
		var trial domain.TrialRecord
		if err := json.Unmarshal([]byte(s), &trial); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trial: %w", err)
		}
		trials = append(trials, &trial)
	}
	return trials, nil
}

// DeleteBefore removes trials started before t.
func (r *TrialRepo) DeleteBefore(ctx context.Context, t time.Time) (int, error) {
	trials, err := r.List(ctx, 0)
	if err != nil {
		return 0, err
	}

	c := r.client
	pipe := c.rdb.TxPipeline()
	n := 0
	for _, trial := range trials {
		if !trial.StartedAt.Before(t) {
			continue
		}
		pipe.HDel(ctx, c.dataKey(), trial.ID)
		pipe.LRem(ctx, c.indexKey(), 0, trial.ID)
		n++
	}
	if n == 0 {
		return 0, nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to delete trials: %w", err)
	}
	return n, nil
}
