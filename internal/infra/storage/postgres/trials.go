package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/vietddude/ragtrial/internal/core/domain"
	"github.com/vietddude/ragtrial/internal/infra/storage"
)

const trialColumns = `id, config_path, qa_path, corpus_path, project_dir, device, evaluator,
		outcome, attempts, credentials, error_msg, started_at, finished_at`

// TrialRepo implements storage.TrialRepository using PostgreSQL.
type TrialRepo struct {
	db *DB
}

// NewTrialRepo creates a new PostgreSQL trial repository.
func NewTrialRepo(db *DB) *TrialRepo {
	return &TrialRepo{db: db}
}

type trialRow struct {
	ID          string         `db:"id"`
	ConfigPath  string         `db:"config_path"`
	QAPath      string         `db:"qa_path"`
	CorpusPath  string         `db:"corpus_path"`
	ProjectDir  string         `db:"project_dir"`
	Device      string         `db:"device"`
	Evaluator   string         `db:"evaluator"`
	Outcome     string         `db:"outcome"`
	Attempts    int            `db:"attempts"`
	Credentials pq.StringArray `db:"credentials"`
	ErrorMsg    string         `db:"error_msg"`
	StartedAt   time.Time      `db:"started_at"`
	FinishedAt  time.Time      `db:"finished_at"`
}

func (r trialRow) toDomain() *domain.TrialRecord {
	return &domain.TrialRecord{
		ID:          r.ID,
		ConfigPath:  r.ConfigPath,
		QAPath:      r.QAPath,
		CorpusPath:  r.CorpusPath,
		ProjectDir:  r.ProjectDir,
		Device:      r.Device,
		Evaluator:   r.Evaluator,
		Outcome:     domain.TrialOutcome(r.Outcome),
		Attempts:    r.Attempts,
		Credentials: []string(r.Credentials),
		Error:       r.ErrorMsg,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
	}
}

// Save inserts or replaces a trial.
func (r *TrialRepo) Save(ctx context.Context, t *domain.TrialRecord) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("trial record requires an id")
	}

	query := `
		INSERT INTO trials (` + trialColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			outcome = EXCLUDED.outcome,
			attempts = EXCLUDED.attempts,
			credentials = EXCLUDED.credentials,
			error_msg = EXCLUDED.error_msg,
			finished_at = EXCLUDED.finished_at
	`
	_, err := r.db.ExecContext(
		ctx,
		query,
		t.ID,
		t.ConfigPath,
		t.QAPath,
		t.CorpusPath,
		t.ProjectDir,
		t.Device,
		t.Evaluator,
		string(t.Outcome),
		t.Attempts,
		pq.Array(t.Credentials),
		t.Error,
		t.StartedAt,
		t.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save trial: %w", err)
	}
	return nil
}

// Get retrieves a trial by ID.
func (r *TrialRepo) Get(ctx context.Context, id string) (*domain.TrialRecord, error) {
	query := `SELECT ` + trialColumns + ` FROM trials WHERE id = $1`

	var row trialRow
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrTrialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trial: %w", err)
	}
	return row.toDomain(), nil
}

// List returns the newest trials first.
func (r *TrialRepo) List(ctx context.Context, limit int) ([]*domain.TrialRecord, error) {
	query := `SELECT ` + trialColumns + ` FROM trials ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	var rows []trialRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list trials: %w", err)
	}

	trials := make([]*domain.TrialRecord, len(rows))
	for i, row := range rows {
		trials[i] = row.toDomain()
	}
	return trials, nil
}

// DeleteBefore removes trials started before t.
func (r *TrialRepo) DeleteBefore(ctx context.Context, t time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM trials WHERE started_at < $1`, t)
	if err != nil {
		return 0, fmt.Errorf("failed to delete trials: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted trials: %w", err)
	}
	return int(n), nil
}
