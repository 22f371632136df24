package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/vietddude/ragtrial/internal/core/domain"
	"github.com/vietddude/ragtrial/internal/infra/storage"
)

var _ storage.TrialRepository = (*TrialRepo)(nil)

var columns = []string{
	"id", "config_path", "qa_path", "corpus_path", "project_dir", "device", "evaluator",
	"outcome", "attempts", "credentials", "error_msg", "started_at", "finished_at",
}

func newMockRepo(t *testing.T) (*TrialRepo, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewTrialRepo(NewDBFrom(sqlDB, "pgx")), mock
}

func TestTrialRepo_Save(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectExec("INSERT INTO trials").
		WithArgs(
			"t1", "config.yaml", "qa.parquet", "corpus.parquet", "benchmark", "cpu", "command",
			"succeeded", 2, sqlmock.AnyArg(), "", sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Save(context.Background(), &domain.TrialRecord{
		ID:          "t1",
		ConfigPath:  "config.yaml",
		QAPath:      "qa.parquet",
		CorpusPath:  "corpus.parquet",
		ProjectDir:  "benchmark",
		Device:      "cpu",
		Evaluator:   "command",
		Outcome:     domain.OutcomeSucceeded,
		Attempts:    2,
		Credentials: []string{"sk-...aaaa", "sk-...bbbb"},
		StartedAt:   now,
		FinishedAt:  now.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestTrialRepo_Get(t *testing.T) {
	repo, mock := newMockRepo(t)
	started := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM trials WHERE id = \\$1").
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			"t1", "config.yaml", "qa.parquet", "corpus.parquet", "benchmark", "cuda", "grpc",
			"rate_limited", 6, []byte(`{"sk-...aaaa","sk-...bbbb"}`), "retries exhausted",
			started, started.Add(10*time.Minute),
		))

	got, err := repo.Get(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Outcome != domain.OutcomeRateLimited || got.Attempts != 6 {
		t.Errorf("Unexpected trial: %+v", got)
	}
	if len(got.Credentials) != 2 || got.Credentials[1] != "sk-...bbbb" {
		t.Errorf("Unexpected credentials: %v", got.Credentials)
	}
	if got.Duration() != 10*time.Minute {
		t.Errorf("Expected 10m duration, got %s", got.Duration())
	}
}

func TestTrialRepo_GetNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM trials WHERE id").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(columns))

	if _, err := repo.Get(context.Background(), "nope"); !errors.Is(err, storage.ErrTrialNotFound) {
		t.Errorf("Expected ErrTrialNotFound, got %v", err)
	}
}

func TestTrialRepo_List(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM trials ORDER BY started_at DESC LIMIT \\$1").
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("b", "c", "q", "k", "p", "cpu", "command", "failed", 1, []byte(`{}`), "boom", now, now).
			AddRow("a", "c", "q", "k", "p", "cpu", "command", "succeeded", 1, []byte(`{x}`), "", now, now))

	list, err := repo.List(context.Background(), 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != "b" || list[0].Error != "boom" {
		t.Errorf("Unexpected list: %+v", list)
	}
}

func TestTrialRepo_DeleteBefore(t *testing.T) {
	repo, mock := newMockRepo(t)
	cutoff := time.Now().Add(-7 * 24 * time.Hour)

	mock.ExpectExec("DELETE FROM trials WHERE started_at < \\$1").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteBefore(context.Background(), cutoff)
	if err != nil || n != 4 {
		t.Errorf("Expected 4 deleted, got %d (%v)", n, err)
	}
}

func TestNewDB_Validation(t *testing.T) {
	if _, err := NewDB(context.Background(), Config{Driver: "mysql", URL: "x"}); err == nil {
		t.Error("Expected unsupported driver error")
	}
	if _, err := NewDB(context.Background(), Config{}); err == nil {
		t.Error("Expected missing url error")
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{}.WithDefaults()
	if cfg.Driver != "pgx" || cfg.MaxConns != 10 || cfg.MinConns != 2 {
		t.Errorf("Unexpected defaults: %+v", cfg)
	}
}
