package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	redisclient "github.com/vietddude/ragtrial/internal/infra/redis"
	"github.com/vietddude/ragtrial/internal/infra/storage"
	"github.com/vietddude/ragtrial/internal/infra/storage/memory"
	"github.com/vietddude/ragtrial/internal/infra/storage/postgres"
)

// LedgerConfig selects and configures the trial ledger.
type LedgerConfig struct {
	Backend   string
	Retention time.Duration // trials older than this are pruned, 0 = keep
	Redis     redisclient.Config
	Database  postgres.Config
}

// Ledger is an opened trial repository together with its connection.
type Ledger struct {
	storage.TrialRepository
	Backend string

	health func(ctx context.Context) error
	close  func() error
}

// OpenLedger connects the configured backend. Postgres schemas are migrated
// on open.
func OpenLedger(ctx context.Context, cfg LedgerConfig) (*Ledger, error) {
	switch cfg.Backend {
	case "", storage.BackendMemory:
		slog.Info("Using memory trial ledger")
		return &Ledger{
			TrialRepository: memory.NewTrialRepo(),
			Backend:         storage.BackendMemory,
		}, nil

	case storage.BackendRedis:
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		slog.Info("Using Redis trial ledger")
		return &Ledger{
			TrialRepository: redisclient.NewTrialRepo(client),
			Backend:         storage.BackendRedis,
			health:          client.Health,
			close:           client.Close,
		}, nil

	case storage.BackendPostgres:
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		db.StartMetricsCollector(ctx)
		slog.Info("Using PostgreSQL trial ledger")
		return &Ledger{
			TrialRepository: postgres.NewTrialRepo(db),
			Backend:         storage.BackendPostgres,
			health:          db.Health,
			close:           db.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Health checks the backend connection.
func (l *Ledger) Health(ctx context.Context) error {
	if l.health == nil {
		return nil
	}
	return l.health(ctx)
}

// Close releases the backend connection.
func (l *Ledger) Close() error {
	if l.close == nil {
		return nil
	}
	return l.close()
}
