package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/ragtrial/internal/infra/storage"
)

// Pruner deletes trial records older than the retention period.
type Pruner struct {
	retention time.Duration
	ledger    storage.TrialRepository
	now       func() time.Time
}

// NewPruner creates a new Pruner worker.
func NewPruner(retention time.Duration, ledger storage.TrialRepository) *Pruner {
	return &Pruner{
		retention: retention,
		ledger:    ledger,
		now:       time.Now,
	}
}

// Start runs the pruner loop.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	// Check every 10% of the retention period, between 1 minute and 1 hour
	interval := min(p.retention/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial prune
	p.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

// Prune deletes expired trials once and returns how many were removed.
func (p *Pruner) Prune(ctx context.Context) (int, error) {
	if p.retention <= 0 {
		return 0, nil
	}
	return p.ledger.DeleteBefore(ctx, p.now().Add(-p.retention))
}

func (p *Pruner) prune(ctx context.Context) {
	n, err := p.Prune(ctx)
	if err != nil {
		slog.Error("Failed to prune trial ledger", "retention", p.retention, "error", err)
		return
	}
	if n > 0 {
		slog.Info("Pruned expired trials", "deleted", n, "retention", p.retention)
	}
}
