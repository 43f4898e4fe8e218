package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sss97133/nuke-sub008/internal/domain"
)

// FetchLogRepository records fetch attempts for cost accounting. Writes
// are best-effort; callers never block a sync on a failed log insert.
type FetchLogRepository struct {
	db *sqlx.DB
}

// NewFetchLogRepository creates a new fetch log repository.
func NewFetchLogRepository(db *sqlx.DB) *FetchLogRepository {
	return &FetchLogRepository{db: db}
}

// Insert stores one fetch attempt record.
func (r *FetchLogRepository) Insert(ctx context.Context, entry domain.FetchLogEntry) error {
	query := `
		INSERT INTO fetch_log (id, caller, url, source, cost_cents, success, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.Caller, entry.URL, entry.Source,
		entry.CostCents, entry.Success, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert fetch log entry: %w", err)
	}
	return nil
}

// CostSince sums rendered-fetch cost in cents across all callers since
// the given time.
func (r *FetchLogRepository) CostSince(ctx context.Context, since time.Time) (int64, error) {
	var total int64
	err := r.db.GetContext(ctx, &total,
		`SELECT COALESCE(SUM(cost_cents), 0) FROM fetch_log WHERE created_at >= $1`, since)
	if err != nil {
		return 0, fmt.Errorf("failed to sum fetch costs: %w", err)
	}
	return total, nil
}
