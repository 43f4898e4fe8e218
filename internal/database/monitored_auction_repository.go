package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sss97133/nuke-sub008/internal/domain"
)

// monitorSelectColumns lists columns for SELECT queries on
// monitored_auctions.
const monitorSelectColumns = `id, listing_id, priority, watchers, next_poll_at,
	is_in_soft_close, active, created_at, updated_at`

// monitoredAuctionRow adapts the domain type for sqlx scanning; watchers
// is a postgres text[].
type monitoredAuctionRow struct {
	ID            string         `db:"id"`
	ListingID     string         `db:"listing_id"`
	Priority      int            `db:"priority"`
	Watchers      pq.StringArray `db:"watchers"`
	NextPollAt    time.Time      `db:"next_poll_at"`
	IsInSoftClose bool           `db:"is_in_soft_close"`
	Active        bool           `db:"active"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (row *monitoredAuctionRow) toDomain() *domain.MonitoredAuction {
	return &domain.MonitoredAuction{
		ID:            row.ID,
		ListingID:     row.ListingID,
		Priority:      row.Priority,
		Watchers:      []string(row.Watchers),
		NextPollAt:    row.NextPollAt,
		IsInSoftClose: row.IsInSoftClose,
		Active:        row.Active,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

// MonitoredAuctionRepository handles database operations for the monitor
// registry.
type MonitoredAuctionRepository struct {
	db *sqlx.DB
}

// NewMonitoredAuctionRepository creates a new monitored auction repository.
func NewMonitoredAuctionRepository(db *sqlx.DB) *MonitoredAuctionRepository {
	return &MonitoredAuctionRepository{db: db}
}

// Create inserts a new monitored auction.
func (r *MonitoredAuctionRepository) Create(ctx context.Context, m *domain.MonitoredAuction) error {
	query := `
		INSERT INTO monitored_auctions (id, listing_id, priority, watchers, next_poll_at, active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
	`

	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.ListingID, m.Priority, pq.Array(m.Watchers), m.NextPollAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert monitored auction: %w", err)
	}
	return nil
}

// GetByListingID returns the monitor for a listing, active or not.
func (r *MonitoredAuctionRepository) GetByListingID(ctx context.Context, listingID string) (*domain.MonitoredAuction, error) {
	query := `SELECT ` + monitorSelectColumns + ` FROM monitored_auctions WHERE listing_id = $1`

	var row monitoredAuctionRow
	err := r.db.GetContext(ctx, &row, query, listingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("monitor for listing %s: %w", listingID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get monitored auction: %w", err)
	}

	return row.toDomain(), nil
}

// Reactivate re-enables a dormant monitor, resetting its poll schedule
// and raising priority to at least the given value.
func (r *MonitoredAuctionRepository) Reactivate(ctx context.Context, id string, priority int, nextPollAt time.Time) error {
	query := `
		UPDATE monitored_auctions
		SET active = TRUE,
			priority = GREATEST(priority, $1),
			next_poll_at = $2,
			is_in_soft_close = FALSE,
			updated_at = NOW()
		WHERE id = $3
	`

	result, execErr := r.db.ExecContext(ctx, query, priority, nextPollAt, id)
	return execRequireRows(result, execErr, fmt.Errorf("monitored auction %s: %w", id, ErrNotFound))
}

// RaisePriority lifts the monitor's priority to the given value when it
// is currently lower. Priority never decreases through registration.
func (r *MonitoredAuctionRepository) RaisePriority(ctx context.Context, id string, priority int) error {
	query := `
		UPDATE monitored_auctions
		SET priority = GREATEST(priority, $1),
			updated_at = NOW()
		WHERE id = $2
	`

	result, execErr := r.db.ExecContext(ctx, query, priority, id)
	return execRequireRows(result, execErr, fmt.Errorf("monitored auction %s: %w", id, ErrNotFound))
}

// AddWatcher idempotently adds a watcher to the monitor's watcher set.
func (r *MonitoredAuctionRepository) AddWatcher(ctx context.Context, id, watcherID string) error {
	query := `
		UPDATE monitored_auctions
		SET watchers = array_append(watchers, $1),
			updated_at = NOW()
		WHERE id = $2 AND NOT ($1 = ANY(watchers))
	`

	// Zero rows affected means the watcher was already present.
	_, err := r.db.ExecContext(ctx, query, watcherID, id)
	if err != nil {
		return fmt.Errorf("failed to add watcher: %w", err)
	}
	return nil
}

// Due returns active monitors that are due for a poll, in descending
// priority then ascending next_poll_at.
func (r *MonitoredAuctionRepository) Due(ctx context.Context, now time.Time, limit int) ([]*domain.MonitoredAuction, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + monitorSelectColumns + `
		FROM monitored_auctions
		WHERE active = TRUE AND next_poll_at <= $1
		ORDER BY priority DESC, next_poll_at ASC
		LIMIT $2
	`

	var rows []monitoredAuctionRow
	err := r.db.SelectContext(ctx, &rows, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select due auctions: %w", err)
	}

	monitors := make([]*domain.MonitoredAuction, 0, len(rows))
	for i := range rows {
		monitors = append(monitors, rows[i].toDomain())
	}
	return monitors, nil
}

// UpdateAfterPoll stores the next poll time and soft-close flag after one
// sync cycle.
func (r *MonitoredAuctionRepository) UpdateAfterPoll(ctx context.Context, id string, nextPollAt time.Time, softClose bool) error {
	query := `
		UPDATE monitored_auctions
		SET next_poll_at = $1,
			is_in_soft_close = $2,
			updated_at = NOW()
		WHERE id = $3
	`

	result, execErr := r.db.ExecContext(ctx, query, nextPollAt, softClose, id)
	return execRequireRows(result, execErr, fmt.Errorf("monitored auction %s: %w", id, ErrNotFound))
}

// Deactivate turns a monitor dormant. Monitors are never hard-deleted.
func (r *MonitoredAuctionRepository) Deactivate(ctx context.Context, id string) error {
	query := `
		UPDATE monitored_auctions
		SET active = FALSE,
			updated_at = NOW()
		WHERE id = $1
	`

	result, execErr := r.db.ExecContext(ctx, query, id)
	return execRequireRows(result, execErr, fmt.Errorf("monitored auction %s: %w", id, ErrNotFound))
}

// DeactivateConcluded turns dormant every active monitor whose listing
// reached a terminal state before the cutoff. Used by the cleanup sweep.
func (r *MonitoredAuctionRepository) DeactivateConcluded(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE monitored_auctions m
		SET active = FALSE,
			updated_at = NOW()
		FROM listings l
		WHERE l.id = m.listing_id
		  AND m.active = TRUE
		  AND l.state IN ('ended', 'sold')
		  AND l.updated_at < $1
	`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate concluded monitors: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}
