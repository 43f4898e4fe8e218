package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sss97133/nuke-sub008/internal/domain"
)

// listingSelectColumns lists columns for SELECT queries on listings.
const listingSelectColumns = `id, platform, external_id, url, state, current_bid, bid_count,
	watcher_count, view_count, end_time, final_price, vin, year, make, model,
	last_synced_at, created_at, updated_at`

// ListingRepository handles database operations for listing records.
type ListingRepository struct {
	db *sqlx.DB
}

// NewListingRepository creates a new listing repository.
func NewListingRepository(db *sqlx.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

// Create inserts a new listing. The (platform, external_id) pair is
// unique; re-creating an existing listing returns the stored row instead
// of duplicating it.
func (r *ListingRepository) Create(ctx context.Context, listing *domain.ListingRecord) (*domain.ListingRecord, error) {
	query := `
		INSERT INTO listings (id, platform, external_id, url, state)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (platform, external_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query,
		listing.ID, listing.Platform, listing.ExternalID, listing.URL, listing.State,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert listing: %w", err)
	}

	return r.GetByPlatformExternalID(ctx, listing.Platform, listing.ExternalID)
}

// GetByID returns a listing by its id.
func (r *ListingRepository) GetByID(ctx context.Context, id string) (*domain.ListingRecord, error) {
	query := `SELECT ` + listingSelectColumns + ` FROM listings WHERE id = $1`

	var listing domain.ListingRecord
	err := r.db.GetContext(ctx, &listing, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("listing %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}

	return &listing, nil
}

// GetByPlatformExternalID returns a listing by its natural key.
func (r *ListingRepository) GetByPlatformExternalID(ctx context.Context, platform, externalID string) (*domain.ListingRecord, error) {
	query := `SELECT ` + listingSelectColumns + ` FROM listings WHERE platform = $1 AND external_id = $2`

	var listing domain.ListingRecord
	err := r.db.GetContext(ctx, &listing, query, platform, externalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("listing %s/%s: %w", platform, externalID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}

	return &listing, nil
}

// Update writes a reconciled listing guarded by the updated_at it was read
// at. A concurrent writer that got there first makes the guard miss;
// ErrConflict tells the caller to re-read and reconcile once more.
func (r *ListingRepository) Update(ctx context.Context, listing *domain.ListingRecord, readAt time.Time) error {
	query := `
		UPDATE listings
		SET state = $1,
			current_bid = $2,
			bid_count = $3,
			watcher_count = $4,
			view_count = $5,
			end_time = $6,
			final_price = $7,
			vin = $8,
			year = $9,
			make = $10,
			model = $11,
			last_synced_at = $12,
			updated_at = NOW()
		WHERE id = $13 AND updated_at = $14
	`

	result, execErr := r.db.ExecContext(ctx, query,
		listing.State, listing.CurrentBid, listing.BidCount, listing.WatcherCount,
		listing.ViewCount, listing.EndTime, listing.FinalPrice, listing.VIN,
		listing.Year, listing.Make, listing.Model, listing.LastSyncedAt,
		listing.ID, readAt,
	)
	return execRequireRows(result, execErr, fmt.Errorf("listing %s: %w", listing.ID, ErrConflict))
}

// List returns listings ordered by most recently synced.
func (r *ListingRepository) List(ctx context.Context, limit, offset int) ([]*domain.ListingRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT ` + listingSelectColumns + `
		FROM listings
		ORDER BY last_synced_at DESC NULLS LAST
		LIMIT $1 OFFSET $2
	`

	var listings []*domain.ListingRecord
	err := r.db.SelectContext(ctx, &listings, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}

	if listings == nil {
		listings = []*domain.ListingRecord{}
	}
	return listings, nil
}
