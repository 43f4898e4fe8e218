package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sss97133/nuke-sub008/internal/domain"
)

// schemaDDL is idempotent and safe to re-run on every startup.
const schemaDDL = `
	CREATE TABLE IF NOT EXISTS platforms (
		slug       VARCHAR(64) PRIMARY KEY,
		host       VARCHAR(255) NOT NULL,
		id_marker  VARCHAR(64)  NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS listings (
		id             UUID PRIMARY KEY,
		platform       VARCHAR(64)  NOT NULL,
		external_id    VARCHAR(255) NOT NULL,
		url            TEXT         NOT NULL,
		state          VARCHAR(32)  NOT NULL DEFAULT 'active',
		current_bid    BIGINT,
		bid_count      INTEGER,
		watcher_count  INTEGER,
		view_count     INTEGER,
		end_time       TIMESTAMPTZ,
		final_price    BIGINT,
		vin            VARCHAR(32),
		year           INTEGER,
		make           VARCHAR(64),
		model          VARCHAR(128),
		last_synced_at TIMESTAMPTZ,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (platform, external_id)
	);

	CREATE INDEX IF NOT EXISTS idx_listings_state    ON listings(state);
	CREATE INDEX IF NOT EXISTS idx_listings_vin      ON listings(vin);
	CREATE INDEX IF NOT EXISTS idx_listings_end_time ON listings(end_time);

	CREATE TABLE IF NOT EXISTS monitored_auctions (
		id               UUID PRIMARY KEY,
		listing_id       UUID NOT NULL REFERENCES listings(id),
		priority         INTEGER NOT NULL DEFAULT 5,
		watchers         TEXT[]  NOT NULL DEFAULT '{}',
		next_poll_at     TIMESTAMPTZ NOT NULL,
		is_in_soft_close BOOLEAN NOT NULL DEFAULT FALSE,
		active           BOOLEAN NOT NULL DEFAULT TRUE,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (listing_id)
	);

	CREATE INDEX IF NOT EXISTS idx_monitored_due
		ON monitored_auctions(active, next_poll_at, priority);

	CREATE TABLE IF NOT EXISTS listing_comments (
		listing_id   UUID NOT NULL REFERENCES listings(id),
		content_hash CHAR(64) NOT NULL,
		sequence     INTEGER  NOT NULL,
		author       TEXT     NOT NULL,
		text         TEXT     NOT NULL,
		type         VARCHAR(32) NOT NULL,
		bid_amount   BIGINT,
		posted_at    TIMESTAMPTZ,
		like_count   INTEGER NOT NULL DEFAULT 0,
		is_seller    BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (listing_id, content_hash)
	);

	CREATE TABLE IF NOT EXISTS fetch_log (
		id         UUID PRIMARY KEY,
		caller     VARCHAR(64)  NOT NULL,
		url        TEXT         NOT NULL,
		source     VARCHAR(32)  NOT NULL,
		cost_cents INTEGER      NOT NULL DEFAULT 0,
		success    BOOLEAN      NOT NULL,
		created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_fetch_log_created ON fetch_log(created_at);
`

// EnsureSchema creates all tables and indexes if they do not exist, then
// seeds the platform table.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// SeedPlatforms inserts the known platform rows, skipping any already
// present.
func SeedPlatforms(ctx context.Context, db *sqlx.DB, platforms []domain.Platform) error {
	query := `
		INSERT INTO platforms (slug, host, id_marker)
		VALUES ($1, $2, $3)
		ON CONFLICT (slug) DO NOTHING
	`
	for _, p := range platforms {
		if _, err := db.ExecContext(ctx, query, p.Slug, p.Host, p.IDMarker); err != nil {
			return fmt.Errorf("failed to seed platform %s: %w", p.Slug, err)
		}
	}
	return nil
}
