package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sss97133/nuke-sub008/internal/domain"
)

// CommentRepository handles database operations for listing comments.
type CommentRepository struct {
	db *sqlx.DB
}

// NewCommentRepository creates a new comment repository.
func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// commentHash keys a comment by its content so re-extraction of the same
// page does not duplicate rows even when site-side ordering shifts.
func commentHash(c domain.Comment) string {
	sum := sha256.Sum256([]byte(c.Author + "\x00" + c.Text))
	return hex.EncodeToString(sum[:])
}

// Upsert stores comments for a listing, keyed by (listing_id, content
// hash). Existing rows keep their sequence; new rows append after the
// current maximum.
func (r *CommentRepository) Upsert(ctx context.Context, listingID string, comments []domain.Comment) error {
	if len(comments) == 0 {
		return nil
	}

	query := `
		INSERT INTO listing_comments (listing_id, content_hash, sequence, author, text, type,
			bid_amount, posted_at, like_count, is_seller)
		VALUES ($1, $2,
			COALESCE((SELECT MAX(sequence) FROM listing_comments WHERE listing_id = $1), 0) + 1,
			$3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (listing_id, content_hash) DO UPDATE SET
			type = EXCLUDED.type,
			bid_amount = EXCLUDED.bid_amount,
			like_count = EXCLUDED.like_count
	`

	for _, c := range comments {
		_, err := r.db.ExecContext(ctx, query,
			listingID, commentHash(c),
			c.Author, c.Text, c.Type,
			c.BidAmount, c.PostedAt, c.LikeCount, c.IsSeller,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert comment: %w", err)
		}
	}
	return nil
}

// ListByListingID returns a listing's comments in stored sequence order.
func (r *CommentRepository) ListByListingID(ctx context.Context, listingID string) ([]domain.Comment, error) {
	query := `
		SELECT author, text, type, bid_amount, posted_at, like_count, is_seller
		FROM listing_comments
		WHERE listing_id = $1
		ORDER BY sequence ASC
	`

	var comments []domain.Comment
	err := r.db.SelectContext(ctx, &comments, query, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}
