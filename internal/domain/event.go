package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StreamName is the Redis stream auction events are published to.
const StreamName = "auction-events"

// EventKind represents the type of auction event.
type EventKind string

const (
	// EventBidMilestone fires on a meaningful bid jump.
	EventBidMilestone EventKind = "bid_milestone"
	// EventEndingSoon fires once when an auction enters its final window.
	EventEndingSoon EventKind = "ending_soon"
	// EventSold fires exactly on the transition into the sold state.
	EventSold EventKind = "sold"
	// EventEnded fires exactly on the transition into the ended state.
	EventEnded EventKind = "ended"
)

// AuctionEvent is the envelope for all auction events.
type AuctionEvent struct {
	EventID        uuid.UUID `json:"event_id"`
	Kind           EventKind `json:"kind"`
	ListingID      string    `json:"listing_id"`
	Platform       string    `json:"platform"`
	ExternalID     string    `json:"external_id"`
	IdempotencyKey string    `json:"idempotency_key"`
	Timestamp      time.Time `json:"timestamp"`
	Payload        any       `json:"payload,omitempty"`
}

// BidMilestonePayload contains data for bid_milestone events.
type BidMilestonePayload struct {
	PreviousBid int64 `json:"previous_bid"`
	CurrentBid  int64 `json:"current_bid"`
	Increase    int64 `json:"increase"`
}

// EndingSoonPayload contains data for ending_soon events.
type EndingSoonPayload struct {
	HoursRemaining float64    `json:"hours_remaining"`
	EndTime        *time.Time `json:"end_time,omitempty"`
}

// SoldPayload contains data for sold events.
type SoldPayload struct {
	FinalPrice int64 `json:"final_price"`
}

// IdempotencyKey builds the stable dedup key for an event. Bucketed kinds
// (bid milestones) include the bucket so each milestone fires once while
// later milestones still fire.
func IdempotencyKey(externalID string, kind EventKind, bucket int64) string {
	if bucket > 0 {
		return fmt.Sprintf("%s:%s:%d", externalID, kind, bucket)
	}
	return fmt.Sprintf("%s:%s", externalID, kind)
}
