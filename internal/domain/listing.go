// Package domain defines the core types shared across the auction monitor.
package domain

import "time"

// Listing state constants.
const (
	ListingStateActive     = "active"
	ListingStateEndingSoon = "ending_soon"
	ListingStateEnded      = "ended"
	ListingStateSold       = "sold"
)

// Priority bounds and defaults for monitored auctions.
const (
	MinPriority     = 1
	MaxPriority     = 10
	DefaultPriority = 5
)

// ListingRecord is the durable record for one auction page on one platform.
// Numeric counters are pointers: nil means "never observed", and a cycle
// that fails to extract a counter must not overwrite the stored value.
type ListingRecord struct {
	// Identity
	ID         string `db:"id"          json:"id"`
	Platform   string `db:"platform"    json:"platform"`
	ExternalID string `db:"external_id" json:"external_id"`
	URL        string `db:"url"         json:"url"`

	// Auction state
	State        string     `db:"state"         json:"state"`
	CurrentBid   *int64     `db:"current_bid"   json:"current_bid,omitempty"`
	BidCount     *int       `db:"bid_count"     json:"bid_count,omitempty"`
	WatcherCount *int       `db:"watcher_count" json:"watcher_count,omitempty"`
	ViewCount    *int       `db:"view_count"    json:"view_count,omitempty"`
	EndTime      *time.Time `db:"end_time"      json:"end_time,omitempty"`
	FinalPrice   *int64     `db:"final_price"   json:"final_price,omitempty"`

	// Vehicle identity, folded in from extraction
	VIN   *string `db:"vin"   json:"vin,omitempty"`
	Year  *int    `db:"year"  json:"year,omitempty"`
	Make  *string `db:"make"  json:"make,omitempty"`
	Model *string `db:"model" json:"model,omitempty"`

	// Timestamps
	LastSyncedAt *time.Time `db:"last_synced_at" json:"last_synced_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at"     json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"     json:"updated_at"`
}

// Terminal reports whether the listing has reached a terminal state.
func (l *ListingRecord) Terminal() bool {
	return l.State == ListingStateEnded || l.State == ListingStateSold
}

// MonitoredAuction is the operational overlay that tracks poll scheduling
// and watchers for a listing. It is deactivated, never hard-deleted.
type MonitoredAuction struct {
	ID            string    `db:"id"               json:"id"`
	ListingID     string    `db:"listing_id"       json:"listing_id"`
	Priority      int       `db:"priority"         json:"priority"`
	Watchers      []string  `db:"-"                json:"watchers"`
	NextPollAt    time.Time `db:"next_poll_at"     json:"next_poll_at"`
	IsInSoftClose bool      `db:"is_in_soft_close" json:"is_in_soft_close"`
	Active        bool      `db:"active"           json:"active"`
	CreatedAt     time.Time `db:"created_at"       json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"       json:"updated_at"`
}

// FetchLogEntry is a write-only cost-accounting record for one fetch attempt.
type FetchLogEntry struct {
	ID        string    `db:"id"         json:"id"`
	Caller    string    `db:"caller"     json:"caller"`
	URL       string    `db:"url"        json:"url"`
	Source    string    `db:"source"     json:"source"`
	CostCents int       `db:"cost_cents" json:"cost_cents"`
	Success   bool      `db:"success"    json:"success"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
