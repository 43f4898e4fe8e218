// Package reconcile merges a fresh extraction into the persisted listing
// record, computing the next canonical state and the delta of meaningful
// changes.
package reconcile

import (
	"time"

	"github.com/sss97133/nuke-sub008/internal/domain"
	"github.com/sss97133/nuke-sub008/internal/logger"
)

// Config holds reconciliation windows.
type Config struct {
	// EndDateWindow is the upper bound for accepted end-date candidates;
	// instants further out are unrelated schema values, not auction ends.
	EndDateWindow time.Duration `yaml:"end_date_window" mapstructure:"end_date_window"`
	// EndingSoonWindow is the remaining time at which an active auction
	// transitions to ending_soon.
	EndingSoonWindow time.Duration `yaml:"ending_soon_window" mapstructure:"ending_soon_window"`
}

// SetDefaults applies default values to the config if not set.
func (c *Config) SetDefaults() {
	if c.EndDateWindow <= 0 {
		c.EndDateWindow = 35 * 24 * time.Hour
	}
	if c.EndingSoonWindow <= 0 {
		c.EndingSoonWindow = 24 * time.Hour
	}
}

// Reconciler computes listing state transitions.
type Reconciler struct {
	cfg Config
	log logger.Logger
}

// New creates a reconciler.
func New(cfg Config, log logger.Logger) *Reconciler {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	return &Reconciler{cfg: cfg, log: log}
}

// Reconcile merges fresh extraction output into the previous record and
// returns the next record plus the delta. The previous record is not
// mutated. Missing extraction fields never reset stored values: a cycle
// that recovers nothing produces an unchanged record and an empty delta.
func (r *Reconciler) Reconcile(prev *domain.ListingRecord, fresh *domain.ExtractionResult, now time.Time) (*domain.ListingRecord, *domain.Delta) {
	next := *prev
	delta := &domain.Delta{}

	r.applyState(prev, fresh, &next, delta)
	r.applyEndTime(prev, fresh, &next, now)
	r.applyCounters(prev, fresh, &next, delta)
	applyVehicleIdentity(fresh, &next)
	r.applyEndingSoon(&next, delta, now)

	syncedAt := now
	next.LastSyncedAt = &syncedAt
	next.UpdatedAt = now

	return &next, delta
}

// applyState computes the next auction state. An explicit sale price wins
// over an ended marker, which wins over staying active; a record already
// sold is never downgraded by a later cycle that only sees the ended
// marker.
func (r *Reconciler) applyState(prev *domain.ListingRecord, fresh *domain.ExtractionResult, next *domain.ListingRecord, delta *domain.Delta) {
	switch {
	case fresh.SalePrice != nil:
		next.State = domain.ListingStateSold
		next.FinalPrice = fresh.SalePrice
	case fresh.AuctionEnded && prev.State != domain.ListingStateSold:
		next.State = domain.ListingStateEnded
		next.FinalPrice = nil
	}

	if next.State != domain.ListingStateSold && next.FinalPrice != nil {
		// Invariant: final_price is non-null iff state is sold.
		next.FinalPrice = nil
	}

	if next.State != prev.State {
		delta.StateChange = &domain.StateChange{From: prev.State, To: next.State}
	}
}

// applyEndTime derives the next end time. Only attempted while the record
// stays active: the explicit countdown value wins, else the nearest future
// candidate strictly inside (now, now+window). With no acceptable
// candidate the stored value is kept, never nulled. Terminal states clear
// the end time.
func (r *Reconciler) applyEndTime(prev *domain.ListingRecord, fresh *domain.ExtractionResult, next *domain.ListingRecord, now time.Time) {
	if next.Terminal() {
		next.EndTime = nil
		return
	}

	if fresh.EndDate != nil {
		t := fresh.EndDate.UTC()
		next.EndTime = &t
		return
	}

	if t, ok := r.nearestCandidate(fresh.EndDateCandidates, now); ok {
		next.EndTime = &t
		return
	}

	next.EndTime = prev.EndTime
}

// nearestCandidate picks the earliest candidate strictly after now and
// strictly before now plus the end-date window.
func (r *Reconciler) nearestCandidate(candidates []time.Time, now time.Time) (time.Time, bool) {
	var best time.Time
	found := false
	limit := now.Add(r.cfg.EndDateWindow)
	for _, c := range candidates {
		if !c.After(now) || !c.Before(limit) {
			continue
		}
		if !found || c.Before(best) {
			best = c
			found = true
		}
	}
	return best.UTC(), found
}

// applyCounters overwrites numeric counters only when a fresh value was
// actually extracted, preserving last known values across degraded cycles.
func (r *Reconciler) applyCounters(prev *domain.ListingRecord, fresh *domain.ExtractionResult, next *domain.ListingRecord, delta *domain.Delta) {
	if fresh.HighBid != nil {
		if prev.CurrentBid != nil && *fresh.HighBid > *prev.CurrentBid {
			delta.BidIncrease = &domain.BidIncrease{From: *prev.CurrentBid, To: *fresh.HighBid}
		}
		next.CurrentBid = fresh.HighBid
	}
	if fresh.BidCount != nil {
		next.BidCount = fresh.BidCount
	}
	if fresh.WatcherCount != nil {
		next.WatcherCount = fresh.WatcherCount
	}
	if fresh.ViewCount != nil {
		next.ViewCount = fresh.ViewCount
	}
}

// applyVehicleIdentity folds extracted identity fields into the record.
// Identity is immutable upstream, so values are filled once extracted and
// kept otherwise.
func applyVehicleIdentity(fresh *domain.ExtractionResult, next *domain.ListingRecord) {
	if fresh.VIN != nil {
		next.VIN = fresh.VIN
	}
	if fresh.Year != nil {
		next.Year = fresh.Year
	}
	if fresh.Make != nil {
		next.Make = fresh.Make
	}
	if fresh.Model != nil {
		next.Model = fresh.Model
	}
}

// applyEndingSoon transitions active records into ending_soon when the end
// time enters the window, and reports remaining hours in the delta.
func (r *Reconciler) applyEndingSoon(next *domain.ListingRecord, delta *domain.Delta, now time.Time) {
	if next.Terminal() || next.EndTime == nil {
		return
	}

	remaining := next.EndTime.Sub(now)
	if remaining <= 0 || remaining > r.cfg.EndingSoonWindow {
		return
	}

	if next.State == domain.ListingStateActive {
		prior := next.State
		next.State = domain.ListingStateEndingSoon
		if delta.StateChange == nil {
			delta.StateChange = &domain.StateChange{From: prior, To: next.State}
		}
	}

	delta.EndingSoon = &domain.EndingSoon{HoursRemaining: remaining.Hours()}
}
