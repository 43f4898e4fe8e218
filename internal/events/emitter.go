// Package events turns reconciliation deltas into domain events, each
// carrying a stable idempotency key so duplicate emission across
// overlapping polls is a no-op at the consumer.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sss97133/nuke-sub008/internal/domain"
	"github.com/sss97133/nuke-sub008/internal/logger"
)

// Config holds event emission thresholds.
type Config struct {
	// MilestoneIncrease is the fixed bid jump that always fires a
	// milestone event.
	MilestoneIncrease int64 `yaml:"milestone_increase" mapstructure:"milestone_increase"`
	// MilestoneBoundary fires a milestone when the bid crosses a multiple
	// of this value.
	MilestoneBoundary int64 `yaml:"milestone_boundary" mapstructure:"milestone_boundary"`
}

// SetDefaults applies default values to the config if not set.
func (c *Config) SetDefaults() {
	if c.MilestoneIncrease <= 0 {
		c.MilestoneIncrease = 5_000
	}
	if c.MilestoneBoundary <= 0 {
		c.MilestoneBoundary = 10_000
	}
}

// Handler consumes emitted auction events.
type Handler interface {
	Handle(ctx context.Context, event domain.AuctionEvent) error
}

// Deduper tracks idempotency keys. FirstEmission reports whether the key
// has not been seen before, claiming it atomically.
type Deduper interface {
	FirstEmission(ctx context.Context, key string) (bool, error)
}

// Emitter inspects deltas and emits zero or more domain events, exactly
// once per triggering transition.
type Emitter struct {
	cfg     Config
	dedup   Deduper
	handler Handler
	log     logger.Logger
}

// NewEmitter creates an event emitter.
func NewEmitter(cfg Config, dedup Deduper, handler Handler, log logger.Logger) *Emitter {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	return &Emitter{cfg: cfg, dedup: dedup, handler: handler, log: log}
}

// Emit fires the events the delta warrants and returns the ones actually
// emitted (after idempotency filtering).
func (e *Emitter) Emit(ctx context.Context, listing *domain.ListingRecord, delta *domain.Delta) ([]domain.AuctionEvent, error) {
	if delta == nil || delta.Empty() {
		return nil, nil
	}

	var emitted []domain.AuctionEvent
	for _, candidate := range e.candidates(listing, delta) {
		ok, err := e.dedup.FirstEmission(ctx, candidate.IdempotencyKey)
		if err != nil {
			return emitted, fmt.Errorf("dedup check %s: %w", candidate.IdempotencyKey, err)
		}
		if !ok {
			continue
		}
		if err := e.handler.Handle(ctx, candidate); err != nil {
			return emitted, fmt.Errorf("handle %s: %w", candidate.IdempotencyKey, err)
		}
		e.log.Info("auction event emitted",
			logger.String("kind", string(candidate.Kind)),
			logger.String("listing_id", candidate.ListingID),
			logger.String("idempotency_key", candidate.IdempotencyKey),
		)
		emitted = append(emitted, candidate)
	}
	return emitted, nil
}

// candidates builds the event list for one delta, before dedup.
func (e *Emitter) candidates(listing *domain.ListingRecord, delta *domain.Delta) []domain.AuctionEvent {
	var out []domain.AuctionEvent

	if inc := delta.BidIncrease; inc != nil && e.milestoneWorthy(inc) {
		out = append(out, e.newEvent(listing, domain.EventBidMilestone,
			inc.To/e.cfg.MilestoneBoundary,
			domain.BidMilestonePayload{PreviousBid: inc.From, CurrentBid: inc.To, Increase: inc.Amount()},
		))
	}

	if es := delta.EndingSoon; es != nil && !listing.Terminal() {
		out = append(out, e.newEvent(listing, domain.EventEndingSoon, 0,
			domain.EndingSoonPayload{HoursRemaining: es.HoursRemaining, EndTime: listing.EndTime},
		))
	}

	if sc := delta.StateChange; sc != nil {
		switch sc.To {
		case domain.ListingStateSold:
			var price int64
			if listing.FinalPrice != nil {
				price = *listing.FinalPrice
			}
			out = append(out, e.newEvent(listing, domain.EventSold, 0, domain.SoldPayload{FinalPrice: price}))
		case domain.ListingStateEnded:
			out = append(out, e.newEvent(listing, domain.EventEnded, 0, nil))
		}
	}

	return out
}

// milestoneWorthy applies the milestone gate: a jump of at least the fixed
// threshold, or crossing a round-number boundary. Smaller increments are
// noise and emit nothing.
func (e *Emitter) milestoneWorthy(inc *domain.BidIncrease) bool {
	if inc.Amount() >= e.cfg.MilestoneIncrease {
		return true
	}
	return inc.From/e.cfg.MilestoneBoundary < inc.To/e.cfg.MilestoneBoundary
}

func (e *Emitter) newEvent(listing *domain.ListingRecord, kind domain.EventKind, bucket int64, payload any) domain.AuctionEvent {
	return domain.AuctionEvent{
		EventID:        uuid.New(),
		Kind:           kind,
		ListingID:      listing.ID,
		Platform:       listing.Platform,
		ExternalID:     listing.ExternalID,
		IdempotencyKey: domain.IdempotencyKey(listing.ExternalID, kind, bucket),
		Timestamp:      time.Now().UTC(),
		Payload:        payload,
	}
}
