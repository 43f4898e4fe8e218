package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sss97133/nuke-sub008/internal/database"
	"github.com/sss97133/nuke-sub008/internal/domain"
	"github.com/sss97133/nuke-sub008/internal/fetch"
	"github.com/sss97133/nuke-sub008/internal/logger"
)

// Fetcher retrieves listing HTML under cost-control rules.
type Fetcher interface {
	Fetch(ctx context.Context, url string, fctx fetch.Context) (*fetch.Result, error)
}

// Extractor parses listing HTML into structured fields.
type Extractor interface {
	Extract(html []byte, sourceURL string) *domain.ExtractionResult
}

// Reconciler merges fresh extraction output into the stored record.
type Reconciler interface {
	Reconcile(prev *domain.ListingRecord, fresh *domain.ExtractionResult, now time.Time) (*domain.ListingRecord, *domain.Delta)
}

// EventEmitter fires domain events for a reconciliation delta.
type EventEmitter interface {
	Emit(ctx context.Context, listing *domain.ListingRecord, delta *domain.Delta) ([]domain.AuctionEvent, error)
}

// CommentStore persists extracted comments.
type CommentStore interface {
	Upsert(ctx context.Context, listingID string, comments []domain.Comment) error
}

// Poll intervals by remaining auction time. Higher-priority monitors poll
// at half these intervals.
const (
	intervalFinalMinutes = 30 * time.Second
	intervalFinalHour    = 2 * time.Minute
	intervalFinalDay     = 15 * time.Minute
	intervalDistant      = time.Hour
	intervalUnknownEnd   = 30 * time.Minute

	highPriorityThreshold = 8
)

// SyncResult reports the outcome of one sync cycle.
type SyncResult struct {
	Listing *domain.ListingRecord
	Delta   *domain.Delta
	Events  []domain.AuctionEvent
	Source  string
	// CostCents is what the fetch cost: zero for a direct fetch, the
	// rendered rate on escalation.
	CostCents int
	// Concluded is set when the listing reached a terminal state and the
	// monitor went dormant.
	Concluded bool
}

// Syncer runs the fetch, extract, reconcile, persist, emit cycle for one
// monitored auction.
type Syncer struct {
	listings  ListingStore
	monitors  MonitorStore
	comments  CommentStore
	fetcher   Fetcher
	extractor Extractor
	reconcile Reconciler
	emitter   EventEmitter
	log       logger.Logger
}

// NewSyncer creates a sync service. comments and emitter may be nil to
// skip comment persistence or event emission.
func NewSyncer(
	listings ListingStore,
	monitors MonitorStore,
	comments CommentStore,
	fetcher Fetcher,
	extractor Extractor,
	reconcile Reconciler,
	emitter EventEmitter,
	log logger.Logger,
) *Syncer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Syncer{
		listings:  listings,
		monitors:  monitors,
		comments:  comments,
		fetcher:   fetcher,
		extractor: extractor,
		reconcile: reconcile,
		emitter:   emitter,
		log:       log,
	}
}

// Sync runs one full cycle for a monitored auction. A fetch failure
// leaves the stored record untouched and reschedules the poll; partial
// extraction is normal and only overwrites what was recovered.
func (s *Syncer) Sync(ctx context.Context, monitor *domain.MonitoredAuction) (*SyncResult, error) {
	listing, err := s.listings.GetByID(ctx, monitor.ListingID)
	if err != nil {
		return nil, fmt.Errorf("load listing %s: %w", monitor.ListingID, err)
	}

	result, err := s.fetcher.Fetch(ctx, listing.URL, fetch.Context{
		RoutinePoll: true,
		EndTime:     listing.EndTime,
		Caller:      "monitor",
	})
	if err != nil {
		s.reschedule(ctx, monitor, listing, monitor.IsInSoftClose)
		return nil, fmt.Errorf("fetch %s: %w", listing.URL, err)
	}

	fresh := s.extractor.Extract(result.HTML, listing.URL)
	now := time.Now().UTC()

	next, delta := s.reconcile.Reconcile(listing, fresh, now)
	softClose := s.detectSoftClose(monitor, listing, next, now)

	next, delta, err = s.persist(ctx, listing, next, delta, fresh, now)
	if err != nil {
		return nil, err
	}

	if s.comments != nil && len(fresh.Comments) > 0 {
		if err := s.comments.Upsert(ctx, next.ID, fresh.Comments); err != nil {
			s.log.Warn("comment upsert failed",
				logger.String("listing_id", next.ID),
				logger.Error(err),
			)
		}
	}

	var events []domain.AuctionEvent
	if s.emitter != nil {
		events, err = s.emitter.Emit(ctx, next, delta)
		if err != nil {
			s.log.Warn("event emission failed",
				logger.String("listing_id", next.ID),
				logger.Error(err),
			)
		}
	}

	concluded := next.Terminal()
	if concluded {
		if err := s.monitors.Deactivate(ctx, monitor.ID); err != nil {
			s.log.Warn("monitor deactivation failed",
				logger.String("monitor_id", monitor.ID),
				logger.Error(err),
			)
		}
	} else {
		s.reschedule(ctx, monitor, next, softClose)
	}

	s.log.Info("listing synced",
		logger.String("listing_id", next.ID),
		logger.String("state", next.State),
		logger.String("source", result.Source),
		logger.Bool("concluded", concluded),
	)

	return &SyncResult{
		Listing:   next,
		Delta:     delta,
		Events:    events,
		Source:    result.Source,
		CostCents: result.CostCents,
		Concluded: concluded,
	}, nil
}

// persist writes the reconciled record, retrying once on a concurrent
// update by re-reading and re-reconciling against the newer row. The
// retried delta replaces the stale one so events describe the row that
// was actually written.
func (s *Syncer) persist(ctx context.Context, prev, next *domain.ListingRecord, delta *domain.Delta, fresh *domain.ExtractionResult, now time.Time) (*domain.ListingRecord, *domain.Delta, error) {
	err := s.listings.Update(ctx, next, prev.UpdatedAt)
	if err == nil {
		return next, delta, nil
	}
	if !errors.Is(err, database.ErrConflict) {
		return nil, nil, fmt.Errorf("update listing %s: %w", next.ID, err)
	}

	current, err := s.listings.GetByID(ctx, next.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("reload listing %s after conflict: %w", next.ID, err)
	}

	retried, retriedDelta := s.reconcile.Reconcile(current, fresh, now)
	if err := s.listings.Update(ctx, retried, current.UpdatedAt); err != nil {
		return nil, nil, fmt.Errorf("update listing %s after conflict retry: %w", next.ID, err)
	}
	return retried, retriedDelta, nil
}

// detectSoftClose flags monitors whose auction end moved later while
// already inside the final hour, which is how anti-sniping extensions
// look from the outside. The flag keeps polling at the tightest interval
// until the auction actually concludes.
func (s *Syncer) detectSoftClose(monitor *domain.MonitoredAuction, prev, next *domain.ListingRecord, now time.Time) bool {
	if next.Terminal() {
		return false
	}
	if monitor.IsInSoftClose {
		return true
	}
	if prev.EndTime == nil || next.EndTime == nil {
		return false
	}
	return next.EndTime.After(*prev.EndTime) && prev.EndTime.Sub(now) <= time.Hour
}

func (s *Syncer) reschedule(ctx context.Context, monitor *domain.MonitoredAuction, listing *domain.ListingRecord, softClose bool) {
	interval := pollInterval(monitor.Priority, listing.EndTime, softClose)
	nextPoll := time.Now().UTC().Add(interval)
	if err := s.monitors.UpdateAfterPoll(ctx, monitor.ID, nextPoll, softClose); err != nil {
		s.log.Warn("poll reschedule failed",
			logger.String("monitor_id", monitor.ID),
			logger.Error(err),
		)
	}
}

// pollInterval picks the next poll delay from the remaining auction time.
func pollInterval(priority int, endTime *time.Time, softClose bool) time.Duration {
	if softClose {
		return intervalFinalMinutes
	}

	interval := intervalUnknownEnd
	if endTime != nil {
		switch remaining := time.Until(*endTime); {
		case remaining <= 10*time.Minute:
			interval = intervalFinalMinutes
		case remaining <= time.Hour:
			interval = intervalFinalHour
		case remaining <= 24*time.Hour:
			interval = intervalFinalDay
		default:
			interval = intervalDistant
		}
	}

	if priority >= highPriorityThreshold && interval > intervalFinalMinutes {
		interval /= 2
	}
	return interval
}
