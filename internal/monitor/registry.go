// Package monitor registers auction listings for live tracking and runs
// the per-listing sync cycle that keeps their state current.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sss97133/nuke-sub008/internal/database"
	"github.com/sss97133/nuke-sub008/internal/domain"
	"github.com/sss97133/nuke-sub008/internal/logger"
)

// ErrUnknownPlatform is returned when a URL matches no supported platform
// and no platform hint was given.
var ErrUnknownPlatform = errors.New("unknown auction platform")

// ErrNoExternalID is returned when no auction id could be extracted from
// the listing URL.
var ErrNoExternalID = errors.New("no external id in listing url")

// ListingStore is the subset of listing persistence the monitor needs.
type ListingStore interface {
	Create(ctx context.Context, listing *domain.ListingRecord) (*domain.ListingRecord, error)
	GetByID(ctx context.Context, id string) (*domain.ListingRecord, error)
	GetByPlatformExternalID(ctx context.Context, platform, externalID string) (*domain.ListingRecord, error)
	Update(ctx context.Context, listing *domain.ListingRecord, readAt time.Time) error
}

// MonitorStore is the subset of monitored-auction persistence the monitor
// needs.
type MonitorStore interface {
	Create(ctx context.Context, m *domain.MonitoredAuction) error
	GetByListingID(ctx context.Context, listingID string) (*domain.MonitoredAuction, error)
	Reactivate(ctx context.Context, id string, priority int, nextPollAt time.Time) error
	RaisePriority(ctx context.Context, id string, priority int) error
	AddWatcher(ctx context.Context, id, watcherID string) error
	Due(ctx context.Context, now time.Time, limit int) ([]*domain.MonitoredAuction, error)
	UpdateAfterPoll(ctx context.Context, id string, nextPollAt time.Time, softClose bool) error
	Deactivate(ctx context.Context, id string) error
}

// RegisterRequest describes one registration call.
type RegisterRequest struct {
	URL string
	// WatcherID identifies the interested party; empty skips watcher
	// tracking.
	WatcherID string
	// Priority in [1,10]; zero takes the default.
	Priority int
	// PlatformHint is a platform slug that bypasses host detection, for
	// sites reached through mirrors or test fixtures.
	PlatformHint string
}

// Registry manages the set of monitored auctions.
type Registry struct {
	listings ListingStore
	monitors MonitorStore
	log      logger.Logger
}

// NewRegistry creates a monitor registry.
func NewRegistry(listings ListingStore, monitors MonitorStore, log logger.Logger) *Registry {
	if log == nil {
		log = logger.NewNop()
	}
	return &Registry{listings: listings, monitors: monitors, log: log}
}

// Register puts a listing under live monitoring. The call is idempotent:
// registering the same URL again adds the watcher (once) and raises the
// priority if the new request asks for more, reactivating a dormant
// monitor when needed.
func (r *Registry) Register(ctx context.Context, req RegisterRequest) (*domain.MonitoredAuction, *domain.ListingRecord, error) {
	platform, err := resolvePlatform(req)
	if err != nil {
		return nil, nil, err
	}

	canonical := domain.CanonicalURL(req.URL)
	externalID := platform.ExternalID(canonical)
	if externalID == "" {
		return nil, nil, fmt.Errorf("%s: %w", req.URL, ErrNoExternalID)
	}

	priority := clampPriority(req.Priority)
	now := time.Now().UTC()

	listing, err := r.ensureListing(ctx, platform.Slug, externalID, canonical, now)
	if err != nil {
		return nil, nil, err
	}

	monitor, err := r.ensureMonitor(ctx, listing.ID, priority, now)
	if err != nil {
		return nil, nil, err
	}

	if req.WatcherID != "" {
		if err := r.monitors.AddWatcher(ctx, monitor.ID, req.WatcherID); err != nil {
			return nil, nil, fmt.Errorf("add watcher: %w", err)
		}
		if !containsWatcher(monitor.Watchers, req.WatcherID) {
			monitor.Watchers = append(monitor.Watchers, req.WatcherID)
		}
	}

	r.log.Info("auction registered",
		logger.String("platform", platform.Slug),
		logger.String("external_id", externalID),
		logger.String("listing_id", listing.ID),
		logger.Int("priority", monitor.Priority),
	)

	return monitor, listing, nil
}

// DueForPoll returns up to limit active monitors whose next poll time has
// passed, highest priority first.
func (r *Registry) DueForPoll(ctx context.Context, now time.Time, limit int) ([]*domain.MonitoredAuction, error) {
	return r.monitors.Due(ctx, now, limit)
}

func resolvePlatform(req RegisterRequest) (domain.Platform, error) {
	if req.PlatformHint != "" {
		if p, ok := domain.PlatformBySlug(req.PlatformHint); ok {
			return p, nil
		}
		return domain.Platform{}, fmt.Errorf("hint %q: %w", req.PlatformHint, ErrUnknownPlatform)
	}
	if p, ok := domain.DetectPlatform(req.URL); ok {
		return p, nil
	}
	return domain.Platform{}, fmt.Errorf("%s: %w", req.URL, ErrUnknownPlatform)
}

func (r *Registry) ensureListing(ctx context.Context, platform, externalID, url string, now time.Time) (*domain.ListingRecord, error) {
	listing, err := r.listings.GetByPlatformExternalID(ctx, platform, externalID)
	if err == nil {
		return listing, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("look up listing: %w", err)
	}

	return r.listings.Create(ctx, &domain.ListingRecord{
		ID:         uuid.New().String(),
		Platform:   platform,
		ExternalID: externalID,
		URL:        url,
		State:      domain.ListingStateActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

func (r *Registry) ensureMonitor(ctx context.Context, listingID string, priority int, now time.Time) (*domain.MonitoredAuction, error) {
	existing, err := r.monitors.GetByListingID(ctx, listingID)
	if err == nil {
		if !existing.Active {
			if err := r.monitors.Reactivate(ctx, existing.ID, priority, now); err != nil {
				return nil, fmt.Errorf("reactivate monitor: %w", err)
			}
			existing.Active = true
			existing.IsInSoftClose = false
			existing.NextPollAt = now
		}
		if priority > existing.Priority {
			if err := r.monitors.RaisePriority(ctx, existing.ID, priority); err != nil {
				return nil, fmt.Errorf("raise priority: %w", err)
			}
			existing.Priority = priority
		}
		return existing, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("look up monitor: %w", err)
	}

	monitor := &domain.MonitoredAuction{
		ID:         uuid.New().String(),
		ListingID:  listingID,
		Priority:   priority,
		NextPollAt: now,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.monitors.Create(ctx, monitor); err != nil {
		return nil, fmt.Errorf("create monitor: %w", err)
	}
	return monitor, nil
}

func clampPriority(p int) int {
	switch {
	case p == 0:
		return domain.DefaultPriority
	case p < domain.MinPriority:
		return domain.MinPriority
	case p > domain.MaxPriority:
		return domain.MaxPriority
	}
	return p
}

func containsWatcher(watchers []string, id string) bool {
	for _, w := range watchers {
		if w == id {
			return true
		}
	}
	return false
}
