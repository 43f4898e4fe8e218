package monitor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sss97133/nuke-sub008/internal/domain"
	"github.com/sss97133/nuke-sub008/internal/monitor"
)

const testListingURL = "https://bringatrailer.com/listing/1967-mustang/?utm_source=feed"

func newRegistry() (*monitor.Registry, *fakeListingStore, *fakeMonitorStore) {
	listings := newFakeListingStore()
	monitors := newFakeMonitorStore()
	return monitor.NewRegistry(listings, monitors, nil), listings, monitors
}

func TestRegister_NewListing(t *testing.T) {
	r, _, _ := newRegistry()

	mon, listing, err := r.Register(context.Background(), monitor.RegisterRequest{
		URL:       testListingURL,
		WatcherID: "user-1",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if listing.Platform != "bring_a_trailer" {
		t.Errorf("expected platform bring_a_trailer, got %s", listing.Platform)
	}
	if listing.ExternalID != "1967-mustang" {
		t.Errorf("expected external id 1967-mustang, got %s", listing.ExternalID)
	}
	if listing.URL != "https://bringatrailer.com/listing/1967-mustang/" {
		t.Errorf("expected canonical url, got %s", listing.URL)
	}
	if listing.State != domain.ListingStateActive {
		t.Errorf("expected active state, got %s", listing.State)
	}
	if mon.Priority != domain.DefaultPriority {
		t.Errorf("expected default priority %d, got %d", domain.DefaultPriority, mon.Priority)
	}
	if !mon.Active {
		t.Error("expected an active monitor")
	}
	if len(mon.Watchers) != 1 || mon.Watchers[0] != "user-1" {
		t.Errorf("expected watchers [user-1], got %v", mon.Watchers)
	}
}

func TestRegister_IsIdempotent(t *testing.T) {
	r, listings, monitors := newRegistry()
	ctx := context.Background()

	first, _, err := r.Register(ctx, monitor.RegisterRequest{URL: testListingURL, WatcherID: "user-1"})
	if err != nil {
		t.Fatalf("first Register() error = %v", err)
	}

	// Same URL with tracking params stripped resolves to the same listing.
	second, _, err := r.Register(ctx, monitor.RegisterRequest{
		URL:       "https://bringatrailer.com/listing/1967-mustang",
		WatcherID: "user-2",
	})
	if err != nil {
		t.Fatalf("second Register() error = %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("expected the same monitor, got %s and %s", first.ID, second.ID)
	}

	listings.mu.Lock()
	listingCount := len(listings.byID)
	listings.mu.Unlock()
	if listingCount != 1 {
		t.Errorf("expected 1 listing, got %d", listingCount)
	}

	stored, err := monitors.GetByListingID(ctx, second.ListingID)
	if err != nil {
		t.Fatalf("GetByListingID() error = %v", err)
	}
	if len(stored.Watchers) != 2 {
		t.Errorf("expected 2 watchers, got %v", stored.Watchers)
	}

	// Same watcher again adds nothing.
	if _, _, err := r.Register(ctx, monitor.RegisterRequest{URL: testListingURL, WatcherID: "user-1"}); err != nil {
		t.Fatalf("third Register() error = %v", err)
	}
	stored, _ = monitors.GetByListingID(ctx, second.ListingID)
	if len(stored.Watchers) != 2 {
		t.Errorf("expected watcher add to be idempotent, got %v", stored.Watchers)
	}
}

func TestRegister_RaisesPriorityNeverLowers(t *testing.T) {
	r, _, monitors := newRegistry()
	ctx := context.Background()

	first, _, err := r.Register(ctx, monitor.RegisterRequest{URL: testListingURL, Priority: 7})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if _, _, err := r.Register(ctx, monitor.RegisterRequest{URL: testListingURL, Priority: 3}); err != nil {
		t.Fatalf("lower-priority Register() error = %v", err)
	}
	stored, _ := monitors.GetByListingID(ctx, first.ListingID)
	if stored.Priority != 7 {
		t.Errorf("priority must not decrease, got %d", stored.Priority)
	}

	if _, _, err := r.Register(ctx, monitor.RegisterRequest{URL: testListingURL, Priority: 9}); err != nil {
		t.Fatalf("higher-priority Register() error = %v", err)
	}
	stored, _ = monitors.GetByListingID(ctx, first.ListingID)
	if stored.Priority != 9 {
		t.Errorf("expected priority raised to 9, got %d", stored.Priority)
	}
}

func TestRegister_ClampsPriority(t *testing.T) {
	r, _, _ := newRegistry()

	mon, _, err := r.Register(context.Background(), monitor.RegisterRequest{
		URL:      testListingURL,
		Priority: 99,
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if mon.Priority != domain.MaxPriority {
		t.Errorf("expected priority clamped to %d, got %d", domain.MaxPriority, mon.Priority)
	}
}

func TestRegister_UnknownPlatformRejected(t *testing.T) {
	r, _, _ := newRegistry()

	_, _, err := r.Register(context.Background(), monitor.RegisterRequest{
		URL: "https://example-auction.test/listing/123/",
	})
	if !errors.Is(err, monitor.ErrUnknownPlatform) {
		t.Fatalf("expected ErrUnknownPlatform, got %v", err)
	}
}

func TestRegister_PlatformHintBypassesDetection(t *testing.T) {
	r, _, _ := newRegistry()

	_, listing, err := r.Register(context.Background(), monitor.RegisterRequest{
		URL:          "https://mirror.example-auction.test/listing/1967-mustang/",
		PlatformHint: "bring_a_trailer",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if listing.Platform != "bring_a_trailer" {
		t.Errorf("expected hinted platform, got %s", listing.Platform)
	}
	if listing.ExternalID != "1967-mustang" {
		t.Errorf("expected external id from marker, got %s", listing.ExternalID)
	}
}

func TestRegister_ReactivatesDormantMonitor(t *testing.T) {
	r, _, monitors := newRegistry()
	ctx := context.Background()

	first, _, err := r.Register(ctx, monitor.RegisterRequest{URL: testListingURL})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := monitors.Deactivate(ctx, first.ID); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}

	second, _, err := r.Register(ctx, monitor.RegisterRequest{URL: testListingURL, Priority: 8})
	if err != nil {
		t.Fatalf("re-Register() error = %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("expected the dormant monitor reused, got new id %s", second.ID)
	}
	if !second.Active {
		t.Error("expected the monitor reactivated")
	}

	stored, _ := monitors.GetByListingID(ctx, first.ListingID)
	if !stored.Active {
		t.Error("expected reactivation persisted")
	}
	if stored.Priority != 8 {
		t.Errorf("expected priority raised on reactivation, got %d", stored.Priority)
	}
	if stored.NextPollAt.After(time.Now().Add(time.Minute)) {
		t.Error("expected an immediate next poll after reactivation")
	}
}
