package monitor_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sss97133/nuke-sub008/internal/domain"
	"github.com/sss97133/nuke-sub008/internal/events"
	"github.com/sss97133/nuke-sub008/internal/extract"
	"github.com/sss97133/nuke-sub008/internal/fetch"
	"github.com/sss97133/nuke-sub008/internal/monitor"
	"github.com/sss97133/nuke-sub008/internal/reconcile"
)

// recordingHandler captures emitted events for assertions.
type recordingHandler struct {
	mu     sync.Mutex
	events []domain.AuctionEvent
}

func (h *recordingHandler) Handle(_ context.Context, event domain.AuctionEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return nil
}

func (h *recordingHandler) all() []domain.AuctionEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.AuctionEvent(nil), h.events...)
}

// syncHarness wires a syncer against in-memory stores, a canned fetcher,
// and the real extraction, reconciliation, and emission pipeline.
type syncHarness struct {
	listings *fakeListingStore
	monitors *fakeMonitorStore
	comments *fakeCommentStore
	fetcher  *fakeFetcher
	handler  *recordingHandler
	registry *monitor.Registry
	syncer   *monitor.Syncer
}

func newSyncHarness() *syncHarness {
	h := &syncHarness{
		listings: newFakeListingStore(),
		monitors: newFakeMonitorStore(),
		comments: newFakeCommentStore(),
		fetcher:  newFakeFetcher(),
		handler:  &recordingHandler{},
	}
	emitter := events.NewEmitter(events.Config{}, events.NewMemoryDeduper(), h.handler, nil)
	h.registry = monitor.NewRegistry(h.listings, h.monitors, nil)
	h.syncer = monitor.NewSyncer(
		h.listings, h.monitors, h.comments,
		h.fetcher, extract.NewEngine(nil), reconcile.New(reconcile.Config{}, nil),
		emitter, nil,
	)
	return h
}

// register puts the test listing under monitoring and returns the monitor
// and the canonical URL the fetcher will be asked for.
func (h *syncHarness) register(t *testing.T) (*domain.MonitoredAuction, string) {
	t.Helper()
	mon, listing, err := h.registry.Register(context.Background(), monitor.RegisterRequest{
		URL: testListingURL,
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return mon, listing.URL
}

func activeListingHTML(currentBid int64, endsAt time.Time) string {
	return fmt.Sprintf(`<html>
<head><title>1967 Ford Mustang Fastback</title></head>
<body>
	<h1>1967 Ford Mustang Fastback</h1>
	<p>Current Bid: $%s with 17 bids</p>
	<div data-ends="%d"></div>
</body>
</html>`, withThousands(currentBid), endsAt.Unix())
}

const soldListingHTML = `<html>
<head><title>1967 Ford Mustang Fastback</title></head>
<body>
	<h1>1967 Ford Mustang Fastback</h1>
	<p>This auction has ended. Sold for $142,000 to winning bidder gt500fan.</p>
	<script type="application/json">
	{
		"comments": [
			{"author": "gt500fan", "text": "Congrats to the seller, glad it stayed original.", "likes": 4},
			{"author": "fastbackfred", "text": "Sold for $142,000", "bid_amount": 142000}
		]
	}
	</script>
</body>
</html>`

func withThousands(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	return s[:len(s)-3] + "," + s[len(s)-3:]
}

func TestSync_ActiveListing(t *testing.T) {
	h := newSyncHarness()
	mon, url := h.register(t)

	endsAt := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)
	h.fetcher.pages[url] = activeListingHTML(36_000, endsAt)

	res, err := h.syncer.Sync(context.Background(), mon)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	if res.Concluded {
		t.Error("active listing must not conclude the monitor")
	}
	if res.Listing.State != domain.ListingStateActive {
		t.Errorf("expected active state, got %s", res.Listing.State)
	}
	if res.Listing.CurrentBid == nil || *res.Listing.CurrentBid != 36_000 {
		t.Errorf("expected current bid 36000, got %v", res.Listing.CurrentBid)
	}
	if res.Listing.BidCount == nil || *res.Listing.BidCount != 17 {
		t.Errorf("expected bid count 17, got %v", res.Listing.BidCount)
	}
	if res.Listing.EndTime == nil || !res.Listing.EndTime.Equal(endsAt) {
		t.Errorf("expected end time %v, got %v", endsAt, res.Listing.EndTime)
	}

	stored, err := h.listings.GetByID(context.Background(), mon.ListingID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.LastSyncedAt == nil {
		t.Error("expected last_synced_at set after a sync")
	}

	// 48h remaining at default priority polls hourly.
	updated, _ := h.monitors.GetByListingID(context.Background(), mon.ListingID)
	wait := time.Until(updated.NextPollAt)
	if wait < 50*time.Minute || wait > 70*time.Minute {
		t.Errorf("expected roughly hourly next poll, got %v", wait)
	}
}

func TestSync_SoldListingEmitsEventAndDeactivates(t *testing.T) {
	h := newSyncHarness()
	mon, url := h.register(t)
	ctx := context.Background()

	h.fetcher.pages[url] = activeListingHTML(130_000, time.Now().Add(2*time.Hour))
	if _, err := h.syncer.Sync(ctx, mon); err != nil {
		t.Fatalf("active Sync() error = %v", err)
	}

	h.fetcher.pages[url] = soldListingHTML
	res, err := h.syncer.Sync(ctx, mon)
	if err != nil {
		t.Fatalf("sold Sync() error = %v", err)
	}

	if !res.Concluded {
		t.Error("expected the sold sync to conclude the monitor")
	}
	if res.Listing.State != domain.ListingStateSold {
		t.Errorf("expected sold state, got %s", res.Listing.State)
	}
	if res.Listing.FinalPrice == nil || *res.Listing.FinalPrice != 142_000 {
		t.Errorf("expected final price 142000, got %v", res.Listing.FinalPrice)
	}
	if res.Listing.EndTime != nil {
		t.Error("terminal listing must not carry an end time")
	}

	updated, _ := h.monitors.GetByListingID(ctx, mon.ListingID)
	if updated.Active {
		t.Error("expected the monitor deactivated after conclusion")
	}

	var sold *domain.AuctionEvent
	for _, ev := range h.handler.all() {
		if ev.Kind == domain.EventSold {
			e := ev
			sold = &e
		}
	}
	if sold == nil {
		t.Fatal("expected a sold event")
	}
	if sold.IdempotencyKey != "1967-mustang:sold" {
		t.Errorf("unexpected idempotency key %s", sold.IdempotencyKey)
	}
}

func TestSync_PersistsComments(t *testing.T) {
	h := newSyncHarness()
	mon, url := h.register(t)

	h.fetcher.pages[url] = soldListingHTML
	if _, err := h.syncer.Sync(context.Background(), mon); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	h.comments.mu.Lock()
	stored := h.comments.byListing[mon.ListingID]
	h.comments.mu.Unlock()
	if len(stored) != 2 {
		t.Fatalf("expected 2 comments persisted, got %d", len(stored))
	}
	if stored[0].Author != "gt500fan" {
		t.Errorf("unexpected first comment author %s", stored[0].Author)
	}
}

func TestSync_FetchFailureLeavesListingUntouched(t *testing.T) {
	h := newSyncHarness()
	mon, url := h.register(t)
	ctx := context.Background()

	h.fetcher.pages[url] = activeListingHTML(30_000, time.Now().Add(2*time.Hour))
	if _, err := h.syncer.Sync(ctx, mon); err != nil {
		t.Fatalf("setup Sync() error = %v", err)
	}
	before, _ := h.listings.GetByID(ctx, mon.ListingID)
	monBefore, _ := h.monitors.GetByListingID(ctx, mon.ListingID)

	h.fetcher.err = fetch.ErrFetchFailed
	_, err := h.syncer.Sync(ctx, mon)
	if !errors.Is(err, fetch.ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}

	after, _ := h.listings.GetByID(ctx, mon.ListingID)
	if !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Error("a failed fetch must not touch the stored record")
	}
	if after.CurrentBid == nil || *after.CurrentBid != 30_000 {
		t.Errorf("expected bid preserved, got %v", after.CurrentBid)
	}

	monAfter, _ := h.monitors.GetByListingID(ctx, mon.ListingID)
	if !monAfter.NextPollAt.After(monBefore.NextPollAt) {
		t.Error("expected the poll rescheduled after a failed fetch")
	}
	if !monAfter.Active {
		t.Error("a failed fetch must not deactivate the monitor")
	}
}

func TestSync_ConflictRetriesOnce(t *testing.T) {
	h := newSyncHarness()
	mon, url := h.register(t)
	ctx := context.Background()

	h.fetcher.pages[url] = activeListingHTML(36_000, time.Now().Add(2*time.Hour))
	h.listings.failNext = true

	res, err := h.syncer.Sync(ctx, mon)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if res.Listing.CurrentBid == nil || *res.Listing.CurrentBid != 36_000 {
		t.Errorf("expected the retried write to land, got %v", res.Listing.CurrentBid)
	}

	stored, _ := h.listings.GetByID(ctx, mon.ListingID)
	if stored.CurrentBid == nil || *stored.CurrentBid != 36_000 {
		t.Errorf("expected the conflict retry persisted, got %v", stored.CurrentBid)
	}
}

func TestSync_UnchangedUpstreamIsIdempotent(t *testing.T) {
	h := newSyncHarness()
	mon, url := h.register(t)
	ctx := context.Background()

	h.fetcher.pages[url] = activeListingHTML(36_000, time.Now().Add(2*time.Hour))
	if _, err := h.syncer.Sync(ctx, mon); err != nil {
		t.Fatalf("first Sync() error = %v", err)
	}
	first, _ := h.listings.GetByID(ctx, mon.ListingID)
	emitted := len(h.handler.all())

	res, err := h.syncer.Sync(ctx, mon)
	if err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}

	if !res.Delta.Empty() {
		t.Errorf("an unchanged page must produce an empty delta, got %+v", res.Delta)
	}
	if len(res.Events) != 0 {
		t.Errorf("an unchanged page must emit nothing, got %d events", len(res.Events))
	}
	if len(h.handler.all()) != emitted {
		t.Error("repeat sync reached the event handler")
	}

	second, _ := h.listings.GetByID(ctx, mon.ListingID)
	if *second.CurrentBid != *first.CurrentBid || *second.BidCount != *first.BidCount {
		t.Errorf("expected identical counters, got bid %v count %v", second.CurrentBid, second.BidCount)
	}
	if second.State != first.State || !second.EndTime.Equal(*first.EndTime) {
		t.Errorf("expected identical state and end time, got %s %v", second.State, second.EndTime)
	}
}

func TestSync_ReportsFetchCost(t *testing.T) {
	h := newSyncHarness()
	mon, url := h.register(t)

	h.fetcher.pages[url] = activeListingHTML(36_000, time.Now().Add(2*time.Hour))
	h.fetcher.costCents = 150

	res, err := h.syncer.Sync(context.Background(), mon)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if res.CostCents != 150 {
		t.Errorf("expected fetch cost 150 on the result, got %d", res.CostCents)
	}
}

func TestSync_ConflictRetryRecomputesDelta(t *testing.T) {
	h := newSyncHarness()
	mon, url := h.register(t)
	ctx := context.Background()

	h.fetcher.pages[url] = activeListingHTML(10_000, time.Now().Add(2*time.Hour))
	if _, err := h.syncer.Sync(ctx, mon); err != nil {
		t.Fatalf("setup Sync() error = %v", err)
	}

	// A concurrent writer moves the bid to 15,000 just before our write
	// lands. Against that row the page's 16,000 is a small step, not the
	// 6,000 jump the stale delta would claim.
	h.fetcher.pages[url] = activeListingHTML(16_000, time.Now().Add(2*time.Hour))
	h.listings.failNext = true
	h.listings.onConflict = func(current *domain.ListingRecord) {
		bid := int64(15_000)
		current.CurrentBid = &bid
		current.UpdatedAt = time.Now().UTC()
	}

	res, err := h.syncer.Sync(ctx, mon)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	if res.Delta.BidIncrease == nil || res.Delta.BidIncrease.From != 15_000 {
		t.Fatalf("expected the delta recomputed against the retried row, got %+v", res.Delta.BidIncrease)
	}
	for _, ev := range h.handler.all() {
		if ev.Kind == domain.EventBidMilestone {
			t.Errorf("milestone emitted from a stale delta: %+v", ev.Payload)
		}
	}
}

func TestSync_SoftCloseTightensPolling(t *testing.T) {
	h := newSyncHarness()
	mon, url := h.register(t)
	ctx := context.Background()

	// The stored record believes the auction ends in 30 minutes; the page
	// now reports 45, which is what an anti-sniping extension looks like.
	prevEnd := time.Now().Add(30 * time.Minute).UTC()
	listing, _ := h.listings.GetByID(ctx, mon.ListingID)
	listing.EndTime = &prevEnd
	if err := h.listings.Update(ctx, listing, listing.UpdatedAt); err != nil {
		t.Fatalf("seed Update() error = %v", err)
	}

	h.fetcher.pages[url] = activeListingHTML(36_000, time.Now().Add(45*time.Minute))
	if _, err := h.syncer.Sync(ctx, mon); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	updated, _ := h.monitors.GetByListingID(ctx, mon.ListingID)
	if !updated.IsInSoftClose {
		t.Fatal("expected the monitor flagged as in soft close")
	}
	if wait := time.Until(updated.NextPollAt); wait > time.Minute {
		t.Errorf("soft close must poll at the tightest interval, got %v", wait)
	}

	// Soft close is sticky until the auction concludes.
	h.fetcher.pages[url] = activeListingHTML(37_000, time.Now().Add(50*time.Minute))
	if _, err := h.syncer.Sync(ctx, updated); err != nil {
		t.Fatalf("followup Sync() error = %v", err)
	}
	updated, _ = h.monitors.GetByListingID(ctx, mon.ListingID)
	if !updated.IsInSoftClose {
		t.Error("expected soft close to persist across polls")
	}
}
