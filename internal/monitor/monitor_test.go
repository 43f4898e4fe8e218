package monitor_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sss97133/nuke-sub008/internal/database"
	"github.com/sss97133/nuke-sub008/internal/domain"
	"github.com/sss97133/nuke-sub008/internal/fetch"
)

// --- In-memory fakes ---

// fakeListingStore implements monitor.ListingStore. failNext makes the
// next Update fail with a conflict; onConflict, when set, mutates the
// stored row at that moment, playing the concurrent writer that caused
// the conflict.
type fakeListingStore struct {
	mu         sync.Mutex
	byID       map[string]*domain.ListingRecord
	failNext   bool
	onConflict func(*domain.ListingRecord)
}

func newFakeListingStore() *fakeListingStore {
	return &fakeListingStore{byID: make(map[string]*domain.ListingRecord)}
}

func (s *fakeListingStore) Create(_ context.Context, listing *domain.ListingRecord) (*domain.ListingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.byID {
		if l.Platform == listing.Platform && l.ExternalID == listing.ExternalID {
			clone := *l
			return &clone, nil
		}
	}
	clone := *listing
	s.byID[listing.ID] = &clone
	out := clone
	return &out, nil
}

func (s *fakeListingStore) GetByID(_ context.Context, id string) (*domain.ListingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("listing %s: %w", id, database.ErrNotFound)
	}
	clone := *l
	return &clone, nil
}

func (s *fakeListingStore) GetByPlatformExternalID(_ context.Context, platform, externalID string) (*domain.ListingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.byID {
		if l.Platform == platform && l.ExternalID == externalID {
			clone := *l
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("listing %s/%s: %w", platform, externalID, database.ErrNotFound)
}

func (s *fakeListingStore) Update(_ context.Context, listing *domain.ListingRecord, readAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byID[listing.ID]
	if !ok {
		return database.ErrNotFound
	}
	if s.failNext {
		s.failNext = false
		if s.onConflict != nil {
			s.onConflict(current)
		}
		return database.ErrConflict
	}
	if !current.UpdatedAt.Equal(readAt) {
		return database.ErrConflict
	}
	clone := *listing
	s.byID[listing.ID] = &clone
	return nil
}

// fakeMonitorStore implements monitor.MonitorStore.
type fakeMonitorStore struct {
	mu   sync.Mutex
	byID map[string]*domain.MonitoredAuction
}

func newFakeMonitorStore() *fakeMonitorStore {
	return &fakeMonitorStore{byID: make(map[string]*domain.MonitoredAuction)}
}

func (s *fakeMonitorStore) Create(_ context.Context, m *domain.MonitoredAuction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *m
	s.byID[m.ID] = &clone
	return nil
}

func (s *fakeMonitorStore) GetByListingID(_ context.Context, listingID string) (*domain.MonitoredAuction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.byID {
		if m.ListingID == listingID {
			clone := *m
			clone.Watchers = append([]string(nil), m.Watchers...)
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("monitor for %s: %w", listingID, database.ErrNotFound)
}

func (s *fakeMonitorStore) Reactivate(_ context.Context, id string, priority int, nextPollAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return database.ErrNotFound
	}
	m.Active = true
	m.IsInSoftClose = false
	if priority > m.Priority {
		m.Priority = priority
	}
	m.NextPollAt = nextPollAt
	return nil
}

func (s *fakeMonitorStore) RaisePriority(_ context.Context, id string, priority int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return database.ErrNotFound
	}
	if priority > m.Priority {
		m.Priority = priority
	}
	return nil
}

func (s *fakeMonitorStore) AddWatcher(_ context.Context, id, watcherID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return database.ErrNotFound
	}
	for _, w := range m.Watchers {
		if w == watcherID {
			return nil
		}
	}
	m.Watchers = append(m.Watchers, watcherID)
	return nil
}

func (s *fakeMonitorStore) Due(_ context.Context, now time.Time, limit int) ([]*domain.MonitoredAuction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*domain.MonitoredAuction
	for _, m := range s.byID {
		if m.Active && !m.NextPollAt.After(now) {
			clone := *m
			due = append(due, &clone)
		}
		if len(due) == limit {
			break
		}
	}
	return due, nil
}

func (s *fakeMonitorStore) UpdateAfterPoll(_ context.Context, id string, nextPollAt time.Time, softClose bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return database.ErrNotFound
	}
	m.NextPollAt = nextPollAt
	m.IsInSoftClose = softClose
	return nil
}

func (s *fakeMonitorStore) Deactivate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return database.ErrNotFound
	}
	m.Active = false
	return nil
}

// fakeCommentStore implements monitor.CommentStore.
type fakeCommentStore struct {
	mu        sync.Mutex
	byListing map[string][]domain.Comment
}

func newFakeCommentStore() *fakeCommentStore {
	return &fakeCommentStore{byListing: make(map[string][]domain.Comment)}
}

func (s *fakeCommentStore) Upsert(_ context.Context, listingID string, comments []domain.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byListing[listingID] = append([]domain.Comment(nil), comments...)
	return nil
}

// fakeFetcher implements monitor.Fetcher, serving canned HTML per URL.
type fakeFetcher struct {
	mu        sync.Mutex
	pages     map[string]string
	err       error
	calls     int
	costCents int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: make(map[string]string)}
}

func (f *fakeFetcher) Fetch(_ context.Context, url string, _ fetch.Context) (*fetch.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	html, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("no page for %s: %w", url, fetch.ErrFetchFailed)
	}
	return &fetch.Result{HTML: []byte(html), Source: fetch.SourceDirect, CostCents: f.costCents}, nil
}
