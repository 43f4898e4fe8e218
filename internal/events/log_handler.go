package events

import (
	"context"
	"sync"

	"github.com/sss97133/nuke-sub008/internal/domain"
	"github.com/sss97133/nuke-sub008/internal/logger"
)

// LogHandler writes events to the structured log instead of a broker.
// Used when Redis is not configured, so syncs still run end to end.
type LogHandler struct {
	log logger.Logger
}

// NewLogHandler creates a log-only event handler.
func NewLogHandler(log logger.Logger) *LogHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &LogHandler{log: log}
}

// Handle logs the event and succeeds.
func (h *LogHandler) Handle(_ context.Context, event domain.AuctionEvent) error {
	h.log.Info("auction event",
		logger.String("kind", string(event.Kind)),
		logger.String("listing_id", event.ListingID),
		logger.String("platform", event.Platform),
		logger.String("external_id", event.ExternalID),
		logger.String("idempotency_key", event.IdempotencyKey),
	)
	return nil
}

// MemoryDeduper tracks idempotency keys in process memory. It backs
// redis-less runs and tests; keys survive only as long as the process.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

// NewMemoryDeduper creates an in-memory idempotency tracker.
func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[string]bool)}
}

// FirstEmission claims a key, reporting whether it was unseen.
func (d *MemoryDeduper) FirstEmission(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}
