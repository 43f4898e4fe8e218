// Package scheduler drives the live-monitoring loop: it claims due
// monitors on an interval and fans them out to a bounded worker pool.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sss97133/nuke-sub008/internal/domain"
	"github.com/sss97133/nuke-sub008/internal/logger"
	"github.com/sss97133/nuke-sub008/internal/monitor"
)

const (
	defaultCheckInterval = 10 * time.Second
	defaultWorkerCount   = 4
	defaultClaimLimit    = 50
	defaultSyncTimeout   = 2 * time.Minute
)

// Config holds scheduler loop settings.
type Config struct {
	// CheckInterval is how often the due-monitor query runs.
	CheckInterval time.Duration `yaml:"check_interval" mapstructure:"check_interval"`
	// WorkerCount is the number of concurrent sync workers.
	WorkerCount int `yaml:"worker_count" mapstructure:"worker_count"`
	// ClaimLimit caps how many monitors one check dispatches.
	ClaimLimit int `yaml:"claim_limit" mapstructure:"claim_limit"`
	// SyncTimeout bounds one full sync cycle so a hung call cannot pin a
	// worker and its in-flight claim.
	SyncTimeout time.Duration `yaml:"sync_timeout" mapstructure:"sync_timeout"`
}

// SetDefaults applies default values to the config if not set.
func (c *Config) SetDefaults() {
	if c.CheckInterval <= 0 {
		c.CheckInterval = defaultCheckInterval
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = defaultWorkerCount
	}
	if c.ClaimLimit <= 0 {
		c.ClaimLimit = defaultClaimLimit
	}
	if c.SyncTimeout <= 0 {
		c.SyncTimeout = defaultSyncTimeout
	}
}

// DueLister returns monitors whose next poll time has passed.
type DueLister interface {
	DueForPoll(ctx context.Context, now time.Time, limit int) ([]*domain.MonitoredAuction, error)
}

// SyncRunner runs one sync cycle for a monitor.
type SyncRunner interface {
	Sync(ctx context.Context, m *domain.MonitoredAuction) (*monitor.SyncResult, error)
}

// Scheduler polls for due monitors and syncs them through a worker pool.
type Scheduler struct {
	cfg      Config
	registry DueLister
	syncer   SyncRunner
	log      logger.Logger

	// inFlight guards against dispatching a monitor twice while a slow
	// sync for it is still running.
	inFlight   map[string]struct{}
	inFlightMu sync.Mutex
}

// New creates a scheduler.
func New(cfg Config, registry DueLister, syncer SyncRunner, log logger.Logger) *Scheduler {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	return &Scheduler{
		cfg:      cfg,
		registry: registry,
		syncer:   syncer,
		log:      log,
		inFlight: make(map[string]struct{}),
	}
}

// Run starts the poll loop and worker pool. Blocks until ctx is
// cancelled; in-flight syncs are drained before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler starting",
		logger.Duration("check_interval", s.cfg.CheckInterval),
		logger.Int("worker_count", s.cfg.WorkerCount),
	)

	work := make(chan *domain.MonitoredAuction)

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.WorkerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID, work)
		}(i)
	}

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(work)
			wg.Wait()
			s.log.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			s.dispatchDue(ctx, work)
		}
	}
}

// dispatchDue claims due monitors and hands them to idle workers. A full
// worker pool makes the remaining monitors wait for the next tick rather
// than queueing unboundedly.
func (s *Scheduler) dispatchDue(ctx context.Context, work chan<- *domain.MonitoredAuction) {
	due, err := s.registry.DueForPoll(ctx, time.Now().UTC(), s.cfg.ClaimLimit)
	if err != nil {
		s.log.Error("due poll query failed", logger.Error(err))
		return
	}
	if len(due) > 0 {
		s.log.Debug("monitors due", logger.Int("count", len(due)))
	}

	for _, m := range due {
		if !s.claim(m.ID) {
			continue
		}
		select {
		case work <- m:
		case <-ctx.Done():
			s.release(m.ID)
			return
		default:
			s.release(m.ID)
			return
		}
	}
}

func (s *Scheduler) worker(ctx context.Context, workerID int, work <-chan *domain.MonitoredAuction) {
	for m := range work {
		s.runSync(ctx, workerID, m)
	}
}

// runSync executes one sync under the per-sync timeout and releases the
// in-flight claim whatever happens.
func (s *Scheduler) runSync(ctx context.Context, workerID int, m *domain.MonitoredAuction) {
	defer s.release(m.ID)

	syncCtx, cancel := context.WithTimeout(ctx, s.cfg.SyncTimeout)
	defer cancel()

	if _, err := s.syncer.Sync(syncCtx, m); err != nil {
		s.log.Error("sync failed",
			logger.Int("worker_id", workerID),
			logger.String("monitor_id", m.ID),
			logger.Error(err),
		)
	}
}

func (s *Scheduler) claim(id string) bool {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *Scheduler) release(id string) {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	delete(s.inFlight, id)
}
