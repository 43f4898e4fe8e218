package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sss97133/nuke-sub008/internal/logger"
)

// cleanupSchedule runs the sweep daily at 03:00.
const cleanupSchedule = "0 3 * * *"

// concludedRetention is how long a concluded auction keeps its monitor
// active-eligible before the sweep forces it dormant. Covers monitors
// whose deactivation was missed, e.g. a crash between persist and
// deactivate.
const concludedRetention = 24 * time.Hour

// ConcludedDeactivator turns dormant the monitors of listings that
// concluded before the cutoff.
type ConcludedDeactivator interface {
	DeactivateConcluded(ctx context.Context, cutoff time.Time) (int64, error)
}

// CostReporter sums rendered-fetch spend since a point in time.
type CostReporter interface {
	CostSince(ctx context.Context, since time.Time) (int64, error)
}

// Cleanup runs the scheduled dormancy sweep and the daily spend report.
type Cleanup struct {
	monitors ConcludedDeactivator
	costs    CostReporter
	log      logger.Logger
	cron     *cron.Cron
}

// NewCleanup creates the cleanup sweep. costs may be nil to skip the
// spend report.
func NewCleanup(monitors ConcludedDeactivator, costs CostReporter, log logger.Logger) *Cleanup {
	if log == nil {
		log = logger.NewNop()
	}
	return &Cleanup{monitors: monitors, costs: costs, log: log, cron: cron.New()}
}

// Start schedules the daily sweep. Returns an error only for an invalid
// schedule expression.
func (c *Cleanup) Start() error {
	_, err := c.cron.AddFunc(cleanupSchedule, c.sweep)
	if err != nil {
		return err
	}
	c.cron.Start()
	c.log.Info("cleanup sweep scheduled", logger.String("schedule", cleanupSchedule))
	return nil
}

// Stop halts the cron scheduler, waiting for a running sweep to finish.
func (c *Cleanup) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

func (c *Cleanup) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().Add(-concludedRetention)
	n, err := c.monitors.DeactivateConcluded(ctx, cutoff)
	if err != nil {
		c.log.Error("cleanup sweep failed", logger.Error(err))
		return
	}
	if n > 0 {
		c.log.Info("stale monitors deactivated", logger.Int64("count", n))
	}

	if c.costs != nil {
		spend, err := c.costs.CostSince(ctx, time.Now().UTC().Add(-24*time.Hour))
		if err != nil {
			c.log.Error("spend report failed", logger.Error(err))
			return
		}
		c.log.Info("rendered fetch spend past 24h", logger.Int64("cost_cents", spend))
	}
}
