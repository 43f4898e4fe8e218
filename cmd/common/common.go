// Package common wires shared dependencies for the CLI commands.
package common

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/sss97133/nuke-sub008/internal/config"
	"github.com/sss97133/nuke-sub008/internal/database"
	"github.com/sss97133/nuke-sub008/internal/domain"
	"github.com/sss97133/nuke-sub008/internal/events"
	"github.com/sss97133/nuke-sub008/internal/extract"
	"github.com/sss97133/nuke-sub008/internal/fetch"
	"github.com/sss97133/nuke-sub008/internal/logger"
	"github.com/sss97133/nuke-sub008/internal/monitor"
	"github.com/sss97133/nuke-sub008/internal/reconcile"
)

const schemaTimeout = 30 * time.Second

// Deps holds the process-level dependencies shared by commands.
type Deps struct {
	Cfg *config.Config
	Log logger.Logger
	DB  *sqlx.DB
}

// Setup loads configuration, builds the logger, and connects to the
// database, applying the schema on the way.
func Setup(cfgPath string) (*Deps, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()
	if err := database.EnsureSchema(ctx, db); err != nil {
		return nil, err
	}
	if err := database.SeedPlatforms(ctx, db, domain.Platforms); err != nil {
		return nil, err
	}

	return &Deps{Cfg: cfg, Log: log, DB: db}, nil
}

// Close releases the process-level dependencies.
func (d *Deps) Close() {
	if d.DB != nil {
		_ = d.DB.Close()
	}
	if d.Log != nil {
		_ = d.Log.Sync()
	}
}

// Services holds the wired domain services.
type Services struct {
	Listings *database.ListingRepository
	Monitors *database.MonitoredAuctionRepository
	Comments *database.CommentRepository
	FetchLog *database.FetchLogRepository

	Fetcher   *fetch.Selector
	Extractor *extract.Engine
	Registry  *monitor.Registry
	Syncer    *monitor.Syncer
}

// BuildServices constructs the full service graph. Events publish to
// Redis when an address is configured and fall back to structured log
// output otherwise.
func BuildServices(d *Deps) *Services {
	listings := database.NewListingRepository(d.DB)
	monitors := database.NewMonitoredAuctionRepository(d.DB)
	comments := database.NewCommentRepository(d.DB)
	fetchLog := database.NewFetchLogRepository(d.DB)

	fetcher := fetch.NewSelector(d.Cfg.Fetch, fetchLog, d.Log)
	extractor := extract.NewEngine(d.Log)
	reconciler := reconcile.New(d.Cfg.Reconcile, d.Log)

	var handler events.Handler
	var deduper events.Deduper
	if d.Cfg.Redis.Address != "" {
		sink := events.NewRedisSink(redis.NewClient(&redis.Options{
			Addr:     d.Cfg.Redis.Address,
			Password: d.Cfg.Redis.Password,
			DB:       d.Cfg.Redis.DB,
		}))
		handler = sink
		deduper = sink
	} else {
		handler = events.NewLogHandler(d.Log)
		deduper = events.NewMemoryDeduper()
	}
	emitter := events.NewEmitter(d.Cfg.Events, deduper, handler, d.Log)

	registry := monitor.NewRegistry(listings, monitors, d.Log)
	syncer := monitor.NewSyncer(listings, monitors, comments, fetcher, extractor, reconciler, emitter, d.Log)

	return &Services{
		Listings:  listings,
		Monitors:  monitors,
		Comments:  comments,
		FetchLog:  fetchLog,
		Fetcher:   fetcher,
		Extractor: extractor,
		Registry:  registry,
		Syncer:    syncer,
	}
}
