// Package api implements the HTTP API for the auction monitor service.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sss97133/nuke-sub008/internal/logger"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// Config holds HTTP server settings.
type Config struct {
	// Address is the listen address, e.g. ":8080".
	Address string `yaml:"address" mapstructure:"address"`
}

// SetDefaults applies default values to the config if not set.
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
}

// Server is the HTTP API server.
type Server struct {
	cfg     Config
	handler *Handler
	log     logger.Logger
	srv     *http.Server
}

// NewServer creates the API server.
func NewServer(cfg Config, handler *Handler, log logger.Logger) *Server {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	return &Server{cfg: cfg, handler: handler, log: log}
}

// Router builds the Gin router with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.loggingMiddleware())

	router.GET("/healthz", s.handler.Health)

	v1 := router.Group("/api/v1")
	v1.POST("/monitors", s.handler.RegisterMonitor)
	v1.POST("/listings/:id/sync", s.handler.SyncListing)
	v1.POST("/extract", s.handler.ExtractOnce)
	v1.GET("/listings", s.handler.ListListings)
	v1.GET("/listings/:id", s.handler.GetListing)
	v1.GET("/listings/:id/comments", s.handler.GetListingComments)

	return router
}

// Start runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api server listening", logger.String("address", s.cfg.Address))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	s.log.Info("api server stopped")
	return nil
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request handled",
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("duration", time.Since(start)),
		)
	}
}
