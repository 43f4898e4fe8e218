package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sss97133/nuke-sub008/internal/database"
	"github.com/sss97133/nuke-sub008/internal/domain"
	"github.com/sss97133/nuke-sub008/internal/fetch"
	"github.com/sss97133/nuke-sub008/internal/logger"
	"github.com/sss97133/nuke-sub008/internal/monitor"
)

const (
	defaultLimit  = 50
	defaultOffset = 0
)

// Registrar registers listings for monitoring.
type Registrar interface {
	Register(ctx context.Context, req monitor.RegisterRequest) (*domain.MonitoredAuction, *domain.ListingRecord, error)
}

// SyncRunner runs one sync cycle for a monitor.
type SyncRunner interface {
	Sync(ctx context.Context, m *domain.MonitoredAuction) (*monitor.SyncResult, error)
}

// MonitorReader looks up monitors by listing.
type MonitorReader interface {
	GetByListingID(ctx context.Context, listingID string) (*domain.MonitoredAuction, error)
}

// ListingReader reads persisted listings.
type ListingReader interface {
	GetByID(ctx context.Context, id string) (*domain.ListingRecord, error)
	List(ctx context.Context, limit, offset int) ([]*domain.ListingRecord, error)
}

// CommentReader reads stored listing comments.
type CommentReader interface {
	ListByListingID(ctx context.Context, listingID string) ([]domain.Comment, error)
}

// Fetcher retrieves listing HTML for one-shot extraction.
type Fetcher interface {
	Fetch(ctx context.Context, url string, fctx fetch.Context) (*fetch.Result, error)
}

// Extractor parses listing HTML.
type Extractor interface {
	Extract(html []byte, sourceURL string) *domain.ExtractionResult
}

// Handler holds the HTTP request handlers.
type Handler struct {
	registry  Registrar
	syncer    SyncRunner
	monitors  MonitorReader
	listings  ListingReader
	comments  CommentReader
	fetcher   Fetcher
	extractor Extractor
	log       logger.Logger
}

// NewHandler creates the API handler set.
func NewHandler(
	registry Registrar,
	syncer SyncRunner,
	monitors MonitorReader,
	listings ListingReader,
	comments CommentReader,
	fetcher Fetcher,
	extractor Extractor,
	log logger.Logger,
) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{
		registry:  registry,
		syncer:    syncer,
		monitors:  monitors,
		listings:  listings,
		comments:  comments,
		fetcher:   fetcher,
		extractor: extractor,
		log:       log,
	}
}

// Health handles GET /healthz.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RegisterMonitorRequest is the body for POST /api/v1/monitors.
type RegisterMonitorRequest struct {
	URL          string `json:"url" binding:"required"`
	WatcherID    string `json:"watcher_id"`
	Priority     int    `json:"priority"`
	PlatformHint string `json:"platform_hint"`
}

// RegisterMonitor handles POST /api/v1/monitors.
func (h *Handler) RegisterMonitor(c *gin.Context) {
	var req RegisterMonitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}

	mon, listing, err := h.registry.Register(c.Request.Context(), monitor.RegisterRequest{
		URL:          req.URL,
		WatcherID:    req.WatcherID,
		Priority:     req.Priority,
		PlatformHint: req.PlatformHint,
	})
	if err != nil {
		if errors.Is(err, monitor.ErrUnknownPlatform) || errors.Is(err, monitor.ErrNoExternalID) {
			respondFailure(c, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.log.Error("registration failed", logger.String("url", req.URL), logger.Error(err))
		respondFailure(c, http.StatusInternalServerError, "registration failed")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"monitor": mon,
		"listing": listing,
	})
}

// SyncListing handles POST /api/v1/listings/:id/sync.
func (h *Handler) SyncListing(c *gin.Context) {
	id := c.Param("id")

	mon, err := h.monitors.GetByListingID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondNotFound(c, "monitor")
			return
		}
		respondInternalError(c, "monitor lookup failed")
		return
	}

	result, err := h.syncer.Sync(c.Request.Context(), mon)
	if err != nil {
		if errors.Is(err, fetch.ErrFetchFailed) {
			respondFailure(c, http.StatusBadGateway, "fetch failed")
			return
		}
		h.log.Error("manual sync failed", logger.String("listing_id", id), logger.Error(err))
		respondInternalError(c, "sync failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"listing":          result.Listing,
		"events":           len(result.Events),
		"source":           result.Source,
		"fetch_cost_cents": result.CostCents,
		"concluded":        result.Concluded,
	})
}

// ExtractOnceRequest is the body for POST /api/v1/extract.
type ExtractOnceRequest struct {
	URL string `json:"url" binding:"required"`
	// ForceRender escalates straight past the escalation gate.
	ForceRender bool `json:"force_render"`
	// Persist registers the listing and stores the extraction outcome.
	Persist      bool   `json:"persist"`
	PlatformHint string `json:"platform_hint"`
}

// ExtractOnce handles POST /api/v1/extract: fetch a listing page once and
// return everything extraction recovered. Partial results are success;
// only a failed fetch is an error.
func (h *Handler) ExtractOnce(c *gin.Context) {
	var req ExtractOnceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.fetcher.Fetch(c.Request.Context(), req.URL, fetch.Context{
		ForceEscalation: req.ForceRender,
		Caller:          "extract",
	})
	if err != nil {
		respondFailure(c, http.StatusBadGateway, "fetch failed: "+err.Error())
		return
	}

	extraction := h.extractor.Extract(result.HTML, req.URL)

	resp := gin.H{
		"success":    true,
		"source":     result.Source,
		"extraction": extraction,
	}

	if req.Persist {
		_, listing, regErr := h.registry.Register(c.Request.Context(), monitor.RegisterRequest{
			URL:          req.URL,
			PlatformHint: req.PlatformHint,
		})
		if regErr != nil {
			respondFailure(c, http.StatusUnprocessableEntity, "persist failed: "+regErr.Error())
			return
		}
		resp["listing_id"] = listing.ID
	}

	c.JSON(http.StatusOK, resp)
}

// ListListings handles GET /api/v1/listings.
func (h *Handler) ListListings(c *gin.Context) {
	limit, offset := parseLimitOffset(c, defaultLimit, defaultOffset)

	listings, err := h.listings.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondInternalError(c, "failed to list listings")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"listings": listings,
		"count":    len(listings),
	})
}

// GetListing handles GET /api/v1/listings/:id.
func (h *Handler) GetListing(c *gin.Context) {
	id := c.Param("id")

	listing, err := h.listings.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondNotFound(c, "listing")
			return
		}
		respondInternalError(c, "listing lookup failed")
		return
	}

	c.JSON(http.StatusOK, listing)
}

// GetListingComments handles GET /api/v1/listings/:id/comments. Returns
// the stored comment feed in first-seen order.
func (h *Handler) GetListingComments(c *gin.Context) {
	id := c.Param("id")

	if _, err := h.listings.GetByID(c.Request.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondNotFound(c, "listing")
			return
		}
		respondInternalError(c, "listing lookup failed")
		return
	}

	comments, err := h.comments.ListByListingID(c.Request.Context(), id)
	if err != nil {
		respondInternalError(c, "failed to list comments")
		return
	}
	if comments == nil {
		comments = []domain.Comment{}
	}

	c.JSON(http.StatusOK, gin.H{
		"comments": comments,
		"count":    len(comments),
	})
}

// parseLimitOffset parses limit and offset query params with defaults.
func parseLimitOffset(c *gin.Context, defaultLim, defaultOff int) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLim)))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", strconv.Itoa(defaultOff)))
	if limit <= 0 {
		limit = defaultLim
	}
	if offset < 0 {
		offset = defaultOff
	}
	return limit, offset
}
