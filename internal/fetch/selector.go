// Package fetch obtains listing HTML, choosing between a cheap direct
// request and an expensive rendered fetch under cost-control rules.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sss97133/nuke-sub008/internal/domain"
	"github.com/sss97133/nuke-sub008/internal/logger"
)

// ErrFetchFailed is returned when every applicable strategy failed.
// Callers should check with errors.Is(); retry belongs to the scheduler's
// next cycle, never to the fetch itself.
var ErrFetchFailed = errors.New("fetch failed on all strategies")

// Fetch source constants.
const (
	SourceDirect   = "direct"
	SourceRendered = "rendered"
)

// maxResponseBodyBytes limits the size of fetched page responses.
const maxResponseBodyBytes = 10 * 1024 * 1024 // 10 MB

// defaultUserAgent is a realistic browser user agent for direct fetches.
const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config holds fetch behaviour and cost-control thresholds. It is passed
// in explicitly so concurrent syncs cannot interfere with each other's
// thresholds.
type Config struct {
	// RequestTimeout bounds the direct HTTP fetch.
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	// RenderTimeout bounds the rendered fetch.
	RenderTimeout time.Duration `yaml:"render_timeout" mapstructure:"render_timeout"`
	// EscalationWindow is how close to the auction end a failed direct
	// fetch may escalate to the paid strategy.
	EscalationWindow time.Duration `yaml:"escalation_window" mapstructure:"escalation_window"`
	// RenderedCostCents is the accounted cost of one rendered fetch.
	RenderedCostCents int `yaml:"rendered_cost_cents" mapstructure:"rendered_cost_cents"`
	// UserAgent overrides the default browser user agent.
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
}

// SetDefaults applies default values to the config if not set.
func (c *Config) SetDefaults() {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.RenderTimeout <= 0 {
		c.RenderTimeout = 60 * time.Second
	}
	if c.EscalationWindow <= 0 {
		c.EscalationWindow = 10 * time.Minute
	}
	if c.RenderedCostCents <= 0 {
		c.RenderedCostCents = 150
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
}

// Context describes one fetch request for strategy selection.
type Context struct {
	// RoutinePoll marks scheduled live-poll fetches, the only callers the
	// ending-soon window may escalate without an explicit force.
	RoutinePoll bool
	// EndTime is the auction's current end time, when known.
	EndTime *time.Time
	// ForceEscalation skips cost gating (one-off manual extraction).
	ForceEscalation bool
	// Caller identifies the requester in the cost log.
	Caller string
}

// Result is the outcome of a successful fetch.
type Result struct {
	HTML      []byte
	Source    string
	CostCents int
}

// CostLogger records fetch attempts for cost accounting.
type CostLogger interface {
	Insert(ctx context.Context, entry domain.FetchLogEntry) error
}

// RenderFunc performs a rendered (headless browser or proxy) fetch.
type RenderFunc func(ctx context.Context, url, userAgent string, timeout time.Duration) ([]byte, error)

// Selector chooses and runs fetch strategies for listing URLs.
type Selector struct {
	cfg        Config
	httpClient *http.Client
	render     RenderFunc
	costLog    CostLogger
	log        logger.Logger
}

// NewSelector creates a fetch strategy selector. costLog may be nil to
// disable cost accounting; rendering defaults to the chromedp fetcher.
func NewSelector(cfg Config, costLog CostLogger, log logger.Logger) *Selector {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	return &Selector{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		render:     renderWithChromedp,
		costLog:    costLog,
		log:        log,
	}
}

// WithRenderFunc overrides the rendered-fetch implementation. Used by
// tests to avoid launching a browser.
func (s *Selector) WithRenderFunc(fn RenderFunc) *Selector {
	s.render = fn
	return s
}

// Fetch retrieves HTML for a listing URL.
//
// The direct strategy always runs first and is free. On direct failure,
// escalation to the paid rendered strategy happens only when forced, or
// for a routine poll whose auction ends within the escalation window;
// everything else returns the error and waits for the next cycle.
func (s *Selector) Fetch(ctx context.Context, url string, fctx Context) (*Result, error) {
	html, directErr := s.fetchDirect(ctx, url)
	if directErr == nil {
		s.logAttempt(fctx.Caller, url, SourceDirect, 0, true)
		return &Result{HTML: html, Source: SourceDirect, CostCents: 0}, nil
	}
	s.logAttempt(fctx.Caller, url, SourceDirect, 0, false)

	if !s.shouldEscalate(fctx) {
		return nil, fmt.Errorf("direct fetch %s: %v: %w", url, directErr, ErrFetchFailed)
	}

	html, renderErr := s.render(ctx, url, s.cfg.UserAgent, s.cfg.RenderTimeout)
	if renderErr != nil {
		s.logAttempt(fctx.Caller, url, SourceRendered, s.cfg.RenderedCostCents, false)
		return nil, fmt.Errorf("rendered fetch %s: %v: %w", url, renderErr, ErrFetchFailed)
	}

	s.logAttempt(fctx.Caller, url, SourceRendered, s.cfg.RenderedCostCents, true)
	return &Result{HTML: html, Source: SourceRendered, CostCents: s.cfg.RenderedCostCents}, nil
}

// shouldEscalate applies the cost-control gate for the rendered strategy.
func (s *Selector) shouldEscalate(fctx Context) bool {
	if fctx.ForceEscalation {
		return true
	}
	// One-off fetches never spend without an explicit force.
	if !fctx.RoutinePoll || fctx.EndTime == nil {
		return false
	}
	remaining := time.Until(*fctx.EndTime)
	return remaining > 0 && remaining <= s.cfg.EscalationWindow
}

// fetchDirect performs the unauthenticated direct GET.
func (s *Selector) fetchDirect(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) == 0 {
		return nil, errors.New("empty response body")
	}

	return body, nil
}

// logAttempt records a fetch attempt in the cost log. It is dispatched
// fire-and-forget: failures are logged at warn level and never reach the
// caller.
func (s *Selector) logAttempt(caller, url, source string, costCents int, success bool) {
	if s.costLog == nil {
		return
	}

	entry := domain.FetchLogEntry{
		ID:        uuid.New().String(),
		Caller:    caller,
		URL:       url,
		Source:    source,
		CostCents: costCents,
		Success:   success,
		CreatedAt: time.Now().UTC(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.costLog.Insert(ctx, entry); err != nil {
			s.log.Warn("cost log write failed",
				logger.String("url", url),
				logger.Error(err),
			)
		}
	}()
}
