package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sss97133/nuke-sub008/internal/domain"
)

// Price plausibility bounds. Values outside this range are noise (lot
// numbers, phone fragments, schema ids) and fall through to the next
// strategy.
const (
	minPlausiblePrice = 100
	maxPlausiblePrice = 10_000_000
)

var (
	soldForPattern = regexp.MustCompile(`(?i)\bsold\s+for\s+(?:USD\s*)?\$\s*([\d,]+)`)
	highBidPattern = regexp.MustCompile(`(?i)\b(?:current\s+bid|high\s+bid|winning\s+bid|bid\s+to)\s*:?\s*(?:USD\s*)?\$\s*([\d,]+)`)

	endedMarkerPattern = regexp.MustCompile(`(?i)(?:this\s+)?auction\s+(?:has\s+)?ended|bidding\s+(?:has\s+)?(?:ended|closed)`)

	sellerPattern = regexp.MustCompile(`(?i)\bseller\s*:?\s+@?([A-Za-z0-9_.\-]{2,40})`)
	buyerPattern  = regexp.MustCompile(`(?i)\b(?:sold\s+to|winning\s+bidder|won\s+by)\s*:?\s+@?([A-Za-z0-9_.\-]{2,40})`)

	bidCountPattern     = regexp.MustCompile(`(?i)\b([\d,]+)\s+bids?\b`)
	commentCountPattern = regexp.MustCompile(`(?i)\b([\d,]+)\s+comments?\b`)
	viewCountPattern    = regexp.MustCompile(`(?i)\b([\d,]+)\s+views?\b`)
	watcherCountPattern = regexp.MustCompile(`(?i)\b([\d,]+)\s+watchers?\b`)

	// handleStopWords are captures that mean the label pattern grabbed
	// prose instead of a handle.
	handleStopWords = map[string]bool{
		"the": true, "a": true, "an": true, "and": true, "is": true,
		"was": true, "has": true, "info": true, "notes": true,
	}
)

// extractOutcome fills the auction-fact fields: seller, buyer, prices,
// counts, end date, and the ended marker. Each field runs its own chain;
// the first non-empty match that passes the gate wins.
func (e *Engine) extractOutcome(p *page, result *domain.ExtractionResult) {
	if price, ok := e.extractSalePrice(p); ok {
		result.SalePrice = &price
	}
	if bid, ok := e.extractHighBid(p); ok {
		result.HighBid = &bid
	}
	result.AuctionEnded = endedMarkerPattern.MatchString(p.text)

	if seller, ok := e.extractHandle(p, "seller", sellerPattern, []string{"seller_username", "seller"}); ok {
		result.Seller = &seller
	}
	if buyer, ok := e.extractHandle(p, "buyer", buyerPattern, []string{"buyer_username", "winner", "buyer"}); ok {
		result.Buyer = &buyer
	}

	e.extractCounts(p, result)
	e.extractEndDates(p, result)
}

func (e *Engine) extractSalePrice(p *page) (int64, bool) {
	chain := []strategy[int64]{
		{name: "sold-for-marker", fn: func(p *page) (int64, bool) {
			return matchPrice(soldForPattern, p.text)
		}},
		{name: "json-sale-price", fn: func(p *page) (int64, bool) {
			return blobPrice(p, "sale_price", "sold_price", "soldFor", "winning_bid_amount")
		}},
	}
	return runChain(e.log, p, "sale_price", chain)
}

func (e *Engine) extractHighBid(p *page) (int64, bool) {
	chain := []strategy[int64]{
		{name: "labeled-high-bid", fn: func(p *page) (int64, bool) {
			return matchPrice(highBidPattern, p.text)
		}},
		{name: "json-current-bid", fn: func(p *page) (int64, bool) {
			return blobPrice(p, "current_bid", "high_bid", "currentBid", "bid_amount")
		}},
	}
	return runChain(e.log, p, "high_bid", chain)
}

// extractHandle runs the handle chain for seller/buyer fields: labeled
// fragment in the essentials region, labeled fragment anywhere, then
// embedded JSON keys.
func (e *Engine) extractHandle(p *page, field string, re *regexp.Regexp, jsonKeys []string) (string, bool) {
	chain := []strategy[string]{
		{name: "labeled-" + field + "-essentials", fn: func(p *page) (string, bool) {
			return matchHandle(re, p.essentials)
		}},
		{name: "labeled-" + field + "-document", fn: func(p *page) (string, bool) {
			return matchHandle(re, p.text)
		}},
		{name: "json-" + field, fn: func(p *page) (string, bool) {
			s, ok := lookupString(p.jsonBlobs(), jsonKeys...)
			if !ok || !validHandle(s) {
				return "", false
			}
			return s, true
		}},
	}
	return runChain(e.log, p, field, chain)
}

func (e *Engine) extractCounts(p *page, result *domain.ExtractionResult) {
	if n, ok := e.extractCount(p, "bid_count", bidCountPattern, []string{"bid_count", "num_bids"}, ""); ok {
		result.BidCount = &n
	}
	if n, ok := e.extractCount(p, "comment_count", commentCountPattern,
		[]string{"comment_count", "num_comments"}, "div.comment, li.comment"); ok {
		result.CommentCount = &n
	}
	if n, ok := e.extractCount(p, "view_count", viewCountPattern, []string{"view_count", "views"}, ""); ok {
		result.ViewCount = &n
	}
	if n, ok := e.extractCount(p, "watcher_count", watcherCountPattern, []string{"watcher_count", "watchers"}, ""); ok {
		result.WatcherCount = &n
	}
}

// extractCount runs the count chain for one counter: labeled text, then
// embedded JSON, then (when a selector is given) counting repeated markers.
func (e *Engine) extractCount(p *page, field string, re *regexp.Regexp, jsonKeys []string, markerSelector string) (int, bool) {
	chain := []strategy[int]{
		{name: "labeled-" + field, fn: func(p *page) (int, bool) {
			m := re.FindStringSubmatch(p.text)
			if m == nil {
				return 0, false
			}
			n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
			return n, err == nil && n >= 0
		}},
		{name: "json-" + field, fn: func(p *page) (int, bool) {
			n, ok := lookupInt(p.jsonBlobs(), jsonKeys...)
			return int(n), ok && n >= 0
		}},
	}
	if markerSelector != "" {
		chain = append(chain, strategy[int]{name: "counted-markers-" + field, fn: func(p *page) (int, bool) {
			if p.doc == nil {
				return 0, false
			}
			n := p.doc.Find(markerSelector).Length()
			return n, n > 0
		}})
	}
	return runChain(e.log, p, field, chain)
}

// countdownAttrs are the element attributes platforms use for an explicit
// auction-end countdown.
var countdownAttrs = []string{"data-ends", "data-end-time", "data-until", "data-countdown"}

// extractEndDates finds the explicit countdown end time plus every other
// end-date-shaped instant embedded in the page. Selection between them is
// reconciliation's job; extraction only validates that each candidate
// parses to a real instant.
func (e *Engine) extractEndDates(p *page, result *domain.ExtractionResult) {
	if p.doc != nil {
		for _, attr := range countdownAttrs {
			sel := p.doc.Find("[" + attr + "]").First()
			if sel.Length() == 0 {
				continue
			}
			if raw, ok := sel.Attr(attr); ok {
				if t, valid := asInstant(raw); valid {
					result.EndDate = &t
					break
				}
			}
		}
	}

	seen := make(map[int64]bool)
	for _, blob := range p.jsonBlobs() {
		collectInstants(blob, 0, func(t time.Time) {
			if !seen[t.Unix()] {
				seen[t.Unix()] = true
				result.EndDateCandidates = append(result.EndDateCandidates, t)
			}
		})
	}
}

// endDateKeys are the blob keys that look like an auction end time.
var endDateKeys = map[string]bool{
	"endDate": true, "end_date": true, "auction_end": true,
	"ends_at": true, "endsAt": true, "auction_ends": true,
}

// collectInstants walks a blob and reports every parseable instant stored
// under an end-date-shaped key.
func collectInstants(node any, depth int, report func(time.Time)) {
	if depth > maxBlobDepth {
		return
	}
	switch n := node.(type) {
	case map[string]any:
		for key, v := range n {
			if endDateKeys[key] {
				if t, ok := asInstant(v); ok {
					report(t)
				}
				continue
			}
			collectInstants(v, depth+1, report)
		}
	case []any:
		for _, item := range n {
			collectInstants(item, depth+1, report)
		}
	}
}

// matchPrice applies a labeled price pattern with the plausibility gate.
func matchPrice(re *regexp.Regexp, text string) (int64, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	return parsePrice(m[1])
}

// blobPrice looks a price up in embedded JSON with the plausibility gate.
func blobPrice(p *page, keys ...string) (int64, bool) {
	n, ok := lookupInt(p.jsonBlobs(), keys...)
	if !ok || !plausiblePrice(n) {
		return 0, false
	}
	return n, true
}

func parsePrice(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.ReplaceAll(s, ",", ""), 10, 64)
	if err != nil || !plausiblePrice(n) {
		return 0, false
	}
	return n, true
}

func plausiblePrice(n int64) bool {
	return n >= minPlausiblePrice && n <= maxPlausiblePrice
}

func matchHandle(re *regexp.Regexp, text string) (string, bool) {
	if text == "" {
		return "", false
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	// Sentence punctuation after the handle is inside the charset.
	handle := strings.TrimRight(m[1], ".")
	if !validHandle(handle) {
		return "", false
	}
	return handle, true
}

func validHandle(s string) bool {
	return s != "" && !handleStopWords[strings.ToLower(s)]
}
