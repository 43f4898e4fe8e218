package extract

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Embedded JSON blobs are untrusted, partially-structured input. They are
// decoded into generic maps and probed by key name; any decode failure
// simply removes that blob from consideration.

// maxBlobDepth bounds recursive key lookups in nested blobs.
const maxBlobDepth = 8

// jsonBlobs parses every embedded JSON script block on the page, caching
// the result. Blocks that fail to decode are skipped.
func (p *page) jsonBlobs() []map[string]any {
	if p.blobsParsed {
		return p.blobs
	}
	p.blobsParsed = true

	if p.doc == nil {
		return nil
	}

	p.doc.Find("script[type='application/json'], script[type='application/ld+json']").
		Each(func(_ int, s *goquery.Selection) {
			if blob, ok := decodeBlob(s.Text()); ok {
				p.blobs = append(p.blobs, blob)
			}
		})

	// Inline assignments like `var auctionData = {...};` carry the live
	// bidding state on several platforms.
	p.doc.Find("script:not([src])").Each(func(_ int, s *goquery.Selection) {
		text := s.Text()
		if strings.Contains(text, "=") && strings.Contains(text, "{") {
			if blob, ok := decodeBlob(text[strings.Index(text, "{"):]); ok {
				p.blobs = append(p.blobs, blob)
			}
		}
	})

	return p.blobs
}

// decodeBlob attempts to decode text as a JSON object, trimming to the
// outermost braces when the text has surrounding script noise.
func decodeBlob(text string) (map[string]any, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	var blob map[string]any
	if err := json.Unmarshal([]byte(text), &blob); err == nil {
		return blob, true
	}

	// A streaming decode stops at the end of the first value, which
	// handles `{...};` and other trailing script fragments.
	dec := json.NewDecoder(strings.NewReader(text))
	if err := dec.Decode(&blob); err == nil && blob != nil {
		return blob, true
	}
	return nil, false
}

// lookupValue searches nested blobs for the first value under any of the
// given keys, depth-first.
func lookupValue(blobs []map[string]any, keys ...string) (any, bool) {
	for _, blob := range blobs {
		if v, ok := lookupIn(blob, keys, 0); ok {
			return v, true
		}
	}
	return nil, false
}

func lookupIn(node any, keys []string, depth int) (any, bool) {
	if depth > maxBlobDepth {
		return nil, false
	}
	switch n := node.(type) {
	case map[string]any:
		for _, key := range keys {
			if v, ok := n[key]; ok && v != nil {
				return v, true
			}
		}
		for _, v := range n {
			if found, ok := lookupIn(v, keys, depth+1); ok {
				return found, true
			}
		}
	case []any:
		for _, item := range n {
			if found, ok := lookupIn(item, keys, depth+1); ok {
				return found, true
			}
		}
	}
	return nil, false
}

// lookupInt returns the first numeric value under any of the given keys.
func lookupInt(blobs []map[string]any, keys ...string) (int64, bool) {
	v, ok := lookupValue(blobs, keys...)
	if !ok {
		return 0, false
	}
	return asInt(v)
}

// lookupString returns the first non-empty string value under the keys.
func lookupString(blobs []map[string]any, keys ...string) (string, bool) {
	v, ok := lookupValue(blobs, keys...)
	if !ok {
		return "", false
	}
	s, isStr := v.(string)
	s = strings.TrimSpace(s)
	if !isStr || s == "" {
		return "", false
	}
	return s, true
}

// asInt coerces a decoded JSON value to an integer.
func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.ReplaceAll(strings.TrimPrefix(n, "$"), ",", ""), 10, 64)
		return i, err == nil
	}
	return 0, false
}

// millisecondEpochFloor distinguishes second from millisecond epochs.
const millisecondEpochFloor = 1e12

// asInstant coerces a decoded JSON value (epoch number, epoch string, or
// ISO 8601 string) to a time. Values that do not parse to a real instant
// are rejected.
func asInstant(v any) (time.Time, bool) {
	switch n := v.(type) {
	case float64:
		return epochToTime(int64(n))
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return time.Time{}, false
		}
		if epoch, err := strconv.ParseInt(s, 10, 64); err == nil {
			return epochToTime(epoch)
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-0700", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func epochToTime(epoch int64) (time.Time, bool) {
	if epoch <= 0 {
		return time.Time{}, false
	}
	if epoch > millisecondEpochFloor {
		epoch /= 1000
	}
	t := time.Unix(epoch, 0).UTC()
	// Epochs outside a sane range are ids or counters, not timestamps.
	if t.Year() < 2000 || t.Year() > 2100 {
		return time.Time{}, false
	}
	return t, true
}
