// Package extract recovers structured vehicle and auction facts from raw
// listing HTML. Every field family runs an ordered chain of pattern
// strategies; the first hit that passes its validity gate wins, and a
// field with no hit is left null rather than guessed.
package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sss97133/nuke-sub008/internal/domain"
	"github.com/sss97133/nuke-sub008/internal/logger"
)

// Engine turns listing HTML into a domain.ExtractionResult.
type Engine struct {
	log logger.Logger
}

// NewEngine creates a new extraction engine.
func NewEngine(log logger.Logger) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	return &Engine{log: log}
}

// page is the parsed view of one listing document shared by all strategies.
// doc is nil when the HTML could not be parsed at all; strategies that need
// structure degrade to raw-text matching.
type page struct {
	raw        string
	doc        *goquery.Document
	text       string
	essentials string
	heading    string
	desc       string

	// Lazily parsed embedded JSON blobs, see jsonblob.go.
	blobs       []map[string]any
	blobsParsed bool
}

// Extract parses HTML and runs every field chain. It never fails: a page
// that yields nothing produces an empty result, and individual field
// misses are logged at debug level only.
func (e *Engine) Extract(html []byte, sourceURL string) *domain.ExtractionResult {
	p := newPage(html)

	result := &domain.ExtractionResult{
		SourceURL:   sourceURL,
		Description: p.desc,
	}

	e.extractVIN(p, result)
	e.extractIdentity(p, result)
	e.extractSpecs(p, result)
	e.extractOutcome(p, result)
	result.Comments = e.extractComments(p, result.Seller)
	result.ImageURLs = e.extractImages(p)

	return result
}

// newPage parses the document and precomputes the text views strategies
// match against.
func newPage(html []byte) *page {
	p := &page{raw: string(html)}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		// Malformed beyond parsing: strategies fall back to raw text.
		p.text = p.raw
		return p
	}
	p.doc = doc

	p.heading = extractHeading(doc)
	p.essentials = extractEssentialsText(doc)
	p.desc = extractDescription(doc)

	body := doc.Find("body").First()
	if body.Length() > 0 {
		stripped := body.Clone()
		stripped.Find("script, style, nav, header, footer").Remove()
		p.text = strings.TrimSpace(stripped.Text())
	}
	if p.text == "" {
		p.text = p.raw
	}

	return p
}

// extractHeading returns the page's primary heading, preferring <h1> then
// og:title then <title>.
func extractHeading(doc *goquery.Document) string {
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	if ogTitle, exists := doc.Find("meta[property='og:title']").Attr("content"); exists {
		return strings.TrimSpace(ogTitle)
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// essentialsSelectors lists the regions platforms use for the spec sheet.
const essentialsSelectors = ".essentials, .listing-essentials, #essentials, .quick-facts"

// extractEssentialsText returns the text of the listing's essentials
// region, or empty when the page has none.
func extractEssentialsText(doc *goquery.Document) string {
	region := doc.Find(essentialsSelectors).First()
	if region.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(region.Text())
}

// descriptionSelectors lists the containers platforms use for the free-text
// listing description.
const descriptionSelectors = ".post-excerpt, .listing-description, .auction-description, article .description"

// extractDescription returns the listing's free-text description, falling
// back to the meta description.
func extractDescription(doc *goquery.Document) string {
	if section := doc.Find(descriptionSelectors).First(); section.Length() > 0 {
		return strings.TrimSpace(section.Text())
	}
	if desc, exists := doc.Find("meta[name='description']").Attr("content"); exists {
		return strings.TrimSpace(desc)
	}
	if ogDesc, exists := doc.Find("meta[property='og:description']").Attr("content"); exists {
		return strings.TrimSpace(ogDesc)
	}
	return ""
}

// specText returns the text specs are matched against: the description
// when present, else the whole visible text.
func (p *page) specText() string {
	if p.desc != "" {
		return p.desc
	}
	return p.text
}
