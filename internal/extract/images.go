package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	// resizeSuffixPattern matches CDN resize suffixes like -1024x683 or
	// -scaled immediately before the file extension.
	resizeSuffixPattern = regexp.MustCompile(`-(?:scaled|\d{2,4}x\d{2,4})(\.[a-zA-Z]{3,4})$`)

	imageExtPattern = regexp.MustCompile(`(?i)\.(?:jpe?g|png|webp|avif)$`)
)

// galleryKeys are the blob keys that hold the image gallery.
var galleryKeys = []string{"gallery", "images", "photos"}

// variantKeys order image variants from highest to lowest resolution.
var variantKeys = []string{"full", "original", "large", "medium", "small", "thumb"}

// extractImages parses the embedded gallery structure, picking the
// highest-resolution variant of each item and normalizing the URL back to
// the full-resolution asset.
func (e *Engine) extractImages(p *page) []string {
	chain := []strategy[[]string]{
		{name: "embedded-gallery", fn: galleryImages},
		{name: "document-img-tags", fn: documentImages},
	}
	images, _ := runChain(e.log, p, "images", chain)
	return images
}

func galleryImages(p *page) ([]string, bool) {
	v, ok := lookupValue(p.jsonBlobs(), galleryKeys...)
	if !ok {
		return nil, false
	}
	items, isList := v.([]any)
	if !isList || len(items) == 0 {
		return nil, false
	}

	var urls []string
	seen := make(map[string]bool)
	for _, item := range items {
		u := bestVariantURL(item)
		if u == "" {
			continue
		}
		u = normalizeImageURL(u)
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	return urls, len(urls) > 0
}

// bestVariantURL picks the highest-resolution URL out of one gallery item.
// Items are either bare URL strings or objects with sized variants.
func bestVariantURL(item any) string {
	switch v := item.(type) {
	case string:
		return v
	case map[string]any:
		for _, key := range variantKeys {
			if variant, ok := v[key]; ok {
				if u := variantURL(variant); u != "" {
					return u
				}
			}
		}
		if u, ok := v["url"].(string); ok {
			return u
		}
		if u, ok := v["src"].(string); ok {
			return u
		}
	}
	return ""
}

func variantURL(variant any) string {
	switch v := variant.(type) {
	case string:
		return v
	case map[string]any:
		if u, ok := v["url"].(string); ok {
			return u
		}
	}
	return ""
}

// documentImages falls back to visible gallery <img> tags.
func documentImages(p *page) ([]string, bool) {
	if p.doc == nil {
		return nil, false
	}

	var urls []string
	seen := make(map[string]bool)

	if og, ok := p.doc.Find("meta[property='og:image']").Attr("content"); ok && og != "" {
		u := normalizeImageURL(og)
		seen[u] = true
		urls = append(urls, u)
	}

	p.doc.Find(".gallery img, .photos img, figure img").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok || src == "" || !imageExtPattern.MatchString(strings.Split(src, "?")[0]) {
			return
		}
		u := normalizeImageURL(src)
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	})

	return urls, len(urls) > 0
}

// normalizeImageURL strips query parameters and resize suffixes so the URL
// points at the full-resolution asset.
func normalizeImageURL(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return resizeSuffixPattern.ReplaceAllString(u, "$1")
}
