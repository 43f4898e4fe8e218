package domain

import (
	"net/url"
	"strings"
)

// Platform describes one supported auction site: how to recognise its URLs
// and how to pull the external auction id out of a listing path.
type Platform struct {
	// Slug is the canonical platform identifier stored with listings.
	Slug string
	// Host is the hostname substring that identifies the platform.
	Host string
	// IDMarker is the path segment that precedes the external auction id,
	// e.g. "listing" in bringatrailer.com/listing/1967-mustang/. Empty
	// means the last path segment is the id.
	IDMarker string
}

// Platforms is the static table of supported auction sites, consulted by
// both registration and one-shot extraction.
var Platforms = []Platform{
	{Slug: "bring_a_trailer", Host: "bringatrailer.com", IDMarker: "listing"},
	{Slug: "cars_and_bids", Host: "carsandbids.com", IDMarker: "auctions"},
	{Slug: "barrett_jackson", Host: "barrett-jackson.com"},
	{Slug: "bonhams", Host: "bonhams.com"},
}

// DetectPlatform matches a URL's host against the platform table.
// Returns false for hosts no platform claims; unknown platforms are never
// speculatively polled.
func DetectPlatform(rawURL string) (Platform, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return Platform{}, false
	}
	host := strings.ToLower(u.Hostname())
	for _, p := range Platforms {
		if strings.Contains(host, p.Host) {
			return p, true
		}
	}
	return Platform{}, false
}

// PlatformBySlug looks up a platform by its slug.
func PlatformBySlug(slug string) (Platform, bool) {
	for _, p := range Platforms {
		if p.Slug == slug {
			return p, true
		}
	}
	return Platform{}, false
}

// ExternalID extracts the platform-specific auction id from a listing URL.
// The segment after the platform's id marker wins; without a marker (or
// when the marker is absent) the last non-empty path segment is used.
func (p Platform) ExternalID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	segments := splitPath(u.Path)
	if len(segments) == 0 {
		return ""
	}

	if p.IDMarker != "" {
		for i, seg := range segments {
			if seg == p.IDMarker && i+1 < len(segments) {
				return segments[i+1]
			}
		}
	}

	return segments[len(segments)-1]
}

// CanonicalURL normalizes a listing URL for storage: https scheme, no
// query or fragment, single trailing slash.
func CanonicalURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	u.Scheme = "https"
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/") + "/"
	return u.String()
}

func splitPath(path string) []string {
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}
