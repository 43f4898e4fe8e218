package domain_test

import (
	"testing"

	"github.com/sss97133/nuke-sub008/internal/domain"
)

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantSlug string
		wantOK   bool
	}{
		{
			name:     "bring a trailer listing",
			url:      "https://bringatrailer.com/listing/1967-mustang/",
			wantSlug: "bring_a_trailer",
			wantOK:   true,
		},
		{
			name:     "cars and bids with subdomain",
			url:      "https://www.carsandbids.com/auctions/abc123/2002-bmw-m3",
			wantSlug: "cars_and_bids",
			wantOK:   true,
		},
		{
			name:   "unknown host",
			url:    "https://example.com/listing/123/",
			wantOK: false,
		},
		{
			name:   "relative url has no host",
			url:    "/listing/1967-mustang/",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := domain.DetectPlatform(tt.url)
			if ok != tt.wantOK {
				t.Fatalf("DetectPlatform(%q) ok = %v, want %v", tt.url, ok, tt.wantOK)
			}
			if ok && p.Slug != tt.wantSlug {
				t.Errorf("DetectPlatform(%q) slug = %s, want %s", tt.url, p.Slug, tt.wantSlug)
			}
		})
	}
}

func TestExternalID(t *testing.T) {
	bat, _ := domain.PlatformBySlug("bring_a_trailer")
	cab, _ := domain.PlatformBySlug("cars_and_bids")
	bonhams, _ := domain.PlatformBySlug("bonhams")

	tests := []struct {
		name     string
		platform domain.Platform
		url      string
		want     string
	}{
		{
			name:     "segment after marker",
			platform: bat,
			url:      "https://bringatrailer.com/listing/1967-mustang/",
			want:     "1967-mustang",
		},
		{
			name:     "marker with deeper path takes the next segment",
			platform: cab,
			url:      "https://carsandbids.com/auctions/abc123/2002-bmw-m3",
			want:     "abc123",
		},
		{
			name:     "no marker falls back to last segment",
			platform: bonhams,
			url:      "https://bonhams.com/auction/29144/lot/42/",
			want:     "42",
		},
		{
			name:     "empty path yields nothing",
			platform: bat,
			url:      "https://bringatrailer.com/",
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.platform.ExternalID(tt.url); got != tt.want {
				t.Errorf("ExternalID(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{
			name: "strips query and fragment",
			url:  "https://bringatrailer.com/listing/1967-mustang/?utm_source=feed#comments",
			want: "https://bringatrailer.com/listing/1967-mustang/",
		},
		{
			name: "adds trailing slash",
			url:  "https://bringatrailer.com/listing/1967-mustang",
			want: "https://bringatrailer.com/listing/1967-mustang/",
		},
		{
			name: "upgrades scheme",
			url:  "http://carsandbids.com/auctions/abc123/",
			want: "https://carsandbids.com/auctions/abc123/",
		},
		{
			name: "unparseable input passes through",
			url:  "not a url",
			want: "not a url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := domain.CanonicalURL(tt.url); got != tt.want {
				t.Errorf("CanonicalURL(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestIdempotencyKey(t *testing.T) {
	if got := domain.IdempotencyKey("1967-mustang", domain.EventSold, 0); got != "1967-mustang:sold" {
		t.Errorf("unbucketed key = %q", got)
	}
	if got := domain.IdempotencyKey("1967-mustang", domain.EventBidMilestone, 14); got != "1967-mustang:bid_milestone:14" {
		t.Errorf("bucketed key = %q", got)
	}
}
