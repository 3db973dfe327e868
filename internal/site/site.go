// Package site holds the per-storefront knowledge the extractor needs:
// page classification, fallback chains, location widgets and cookies.
package site

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/maltedev/regional-product-extractor/internal/extraction"
	"github.com/maltedev/regional-product-extractor/internal/models"
	"github.com/maltedev/regional-product-extractor/internal/negotiator"
	"github.com/maltedev/regional-product-extractor/internal/session"
)

// Profile describes one storefront family.
type Profile struct {
	Name string
	// Hosts are domain labels; "amazon" matches www.amazon.eg and amazon.co.uk.
	Hosts []string

	SinglePaths  []*regexp.Regexp
	ListingPaths []*regexp.Regexp

	Single  extraction.SingleSpec
	Listing extraction.ListingSpec

	Location      *negotiator.LocationUI
	Cookies       session.CookieSeeder
	DefaultDevice session.Device

	// Ready selectors signal that the page content has rendered.
	SingleReady  []string
	ListingReady []string
}

// Classify derives the page type from the URL path. Unknown paths are
// treated as product pages.
func (p *Profile) Classify(u *url.URL) models.PageType {
	path := u.Path
	for _, re := range p.SinglePaths {
		if re.MatchString(path) {
			return models.PageSingleProduct
		}
	}
	for _, re := range p.ListingPaths {
		if re.MatchString(path) {
			return models.PageListing
		}
	}
	return models.PageSingleProduct
}

// ReadySelectors returns the readiness selectors for a page type.
func (p *Profile) ReadySelectors(t models.PageType) []string {
	if t == models.PageListing {
		return p.ListingReady
	}
	return p.SingleReady
}

func (p *Profile) matches(host string) bool {
	for _, label := range strings.Split(strings.ToLower(host), ".") {
		for _, h := range p.Hosts {
			if label == h {
				return true
			}
		}
	}
	return false
}

// Registry picks the profile for a host, falling back to the generic one.
type Registry struct {
	profiles []*Profile
	fallback *Profile
}

func NewRegistry(profiles ...*Profile) *Registry {
	return &Registry{profiles: profiles, fallback: Generic()}
}

// Default returns the registry of built-in storefronts.
func Default() *Registry {
	return NewRegistry(Amazon(), Trendyol())
}

func (r *Registry) For(host string) *Profile {
	for _, p := range r.profiles {
		if p.matches(host) {
			return p
		}
	}
	return r.fallback
}
