package scraper

import (
	"github.com/maltedev/regional-product-extractor/internal/session"
)

type options struct {
	device     session.Device
	category   string
	prefix     string
	listingCap int
}

// Option adjusts a single extraction.
type Option func(*options)

// WithDevice forces the emulated device instead of the site default.
func WithDevice(d session.Device) Option {
	return func(o *options) { o.device = d }
}

// WithCategory overrides the extracted category on every record.
func WithCategory(category string) Option {
	return func(o *options) { o.category = category }
}

// WithSnapshotPrefix names diagnostic snapshots "{prefix}_{attempt}".
func WithSnapshotPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithListingCap limits how many items a listing page yields.
func WithListingCap(n int) Option {
	return func(o *options) { o.listingCap = n }
}
