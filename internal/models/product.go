package models

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// Unavailable marks a price, image or identity that no strategy could find.
	Unavailable = "unavailable"
	// Unknown marks a text field (title, category) that no strategy could find.
	Unknown = "Unknown"
)

type PageType string

const (
	PageSingleProduct PageType = "single_product"
	PageListing       PageType = "listing"
)

// RegionConfig describes the storefront region a request targets.
type RegionConfig struct {
	Code             string   `json:"code" yaml:"code" validate:"required,len=2,uppercase"`
	Locale           string   `json:"locale" yaml:"locale" validate:"required"`
	Currency         string   `json:"currency" yaml:"currency" validate:"required,len=3,uppercase"`
	DeliveryLocation string   `json:"delivery_location" yaml:"delivery_location" validate:"required"`
	Timezone         string   `json:"timezone,omitempty" yaml:"timezone"`
	Storefront       string   `json:"storefront,omitempty" yaml:"storefront"`
	Aliases          []string `json:"aliases,omitempty" yaml:"aliases"`
}

// RegionTag is the region a record was actually extracted under.
type RegionTag struct {
	Code      string `json:"code"`
	Location  string `json:"location"`
	Confirmed bool   `json:"confirmed"`
}

// OptionalPrice holds a price that may be absent.
type OptionalPrice struct {
	value string
	valid bool
}

func SomePrice(v string) OptionalPrice { return OptionalPrice{value: v, valid: true} }

func NoPrice() OptionalPrice { return OptionalPrice{} }

func (o OptionalPrice) Get() (string, bool) { return o.value, o.valid }

func (o OptionalPrice) IsSome() bool { return o.valid }

func (o OptionalPrice) MarshalJSON() ([]byte, error) {
	if !o.valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

func (o *OptionalPrice) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = NoPrice()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*o = SomePrice(s)
	return nil
}

type ProductRecord struct {
	Identity      string        `json:"identity"`
	Title         string        `json:"title"`
	ImageURL      string        `json:"image_url"`
	Images        []string      `json:"images,omitempty"`
	PriceCurrent  string        `json:"price_current"`
	PriceOriginal OptionalPrice `json:"price_original"`
	Currency      string        `json:"currency"`
	Category      string        `json:"category"`
	Region        RegionTag     `json:"region"`
	SourceURL     string        `json:"source_url"`
}

// Acceptable reports whether both title and current price were found.
func (r ProductRecord) Acceptable() bool {
	return r.Title != Unknown && r.Title != "" &&
		r.PriceCurrent != Unavailable && r.PriceCurrent != ""
}

// DiscountPercent returns the rounded markdown percentage when an original price exists.
func (r ProductRecord) DiscountPercent() (int, bool) {
	orig, ok := r.PriceOriginal.Get()
	if !ok {
		return 0, false
	}
	cur, err := decimal.NewFromString(r.PriceCurrent)
	if err != nil {
		return 0, false
	}
	o, err := decimal.NewFromString(orig)
	if err != nil || !o.IsPositive() || o.LessThanOrEqual(cur) {
		return 0, false
	}
	pct := o.Sub(cur).Div(o).Mul(decimal.NewFromInt(100)).Round(0)
	return int(pct.IntPart()), true
}

// Degradation records a soft failure that lowered the fidelity of a result.
type Degradation struct {
	Kind   ErrorKind `json:"kind"`
	Field  string    `json:"field,omitempty"`
	Reason string    `json:"reason"`
}

type AttemptOutcome string

const (
	OutcomeSuccess  AttemptOutcome = "success"
	OutcomePartial  AttemptOutcome = "partial"
	OutcomeFailed   AttemptOutcome = "failed"
	OutcomeCanceled AttemptOutcome = "canceled"
)

type ExtractionAttempt struct {
	Number        int            `json:"attempt_number"`
	Outcome       AttemptOutcome `json:"outcome"`
	Error         string         `json:"error,omitempty"`
	DiagnosticRef string         `json:"diagnostic_ref,omitempty"`
	Duration      time.Duration  `json:"duration"`
}

type ExtractionResult struct {
	PageType     PageType            `json:"page_type"`
	Records      []ProductRecord     `json:"records"`
	Degradations []Degradation       `json:"degradations,omitempty"`
	Negotiation  string              `json:"negotiation,omitempty"`
	Attempts     int                 `json:"attempts"`
	History      []ExtractionAttempt `json:"history,omitempty"`
	SourceURL    string              `json:"source_url"`
	ResolvedURL  string              `json:"resolved_url"`
}

// Single returns the record of a single-product result.
func (r *ExtractionResult) Single() (ProductRecord, bool) {
	if r == nil || r.PageType != PageSingleProduct || len(r.Records) != 1 {
		return ProductRecord{}, false
	}
	return r.Records[0], true
}

// Acceptable reports whether at least one record carries a title and a current price.
// Single-product results require their only record to be acceptable.
func (r *ExtractionResult) Acceptable() bool {
	if r == nil || len(r.Records) == 0 {
		return false
	}
	if r.PageType == PageSingleProduct {
		return r.Records[0].Acceptable()
	}
	for _, rec := range r.Records {
		if rec.Acceptable() {
			return true
		}
	}
	return false
}

func (r *ExtractionResult) Degrade(kind ErrorKind, field, reason string) {
	r.Degradations = append(r.Degradations, Degradation{Kind: kind, Field: field, Reason: reason})
}
