package extraction

import (
	"github.com/PuerkitoBio/goquery"
)

const (
	FieldIdentity      = "identity"
	FieldTitle         = "title"
	FieldImage         = "image_url"
	FieldImages        = "images"
	FieldCategory      = "category"
	FieldPriceCurrent  = "price_current"
	FieldPriceOriginal = "price_original"
	FieldLink          = "link"
)

// Chain is the ordered list of strategies tried for one field. Strategies are
// ordered by how reliable their signal is; the first one producing a usable
// value wins.
type Chain struct {
	Field      string
	Strategies []Strategy
	// Clean normalizes a candidate; an empty return discards it.
	Clean func(src *Source, v string) string
}

type Match struct {
	Field    string
	Strategy string
	Values   []string
}

// First returns the first value of the match.
func (m Match) First() string {
	if len(m.Values) == 0 {
		return ""
	}
	return m.Values[0]
}

// Run walks the chain against scope and reports the first strategy that
// produced at least one value surviving Clean.
func (c Chain) Run(src *Source, scope *goquery.Selection) (Match, bool) {
	if scope == nil {
		return Match{Field: c.Field}, false
	}
	for _, s := range c.Strategies {
		var values []string
		for _, v := range s.Extract(src, scope) {
			if c.Clean != nil {
				v = c.Clean(src, v)
			}
			if v != "" {
				values = append(values, v)
			}
		}
		if len(values) > 0 {
			return Match{Field: c.Field, Strategy: s.Name(), Values: values}, true
		}
	}
	return Match{Field: c.Field}, false
}

// Empty reports whether the chain has no strategies at all.
func (c Chain) Empty() bool {
	return len(c.Strategies) == 0
}
