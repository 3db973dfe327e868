package extraction

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/regional-product-extractor/internal/price"
)

// Source is the parsed page a chain runs against.
type Source struct {
	Doc *goquery.Document
	URL *url.URL
	// Currency is the expected currency code, used by the price heuristics.
	Currency string
	// MaxLen bounds the text length the price heuristic accepts.
	MaxLen int
}

// Strategy yields candidate values for a field from a scope of the page.
// An empty result means the strategy found nothing.
type Strategy interface {
	Name() string
	Extract(src *Source, scope *goquery.Selection) []string
}

// Selector reads text or an attribute from the first selector that matches
// something non-empty.
type Selector struct {
	Selectors []string
	Attr      string
	Last      bool
	// All collects every non-empty match of the winning selector.
	All bool
	// Priced skips elements whose text has no digit or no currency marker.
	Priced bool
}

func (s Selector) Name() string { return "selector" }

func (s Selector) Extract(src *Source, scope *goquery.Selection) []string {
	for _, sel := range s.Selectors {
		var values []string
		scope.Find(sel).Each(func(_ int, el *goquery.Selection) {
			v := s.read(el)
			if v == "" || (s.Priced && !priced(src, v)) {
				return
			}
			values = append(values, v)
		})
		if len(values) == 0 {
			continue
		}
		switch {
		case s.All:
			return values
		case s.Last:
			return values[len(values)-1:]
		default:
			return values[:1]
		}
	}
	return nil
}

func (s Selector) read(el *goquery.Selection) string {
	if s.Attr == "" {
		return CollapseSpace(el.Text())
	}
	v, _ := el.Attr(s.Attr)
	return strings.TrimSpace(v)
}

// SelfAttr reads an attribute of the scope element itself.
type SelfAttr struct {
	Attr string
}

func (s SelfAttr) Name() string { return "self_attr" }

func (s SelfAttr) Extract(_ *Source, scope *goquery.Selection) []string {
	if v, ok := scope.Attr(s.Attr); ok && strings.TrimSpace(v) != "" {
		return []string{strings.TrimSpace(v)}
	}
	return nil
}

// URLPattern returns the first capture group of Pattern applied to the page
// URL's path.
type URLPattern struct {
	Pattern *regexp.Regexp
}

func (s URLPattern) Name() string { return "url_pattern" }

func (s URLPattern) Extract(src *Source, _ *goquery.Selection) []string {
	if src.URL == nil {
		return nil
	}
	m := s.Pattern.FindStringSubmatch(src.URL.Path)
	if len(m) < 2 || m[1] == "" {
		return nil
	}
	return []string{m[1]}
}

// TextHeuristic picks the first short element whose text carries a currency
// marker and a digit.
type TextHeuristic struct {
	Selector string
}

func (s TextHeuristic) Name() string { return "text_heuristic" }

func (s TextHeuristic) Extract(src *Source, scope *goquery.Selection) []string {
	sel := s.Selector
	if sel == "" {
		sel = "span, bdi, strong, b, p, div"
	}
	maxLen := src.MaxLen
	if maxLen <= 0 {
		maxLen = 20
	}
	expected := price.Tokens(src.Currency)

	var found string
	scope.Find(sel).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		text := Text(el)
		if text == "" || utf8.RuneCountInString(text) >= maxLen || !hasDigit(text) {
			return true
		}
		if looksLikePrice(text, expected) {
			found = text
			return false
		}
		return true
	})
	if found == "" {
		return nil
	}
	return []string{found}
}

var (
	amountExpr  = `[0-9٠-٩](?:[.,٬٫]?[0-9٠-٩]|[\x{00A0}\x{202F}][0-9٠-٩])*`
	scanPattern = buildScanPattern(price.AllTokens())
)

func buildScanPattern(tokens []string) *regexp.Regexp {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = regexp.QuoteMeta(t)
	}
	tok := "(?:" + strings.Join(quoted, "|") + ")"
	return regexp.MustCompile(tok + `\s*` + amountExpr + `|` + amountExpr + `\s*` + tok)
}

// RegexScan collects every currency-prefixed or currency-suffixed number in
// the scope's text. It is the last resort of price chains.
type RegexScan struct{}

func (RegexScan) Name() string { return "regex_scan" }

func (RegexScan) Extract(_ *Source, scope *goquery.Selection) []string {
	text := Text(scope)
	var out []string
	for _, loc := range scanPattern.FindAllStringIndex(text, -1) {
		if gluedToWord(text, loc[0], loc[1]) {
			continue
		}
		out = append(out, strings.TrimSpace(text[loc[0]:loc[1]]))
	}
	return out
}

// gluedToWord rejects matches like "SR16" inside "USSR16" or "16 TLC".
func gluedToWord(text string, start, end int) bool {
	before, _ := utf8.DecodeLastRuneInString(text[:start])
	after, _ := utf8.DecodeRuneInString(text[end:])
	return isASCIILetter(before) || isASCIILetter(after)
}

// HeadingPrefix returns the rest of the first heading that contains Prefix,
// e.g. "Best Sellers in Electronics" gives "Electronics".
type HeadingPrefix struct {
	Selector string
	Prefix   string
}

func (s HeadingPrefix) Name() string { return "heading_prefix" }

func (s HeadingPrefix) Extract(src *Source, _ *goquery.Selection) []string {
	if src.Doc == nil {
		return nil
	}
	var found string
	src.Doc.Find(s.Selector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		text := CollapseSpace(el.Text())
		i := strings.Index(text, s.Prefix)
		if i < 0 {
			return true
		}
		found = strings.TrimSpace(text[i+len(s.Prefix):])
		return found == ""
	})
	if found == "" {
		return nil
	}
	return []string{found}
}

// QueryParam reads a query parameter of the page URL, capitalized.
type QueryParam struct {
	Param string
}

func (s QueryParam) Name() string { return "query_param" }

func (s QueryParam) Extract(src *Source, _ *goquery.Selection) []string {
	if src.URL == nil {
		return nil
	}
	v := strings.TrimSpace(src.URL.Query().Get(s.Param))
	if v == "" {
		return nil
	}
	r, size := utf8.DecodeRuneInString(v)
	return []string{string(unicode.ToUpper(r)) + v[size:]}
}

// Const yields a fixed value, optionally only when the page path matches.
type Const struct {
	Value string
	Path  *regexp.Regexp
}

func (s Const) Name() string { return "const" }

func (s Const) Extract(src *Source, _ *goquery.Selection) []string {
	if s.Path != nil && (src.URL == nil || !s.Path.MatchString(src.URL.Path)) {
		return nil
	}
	return []string{s.Value}
}

func priced(src *Source, text string) bool {
	var expected []string
	if src != nil {
		expected = price.Tokens(src.Currency)
	}
	return hasDigit(text) && looksLikePrice(text, expected)
}

// looksLikePrice reports whether text carries any known currency marker or
// one of the expected ones.
func looksLikePrice(text string, expected []string) bool {
	if _, ok := price.Detect(text); ok {
		return true
	}
	return containsAny(text, expected)
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func isASCIILetter(r rune) bool {
	return r <= unicode.MaxASCII && unicode.IsLetter(r)
}
