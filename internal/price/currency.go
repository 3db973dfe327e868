package price

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Currency describes how a currency is written on storefront pages.
type Currency struct {
	Code       string
	Tokens     []string
	DecimalSep byte
	Precision  int32
}

var currencies = []Currency{
	{Code: "EGP", Tokens: []string{"EGP", "E£", "ج.م", "جنيه"}, DecimalSep: '.', Precision: 2},
	{Code: "SAR", Tokens: []string{"SAR", "SR", "ر.س", "ريال", "﷼"}, DecimalSep: '.', Precision: 2},
	{Code: "AED", Tokens: []string{"AED", "د.إ"}, DecimalSep: '.', Precision: 2},
	{Code: "USD", Tokens: []string{"USD", "US$", "$"}, DecimalSep: '.', Precision: 2},
	{Code: "GBP", Tokens: []string{"GBP", "£"}, DecimalSep: '.', Precision: 2},
	{Code: "EUR", Tokens: []string{"EUR", "€"}, DecimalSep: ',', Precision: 2},
	{Code: "TRY", Tokens: []string{"TRY", "TL", "₺"}, DecimalSep: ',', Precision: 2},
}

type tokenEntry struct {
	token string
	code  string
}

// tokenIndex lists every token longest first so "US$" wins over "$" and "E£" over "£".
var tokenIndex = buildTokenIndex()

func buildTokenIndex() []tokenEntry {
	var idx []tokenEntry
	for _, c := range currencies {
		for _, t := range c.Tokens {
			idx = append(idx, tokenEntry{token: t, code: c.Code})
		}
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return len(idx[i].token) > len(idx[j].token)
	})
	return idx
}

// Lookup returns the convention for a currency code. Unknown codes get a
// dot-decimal, two-digit convention.
func Lookup(code string) Currency {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, c := range currencies {
		if c.Code == code {
			return c
		}
	}
	return Currency{Code: code, Tokens: []string{code}, DecimalSep: '.', Precision: 2}
}

// Tokens returns the textual markers of a currency, used by text heuristics.
func Tokens(code string) []string {
	c := Lookup(code)
	if c.Code == "" {
		return nil
	}
	out := make([]string, len(c.Tokens))
	copy(out, c.Tokens)
	return out
}

// AllTokens returns every known currency marker, longest first.
func AllTokens() []string {
	out := make([]string, len(tokenIndex))
	for i, e := range tokenIndex {
		out[i] = e.token
	}
	return out
}

// Detect finds the first currency marker in text.
func Detect(text string) (string, bool) {
	best, bestPos := "", -1
	for _, e := range tokenIndex {
		pos := indexToken(text, e.token)
		if pos < 0 {
			continue
		}
		if bestPos < 0 || pos < bestPos {
			best, bestPos = e.code, pos
		}
	}
	return best, bestPos >= 0
}

// indexToken finds token in text. Latin-letter tokens must not be glued to
// other letters, so "SR" does not match inside "SRAM".
func indexToken(text, token string) int {
	if !isLatinWord(token) {
		return strings.Index(text, token)
	}
	offset := 0
	for {
		i := strings.Index(text[offset:], token)
		if i < 0 {
			return -1
		}
		start := offset + i
		end := start + len(token)
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if !isASCIILetter(before) && !isASCIILetter(after) {
			return start
		}
		offset = end
	}
}

func isLatinWord(s string) bool {
	for _, r := range s {
		if !isASCIILetter(r) {
			return false
		}
	}
	return s != ""
}

func isASCIILetter(r rune) bool {
	return r <= unicode.MaxASCII && unicode.IsLetter(r)
}
