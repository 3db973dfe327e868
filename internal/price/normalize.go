package price

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/maltedev/regional-product-extractor/internal/models"
)

// Prices is a normalized current/original pair with its currency code.
type Prices struct {
	Current  string
	Original models.OptionalPrice
	Currency string
}

// Raw returns the prices as raw strings, suitable for normalizing again.
func (p Prices) Raw() []string {
	var raw []string
	if p.Current != "" && p.Current != models.Unavailable {
		raw = append(raw, p.Current)
	}
	if orig, ok := p.Original.Get(); ok {
		raw = append(raw, orig)
	}
	return raw
}

func (p Prices) Available() bool {
	return p.Current != "" && p.Current != models.Unavailable
}

var (
	numberPattern = regexp.MustCompile(`\d(?:[.,]?\d|[\x{00A0}\x{202F}]\d)*`)

	digitFolder = strings.NewReplacer(
		"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
		"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
		"٬", ",", "٫", ".",
	)
)

// Normalize turns raw price strings into a current/original pair.
//
// A currency marker found in the text wins over expected. The lowest distinct
// amount is the current price and the highest the original; a single amount,
// or amounts that are all equal, yield no original price.
func Normalize(raw []string, expected string) Prices {
	code := strings.ToUpper(strings.TrimSpace(expected))
	for _, r := range raw {
		if detected, ok := Detect(r); ok {
			code = detected
			break
		}
	}
	cur := Lookup(code)

	var amounts []decimal.Decimal
	for _, r := range raw {
		amounts = append(amounts, Amounts(r, cur)...)
	}

	out := Prices{Current: models.Unavailable, Original: models.NoPrice(), Currency: code}
	if len(amounts) == 0 {
		return out
	}

	lo, hi := amounts[0], amounts[0]
	for _, a := range amounts[1:] {
		if a.LessThan(lo) {
			lo = a
		}
		if a.GreaterThan(hi) {
			hi = a
		}
	}

	out.Current = lo.StringFixed(cur.Precision)
	if hi.GreaterThan(lo) {
		out.Original = models.SomePrice(hi.StringFixed(cur.Precision))
	}
	return out
}

// Amounts extracts every positive amount written in text under the given
// currency convention.
func Amounts(text string, cur Currency) []decimal.Decimal {
	text = digitFolder.Replace(text)
	var out []decimal.Decimal
	for _, tok := range numberPattern.FindAllString(text, -1) {
		d, ok := ParseAmount(tok, cur)
		if !ok || !d.IsPositive() {
			continue
		}
		out = append(out, d.Round(cur.Precision))
	}
	return out
}

// ParseAmount reads a single number token. With both separators present the
// last one is the decimal mark. A lone separator followed by exactly three
// digits is read by the currency's convention; any other lone separator is a
// decimal mark, and a repeated one is grouping.
func ParseAmount(tok string, cur Currency) (decimal.Decimal, bool) {
	tok = strings.NewReplacer("\u00a0", "", "\u202f", "").Replace(strings.TrimSpace(tok))
	tok = strings.Trim(tok, ".,")
	if tok == "" {
		return decimal.Zero, false
	}

	dots := strings.Count(tok, ".")
	commas := strings.Count(tok, ",")

	switch {
	case dots > 0 && commas > 0:
		dec := byte('.')
		if strings.LastIndex(tok, ",") > strings.LastIndex(tok, ".") {
			dec = ','
		}
		tok = toPlain(tok, dec)
	case dots+commas == 0:
	case dots > 1 || commas > 1:
		tok = strings.NewReplacer(".", "", ",", "").Replace(tok)
	default:
		sep := byte('.')
		if commas == 1 {
			sep = ','
		}
		frac := len(tok) - strings.IndexByte(tok, sep) - 1
		if frac == 3 && cur.DecimalSep != sep {
			tok = strings.ReplaceAll(tok, string(sep), "")
		} else {
			tok = toPlain(tok, sep)
		}
	}

	d, err := decimal.NewFromString(tok)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func toPlain(tok string, dec byte) string {
	group := ","
	if dec == ',' {
		group = "."
	}
	tok = strings.ReplaceAll(tok, group, "")
	return strings.Replace(tok, string(dec), ".", 1)
}
