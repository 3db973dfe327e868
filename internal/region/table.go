package region

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/maltedev/regional-product-extractor/internal/models"
)

// Entry binds a domain suffix to a region.
type Entry struct {
	Suffix string              `yaml:"suffix"`
	Region models.RegionConfig `yaml:"region"`
}

// Table maps hosts to regions by their longest matching domain suffix.
// Codes are looked up in entry order, so builtin storefronts win over later ones.
// A Table is immutable once built.
type Table struct {
	entries  []Entry
	fallback models.RegionConfig
}

var validate = validator.New()

var (
	egypt   = models.RegionConfig{Code: "EG", Locale: "en-AE", Currency: "EGP", DeliveryLocation: "Egypt", Timezone: "Africa/Cairo", Aliases: []string{"مصر", "Cairo"}}
	saudi   = models.RegionConfig{Code: "SA", Locale: "en-AE", Currency: "SAR", DeliveryLocation: "Saudi Arabia", Timezone: "Asia/Riyadh", Aliases: []string{"Riyadh", "السعودية"}}
	emirate = models.RegionConfig{Code: "AE", Locale: "en-AE", Currency: "AED", DeliveryLocation: "United Arab Emirates", Timezone: "Asia/Dubai", Aliases: []string{"Dubai", "UAE"}}
	usa     = models.RegionConfig{Code: "US", Locale: "en-US", Currency: "USD", DeliveryLocation: "United States", Timezone: "America/New_York", Aliases: []string{"New York", "10001"}}
	britain = models.RegionConfig{Code: "GB", Locale: "en-GB", Currency: "GBP", DeliveryLocation: "United Kingdom", Timezone: "Europe/London", Aliases: []string{"London"}}
	germany = models.RegionConfig{Code: "DE", Locale: "de-DE", Currency: "EUR", DeliveryLocation: "Germany", Timezone: "Europe/Berlin", Aliases: []string{"Deutschland", "Berlin"}}
	turkey  = models.RegionConfig{Code: "TR", Locale: "tr-TR", Currency: "TRY", DeliveryLocation: "Turkey", Timezone: "Europe/Istanbul", Aliases: []string{"Türkiye", "Istanbul"}}
)

// Builtin returns the storefront regions known out of the box. Brand
// storefronts come first; the country-code suffixes after them cover any
// other shop on a regional domain.
func Builtin() []Entry {
	trendyol := saudi
	trendyol.Locale = "en-US"
	trendyol.Aliases = nil
	trendyol.Storefront = "30"

	return []Entry{
		{"amazon.eg", egypt},
		{"amazon.sa", saudi},
		{"amazon.ae", emirate},
		{"amazon.com", usa},
		{"amazon.co.uk", britain},
		{"amazon.de", germany},
		{"amazon.com.tr", turkey},
		{"trendyol.com", trendyol},

		{"eg", egypt},
		{"com.eg", egypt},
		{"sa", saudi},
		{"com.sa", saudi},
		{"ae", emirate},
		{"co.uk", britain},
		{"de", germany},
		{"com.tr", turkey},
	}
}

// NewTable builds a table from entries. The fallback region is the entry whose
// region code equals defaultCode.
func NewTable(entries []Entry, defaultCode string) (*Table, error) {
	t := &Table{}
	for _, e := range entries {
		e.Suffix = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e.Suffix), "."))
		if err := Validate(e.Region); err != nil {
			return nil, fmt.Errorf("region %q: %w", e.Suffix, err)
		}
		if err := validate.Var(e.Suffix, "required,hostname_rfc1123"); err != nil {
			return nil, fmt.Errorf("invalid suffix %q: %w", e.Suffix, err)
		}
		t.entries = append(t.entries, e)
	}

	defaultCode = strings.ToUpper(defaultCode)
	for _, e := range t.entries {
		if e.Region.Code == defaultCode {
			t.fallback = e.Region
			return t, nil
		}
	}
	return nil, fmt.Errorf("default region %q has no table entry", defaultCode)
}

// Load builds the builtin table, extended and overridden by the YAML file at
// path when path is not empty.
func Load(path, defaultCode string) (*Table, error) {
	entries := Builtin()
	if path != "" {
		extra, err := readFile(path)
		if err != nil {
			return nil, err
		}
		entries = merge(entries, extra)
	}
	return NewTable(entries, defaultCode)
}

type fileFormat struct {
	Regions []Entry `yaml:"regions"`
}

func readFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read region table: %w", err)
	}
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse region table: %w", err)
	}
	return f.Regions, nil
}

// merge replaces entries with the same suffix and appends the rest.
func merge(base, extra []Entry) []Entry {
	out := make([]Entry, 0, len(base)+len(extra))
	override := make(map[string]Entry, len(extra))
	for _, e := range extra {
		override[strings.ToLower(e.Suffix)] = e
	}
	for _, e := range base {
		if o, ok := override[e.Suffix]; ok {
			out = append(out, o)
			delete(override, e.Suffix)
			continue
		}
		out = append(out, e)
	}
	for _, e := range extra {
		if _, ok := override[strings.ToLower(e.Suffix)]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Lookup returns the region for host and whether a suffix matched.
func (t *Table) Lookup(host string) (models.RegionConfig, bool) {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	best := -1
	for i, e := range t.entries {
		if host != e.Suffix && !strings.HasSuffix(host, "."+e.Suffix) {
			continue
		}
		if best < 0 || len(e.Suffix) > len(t.entries[best].Suffix) {
			best = i
		}
	}
	if best < 0 {
		return t.fallback, false
	}
	return t.entries[best].Region, true
}

func (t *Table) Default() models.RegionConfig {
	return t.fallback
}

// ByLocation finds the region whose delivery location or alias appears in
// text, such as a storefront's "Deliver to London" indicator. The longest
// matching name wins; ties go to the earlier entry.
func (t *Table) ByLocation(text string) (models.RegionConfig, bool) {
	text = strings.ToLower(text)
	var (
		found models.RegionConfig
		best  int
	)
	for _, e := range t.entries {
		names := append([]string{e.Region.DeliveryLocation}, e.Region.Aliases...)
		for _, name := range names {
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" || len(name) <= best || !strings.Contains(text, name) {
				continue
			}
			found, best = e.Region, len(name)
		}
	}
	return found, best > 0
}

// ByCode finds the first region with the given code.
func (t *Table) ByCode(code string) (models.RegionConfig, bool) {
	code = strings.ToUpper(code)
	for _, e := range t.entries {
		if e.Region.Code == code {
			return e.Region, true
		}
	}
	return models.RegionConfig{}, false
}

// Validate checks a caller-supplied region.
func Validate(r models.RegionConfig) error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if _, err := language.Parse(r.Locale); err != nil {
		return fmt.Errorf("invalid locale %q: %w", r.Locale, err)
	}
	return nil
}

// AcceptLanguage builds an Accept-Language header value for a locale,
// e.g. "en-AE" -> "en-AE,en;q=0.9".
func AcceptLanguage(locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		return "en-US,en;q=0.9"
	}
	base, _ := tag.Base()
	if tag.String() == base.String() {
		return tag.String()
	}
	return fmt.Sprintf("%s,%s;q=0.9", tag.String(), base.String())
}

// Language returns the base language of a locale, e.g. "ar" for "ar-SA".
func Language(locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		return "en"
	}
	base, _ := tag.Base()
	return base.String()
}
