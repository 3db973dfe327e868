package extraction

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/regional-product-extractor/internal/models"
	"github.com/maltedev/regional-product-extractor/internal/price"
)

const defaultListingCap = 4

// SingleSpec holds the page-wide chains of a product page.
type SingleSpec struct {
	Identity      Chain
	Title         Chain
	Image         Chain
	Category      Chain
	PriceCurrent  Chain
	PriceOriginal Chain
}

// ListingSpec describes how items are found on a listing page. Item chains
// run scoped to each container; Category runs against the whole page.
// Gallery is optional and collects every image of an item; when it yields
// anything its first image becomes the item's ImageURL.
type ListingSpec struct {
	// Containers are tried in order; the first that yields items defines the layout.
	Containers []string
	// OrderAttr, when set, sorts containers by its integer value.
	OrderAttr      string
	MinIdentityLen int
	MinTitleLen    int

	Category      Chain
	Identity      Chain
	Title         Chain
	Image         Chain
	Gallery       Chain
	Link          Chain
	PriceCurrent  Chain
	PriceOriginal Chain
}

// Item is one extracted product before it is tagged with a region.
type Item struct {
	Identity string
	Title    string
	ImageURL string
	Images   []string
	Category string
	Link     string
	Prices   price.Prices
	// Hits maps each field to the strategy that produced it.
	Hits map[string]string
}

// Record converts the item into a product record.
func (it Item) Record(region models.RegionTag, sourceURL string) models.ProductRecord {
	if it.Link != "" {
		sourceURL = it.Link
	}
	return models.ProductRecord{
		Identity:      it.Identity,
		Title:         it.Title,
		ImageURL:      it.ImageURL,
		Images:        it.Images,
		PriceCurrent:  it.Prices.Current,
		PriceOriginal: it.Prices.Original,
		Currency:      it.Prices.Currency,
		Category:      it.Category,
		Region:        region,
		SourceURL:     sourceURL,
	}
}

// Extraction is what one page yielded.
type Extraction struct {
	PageType     models.PageType
	Items        []Item
	Degradations []models.Degradation
	// Layout is the container selector that produced listing items.
	Layout string
}

func (x *Extraction) degrade(field, reason string) {
	x.Degradations = append(x.Degradations, models.Degradation{
		Kind:   models.ErrFieldUnavailable,
		Field:  field,
		Reason: reason,
	})
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver reports which strategy served each field; "none" marks an
// exhausted chain.
func WithObserver(fn func(field, strategy string)) Option {
	return func(e *Engine) { e.observe = fn }
}

// Engine runs site specs against parsed pages.
type Engine struct {
	logger  *slog.Logger
	observe func(field, strategy string)
}

// New creates an engine. A nil logger uses slog.Default.
func New(logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		logger:  logger.With("component", "extraction"),
		observe: func(string, string) {},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) run(c Chain, src *Source, scope *goquery.Selection) (Match, bool) {
	m, ok := c.Run(src, scope)
	if ok {
		e.observe(c.Field, m.Strategy)
	} else {
		e.observe(c.Field, "none")
	}
	return m, ok
}

// Single extracts the one product a product page shows. Missing fields get
// their sentinel and a degradation entry.
func (e *Engine) Single(src *Source, spec SingleSpec) Extraction {
	x := Extraction{PageType: models.PageSingleProduct}
	scope := src.Doc.Selection
	it := Item{Hits: map[string]string{}}

	text := func(c Chain, sentinel string) string {
		m, ok := e.run(c, src, scope)
		if !ok {
			x.degrade(c.Field, "no strategy matched")
			return sentinel
		}
		it.Hits[c.Field] = m.Strategy
		return m.First()
	}

	it.Identity = text(spec.Identity, models.Unavailable)
	it.Title = text(spec.Title, models.Unknown)
	it.ImageURL = text(spec.Image, models.Unavailable)
	it.Category = text(spec.Category, models.Unknown)
	it.Prices = e.prices(&x, &it, spec.PriceCurrent, spec.PriceOriginal, src, scope, "")

	x.Items = []Item{it}
	return x
}

func (e *Engine) prices(x *Extraction, it *Item, current, original Chain, src *Source, scope *goquery.Selection, label string) price.Prices {
	var raw []string
	if m, ok := e.run(current, src, scope); ok {
		it.Hits[current.Field] = m.Strategy
		raw = append(raw, m.Values...)
	} else {
		x.degrade(current.Field, label+"no strategy matched")
	}
	if !original.Empty() {
		if m, ok := e.run(original, src, scope); ok {
			it.Hits[original.Field] = m.Strategy
			raw = append(raw, m.Values...)
		}
	}

	p := price.Normalize(raw, src.Currency)
	if len(raw) > 0 && !p.Available() {
		x.degrade(current.Field, label+"no amount in "+fmt.Sprintf("%q", raw))
	}
	return p
}

// Listing extracts up to limit distinct items from a listing page.
func (e *Engine) Listing(src *Source, spec ListingSpec, limit int) Extraction {
	if limit <= 0 {
		limit = defaultListingCap
	}
	x := Extraction{PageType: models.PageListing}

	category := models.Unknown
	if m, ok := e.run(spec.Category, src, src.Doc.Selection); ok {
		category = m.First()
	} else {
		x.degrade(spec.Category.Field, "no strategy matched")
	}

	for _, sel := range spec.Containers {
		nodes := containers(src.Doc, sel, spec.OrderAttr)
		if len(nodes) == 0 {
			continue
		}
		probe := Extraction{PageType: models.PageListing}
		items := e.collect(&probe, src, spec, nodes, category, limit)
		if len(items) == 0 {
			e.logger.Debug("container layout yielded no items", "selector", sel, "containers", len(nodes))
			continue
		}
		x.Items = items
		x.Layout = sel
		x.Degradations = append(x.Degradations, probe.Degradations...)
		break
	}

	if len(x.Items) == 0 {
		x.degrade(FieldIdentity, "no listing layout produced items")
	}
	return x
}

func (e *Engine) collect(x *Extraction, src *Source, spec ListingSpec, nodes []*goquery.Selection, category string, limit int) []Item {
	seen := make(map[string]bool)
	var items []Item

	for _, node := range nodes {
		if len(items) >= limit {
			break
		}

		idm, ok := e.run(spec.Identity, src, node)
		id := idm.First()
		if !ok || len(id) < spec.MinIdentityLen || seen[id] {
			continue
		}
		seen[id] = true

		tm, ok := e.run(spec.Title, src, node)
		if !ok || utf8.RuneCountInString(tm.First()) < spec.MinTitleLen {
			continue
		}

		it := Item{
			Identity: id,
			Title:    tm.First(),
			Category: category,
			Hits:     map[string]string{FieldIdentity: idm.Strategy, FieldTitle: tm.Strategy},
		}
		label := "item " + id + ": "

		if !spec.Gallery.Empty() {
			if m, ok := e.run(spec.Gallery, src, node); ok {
				it.Images = unique(m.Values)
				it.Hits[FieldImages] = m.Strategy
			}
		}
		if len(it.Images) > 0 {
			it.ImageURL = it.Images[0]
			it.Hits[FieldImage] = it.Hits[FieldImages]
		} else if m, ok := e.run(spec.Image, src, node); ok {
			it.ImageURL = m.First()
			it.Hits[FieldImage] = m.Strategy
		} else {
			it.ImageURL = models.Unavailable
			x.degrade(FieldImage, label+"no strategy matched")
		}
		if !spec.Link.Empty() {
			if m, ok := e.run(spec.Link, src, node); ok {
				it.Link = m.First()
				it.Hits[FieldLink] = m.Strategy
			}
		}
		it.Prices = e.prices(x, &it, spec.PriceCurrent, spec.PriceOriginal, src, node, label)

		items = append(items, it)
	}
	return items
}

func unique(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func containers(doc *goquery.Document, selector, orderAttr string) []*goquery.Selection {
	var nodes []*goquery.Selection
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, s)
	})
	if orderAttr != "" {
		sort.SliceStable(nodes, func(i, j int) bool {
			return orderOf(nodes[i], orderAttr) < orderOf(nodes[j], orderAttr)
		})
	}
	return nodes
}

func orderOf(s *goquery.Selection, attr string) int {
	v, _ := s.Attr(attr)
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
