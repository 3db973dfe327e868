package extraction

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/regional-product-extractor/internal/models"
)

func source(t *testing.T, rawURL, html, currency string) *Source {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return &Source{Doc: doc, URL: u, Currency: currency, MaxLen: 20}
}

var asinPattern = regexp.MustCompile(`/dp/([A-Z0-9]{10})`)

func singleSpec() SingleSpec {
	return SingleSpec{
		Identity: Chain{Field: FieldIdentity, Strategies: []Strategy{URLPattern{Pattern: asinPattern}}},
		Title: Chain{Field: FieldTitle, Clean: TitleClean, Strategies: []Strategy{
			Selector{Selectors: []string{"#productTitle", "h1"}},
		}},
		Image: Chain{Field: FieldImage, Clean: ImageClean, Strategies: []Strategy{
			Selector{Selectors: []string{"#landingImage"}, Attr: "data-old-hires"},
			Selector{Selectors: []string{"#landingImage", "#main-image"}, Attr: "src"},
		}},
		Category: Chain{Field: FieldCategory, Strategies: []Strategy{
			Selector{Selectors: []string{"#wayfinding-breadcrumbs_feature_div li a"}, Last: true},
		}},
		PriceCurrent: Chain{Field: FieldPriceCurrent, Strategies: []Strategy{
			Selector{Selectors: []string{".a-price:not(.a-text-price) .a-offscreen"}},
			TextHeuristic{},
			RegexScan{},
		}},
		PriceOriginal: Chain{Field: FieldPriceOriginal, Strategies: []Strategy{
			Selector{Selectors: []string{".a-text-price .a-offscreen"}},
		}},
	}
}

func TestSingle_StructuredFields(t *testing.T) {
	html := `<html><body>
		<div id="wayfinding-breadcrumbs_feature_div"><ul><li><a>Electronics</a></li><li><a>Headphones</a></li></ul></div>
		<span id="productTitle">
			Wireless   Headphones  X1
		</span>
		<img id="landingImage" src="data:image/gif;base64,R0lG" data-old-hires="/images/I/x1.jpg">
		<span class="a-price"><span class="a-offscreen">EGP399.00</span></span>
		<span class="a-price a-text-price"><span class="a-offscreen">EGP599.00</span></span>
	</body></html>`
	src := source(t, "https://www.amazon.eg/dp/B0TEST1234?th=1", html, "EGP")

	var hits []string
	e := New(nil, WithObserver(func(field, strategy string) { hits = append(hits, field+"="+strategy) }))
	x := e.Single(src, singleSpec())

	require.Len(t, x.Items, 1)
	it := x.Items[0]
	assert.Equal(t, models.PageSingleProduct, x.PageType)
	assert.Equal(t, "B0TEST1234", it.Identity)
	assert.Equal(t, "Wireless Headphones X1", it.Title)
	assert.Equal(t, "https://www.amazon.eg/images/I/x1.jpg", it.ImageURL)
	assert.Equal(t, "Headphones", it.Category)
	assert.Equal(t, "399.00", it.Prices.Current)
	orig, ok := it.Prices.Original.Get()
	require.True(t, ok)
	assert.Equal(t, "599.00", orig)
	assert.Equal(t, "EGP", it.Prices.Currency)
	assert.Empty(t, x.Degradations)
	assert.Contains(t, hits, "price_current=selector")
}

func TestSingle_PriceFallsBackToHeuristic(t *testing.T) {
	html := `<html><body><h1>Stainless Steel Kettle 1.7L</h1>
		<div class="buybox"><span>Price:</span> <span class="new-price">SAR 129.50</span></div>
	</body></html>`
	src := source(t, "https://www.amazon.sa/dp/B0KETTLE01", html, "SAR")

	x := New(nil).Single(src, singleSpec())

	it := x.Items[0]
	assert.Equal(t, "Stainless Steel Kettle 1.7L", it.Title)
	assert.Equal(t, "129.50", it.Prices.Current)
	assert.False(t, it.Prices.Original.IsSome())
	assert.Equal(t, "text_heuristic", it.Hits[FieldPriceCurrent])
}

func TestSingle_PriceFallsBackToRegexScan(t *testing.T) {
	html := `<html><body><h1>Desk Lamp With Dimmer</h1>
		<p>Was EGP 1,250.00 now only EGP 999.00 while stocks last, free delivery on orders over EGP 200</p>
	</body></html>`
	src := source(t, "https://www.amazon.eg/dp/B0LAMP0001", html, "EGP")

	x := New(nil).Single(src, singleSpec())

	it := x.Items[0]
	assert.Equal(t, "regex_scan", it.Hits[FieldPriceCurrent])
	assert.Equal(t, "200.00", it.Prices.Current)
	orig, _ := it.Prices.Original.Get()
	assert.Equal(t, "1250.00", orig)
}

func TestSingle_SentinelsAndDegradations(t *testing.T) {
	src := source(t, "https://www.amazon.eg/gp/help", `<html><body><p>Nothing here</p></body></html>`, "EGP")

	x := New(nil).Single(src, singleSpec())

	it := x.Items[0]
	assert.Equal(t, models.Unavailable, it.Identity)
	assert.Equal(t, models.Unknown, it.Title)
	assert.Equal(t, models.Unavailable, it.ImageURL)
	assert.Equal(t, models.Unknown, it.Category)
	assert.Equal(t, models.Unavailable, it.Prices.Current)

	fields := map[string]bool{}
	for _, d := range x.Degradations {
		assert.Equal(t, models.ErrFieldUnavailable, d.Kind)
		fields[d.Field] = true
	}
	for _, f := range []string{FieldIdentity, FieldTitle, FieldImage, FieldCategory, FieldPriceCurrent} {
		assert.True(t, fields[f], f)
	}
}

func TestSingle_TitleWheneverTitleElementExists(t *testing.T) {
	fixtures := []string{
		`<span id="productTitle">Phone Case</span>`,
		`<h1>Garden Hose 30m</h1>`,
		`<h1><span>Sponsored Ad - </span>Yoga Mat Extra Thick</h1>`,
	}
	for i, body := range fixtures {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			src := source(t, "https://www.amazon.com/dp/B000000001", "<html><body>"+body+"</body></html>", "USD")
			x := New(nil).Single(src, singleSpec())
			assert.NotEqual(t, models.Unknown, x.Items[0].Title)
		})
	}
}

func listingSpec() ListingSpec {
	return ListingSpec{
		Containers:     []string{`div[data-component-type="s-search-result"]`, `li.carousel-item`},
		MinIdentityLen: 5,
		MinTitleLen:    10,
		Category: Chain{Field: FieldCategory, Strategies: []Strategy{
			HeadingPrefix{Selector: "h1, h2", Prefix: "Best Sellers in"},
			QueryParam{Param: "i"},
			Const{Value: "Search Results", Path: regexp.MustCompile(`^/s$`)},
			Const{Value: "Products"},
		}},
		Identity: Chain{Field: FieldIdentity, Strategies: []Strategy{
			SelfAttr{Attr: "data-asin"},
			Selector{Selectors: []string{"[data-asin]"}, Attr: "data-asin"},
		}},
		Title: Chain{Field: FieldTitle, Clean: TitleClean, Strategies: []Strategy{
			Selector{Selectors: []string{"h2"}},
		}},
		Image: Chain{Field: FieldImage, Clean: ImageClean, Strategies: []Strategy{
			Selector{Selectors: []string{"img.s-image", "img"}, Attr: "src"},
		}},
		Link: Chain{Field: FieldLink, Clean: ImageClean, Strategies: []Strategy{
			Selector{Selectors: []string{`a[href*="/dp/"]`}, Attr: "href"},
		}},
		PriceCurrent: Chain{Field: FieldPriceCurrent, Strategies: []Strategy{
			Selector{Selectors: []string{".a-price:not(.a-text-price) .a-offscreen"}},
			RegexScan{},
		}},
		PriceOriginal: Chain{Field: FieldPriceOriginal, Strategies: []Strategy{
			Selector{Selectors: []string{".a-price.a-text-price .a-offscreen"}},
		}},
	}
}

func searchResult(asin, title, current, original string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<div data-component-type="s-search-result" data-asin="%s">`, asin)
	fmt.Fprintf(&b, `<a href="/dp/%s"><img class="s-image" src="https://m.media-amazon.com/%s.jpg"></a>`, asin, asin)
	fmt.Fprintf(&b, `<h2>%s</h2>`, title)
	if current != "" {
		fmt.Fprintf(&b, `<span class="a-price"><span class="a-offscreen">%s</span></span>`, current)
	}
	if original != "" {
		fmt.Fprintf(&b, `<span class="a-price a-text-price"><span class="a-offscreen">%s</span></span>`, original)
	}
	b.WriteString(`</div>`)
	return b.String()
}

func TestListing_DedupesAndCaps(t *testing.T) {
	html := "<html><body>" +
		searchResult("B0AAAAAAA1", "Sponsored Ad - Bluetooth Speaker Mini", "EGP 450.00", "EGP 700.00") +
		searchResult("B0AAAAAAA1", "Bluetooth Speaker Mini duplicate", "EGP 450.00", "") +
		searchResult("", "Item without an identity", "EGP 10.00", "") +
		searchResult("B0AAAAAAA2", "Short", "EGP 99.00", "") +
		searchResult("B0AAAAAAA3", "USB-C Charging Cable 2m", "EGP 120.00", "") +
		searchResult("B0AAAAAAA4", "Laptop Stand Aluminium", "EGP 890.00", "") +
		searchResult("B0AAAAAAA5", "Mechanical Keyboard RGB", "EGP 1,999.00", "EGP 2,499.00") +
		searchResult("B0AAAAAAA6", "Wireless Mouse Silent", "EGP 300.00", "") +
		"</body></html>"
	src := source(t, "https://www.amazon.eg/s?k=gadgets&i=electronics", html, "EGP")

	x := New(nil).Listing(src, listingSpec(), 4)

	require.Len(t, x.Items, 4)
	seen := map[string]bool{}
	for _, it := range x.Items {
		assert.False(t, seen[it.Identity], "duplicate %s", it.Identity)
		seen[it.Identity] = true
		assert.Equal(t, "Electronics", it.Category)
	}
	assert.Equal(t, "B0AAAAAAA1", x.Items[0].Identity)
	assert.Equal(t, "Bluetooth Speaker Mini", x.Items[0].Title)
	assert.Equal(t, "https://www.amazon.eg/dp/B0AAAAAAA1", x.Items[0].Link)
	assert.Equal(t, "B0AAAAAAA5", x.Items[3].Identity)
	assert.Equal(t, "1999.00", x.Items[3].Prices.Current)
	orig, _ := x.Items[3].Prices.Original.Get()
	assert.Equal(t, "2499.00", orig)

	rec := x.Items[0].Record(models.RegionTag{Code: "EG"}, "https://www.amazon.eg/s?k=gadgets")
	assert.Equal(t, "https://www.amazon.eg/dp/B0AAAAAAA1", rec.SourceURL)
	assert.Equal(t, "EGP", rec.Currency)
}

func TestListing_GalleryImages(t *testing.T) {
	html := `<html><body>
	<div class="product-card" data-id="7001">
		<span class="product-name">Leather Sneakers</span>
		<div class="image-slider">
			<img src="https://cdn.example.com/7001/1.jpg">
			<img src="data:image/png;base64,AAAA">
			<img src="https://cdn.example.com/7001/2.jpg">
			<img src="https://cdn.example.com/7001/1.jpg">
		</div>
		<img class="thumb" src="https://cdn.example.com/7001/thumb.jpg">
		<span>SAR 210.00</span>
	</div>
	<div class="product-card" data-id="7002">
		<span class="product-name">Canvas Backpack</span>
		<img class="thumb" src="https://cdn.example.com/7002/thumb.jpg">
		<span>SAR 95.00</span>
	</div>
	</body></html>`
	src := source(t, "https://www.trendyol.com/sr?q=shoes", html, "SAR")
	spec := ListingSpec{
		Containers: []string{".product-card"},
		Category:   Chain{Field: FieldCategory, Strategies: []Strategy{Const{Value: "Products"}}},
		Identity:   Chain{Field: FieldIdentity, Strategies: []Strategy{SelfAttr{Attr: "data-id"}}},
		Title:      Chain{Field: FieldTitle, Strategies: []Strategy{Selector{Selectors: []string{".product-name"}}}},
		Image: Chain{Field: FieldImage, Clean: ImageClean, Strategies: []Strategy{
			Selector{Selectors: []string{"img.thumb"}, Attr: "src"},
		}},
		Gallery: Chain{Field: FieldImages, Clean: ImageClean, Strategies: []Strategy{
			Selector{Selectors: []string{".image-slider img"}, Attr: "src", All: true},
		}},
		PriceCurrent: Chain{Field: FieldPriceCurrent, Strategies: []Strategy{RegexScan{}}},
	}

	x := New(nil).Listing(src, spec, 4)

	require.Len(t, x.Items, 2)
	sneakers := x.Items[0]
	assert.Equal(t, []string{"https://cdn.example.com/7001/1.jpg", "https://cdn.example.com/7001/2.jpg"}, sneakers.Images)
	assert.Equal(t, "https://cdn.example.com/7001/1.jpg", sneakers.ImageURL)

	backpack := x.Items[1]
	assert.Empty(t, backpack.Images)
	assert.Equal(t, "https://cdn.example.com/7002/thumb.jpg", backpack.ImageURL)

	rec := sneakers.Record(models.RegionTag{Code: "SA"}, src.URL.String())
	assert.Len(t, rec.Images, 2)
	assert.Equal(t, rec.Images[0], rec.ImageURL)
}

func TestListing_NeverExceedsCap(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 12; i++ {
		b.WriteString(searchResult(fmt.Sprintf("B0CAP%05d", i), fmt.Sprintf("Generic Product Number %d", i), "$10.00", ""))
	}
	b.WriteString("</body></html>")
	src := source(t, "https://www.amazon.com/s?k=x", b.String(), "USD")

	for _, limit := range []int{1, 3, 4, 10} {
		x := New(nil).Listing(src, listingSpec(), limit)
		assert.Len(t, x.Items, limit)
	}
	x := New(nil).Listing(src, listingSpec(), 0)
	assert.Len(t, x.Items, 4)
}

func TestListing_FallsThroughEmptyLayouts(t *testing.T) {
	html := `<html><body>
		<h2>Best Sellers in Home &amp; Kitchen</h2>
		<div data-component-type="s-search-result"><h2>No identity on this one</h2></div>
		<ol><li class="carousel-item"><div data-asin="B0BEST0001"><h2>Ceramic Coffee Mug Set</h2><span>EGP 240.00</span></div></li></ol>
	</body></html>`
	src := source(t, "https://www.amazon.eg/gp/bestsellers/kitchen", html, "EGP")

	x := New(nil).Listing(src, listingSpec(), 4)

	require.Len(t, x.Items, 1)
	assert.Equal(t, "li.carousel-item", x.Layout)
	it := x.Items[0]
	assert.Equal(t, "B0BEST0001", it.Identity)
	assert.Equal(t, "Home & Kitchen", it.Category)
	assert.Equal(t, "240.00", it.Prices.Current)
	assert.Equal(t, "regex_scan", it.Hits[FieldPriceCurrent])
	assert.Equal(t, models.Unavailable, it.ImageURL)
}

func TestListing_OrderAttribute(t *testing.T) {
	html := `<html><body>
		<div class="product-card" data-product-index="2"><a data-id="200"></a><span class="product-name">Second Cotton Shirt</span></div>
		<div class="product-card" data-product-index="1"><a data-id="100"></a><span class="product-name">First Linen Trousers</span></div>
	</body></html>`
	src := source(t, "https://www.trendyol.com/sr?q=shirt", html, "SAR")
	spec := ListingSpec{
		Containers:   []string{".product-card"},
		OrderAttr:    "data-product-index",
		MinTitleLen:  5,
		Category:     Chain{Field: FieldCategory, Strategies: []Strategy{Const{Value: "Products"}}},
		Identity:     Chain{Field: FieldIdentity, Strategies: []Strategy{Selector{Selectors: []string{"[data-id]"}, Attr: "data-id"}}},
		Title:        Chain{Field: FieldTitle, Strategies: []Strategy{Selector{Selectors: []string{".product-name"}}}},
		Image:        Chain{Field: FieldImage},
		PriceCurrent: Chain{Field: FieldPriceCurrent, Strategies: []Strategy{RegexScan{}}},
	}

	x := New(nil).Listing(src, spec, 4)

	require.Len(t, x.Items, 2)
	assert.Equal(t, "100", x.Items[0].Identity)
	assert.Equal(t, "200", x.Items[1].Identity)
}

func TestListing_NoLayoutDegrades(t *testing.T) {
	src := source(t, "https://www.amazon.eg/s?k=none", `<html><body><p>No results</p></body></html>`, "EGP")

	x := New(nil).Listing(src, listingSpec(), 4)

	assert.Empty(t, x.Items)
	require.NotEmpty(t, x.Degradations)
	assert.Equal(t, "Search Results", categoryOf(t, src))
}

func categoryOf(t *testing.T, src *Source) string {
	t.Helper()
	m, ok := listingSpec().Category.Run(src, src.Doc.Selection)
	require.True(t, ok)
	return m.First()
}
