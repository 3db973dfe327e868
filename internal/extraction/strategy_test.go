package extraction

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegexScan(t *testing.T) {
	tests := []struct {
		name string
		html string
		want []string
	}{
		{"prefixed", `<p>Now EGP 399.00, was EGP 599.00</p>`, []string{"EGP 399.00", "EGP 599.00"}},
		{"suffixed", `<p>1.299,90 TL</p>`, []string{"1.299,90 TL"}},
		{"adjacent nodes", `<div><h2>Mug</h2><span>SAR 45</span></div>`, []string{"SAR 45"}},
		{"arabic", `<p>السعر ٣٩٩ ج.م</p>`, []string{"٣٩٩ ج.م"}},
		{"glued to word", `<p>USSR1990 and 16 TLC</p>`, nil},
		{"no currency", `<p>4.5 out of 5 stars, 1,024 ratings</p>`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := source(t, "https://example.com/", "<html><body>"+tt.html+"</body></html>", "")
			assert.Equal(t, tt.want, RegexScan{}.Extract(src, src.Doc.Selection))
		})
	}
}

func TestTextHeuristic_RespectsLengthBound(t *testing.T) {
	html := `<div><span>Only EGP 250 if you order within the next two hours</span><b>EGP 275</b></div>`
	src := source(t, "https://www.amazon.eg/dp/B000000001", "<html><body>"+html+"</body></html>", "EGP")

	assert.Equal(t, []string{"EGP 275"}, TextHeuristic{}.Extract(src, src.Doc.Selection))

	src.MaxLen = 5
	assert.Nil(t, TextHeuristic{}.Extract(src, src.Doc.Selection))
}

func TestSelector_Priced(t *testing.T) {
	html := `<div class="product-price">Free shipping</div>
		<div class="sale-price">Best seller</div>
		<div class="discounted-price">SAR 89.90</div>`
	src := source(t, "https://www.trendyol.com/x-p-1", "<html><body>"+html+"</body></html>", "SAR")

	s := Selector{Selectors: []string{".product-price", ".sale-price", ".discounted-price"}}
	assert.Equal(t, []string{"Free shipping"}, s.Extract(src, src.Doc.Selection))

	s.Priced = true
	assert.Equal(t, []string{"SAR 89.90"}, s.Extract(src, src.Doc.Selection))
}

func TestQueryParamAndConst(t *testing.T) {
	src := source(t, "https://www.amazon.eg/s?k=tv&i=electronics", "<html></html>", "EGP")

	assert.Equal(t, []string{"Electronics"}, QueryParam{Param: "i"}.Extract(src, nil))
	assert.Nil(t, QueryParam{Param: "rh"}.Extract(src, nil))
	assert.Equal(t, []string{"Products"}, Const{Value: "Products"}.Extract(src, nil))
}

func TestCleanTitle(t *testing.T) {
	assert.Equal(t, "Ear Buds", CleanTitle("  Sponsored Ad – Ear\n\tBuds "))
	assert.Equal(t, "Sponsored by nobody: a novel", CleanTitle("Sponsored by nobody: a novel"))

	long := strings.Repeat("ab ", 150)
	assert.Len(t, []rune(CleanTitle(long)), maxTitleRunes)
}

func TestResolveURL(t *testing.T) {
	base, _ := url.Parse("https://www.amazon.eg/dp/B000000001")

	assert.Equal(t, "https://www.amazon.eg/img/a.jpg", ResolveURL("/img/a.jpg", base))
	assert.Equal(t, "https://cdn.example.com/b.png", ResolveURL("//cdn.example.com/b.png", base))
	assert.Empty(t, ResolveURL("data:image/gif;base64,R0lGOD", base))
	assert.Empty(t, ResolveURL("javascript:void(0)", base))
	assert.Empty(t, ResolveURL("", base))
}
