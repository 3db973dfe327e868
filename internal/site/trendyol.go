package site

import (
	"regexp"

	"github.com/maltedev/regional-product-extractor/internal/extraction"
	"github.com/maltedev/regional-product-extractor/internal/session"
)

var trendyolID = regexp.MustCompile(`-p-(\d+)`)

// Trendyol selects its region through cookies alone, so it has no location widget.
func Trendyol() *Profile {
	return &Profile{
		Name:  "trendyol",
		Hosts: []string{"trendyol"},
		SinglePaths: []*regexp.Regexp{
			regexp.MustCompile(`-p-\d+`),
		},
		ListingPaths: []*regexp.Regexp{
			regexp.MustCompile(`^/(?:[a-z]{2}/)?sr/?$`),
			regexp.MustCompile(`-x-[bcg]\d+`),
			regexp.MustCompile(`/butik/liste/`),
		},
		Single: extraction.SingleSpec{
			Identity: extraction.Chain{Field: extraction.FieldIdentity, Strategies: []extraction.Strategy{
				extraction.URLPattern{Pattern: trendyolID},
				extraction.Selector{Selectors: []string{"[data-product-id]"}, Attr: "data-product-id"},
			}},
			Title: extraction.Chain{Field: extraction.FieldTitle, Clean: extraction.TitleClean, Strategies: []extraction.Strategy{
				extraction.Selector{Selectors: []string{"h1.pr-new-br", ".product-title h1", "h1"}},
				extraction.Selector{Selectors: []string{"meta[property='og:title']"}, Attr: "content"},
			}},
			Image: extraction.Chain{Field: extraction.FieldImage, Clean: extraction.ImageClean, Strategies: []extraction.Strategy{
				extraction.Selector{Selectors: []string{".base-product-image img", ".gallery-modal-content img", ".product-slide img"}, Attr: "src"},
				extraction.Selector{Selectors: []string{".sp-img", ".product-detail-image img", ".product-image-container img"}, Attr: "src"},
				extraction.Selector{Selectors: []string{"meta[property='og:image']"}, Attr: "content"},
				// any absolute image on the page; Clean drops inline placeholders
				extraction.Selector{Selectors: []string{"img"}, Attr: "src", All: true},
			}},
			Category: extraction.Chain{Field: extraction.FieldCategory, Strategies: []extraction.Strategy{
				extraction.Selector{Selectors: []string{".product-detail-breadcrumb-item", ".breadcrumb-wrapper a"}, Last: true},
			}},
			PriceCurrent: extraction.Chain{Field: extraction.FieldPriceCurrent, Strategies: []extraction.Strategy{
				extraction.Selector{Selectors: []string{".prc-dsc", ".product-price-container .discounted", ".price-container .discounted", ".prc-slg"}},
				extraction.Selector{Selectors: []string{".product-price", ".sale-price", ".discounted-price", ".price-container", ".product-detail-price"}, Priced: true},
				extraction.TextHeuristic{},
				extraction.RegexScan{},
			}},
			PriceOriginal: extraction.Chain{Field: extraction.FieldPriceOriginal, Strategies: []extraction.Strategy{
				extraction.Selector{Selectors: []string{".prc-org", ".product-price-container .original", ".price-container .original"}},
			}},
		},
		Listing: extraction.ListingSpec{
			Containers:     []string{".product-card", ".p-card-wrppr", "[data-testid='product-card']"},
			OrderAttr:      "data-product-index",
			MinIdentityLen: 3,
			MinTitleLen:    3,
			Category: extraction.Chain{Field: extraction.FieldCategory, Strategies: []extraction.Strategy{
				extraction.Selector{Selectors: []string{".srch-rslt-title .dscrptn h1", ".search-description h1"}},
				extraction.Const{Value: "Search Results", Path: regexp.MustCompile(`/sr/?$`)},
				extraction.Const{Value: "Products"},
			}},
			Identity: extraction.Chain{Field: extraction.FieldIdentity, Strategies: []extraction.Strategy{
				extraction.SelfAttr{Attr: "data-id"},
				extraction.Selector{Selectors: []string{"[data-id]"}, Attr: "data-id"},
				extraction.Selector{Selectors: []string{`a[href*="-p-"]`}, Attr: "href"},
			}, Clean: trendyolIdentity},
			Title: extraction.Chain{Field: extraction.FieldTitle, Clean: extraction.TitleClean, Strategies: []extraction.Strategy{
				extraction.Selector{Selectors: []string{".product-name", ".prdct-desc-cntnr-name", ".prdct-desc-cntnr", "h3"}},
				extraction.Selector{Selectors: []string{"img"}, Attr: "alt"},
			}},
			Image: extraction.Chain{Field: extraction.FieldImage, Clean: extraction.ImageClean, Strategies: []extraction.Strategy{
				extraction.Selector{Selectors: []string{".image-slider img", "img.p-card-img", "img"}, Attr: "src"},
				extraction.Selector{Selectors: []string{"img"}, Attr: "data-src"},
			}},
			Gallery: extraction.Chain{Field: extraction.FieldImages, Clean: extraction.ImageClean, Strategies: []extraction.Strategy{
				extraction.Selector{Selectors: []string{".image-slider img"}, Attr: "src", All: true},
				extraction.Selector{Selectors: []string{".image-slider img"}, Attr: "data-src", All: true},
			}},
			Link: extraction.Chain{Field: extraction.FieldLink, Clean: extraction.ImageClean, Strategies: []extraction.Strategy{
				extraction.Selector{Selectors: []string{`a[href*="-p-"]`}, Attr: "href"},
			}},
			PriceCurrent: extraction.Chain{Field: extraction.FieldPriceCurrent, Strategies: []extraction.Strategy{
				extraction.Selector{Selectors: []string{".sale-price-container", ".prc-box-dscntd", ".price-item.discounted", ".single-price"}},
				extraction.RegexScan{},
			}},
			PriceOriginal: extraction.Chain{Field: extraction.FieldPriceOriginal, Strategies: []extraction.Strategy{
				extraction.Selector{Selectors: []string{".prc-box-orgnl", ".strikethrough-price"}},
			}},
		},
		Cookies:       session.TrendyolCookies,
		DefaultDevice: session.Mobile,
		SingleReady:   []string{"h1.pr-new-br", ".product-container", "h1"},
		ListingReady:  []string{".product-card", ".p-card-wrppr"},
	}
}

var numericID = regexp.MustCompile(`^\d+$`)

func trendyolIdentity(_ *extraction.Source, v string) string {
	if m := trendyolID.FindStringSubmatch(v); len(m) == 2 {
		return m[1]
	}
	if numericID.MatchString(v) {
		return v
	}
	return ""
}
