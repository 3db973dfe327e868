package site

import (
	"regexp"

	"github.com/maltedev/regional-product-extractor/internal/extraction"
	"github.com/maltedev/regional-product-extractor/internal/session"
)

// Generic serves storefronts without a dedicated profile. It leans on
// schema.org and Open Graph markup before falling back to text heuristics.
func Generic() *Profile {
	return &Profile{
		Name: "generic",
		ListingPaths: []*regexp.Regexp{
			regexp.MustCompile(`^/(?:search|s)/?$`),
			regexp.MustCompile(`/(?:category|categories|collections|c)/`),
		},
		Single: extraction.SingleSpec{
			Identity: extraction.Chain{Field: extraction.FieldIdentity, Strategies: []extraction.Strategy{
				extraction.Selector{Selectors: []string{"meta[property='product:retailer_item_id']", "meta[itemprop='sku']", "meta[itemprop='productID']"}, Attr: "content"},
				extraction.Selector{Selectors: []string{"[itemprop='sku']", "[itemprop='productID']"}},
				extraction.Selector{Selectors: []string{"[data-product-id]"}, Attr: "data-product-id"},
				extraction.URLPattern{Pattern: regexp.MustCompile(`/(?:p|dp|product|products|item)/([\w-]{4,})`)},
			}},
			Title: extraction.Chain{Field: extraction.FieldTitle, Clean: extraction.TitleClean, Strategies: []extraction.Strategy{
				extraction.Selector{Selectors: []string{"[itemprop='name']", "h1"}},
				extraction.Selector{Selectors: []string{"meta[property='og:title']"}, Attr: "content"},
				extraction.Selector{Selectors: []string{"title"}},
			}},
			Image: extraction.Chain{Field: extraction.FieldImage, Clean: extraction.ImageClean, Strategies: []extraction.Strategy{
				extraction.Selector{Selectors: []string{"meta[property='og:image']", "meta[itemprop='image']"}, Attr: "content"},
				extraction.Selector{Selectors: []string{"img[itemprop='image']", "main img", "img"}, Attr: "src"},
			}},
			Category: extraction.Chain{Field: extraction.FieldCategory, Strategies: []extraction.Strategy{
				extraction.Selector{Selectors: []string{"[itemtype*='BreadcrumbList'] [itemprop='name']", ".breadcrumb a", "nav[aria-label='breadcrumb'] a"}, Last: true},
				extraction.Selector{Selectors: []string{"meta[property='product:category']"}, Attr: "content"},
			}},
			PriceCurrent: extraction.Chain{Field: extraction.FieldPriceCurrent, Strategies: []extraction.Strategy{
				extraction.Selector{Selectors: []string{"meta[property='product:sale_price:amount']", "meta[property='product:price:amount']", "meta[itemprop='price']"}, Attr: "content"},
				extraction.Selector{Selectors: []string{"[itemprop='price']"}, Attr: "content"},
				extraction.Selector{Selectors: []string{"[itemprop='price']", ".price .sale", ".sale-price", ".price"}},
				extraction.TextHeuristic{},
				extraction.RegexScan{},
			}},
			PriceOriginal: extraction.Chain{Field: extraction.FieldPriceOriginal, Strategies: []extraction.Strategy{
				extraction.Selector{Selectors: []string{"del", "s", ".price .was", ".compare-at-price", ".old-price"}},
			}},
		},
		Listing: extraction.ListingSpec{
			Containers:     []string{"[itemtype*='schema.org/Product']", "[data-product-id]", ".product-card", "li.product"},
			MinIdentityLen: 1,
			MinTitleLen:    3,
			Category: extraction.Chain{Field: extraction.FieldCategory, Strategies: []extraction.Strategy{
				extraction.Selector{Selectors: []string{"h1"}},
				extraction.Const{Value: "Search Results", Path: regexp.MustCompile(`^/(?:search|s)/?$`)},
				extraction.Const{Value: "Products"},
			}},
			Identity: extraction.Chain{Field: extraction.FieldIdentity, Strategies: []extraction.Strategy{
				extraction.SelfAttr{Attr: "data-product-id"},
				extraction.Selector{Selectors: []string{"[itemprop='sku']"}, Attr: "content"},
				extraction.Selector{Selectors: []string{"[itemprop='sku']", "[data-sku]"}},
				extraction.Selector{Selectors: []string{"a[href]"}, Attr: "href"},
			}},
			Title: extraction.Chain{Field: extraction.FieldTitle, Clean: extraction.TitleClean, Strategies: []extraction.Strategy{
				extraction.Selector{Selectors: []string{"[itemprop='name']", "h2", "h3", ".product-title"}},
				extraction.Selector{Selectors: []string{"img"}, Attr: "alt"},
			}},
			Image: extraction.Chain{Field: extraction.FieldImage, Clean: extraction.ImageClean, Strategies: []extraction.Strategy{
				extraction.Selector{Selectors: []string{"img"}, Attr: "src"},
				extraction.Selector{Selectors: []string{"img"}, Attr: "data-src"},
			}},
			Link: extraction.Chain{Field: extraction.FieldLink, Clean: extraction.ImageClean, Strategies: []extraction.Strategy{
				extraction.Selector{Selectors: []string{"a[href]"}, Attr: "href"},
			}},
			PriceCurrent: extraction.Chain{Field: extraction.FieldPriceCurrent, Strategies: []extraction.Strategy{
				extraction.Selector{Selectors: []string{"[itemprop='price']"}, Attr: "content"},
				extraction.Selector{Selectors: []string{"[itemprop='price']", ".price"}},
				extraction.RegexScan{},
			}},
			PriceOriginal: extraction.Chain{Field: extraction.FieldPriceOriginal, Strategies: []extraction.Strategy{
				extraction.Selector{Selectors: []string{"del", "s", ".old-price"}},
			}},
		},
		DefaultDevice: session.Desktop,
		SingleReady:   []string{"h1", "[itemprop='name']"},
		ListingReady:  []string{"[itemtype*='schema.org/Product']", "[data-product-id]", ".product-card"},
	}
}
