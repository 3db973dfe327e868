package site

import (
	"regexp"

	"github.com/maltedev/regional-product-extractor/internal/extraction"
	"github.com/maltedev/regional-product-extractor/internal/negotiator"
	"github.com/maltedev/regional-product-extractor/internal/session"
)

var asinPattern = regexp.MustCompile(`/(?:dp|gp/product|gp/aw/d)/([A-Z0-9]{10})`)

func Amazon() *Profile {
	return &Profile{
		Name:  "amazon",
		Hosts: []string{"amazon"},
		SinglePaths: []*regexp.Regexp{
			regexp.MustCompile(`/dp/[A-Z0-9]{10}`),
			regexp.MustCompile(`/gp/(?:product|aw/d)/[A-Z0-9]{10}`),
		},
		ListingPaths: []*regexp.Regexp{
			regexp.MustCompile(`^/s/?$`),
			regexp.MustCompile(`^/gp/(?:bestsellers|new-releases|movers-and-shakers|goldbox)`),
			regexp.MustCompile(`^/b/?$`),
			regexp.MustCompile(`/zgbs/`),
			regexp.MustCompile(`/deals`),
		},
		Single:  amazonSingle(),
		Listing: amazonListing(),
		Location: &negotiator.LocationUI{
			Indicator:     []string{"#glow-ingress-line2", "#glow-ingress-single-line", "#nav-global-location-slot"},
			Opener:        []string{"#nav-global-location-popover-link", "#glow-ingress-block"},
			PostalInput:   []string{"#GLUXZipUpdateInput", "#GLUXPostalCodeWithCity_PostalCodeInput"},
			Apply:         []string{"#GLUXZipUpdate input", "#GLUXZipUpdate"},
			CountrySelect: []string{"#GLUXCountryList"},
			Confirm:       []string{"#GLUXConfirmClose", ".a-popover-footer #GLUXConfirmClose", "[name='glowDoneButton']"},
			Close:         []string{".a-popover-footer .a-button-primary", "button[data-action='a-popover-close']"},
		},
		Cookies:       session.AmazonCookies,
		DefaultDevice: session.Desktop,
		SingleReady:   []string{"#productTitle", "#dp-container", "#ppd"},
		ListingReady:  []string{`[data-component-type="s-search-result"]`, "#gridItemRoot", "[data-asin]"},
	}
}

func amazonSingle() extraction.SingleSpec {
	return extraction.SingleSpec{
		Identity: extraction.Chain{Field: extraction.FieldIdentity, Strategies: []extraction.Strategy{
			extraction.URLPattern{Pattern: asinPattern},
			extraction.Selector{Selectors: []string{"#ASIN", "input[name='ASIN']"}, Attr: "value"},
			extraction.Selector{Selectors: []string{"#averageCustomerReviews[data-asin]", "[data-csa-c-asin]"}, Attr: "data-asin"},
		}},
		Title: extraction.Chain{Field: extraction.FieldTitle, Clean: extraction.TitleClean, Strategies: []extraction.Strategy{
			extraction.Selector{Selectors: []string{"#productTitle", "#title", "h1"}},
			extraction.Selector{Selectors: []string{"meta[property='og:title']", "meta[name='title']"}, Attr: "content"},
		}},
		Image: extraction.Chain{Field: extraction.FieldImage, Clean: extraction.ImageClean, Strategies: []extraction.Strategy{
			extraction.Selector{Selectors: []string{"#landingImage", "#imgBlkFront"}, Attr: "data-old-hires"},
			extraction.Selector{Selectors: []string{"#landingImage", "#main-image", "#imgBlkFront", "#imgTagWrapperId img"}, Attr: "src"},
			extraction.Selector{Selectors: []string{"meta[property='og:image']"}, Attr: "content"},
		}},
		Category: extraction.Chain{Field: extraction.FieldCategory, Strategies: []extraction.Strategy{
			extraction.Selector{Selectors: []string{"#wayfinding-breadcrumbs_feature_div ul li a", "#nav-subnav .nav-a-content"}, Last: true},
			extraction.Selector{Selectors: []string{"#nav-subnav"}, Attr: "data-category"},
		}},
		PriceCurrent: extraction.Chain{Field: extraction.FieldPriceCurrent, Strategies: []extraction.Strategy{
			extraction.Selector{Selectors: []string{
				"#corePriceDisplay_desktop_feature_div .a-price:not(.a-text-price) .a-offscreen",
				"#corePrice_feature_div .a-price:not(.a-text-price) .a-offscreen",
				".a-price:not(.a-text-price) .a-offscreen",
				"#priceblock_ourprice",
				"#priceblock_dealprice",
				".a-price-whole",
			}},
			extraction.TextHeuristic{},
			extraction.RegexScan{},
		}},
		PriceOriginal: extraction.Chain{Field: extraction.FieldPriceOriginal, Strategies: []extraction.Strategy{
			extraction.Selector{Selectors: []string{
				".basisPrice .a-offscreen",
				".a-text-price .a-offscreen",
				"#listPrice",
				".a-text-strike",
			}},
		}},
	}
}

func amazonListing() extraction.ListingSpec {
	return extraction.ListingSpec{
		Containers: []string{
			`div[data-component-type="s-search-result"]`,
			"#gridItemRoot",
			"ol.a-carousel li",
			"li[data-asin]",
			"div[data-asin]",
		},
		MinIdentityLen: 5,
		MinTitleLen:    10,
		Category: extraction.Chain{Field: extraction.FieldCategory, Strategies: []extraction.Strategy{
			extraction.HeadingPrefix{Selector: "h1, h2", Prefix: "Best Sellers in"},
			extraction.QueryParam{Param: "i"},
			extraction.Const{Value: "Search Results", Path: regexp.MustCompile(`^/s/?$`)},
			extraction.Const{Value: "Products"},
		}},
		Identity: extraction.Chain{Field: extraction.FieldIdentity, Strategies: []extraction.Strategy{
			extraction.SelfAttr{Attr: "data-asin"},
			extraction.Selector{Selectors: []string{"[data-asin]"}, Attr: "data-asin"},
			extraction.Selector{Selectors: []string{`a[href*="/dp/"]`}, Attr: "href"},
		}, Clean: identityClean},
		Title: extraction.Chain{Field: extraction.FieldTitle, Clean: extraction.TitleClean, Strategies: []extraction.Strategy{
			extraction.Selector{Selectors: []string{"h2", "[class*='p13n-sc-css-line-clamp']", "._cDEzb_p13n-sc-css-line-clamp-3_g3dy1"}},
			extraction.Selector{Selectors: []string{"img"}, Attr: "alt"},
			extraction.Selector{Selectors: []string{`a[href*="/dp/"]`}},
		}},
		Image: extraction.Chain{Field: extraction.FieldImage, Clean: extraction.ImageClean, Strategies: []extraction.Strategy{
			extraction.Selector{Selectors: []string{"img[data-image-latency]", "img.s-image", "img"}, Attr: "src"},
			extraction.Selector{Selectors: []string{"img"}, Attr: "data-src"},
		}},
		Link: extraction.Chain{Field: extraction.FieldLink, Clean: linkClean, Strategies: []extraction.Strategy{
			extraction.Selector{Selectors: []string{`a[href*="/dp/"]`}, Attr: "href"},
		}},
		PriceCurrent: extraction.Chain{Field: extraction.FieldPriceCurrent, Strategies: []extraction.Strategy{
			extraction.Selector{Selectors: []string{".a-price:not(.a-text-price) .a-offscreen", "._cDEzb_p13n-sc-price_3mJ9Z", ".p13n-sc-price"}},
			extraction.RegexScan{},
		}},
		PriceOriginal: extraction.Chain{Field: extraction.FieldPriceOriginal, Strategies: []extraction.Strategy{
			extraction.Selector{Selectors: []string{".a-price.a-text-price .a-offscreen"}},
		}},
	}
}

var identityPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// identityClean accepts bare item ids and pulls the ASIN out of product links.
func identityClean(_ *extraction.Source, v string) string {
	if m := asinPattern.FindStringSubmatch(v); len(m) == 2 {
		return m[1]
	}
	if identityPattern.MatchString(v) {
		return v
	}
	return ""
}

// linkClean resolves product links and drops their tracking path suffix.
func linkClean(src *extraction.Source, v string) string {
	abs := extraction.ResolveURL(v, src.URL)
	if m := asinPattern.FindStringSubmatch(abs); len(m) == 2 && src.URL != nil {
		return src.URL.Scheme + "://" + src.URL.Host + "/dp/" + m[1]
	}
	return abs
}
