package extraction

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const maxTitleRunes = 200

var (
	sponsoredPrefix = regexp.MustCompile(`(?i)^sponsored(?:\s+ad\b\s*[-–:]?|\s*[-–:])\s*`)
	spaceRun        = regexp.MustCompile(`\s+`)
)

// CollapseSpace trims s and folds every whitespace run into one space.
func CollapseSpace(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// Text returns the text of sel with a space between adjacent text nodes, so
// "<h2>Mug</h2><span>EGP 240</span>" reads "Mug EGP 240" rather than "MugEGP 240".
func Text(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return CollapseSpace(b.String())
}

// CleanTitle strips ad markers and truncates overly long titles.
func CleanTitle(s string) string {
	s = CollapseSpace(s)
	s = sponsoredPrefix.ReplaceAllString(s, "")
	if utf8.RuneCountInString(s) > maxTitleRunes {
		s = strings.TrimSpace(string([]rune(s)[:maxTitleRunes]))
	}
	return s
}

// ResolveURL makes an image or link reference absolute against base. Inline data
// placeholders and empty values yield "".
func ResolveURL(raw string, base *url.URL) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "data:") {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	return ref.String()
}

// TitleClean is a Chain.Clean for title fields.
func TitleClean(_ *Source, v string) string {
	return CleanTitle(v)
}

// ImageClean is a Chain.Clean for image fields.
func ImageClean(src *Source, v string) string {
	return ResolveURL(v, src.URL)
}

// Capture returns a Chain.Clean that keeps the first capture group of pattern,
// dropping values that do not match.
func Capture(pattern *regexp.Regexp) func(*Source, string) string {
	return func(_ *Source, v string) string {
		m := pattern.FindStringSubmatch(v)
		if len(m) < 2 {
			return ""
		}
		return m[1]
	}
}
