package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/maltedev/regional-product-extractor/internal/models"
)

const maxRedirects = 10

// Resolution is the canonical form of a caller-supplied URL.
type Resolution struct {
	Original string
	URL      *url.URL
	Expanded bool
	// Degraded is set when a short link could not be expanded and the
	// original URL is used instead.
	Degraded error
}

func (r Resolution) String() string {
	if r.URL == nil {
		return r.Original
	}
	return r.URL.String()
}

type Options struct {
	Timeout          time.Duration
	UserAgent        string
	ShortLinkDomains []string
	CacheSize        int
	// Transport replaces the HTTP transport used for expansion.
	Transport http.RoundTripper
}

type Resolver struct {
	opts       Options
	shortLinks map[string]bool
	cache      *lru.Cache[string, string]
	logger     *slog.Logger
}

func New(opts Options, logger *slog.Logger) (*Resolver, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Resolver{
		opts:       opts,
		shortLinks: make(map[string]bool, len(opts.ShortLinkDomains)),
		logger:     logger.With("component", "resolver"),
	}
	for _, d := range opts.ShortLinkDomains {
		r.shortLinks[strings.ToLower(strings.TrimSpace(d))] = true
	}

	if opts.CacheSize > 0 {
		cache, err := lru.New[string, string](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create expansion cache: %w", err)
		}
		r.cache = cache
	}

	return r, nil
}

// Resolve parses raw, expands short links and strips tracking parameters.
// Only an unusable URL is an error; expansion failures are reported through
// Resolution.Degraded.
func (r *Resolver) Resolve(ctx context.Context, raw string) (Resolution, error) {
	res := Resolution{Original: raw}

	u, err := Parse(raw)
	if err != nil {
		return res, models.NewError(models.ErrInvalidURL, "cannot use URL", err)
	}

	if r.IsShortLink(u.Hostname()) {
		expanded, err := r.expand(ctx, u.String())
		if err != nil {
			r.logger.Warn("short link expansion failed, using original", "url", u.String(), "error", err)
			res.Degraded = models.NewError(models.ErrResolutionDegraded, "short link expansion failed", err)
		} else if eu, perr := Parse(expanded); perr == nil {
			u = eu
			res.Expanded = true
		} else {
			res.Degraded = models.NewError(models.ErrResolutionDegraded, "short link expanded to unusable URL", perr)
		}
	}

	res.URL = StripTracking(u)
	return res, nil
}

func (r *Resolver) IsShortLink(host string) bool {
	host = strings.ToLower(host)
	return r.shortLinks[host] || r.shortLinks[strings.TrimPrefix(host, "www.")]
}

func (r *Resolver) expand(ctx context.Context, short string) (string, error) {
	if r.cache != nil {
		if v, ok := r.cache.Get(short); ok {
			return v, nil
		}
	}

	type result struct {
		url string
		err error
	}
	done := make(chan result, 1)

	go func() {
		final, err := r.follow(short)
		done <- result{final, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		if res.err != nil {
			return "", res.err
		}
		if r.cache != nil {
			r.cache.Add(short, res.url)
		}
		return res.url, nil
	}
}

// follow issues a plain GET and follows redirects without running scripts.
func (r *Resolver) follow(short string) (string, error) {
	c := colly.NewCollector()
	if r.opts.UserAgent != "" {
		c.UserAgent = r.opts.UserAgent
	}
	c.MaxBodySize = 64 * 1024
	c.ParseHTTPErrorResponse = true
	c.SetRequestTimeout(r.opts.Timeout)
	if r.opts.Transport != nil {
		c.WithTransport(r.opts.Transport)
	}

	final := ""
	c.SetRedirectHandler(func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return http.ErrUseLastResponse
		}
		final = req.URL.String()
		return nil
	})

	var visitErr error
	c.OnResponse(func(resp *colly.Response) {
		if resp.StatusCode >= http.StatusBadRequest && final == "" {
			visitErr = fmt.Errorf("short link answered %d", resp.StatusCode)
		}
	})
	c.OnError(func(resp *colly.Response, err error) {
		visitErr = err
	})

	if err := c.Visit(short); err != nil && visitErr == nil {
		visitErr = err
	}
	if visitErr != nil {
		return "", visitErr
	}
	if final == "" {
		return "", errors.New("short link did not redirect")
	}
	return final, nil
}

var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+|(?:www\.)?[a-z0-9.-]+\.[a-z]{2,}/[^\s<>"']*`)

// ExtractURL finds the first URL in free text, such as a shared message.
func ExtractURL(text string) (string, bool) {
	m := urlPattern.FindString(text)
	if m == "" {
		return "", false
	}
	return strings.TrimRight(m, ".,);!?"), true
}

// Parse accepts absolute http(s) URLs and bare hosts with a path.
func Parse(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty URL")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" || !strings.Contains(u.Hostname(), ".") {
		return nil, fmt.Errorf("missing host in %q", raw)
	}
	return u, nil
}
