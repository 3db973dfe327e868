package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/maltedev/regional-product-extractor/internal/browser"
	"github.com/maltedev/regional-product-extractor/internal/extraction"
	"github.com/maltedev/regional-product-extractor/internal/metrics"
	"github.com/maltedev/regional-product-extractor/internal/models"
	"github.com/maltedev/regional-product-extractor/internal/negotiator"
	"github.com/maltedev/regional-product-extractor/internal/region"
	"github.com/maltedev/regional-product-extractor/internal/resolver"
	"github.com/maltedev/regional-product-extractor/internal/retry"
	"github.com/maltedev/regional-product-extractor/internal/session"
	"github.com/maltedev/regional-product-extractor/internal/site"
)

// Extractor is the entry point callers use to turn a URL into records.
type Extractor interface {
	Extract(ctx context.Context, rawURL string, hint *models.RegionConfig, opts ...Option) (*models.ExtractionResult, error)
}

// URLResolver turns caller input into a canonical URL.
type URLResolver interface {
	Resolve(ctx context.Context, raw string) (resolver.Resolution, error)
}

// Config holds the timeouts and limits of a Service.
type Config struct {
	NavigationTimeout      time.Duration
	ReadyTimeout           time.Duration
	NegotiationStepTimeout time.Duration
	ListingCap             int
	HeuristicMaxLength     int
	DefaultDevice          session.Device
}

// DefaultConfig returns the limits used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		NavigationTimeout:      60 * time.Second,
		ReadyTimeout:           15 * time.Second,
		NegotiationStepTimeout: 5 * time.Second,
		ListingCap:             4,
		HeuristicMaxLength:     20,
	}
}

// Deps are the collaborators a Service drives.
type Deps struct {
	Resolver URLResolver
	Regions  *region.Table
	Sites    *site.Registry
	Launcher browser.Launcher
	Retry    *retry.Orchestrator
	Metrics  *metrics.Metrics
}

// Service extracts regional product data with real browser sessions.
type Service struct {
	cfg         Config
	resolver    URLResolver
	regions     *region.Table
	sites       *site.Registry
	launcher    browser.Launcher
	provisioner *session.Provisioner
	negotiator  *negotiator.Negotiator
	engine      *extraction.Engine
	retry       *retry.Orchestrator
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

var _ Extractor = (*Service)(nil)

// NewService wires a Service. Resolver, Regions, Launcher and Retry are
// required; Sites defaults to the built-in storefronts.
func NewService(cfg Config, deps Deps, logger *slog.Logger) (*Service, error) {
	if deps.Resolver == nil || deps.Regions == nil || deps.Launcher == nil || deps.Retry == nil {
		return nil, errors.New("resolver, regions, launcher and retry orchestrator are required")
	}
	if deps.Sites == nil {
		deps.Sites = site.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ListingCap <= 0 {
		cfg.ListingCap = 4
	}

	return &Service{
		cfg:         cfg,
		resolver:    deps.Resolver,
		regions:     deps.Regions,
		sites:       deps.Sites,
		launcher:    deps.Launcher,
		provisioner: session.NewProvisioner(),
		negotiator:  negotiator.New(cfg.NegotiationStepTimeout, logger),
		engine:      extraction.New(logger, extraction.WithObserver(deps.Metrics.ObserveStrategy)),
		retry:       deps.Retry,
		metrics:     deps.Metrics,
		logger:      logger.With("component", "scraper"),
	}, nil
}

// plan is everything fixed for the lifetime of one request.
type plan struct {
	url      *url.URL
	target   models.RegionConfig
	profile  *site.Profile
	pageType models.PageType
	device   session.Device
	opts     options
}

// Extract resolves rawURL, settles its region and extracts the product or
// listing it shows. hint overrides the region derived from the domain.
func (s *Service) Extract(ctx context.Context, rawURL string, hint *models.RegionConfig, opts ...Option) (*models.ExtractionResult, error) {
	start := time.Now()

	o := options{listingCap: s.cfg.ListingCap}
	for _, opt := range opts {
		opt(&o)
	}
	if o.prefix == "" {
		o.prefix = uuid.NewString()
	}

	res, err := s.resolver.Resolve(ctx, rawURL)
	if err != nil {
		s.metrics.IncResolution("invalid")
		return nil, err
	}
	switch {
	case res.Degraded != nil:
		s.metrics.IncResolution("degraded")
	case res.Expanded:
		s.metrics.IncResolution("expanded")
	default:
		s.metrics.IncResolution("direct")
	}

	p, err := s.plan(res.URL, hint, o)
	if err != nil {
		return nil, err
	}

	s.logger.Info("extracting",
		"url", res.String(),
		"region", p.target.Code,
		"site", p.profile.Name,
		"page_type", p.pageType,
		"device", p.device,
		"prefix", o.prefix,
	)

	result, err := s.retry.Run(ctx, o.prefix, func(actx context.Context, a *retry.Attempt) (*models.ExtractionResult, error) {
		return s.attempt(actx, a, p)
	})

	decorate := func(r *models.ExtractionResult) {
		if r == nil {
			return
		}
		r.SourceURL = rawURL
		r.ResolvedURL = res.String()
		if res.Degraded != nil {
			r.Degrade(models.ErrResolutionDegraded, "", res.Degraded.Error())
		}
	}

	if err != nil {
		var ee *models.ExtractionError
		if errors.As(err, &ee) {
			decorate(ee.Partial)
		}
		s.metrics.ObserveExtraction(string(p.pageType), "failed", time.Since(start))
		s.logger.Error("extraction failed", "url", res.String(), "error", err)
		return nil, err
	}

	decorate(result)
	s.metrics.ObserveExtraction(string(p.pageType), "success", time.Since(start))
	s.logger.Info("extraction complete",
		"url", res.String(),
		"records", len(result.Records),
		"attempts", result.Attempts,
		"degradations", len(result.Degradations),
		"duration", time.Since(start),
	)
	return result, nil
}

func (s *Service) plan(u *url.URL, hint *models.RegionConfig, o options) (plan, error) {
	p := plan{url: u, opts: o}

	if hint != nil {
		if err := region.Validate(*hint); err != nil {
			return p, models.NewError(models.ErrInvalidRegion, "invalid region hint", err)
		}
		p.target = *hint
	} else {
		p.target, _ = s.regions.Lookup(u.Hostname())
	}

	p.profile = s.sites.For(u.Hostname())
	p.pageType = p.profile.Classify(u)

	p.device = o.device
	if p.device == "" {
		p.device = s.cfg.DefaultDevice
	}
	if p.device == "" {
		p.device = p.profile.DefaultDevice
	}
	return p, nil
}

// attempt runs one isolated extraction: fresh fingerprint, fresh session,
// fresh navigation. The session is closed and a snapshot taken on every path.
func (s *Service) attempt(ctx context.Context, a *retry.Attempt, p plan) (*models.ExtractionResult, error) {
	fp := s.provisioner.Provision(p.target, p.url.Hostname(), p.device, p.profile.Cookies)

	sess, err := s.launcher.Open(ctx, fp)
	if err != nil {
		return nil, fmt.Errorf("failed to open browser session: %w", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			s.logger.Warn("failed to close browser session", "error", err)
		}
	}()

	page := sess.Page()
	defer a.Capture(page)

	if err := page.Goto(p.url.String(), s.cfg.NavigationTimeout); err != nil {
		if browser.IsTimeout(err) {
			return nil, models.NewError(models.ErrNavigationTimeout, "page did not load in time", err)
		}
		return nil, fmt.Errorf("failed to navigate: %w", err)
	}

	doc, err := s.parse(page)
	if err != nil {
		return nil, err
	}
	title, _ := page.Title()
	if verdict := browser.DetectBlock(doc, title); verdict.Blocked {
		return nil, models.NewError(models.ErrBlockedByAntiAutomation, strings.Join(verdict.Reasons, "; "), nil)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	outcome := s.negotiator.Negotiate(ctx, page, p.profile.Location, p.target)
	s.metrics.IncNegotiation(string(outcome.State))

	s.waitReady(page, p.profile.ReadySelectors(p.pageType))
	if p.pageType == models.PageListing {
		if err := page.Scroll(800); err != nil {
			s.logger.Debug("scroll failed", "error", err)
		}
		if err := page.WaitNetworkIdle(s.cfg.ReadyTimeout); err != nil {
			s.logger.Debug("network did not settle after scroll", "error", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if doc, err = s.parse(page); err != nil {
		return nil, err
	}

	src := &extraction.Source{
		Doc:      doc,
		URL:      s.pageURL(page, p.url),
		Currency: p.target.Currency,
		MaxLen:   s.cfg.HeuristicMaxLength,
	}

	var x extraction.Extraction
	if p.pageType == models.PageListing {
		x = s.engine.Listing(src, p.profile.Listing, p.opts.listingCap)
	} else {
		x = s.engine.Single(src, p.profile.Single)
	}

	tag := outcome.Tag(p.target, s.regions)
	result := &models.ExtractionResult{
		PageType:     x.PageType,
		Degradations: x.Degradations,
		Negotiation:  string(outcome.State),
	}
	for _, it := range x.Items {
		if p.opts.category != "" {
			it.Category = p.opts.category
		}
		result.Records = append(result.Records, it.Record(tag, p.url.String()))
	}
	if outcome.State == negotiator.Failed {
		result.Degrade(models.ErrRegionNegotiationFailed, "region", outcome.Reason())
	}

	return result, nil
}

func (s *Service) parse(page browser.Page) (*goquery.Document, error) {
	html, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to read page content: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page content: %w", err)
	}
	return doc, nil
}

// waitReady waits for any readiness selector and falls back to network idle.
// Neither failing is fatal; extraction then works on whatever has rendered.
func (s *Service) waitReady(page browser.Page, selectors []string) {
	if len(selectors) > 0 {
		err := page.WaitVisible(strings.Join(selectors, ", "), s.cfg.ReadyTimeout)
		if err == nil {
			return
		}
		s.logger.Debug("ready selector not visible", "error", err)
	}
	if err := page.WaitNetworkIdle(s.cfg.ReadyTimeout); err != nil {
		s.logger.Debug("network did not settle", "error", err)
	}
}

// pageURL is where the browser ended up, which may differ from the
// requested URL after storefront redirects.
func (s *Service) pageURL(page browser.Page, fallback *url.URL) *url.URL {
	if raw := page.URL(); raw != "" {
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			return u
		}
	}
	return fallback
}
