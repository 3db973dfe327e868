package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/regional-product-extractor/internal/session"
)

type Options struct {
	Headless      bool
	ActionTimeout time.Duration
	ProxyServer   string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:      true,
		ActionTimeout: 10 * time.Second,
	}
}

// Runtime owns the playwright driver. Every session launches its own browser,
// so nothing a storefront can observe is shared between sessions.
type Runtime struct {
	pw     *playwright.Playwright
	opts   *Options
	logger *slog.Logger
}

func NewRuntime(opts *Options, logger *slog.Logger) (*Runtime, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	return &Runtime{
		pw:     pw,
		opts:   opts,
		logger: logger.With("component", "browser"),
	}, nil
}

// Open launches a browser configured by fp. The session is torn down when
// ctx ends, even if the caller is still blocked inside a page call.
func (r *Runtime) Open(ctx context.Context, fp session.Fingerprint) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(r.opts.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
			fmt.Sprintf("--window-size=%d,%d", fp.Width, fp.Height),
		},
	}
	if r.opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{Server: r.opts.ProxyServer}
	}

	b, err := r.pw.Chromium.Launch(launchOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		UserAgent:         playwright.String(fp.UserAgent),
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            playwright.String(fp.Locale),
		Viewport: &playwright.Size{
			Width:  fp.Width,
			Height: fp.Height,
		},
		DeviceScaleFactor: playwright.Float(fp.ScaleFactor),
		IsMobile:          playwright.Bool(fp.IsMobile),
		HasTouch:          playwright.Bool(fp.HasTouch),
		ExtraHttpHeaders:  fp.Headers,
	}
	if fp.Timezone != "" {
		contextOpts.TimezoneId = playwright.String(fp.Timezone)
	}

	bctx, err := b.NewContext(contextOpts)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	s := &pwSession{browser: b, context: bctx, logger: r.logger}

	if len(fp.Cookies) > 0 {
		if err := bctx.AddCookies(toPlaywrightCookies(fp.Cookies)); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to seed cookies: %w", err)
		}
	}

	if fp.InitScript != "" {
		if err := bctx.AddInitScript(playwright.Script{Content: playwright.String(fp.InitScript)}); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to add init script: %w", err)
		}
	}

	page, err := bctx.NewPage()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}
	page.SetDefaultTimeout(float64(r.opts.ActionTimeout.Milliseconds()))
	s.page = &pwPage{page: page}

	s.stop = context.AfterFunc(ctx, func() {
		r.logger.Debug("attempt context ended, closing session")
		s.Close()
	})

	r.logger.Debug("session opened", "device", fp.DeviceName, "locale", fp.Locale, "cookies", len(fp.Cookies))
	return s, nil
}

func (r *Runtime) Close() error {
	if r.pw == nil {
		return nil
	}
	if err := r.pw.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}

func toPlaywrightCookies(cookies []session.Cookie) []playwright.OptionalCookie {
	out := make([]playwright.OptionalCookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, playwright.OptionalCookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: playwright.String(c.Domain),
			Path:   playwright.String(c.Path),
		})
	}
	return out
}

type pwSession struct {
	browser playwright.Browser
	context playwright.BrowserContext
	page    *pwPage
	logger  *slog.Logger
	stop    func() bool
	once    sync.Once
	err     error
}

func (s *pwSession) Page() Page {
	return s.page
}

func (s *pwSession) Close() error {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}

		var errs []error
		if s.context != nil {
			if err := s.context.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close context: %w", err))
			}
		}
		if s.browser != nil {
			if err := s.browser.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
			}
		}
		s.err = errors.Join(errs...)
		if s.err != nil {
			s.logger.Warn("session teardown incomplete", "error", s.err)
		}
	})
	return s.err
}

type pwPage struct {
	page playwright.Page
}

func (p *pwPage) Goto(url string, timeout time.Duration) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	return err
}

func (p *pwPage) URL() string {
	return p.page.URL()
}

func (p *pwPage) Title() (string, error) {
	return p.page.Title()
}

func (p *pwPage) Content() (string, error) {
	return p.page.Content()
}

func (p *pwPage) Count(selector string) (int, error) {
	return p.page.Locator(selector).Count()
}

func (p *pwPage) InnerText(selector string) (string, error) {
	return p.page.Locator(selector).First().InnerText()
}

func (p *pwPage) Click(selector string) error {
	return p.page.Locator(selector).First().Click()
}

func (p *pwPage) Fill(selector, value string) error {
	return p.page.Locator(selector).First().Fill(value)
}

func (p *pwPage) Press(selector, key string) error {
	return p.page.Locator(selector).First().Press(key)
}

func (p *pwPage) SelectOption(selector, value string) error {
	_, err := p.page.Locator(selector).First().SelectOption(playwright.SelectOptionValues{
		Values: playwright.StringSlice(value),
	})
	return err
}

func (p *pwPage) WaitVisible(selector string, timeout time.Duration) error {
	return p.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (p *pwPage) WaitNetworkIdle(timeout time.Duration) error {
	return p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (p *pwPage) Scroll(dy int) error {
	_, err := p.page.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", dy))
	return err
}

func (p *pwPage) Screenshot(path string) error {
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	return err
}

// IsTimeout reports whether err came from a playwright deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, playwright.ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
