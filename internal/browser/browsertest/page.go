// Package browsertest provides in-memory browser sessions backed by static
// HTML, for exercising extraction flows without a real browser.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/regional-product-extractor/internal/browser"
	"github.com/maltedev/regional-product-extractor/internal/session"
)

var ErrNotFound = errors.New("element not found")

var (
	_ browser.Page     = (*Page)(nil)
	_ browser.Session  = (*Session)(nil)
	_ browser.Launcher = (*Launcher)(nil)
)

// Page serves a fixed HTML document. Hooks let tests change the document in
// response to clicks and fills.
type Page struct {
	mu    sync.Mutex
	html  string
	url   string
	calls []string

	OnClick       map[string]func(p *Page)
	OnFill        map[string]func(p *Page, value string)
	OnSelect      map[string]func(p *Page, value string)
	GotoErr       error
	ContentErr    error
	ScreenshotErr error
}

func NewPage(html string) *Page {
	return &Page{
		html:     html,
		OnClick:  map[string]func(*Page){},
		OnFill:   map[string]func(*Page, string){},
		OnSelect: map[string]func(*Page, string){},
	}
}

func (p *Page) SetHTML(html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.html = html
}

// Calls lists the recorded interactions, e.g. "click #id" or "fill #zip 10001".
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.calls))
	copy(out, p.calls)
	return out
}

// Mutations counts interactions that change page state.
func (p *Page) Mutations() int {
	n := 0
	for _, c := range p.Calls() {
		switch strings.SplitN(c, " ", 2)[0] {
		case "click", "fill", "press", "select":
			n++
		}
	}
	return n
}

func (p *Page) record(format string, args ...any) {
	p.mu.Lock()
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
	p.mu.Unlock()
}

func (p *Page) find(selector string) (*goquery.Selection, error) {
	p.mu.Lock()
	html := p.html
	p.mu.Unlock()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return doc.Find(selector), nil
}

func (p *Page) Goto(url string, _ time.Duration) error {
	p.record("goto %s", url)
	if p.GotoErr != nil {
		return p.GotoErr
	}
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
	return nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) Title() (string, error) {
	sel, err := p.find("title")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(sel.First().Text()), nil
}

func (p *Page) Content() (string, error) {
	if p.ContentErr != nil {
		return "", p.ContentErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.html, nil
}

func (p *Page) Count(selector string) (int, error) {
	sel, err := p.find(selector)
	if err != nil {
		return 0, err
	}
	return sel.Length(), nil
}

func (p *Page) InnerText(selector string) (string, error) {
	sel, err := p.find(selector)
	if err != nil {
		return "", err
	}
	if sel.Length() == 0 {
		return "", fmt.Errorf("%s: %w", selector, ErrNotFound)
	}
	return strings.TrimSpace(sel.First().Text()), nil
}

func (p *Page) Click(selector string) error {
	if n, _ := p.Count(selector); n == 0 {
		return fmt.Errorf("%s: %w", selector, ErrNotFound)
	}
	p.record("click %s", selector)
	if hook := p.OnClick[selector]; hook != nil {
		hook(p)
	}
	return nil
}

func (p *Page) Fill(selector, value string) error {
	if n, _ := p.Count(selector); n == 0 {
		return fmt.Errorf("%s: %w", selector, ErrNotFound)
	}
	p.record("fill %s %s", selector, value)
	if hook := p.OnFill[selector]; hook != nil {
		hook(p, value)
	}
	return nil
}

func (p *Page) Press(selector, key string) error {
	p.record("press %s %s", selector, key)
	return nil
}

func (p *Page) SelectOption(selector, value string) error {
	if n, _ := p.Count(selector); n == 0 {
		return fmt.Errorf("%s: %w", selector, ErrNotFound)
	}
	p.record("select %s %s", selector, value)
	if hook := p.OnSelect[selector]; hook != nil {
		hook(p, value)
	}
	return nil
}

func (p *Page) WaitVisible(selector string, _ time.Duration) error {
	if n, _ := p.Count(selector); n == 0 {
		return fmt.Errorf("waiting for %s: %w", selector, context.DeadlineExceeded)
	}
	return nil
}

func (p *Page) WaitNetworkIdle(time.Duration) error {
	return nil
}

func (p *Page) Scroll(dy int) error {
	p.record("scroll %d", dy)
	return nil
}

func (p *Page) Screenshot(path string) error {
	if p.ScreenshotErr != nil {
		return p.ScreenshotErr
	}
	return os.WriteFile(path, []byte("png"), 0o644)
}

// Session wraps a Page and remembers whether it was closed.
type Session struct {
	page   *Page
	mu     sync.Mutex
	closed bool
}

func NewSession(p *Page) *Session {
	return &Session{page: p}
}

func (s *Session) Page() browser.Page {
	return s.page
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Launcher hands out one scripted page per Open call.
type Launcher struct {
	// NewPage builds the page for the given 1-based open count.
	NewPage func(n int, fp session.Fingerprint) (*Page, error)

	mu       sync.Mutex
	opened   []session.Fingerprint
	sessions []*Session
}

func (l *Launcher) Open(ctx context.Context, fp session.Fingerprint) (browser.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.opened = append(l.opened, fp)
	n := len(l.opened)
	l.mu.Unlock()

	page, err := l.NewPage(n, fp)
	if err != nil {
		return nil, err
	}

	s := NewSession(page)
	l.mu.Lock()
	l.sessions = append(l.sessions, s)
	l.mu.Unlock()
	return s, nil
}

func (l *Launcher) Fingerprints() []session.Fingerprint {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]session.Fingerprint, len(l.opened))
	copy(out, l.opened)
	return out
}

func (l *Launcher) Sessions() []*Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Session, len(l.sessions))
	copy(out, l.sessions)
	return out
}
