package browser

import (
	"context"
	"time"

	"github.com/maltedev/regional-product-extractor/internal/session"
)

// Page is the subset of a live browser tab the extractor drives.
// Selector-based calls act on the first match.
type Page interface {
	Goto(url string, timeout time.Duration) error
	URL() string
	Title() (string, error)
	Content() (string, error)
	Count(selector string) (int, error)
	InnerText(selector string) (string, error)
	Click(selector string) error
	Fill(selector, value string) error
	Press(selector, key string) error
	SelectOption(selector, value string) error
	WaitVisible(selector string, timeout time.Duration) error
	WaitNetworkIdle(timeout time.Duration) error
	Scroll(dy int) error
	Screenshot(path string) error
}

// Session is one browser context with a single page. Close is idempotent.
type Session interface {
	Page() Page
	Close() error
}

// Launcher opens sessions from fingerprints.
type Launcher interface {
	Open(ctx context.Context, fp session.Fingerprint) (Session, error)
}
