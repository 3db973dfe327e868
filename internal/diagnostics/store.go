// Package diagnostics writes page snapshots for offline inspection of
// extraction attempts.
package diagnostics

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

// Source is the page state a snapshot is taken from.
type Source interface {
	URL() string
	Content() (string, error)
	Screenshot(path string) error
}

type Snapshot struct {
	Ref            string    `json:"ref"`
	Prefix         string    `json:"prefix"`
	Attempt        int       `json:"attempt"`
	URL            string    `json:"url"`
	HTMLPath       string    `json:"html_path,omitempty"`
	ScreenshotPath string    `json:"screenshot_path,omitempty"`
	CapturedAt     time.Time `json:"captured_at"`
}

type Store struct {
	dir         string
	screenshots bool
	logger      *slog.Logger
	now         func() time.Time
}

func NewStore(dir string, screenshots bool, logger *slog.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("snapshot directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		dir:         dir,
		screenshots: screenshots,
		logger:      logger.With("component", "diagnostics"),
		now:         time.Now,
	}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Ref names the snapshot of an attempt: "{prefix}_{attempt}".
func Ref(prefix string, attempt int) string {
	prefix = unsafeChars.ReplaceAllString(prefix, "_")
	if prefix == "" {
		prefix = "snapshot"
	}
	return prefix + "_" + strconv.Itoa(attempt)
}

// Capture writes the page HTML, an optional full-page screenshot and a JSON
// descriptor. The returned snapshot is valid for whatever was written even
// when err is non-nil.
func (s *Store) Capture(prefix string, attempt int, src Source) (Snapshot, error) {
	ref := Ref(prefix, attempt)
	snap := Snapshot{
		Ref:        ref,
		Prefix:     prefix,
		Attempt:    attempt,
		URL:        src.URL(),
		CapturedAt: s.now().UTC(),
	}

	var errs []error

	html, err := src.Content()
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to read page content: %w", err))
	} else {
		path := filepath.Join(s.dir, ref+".html")
		if err := writeAtomic(path, []byte(html)); err != nil {
			errs = append(errs, fmt.Errorf("failed to write html snapshot: %w", err))
		} else {
			snap.HTMLPath = path
		}
	}

	if s.screenshots {
		path := filepath.Join(s.dir, ref+".png")
		if err := src.Screenshot(path); err != nil {
			errs = append(errs, fmt.Errorf("failed to take screenshot: %w", err))
		} else {
			snap.ScreenshotPath = path
		}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err == nil {
		err = writeAtomic(filepath.Join(s.dir, ref+".json"), data)
	}
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to write snapshot descriptor: %w", err))
	}

	if len(errs) > 0 {
		return snap, errors.Join(errs...)
	}
	s.logger.Debug("snapshot captured", "ref", ref, "url", snap.URL)
	return snap, nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
