package diagnostics

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor deletes snapshots older than the retention window on a cron schedule.
type Janitor struct {
	dir       string
	retention time.Duration
	schedule  string
	cron      *cron.Cron
	logger    *slog.Logger
	now       func() time.Time
}

func NewJanitor(dir string, retention time.Duration, schedule string, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		dir:       dir,
		retention: retention,
		schedule:  schedule,
		cron:      cron.New(),
		logger:    logger.With("component", "snapshot-janitor"),
		now:       time.Now,
	}
}

// Start schedules pruning until ctx is done.
func (j *Janitor) Start(ctx context.Context) error {
	if j.retention <= 0 {
		j.logger.Info("snapshot retention disabled")
		return nil
	}
	if _, err := j.cron.AddFunc(j.schedule, func() {
		if _, err := j.Prune(); err != nil {
			j.logger.Error("failed to prune snapshots", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", j.schedule, err)
	}

	j.cron.Start()
	j.logger.Info("snapshot janitor started", "schedule", j.schedule, "retention", j.retention)

	go func() {
		<-ctx.Done()
		<-j.cron.Stop().Done()
	}()
	return nil
}

// Prune removes snapshot files last modified before the retention window.
func (j *Janitor) Prune() (int, error) {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to list snapshots: %w", err)
	}

	cutoff := j.now().Add(-j.retention)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".html", ".png", ".json", ".tmp":
		default:
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(j.dir, e.Name())); err != nil {
			j.logger.Warn("failed to remove snapshot", "file", e.Name(), "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		j.logger.Info("pruned snapshots", "removed", removed)
	}
	return removed, nil
}
