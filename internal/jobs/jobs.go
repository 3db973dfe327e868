// Package jobs runs queued extractions on a bounded worker pool and keeps
// their results for polling.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/maltedev/regional-product-extractor/internal/models"
	"github.com/maltedev/regional-product-extractor/internal/queue"
	"github.com/maltedev/regional-product-extractor/internal/ratelimit"
	"github.com/maltedev/regional-product-extractor/internal/scraper"
	"github.com/maltedev/regional-product-extractor/internal/session"
	"github.com/maltedev/regional-product-extractor/internal/sink"
)

var ErrNotFound = errors.New("job not found")

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

type Job struct {
	ID        string                   `json:"id"`
	URL       string                   `json:"url"`
	Status    Status                   `json:"status"`
	Result    *models.ExtractionResult `json:"result,omitempty"`
	Error     *models.ExtractionError  `json:"error,omitempty"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// Request is what a caller submits.
type Request struct {
	URL      string
	Region   *models.RegionConfig
	Device   string
	Category string
	Priority int
}

type Config struct {
	Workers   int
	Retention int
}

type Manager struct {
	extractor scraper.Extractor
	queue     queue.Queue
	limiter   *ratelimit.AdaptiveRateLimiter
	sink      sink.Sink
	workers   int
	logger    *slog.Logger

	mu   sync.Mutex
	jobs *lru.Cache[string, *Job]
}

func NewManager(cfg Config, ext scraper.Extractor, q queue.Queue, limiter *ratelimit.AdaptiveRateLimiter, s sink.Sink, logger *slog.Logger) (*Manager, error) {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Retention < 1 {
		cfg.Retention = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}

	cache, err := lru.New[string, *Job](cfg.Retention)
	if err != nil {
		return nil, fmt.Errorf("failed to create job store: %w", err)
	}

	return &Manager{
		extractor: ext,
		queue:     q,
		limiter:   limiter,
		sink:      s,
		workers:   cfg.Workers,
		logger:    logger.With("component", "jobs"),
		jobs:      cache,
	}, nil
}

// Submit queues an extraction and returns its job in the queued state.
func (m *Manager) Submit(req Request) (Job, error) {
	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.NewString(),
		URL:       req.URL,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	m.jobs.Add(job.ID, job)
	snapshot := *job
	m.mu.Unlock()

	err := m.queue.Push(&queue.Task{
		ID:       job.ID,
		URL:      req.URL,
		Region:   req.Region,
		Device:   req.Device,
		Category: req.Category,
		Priority: req.Priority,
	})
	if err != nil {
		m.mu.Lock()
		m.jobs.Remove(job.ID)
		m.mu.Unlock()
		return Job{}, fmt.Errorf("failed to queue job: %w", err)
	}

	m.logger.Info("job queued", "job_id", job.ID, "url", req.URL)
	return snapshot, nil
}

// Get returns a copy of the job with the given id.
func (m *Manager) Get(id string) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs.Get(id)
	if !ok {
		return Job{}, ErrNotFound
	}
	return *job, nil
}

// Run starts the workers and blocks until ctx is done or the queue closes.
func (m *Manager) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := range m.workers {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			m.work(ctx, id)
		}(i + 1)
	}
	wg.Wait()
}

func (m *Manager) work(ctx context.Context, worker int) {
	logger := m.logger.With("worker", worker)
	for {
		task, err := m.queue.Pop(ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrQueueClosed) && !errors.Is(err, context.Canceled) {
				logger.Error("failed to take job", "error", err)
			}
			return
		}

		if m.limiter != nil {
			if err := m.limiter.Wait(ctx); err != nil {
				m.finish(task.ID, nil, models.NewError(models.ErrCanceled, "job canceled before launch", err))
				return
			}
		}

		m.process(ctx, logger, task)
	}
}

func (m *Manager) process(ctx context.Context, logger *slog.Logger, task *queue.Task) {
	m.update(task.ID, func(j *Job) { j.Status = StatusRunning })
	logger.Info("job started", "job_id", task.ID, "url", task.URL)

	opts := []scraper.Option{scraper.WithSnapshotPrefix(task.ID)}
	if task.Device != "" {
		opts = append(opts, scraper.WithDevice(session.Device(task.Device)))
	}
	if task.Category != "" {
		opts = append(opts, scraper.WithCategory(task.Category))
	}

	result, err := m.extractor.Extract(ctx, task.URL, task.Region, opts...)
	if err != nil {
		var ee *models.ExtractionError
		if !errors.As(err, &ee) {
			ee = models.NewError(models.ErrInternal, "extraction failed", err)
		}
		m.observe(ee.Kind)
		m.finish(task.ID, nil, ee)
		logger.Warn("job failed", "job_id", task.ID, "kind", ee.Kind, "error", err)
		return
	}

	m.observe("")
	if m.sink != nil {
		if err := m.sink.Deliver(ctx, sink.Delivery{RequestID: task.ID, Result: result}); err != nil {
			logger.Error("failed to deliver job result", "job_id", task.ID, "error", err)
		}
	}
	m.finish(task.ID, result, nil)
	logger.Info("job finished", "job_id", task.ID, "records", len(result.Records))
}

// observe feeds launch outcomes back into the limiter. Only storefront
// pushback widens the launch spacing.
func (m *Manager) observe(kind models.ErrorKind) {
	if m.limiter == nil {
		return
	}
	switch kind {
	case "":
		m.limiter.RecordSuccess()
	case models.ErrRetriesExhausted, models.ErrBlockedByAntiAutomation:
		m.limiter.RecordError()
	}
}

func (m *Manager) finish(id string, result *models.ExtractionResult, ee *models.ExtractionError) {
	m.update(id, func(j *Job) {
		j.Result = result
		j.Error = ee
		j.Status = StatusSucceeded
		if ee != nil {
			j.Status = StatusFailed
			j.Result = ee.Partial
		}
	})
}

func (m *Manager) update(id string, fn func(*Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs.Peek(id)
	if !ok {
		return
	}
	updated := *job
	fn(&updated)
	updated.UpdatedAt = time.Now().UTC()
	m.jobs.Add(id, &updated)
}
