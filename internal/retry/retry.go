package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/regional-product-extractor/internal/diagnostics"
	"github.com/maltedev/regional-product-extractor/internal/metrics"
	"github.com/maltedev/regional-product-extractor/internal/models"
)

// Policy bounds how often and how long an extraction is attempted.
// AttemptTimeout caps one attempt; Backoff is the pause between attempts.
type Policy struct {
	MaxAttempts    int
	Backoff        time.Duration
	AttemptTimeout time.Duration
}

// DefaultPolicy allows three attempts of at most two minutes each.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		Backoff:        5 * time.Second,
		AttemptTimeout: 2 * time.Minute,
	}
}

// Snapshotter persists page state for an attempt.
type Snapshotter interface {
	Capture(prefix string, attempt int, src diagnostics.Source) (diagnostics.Snapshot, error)
}

// Attempt is the handle one attempt receives from the orchestrator.
type Attempt struct {
	Number int

	prefix string
	store  Snapshotter
	logger *slog.Logger
	ref    string
}

// Capture snapshots src. Failures are logged and never reach the caller.
func (a *Attempt) Capture(src diagnostics.Source) string {
	if a.store == nil || src == nil {
		return ""
	}
	snap, err := a.store.Capture(a.prefix, a.Number, src)
	if err != nil {
		a.logger.Warn("snapshot capture failed", "attempt", a.Number, "error", err)
	}
	if snap.HTMLPath != "" || snap.ScreenshotPath != "" {
		a.ref = snap.Ref
	}
	return a.ref
}

// Func runs one attempt. It must provision everything it uses afresh.
type Func func(ctx context.Context, a *Attempt) (*models.ExtractionResult, error)

// Orchestrator runs attempts under a Policy and snapshots each of them.
type Orchestrator struct {
	policy    Policy
	snapshots Snapshotter
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates an orchestrator. snapshots and m may be nil.
func New(policy Policy, snapshots Snapshotter, m *metrics.Metrics, logger *slog.Logger) *Orchestrator {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		policy:    policy,
		snapshots: snapshots,
		metrics:   m,
		logger:    logger.With("component", "retry"),
	}
}

// MaxDuration is the longest Run can take: every attempt timing out plus the
// backoff between them.
func (p Policy) MaxDuration() time.Duration {
	n := time.Duration(max(p.MaxAttempts, 1))
	return n*p.AttemptTimeout + (n-1)*p.Backoff
}

// Run calls fn until it yields an acceptable result, at most MaxAttempts
// times. Exhaustion returns a RetriesExhausted error carrying the last result
// as Partial; cancellation of ctx returns a Canceled error at once.
func (o *Orchestrator) Run(ctx context.Context, prefix string, fn Func) (*models.ExtractionResult, error) {
	var (
		history []models.ExtractionAttempt
		last    *models.ExtractionResult
		lastErr error
		lastRef string
	)

	finish := func(res *models.ExtractionResult, n int) *models.ExtractionResult {
		if res == nil {
			return nil
		}
		res.Attempts = n
		res.History = history
		return res
	}

	for n := 1; n <= o.policy.MaxAttempts; n++ {
		if n > 1 {
			o.metrics.IncRetry()
			if err := sleep(ctx, o.policy.Backoff); err != nil {
				return nil, o.canceled(err, n-1, lastRef, finish(last, n-1))
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, o.canceled(err, n-1, lastRef, finish(last, n-1))
		}

		a := &Attempt{Number: n, prefix: prefix, store: o.snapshots, logger: o.logger}
		res, err := o.attempt(ctx, a, fn)

		rec := models.ExtractionAttempt{Number: n, DiagnosticRef: a.ref, Duration: res.duration}
		if a.ref != "" {
			lastRef = a.ref
		}
		if res.result != nil {
			last = res.result
		}

		if ctx.Err() != nil {
			rec.Outcome = models.OutcomeCanceled
			history = append(history, rec)
			o.metrics.IncAttempt(string(rec.Outcome))
			return nil, o.canceled(ctx.Err(), n, lastRef, finish(last, n))
		}

		switch {
		case err == nil && res.result.Acceptable():
			rec.Outcome = models.OutcomeSuccess
		case err == nil:
			rec.Outcome = models.OutcomePartial
			err = errors.New("result lacks a title or current price")
		default:
			rec.Outcome = models.OutcomeFailed
		}
		if err != nil {
			rec.Error = err.Error()
			lastErr = err
		}
		history = append(history, rec)
		o.metrics.IncAttempt(string(rec.Outcome))

		if rec.Outcome == models.OutcomeSuccess {
			if n > 1 {
				o.logger.Info("extraction succeeded after retry", "attempt", n, "prefix", prefix)
			}
			return finish(res.result, n), nil
		}

		o.logger.Warn("extraction attempt failed",
			"attempt", n,
			"max_attempts", o.policy.MaxAttempts,
			"outcome", rec.Outcome,
			"diagnostic_ref", a.ref,
			"error", err,
		)
	}

	return nil, &models.ExtractionError{
		Kind:          models.ErrRetriesExhausted,
		Message:       fmt.Sprintf("no acceptable result after %d attempts", o.policy.MaxAttempts),
		DiagnosticRef: lastRef,
		Attempts:      o.policy.MaxAttempts,
		Partial:       finish(last, o.policy.MaxAttempts),
		Err:           lastErr,
	}
}

type attemptResult struct {
	result   *models.ExtractionResult
	duration time.Duration
}

func (o *Orchestrator) attempt(ctx context.Context, a *Attempt, fn Func) (attemptResult, error) {
	actx := ctx
	if o.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, o.policy.AttemptTimeout)
		defer cancel()
	}

	start := time.Now()
	res, err := fn(actx, a)
	out := attemptResult{result: res, duration: time.Since(start)}

	if err == nil && res == nil {
		err = errors.New("attempt returned no result")
	}
	if err != nil && actx.Err() != nil && ctx.Err() == nil {
		if _, typed := models.KindOf(err); !typed {
			err = models.NewError(models.ErrNavigationTimeout, "attempt deadline exceeded", err)
		}
	}
	return out, err
}

func (o *Orchestrator) canceled(err error, attempts int, ref string, partial *models.ExtractionResult) error {
	return &models.ExtractionError{
		Kind:          models.ErrCanceled,
		Message:       "extraction canceled",
		DiagnosticRef: ref,
		Attempts:      attempts,
		Partial:       partial,
		Err:           err,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
