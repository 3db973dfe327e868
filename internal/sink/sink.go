// Package sink delivers finished extraction results to downstream consumers.
package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maltedev/regional-product-extractor/internal/metrics"
	"github.com/maltedev/regional-product-extractor/internal/models"
)

// Delivery is one finished extraction addressed by the request that produced it.
type Delivery struct {
	RequestID string
	Result    *models.ExtractionResult
}

type Sink interface {
	Name() string
	Deliver(ctx context.Context, d Delivery) error
}

// Multi fans a delivery out to every sink. A failing sink does not stop the
// others; all failures are joined.
type Multi struct {
	sinks   []Sink
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewMulti(m *metrics.Metrics, logger *slog.Logger, sinks ...Sink) *Multi {
	if logger == nil {
		logger = slog.Default()
	}
	return &Multi{sinks: sinks, metrics: m, logger: logger.With("component", "sink")}
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Deliver(ctx context.Context, d Delivery) error {
	if d.Result == nil {
		return errors.New("nothing to deliver")
	}

	var errs []error
	for _, s := range m.sinks {
		if err := s.Deliver(ctx, d); err != nil {
			m.metrics.IncSinkError(s.Name())
			m.logger.Error("sink delivery failed", "sink", s.Name(), "request_id", d.RequestID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Log writes every record to the structured log.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger.With("component", "sink", "sink", "log")}
}

func (l *Log) Name() string { return "log" }

func (l *Log) Deliver(_ context.Context, d Delivery) error {
	for _, r := range d.Result.Records {
		orig, _ := r.PriceOriginal.Get()
		l.logger.Info("product record",
			"request_id", d.RequestID,
			"identity", r.Identity,
			"title", r.Title,
			"price_current", r.PriceCurrent,
			"price_original", orig,
			"currency", r.Currency,
			"region", r.Region.Code,
			"region_confirmed", r.Region.Confirmed,
			"source_url", r.SourceURL,
		)
	}
	for _, dg := range d.Result.Degradations {
		l.logger.Warn("degraded extraction",
			"request_id", d.RequestID,
			"kind", dg.Kind,
			"field", dg.Field,
			"reason", dg.Reason,
		)
	}
	return nil
}
