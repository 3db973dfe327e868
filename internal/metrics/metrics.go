package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the extractor's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Registry           *prometheus.Registry
	AttemptsTotal      *prometheus.CounterVec
	RetriesTotal       prometheus.Counter
	StrategyHitsTotal  *prometheus.CounterVec
	NegotiationsTotal  *prometheus.CounterVec
	ExtractionDuration *prometheus.HistogramVec
	ResolutionsTotal   *prometheus.CounterVec
	SinkErrorsTotal    *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	attempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractor_attempts_total",
			Help: "Extraction attempts by outcome.",
		},
		[]string{"outcome"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "extractor_retries_total",
			Help: "Attempts started after a failed attempt.",
		},
	)
	hits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractor_strategy_hits_total",
			Help: "Fallback strategy that produced each field.",
		},
		[]string{"field", "strategy"},
	)
	negotiations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractor_region_negotiations_total",
			Help: "Region negotiation results by final state.",
		},
		[]string{"state"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "extractor_extraction_duration_seconds",
			Help:    "End-to-end extraction latency.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"page_type", "result"},
	)
	resolutions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractor_url_resolutions_total",
			Help: "URL resolutions by result.",
		},
		[]string{"result"},
	)
	sinkErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractor_sink_errors_total",
			Help: "Failed record deliveries by sink.",
		},
		[]string{"sink"},
	)

	registry.MustRegister(attempts, retries, hits, negotiations, duration, resolutions, sinkErrors)

	return &Metrics{
		Registry:           registry,
		AttemptsTotal:      attempts,
		RetriesTotal:       retries,
		StrategyHitsTotal:  hits,
		NegotiationsTotal:  negotiations,
		ExtractionDuration: duration,
		ResolutionsTotal:   resolutions,
		SinkErrorsTotal:    sinkErrors,
	}
}

func (m *Metrics) IncAttempt(outcome string) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncRetry() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// ObserveStrategy counts the strategy that served a field; "none" marks an
// exhausted chain.
func (m *Metrics) ObserveStrategy(field, strategy string) {
	if m == nil {
		return
	}
	m.StrategyHitsTotal.WithLabelValues(field, strategy).Inc()
}

func (m *Metrics) IncNegotiation(state string) {
	if m == nil {
		return
	}
	m.NegotiationsTotal.WithLabelValues(state).Inc()
}

func (m *Metrics) ObserveExtraction(pageType, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.ExtractionDuration.WithLabelValues(pageType, result).Observe(d.Seconds())
}

func (m *Metrics) IncResolution(result string) {
	if m == nil {
		return
	}
	m.ResolutionsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncSinkError(sink string) {
	if m == nil {
		return
	}
	m.SinkErrorsTotal.WithLabelValues(sink).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
