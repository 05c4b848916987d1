// Package metrics exposes Prometheus instruments for the enrichment
// pipeline. A Metrics value satisfies the observer interfaces of the
// extract, acquire and orchestrate packages.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/resilience"
)

const namespace = "enrich"

var latencyBuckets = []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Metrics holds every instrument.
type Metrics struct {
	ProviderCalls    *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec
	QuotaRejections  *prometheus.CounterVec
	StrategyRuns     *prometheus.CounterVec
	StrategyDuration *prometheus.HistogramVec
	Attempts         *prometheus.CounterVec
	Resolutions      *prometheus.CounterVec
	ResolveDuration  prometheus.Histogram
	Confidence       prometheus.Histogram
}

// Option configures New.
type Option func(*options)

type options struct {
	reg prometheus.Registerer
}

// WithRegisterer registers instruments on reg instead of the default
// registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.reg = reg }
}

// New registers all instruments.
func New(opts ...Option) *Metrics {
	o := options{reg: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}
	f := promauto.With(o.reg)

	return &Metrics{
		ProviderCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Acquisition and search calls by provider and outcome",
		}, []string{"provider", "outcome"}),
		ProviderDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Duration of provider calls",
			Buckets:   latencyBuckets,
		}, []string{"provider"}),
		QuotaRejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_rejections_total",
			Help:      "Calls refused because the provider's monthly budget was spent",
		}, []string{"provider"}),
		StrategyRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "strategy_runs_total",
			Help:      "Extraction strategy runs by method and outcome",
		}, []string{"method", "outcome"}),
		StrategyDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "strategy_duration_seconds",
			Help:      "Duration of extraction strategy runs",
			Buckets:   latencyBuckets,
		}, []string{"method"}),
		Attempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Acquisition attempts by kind and outcome",
		}, []string{"kind", "outcome"}),
		Resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Finished resolutions by outcome",
		}, []string{"outcome"}),
		ResolveDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_duration_seconds",
			Help:      "Wall time of a full resolution",
			Buckets:   latencyBuckets,
		}),
		Confidence: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "confidence_score",
			Help:      "Final confidence score of finished resolutions",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
	}
}

// outcome labels an error for counters.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return resilience.Classify(err).String()
}

// ObserveCall records one provider call.
func (m *Metrics) ObserveCall(provider string, d time.Duration, err error) {
	m.ProviderCalls.WithLabelValues(provider, outcome(err)).Inc()
	m.ProviderDuration.WithLabelValues(provider).Observe(d.Seconds())
	if resilience.Classify(err) == resilience.KindQuota {
		m.QuotaRejections.WithLabelValues(provider).Inc()
	}
}

// ObserveStrategy records one extraction strategy run.
func (m *Metrics) ObserveStrategy(method model.Method, d time.Duration, found bool, err error) {
	label := "empty"
	switch {
	case err != nil:
		label = "error"
	case found:
		label = "found"
	}
	m.StrategyRuns.WithLabelValues(string(method), label).Inc()
	m.StrategyDuration.WithLabelValues(string(method)).Observe(d.Seconds())
}

// ObserveAttempt records one orchestrator attempt.
func (m *Metrics) ObserveAttempt(kind string, _ time.Duration, err error) {
	m.Attempts.WithLabelValues(kind, outcome(err)).Inc()
}

// ObserveResolution records a finished resolution.
func (m *Metrics) ObserveResolution(o model.Outcome, confidence float64, d time.Duration) {
	m.Resolutions.WithLabelValues(string(o)).Inc()
	m.ResolveDuration.Observe(d.Seconds())
	m.Confidence.Observe(confidence)
}
