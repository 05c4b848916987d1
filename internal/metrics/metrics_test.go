package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"

	"github.com/sells-group/enrich-cli/internal/acquire"
	"github.com/sells-group/enrich-cli/internal/extract"
	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/orchestrate"
	"github.com/sells-group/enrich-cli/internal/resilience"
)

var (
	_ acquire.Observer     = (*Metrics)(nil)
	_ extract.Observer     = (*Metrics)(nil)
	_ orchestrate.Observer = (*Metrics)(nil)
)

func newTestMetrics() *Metrics {
	return New(WithRegisterer(prometheus.NewRegistry()))
}

func TestObserveCall(t *testing.T) {
	t.Parallel()
	m := newTestMetrics()

	m.ObserveCall("jina", 10*time.Millisecond, nil)
	m.ObserveCall("jina", time.Millisecond, &resilience.QuotaError{Provider: "jina", MonthKey: "2026-10", Limit: 5})
	m.ObserveCall("firecrawl", time.Second, resilience.NewTransientError(eris.New("boom"), 503))

	assert.InDelta(t, 1, testutil.ToFloat64(m.ProviderCalls.WithLabelValues("jina", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ProviderCalls.WithLabelValues("jina", "quota")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ProviderCalls.WithLabelValues("firecrawl", "transient")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.QuotaRejections.WithLabelValues("jina")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.QuotaRejections.WithLabelValues("firecrawl")), 0)
}

func TestObserveStrategy(t *testing.T) {
	t.Parallel()
	m := newTestMetrics()

	m.ObserveStrategy(model.MethodStructuredData, time.Millisecond, true, nil)
	m.ObserveStrategy(model.MethodLLM, time.Second, false, eris.New("timeout"))
	m.ObserveStrategy(model.MethodPattern, time.Millisecond, false, nil)

	assert.InDelta(t, 1, testutil.ToFloat64(m.StrategyRuns.WithLabelValues(string(model.MethodStructuredData), "found")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.StrategyRuns.WithLabelValues(string(model.MethodLLM), "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.StrategyRuns.WithLabelValues(string(model.MethodPattern), "empty")), 0)
}

func TestObserveResolution(t *testing.T) {
	t.Parallel()
	m := newTestMetrics()

	m.ObserveAttempt("website", time.Millisecond, nil)
	m.ObserveAttempt("profile", time.Millisecond, eris.New("404"))
	m.ObserveResolution(model.OutcomeDone, 0.8, time.Second)
	m.ObserveResolution(model.OutcomeDegraded, 0.1, time.Second)
	m.ObserveResolution(model.OutcomeDegraded, 0, time.Second)

	assert.InDelta(t, 1, testutil.ToFloat64(m.Attempts.WithLabelValues("website", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Attempts.WithLabelValues("profile", "permanent")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Resolutions.WithLabelValues(string(model.OutcomeDone))), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.Resolutions.WithLabelValues(string(model.OutcomeDegraded))), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.Confidence))
}

func TestNewRegistersOnGivenRegistry(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := New(WithRegisterer(reg))
	m.ObserveResolution(model.OutcomeDone, 1, time.Millisecond)

	families, err := reg.Gather()
	assert.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "enrich_resolutions_total")
	assert.Contains(t, names, "enrich_confidence_score")
}
