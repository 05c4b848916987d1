package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/enrich-cli/internal/cost"
	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/monitoring"
	"github.com/sells-group/enrich-cli/internal/store"
)

type fakeRunGetter struct {
	runs map[string]*model.Run
	err  error
}

func (f fakeRunGetter) GetRun(_ context.Context, id string) (*model.Run, error) {
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.runs[id]; ok {
		return r, nil
	}
	return nil, eris.Wrapf(store.ErrNotFound, "run %s", id)
}

type fakeBudgetSource []model.RateBudget

func (f fakeBudgetSource) Snapshot() []model.RateBudget { return f }

func testDeps() apiDeps {
	return apiDeps{
		Enrich: func(_ context.Context, ref model.EntityReference) *model.Run {
			return &model.Run{
				ID:         "run-1",
				Reference:  ref,
				Status:     model.RunStatusDone,
				Confidence: 0.8,
				Record:     &model.ConsolidatedRecord{Outcome: model.OutcomeDone, ConfidenceScore: 0.8},
			}
		},
		Runs: fakeRunGetter{runs: map[string]*model.Run{
			"abc": {ID: "abc", Status: model.RunStatusDegraded},
		}},
		Budgets:        fakeBudgetSource{{Provider: "perplexity", MonthKey: "2026-10", Calls: 3, MonthlyLimit: 10}},
		Pricing:        cost.NewCalculator(cost.Rates{Perplexity: cost.QueryRate{PerQuery: 0.5}}),
		AllowedOrigins: []string{"*"},
		RequestTimeout: time.Minute,
	}
}

func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestBuildRouter_Health(t *testing.T) {
	rr := serve(t, buildRouter(testDeps()), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestBuildRouter_Enrich(t *testing.T) {
	var got model.EntityReference
	deps := testDeps()
	inner := deps.Enrich
	deps.Enrich = func(ctx context.Context, ref model.EntityReference) *model.Run {
		got = ref
		return inner(ctx, ref)
	}

	rr := serve(t, buildRouter(deps), http.MethodPost, "/v1/enrich", `{"domain":" acme.com ","region":"Austin"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "acme.com", got.Domain)
	assert.Equal(t, "Austin", got.Region)

	var run model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &run))
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, model.RunStatusDone, run.Status)
	require.NotNil(t, run.Record)
	assert.InDelta(t, 0.8, run.Record.ConfidenceScore, 0.001)
}

func TestBuildRouter_EnrichBadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{name: "malformed json", body: `{"domain":`, wantMsg: "invalid request body"},
		{name: "empty reference", body: `{"region":"Austin"}`, wantMsg: "at least one of"},
	}

	h := buildRouter(testDeps())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(t, h, http.MethodPost, "/v1/enrich", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.wantMsg)
		})
	}
}

func TestBuildRouter_GetRun(t *testing.T) {
	h := buildRouter(testDeps())

	rr := serve(t, h, http.MethodGet, "/v1/runs/abc", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"degraded"`)

	rr = serve(t, h, http.MethodGet, "/v1/runs/missing", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBuildRouter_GetRunStoreError(t *testing.T) {
	deps := testDeps()
	deps.Runs = fakeRunGetter{err: eris.New("connection refused")}

	rr := serve(t, buildRouter(deps), http.MethodGet, "/v1/runs/abc", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "connection refused")
}

func TestBuildRouter_Budgets(t *testing.T) {
	rr := serve(t, buildRouter(testDeps()), http.MethodGet, "/v1/budgets", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Budgets []budgetView `json:"budgets"`
		Total   float64      `json:"total_estimated_spend_usd"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Budgets, 1)
	assert.Equal(t, "perplexity", body.Budgets[0].Provider)
	assert.Equal(t, 3, body.Budgets[0].Calls)
	assert.InDelta(t, 1.5, body.Budgets[0].EstimatedSpend, 0.001)
	assert.InDelta(t, 1.5, body.Total, 0.001)
}

func TestBuildRouter_Status(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		rr := serve(t, buildRouter(testDeps()), http.MethodGet, "/v1/status", "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("not collected yet", func(t *testing.T) {
		deps := testDeps()
		deps.Status = func() *monitoring.MetricsSnapshot { return nil }
		rr := serve(t, buildRouter(deps), http.MethodGet, "/v1/status", "")
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})

	t.Run("snapshot", func(t *testing.T) {
		deps := testDeps()
		deps.Status = func() *monitoring.MetricsSnapshot {
			return &monitoring.MetricsSnapshot{RunsTotal: 4, RunsDegraded: 1, DegradedRate: 0.25}
		}
		rr := serve(t, buildRouter(deps), http.MethodGet, "/v1/status", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"degraded_rate":0.25`)
	})
}

func TestBuildRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	promauto.With(reg).NewCounter(prometheus.CounterOpts{Name: "enrich_test_total", Help: "test"}).Inc()

	deps := testDeps()
	deps.Gatherer = reg

	rr := serve(t, buildRouter(deps), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "enrich_test_total 1")
}

func TestBuildRouter_CORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/v1/enrich", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()

	buildRouter(testDeps()).ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestBuildRouter_UnknownRoute(t *testing.T) {
	rr := serve(t, buildRouter(testDeps()), http.MethodGet, "/webhook/enrich", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
