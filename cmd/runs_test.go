package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/enrich-cli/internal/cost"
	"github.com/sells-group/enrich-cli/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:         "abc12345-6789-0000-0000-000000000000",
			Reference:  model.EntityReference{Domain: "acme.com", Name: "Acme Corp"},
			Status:     model.RunStatusDone,
			Confidence: 0.82,
			CreatedAt:  now,
			UpdatedAt:  now.Add(2 * time.Minute),
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Reference: model.EntityReference{Name: "A Very Long Business Name For Testing Purposes"},
			Status:    model.RunStatusRunning,
			CreatedAt: now.Add(-1 * time.Hour),
			UpdatedAt: now.Add(-1 * time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "REFERENCE")
	assert.Contains(t, output, "CONFIDENCE")
	assert.Contains(t, output, "acme.com")
	assert.Contains(t, output, "done")
	assert.Contains(t, output, "0.82")
	assert.Contains(t, output, "running")
	assert.Contains(t, output, "A Very Long Business Name F...")
	assert.Contains(t, output, "2025-06-15 10:30")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-6789")
}

func TestComputeRunStats(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	runs := []model.Run{
		{ID: "1", Status: model.RunStatusDone, Confidence: 0.9, CreatedAt: now, UpdatedAt: now.Add(10 * time.Second)},
		{ID: "2", Status: model.RunStatusDone, Confidence: 0.7, CreatedAt: now, UpdatedAt: now.Add(20 * time.Second)},
		{ID: "3", Status: model.RunStatusDegraded, Confidence: 0.2, CreatedAt: now, UpdatedAt: now.Add(30 * time.Second)},
		{ID: "4", Status: model.RunStatusRunning, CreatedAt: now, UpdatedAt: now},
		{ID: "5", Status: model.RunStatusDone, Confidence: 1, CreatedAt: now.Add(-48 * time.Hour), UpdatedAt: now.Add(-48 * time.Hour)},
	}

	tests := []struct {
		name      string
		since     time.Time
		wantTotal int
		wantDone  int
		wantConf  float64
		wantDur   float64
	}{
		{name: "window excludes old run", since: now.Add(-24 * time.Hour), wantTotal: 4, wantDone: 2, wantConf: 0.6, wantDur: 20},
		{name: "zero since includes all", wantTotal: 5, wantDone: 3, wantConf: 0.7, wantDur: 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := computeRunStats(runs, tt.since)
			assert.Equal(t, tt.wantTotal, s.Total)
			assert.Equal(t, tt.wantDone, s.Done)
			assert.Equal(t, 1, s.Degraded)
			assert.Equal(t, 1, s.Running)
			assert.InDelta(t, tt.wantConf, s.AvgConfidence, 0.001)
			assert.InDelta(t, tt.wantDur, s.AvgDurSecs, 0.001)
		})
	}
}

func TestComputeRunStats_Empty(t *testing.T) {
	t.Parallel()
	s := computeRunStats(nil, time.Time{})
	assert.Equal(t, runStats{}, s)
}

func TestFormatRunStats(t *testing.T) {
	var buf bytes.Buffer
	formatRunStats(&buf, runStats{Total: 4, Done: 2, Degraded: 1, Running: 1, AvgConfidence: 0.6, AvgDurSecs: 20})

	output := buf.String()
	assert.Contains(t, output, "Total runs:")
	assert.Contains(t, output, "Degraded:")
	assert.Contains(t, output, "0.60")
	assert.Contains(t, output, "20.0s")
}

func TestFormatRunStats_NoFinishedRuns(t *testing.T) {
	var buf bytes.Buffer
	formatRunStats(&buf, runStats{Total: 1, Running: 1})
	assert.NotContains(t, buf.String(), "Avg confidence")
}

func TestFormatBudgets(t *testing.T) {
	var buf bytes.Buffer
	formatBudgets(&buf, []model.RateBudget{
		{Provider: "jina", MonthKey: "2025-06", Calls: 40, MonthlyLimit: 100, MinInterval: 500 * time.Millisecond},
		{Provider: "local_http", MonthKey: "2025-06", Calls: 7},
		{Provider: "perplexity", MonthKey: "2025-06", Calls: 200, MonthlyLimit: 1000},
	}, cost.NewCalculator(cost.Rates{Perplexity: cost.QueryRate{PerQuery: 0.005}}))

	output := buf.String()
	assert.Contains(t, output, "PROVIDER")
	assert.Contains(t, output, "jina")
	assert.Contains(t, output, "60")
	assert.Contains(t, output, "500ms")
	assert.Contains(t, output, "unlimited")
	assert.Contains(t, output, "$1.00")
	assert.Contains(t, output, "TOTAL")
}

func TestTruncateID(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "abc12345", truncateID("abc12345-6789-0000"))
	assert.Equal(t, "short", truncateID("short"))
}
