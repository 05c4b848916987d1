// Package monitoring periodically summarises recent resolutions and
// provider budgets and raises alerts when they cross thresholds.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/model"
)

const collectPageSize = 500

// MetricsSnapshot holds a point-in-time view of system health.
type MetricsSnapshot struct {
	// Resolution metrics (within lookback window).
	RunsTotal     int     `json:"runs_total"`
	RunsDone      int     `json:"runs_done"`
	RunsDegraded  int     `json:"runs_degraded"`
	RunsRunning   int     `json:"runs_running"`
	DegradedRate  float64 `json:"degraded_rate"`
	AvgConfidence float64 `json:"avg_confidence"`

	// Provider budgets for the current month.
	Budgets []model.RateBudget `json:"budgets"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister abstracts the store methods needed by the collector.
type RunLister interface {
	ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error)
}

// BudgetSource reports live provider budgets.
type BudgetSource interface {
	Snapshot() []model.RateBudget
}

// Collector gathers metrics from the run store and the rate guard.
type Collector struct {
	runs    RunLister
	budgets BudgetSource
	now     func() time.Time
}

// NewCollector creates a new metrics collector. budgets may be nil.
func NewCollector(runs RunLister, budgets BudgetSource) *Collector {
	return &Collector{runs: runs, budgets: budgets, now: time.Now}
}

// Collect gathers a snapshot of system metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	var totalConfidence float64
	var finished int

	// Runs are listed newest first; stop paging at the first run older
	// than the window.
	for offset := 0; ; offset += collectPageSize {
		page, err := c.runs.ListRuns(ctx, model.RunFilter{Limit: collectPageSize, Offset: offset})
		if err != nil {
			return nil, eris.Wrap(err, "monitoring: list runs")
		}
		inWindow := 0
		for _, r := range page {
			if r.CreatedAt.Before(cutoff) {
				continue
			}
			inWindow++
			snap.RunsTotal++
			switch r.Status {
			case model.RunStatusDone:
				snap.RunsDone++
			case model.RunStatusDegraded:
				snap.RunsDegraded++
			case model.RunStatusRunning:
				snap.RunsRunning++
				continue
			}
			finished++
			totalConfidence += r.Confidence
		}
		if len(page) < collectPageSize || inWindow < len(page) {
			break
		}
	}

	if finished > 0 {
		snap.DegradedRate = float64(snap.RunsDegraded) / float64(finished)
		snap.AvgConfidence = totalConfidence / float64(finished)
	}

	if c.budgets != nil {
		snap.Budgets = c.budgets.Snapshot()
	}

	return snap, nil
}
