package model

import "time"

// RunStatus is the lifecycle state of a persisted enrichment run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusDone     RunStatus = "done"
	RunStatusDegraded RunStatus = "degraded"
)

// StatusFor maps a pipeline outcome onto a run status.
func StatusFor(o Outcome) RunStatus {
	if o == OutcomeDone {
		return RunStatusDone
	}
	return RunStatusDegraded
}

// Run is one persisted enrichment of a reference.
type Run struct {
	ID         string              `json:"id"`
	Reference  EntityReference     `json:"reference"`
	Status     RunStatus           `json:"status"`
	Confidence float64             `json:"confidence"`
	Record     *ConsolidatedRecord `json:"record,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	Status RunStatus
	Limit  int
	Offset int
}
