package orchestrate

// State is a step of one resolution.
type State int

const (
	StateIdle State = iota
	StateResolving
	StateExtracting
	StateConsolidating
	StateQualityCheck
	StateRetrying
	StateDone
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateExtracting:
		return "extracting"
	case StateConsolidating:
		return "consolidating"
	case StateQualityCheck:
		return "quality_check"
	case StateRetrying:
		return "retrying"
	case StateDone:
		return "done"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends a resolution.
func (s State) Terminal() bool { return s == StateDone || s == StateDegraded }
