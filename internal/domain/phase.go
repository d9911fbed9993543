package domain

// Phase is the lifecycle state of an attempt.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseInProgress
	// PhaseSubmitting holds while the result is being persisted; answers are frozen.
	PhaseSubmitting
	PhaseSubmitted
	// PhaseClosed ends an attempt whose timed-out submission cannot succeed.
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "NotStarted"
	case PhaseInProgress:
		return "InProgress"
	case PhaseSubmitting:
		return "Submitting"
	case PhaseSubmitted:
		return "Submitted"
	case PhaseClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// SubmitTrigger records why an attempt left InProgress.
type SubmitTrigger string

const (
	TriggerManual  SubmitTrigger = "manual"
	TriggerTimeout SubmitTrigger = "timeout"
)
