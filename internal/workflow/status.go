package workflow

import "fmt"

// Status is the lifecycle of a single project step.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusSubmitted  Status = "submitted"
	StatusApproved   Status = "approved"
	StatusLocked     Status = "locked"
	// StatusCompleted is accepted when reading stored rows but never written.
	StatusCompleted Status = "completed"
)

// ParseStatus reports whether raw names a known step status.
func ParseStatus(raw string) (Status, bool) {
	switch s := Status(raw); s {
	case StatusNotStarted, StatusInProgress, StatusSubmitted, StatusApproved, StatusLocked, StatusCompleted:
		return s, true
	}
	return "", false
}

// IsCompletedForDisplay is the one place that decides whether a step counts as done.
func IsCompletedForDisplay(s Status) bool {
	switch s {
	case StatusSubmitted, StatusApproved, StatusLocked, StatusCompleted:
		return true
	}
	return false
}

// PhilosophyStatus tracks the CEO philosophy survey independently of the steps.
type PhilosophyStatus string

const (
	PhilosophyNotStarted PhilosophyStatus = "not_started"
	PhilosophyInProgress PhilosophyStatus = "in_progress"
	PhilosophyCompleted  PhilosophyStatus = "completed"
	PhilosophyLocked     PhilosophyStatus = "locked"
)

func ParsePhilosophyStatus(raw string) (PhilosophyStatus, bool) {
	switch p := PhilosophyStatus(raw); p {
	case PhilosophyNotStarted, PhilosophyInProgress, PhilosophyCompleted, PhilosophyLocked:
		return p, true
	}
	return "", false
}

// Unlocks reports whether the survey is far enough along to open the organization step.
func (p PhilosophyStatus) Unlocks() bool {
	return p == PhilosophyCompleted || p == PhilosophyLocked
}

// InvalidTransitionError is returned for any move the lifecycle does not allow.
type InvalidTransitionError struct {
	Kind string
	From string
	To   string
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s status transition %s -> %s", e.Kind, e.From, e.To)
}

// CanTransition allows forward moves only.
func CanTransition(from, to Status) error {
	switch from {
	case StatusNotStarted:
		if to == StatusInProgress {
			return nil
		}
	case StatusInProgress:
		if to == StatusSubmitted {
			return nil
		}
	case StatusSubmitted:
		if to == StatusApproved || to == StatusLocked {
			return nil
		}
	case StatusApproved:
		if to == StatusLocked {
			return nil
		}
	}
	return InvalidTransitionError{Kind: "step", From: string(from), To: string(to)}
}

func CanTransitionPhilosophy(from, to PhilosophyStatus) error {
	switch from {
	case PhilosophyNotStarted:
		if to == PhilosophyInProgress || to == PhilosophyCompleted {
			return nil
		}
	case PhilosophyInProgress:
		if to == PhilosophyCompleted {
			return nil
		}
	case PhilosophyCompleted:
		if to == PhilosophyLocked {
			return nil
		}
	}
	return InvalidTransitionError{Kind: "philosophy", From: string(from), To: string(to)}
}

// Label is the display text for a raw status. Unknown values read as locked.
func Label(raw string) string {
	s, ok := ParseStatus(raw)
	if !ok {
		return "Locked"
	}
	switch s {
	case StatusNotStarted:
		return "Not Started"
	case StatusInProgress:
		return "In Progress"
	case StatusSubmitted:
		return "Submitted"
	case StatusApproved:
		return "Approved"
	case StatusCompleted:
		return "Completed"
	default:
		return "Locked"
	}
}

// Badge is the badge variant used next to Label.
func Badge(raw string) string {
	s, ok := ParseStatus(raw)
	if !ok {
		return "outline"
	}
	switch s {
	case StatusInProgress:
		return "secondary"
	case StatusSubmitted, StatusApproved, StatusCompleted:
		return "default"
	case StatusLocked:
		return "success"
	default:
		return "outline"
	}
}
