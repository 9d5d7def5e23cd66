package job

import (
	"time"

	"github.com/vietddude/blockscan/internal/core/domain"
)

// State is an alias for domain.JobStatus for internal use.
type State = domain.JobStatus

// ValidTransitions defines allowed status transitions.
// Key is the current status, value is the list of valid next statuses.
// Terminal statuses have no entry.
var ValidTransitions = map[State][]State{
	domain.JobStatusRunning: {
		domain.JobStatusPaused,
		domain.JobStatusDone,
		domain.JobStatusCancelled,
	},
	domain.JobStatusPaused: {
		domain.JobStatusRunning,
		domain.JobStatusDone,
		domain.JobStatusCancelled,
	},
}

// CanTransition checks if a transition from one status to another is valid.
func CanTransition(from, to State) bool {
	validTargets, ok := ValidTransitions[from]
	if !ok {
		return false
	}

	for _, target := range validTargets {
		if target == to {
			return true
		}
	}
	return false
}

// Transition represents a status change with metadata.
// Creation is reported with an empty From, deletion with an empty To.
type Transition struct {
	From      State
	To        State
	Reason    string
	Timestamp time.Time
}

// NewTransition creates a new transition record.
func NewTransition(from, to State, reason string, at time.Time) Transition {
	return Transition{
		From:      from,
		To:        to,
		Reason:    reason,
		Timestamp: at,
	}
}
