package domain

import "time"

// JobID identifies a scan job within the store.
type JobID string

// JobStatus is the lifecycle state of a scan job.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusPaused    JobStatus = "paused"
	JobStatusDone      JobStatus = "done"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether no further mutation (other than deletion) is allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusDone || s == JobStatusCancelled
}

// Severity names a finding bucket.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Severities lists buckets in display order.
var Severities = []Severity{SeverityHigh, SeverityMedium, SeverityLow}

// FindingCounts holds per-severity finding totals for a job.
type FindingCounts struct {
	High   uint64 `json:"high"`
	Medium uint64 `json:"medium"`
	Low    uint64 `json:"low"`
}

// Total returns the sum across severities.
func (f FindingCounts) Total() uint64 {
	return f.High + f.Medium + f.Low
}

// Job is one block-range (or continuous) scan task.
type Job struct {
	ID         JobID         `json:"id"`
	Network    Network       `json:"network"`
	StartBlock uint64        `json:"start_block"`
	EndBlock   *uint64       `json:"end_block,omitempty"` // nil when continuous
	Continuous bool          `json:"continuous"`
	Status     JobStatus     `json:"status"`
	Processed  uint64        `json:"processed"`
	Total      *uint64       `json:"total,omitempty"` // nil when continuous
	Findings   FindingCounts `json:"findings"`
	StartedAt  time.Time     `json:"started_at"`
	Speed      uint64        `json:"speed"` // smoothed blocks per tick

	// Revision is bumped by the store on every mutation, so a newer snapshot
	// always carries a larger value.
	Revision uint64 `json:"revision"`
}

// Bounded reports whether the job has a finite total.
func (j *Job) Bounded() bool {
	return !j.Continuous && j.Total != nil
}

// Clone returns a deep copy safe to hand out as a read-only snapshot.
func (j *Job) Clone() Job {
	c := *j
	if j.EndBlock != nil {
		end := *j.EndBlock
		c.EndBlock = &end
	}
	if j.Total != nil {
		total := *j.Total
		c.Total = &total
	}
	return c
}
