// Package progress derives percent-complete and ETA from job snapshots.
package progress

import (
	"fmt"
	"math"
	"time"

	"github.com/vietddude/blockscan/internal/core/domain"
)

// Percent returns completion in [0, 100]. ok is false for continuous jobs.
func Percent(j domain.Job) (pct int, ok bool) {
	if !j.Bounded() {
		return 0, false
	}
	if *j.Total == 0 {
		return 100, true
	}

	p := math.Round(float64(j.Processed) / float64(*j.Total) * 100)
	return int(min(100, max(0, p))), true
}

// Remaining returns blocks left to scan. ok is false for continuous jobs.
func Remaining(j domain.Job) (uint64, bool) {
	if !j.Bounded() {
		return 0, false
	}
	if j.Processed >= *j.Total {
		return 0, true
	}
	return *j.Total - j.Processed, true
}

// ETASeconds returns round(remaining / speed). ok is false unless the job is
// a running bounded job with a non-zero speed.
func ETASeconds(j domain.Job) (uint64, bool) {
	if j.Status != domain.JobStatusRunning || j.Speed == 0 {
		return 0, false
	}
	remaining, ok := Remaining(j)
	if !ok {
		return 0, false
	}
	return uint64(math.Round(float64(remaining) / float64(j.Speed))), true
}

// ETA formats ETASeconds as MM:SS. Minutes are not capped at 59.
func ETA(j domain.Job) (string, bool) {
	secs, ok := ETASeconds(j)
	if !ok {
		return "", false
	}
	return FormatClock(secs), true
}

// FormatClock renders seconds as zero-padded MM:SS.
func FormatClock(secs uint64) string {
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// Snapshot is a job together with its derived projections.
type Snapshot struct {
	domain.Job
	Percent *int    `json:"percent,omitempty"`
	ETA     *string `json:"eta,omitempty"`
	Elapsed string  `json:"elapsed"`
}

// Describe builds a Snapshot as of now.
func Describe(j domain.Job, now time.Time) Snapshot {
	s := Snapshot{Job: j}
	if pct, ok := Percent(j); ok {
		s.Percent = &pct
	}
	if eta, ok := ETA(j); ok {
		s.ETA = &eta
	}
	if elapsed := now.Sub(j.StartedAt); elapsed > 0 {
		s.Elapsed = elapsed.Truncate(time.Second).String()
	} else {
		s.Elapsed = "0s"
	}
	return s
}
