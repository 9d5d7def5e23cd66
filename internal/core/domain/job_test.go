package domain

import "testing"

func TestJobStatusIsTerminal(t *testing.T) {
	tests := []struct {
		status   JobStatus
		terminal bool
	}{
		{JobStatusRunning, false},
		{JobStatusPaused, false},
		{JobStatusDone, true},
		{JobStatusCancelled, true},
	}

	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.terminal {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestJobCloneIsDeep(t *testing.T) {
	end := uint64(6945000)
	total := uint64(3001)
	j := Job{ID: "JOB-1", EndBlock: &end, Total: &total}

	c := j.Clone()
	*c.EndBlock = 1
	*c.Total = 1

	if *j.EndBlock != 6945000 || *j.Total != 3001 {
		t.Errorf("clone shares pointers with original: end=%d total=%d", *j.EndBlock, *j.Total)
	}
}

func TestJobBounded(t *testing.T) {
	total := uint64(10)
	if (&Job{Continuous: true}).Bounded() {
		t.Error("continuous job reported bounded")
	}
	if (&Job{}).Bounded() {
		t.Error("job without total reported bounded")
	}
	if !(&Job{Total: &total}).Bounded() {
		t.Error("job with total reported unbounded")
	}
}
