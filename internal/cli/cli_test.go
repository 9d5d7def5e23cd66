package cli

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/vietddude/blockscan/internal/core/domain"
	"github.com/vietddude/blockscan/internal/infra/storage/memory"
)

func u64(v uint64) *uint64 { return &v }

func sampleJobs(now time.Time) []domain.Job {
	return []domain.Job{
		{
			ID:         "JOB-20251030-001",
			Network:    domain.NetworkSepolia,
			StartBlock: 6942000,
			EndBlock:   u64(6945000),
			Total:      u64(3001),
			Status:     domain.JobStatusRunning,
			Processed:  1200,
			Speed:      55,
			Findings:   domain.FindingCounts{High: 1, Medium: 2, Low: 3},
			StartedAt:  now.Add(-time.Minute),
		},
		{
			ID:         "JOB-20251030-002",
			Network:    domain.NetworkEthereum,
			StartBlock: 21000000,
			Continuous: true,
			Status:     domain.JobStatusPaused,
			Processed:  640,
			StartedAt:  now.Add(-2 * time.Minute),
		},
		{
			ID:         "JOB-20251030-003",
			Network:    domain.NetworkBNB,
			StartBlock: 1,
			EndBlock:   u64(10),
			Total:      u64(10),
			Status:     domain.JobStatusDone,
			Processed:  10,
			StartedAt:  now.Add(-3 * time.Minute),
		},
	}
}

func TestWriteStatusTable(t *testing.T) {
	now := time.Date(2025, 10, 30, 15, 10, 0, 0, time.UTC)
	var buf bytes.Buffer
	writeStatusTable(&buf, sampleJobs(now), now)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header + 3 rows, got %d:\n%s", len(lines), buf.String())
	}

	checks := []struct {
		line int
		want []string
	}{
		{0, []string{"ID", "NETWORK", "PROGRESS", "H/M/L"}},
		{1, []string{"JOB-20251030-001", "Sepolia", "6942000 → 6945000", "running", "40%", "00:33", "1/2/3"}},
		{2, []string{"JOB-20251030-002", "21000000 → ∞", "paused", "640 blocks", "-"}},
		{3, []string{"JOB-20251030-003", "done", "100%"}},
	}
	for _, c := range checks {
		for _, want := range c.want {
			if !strings.Contains(lines[c.line], want) {
				t.Errorf("line %d missing %q: %s", c.line, want, lines[c.line])
			}
		}
	}
}

func TestPruneTerminal(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	repo := memory.NewJobSnapshotRepo(memory.NewMemoryStorage())
	if err := repo.SaveBatch(ctx, sampleJobs(now)); err != nil {
		t.Fatalf("SaveBatch failed: %v", err)
	}

	removed, err := pruneTerminal(ctx, repo)
	if err != nil {
		t.Fatalf("pruneTerminal failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}

	left, _ := repo.LoadAll(ctx)
	if len(left) != 2 {
		t.Errorf("expected 2 jobs left, got %d", len(left))
	}
	for _, j := range left {
		if j.Status.IsTerminal() {
			t.Errorf("terminal job %s survived prune", j.ID)
		}
	}
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		level string
		debug bool
		want  slog.Level
	}{
		{"", false, slog.LevelInfo},
		{"info", false, slog.LevelInfo},
		{"debug", false, slog.LevelDebug},
		{"warn", false, slog.LevelWarn},
		{"error", false, slog.LevelError},
		{"error", true, slog.LevelDebug},
	}
	for _, tt := range tests {
		if got := logLevel(tt.level, tt.debug); got != tt.want {
			t.Errorf("logLevel(%q, %v) = %v, want %v", tt.level, tt.debug, got, tt.want)
		}
	}
}
