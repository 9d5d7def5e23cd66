package memory

import (
	"context"
	"testing"

	"github.com/vietddude/blockscan/internal/core/domain"
)

func TestJobSnapshotRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewJobSnapshotRepo(NewMemoryStorage())

	total := uint64(100)
	end := uint64(99)
	a := domain.Job{ID: "JOB-a", Network: domain.NetworkSepolia, EndBlock: &end, Total: &total, Status: domain.JobStatusRunning}
	b := domain.Job{ID: "JOB-b", Network: domain.NetworkEthereum, Continuous: true, Status: domain.JobStatusPaused}

	if err := repo.Save(ctx, a); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := repo.SaveBatch(ctx, []domain.Job{b}); err != nil {
		t.Fatalf("SaveBatch failed: %v", err)
	}

	// Mutating the caller's copy must not leak into storage.
	*a.Total = 5

	jobs, err := repo.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != "JOB-a" || jobs[1].ID != "JOB-b" {
		t.Fatalf("unexpected jobs %+v", jobs)
	}
	if *jobs[0].Total != 100 {
		t.Errorf("expected stored total 100, got %d", *jobs[0].Total)
	}

	if err := repo.Delete(ctx, "JOB-a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := repo.Delete(ctx, "JOB-missing"); err != nil {
		t.Fatalf("Delete of unknown id failed: %v", err)
	}
	jobs, _ = repo.LoadAll(ctx)
	if len(jobs) != 1 || jobs[0].ID != "JOB-b" {
		t.Errorf("expected only JOB-b left, got %+v", jobs)
	}
}
