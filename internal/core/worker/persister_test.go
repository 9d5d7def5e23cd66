package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vietddude/blockscan/internal/core/domain"
	"github.com/vietddude/blockscan/internal/core/job"
	"github.com/vietddude/blockscan/internal/infra/storage/memory"
)

type noFindings struct{}

func (noFindings) Float64() float64 { return 1 }
func (noFindings) IntN(int) int     { return 0 }

func setup(t *testing.T) (*job.Store, *memory.JobSnapshotRepo, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 10, 30, 15, 10, 0, 0, time.UTC))
	store := job.NewStore(job.Options{Clock: clock, Rand: noFindings{}})
	repo := memory.NewJobSnapshotRepo(memory.NewMemoryStorage())
	return store, repo, clock
}

func loadAll(t *testing.T, repo *memory.JobSnapshotRepo) map[domain.JobID]domain.Job {
	t.Helper()
	jobs, err := repo.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	out := make(map[domain.JobID]domain.Job, len(jobs))
	for _, j := range jobs {
		out[j.ID] = j
	}
	return out
}

func TestPersisterSavesTransitions(t *testing.T) {
	store, repo, clock := setup(t)
	p := NewPersister(store, repo, clock, 0)
	p.Attach()

	end := int64(6945000)
	id, err := store.Create(job.CreateRequest{Network: "Sepolia", StartBlock: 6942000, EndBlock: &end})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	saved := loadAll(t, repo)
	if got := saved[id].Status; got != domain.JobStatusRunning {
		t.Fatalf("expected running snapshot, got %q", got)
	}

	if err := store.Pause(id); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if got := loadAll(t, repo)[id].Status; got != domain.JobStatusPaused {
		t.Errorf("expected paused snapshot, got %q", got)
	}

	if err := store.Finish(id); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	snap := loadAll(t, repo)[id]
	if snap.Status != domain.JobStatusDone || snap.Processed != 3001 {
		t.Errorf("expected done at 3001, got %q at %d", snap.Status, snap.Processed)
	}

	if err := store.Delete(id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := loadAll(t, repo)[id]; ok {
		t.Error("snapshot should be deleted with the job")
	}
}

func TestPersisterSavesAutoCompletion(t *testing.T) {
	store, repo, clock := setup(t)
	NewPersister(store, repo, clock, 0).Attach()

	end := int64(9)
	id, _ := store.Create(job.CreateRequest{Network: "Local", StartBlock: 0, EndBlock: &end})
	if _, _, err := store.Advance(id, 100, 100); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}

	snap := loadAll(t, repo)[id]
	if snap.Status != domain.JobStatusDone || snap.Processed != 10 {
		t.Errorf("expected done at 10, got %q at %d", snap.Status, snap.Processed)
	}
}

func TestFlushWritesRunningJobsOnly(t *testing.T) {
	store, repo, clock := setup(t)
	p := NewPersister(store, repo, clock, 0)

	running, _ := store.Create(job.CreateRequest{Network: "Ethereum", StartBlock: 21000000})
	paused, _ := store.Create(job.CreateRequest{Network: "Ethereum", StartBlock: 21000000})
	_ = store.Pause(paused)
	_, _, _ = store.Advance(running, 40, 40)

	p.Flush(context.Background())

	saved := loadAll(t, repo)
	if len(saved) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(saved))
	}
	if saved[running].Processed != 40 {
		t.Errorf("expected processed 40, got %d", saved[running].Processed)
	}
}

func TestStartFlushesOnIntervalAndShutdown(t *testing.T) {
	store, repo, clock := setup(t)
	p := NewPersister(store, repo, clock, DefaultFlushInterval)

	id, _ := store.Create(job.CreateRequest{Network: "BNB", StartBlock: 1})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Start(ctx)
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	if err := clock.BlockUntilContext(waitCtx, 1); err != nil {
		t.Fatalf("flush loop never started: %v", err)
	}

	_, _, _ = store.Advance(id, 25, 25)
	clock.Advance(DefaultFlushInterval)

	deadline := time.Now().Add(time.Second)
	for loadAll(t, repo)[id].Processed != 25 {
		if time.Now().After(deadline) {
			t.Fatal("interval flush did not happen")
		}
		time.Sleep(5 * time.Millisecond)
	}

	_, _, _ = store.Advance(id, 25, 25)
	cancel()
	wg.Wait()

	if got := loadAll(t, repo)[id].Processed; got != 50 {
		t.Errorf("expected shutdown flush to write 50, got %d", got)
	}
}

func TestRestore(t *testing.T) {
	_, repo, clock := setup(t)
	ctx := context.Background()

	total, endBlock := uint64(3001), uint64(6945000)
	good := domain.Job{
		ID:         "JOB-20251030-001",
		Network:    domain.NetworkSepolia,
		StartBlock: 6942000,
		EndBlock:   &endBlock,
		Status:     domain.JobStatusPaused,
		Processed:  1200,
		Total:      &total,
		StartedAt:  clock.Now(),
	}
	bad := domain.Job{ID: "JOB-20251030-002", Network: "Dogecoin", Status: domain.JobStatusRunning, Continuous: true}
	if err := repo.SaveBatch(ctx, []domain.Job{good, bad}); err != nil {
		t.Fatalf("SaveBatch failed: %v", err)
	}

	store := job.NewStore(job.Options{Clock: clock, Rand: noFindings{}})
	p := NewPersister(store, repo, clock, 0)

	n, err := p.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 restored job, got %d", n)
	}

	got, err := store.Get(good.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Processed != 1200 || got.Status != domain.JobStatusPaused {
		t.Errorf("unexpected restored job: %+v", got)
	}

	// A second restore finds only duplicates.
	n, err = p.Restore(ctx)
	if err != nil || n != 0 {
		t.Errorf("expected 0 restored on repeat, got %d (err %v)", n, err)
	}
}

type failingRepo struct{}

var errUnavailable = errors.New("storage unavailable")

func (failingRepo) LoadAll(context.Context) ([]domain.Job, error) { return nil, errUnavailable }
func (failingRepo) Save(context.Context, domain.Job) error        { return errUnavailable }
func (failingRepo) SaveBatch(context.Context, []domain.Job) error { return errUnavailable }
func (failingRepo) Delete(context.Context, domain.JobID) error    { return errUnavailable }

func TestPersisterErrorsDoNotBreakStore(t *testing.T) {
	store, _, clock := setup(t)
	p := NewPersister(store, failingRepo{}, clock, 0)
	p.Attach()

	if _, err := p.Restore(context.Background()); !errors.Is(err, errUnavailable) {
		t.Errorf("expected storage error, got %v", err)
	}

	id, err := store.Create(job.CreateRequest{Network: "Sepolia", StartBlock: 1})
	if err != nil {
		t.Fatalf("Create should succeed despite save failure: %v", err)
	}
	if err := store.Pause(id); err != nil {
		t.Errorf("Pause should succeed despite save failure: %v", err)
	}
}

// deletingRepo deletes a job from the store while a batch containing it is
// being written, as a DELETE request landing mid-flush would.
type deletingRepo struct {
	*memory.JobSnapshotRepo
	store  *job.Store
	target domain.JobID
}

func (r *deletingRepo) SaveBatch(ctx context.Context, jobs []domain.Job) error {
	if err := r.JobSnapshotRepo.SaveBatch(ctx, jobs); err != nil {
		return err
	}
	if r.target != "" {
		id := r.target
		r.target = ""
		return r.store.Delete(id)
	}
	return nil
}

func TestDeleteDuringFlushIsNotResurrected(t *testing.T) {
	store, mem, clock := setup(t)
	repo := &deletingRepo{JobSnapshotRepo: mem, store: store}
	p := NewPersister(store, repo, clock, 0)
	p.Attach()

	id, err := store.Create(job.CreateRequest{Network: "Sepolia", StartBlock: 1})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	_, _, _ = store.Advance(id, 20, 20)

	repo.target = id
	p.Flush(context.Background())

	if _, err := store.Get(id); !errors.Is(err, job.ErrNotFound) {
		t.Fatalf("expected job deleted from store, got %v", err)
	}
	if saved := loadAll(t, mem); len(saved) != 0 {
		t.Errorf("expected no snapshots after delete, got %d", len(saved))
	}

	// Later flushes must not write it back either.
	p.Flush(context.Background())
	if saved := loadAll(t, mem); len(saved) != 0 {
		t.Errorf("deleted job written back by a later flush")
	}

	// A restart restores nothing.
	fresh := job.NewStore(job.Options{Clock: clock, Rand: noFindings{}})
	n, err := NewPersister(fresh, mem, clock, 0).Restore(context.Background())
	if err != nil || n != 0 {
		t.Errorf("expected nothing to restore, got %d (err %v)", n, err)
	}
}

func TestStaleSnapshotDoesNotOverwriteNewer(t *testing.T) {
	store, repo, clock := setup(t)
	p := NewPersister(store, repo, clock, 0)
	p.Attach()

	end := int64(9)
	id, _ := store.Create(job.CreateRequest{Network: "Local", StartBlock: 0, EndBlock: &end})
	stale, _, _ := store.Advance(id, 5, 5)
	if stale.Status != domain.JobStatusRunning {
		t.Fatalf("expected running, got %s", stale.Status)
	}

	// Completion is written by the transition callback.
	_, _, _ = store.Advance(id, 5, 5)

	// A flush that listed the job before completion arrives late.
	if err := p.save(context.Background(), []domain.Job{stale}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	snap := loadAll(t, repo)[id]
	if snap.Status != domain.JobStatusDone || snap.Processed != 10 {
		t.Errorf("stale snapshot overwrote completion: %s at %d", snap.Status, snap.Processed)
	}
}
