package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vietddude/blockscan/internal/core/domain"
)

// MemoryStorage keeps job snapshots in a map. It is the default when no
// Redis URL is configured, so nothing survives a restart.
type MemoryStorage struct {
	jobs map[domain.JobID]domain.Job
	mu   sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		jobs: make(map[domain.JobID]domain.Job),
	}
}

// -----------------------------------------------------------------------------
// Job Snapshot Repository
// -----------------------------------------------------------------------------

type JobSnapshotRepo struct {
	store *MemoryStorage
}

func NewJobSnapshotRepo(store *MemoryStorage) *JobSnapshotRepo {
	return &JobSnapshotRepo{store: store}
}

func (r *JobSnapshotRepo) Save(ctx context.Context, job domain.Job) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.jobs[job.ID] = job.Clone()
	return nil
}

func (r *JobSnapshotRepo) SaveBatch(ctx context.Context, jobs []domain.Job) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, j := range jobs {
		r.store.jobs[j.ID] = j.Clone()
	}
	return nil
}

func (r *JobSnapshotRepo) Delete(ctx context.Context, id domain.JobID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.jobs, id)
	return nil
}

func (r *JobSnapshotRepo) LoadAll(ctx context.Context) ([]domain.Job, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]domain.Job, 0, len(r.store.jobs))
	for _, j := range r.store.jobs {
		out = append(out, j.Clone())
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}
