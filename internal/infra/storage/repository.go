package storage

import (
	"context"

	"github.com/vietddude/blockscan/internal/core/domain"
)

// JobSnapshotRepository persists job snapshots in a key-value store so the
// registry can be rebuilt after a restart. The job store never calls it
// directly; the persister does.
type JobSnapshotRepository interface {
	// Save upserts a snapshot
	Save(ctx context.Context, job domain.Job) error

	// SaveBatch upserts several snapshots
	SaveBatch(ctx context.Context, jobs []domain.Job) error

	// Delete removes a snapshot; deleting an unknown id is not an error
	Delete(ctx context.Context, id domain.JobID) error

	// LoadAll returns every stored snapshot
	LoadAll(ctx context.Context) ([]domain.Job, error)
}
