package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vietddude/blockscan/internal/core/domain"
	"github.com/vietddude/blockscan/internal/core/job"
	"github.com/vietddude/blockscan/internal/infra/storage"
	"github.com/vietddude/blockscan/internal/scanning/metrics"
)

// DefaultFlushInterval is how often running jobs' counters are written out.
const DefaultFlushInterval = 5 * time.Second

// writeTimeout bounds a single snapshot write triggered by a transition.
const writeTimeout = 5 * time.Second

// JobStore is the part of job.Store the persister needs.
type JobStore interface {
	List() []domain.Job
	CountByStatus() map[domain.JobStatus]int
	Restore(j domain.Job) error
	SetTransitionCallback(fn func(domain.Job, job.Transition))
}

// Persister mirrors the job store into a snapshot repository. Transitions
// are written as they happen; progress of running jobs is flushed on an
// interval.
type Persister struct {
	store    JobStore
	repo     storage.JobSnapshotRepository
	clock    clockwork.Clock
	interval time.Duration
	log      *slog.Logger

	writeMu sync.Mutex // serialises SaveBatch calls
	stateMu sync.Mutex // guards written and deleted; never held across I/O
	written map[domain.JobID]uint64
	deleted map[domain.JobID]struct{}
}

// NewPersister creates a new Persister worker. A non-positive interval
// disables periodic flushing.
func NewPersister(
	store JobStore,
	repo storage.JobSnapshotRepository,
	clock clockwork.Clock,
	interval time.Duration,
) *Persister {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Persister{
		store:    store,
		repo:     repo,
		clock:    clock,
		interval: interval,
		log:      slog.Default().With("component", "persister"),
		written:  make(map[domain.JobID]uint64),
		deleted:  make(map[domain.JobID]struct{}),
	}
}

// Restore loads every stored snapshot into the store. Snapshots the store
// rejects are logged and skipped. It returns how many were restored.
func (p *Persister) Restore(ctx context.Context) (int, error) {
	jobs, err := p.repo.LoadAll(ctx)
	if err != nil {
		metrics.PersistErrors.WithLabelValues("load").Inc()
		return 0, err
	}

	restored := 0
	for _, j := range jobs {
		if err := p.store.Restore(j); err != nil {
			if errors.Is(err, job.ErrDuplicateJob) {
				continue
			}
			p.log.Warn("Skipping stored job", "id", j.ID, "error", err)
			continue
		}
		p.stateMu.Lock()
		p.written[j.ID] = j.Revision
		p.stateMu.Unlock()
		restored++
	}

	metrics.RecordJobCounts(p.store.CountByStatus())
	p.log.Info("Restored jobs", "count", restored, "stored", len(jobs))
	return restored, nil
}

// Attach subscribes the persister to store transitions.
func (p *Persister) Attach() {
	p.store.SetTransitionCallback(p.onTransition)
}

func (p *Persister) onTransition(j domain.Job, t job.Transition) {
	if t.To != "" {
		metrics.Transitions.WithLabelValues(string(t.To)).Inc()
	}
	metrics.RecordJobCounts(p.store.CountByStatus())

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if t.To == "" {
		p.remove(ctx, j.ID)
		return
	}

	if err := p.save(ctx, []domain.Job{j}); err != nil {
		metrics.PersistErrors.WithLabelValues("save").Inc()
		p.log.Error("Failed to save snapshot", "id", j.ID, "to", t.To, "error", err)
	}
}

// remove tombstones id and deletes its snapshot. It never takes writeMu.
func (p *Persister) remove(ctx context.Context, id domain.JobID) {
	p.stateMu.Lock()
	p.deleted[id] = struct{}{}
	delete(p.written, id)
	p.stateMu.Unlock()

	if err := p.repo.Delete(ctx, id); err != nil {
		metrics.PersistErrors.WithLabelValues("delete").Inc()
		p.log.Error("Failed to delete snapshot", "id", id, "error", err)
	}
}

// save writes the snapshots that are newer than what was last written and
// whose job has not been deleted. Writes are serialised, and any job deleted
// while its snapshot was in flight is deleted again afterwards.
func (p *Persister) save(ctx context.Context, jobs []domain.Job) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.stateMu.Lock()
	fresh := make([]domain.Job, 0, len(jobs))
	for _, j := range jobs {
		if _, gone := p.deleted[j.ID]; gone {
			continue
		}
		if rev, ok := p.written[j.ID]; ok && j.Revision <= rev {
			continue
		}
		fresh = append(fresh, j)
	}
	p.stateMu.Unlock()

	if len(fresh) == 0 {
		return nil
	}
	if err := p.repo.SaveBatch(ctx, fresh); err != nil {
		return err
	}

	var resurrected []domain.JobID
	p.stateMu.Lock()
	for _, j := range fresh {
		if _, gone := p.deleted[j.ID]; gone {
			resurrected = append(resurrected, j.ID)
			continue
		}
		p.written[j.ID] = j.Revision
	}
	p.stateMu.Unlock()

	for _, id := range resurrected {
		if err := p.repo.Delete(ctx, id); err != nil {
			metrics.PersistErrors.WithLabelValues("delete").Inc()
			p.log.Error("Failed to delete snapshot", "id", id, "error", err)
		}
	}
	return nil
}

// Start runs the flush loop until ctx is cancelled, then flushes once more.
func (p *Persister) Start(ctx context.Context) {
	if p.interval <= 0 {
		return // Flushing disabled
	}

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final flush with a fresh context so shutdown keeps the last counters.
			flushCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			p.Flush(flushCtx)
			cancel()
			return
		case <-ticker.Chan():
			p.Flush(ctx)
		}
	}
}

// Flush writes a snapshot of every running job that changed since it was
// last written.
func (p *Persister) Flush(ctx context.Context) {
	var running []domain.Job
	for _, j := range p.store.List() {
		if j.Status == domain.JobStatusRunning {
			running = append(running, j)
		}
	}
	if len(running) == 0 {
		return
	}

	if err := p.save(ctx, running); err != nil {
		metrics.PersistErrors.WithLabelValues("flush").Inc()
		p.log.Error("Failed to flush snapshots", "count", len(running), "error", err)
		return
	}
	p.log.Debug("Flushed snapshots", "count", len(running))
}
