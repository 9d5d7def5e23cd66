package job

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/vietddude/blockscan/internal/core/domain"
)

// Store holds every scan job and serialises all mutations behind one mutex.
type Store struct {
	mu          sync.Mutex
	jobs        map[domain.JobID]*domain.Job
	clock       clockwork.Clock
	rand        Rand
	findingProb float64
	networks    *domain.NetworkSet
	callback    func(domain.Job, Transition)
	log         *slog.Logger
}

// event is a transition waiting to be delivered once the lock is released.
type event struct {
	job domain.Job
	t   Transition
}

// Create registers a new running job and returns its id.
func (s *Store) Create(req CreateRequest) (domain.JobID, error) {
	network, ok := s.networks.Lookup(req.Network)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownNetwork, req.Network)
	}
	if req.StartBlock < 0 {
		return "", fmt.Errorf("%w: start block %d is negative", ErrInvalidRange, req.StartBlock)
	}

	continuous := req.EndBlock == nil || req.Continuous
	j := &domain.Job{
		Network:    network,
		StartBlock: uint64(req.StartBlock),
		Continuous: continuous,
		Status:     domain.JobStatusRunning,
		Revision:   1,
	}

	if req.EndBlock != nil {
		end := *req.EndBlock
		if !continuous && end < req.StartBlock {
			return "", fmt.Errorf(
				"%w: end block %d is before start block %d",
				ErrInvalidRange,
				end,
				req.StartBlock,
			)
		}
		// A continuous job keeps no end block even if one was typed in.
		if !continuous {
			// Both bounds are non-negative int64, so the uint64 span cannot overflow.
			endBlock := uint64(end)
			total := endBlock - uint64(req.StartBlock) + 1
			j.EndBlock = &endBlock
			j.Total = &total
		}
	}

	s.mu.Lock()
	now := s.clock.Now()
	j.StartedAt = now
	j.ID = s.newIDLocked(now)
	s.jobs[j.ID] = j
	ev := event{job: j.Clone(), t: NewTransition("", domain.JobStatusRunning, "created", now)}
	s.mu.Unlock()

	s.log.Info("Scan job created",
		"id", ev.job.ID,
		"network", ev.job.Network,
		"start", ev.job.StartBlock,
		"continuous", ev.job.Continuous,
	)
	s.notify(ev)
	return ev.job.ID, nil
}

// Pause moves a running job to paused.
func (s *Store) Pause(id domain.JobID) error {
	return s.setStatus(id, domain.JobStatusPaused, "paused by operator", func(from State) bool {
		return from == domain.JobStatusRunning
	})
}

// Resume moves a paused job back to running.
func (s *Store) Resume(id domain.JobID) error {
	return s.setStatus(id, domain.JobStatusRunning, "resumed by operator", func(from State) bool {
		return from == domain.JobStatusPaused
	})
}

// Finish forces a non-terminal job to done. Bounded jobs are marked fully processed.
func (s *Store) Finish(id domain.JobID) error {
	return s.setStatus(id, domain.JobStatusDone, "finished by operator", nil)
}

// Cancel forces a non-terminal job to cancelled. Counters are left as they are.
func (s *Store) Cancel(id domain.JobID) error {
	return s.setStatus(id, domain.JobStatusCancelled, "cancelled by operator", nil)
}

// Delete removes a job. Deleting an unknown id is not an error.
func (s *Store) Delete(id domain.JobID) error {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.jobs, id)
	j.Revision++
	ev := event{job: j.Clone(), t: NewTransition(j.Status, "", "deleted", s.clock.Now())}
	s.mu.Unlock()

	s.log.Info("Scan job deleted", "id", id)
	s.notify(ev)
	return nil
}

// Advance applies one tick of progress to a running job and returns the
// resulting snapshot. applied is false, and nothing changes, for any other
// status. blockDelta is clamped so a bounded job never passes its total;
// reaching the total completes the job.
func (s *Store) Advance(id domain.JobID, blockDelta, speedSample uint64) (snapshot domain.Job, applied bool, err error) {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return domain.Job{}, false, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if j.Status != domain.JobStatusRunning {
		snapshot = j.Clone()
		s.mu.Unlock()
		return snapshot, false, nil
	}

	if j.Bounded() {
		remaining := *j.Total - j.Processed
		if blockDelta >= remaining {
			j.Processed = *j.Total
		} else {
			j.Processed += blockDelta
		}
	} else if j.Processed > math.MaxUint64-blockDelta {
		j.Processed = math.MaxUint64
	} else {
		j.Processed += blockDelta
	}

	j.Speed = smoothSpeed(j.Speed, speedSample)

	for _, sev := range domain.Severities {
		if s.rand.Float64() < s.findingProb {
			incrementFinding(&j.Findings, sev)
		}
	}

	completed := j.Bounded() && j.Processed == *j.Total
	if completed {
		j.Status = domain.JobStatusDone
	}
	j.Revision++
	snapshot = j.Clone()
	now := s.clock.Now()
	s.mu.Unlock()

	if completed {
		s.log.Info("Scan job completed", "id", id, "processed", snapshot.Processed)
		s.notify(event{
			job: snapshot,
			t:   NewTransition(domain.JobStatusRunning, domain.JobStatusDone, "range fully scanned", now),
		})
	}
	return snapshot, true, nil
}

// Get returns a snapshot of one job.
func (s *Store) Get(id domain.JobID) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return j.Clone(), nil
}

// List returns snapshots of all jobs, newest first.
func (s *Store) List() []domain.Job {
	s.mu.Lock()
	out := make([]domain.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.Clone())
	}
	s.mu.Unlock()

	sort.Slice(out, func(a, b int) bool {
		if !out[a].StartedAt.Equal(out[b].StartedAt) {
			return out[a].StartedAt.After(out[b].StartedAt)
		}
		return out[a].ID > out[b].ID
	})
	return out
}

// CountByStatus returns how many jobs are in each status.
func (s *Store) CountByStatus() map[domain.JobStatus]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := map[domain.JobStatus]int{
		domain.JobStatusRunning:   0,
		domain.JobStatusPaused:    0,
		domain.JobStatusDone:      0,
		domain.JobStatusCancelled: 0,
	}
	for _, j := range s.jobs {
		counts[j.Status]++
	}
	return counts
}

// Networks returns the networks jobs may be created on.
func (s *Store) Networks() []domain.Network {
	return s.networks.Names()
}

// Restore loads a previously persisted snapshot. The callback is not invoked.
func (s *Store) Restore(j domain.Job) error {
	if j.ID == "" {
		return errors.New("restore: job has no id")
	}
	network, ok := s.networks.Lookup(string(j.Network))
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNetwork, j.Network)
	}
	if err := validateSnapshot(&j); err != nil {
		return err
	}
	j.Network = network

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[j.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, j.ID)
	}
	restored := j.Clone()
	s.jobs[j.ID] = &restored
	return nil
}

// SetTransitionCallback registers a callback for status changes. It runs
// after the store lock is released and receives a snapshot.
func (s *Store) SetTransitionCallback(fn func(domain.Job, Transition)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = fn
}

func (s *Store) setStatus(id domain.JobID, to State, reason string, allowed func(State) bool) error {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	from := j.Status
	if !CanTransition(from, to) || (allowed != nil && !allowed(from)) {
		s.mu.Unlock()
		return fmt.Errorf(
			"%w: cannot transition job %s from %s to %s",
			ErrInvalidTransition,
			id,
			from,
			to,
		)
	}

	j.Status = to
	j.Revision++
	if to == domain.JobStatusDone && j.Bounded() {
		j.Processed = *j.Total
	}
	ev := event{job: j.Clone(), t: NewTransition(from, to, reason, s.clock.Now())}
	s.mu.Unlock()

	s.log.Info("Scan job transitioned", "id", id, "from", from, "to", to, "reason", reason)
	s.notify(ev)
	return nil
}

func (s *Store) notify(ev event) {
	s.mu.Lock()
	fn := s.callback
	s.mu.Unlock()

	if fn != nil {
		fn(ev.job, ev.t)
	}
}

// newIDLocked returns an unused id of the form JOB-YYYYMMDD-xxxxxxxx.
func (s *Store) newIDLocked(now time.Time) domain.JobID {
	for {
		suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		id := domain.JobID(fmt.Sprintf("JOB-%s-%s", now.Format("20060102"), suffix))
		if _, exists := s.jobs[id]; !exists {
			return id
		}
	}
}

// smoothSpeed computes round((speed*3 + sample) / 4) with halves rounded up.
func smoothSpeed(speed, sample uint64) uint64 {
	return (speed*3 + sample + 2) / 4
}

func incrementFinding(f *domain.FindingCounts, sev domain.Severity) {
	switch sev {
	case domain.SeverityHigh:
		f.High++
	case domain.SeverityMedium:
		f.Medium++
	case domain.SeverityLow:
		f.Low++
	}
}

func validateSnapshot(j *domain.Job) error {
	switch j.Status {
	case domain.JobStatusRunning, domain.JobStatusPaused, domain.JobStatusDone, domain.JobStatusCancelled:
	default:
		return fmt.Errorf("%w: job %s has unknown status %q", ErrInvalidTransition, j.ID, j.Status)
	}

	if j.Continuous {
		if j.Total != nil || j.EndBlock != nil {
			return fmt.Errorf("%w: continuous job %s carries an end block", ErrInvalidRange, j.ID)
		}
		return nil
	}

	if j.Total == nil || j.EndBlock == nil {
		return fmt.Errorf("%w: bounded job %s has no end block", ErrInvalidRange, j.ID)
	}
	if *j.EndBlock < j.StartBlock || *j.Total != *j.EndBlock-j.StartBlock+1 {
		return fmt.Errorf("%w: job %s total does not match its range", ErrInvalidRange, j.ID)
	}
	if j.Processed > *j.Total {
		return fmt.Errorf("%w: job %s processed %d exceeds total %d", ErrInvalidRange, j.ID, j.Processed, *j.Total)
	}
	return nil
}
