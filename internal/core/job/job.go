// Package job owns the registry of block scan jobs.
//
// # Purpose
//
// The Store is the only component allowed to mutate a job. Everything else
// (ticker, HTTP API, CLI, persister) works with snapshots returned by Get and
// List, which are deep copies.
//
// # Lifecycle
//
//	running ⇄ paused
//	running/paused → done       (Finish, or Advance reaching total)
//	running/paused → cancelled  (Cancel)
//
// done and cancelled are terminal: only Delete touches them afterwards.
//
// # Quick Start
//
//	store := job.NewStore(job.Options{Networks: domain.NewNetworkSet(domain.DefaultNetworks...)})
//
//	end := int64(6945000)
//	id, _ := store.Create(job.CreateRequest{Network: "Sepolia", StartBlock: 6942000, EndBlock: &end})
//
//	store.Advance(id, 3001, 50) // processed=3001, status=done
//
//	store.SetTransitionCallback(func(j domain.Job, t job.Transition) {
//	    log.Printf("job %s: %s -> %s (%s)", j.ID, t.From, t.To, t.Reason)
//	})
//
// # Package Structure
//
//   - state.go - State machine definitions and valid transitions
//   - store.go - Store implementation
package job

import (
	"errors"
	"log/slog"
	"math/rand/v2"

	"github.com/jonboulle/clockwork"

	"github.com/vietddude/blockscan/internal/core/domain"
)

// DefaultFindingProbability is the per-severity chance of a new finding on each advance.
const DefaultFindingProbability = 0.03

var (
	// ErrNotFound is returned when a job id is unknown.
	ErrNotFound = errors.New("job not found")

	// ErrInvalidRange is returned when a block range is malformed at creation.
	ErrInvalidRange = errors.New("invalid block range")

	// ErrInvalidTransition is returned when an operation is not allowed from the current status.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrUnknownNetwork is returned when the network is not in the configured set.
	ErrUnknownNetwork = errors.New("unknown network")

	// ErrDuplicateJob is returned when restoring a job whose id is already present.
	ErrDuplicateJob = errors.New("duplicate job id")
)

// Rand is the random source used for finding draws. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// Options configures a Store. Zero values fall back to defaults.
type Options struct {
	Clock              clockwork.Clock
	Rand               Rand
	FindingProbability *float64 // nil = DefaultFindingProbability
	Networks           *domain.NetworkSet
	Logger             *slog.Logger
}

// CreateRequest describes a new scan job.
type CreateRequest struct {
	Network    string
	StartBlock int64
	EndBlock   *int64 // nil = continuous
	Continuous bool
}

// NewStore creates an empty job store.
func NewStore(opts Options) *Store {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Networks == nil {
		opts.Networks = domain.NewNetworkSet(domain.DefaultNetworks...)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	prob := DefaultFindingProbability
	if opts.FindingProbability != nil {
		prob = *opts.FindingProbability
	}

	return &Store{
		jobs:        make(map[domain.JobID]*domain.Job),
		clock:       opts.Clock,
		rand:        opts.Rand,
		findingProb: prob,
		networks:    opts.Networks,
		log:         opts.Logger.With("component", "job_store"),
	}
}
