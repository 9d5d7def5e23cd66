// Package ticker drives simulated scan progress on a fixed interval.
package ticker

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vietddude/blockscan/internal/core/domain"
	"github.com/vietddude/blockscan/internal/core/job"
	"github.com/vietddude/blockscan/internal/scanning/metrics"
)

// Config holds configuration for the ticker.
type Config struct {
	Interval     time.Duration // Tick period (default: 1s)
	MinIncrement uint64        // Smallest per-tick block increment (default: 20)
	MaxIncrement uint64        // Largest per-tick block increment, inclusive (default: 79)
}

// DefaultConfig returns default ticker configuration.
func DefaultConfig() Config {
	return Config{
		Interval:     time.Second,
		MinIncrement: 20,
		MaxIncrement: 79,
	}
}

// JobStore is the part of job.Store the ticker needs.
type JobStore interface {
	List() []domain.Job
	Advance(id domain.JobID, blockDelta, speedSample uint64) (domain.Job, bool, error)
}

// Ticker advances every running job once per interval. It keeps no job
// state of its own, so it can be stopped and started again freely.
type Ticker struct {
	cfg   Config
	store JobStore
	clock clockwork.Clock
	rand  job.Rand
	log   *slog.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	lastTick time.Time
}

// New creates a ticker. A nil clock or rand falls back to the real ones.
func New(cfg Config, store JobStore, clock clockwork.Clock, rnd job.Rand) *Ticker {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.MinIncrement == 0 && cfg.MaxIncrement == 0 {
		cfg.MinIncrement, cfg.MaxIncrement = def.MinIncrement, def.MaxIncrement
	}
	if cfg.MaxIncrement < cfg.MinIncrement {
		cfg.MaxIncrement = cfg.MinIncrement
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &Ticker{
		cfg:   cfg,
		store: store,
		clock: clock,
		rand:  rnd,
		log:   slog.Default().With("component", "ticker"),
	}
}

// Start launches the tick loop. Calling Start on a running ticker is a no-op.
func (t *Ticker) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done

	// Create the clock ticker before returning so a fake clock advanced
	// right after Start is observed.
	tk := t.clock.NewTicker(t.cfg.Interval)
	go t.run(ctx, tk, done)

	t.log.Info("Ticker started", "interval", t.cfg.Interval)
}

// Stop halts the loop and waits for an in-flight tick to finish. State that
// has already been applied is kept.
func (t *Ticker) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	t.log.Info("Ticker stopped")
}

// Running reports whether the loop is active.
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

// LastTick returns when the last tick ran, or the zero time.
func (t *Ticker) LastTick() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastTick
}

// Interval returns the configured tick period.
func (t *Ticker) Interval() time.Duration {
	return t.cfg.Interval
}

func (t *Ticker) run(ctx context.Context, tk clockwork.Ticker, done chan struct{}) {
	defer close(done)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.Chan():
			t.Tick()
		}
	}
}

// Tick advances every running job once and returns how many were advanced.
func (t *Ticker) Tick() int {
	start := time.Now()
	advanced := 0

	for _, before := range t.store.List() {
		if before.Status != domain.JobStatusRunning {
			continue
		}

		inc := t.increment()
		after, applied, err := t.store.Advance(before.ID, inc, inc)
		if err != nil {
			// Deleted between List and Advance.
			if errors.Is(err, job.ErrNotFound) {
				t.log.Debug("Job vanished before advance", "id", before.ID)
				continue
			}
			t.log.Warn("Failed to advance job", "id", before.ID, "error", err)
			continue
		}
		if !applied {
			// Paused, finished or cancelled between List and Advance.
			continue
		}

		advanced++
		metrics.BlocksScanned.WithLabelValues(string(after.Network)).Add(float64(after.Processed - before.Processed))
		metrics.RecordFindingDelta(before.Findings, after.Findings)
	}

	metrics.Ticks.Inc()
	metrics.TickDuration.Observe(time.Since(start).Seconds())

	t.mu.Lock()
	t.lastTick = t.clock.Now()
	t.mu.Unlock()

	if advanced > 0 {
		t.log.Debug("Tick", "advanced", advanced)
	}
	return advanced
}

func (t *Ticker) increment() uint64 {
	span := t.cfg.MaxIncrement - t.cfg.MinIncrement + 1
	return t.cfg.MinIncrement + uint64(t.rand.IntN(int(span)))
}
