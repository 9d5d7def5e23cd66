package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vietddude/blockscan/internal/core/domain"
)

// staleTicks is how many missed intervals mark the ticker as degraded.
const staleTicks = 3

// TickerProbe exposes the ticker's liveness.
type TickerProbe interface {
	Running() bool
	LastTick() time.Time
	Interval() time.Duration
}

// JobCounter reports job counts by status.
type JobCounter interface {
	CountByStatus() map[domain.JobStatus]int
}

// Pinger checks a backing store connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor aggregates health status from the ticker, the job store and the
// snapshot store.
type Monitor struct {
	ticker     TickerProbe
	jobs       JobCounter
	storage    Pinger // nil when snapshots are kept in memory
	clock      clockwork.Clock
	cacheTTL   time.Duration
	lastCheck  time.Time
	lastReport *HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor. storage may be nil.
func NewMonitor(ticker TickerProbe, jobs JobCounter, storage Pinger, clock clockwork.Clock) *Monitor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Monitor{
		ticker:   ticker,
		jobs:     jobs,
		storage:  storage,
		clock:    clock,
		cacheTTL: time.Second,
	}
}

// CheckHealth builds a health report. Results are reused for cacheTTL.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if m.lastReport != nil && now.Sub(m.lastCheck) < m.cacheTTL {
		return *m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Components:   make(map[string]ComponentHealth),
		Jobs:         make(map[string]int),
	}

	// 1. Ticker
	tk := ComponentHealth{Name: "ticker", Status: StatusHealthy}
	switch last := m.ticker.LastTick(); {
	case !m.ticker.Running():
		tk.Status = StatusCritical
		tk.Detail = "stopped"
	case last.IsZero():
		tk.Detail = "waiting for first tick"
	case now.Sub(last) > staleTicks*m.ticker.Interval():
		tk.Status = StatusDegraded
		tk.Detail = fmt.Sprintf("last tick %s ago", now.Sub(last).Round(time.Millisecond))
	}
	report.Components[tk.Name] = tk

	// 2. Snapshot storage
	st := ComponentHealth{Name: "storage", Status: StatusHealthy, Detail: "memory"}
	if m.storage != nil {
		st.Detail = "redis"
		if err := m.storage.Ping(ctx); err != nil {
			st.Status = StatusDegraded
			st.Detail = err.Error()
		}
	}
	report.Components[st.Name] = st

	// 3. Job counts
	for status, n := range m.jobs.CountByStatus() {
		report.Jobs[string(status)] = n
	}

	for _, c := range report.Components {
		report.SystemStatus = worse(report.SystemStatus, c.Status)
	}

	m.lastCheck = now
	m.lastReport = &report
	return report
}
