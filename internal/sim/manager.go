package sim

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"journey-simulator/internal/route"
)

// Manager drives journeys in the registry. Each started journey gets its own
// goroutine and ticker; every tick advances the journey by the wall time since
// the previous tick scaled by speedMultiplier.
type Manager struct {
	registry        *Registry
	tickInterval    time.Duration
	speedMultiplier float64
	retention       time.Duration
	metrics         Metrics
	logger          *slog.Logger

	base       context.Context
	cancelBase context.CancelFunc

	mu      sync.Mutex
	running map[string]*runner // journey id -> ticker goroutine
	closed  bool
	wg      sync.WaitGroup
}

type runner struct {
	cancel context.CancelFunc
}

type ManagerOptions struct {
	TickInterval    time.Duration
	SpeedMultiplier float64
	// Retention is how long a completed journey stays queryable.
	Retention time.Duration
	Metrics   Metrics
	Logger    *slog.Logger
}

func NewManager(registry *Registry, opts ManagerOptions) *Manager {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.SpeedMultiplier <= 0 {
		opts.SpeedMultiplier = 1
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		registry:        registry,
		tickInterval:    opts.TickInterval,
		speedMultiplier: opts.SpeedMultiplier,
		retention:       opts.Retention,
		metrics:         opts.Metrics,
		logger:          opts.Logger,
		base:            ctx,
		cancelBase:      cancel,
		running:         make(map[string]*runner),
	}
}

// Count returns the number of registered journeys, completed ones included.
func (m *Manager) Count() int { return m.registry.Count() }

func (m *Manager) StartNewJourney(id string, speedMps float64) (Snapshot, error) {
	return m.started(m.registry.StartNewJourney(id, speedMps))
}

func (m *Manager) StartJourneyOnRoute(id, routeID string, speedMps float64) (Snapshot, error) {
	return m.started(m.registry.StartJourneyOnRoute(id, routeID, speedMps))
}

func (m *Manager) StartJourneyWithRoute(id string, rt *route.Route, speedMps float64) (Snapshot, error) {
	return m.started(m.registry.StartJourneyWithRoute(id, rt, speedMps))
}

func (m *Manager) started(snap Snapshot, err error) (Snapshot, error) {
	if err != nil {
		return snap, err
	}
	m.track(snap.JourneyID)
	return snap, nil
}

func (m *Manager) GetJourneyState(id string) (Snapshot, error) { return m.registry.GetJourneyState(id) }
func (m *Manager) JourneyExists(id string) bool                { return m.registry.JourneyExists(id) }
func (m *Manager) PauseJourney(id string) (Snapshot, error)    { return m.registry.PauseJourney(id) }
func (m *Manager) ResumeJourney(id string) (Snapshot, error)   { return m.registry.ResumeJourney(id) }
func (m *Manager) Snapshots() []Snapshot                       { return m.registry.Snapshots() }

// AdvanceJourney advances a journey on demand, outside its ticker.
func (m *Manager) AdvanceJourney(id string, elapsedSeconds float64) (Snapshot, error) {
	return m.registry.AdvanceJourney(id, elapsedSeconds)
}

// StopJourney cancels the journey's ticker and removes it from the registry.
func (m *Manager) StopJourney(id string) (Snapshot, error) {
	m.mu.Lock()
	if r, ok := m.running[id]; ok {
		r.cancel()
		delete(m.running, id)
	}
	m.mu.Unlock()
	return m.registry.StopJourney(id)
}

func (m *Manager) track(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if old, exists := m.running[id]; exists {
		old.cancel()
	}
	ctx, cancel := context.WithCancel(m.base)
	r := &runner{cancel: cancel}
	m.running[id] = r
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		m.runJourney(ctx, id, r)
	}()
}

func (m *Manager) untrack(id string, r *runner) {
	m.mu.Lock()
	if m.running[id] == r {
		delete(m.running, id)
	}
	m.mu.Unlock()
}

func (m *Manager) runJourney(ctx context.Context, id string, r *runner) {
	defer m.untrack(id, r)

	tick := time.NewTicker(m.tickInterval)
	defer tick.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tick.C:
			tickStart := time.Now()
			elapsed := now.Sub(last).Seconds() * m.speedMultiplier
			last = now
			snap, err := m.registry.AdvanceJourney(id, elapsed)
			m.metrics.ObserveTick(time.Since(tickStart))
			if errors.Is(err, ErrJourneyNotFound) {
				return
			}
			if err != nil {
				m.logger.Error("advance journey", "journey_id", id, "error", err)
				continue
			}
			if snap.Status == StatusCompleted {
				m.retire(ctx, id, r)
				return
			}
		}
	}
}

// retire keeps a completed journey queryable for the retention period, then
// evicts it.
func (m *Manager) retire(ctx context.Context, id string, r *runner) {
	if m.retention > 0 {
		timer := time.NewTimer(m.retention)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
	// leave the running map first so a restart under the same id after the
	// eviction is not mistaken for this runner
	m.untrack(id, r)
	m.registry.Evict(id)
}

// Active returns the number of journeys with a live ticker.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.running)
}

// Stop cancels every ticker and waits for them to exit or for ctx to end.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.running = make(map[string]*runner)
	m.mu.Unlock()
	m.cancelBase()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
