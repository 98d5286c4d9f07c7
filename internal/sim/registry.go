package sim

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"journey-simulator/internal/route"
)

// RouteSource supplies routes for new journeys.
type RouteSource interface {
	FindByID(id string) (*route.Route, error)
	Random() (*route.Route, error)
}

// Notifier receives lifecycle events. Calls for one journey are made while
// that journey is locked, so they arrive in the order they were produced.
// Implementations must not block.
type Notifier interface {
	JourneyStarted(Snapshot)
	JourneyUpdated(Snapshot)
	JourneyCompleted(Snapshot)
	JourneyStopped(Snapshot)
}

// Metrics receives journey counters. A nil Metrics is allowed.
type Metrics interface {
	JourneyStarted()
	JourneyCompleted()
	JourneyStopped()
	SetActiveJourneys(n int)
	ObserveTick(d time.Duration)
}

// Registry stores every live journey keyed by id.
type Registry struct {
	routes   RouteSource
	notifier Notifier
	metrics  Metrics
	logger   *slog.Logger
	now      func() time.Time

	journeys sync.Map // journey id -> *Journey
	count    atomic.Int64
}

func NewRegistry(routes RouteSource, notifier Notifier, metrics Metrics, logger *slog.Logger) *Registry {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		routes:   routes,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// StartNewJourney starts a journey on a random route.
func (r *Registry) StartNewJourney(id string, speedMps float64) (Snapshot, error) {
	if err := validateStart(id, speedMps); err != nil {
		return Snapshot{}, err
	}
	if r.JourneyExists(id) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrJourneyAlreadyExists, id)
	}
	rt, err := r.routes.Random()
	if err != nil {
		return Snapshot{}, err
	}
	return r.register(id, rt, speedMps)
}

func (r *Registry) StartJourneyOnRoute(id, routeID string, speedMps float64) (Snapshot, error) {
	if err := validateStart(id, speedMps); err != nil {
		return Snapshot{}, err
	}
	if r.JourneyExists(id) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrJourneyAlreadyExists, id)
	}
	rt, err := r.routes.FindByID(routeID)
	if err != nil {
		return Snapshot{}, err
	}
	return r.register(id, rt, speedMps)
}

// StartJourneyWithRoute starts a journey on a route that is not in the catalog.
func (r *Registry) StartJourneyWithRoute(id string, rt *route.Route, speedMps float64) (Snapshot, error) {
	if err := validateStart(id, speedMps); err != nil {
		return Snapshot{}, err
	}
	if rt == nil {
		return Snapshot{}, fmt.Errorf("%w: nil route", ErrInvalidArgument)
	}
	return r.register(id, rt, speedMps)
}

func validateStart(id string, speedMps float64) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: journey id is blank", ErrInvalidArgument)
	}
	if !(speedMps > 0) {
		return fmt.Errorf("%w: speed must be > 0, got %v", ErrInvalidArgument, speedMps)
	}
	return nil
}

// register publishes the journey under id. Of several concurrent calls for the
// same id exactly one wins; the others get ErrJourneyAlreadyExists.
func (r *Registry) register(id string, rt *route.Route, speedMps float64) (Snapshot, error) {
	j := newJourney(id, rt, speedMps, r.now())
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, loaded := r.journeys.LoadOrStore(id, j); loaded {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrJourneyAlreadyExists, id)
	}
	j.state.Status = StatusInProgress
	snap := j.snapshotLocked()
	r.metrics.JourneyStarted()
	r.metrics.SetActiveJourneys(int(r.count.Add(1)))
	r.logger.Info("journey started", "journey_id", id, "route_id", rt.ID(), "speed_mps", speedMps)
	r.notifier.JourneyStarted(snap)
	return snap, nil
}

func (r *Registry) load(id string) (*Journey, error) {
	v, ok := r.journeys.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJourneyNotFound, id)
	}
	return v.(*Journey), nil
}

func (r *Registry) GetJourneyState(id string) (Snapshot, error) {
	j, err := r.load(id)
	if err != nil {
		return Snapshot{}, err
	}
	return j.Snapshot(), nil
}

func (r *Registry) JourneyExists(id string) bool {
	_, ok := r.journeys.Load(id)
	return ok
}

// PauseJourney moves an IN_PROGRESS journey to PAUSED. Pausing a paused
// journey is a no-op.
func (r *Registry) PauseJourney(id string) (Snapshot, error) {
	return r.transition(id, StatusPaused, func(s Status) bool {
		return s == StatusInProgress || s == StatusPaused
	})
}

// ResumeJourney moves a PAUSED journey back to IN_PROGRESS. Resuming a running
// journey is a no-op.
func (r *Registry) ResumeJourney(id string) (Snapshot, error) {
	return r.transition(id, StatusInProgress, func(s Status) bool {
		return s == StatusPaused || s == StatusInProgress || s == StatusCreated
	})
}

func (r *Registry) transition(id string, to Status, allowed func(Status) bool) (Snapshot, error) {
	j, err := r.load(id)
	if err != nil {
		return Snapshot{}, err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	from := j.state.Status
	if !allowed(from) {
		return Snapshot{}, fmt.Errorf("%w: cannot move journey %s from %s to %s", ErrInvalidState, id, from, to)
	}
	if from == to {
		return j.snapshotLocked(), nil
	}
	j.state.Status = to
	j.updatedAt = r.now()
	snap := j.snapshotLocked()
	r.logger.Info("journey status changed", "journey_id", id, "from", from, "to", to)
	r.notifier.JourneyUpdated(snap)
	return snap, nil
}

// StopJourney removes the journey whatever its state. Stopping an unknown id
// returns ErrJourneyNotFound.
func (r *Registry) StopJourney(id string) (Snapshot, error) {
	v, ok := r.journeys.LoadAndDelete(id)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrJourneyNotFound, id)
	}
	j := v.(*Journey)
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.state.Status.Terminal() {
		r.metrics.JourneyStopped()
	}
	j.state.Status = StatusStopped
	j.updatedAt = r.now()
	snap := j.snapshotLocked()
	r.metrics.SetActiveJourneys(int(r.count.Add(-1)))
	r.logger.Info("journey stopped", "journey_id", id)
	r.notifier.JourneyStopped(snap)
	return snap, nil
}

// AdvanceJourney advances the journey by elapsedSeconds and fans out the
// result. Journeys that are not IN_PROGRESS are returned unchanged.
func (r *Registry) AdvanceJourney(id string, elapsedSeconds float64) (Snapshot, error) {
	if elapsedSeconds < 0 {
		return Snapshot{}, fmt.Errorf("%w: negative elapsed time %v", ErrInvalidArgument, elapsedSeconds)
	}
	j, err := r.load(id)
	if err != nil {
		return Snapshot{}, err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Status != StatusInProgress {
		return j.snapshotLocked(), nil
	}
	before := j.state
	_, completed := Advance(&j.state, elapsedSeconds)
	if j.state == before {
		return j.snapshotLocked(), nil
	}
	j.updatedAt = r.now()
	snap := j.snapshotLocked()
	if completed {
		r.metrics.JourneyCompleted()
		r.logger.Info("journey completed", "journey_id", id, "route_id", snap.Route.ID)
		r.notifier.JourneyCompleted(snap)
		return snap, nil
	}
	r.notifier.JourneyUpdated(snap)
	return snap, nil
}

// Evict removes a completed journey. It reports whether a journey was removed.
func (r *Registry) Evict(id string) bool {
	v, ok := r.journeys.Load(id)
	if !ok {
		return false
	}
	j := v.(*Journey)
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Status != StatusCompleted {
		return false
	}
	if !r.journeys.CompareAndDelete(id, j) {
		return false
	}
	r.metrics.SetActiveJourneys(int(r.count.Add(-1)))
	r.logger.Debug("completed journey evicted", "journey_id", id)
	return true
}

// Snapshots returns every registered journey ordered by id.
func (r *Registry) Snapshots() []Snapshot {
	var out []Snapshot
	r.journeys.Range(func(_, v any) bool {
		out = append(out, v.(*Journey).Snapshot())
		return true
	})
	sort.Slice(out, func(i, k int) bool { return out[i].JourneyID < out[k].JourneyID })
	return out
}

func (r *Registry) Count() int { return int(r.count.Load()) }

type nopNotifier struct{}

func (nopNotifier) JourneyStarted(Snapshot)   {}
func (nopNotifier) JourneyUpdated(Snapshot)   {}
func (nopNotifier) JourneyCompleted(Snapshot) {}
func (nopNotifier) JourneyStopped(Snapshot)   {}

type nopMetrics struct{}

func (nopMetrics) JourneyStarted()           {}
func (nopMetrics) JourneyCompleted()         {}
func (nopMetrics) JourneyStopped()           {}
func (nopMetrics) SetActiveJourneys(int)     {}
func (nopMetrics) ObserveTick(time.Duration) {}
