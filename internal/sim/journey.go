package sim

import (
	"sync"
	"time"

	"journey-simulator/internal/geo"
	"journey-simulator/internal/route"
)

type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusPaused     Status = "PAUSED"
	StatusCompleted  Status = "COMPLETED"
	StatusStopped    Status = "STOPPED"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusStopped
}

// State is the movement record advanced by Advance. WaypointIndex is the index
// of the waypoint the vehicle is heading to; it equals the route length once
// the end is reached.
type State struct {
	Route         *route.Route
	Position      geo.Coordinate
	WaypointIndex int
	Status        Status
	SpeedMps      float64
}

func NewState(r *route.Route, speedMps float64) State {
	return State{
		Route:    r,
		Position: r.StartPoint(),
		Status:   StatusCreated,
		SpeedMps: speedMps,
	}
}

// ProgressPercentage is WaypointIndex over the number of waypoints.
func (s *State) ProgressPercentage() float64 {
	n := s.Route.Len()
	if n == 0 {
		return 0
	}
	return float64(s.WaypointIndex) / float64(n) * 100
}

// RemainingDistanceMeters is the planar distance still to travel.
func (s *State) RemainingDistanceMeters() float64 {
	n := s.Route.Len()
	if s.WaypointIndex >= n {
		return 0
	}
	d := geo.DistanceMeters(s.Position, s.Route.Waypoint(s.WaypointIndex))
	for i := s.WaypointIndex + 1; i < n; i++ {
		d += geo.DistanceMeters(s.Route.Waypoint(i-1), s.Route.Waypoint(i))
	}
	return d
}

// Snapshot is an immutable copy of a journey handed to callers and subscribers.
type Snapshot struct {
	JourneyID               string         `json:"journeyId"`
	Route                   route.Summary  `json:"route"`
	CurrentPosition         geo.Coordinate `json:"currentPosition"`
	CurrentWaypointIndex    int            `json:"currentWaypointIndex"`
	TotalWaypoints          int            `json:"totalWaypoints"`
	Status                  Status         `json:"status"`
	SpeedMetersPerSecond    float64        `json:"speedMetersPerSecond"`
	ProgressPercentage      float64        `json:"progressPercentage"`
	RemainingDistanceMeters float64        `json:"remainingDistanceMeters"`
	StartedAt               time.Time      `json:"startedAt"`
	UpdatedAt               time.Time      `json:"updatedAt"`
}

// Journey owns one State. All reads and writes go through mu so advances on
// the same journey are serialized while other journeys proceed independently.
type Journey struct {
	id string

	mu        sync.Mutex
	state     State
	startedAt time.Time
	updatedAt time.Time
}

func newJourney(id string, r *route.Route, speedMps float64, now time.Time) *Journey {
	return &Journey{
		id:        id,
		state:     NewState(r, speedMps),
		startedAt: now,
		updatedAt: now,
	}
}

func (j *Journey) ID() string { return j.id }

func (j *Journey) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snapshotLocked()
}

func (j *Journey) snapshotLocked() Snapshot {
	return Snapshot{
		JourneyID:               j.id,
		Route:                   j.state.Route.Summary(),
		CurrentPosition:         j.state.Position,
		CurrentWaypointIndex:    j.state.WaypointIndex,
		TotalWaypoints:          j.state.Route.Len(),
		Status:                  j.state.Status,
		SpeedMetersPerSecond:    j.state.SpeedMps,
		ProgressPercentage:      j.state.ProgressPercentage(),
		RemainingDistanceMeters: j.state.RemainingDistanceMeters(),
		StartedAt:               j.startedAt,
		UpdatedAt:               j.updatedAt,
	}
}
