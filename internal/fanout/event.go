package fanout

import (
	"time"

	"journey-simulator/internal/geo"
	"journey-simulator/internal/sim"
)

type Kind string

const (
	KindStarted   Kind = "journey-started"
	KindUpdate    Kind = "coordinate-update"
	KindCompleted Kind = "journey-completed"
)

// Event is the payload pushed to subscribers and the publish channel.
type Event struct {
	Kind                 Kind           `json:"-"`
	JourneyID            string         `json:"journeyId"`
	Coordinate           geo.Coordinate `json:"coordinate"`
	ProgressPercentage   float64        `json:"progressPercentage"`
	Status               sim.Status     `json:"status"`
	CurrentWaypointIndex int            `json:"currentWaypointIndex"`
	TotalWaypoints       int            `json:"totalWaypoints"`
	Timestamp            time.Time      `json:"timestamp"`
}

func NewEvent(kind Kind, s sim.Snapshot, ts time.Time) Event {
	return Event{
		Kind:                 kind,
		JourneyID:            s.JourneyID,
		Coordinate:           s.CurrentPosition,
		ProgressPercentage:   s.ProgressPercentage,
		Status:               s.Status,
		CurrentWaypointIndex: s.CurrentWaypointIndex,
		TotalWaypoints:       s.TotalWaypoints,
		Timestamp:            ts,
	}
}

// Result is the outcome of one delivery attempt.
type Result int

const (
	Delivered Result = iota
	Closed
	TimedOut
	Failed
)

func (r Result) String() string {
	switch r {
	case Delivered:
		return "delivered"
	case Closed:
		return "closed"
	case TimedOut:
		return "timed_out"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Reason says why a subscription was removed.
type Reason string

const (
	ReasonCompleted Reason = "completed"
	ReasonStopped   Reason = "stopped"
	ReasonClosed    Reason = "closed"
	ReasonTimedOut  Reason = "timed_out"
	ReasonFailed    Reason = "failed"
	ReasonIdle      Reason = "idle"
	ReasonReplaced  Reason = "replaced"
	ReasonShutdown  Reason = "shutdown"
)

func reasonFor(r Result) Reason {
	switch r {
	case TimedOut:
		return ReasonTimedOut
	case Failed:
		return ReasonFailed
	default:
		return ReasonClosed
	}
}
