// Package vehicle starts journeys from vehicle telemetry commands. The
// journey id is the vehicle id, so published topics are named after it.
package vehicle

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"journey-simulator/internal/geo"
	"journey-simulator/internal/route"
	"journey-simulator/internal/sim"
)

const DefaultIntermediatePoints = 10

type Location struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

func (l Location) Coordinate() geo.Coordinate {
	return geo.Coordinate{Latitude: l.Lat, Longitude: l.Lon}
}

// Command asks for a vehicle to drive in a straight line from StartLocation
// to EndLocation.
type Command struct {
	VehicleID          string    `json:"vehicleId" validate:"required"`
	StartLocation      *Location `json:"startLocation" validate:"required"`
	EndLocation        *Location `json:"endLocation" validate:"required"`
	SpeedMps           float64   `json:"speedMps" validate:"gt=0"`
	IntermediatePoints *int      `json:"intermediatePoints,omitempty" validate:"omitempty,gte=0,lte=10000"`
}

// Starter is the part of sim.Manager the service needs.
type Starter interface {
	StartJourneyWithRoute(id string, rt *route.Route, speedMps float64) (sim.Snapshot, error)
}

type Service struct {
	starter  Starter
	validate *validator.Validate
	logger   *slog.Logger
}

func NewService(starter Starter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{starter: starter, validate: validator.New(), logger: logger}
}

// Validate normalizes cmd in place and reports sim.ErrInvalidArgument for a
// blank vehicle id, missing locations or a non-positive speed.
func (s *Service) Validate(cmd *Command) error {
	cmd.VehicleID = strings.TrimSpace(cmd.VehicleID)
	if err := s.validate.Struct(cmd); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s", sim.ErrInvalidArgument, describe(verrs[0]))
		}
		return fmt.Errorf("%w: %v", sim.ErrInvalidArgument, err)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gt":
		return fe.Field() + " must be greater than " + fe.Param()
	default:
		return fmt.Sprintf("%s fails %s=%s", fe.Namespace(), fe.Tag(), fe.Param())
	}
}

// Start validates cmd, builds its straight-line route and starts the journey.
func (s *Service) Start(cmd Command) (sim.Snapshot, error) {
	if err := s.Validate(&cmd); err != nil {
		return sim.Snapshot{}, err
	}
	n := DefaultIntermediatePoints
	if cmd.IntermediatePoints != nil {
		n = *cmd.IntermediatePoints
	}
	rt, err := route.StraightLine(
		"vehicle-"+cmd.VehicleID,
		"Vehicle "+cmd.VehicleID,
		cmd.StartLocation.Coordinate(),
		cmd.EndLocation.Coordinate(),
		n,
	)
	if err != nil {
		return sim.Snapshot{}, fmt.Errorf("%w: %v", sim.ErrInvalidArgument, err)
	}
	snap, err := s.starter.StartJourneyWithRoute(cmd.VehicleID, rt, cmd.SpeedMps)
	if err != nil {
		return sim.Snapshot{}, err
	}
	s.logger.Info("vehicle journey started",
		"journey_id", snap.JourneyID,
		"waypoints", rt.Len(),
		"distance_m", rt.TotalDistanceMeters(),
	)
	return snap, nil
}
