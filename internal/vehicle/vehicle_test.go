package vehicle

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journey-simulator/internal/route"
	"journey-simulator/internal/sim"
)

type fakeStarter struct {
	id    string
	route *route.Route
	speed float64
	err   error
}

func (f *fakeStarter) StartJourneyWithRoute(id string, rt *route.Route, speed float64) (sim.Snapshot, error) {
	if f.err != nil {
		return sim.Snapshot{}, f.err
	}
	f.id, f.route, f.speed = id, rt, speed
	return sim.Snapshot{JourneyID: id, Route: rt.Summary(), TotalWaypoints: rt.Len(), Status: sim.StatusInProgress}, nil
}

func newService(f *fakeStarter) *Service {
	return NewService(f, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func validCommand() Command {
	return Command{
		VehicleID:     " truck-9 ",
		StartLocation: &Location{Lat: 38.7, Lon: -9.1},
		EndLocation:   &Location{Lat: 38.8, Lon: -9.2},
		SpeedMps:      12,
	}
}

func TestStartBuildsStraightLineRoute(t *testing.T) {
	f := &fakeStarter{}
	snap, err := newService(f).Start(validCommand())
	require.NoError(t, err)

	assert.Equal(t, "truck-9", snap.JourneyID)
	assert.Equal(t, "truck-9", f.id)
	assert.Equal(t, 12.0, f.speed)
	require.NotNil(t, f.route)
	assert.Equal(t, DefaultIntermediatePoints+2, f.route.Len())
	assert.Equal(t, 38.7, f.route.StartPoint().Latitude)
	assert.Equal(t, -9.2, f.route.EndPoint().Longitude)
}

func TestStartHonoursIntermediatePoints(t *testing.T) {
	f := &fakeStarter{}
	cmd := validCommand()
	zero := 0
	cmd.IntermediatePoints = &zero

	_, err := newService(f).Start(cmd)
	require.NoError(t, err)
	assert.Equal(t, 2, f.route.Len())
}

func TestStartValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Command)
	}{
		{"blank vehicle id", func(c *Command) { c.VehicleID = "   " }},
		{"missing start", func(c *Command) { c.StartLocation = nil }},
		{"missing end", func(c *Command) { c.EndLocation = nil }},
		{"zero speed", func(c *Command) { c.SpeedMps = 0 }},
		{"negative speed", func(c *Command) { c.SpeedMps = -3 }},
		{"latitude out of range", func(c *Command) { c.StartLocation.Lat = 91 }},
		{"negative intermediate points", func(c *Command) { n := -1; c.IntermediatePoints = &n }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeStarter{}
			cmd := validCommand()
			tt.mutate(&cmd)

			_, err := newService(f).Start(cmd)
			assert.ErrorIs(t, err, sim.ErrInvalidArgument)
			assert.Nil(t, f.route)
		})
	}
}

func TestStartPropagatesRegistryErrors(t *testing.T) {
	f := &fakeStarter{err: sim.ErrJourneyAlreadyExists}
	_, err := newService(f).Start(validCommand())
	assert.ErrorIs(t, err, sim.ErrJourneyAlreadyExists)
}

func TestStartWithRealManager(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cat, err := route.NewCatalog()
	require.NoError(t, err)
	reg := sim.NewRegistry(cat, nil, nil, logger)

	svc := NewService(reg, logger)
	snap, err := svc.Start(validCommand())
	require.NoError(t, err)
	assert.Equal(t, sim.StatusInProgress, snap.Status)
	assert.True(t, reg.JourneyExists("truck-9"))

	_, err = svc.Start(validCommand())
	assert.ErrorIs(t, err, sim.ErrJourneyAlreadyExists)
}
