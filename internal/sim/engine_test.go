package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journey-simulator/internal/geo"
	"journey-simulator/internal/route"
)

// unitSpeed covers one degree at the equator in ten seconds.
const unitSpeed = geo.MetersPerDegree / 10

func lineRoute(t *testing.T, pts ...geo.Coordinate) *route.Route {
	t.Helper()
	r, err := route.New("line", "line", "", pts, 0)
	require.NoError(t, err)
	return r
}

func running(r *route.Route, speed float64) State {
	s := NewState(r, speed)
	s.Status = StatusInProgress
	return s
}

func TestAdvancePartwayAlongSecondSegment(t *testing.T) {
	r := lineRoute(t, geo.Coordinate{0, 0}, geo.Coordinate{0, 1}, geo.Coordinate{0, 2})
	s := running(r, unitSpeed)

	pos, done := Advance(&s, 15)

	assert.False(t, done)
	assert.Equal(t, StatusInProgress, s.Status)
	// heading to (0,2) after passing (0,1); half of that segment covered
	assert.Equal(t, 2, s.WaypointIndex)
	assert.InDelta(t, 0, pos.Latitude, 1e-9)
	assert.InDelta(t, 1.5, pos.Longitude, 1e-9)
	assert.Equal(t, pos, s.Position)
}

func TestAdvanceZeroElapsedIsNoop(t *testing.T) {
	r := lineRoute(t, geo.Coordinate{0, 0}, geo.Coordinate{0, 1}, geo.Coordinate{0, 2})
	s := running(r, unitSpeed)
	Advance(&s, 3)
	before := s

	Advance(&s, 0)

	assert.Equal(t, before, s)
}

func TestAdvanceCompletesAndStaysInert(t *testing.T) {
	r := lineRoute(t, geo.Coordinate{0, 0}, geo.Coordinate{0, 1}, geo.Coordinate{0, 2})
	s := running(r, unitSpeed)

	pos, done := Advance(&s, 1000)

	require.True(t, done)
	assert.Equal(t, StatusCompleted, s.Status)
	assert.Equal(t, 3, s.WaypointIndex)
	assert.Equal(t, geo.Coordinate{0, 2}, pos)
	assert.Equal(t, 100.0, s.ProgressPercentage())

	after := s
	_, done = Advance(&s, 50)
	assert.True(t, done)
	assert.Equal(t, after, s)
}

func TestAdvanceSkipsZeroLengthSegments(t *testing.T) {
	r := lineRoute(t,
		geo.Coordinate{0, 0}, geo.Coordinate{0, 0}, geo.Coordinate{0, 0},
		geo.Coordinate{0, 1}, geo.Coordinate{0, 1})
	s := running(r, unitSpeed)

	Advance(&s, 5)
	assert.Equal(t, 3, s.WaypointIndex)
	assert.InDelta(t, 0.5, s.Position.Longitude, 1e-9)

	// the trailing zero-length segment needs travel left over to be consumed
	_, done := Advance(&s, 6)
	assert.True(t, done)
	assert.Equal(t, 5, s.WaypointIndex)
}

func TestAdvanceIgnoresInactiveStates(t *testing.T) {
	r := lineRoute(t, geo.Coordinate{0, 0}, geo.Coordinate{0, 1})
	for _, st := range []Status{StatusCreated, StatusPaused, StatusStopped} {
		s := NewState(r, unitSpeed)
		s.Status = st
		before := s
		_, done := Advance(&s, 100)
		assert.False(t, done, st)
		assert.Equal(t, before, s, st)
	}
}

func TestAdvanceMarksCompletedWhenIndexAtEnd(t *testing.T) {
	r := lineRoute(t, geo.Coordinate{0, 0}, geo.Coordinate{0, 1})
	s := running(r, unitSpeed)
	s.WaypointIndex = 2

	_, done := Advance(&s, 1)
	assert.True(t, done)
	assert.Equal(t, StatusCompleted, s.Status)
}

func TestAdvanceTravelledDistance(t *testing.T) {
	r := lineRoute(t,
		geo.Coordinate{0, 0}, geo.Coordinate{0, 0.3}, geo.Coordinate{0.2, 0.3},
		geo.Coordinate{0.2, 0.9}, geo.Coordinate{0.5, 0.9})
	total := r.TotalDistanceMeters()

	steps := []float64{0.5, 1, 2.5, 0, 3, 7, 0.25, 10, 40}
	s := running(r, unitSpeed)
	travelled := 0.0
	lastIndex := s.WaypointIndex
	for _, dt := range steps {
		remainingBefore := s.RemainingDistanceMeters()
		Advance(&s, dt)
		step := remainingBefore - s.RemainingDistanceMeters()
		travelled += step

		assert.InDelta(t, min(unitSpeed*dt, remainingBefore), step, 1e-3, "dt=%v", dt)
		assert.GreaterOrEqual(t, s.WaypointIndex, lastIndex)
		assert.LessOrEqual(t, s.WaypointIndex, r.Len())
		lastIndex = s.WaypointIndex
	}
	assert.InDelta(t, total, travelled, 1e-3)
	assert.Equal(t, StatusCompleted, s.Status)
}

func TestProgressPercentage(t *testing.T) {
	r := lineRoute(t, geo.Coordinate{0, 0}, geo.Coordinate{0, 1}, geo.Coordinate{0, 2}, geo.Coordinate{0, 3})
	s := running(r, unitSpeed)
	assert.Zero(t, s.ProgressPercentage())
	s.WaypointIndex = 2
	assert.Equal(t, 50.0, s.ProgressPercentage())
}
