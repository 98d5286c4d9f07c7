package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journey-simulator/internal/geo"
)

func TestNew(t *testing.T) {
	pts := []geo.Coordinate{{0, 0}, {0, 1}, {0, 2}}
	r, err := New("r1", "Test", "", pts, 0)
	require.NoError(t, err)

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, geo.Coordinate{0, 0}, r.StartPoint())
	assert.Equal(t, geo.Coordinate{0, 2}, r.EndPoint())
	assert.InDelta(t, 2*111139, r.TotalDistanceMeters(), 1e-6)
	assert.Equal(t, 16003, r.EstimatedDurationSeconds())

	// caller's slice is not shared
	pts[0] = geo.Coordinate{5, 5}
	assert.Equal(t, geo.Coordinate{0, 0}, r.Waypoint(0))
}

func TestNewRejectsShortRoutes(t *testing.T) {
	_, err := New("r1", "Test", "", []geo.Coordinate{{0, 0}}, 0)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = New("", "Test", "", []geo.Coordinate{{0, 0}, {1, 1}}, 0)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestStraightLine(t *testing.T) {
	start := geo.Coordinate{Latitude: 10, Longitude: 20}
	end := geo.Coordinate{Latitude: 12, Longitude: 16}

	r, err := StraightLine("v1", "vehicle v1", start, end, 3)
	require.NoError(t, err)
	require.Equal(t, 5, r.Len())

	want := []geo.Coordinate{{10, 20}, {10.5, 19}, {11, 18}, {11.5, 17}, {12, 16}}
	for i, w := range want {
		assert.InDelta(t, w.Latitude, r.Waypoint(i).Latitude, 1e-9, "lat %d", i)
		assert.InDelta(t, w.Longitude, r.Waypoint(i).Longitude, 1e-9, "lon %d", i)
	}

	r, err = StraightLine("v2", "", start, end, 0)
	require.NoError(t, err)
	assert.Equal(t, []geo.Coordinate{start, end}, r.Waypoints())

	_, err = StraightLine("v3", "", start, end, -1)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestPolylineRoundTrip(t *testing.T) {
	pts := []geo.Coordinate{{38.5, -120.2}, {40.7, -120.95}, {43.252, -126.453}}
	enc := EncodePolyline(pts)
	assert.Equal(t, "_p~iF~ps|U_ulLnnqC_mqNvxq`@", enc)

	r, err := FromPolyline("p1", "poly", "", enc, 60)
	require.NoError(t, err)
	require.Equal(t, 3, r.Len())
	for i := range pts {
		assert.InDelta(t, pts[i].Latitude, r.Waypoint(i).Latitude, 1e-5)
		assert.InDelta(t, pts[i].Longitude, r.Waypoint(i).Longitude, 1e-5)
	}
	assert.Equal(t, 60, r.EstimatedDurationSeconds())
}

func TestFromPolylineInvalid(t *testing.T) {
	_, err := FromPolyline("p1", "poly", "", "_p~iF", 0)
	assert.ErrorIs(t, err, ErrInvalid)
}
