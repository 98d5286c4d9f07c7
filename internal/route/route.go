// Package route holds the immutable Route value and the catalog of routes a
// journey can be started on.
package route

import (
	"errors"
	"fmt"
	"math"

	"github.com/twpayne/go-polyline"

	"journey-simulator/internal/geo"
)

// NominalSpeedMps is used to estimate a route's duration when none is given.
const NominalSpeedMps = 13.89

var (
	ErrNotFound = errors.New("route not found")
	ErrInvalid  = errors.New("invalid route")
)

// Route is an ordered path of at least two waypoints. It is never mutated after
// construction and may be shared by any number of journeys.
type Route struct {
	id                string
	name              string
	description       string
	waypoints         []geo.Coordinate
	totalDistance     float64
	estimatedDuration int
}

// Summary is the JSON view of a route without its waypoints.
type Summary struct {
	ID                       string         `json:"id"`
	Name                     string         `json:"name"`
	Description              string         `json:"description,omitempty"`
	TotalDistanceMeters      float64        `json:"totalDistanceMeters"`
	EstimatedDurationSeconds int            `json:"estimatedDurationSeconds"`
	WaypointCount            int            `json:"waypointCount"`
	StartPoint               geo.Coordinate `json:"startPoint"`
	EndPoint                 geo.Coordinate `json:"endPoint"`
}

type Detail struct {
	Summary
	Waypoints []geo.Coordinate `json:"waypoints"`
}

// New builds a route. A non-positive duration is estimated from the path
// length at NominalSpeedMps.
func New(id, name, description string, waypoints []geo.Coordinate, estimatedDurationSeconds int) (*Route, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrInvalid)
	}
	if len(waypoints) < 2 {
		return nil, fmt.Errorf("%w: route %s needs at least 2 waypoints, got %d", ErrInvalid, id, len(waypoints))
	}
	pts := make([]geo.Coordinate, len(waypoints))
	copy(pts, waypoints)
	total := geo.PathLength(pts)
	if estimatedDurationSeconds <= 0 {
		estimatedDurationSeconds = int(math.Round(total / NominalSpeedMps))
	}
	return &Route{
		id:                id,
		name:              name,
		description:       description,
		waypoints:         pts,
		totalDistance:     total,
		estimatedDuration: estimatedDurationSeconds,
	}, nil
}

// StraightLine interpolates latitude and longitude linearly between start and
// end, producing intermediate+2 waypoints.
func StraightLine(id, name string, start, end geo.Coordinate, intermediate int) (*Route, error) {
	if intermediate < 0 {
		return nil, fmt.Errorf("%w: negative intermediate point count %d", ErrInvalid, intermediate)
	}
	n := intermediate + 2
	pts := make([]geo.Coordinate, n)
	for i := 0; i < n; i++ {
		pts[i] = geo.Interpolate(start, end, float64(i)/float64(n-1))
	}
	// avoid float drift on the final point
	pts[n-1] = end
	desc := fmt.Sprintf("straight line from %.6f,%.6f to %.6f,%.6f", start.Latitude, start.Longitude, end.Latitude, end.Longitude)
	return New(id, name, desc, pts, 0)
}

// FromPolyline decodes a Google encoded polyline (precision 1e5).
func FromPolyline(id, name, description, encoded string, estimatedDurationSeconds int) (*Route, error) {
	pts, err := DecodePolyline(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: route %s: %v", ErrInvalid, id, err)
	}
	return New(id, name, description, pts, estimatedDurationSeconds)
}

func DecodePolyline(encoded string) ([]geo.Coordinate, error) {
	coords, rest, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("trailing polyline data (%d bytes)", len(rest))
	}
	pts := make([]geo.Coordinate, 0, len(coords))
	for _, c := range coords {
		pts = append(pts, geo.Coordinate{Latitude: c[0], Longitude: c[1]})
	}
	return pts, nil
}

func EncodePolyline(pts []geo.Coordinate) string {
	coords := make([][]float64, 0, len(pts))
	for _, p := range pts {
		coords = append(coords, []float64{p.Latitude, p.Longitude})
	}
	return string(polyline.EncodeCoords(coords))
}

func (r *Route) ID() string                    { return r.id }
func (r *Route) Name() string                  { return r.name }
func (r *Route) Description() string           { return r.description }
func (r *Route) TotalDistanceMeters() float64  { return r.totalDistance }
func (r *Route) EstimatedDurationSeconds() int { return r.estimatedDuration }
func (r *Route) Len() int                      { return len(r.waypoints) }
func (r *Route) Waypoint(i int) geo.Coordinate { return r.waypoints[i] }
func (r *Route) StartPoint() geo.Coordinate    { return r.waypoints[0] }
func (r *Route) EndPoint() geo.Coordinate      { return r.waypoints[len(r.waypoints)-1] }

// Waypoints returns a copy of the path.
func (r *Route) Waypoints() []geo.Coordinate {
	out := make([]geo.Coordinate, len(r.waypoints))
	copy(out, r.waypoints)
	return out
}

func (r *Route) Summary() Summary {
	return Summary{
		ID:                       r.id,
		Name:                     r.name,
		Description:              r.description,
		TotalDistanceMeters:      r.totalDistance,
		EstimatedDurationSeconds: r.estimatedDuration,
		WaypointCount:            len(r.waypoints),
		StartPoint:               r.StartPoint(),
		EndPoint:                 r.EndPoint(),
	}
}

func (r *Route) Detail() Detail {
	return Detail{Summary: r.Summary(), Waypoints: r.Waypoints()}
}
