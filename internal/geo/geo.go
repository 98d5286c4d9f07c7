// Package geo holds the coordinate type and the planar distance approximation
// used by every movement calculation.
package geo

import "math"

// MetersPerDegree is the length of one degree of latitude.
const MetersPerDegree = 111139.0

type Coordinate struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// DistanceMeters approximates the distance between a and b on a flat earth.
// The longitude scale uses a's latitude, so the result is not symmetric.
func DistanceMeters(a, b Coordinate) float64 {
	dy := (b.Latitude - a.Latitude) * MetersPerDegree
	dx := (b.Longitude - a.Longitude) * MetersPerDegree * math.Cos(a.Latitude*math.Pi/180)
	return math.Sqrt(dx*dx + dy*dy)
}

// Interpolate moves from a toward b by fraction, independently on each axis.
func Interpolate(a, b Coordinate, fraction float64) Coordinate {
	return Coordinate{
		Latitude:  a.Latitude + (b.Latitude-a.Latitude)*fraction,
		Longitude: a.Longitude + (b.Longitude-a.Longitude)*fraction,
	}
}

// PathLength sums DistanceMeters over consecutive points.
func PathLength(pts []Coordinate) float64 {
	sum := 0.0
	for i := 1; i < len(pts); i++ {
		sum += DistanceMeters(pts[i-1], pts[i])
	}
	return sum
}
