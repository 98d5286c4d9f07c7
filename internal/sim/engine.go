package sim

import "journey-simulator/internal/geo"

// Advance moves s along its route by elapsedSeconds of travel at s.SpeedMps
// and returns the new position and whether the journey is completed.
//
// Only IN_PROGRESS states move. Several waypoints may be passed in one call
// when the travelled distance covers them. Zero-length segments are consumed
// without dividing by their length.
func Advance(s *State, elapsedSeconds float64) (geo.Coordinate, bool) {
	if s.Status != StatusInProgress || elapsedSeconds <= 0 {
		return s.Position, s.Status == StatusCompleted
	}
	n := s.Route.Len()
	if s.WaypointIndex >= n {
		s.Status = StatusCompleted
		return s.Position, true
	}

	remaining := s.SpeedMps * elapsedSeconds
	for remaining > 0 && s.WaypointIndex < n {
		target := s.Route.Waypoint(s.WaypointIndex)
		d := geo.DistanceMeters(s.Position, target)
		if d == 0 || remaining >= d {
			s.Position = target
			remaining -= d
			s.WaypointIndex++
			continue
		}
		s.Position = geo.Interpolate(s.Position, target, remaining/d)
		remaining = 0
	}

	if s.WaypointIndex >= n {
		s.Status = StatusCompleted
	}
	return s.Position, s.Status == StatusCompleted
}
