package route

import "journey-simulator/internal/geo"

type builtinRoute struct {
	id, name, description string
	points                [][2]float64
	durationSeconds       int
}

// Fixed city routes used when no store or routes file is configured.
var builtinRoutes = []builtinRoute{
	{
		id:              "route-1",
		name:            "Baixa to Belem",
		description:     "Riverside run from Praca do Comercio west to the Belem tower",
		durationSeconds: 900,
		points: [][2]float64{
			{38.70760, -9.13650},
			{38.70690, -9.14500},
			{38.70520, -9.15480},
			{38.70290, -9.16800},
			{38.69880, -9.18150},
			{38.69560, -9.19500},
			{38.69330, -9.20600},
			{38.69160, -9.21590},
		},
	},
	{
		id:              "route-2",
		name:            "Marques de Pombal to Airport",
		description:     "North along Avenida da Republica toward Humberto Delgado airport",
		durationSeconds: 780,
		points: [][2]float64{
			{38.72530, -9.14990},
			{38.73250, -9.14620},
			{38.73690, -9.14540},
			{38.74580, -9.14190},
			{38.75240, -9.13940},
			{38.76050, -9.13420},
			{38.76940, -9.12820},
			{38.77420, -9.13420},
		},
	},
	{
		id:              "route-3",
		name:            "Alfama loop",
		description:     "Short loop through the old town streets",
		durationSeconds: 420,
		points: [][2]float64{
			{38.71100, -9.13000},
			{38.71250, -9.12950},
			{38.71390, -9.12760},
			{38.71330, -9.12510},
			{38.71180, -9.12420},
			{38.71040, -9.12600},
			{38.71100, -9.13000},
		},
	},
}

// Builtin returns the fixed catalog.
func Builtin() *Catalog {
	routes := make([]*Route, 0, len(builtinRoutes))
	for _, b := range builtinRoutes {
		pts := make([]geo.Coordinate, 0, len(b.points))
		for _, p := range b.points {
			pts = append(pts, geo.Coordinate{Latitude: p[0], Longitude: p[1]})
		}
		r, err := New(b.id, b.name, b.description, pts, b.durationSeconds)
		if err != nil {
			panic(err)
		}
		routes = append(routes, r)
	}
	c, err := NewCatalog(routes...)
	if err != nil {
		panic(err)
	}
	return c
}
