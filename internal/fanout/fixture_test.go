package fanout

import (
	"journey-simulator/internal/geo"
	"journey-simulator/internal/route"
)

func routeFixture() (*route.Catalog, error) {
	r, err := route.New("fixture", "fixture", "", []geo.Coordinate{{0, 0}, {0, 0.01}, {0, 0.02}}, 0)
	if err != nil {
		return nil, err
	}
	return route.NewCatalog(r)
}
