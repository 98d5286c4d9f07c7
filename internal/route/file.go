package route

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"journey-simulator/internal/geo"
)

type fileRoute struct {
	ID                       string      `yaml:"id" validate:"required"`
	Name                     string      `yaml:"name" validate:"required"`
	Description              string      `yaml:"description"`
	Waypoints                [][]float64 `yaml:"waypoints" validate:"omitempty,dive,len=2"`
	Polyline                 string      `yaml:"polyline" validate:"required_without=Waypoints"`
	EstimatedDurationSeconds int         `yaml:"estimatedDurationSeconds" validate:"gte=0"`
}

type fileCatalog struct {
	Routes []fileRoute `yaml:"routes" validate:"required,min=1,dive"`
}

// LoadFile reads a YAML route catalog. Each route gives either a waypoints
// list of [lat, lon] pairs or an encoded polyline.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseYAML(data)
}

func ParseYAML(data []byte) (*Catalog, error) {
	var fc fileCatalog
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse routes: %w", err)
	}
	v := validator.New()
	if err := v.Struct(fc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	routes := make([]*Route, 0, len(fc.Routes))
	for _, fr := range fc.Routes {
		var (
			r   *Route
			err error
		)
		if len(fr.Waypoints) > 0 {
			pts := make([]geo.Coordinate, 0, len(fr.Waypoints))
			for _, p := range fr.Waypoints {
				pts = append(pts, geo.Coordinate{Latitude: p[0], Longitude: p[1]})
			}
			r, err = New(fr.ID, fr.Name, fr.Description, pts, fr.EstimatedDurationSeconds)
		} else {
			r, err = FromPolyline(fr.ID, fr.Name, fr.Description, fr.Polyline, fr.EstimatedDurationSeconds)
		}
		if err != nil {
			return nil, err
		}
		routes = append(routes, r)
	}
	return NewCatalog(routes...)
}
