package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"journey-simulator/internal/route"
)

const schema = `
CREATE TABLE IF NOT EXISTS routes (
  id                   TEXT PRIMARY KEY,
  name                 TEXT NOT NULL,
  description          TEXT NOT NULL DEFAULT '',
  geometry             TEXT NOT NULL,
  total_distance_m     DOUBLE PRECISION NOT NULL,
  estimated_duration_s INTEGER NOT NULL
)`

// RouteStore persists routes with their waypoints stored as an encoded polyline.
type RouteStore struct {
	db *sql.DB
}

func NewRouteStore(db *sql.DB) *RouteStore {
	return &RouteStore{db: db}
}

func (s *RouteStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create routes table: %w", err)
	}
	return nil
}

func (s *RouteStore) FindAll(ctx context.Context) ([]*route.Route, error) {
	q := `SELECT id, name, description, geometry, estimated_duration_s FROM routes ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	defer rows.Close()
	var out []*route.Route
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *RouteStore) FindByID(ctx context.Context, id string) (*route.Route, error) {
	q := `SELECT id, name, description, geometry, estimated_duration_s FROM routes WHERE id = $1`
	r, err := scanRoute(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", route.ErrNotFound, id)
	}
	return r, err
}

// Save inserts the route or replaces the stored row with the same id.
func (s *RouteStore) Save(ctx context.Context, r *route.Route) error {
	q := `
INSERT INTO routes (id, name, description, geometry, total_distance_m, estimated_duration_s)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
  name = EXCLUDED.name,
  description = EXCLUDED.description,
  geometry = EXCLUDED.geometry,
  total_distance_m = EXCLUDED.total_distance_m,
  estimated_duration_s = EXCLUDED.estimated_duration_s`
	_, err := s.db.ExecContext(ctx, q,
		r.ID(), r.Name(), r.Description(), route.EncodePolyline(r.Waypoints()),
		r.TotalDistanceMeters(), r.EstimatedDurationSeconds())
	if err != nil {
		return fmt.Errorf("save route %s: %w", r.ID(), err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoute(row rowScanner) (*route.Route, error) {
	var (
		id, name, desc, geometry string
		duration                 int
	)
	if err := row.Scan(&id, &name, &desc, &geometry, &duration); err != nil {
		return nil, err
	}
	return route.FromPolyline(id, name, desc, geometry, duration)
}

// LoadCatalog reads every stored route into a catalog. When the table is empty
// and seed is non-nil, the seed routes are saved first.
func LoadCatalog(ctx context.Context, s *RouteStore, seed *route.Catalog, logger *slog.Logger) (*route.Catalog, error) {
	routes, err := s.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(routes) == 0 && seed != nil {
		for _, r := range seed.FindAll() {
			if err := s.Save(ctx, r); err != nil {
				return nil, err
			}
		}
		logger.Info("seeded route store", "routes", seed.Count())
		routes = seed.FindAll()
	}
	return route.NewCatalog(routes...)
}
