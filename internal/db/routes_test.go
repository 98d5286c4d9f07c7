package db

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journey-simulator/internal/geo"
	"journey-simulator/internal/route"
)

// openTestStore connects to TEST_DATABASE_URL; tests are skipped without it.
func openTestStore(t *testing.T) *RouteStore {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	conn, err := Connect(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	s := NewRouteStore(conn)
	require.NoError(t, s.EnsureSchema(context.Background()))
	_, err = conn.Exec(`DELETE FROM routes`)
	require.NoError(t, err)
	return s
}

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.vals[i].(string)
		case *int:
			*p = r.vals[i].(int)
		}
	}
	return nil
}

func TestScanRoute(t *testing.T) {
	enc := route.EncodePolyline([]geo.Coordinate{{38.7, -9.1}, {38.8, -9.2}})
	r, err := scanRoute(fakeRow{vals: []any{"r1", "Name", "Desc", enc, 90}})
	require.NoError(t, err)
	assert.Equal(t, "r1", r.ID())
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 90, r.EstimatedDurationSeconds())

	_, err = scanRoute(fakeRow{vals: []any{"r1", "Name", "Desc", "", 90}})
	assert.ErrorIs(t, err, route.ErrInvalid)

	_, err = scanRoute(fakeRow{err: io.ErrUnexpectedEOF})
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestRouteStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.FindByID(ctx, "route-1")
	assert.ErrorIs(t, err, route.ErrNotFound)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := LoadCatalog(ctx, s, route.Builtin(), logger)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Count())

	stored, err := s.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	got, err := s.FindByID(ctx, "route-1")
	require.NoError(t, err)
	want, _ := route.Builtin().FindByID("route-1")
	assert.Equal(t, want.Len(), got.Len())
	assert.InDelta(t, want.TotalDistanceMeters(), got.TotalDistanceMeters(), 1)
}
