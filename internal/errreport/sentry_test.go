package errreport

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDisabledWithoutDSN(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	assert.NoError(t, Init(Config{}, logger))

	assert.NotPanics(t, func() {
		Capture(errors.New("boom"), map[string]string{"journey_id": "j1"})
		CapturePanic("bad", nil)
		Capture(nil, nil)
	})
	assert.True(t, Flush(10*time.Millisecond))
}

func TestInitRejectsMalformedDSN(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	assert.Error(t, Init(Config{DSN: "not a dsn"}, logger))
}
