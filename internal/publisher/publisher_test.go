package publisher

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubjectToken(t *testing.T) {
	tests := map[string]string{
		"vehicle-1":   "vehicle-1",
		" spaced id ": "spaced_id",
		"a.b":         "a_b",
		"wild*>#":     "wild___",
		"path/id":     "path_id",
		"":            "_",
		"   ":         "_",
	}
	for in, want := range tests {
		assert.Equal(t, want, subjectToken(in), "input %q", in)
	}
}

func TestSubjects(t *testing.T) {
	msg := Message{Key: "bus.42", Event: "coordinate-update"}

	assert.Equal(t, "journeys.bus_42.coordinate-update", natsSubject("journeys", msg))
	assert.Equal(t, "bus_42.coordinate-update", natsSubject("", msg))
	assert.Equal(t, "journey.bus_42.coordinate-update", amqpRoutingKey(msg))
	assert.Equal(t, "journeys.coordinate-update", kafkaTopic("journeys", msg.Event))
	assert.Equal(t, "coordinate-update", kafkaTopic("", msg.Event))
}

type countingMetrics struct {
	published, errs, observed int
	connected                 bool
}

func (c *countingMetrics) PublishedInc()                { c.published++ }
func (c *countingMetrics) PublishErrInc()               { c.errs++ }
func (c *countingMetrics) PublishObserve(time.Duration) { c.observed++ }
func (c *countingMetrics) SetConnected(b bool)          { c.connected = b }

func TestObserve(t *testing.T) {
	m := &countingMetrics{}
	observe(m, time.Now(), nil)
	observe(m, time.Now(), errors.New("boom"))
	observe(nil, time.Now(), nil)

	assert.Equal(t, 1, m.published)
	assert.Equal(t, 1, m.errs)
	assert.Equal(t, 2, m.observed)
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	m := &countingMetrics{}
	p := NewLogPublisher(slog.New(slog.NewJSONHandler(&buf, nil)), m)

	err := p.Publish(context.Background(), Message{Key: "v1", Event: "journey-started", Payload: []byte(`{"journeyId":"v1"}`)})
	require.NoError(t, err)
	require.NoError(t, p.Close())

	out := buf.String()
	assert.Contains(t, out, `"journey_id":"v1"`)
	assert.Contains(t, out, `"event":"journey-started"`)
	assert.Equal(t, 1, m.published)
}

func TestKafkaPublisherRequiresBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "journeys", false, nil, nil)
	assert.Error(t, err)
}
