// Package publisher carries journey events to other services over a message
// broker.
package publisher

import (
	"context"
	"strings"
	"time"
)

// Message is one journey event. Key is the journey (or vehicle) id and Event
// the event kind, e.g. "coordinate-update".
type Message struct {
	Key     string
	Event   string
	Payload []byte
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

type PublisherMetrics interface {
	PublishedInc()
	PublishErrInc()
	PublishObserve(d time.Duration)
	SetConnected(connected bool)
}

// observe records one publish attempt.
func observe(m PublisherMetrics, start time.Time, err error) {
	if m == nil {
		return
	}
	m.PublishObserve(time.Since(start))
	if err != nil {
		m.PublishErrInc()
	} else {
		m.PublishedInc()
	}
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS and AMQP topic tokens cannot contain spaces, wildcards or '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "#", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
