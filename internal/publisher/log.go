package publisher

import (
	"context"
	"log/slog"
	"time"
)

// LogPublisher writes every event to the structured log. Useful for local
// runs without a broker.
type LogPublisher struct {
	logger  *slog.Logger
	metrics PublisherMetrics
}

func NewLogPublisher(logger *slog.Logger, m PublisherMetrics) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger, metrics: m}
}

func (p *LogPublisher) Publish(ctx context.Context, msg Message) error {
	start := time.Now()
	p.logger.InfoContext(ctx, "journey event",
		"journey_id", msg.Key,
		"event", msg.Event,
		"payload", string(msg.Payload),
	)
	observe(p.metrics, start, nil)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
