package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes each event kind to its own topic, <prefix>.<event>,
// keyed by journey id so one journey stays on one partition.
type KafkaPublisher struct {
	w           *kafka.Writer
	prefix      string
	logSubjects bool
	metrics     PublisherMetrics
	logger      *slog.Logger
}

func NewKafkaPublisher(brokers []string, prefix string, logSubjects bool, m PublisherMetrics, logger *slog.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if logger == nil {
		logger = slog.Default()
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	if m != nil {
		// the writer dials lazily; report it as connected until a write fails
		m.SetConnected(true)
	}
	return &KafkaPublisher{w: w, prefix: prefix, logSubjects: logSubjects, metrics: m, logger: logger}, nil
}

func kafkaTopic(prefix, event string) string {
	topic := subjectToken(event)
	if prefix != "" {
		topic = prefix + "." + topic
	}
	return topic
}

func (p *KafkaPublisher) Publish(ctx context.Context, msg Message) error {
	topic := kafkaTopic(p.prefix, msg.Event)
	if p.logSubjects {
		p.logger.Debug("kafka publish", "topic", topic, "key", msg.Key)
	}
	start := time.Now()
	err := p.w.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(msg.Key),
		Value: msg.Payload,
		Time:  start,
	})
	observe(p.metrics, start, err)
	if p.metrics != nil {
		p.metrics.SetConnected(err == nil)
	}
	return err
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
