package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// AMQPPublisher publishes to a durable topic exchange with routing keys of the
// form journey.<journey>.<event>.
type AMQPPublisher struct {
	conn        *amqp091.Connection
	exchange    string
	logSubjects bool
	metrics     PublisherMetrics
	logger      *slog.Logger

	// amqp channels are not safe for concurrent publishing
	mu sync.Mutex
	ch *amqp091.Channel
}

func NewAMQPPublisher(url, exchange string, logSubjects bool, m PublisherMetrics, logger *slog.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	closed := conn.NotifyClose(make(chan *amqp091.Error, 1))
	go func() {
		if err, ok := <-closed; ok && err != nil {
			logger.Warn("amqp connection closed", "error", err)
		}
		if m != nil {
			m.SetConnected(false)
		}
	}()
	if m != nil {
		m.SetConnected(true)
	}
	logger.Info("connected to amqp", "exchange", exchange)
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange, logSubjects: logSubjects, metrics: m, logger: logger}, nil
}

func amqpRoutingKey(msg Message) string {
	return "journey." + subjectToken(msg.Key) + "." + subjectToken(msg.Event)
}

func (p *AMQPPublisher) Publish(ctx context.Context, msg Message) error {
	key := amqpRoutingKey(msg)
	if p.logSubjects {
		p.logger.Debug("amqp publish", "exchange", p.exchange, "routing_key", key)
	}
	start := time.Now()
	p.mu.Lock()
	err := p.ch.PublishWithContext(ctx,
		p.exchange,
		key,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Type:        msg.Event,
			Body:        msg.Payload,
			Timestamp:   start,
		})
	p.mu.Unlock()
	observe(p.metrics, start, err)
	return err
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	return p.conn.Close()
}
