package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPSender publishes messages as persistent JSON jobs to a durable
// RabbitMQ queue for an external mailer to consume.
type AMQPSender struct {
	url    string
	queue  string
	logger *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPSender creates a sender. The connection is opened on first use.
func NewAMQPSender(url, queue string, logger *slog.Logger) *AMQPSender {
	return &AMQPSender{
		url:    url,
		queue:  queue,
		logger: logger.With("component", "notify.amqp", "queue", queue),
	}
}

// Send publishes msg. A failed publish drops the channel so the next call reconnects.
func (s *AMQPSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal mail job: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ch, err := s.channel()
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", s.queue, false, false, pub); err != nil {
		s.resetLocked()
		return fmt.Errorf("publish mail job: %w", err)
	}
	return nil
}

// channel returns an open channel with the queue declared. Caller holds mu.
func (s *AMQPSender) channel() (*amqp.Channel, error) {
	if s.ch != nil && !s.ch.IsClosed() {
		return s.ch, nil
	}
	s.resetLocked()

	conn, err := amqp.Dial(s.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(s.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	s.conn, s.ch = conn, ch
	s.logger.Info("amqp channel opened")
	return ch, nil
}

func (s *AMQPSender) resetLocked() {
	if s.ch != nil {
		_ = s.ch.Close()
		s.ch = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

// Close releases the broker connection. It implements server.ShutdownFunc.
func (s *AMQPSender) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	return nil
}
