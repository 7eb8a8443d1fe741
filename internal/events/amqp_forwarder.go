package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// AMQPPublisher is the subset of *amqp.Channel used by the forwarder.
type AMQPPublisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPForwarder republishes events on a topic exchange, routed by event
// type, for downstream consumers such as a SIEM.
type AMQPForwarder struct {
	mu        sync.Mutex
	publisher AMQPPublisher
	exchange  string
	logger    *zap.Logger
	closer    func() error
}

// NewAMQPForwarder wraps an existing publisher.
func NewAMQPForwarder(publisher AMQPPublisher, exchange string, logger *zap.Logger) *AMQPForwarder {
	return &AMQPForwarder{publisher: publisher, exchange: exchange, logger: logger, closer: func() error { return nil }}
}

// DialAMQPForwarder connects to url and declares a durable topic exchange.
func DialAMQPForwarder(url, exchange string, logger *zap.Logger) (*AMQPForwarder, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp declare exchange %s: %w", exchange, err)
	}

	f := NewAMQPForwarder(ch, exchange, logger)
	f.closer = func() error {
		_ = ch.Close()
		return conn.Close()
	}
	logger.Info("amqp forwarder connected", zap.String("exchange", exchange))
	return f, nil
}

// Register subscribes the forwarder to each event type.
func (f *AMQPForwarder) Register(dispatcher Dispatcher, types ...EventType) {
	for _, t := range types {
		dispatcher.Subscribe(t, f.Forward)
	}
}

// Forward publishes event as persistent JSON with the event type as
// routing key.
func (f *AMQPForwarder) Forward(_ context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.ID, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	err = f.publisher.Publish(f.exchange, string(event.Type), false, false, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    event.ID,
		Timestamp:    event.Timestamp,
		Type:         string(event.Type),
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish event %s: %w", event.ID, err)
	}
	return nil
}

// Close releases the channel and connection when the forwarder dialled them.
func (f *AMQPForwarder) Close() error {
	if f == nil {
		return nil
	}
	return f.closer()
}
