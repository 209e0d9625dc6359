package eventpublisher

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/iho/ledgercore/internal/domain"
)

// amqpChannel is the part of *amqp.Channel the publisher uses.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes outbox events to a durable RabbitMQ queue.
type AMQPPublisher struct {
	conn    *amqp.Connection
	channel amqpChannel
	queue   string
	logger  zerolog.Logger
}

// NewAMQPPublisher dials the broker, retrying while it starts, and declares the queue.
func NewAMQPPublisher(ctx context.Context, url, queueName string, logger zerolog.Logger) (*AMQPPublisher, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 30 * time.Second

	var conn *amqp.Connection
	err := backoff.RetryNotify(func() error {
		var err error
		conn, err = amqp.Dial(url)
		return err
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		logger.Warn().Err(err).Dur("retry_in", next).Msg("failed to connect to RabbitMQ, retrying")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare a queue: %w", err)
	}

	p := newAMQPPublisherWithChannel(ch, queueName, logger)
	p.conn = conn

	return p, nil
}

func newAMQPPublisherWithChannel(ch amqpChannel, queueName string, logger zerolog.Logger) *AMQPPublisher {
	return &AMQPPublisher{channel: ch, queue: queueName, logger: logger}
}

// Publish sends the event payload as a persistent JSON message.
func (p *AMQPPublisher) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	headers := amqp.Table{
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
		"command_id":     event.CommandID,
	}
	if event.CorrelationID != "" {
		headers["correlation_id"] = event.CorrelationID
	}

	err := p.channel.PublishWithContext(ctx,
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			MessageId:     event.ID,
			CorrelationId: event.CorrelationID,
			Type:          event.EventType,
			Timestamp:     event.CreatedAt,
			ContentType:   "application/json",
			Headers:       headers,
			Body:          event.Payload,
			DeliveryMode:  amqp.Persistent,
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Debug().Str("event_id", event.ID).Str("queue", p.queue).Msg("published message to RabbitMQ")

	return nil
}

// Close closes the channel and the connection.
func (p *AMQPPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		return err
	}

	if p.conn != nil {
		return p.conn.Close()
	}

	return nil
}
