package notify

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const notificationQueueName = "clinic_notification_queue"

// AMQPDispatcher publishes events to a durable RabbitMQ queue consumed by
// the external notification service.
type AMQPDispatcher struct {
	ch  *amqp.Channel
	log *zap.Logger
}

func NewAMQPDispatcher(conn *amqp.Connection, log *zap.Logger) (*AMQPDispatcher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		notificationQueueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("declare notification queue: %w", err)
	}

	return &AMQPDispatcher{ch: ch, log: log}, nil
}

func (d *AMQPDispatcher) Dispatch(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", ev.Type, err)
	}

	err = d.ch.PublishWithContext(ctx,
		"",                    // default exchange
		notificationQueueName, // routing key
		false,                 // mandatory
		false,                 // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish event %s: %w", ev.Type, err)
	}

	d.log.Debug("event published",
		zap.String("event_type", ev.Type),
		zap.String("queue", notificationQueueName),
	)
	return nil
}

func (d *AMQPDispatcher) Close() error {
	return d.ch.Close()
}
