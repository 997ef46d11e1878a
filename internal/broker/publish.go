package broker

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publish sends a persistent JSON message to a queue through the default
// exchange with the given retry count in its headers.
func (b *Broker) Publish(ctx context.Context, queue string, body []byte, retries int) error {
	ch, err := b.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	err = ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		MessageId:    uuid.NewString(),
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Headers:      amqp.Table{HeaderRetries: int32(retries)},
	})
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", queue, err)
	}
	return nil
}

// Republish copies a delivery back onto its queue with the retry count
// incremented. It always opens a fresh publish channel: reusing the
// consumption channel to publish during a nack is a known cause of
// closed-channel faults under load.
func (b *Broker) Republish(ctx context.Context, queue string, d amqp.Delivery) error {
	return b.Publish(ctx, queue, d.Body, RetryCount(d)+1)
}

// DeadLetter routes a delivery to the DLX with the failure reason in its
// x-error header. Like Republish, it publishes on an isolated channel.
func (b *Broker) DeadLetter(ctx context.Context, routingKey string, d amqp.Delivery, reason string) error {
	ch, err := b.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	err = ch.PublishWithContext(ctx, DLXExchange, routingKey, false, false, amqp.Publishing{
		MessageId:    uuid.NewString(),
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         d.Body,
		Headers: amqp.Table{
			HeaderRetries: int32(RetryCount(d)),
			HeaderError:   reason,
		},
	})
	if err != nil {
		return fmt.Errorf("dead-lettering to %s: %w", routingKey, err)
	}
	return nil
}
