package broker

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ignite/alertops/internal/pkg/logger"
)

// PermanentError marks a failure that must never be retried: the message
// goes straight to the dead-letter queue.
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps an error as non-retryable.
func Permanent(err error) error { return &PermanentError{Err: err} }

// Handler processes one delivery. A nil return acknowledges the message;
// a PermanentError dead-letters it; any other error triggers the bounded
// retry protocol.
type Handler func(ctx context.Context, d amqp.Delivery) error

// Consumer drains one stage queue with a bounded number of in-flight
// messages and applies the retry protocol on failure.
type Consumer struct {
	Broker     *Broker
	Queue      Queue
	Prefetch   int
	MaxRetries int
	Tag        string
	Handler    Handler

	log *logger.Logger
}

// Run consumes until ctx is cancelled or the channel dies. A dead channel
// returns an error so the supervisor can restart the consumer; an
// unacknowledged in-flight message is redelivered by the broker.
func (c *Consumer) Run(ctx context.Context) error {
	c.log = logger.With(c.Tag)

	ch, err := c.Broker.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	prefetch := c.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("setting prefetch on %s: %w", c.Queue.Name, err)
	}

	deliveries, err := ch.Consume(c.Queue.Name, c.Tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consuming %s: %w", c.Queue.Name, err)
	}

	c.log.Info("consumer started", "queue", c.Queue.Name, "prefetch", prefetch)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("consumer channel for %s closed", c.Queue.Name)
			}
			c.handle(ctx, d)
		}
	}
}

// handle runs the stage handler and settles the delivery. Every path ends
// in ack, nack+republish, or nack+DLQ; processing errors never escape.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	err := c.Handler(ctx, d)
	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			c.log.Error("ack failed", "queue", c.Queue.Name, "error", ackErr.Error())
		}
		return
	}

	if ctx.Err() != nil {
		// Shutting down: leave the message unacknowledged so the broker
		// redelivers it.
		return
	}

	var perm *PermanentError
	retries := RetryCount(d)
	switch {
	case errors.As(err, &perm):
		c.log.Warn("permanent failure, dead-lettering",
			"queue", c.Queue.Name, "error", err.Error())
		c.settle(ctx, d, err.Error())
	case retries >= c.MaxRetries:
		c.log.Warn("retry budget exhausted, dead-lettering",
			"queue", c.Queue.Name, "retries", retries, "error", err.Error())
		c.settle(ctx, d, err.Error())
	default:
		c.log.Info("transient failure, republishing",
			"queue", c.Queue.Name, "retries", retries, "error", err.Error())
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.log.Error("nack failed", "queue", c.Queue.Name, "error", nackErr.Error())
			return
		}
		if pubErr := c.Broker.Republish(ctx, c.Queue.Name, d); pubErr != nil {
			c.log.Error("republish failed, message lost to redelivery",
				"queue", c.Queue.Name, "error", pubErr.Error())
		}
	}
}

// settle nacks without requeue and parks the message on the DLQ.
func (c *Consumer) settle(ctx context.Context, d amqp.Delivery, reason string) {
	if err := d.Nack(false, false); err != nil {
		c.log.Error("nack failed", "queue", c.Queue.Name, "error", err.Error())
		return
	}
	if err := c.Broker.DeadLetter(ctx, c.Queue.RoutingKey, d, reason); err != nil {
		c.log.Error("dead-letter publish failed", "queue", c.Queue.Name, "error", err.Error())
	}
}
