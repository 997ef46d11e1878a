// Package broker wraps the AMQP connection: durable queues with
// dead-letter companions, persistent publishing with retry-count headers,
// and prefetch-bounded consumption.
package broker

import (
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ignite/alertops/internal/pkg/logger"
)

// DLXExchange is the direct exchange every dead-letter queue binds to.
const DLXExchange = "dlx"

const (
	// HeaderRetries carries the per-message retry count across republishes.
	HeaderRetries = "x-retries"
	// HeaderError carries the final failure reason on dead-lettered messages.
	HeaderError = "x-error"
)

// Queue describes one stage queue and its dead-letter companion.
type Queue struct {
	Name       string
	DLQ        string
	RoutingKey string // DLX routing key, e.g. "dlq.class"
}

// Broker holds a long-lived connection to the AMQP endpoint and re-dials
// it on demand when it drops.
type Broker struct {
	url string

	mu   sync.Mutex
	conn *amqp.Connection
}

// Connect dials the broker. The returned Broker re-establishes the
// connection transparently when a later operation finds it closed.
func Connect(url string) (*Broker, error) {
	b := &Broker{url: url}
	if _, err := b.connection(); err != nil {
		return nil, err
	}
	return b, nil
}

// Check dials the endpoint with a short timeout and closes the connection
// immediately. Used by the supervisor's broker probe.
func Check(url string, timeout time.Duration) error {
	conn, err := amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(timeout)})
	if err != nil {
		return fmt.Errorf("broker check: %w", err)
	}
	return conn.Close()
}

func (b *Broker) connection() (*amqp.Connection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil && !b.conn.IsClosed() {
		return b.conn, nil
	}
	conn, err := amqp.Dial(b.url)
	if err != nil {
		return nil, fmt.Errorf("dialing broker: %w", err)
	}
	b.conn = conn
	logger.Info("broker connected")
	return conn, nil
}

// Channel opens a fresh channel on the shared connection. Callers own the
// channel and must close it.
func (b *Broker) Channel() (*amqp.Channel, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("opening channel: %w", err)
	}
	return ch, nil
}

// DeclareTopology declares the DLX exchange, every stage queue, and every
// dead-letter queue with its binding. Declarations are idempotent.
func (b *Broker) DeclareTopology(queues []Queue) error {
	ch, err := b.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(DLXExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declaring dlx exchange: %w", err)
	}

	for _, q := range queues {
		if _, err := ch.QueueDeclare(q.Name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declaring queue %s: %w", q.Name, err)
		}
		if _, err := ch.QueueDeclare(q.DLQ, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declaring dlq %s: %w", q.DLQ, err)
		}
		if err := ch.QueueBind(q.DLQ, q.RoutingKey, DLXExchange, false, nil); err != nil {
			return fmt.Errorf("binding dlq %s: %w", q.DLQ, err)
		}
	}
	return nil
}

// Close tears down the connection.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil || b.conn.IsClosed() {
		return nil
	}
	return b.conn.Close()
}

// RetryCount reads the x-retries header from a delivery. Absent or
// malformed headers count as zero.
func RetryCount(d amqp.Delivery) int {
	v, ok := d.Headers[HeaderRetries]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	default:
		return 0
	}
}
