package broker

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestRetryCount(t *testing.T) {
	assert.Equal(t, 0, RetryCount(amqp.Delivery{}))
	assert.Equal(t, 0, RetryCount(amqp.Delivery{Headers: amqp.Table{}}))
	assert.Equal(t, 3, RetryCount(amqp.Delivery{Headers: amqp.Table{HeaderRetries: int32(3)}}))
	assert.Equal(t, 4, RetryCount(amqp.Delivery{Headers: amqp.Table{HeaderRetries: int64(4)}}))
	assert.Equal(t, 5, RetryCount(amqp.Delivery{Headers: amqp.Table{HeaderRetries: 5}}))
	// Malformed headers count as zero rather than poisoning the retry loop.
	assert.Equal(t, 0, RetryCount(amqp.Delivery{Headers: amqp.Table{HeaderRetries: "five"}}))
}

func TestPermanentError(t *testing.T) {
	err := Permanent(assert.AnError)
	var perm *PermanentError
	assert.ErrorAs(t, err, &perm)
	assert.ErrorIs(t, err, assert.AnError)
}
