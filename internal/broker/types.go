package broker

import (
	"context"

	"membersync/pkg/models"
)

// Producer publishes envelopes. Publish returns once the broker acknowledged
// the write.
type Producer interface {
	Publish(ctx context.Context, topic string, msg models.MessageEnvelope) error
	Close() error
}

// Consumer feeds one topic to a handler until its context ends.
type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

// HandlerFunc processes one envelope. Retryable errors are retried under the
// consumer's policy; fatal ones go straight to the DLQ.
type HandlerFunc func(ctx context.Context, msg models.MessageEnvelope) error
