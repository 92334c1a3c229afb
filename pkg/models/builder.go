package models

import (
	"time"

	"github.com/google/uuid"
)

type MessageEnvelopeBuilder struct {
	envelope *MessageEnvelope
}

func NewMessageEnvelopeBuilder() *MessageEnvelopeBuilder {
	return &MessageEnvelopeBuilder{
		envelope: &MessageEnvelope{Payload: make(map[string]interface{})},
	}
}

func (b *MessageEnvelopeBuilder) WithType(eventType string) *MessageEnvelopeBuilder {
	b.envelope.Type = eventType
	return b
}

func (b *MessageEnvelopeBuilder) WithSource(source string) *MessageEnvelopeBuilder {
	b.envelope.Source = source
	return b
}

// WithStoreID sets the partition key of the envelope.
func (b *MessageEnvelopeBuilder) WithStoreID(storeID string) *MessageEnvelopeBuilder {
	b.envelope.Metadata.StoreID = storeID
	return b
}

func (b *MessageEnvelopeBuilder) WithPayload(payload map[string]interface{}) *MessageEnvelopeBuilder {
	b.envelope.Payload = payload
	return b
}

// Build stamps a fresh ID and the current UTC time.
func (b *MessageEnvelopeBuilder) Build() *MessageEnvelope {
	b.envelope.ID = uuid.NewString()
	b.envelope.Timestamp = time.Now().UTC()
	return b.envelope
}
