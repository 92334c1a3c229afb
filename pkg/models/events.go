package models

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

const (
	EntityTypeProduct  = "product"
	EntityTypeCustomer = "customer"
)

// MembershipRefreshedEvent announces the outcome of one container refresh.
type MembershipRefreshedEvent struct {
	ContainerID string `mapstructure:"container_id"`
	StoreID     string `mapstructure:"store_id"`
	Kind        string `mapstructure:"kind"`
	MemberCount int    `mapstructure:"member_count"`
	Added       int    `mapstructure:"added"`
	Removed     int    `mapstructure:"removed"`
}

// EntityChangedEvent reports a product or customer write in a store.
type EntityChangedEvent struct {
	StoreID    string `mapstructure:"store_id"`
	EntityType string `mapstructure:"entity_type"`
	EntityID   string `mapstructure:"entity_id"`
}

// RuleSetUpdatedEvent reports that a container's rules were replaced outside
// this service.
type RuleSetUpdatedEvent struct {
	StoreID     string `mapstructure:"store_id"`
	ContainerID string `mapstructure:"container_id"`
	Kind        string `mapstructure:"kind"`
}

// EncodePayload flattens a typed event into an envelope payload.
func EncodePayload(event interface{}) (map[string]interface{}, error) {
	payload := make(map[string]interface{})
	if err := mapstructure.Decode(event, &payload); err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return payload, nil
}

// DecodePayload fills out from the envelope payload. JSON numbers decode into
// integer fields.
func DecodePayload(msg MessageEnvelope, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(msg.Payload); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", msg.Type, err)
	}
	return nil
}

// NewEventEnvelope wraps a typed event.
func NewEventEnvelope(eventType, source, storeID string, event interface{}) (*MessageEnvelope, error) {
	payload, err := EncodePayload(event)
	if err != nil {
		return nil, err
	}
	return NewMessageEnvelopeBuilder().
		WithType(eventType).
		WithSource(source).
		WithStoreID(storeID).
		WithPayload(payload).
		Build(), nil
}
