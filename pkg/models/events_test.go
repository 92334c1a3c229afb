package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventEnvelope(t *testing.T) {
	event := MembershipRefreshedEvent{
		ContainerID: "col-1",
		StoreID:     "store-1",
		Kind:        "collection",
		MemberCount: 2,
		Added:       1,
	}

	env, err := NewEventEnvelope("membership_refreshed", "membership-service", "store-1", event)
	require.NoError(t, err)

	assert.NotEmpty(t, env.ID)
	assert.False(t, env.Timestamp.IsZero())
	assert.Equal(t, "store-1", env.Metadata.StoreID)
	assert.Equal(t, "col-1", env.Payload["container_id"])
	assert.Equal(t, 2, env.Payload["member_count"])
	assert.NoError(t, ValidateMessageEnvelope(env))
}

func TestDecodePayload_FromJSON(t *testing.T) {
	raw := `{"id":"m1","type":"membership_refreshed","timestamp":"2024-03-01T00:00:00Z",
		"payload":{"container_id":"col-1","store_id":"store-1","kind":"segment","member_count":3,"added":2,"removed":1}}`

	var env MessageEnvelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))

	var event MembershipRefreshedEvent
	require.NoError(t, DecodePayload(env, &event))

	assert.Equal(t, MembershipRefreshedEvent{
		ContainerID: "col-1",
		StoreID:     "store-1",
		Kind:        "segment",
		MemberCount: 3,
		Added:       2,
		Removed:     1,
	}, event)
}

func TestValidateMessageEnvelope(t *testing.T) {
	assert.Error(t, ValidateMessageEnvelope(nil))

	env := NewMessageEnvelopeBuilder().WithSource("catalog").Build()
	err := ValidateMessageEnvelope(env)

	var vErr *EnvelopeError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, []string{"type"}, vErr.Missing)

	err = ValidateMessageEnvelope(&MessageEnvelope{Type: "product_updated"})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, []string{"id", "timestamp", "payload"}, vErr.Missing)
}
