package broker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"membersync/internal/config"
	"membersync/internal/logger"
)

func TestNewProducer(t *testing.T) {
	p, err := NewProducer(config.BrokerConfig{
		Type:  "kafka",
		Kafka: config.KafkaConfig{Brokers: []string{"localhost:9092"}},
	}, logger.NopLogger())
	require.NoError(t, err)
	assert.IsType(t, &KafkaProducer{}, p)
	assert.NoError(t, p.Close())

	_, err = NewProducer(config.BrokerConfig{Type: "none"}, logger.NopLogger())
	assert.True(t, errors.Is(err, ErrBrokerDisabled))

	_, err = NewProducer(config.BrokerConfig{Type: "nats"}, logger.NopLogger())
	assert.Error(t, err)
}

func TestNewConsumer_CreatesDLQProducer(t *testing.T) {
	c, err := NewConsumer(config.BrokerConfig{
		Type:  "kafka",
		Kafka: config.KafkaConfig{Brokers: []string{"localhost:9092"}, DLQTopic: "dlq"},
	}, logger.NopLogger())
	require.NoError(t, err)

	kc := c.(*KafkaConsumer)
	assert.NotNil(t, kc.dlqProducer)
	assert.NoError(t, kc.Close())
}

func TestRetryPolicy(t *testing.T) {
	p := retryPolicy(config.RetryConfig{})
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, time.Second, p.InitialInterval)

	p = retryPolicy(config.RetryConfig{MaxAttempts: 5, InitialInterval: 2 * time.Second, Multiplier: 1.5})
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 2*time.Second, p.InitialInterval)
	assert.Equal(t, 30*time.Second, p.MaxInterval)
	assert.Equal(t, 1.5, p.Multiplier)
}
