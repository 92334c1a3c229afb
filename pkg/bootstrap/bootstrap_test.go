package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"membersync/internal/config"
	"membersync/internal/logger"
)

func TestPostgresDSN_EscapesCredentials(t *testing.T) {
	dsn := PostgresDSN(config.PostgresConfig{
		Host:     "db",
		Port:     5432,
		User:     "sync",
		Password: "p@ss/word",
		DBName:   "catalog",
		SSLMode:  "disable",
	})

	assert.Equal(t, "postgres://sync:p%40ss%2Fword@db:5432/catalog?sslmode=disable", dsn)
}

func TestInitBroker_Disabled(t *testing.T) {
	b := NewBase(&config.Config{Broker: config.BrokerConfig{Type: "none"}}, logger.NopLogger())

	require.NoError(t, b.InitBroker("membership-service"))
	assert.Nil(t, b.Producer)
	assert.Nil(t, b.Consumer)
	assert.NoError(t, b.Shutdown(context.Background(), nil))
}

func TestInitBroker_UnknownType(t *testing.T) {
	b := NewBase(&config.Config{Broker: config.BrokerConfig{Type: "nats"}}, logger.NopLogger())

	assert.Error(t, b.InitBroker("membership-service"))
}

func TestShutdown_CollectsErrors(t *testing.T) {
	b := NewBase(&config.Config{}, logger.NopLogger())

	err := b.Shutdown(context.Background(), func(context.Context) []error {
		return []error{assert.AnError}
	})

	assert.ErrorIs(t, err, assert.AnError)
}

func TestConnections_CloseEmpty(t *testing.T) {
	assert.Empty(t, (&Connections{}).Close(context.Background()))
}
