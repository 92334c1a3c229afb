package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  port: 8081
database:
  postgres:
    host: localhost
    port: 5432
    user: membersync
    password: secret
    dbname: membersync
    sslmode: disable
  redis:
    host: localhost
    port: 6379
  mongodb:
    uri: mongodb://localhost:27017
    database: membersync
broker:
  type: kafka
  kafka:
    brokers: ["localhost:9092"]
    group_id: membership-service
    dlq_topic: membership_triggers_dlq
sync:
  schedule:
    interval_seconds: 120
logging:
  level: debug
  format: console
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout())
	assert.Equal(t, "membership_triggers", cfg.Broker.Kafka.TriggerTopic)
	assert.Equal(t, "membership_events", cfg.Broker.Kafka.EventsTopic)
	assert.Equal(t, time.Second, cfg.Broker.Kafka.Retry.InitialInterval)
	assert.Equal(t, 2*time.Minute, cfg.Sync.Schedule.Interval())
	assert.True(t, cfg.Sync.Schedule.Enabled)
	assert.Equal(t, 4, cfg.Sync.StoreConcurrency)
	assert.Equal(t, 5*time.Minute, cfg.Sync.LockTTL())
	assert.Equal(t, 0.6, cfg.CircuitBreaker.FailureRatio)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("BROKER_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("DATABASE_POSTGRES_HOST", "db.internal")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Broker.Kafka.Brokers)
	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, ReadTimeoutSeconds: 5, WriteTimeoutSeconds: 5},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{Host: "localhost", Port: 5432, User: "u", DBName: "d"},
			MongoDB:  MongoDBConfig{URI: "mongodb://localhost", Database: "d"},
		},
		Broker: BrokerConfig{Type: "none"},
		Sync: SyncConfig{
			Schedule:         ScheduleConfig{Enabled: true, IntervalSeconds: 60},
			StoreConcurrency: 2,
			LockTTLSeconds:   60,
			NotifyBuffer:     16,
		},
	}
}

func TestValidateStatic(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"unknown broker", func(c *Config) { c.Broker.Type = "rabbitmq" }, "broker.type"},
		{"kafka without brokers", func(c *Config) { c.Broker.Type = "kafka" }, "broker.kafka.brokers"},
		{"bad mongo uri", func(c *Config) { c.Database.MongoDB.URI = "localhost" }, "database.mongodb.uri"},
		{"bad sslmode", func(c *Config) { c.Database.Postgres.SSLMode = "maybe" }, "database.postgres.sslmode"},
		{"zero interval", func(c *Config) { c.Sync.Schedule.IntervalSeconds = 0 }, "sync.schedule.interval_seconds"},
		{"zero concurrency", func(c *Config) { c.Sync.StoreConcurrency = 0 }, "sync.store_concurrency"},
		{"zero lock ttl", func(c *Config) { c.Sync.LockTTLSeconds = 0 }, "sync.lock_ttl_seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := ValidateStatic(cfg)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr), "got %v", err)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestValidateStatic_DisabledScheduleAllowsZeroInterval(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.Schedule = ScheduleConfig{Enabled: false}

	assert.NoError(t, ValidateStatic(cfg))
}

func TestValidateStatic_ReportsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Sync.StoreConcurrency = 0
	cfg.Management.RateLimit = RateLimitConfig{Enabled: true}

	err := ValidateStatic(cfg)
	require.Error(t, err)

	for _, field := range []string{
		"server.port",
		"sync.store_concurrency",
		"management.rate_limit.rps",
		"management.rate_limit.burst",
	} {
		assert.Contains(t, err.Error(), field)
	}
}

func TestLoadConfig_ManagementDefaults(t *testing.T) {
	t.Setenv("MANAGEMENT_RATE_LIMIT_ENABLED", "true")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.True(t, cfg.Management.RateLimit.Enabled)
	assert.Equal(t, float64(50), cfg.Management.RateLimit.RPS)
	assert.Equal(t, 100, cfg.Management.RateLimit.Burst)
	assert.True(t, cfg.CircuitBreaker.Enabled)
}
