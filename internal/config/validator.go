package config

import (
	"errors"
	"fmt"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// problems collects every violation so a bad config is reported in one go.
type problems []error

func (p *problems) check(ok bool, field, format string, args ...interface{}) {
	if !ok {
		*p = append(*p, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}
}

func (p *problems) port(port int, field string) {
	p.check(port >= 1 && port <= 65535, field, "port must be between 1 and 65535, got %d", port)
}

// ValidateStatic checks the loaded config without touching the network.
func ValidateStatic(cfg *Config) error {
	var p problems

	p.port(cfg.Server.Port, "server.port")
	p.check(cfg.Server.ReadTimeoutSeconds > 0, "server.read_timeout_seconds", "read timeout must be positive")
	p.check(cfg.Server.WriteTimeoutSeconds > 0, "server.write_timeout_seconds", "write timeout must be positive")

	validateBroker(&p, cfg.Broker)
	validateDatabase(&p, cfg.Database)
	validateSync(&p, cfg.Sync)

	rl := cfg.Management.RateLimit
	if rl.Enabled {
		p.check(rl.RPS > 0, "management.rate_limit.rps", "rps must be positive when rate limiting is enabled")
		p.check(rl.Burst > 0, "management.rate_limit.burst", "burst must be positive when rate limiting is enabled")
	}

	cb := cfg.CircuitBreaker
	p.check(cb.FailureRatio >= 0 && cb.FailureRatio <= 1, "circuit_breaker.failure_ratio",
		"failure ratio must be within [0, 1], got %v", cb.FailureRatio)

	return errors.Join(p...)
}

func validateBroker(p *problems, cfg BrokerConfig) {
	switch cfg.Type {
	case "kafka":
	case "none":
		return
	case "":
		p.check(false, "broker.type", "broker type is required")
		return
	default:
		p.check(false, "broker.type", "unknown broker type: %s (supported: kafka, none)", cfg.Type)
		return
	}

	k := cfg.Kafka
	p.check(len(k.Brokers) > 0, "broker.kafka.brokers", "at least one Kafka broker is required")
	for i, broker := range k.Brokers {
		p.check(broker != "", fmt.Sprintf("broker.kafka.brokers[%d]", i), "broker address cannot be empty")
	}
	p.check(k.GroupID != "", "broker.kafka.group_id", "Kafka consumer group ID is required")
	p.check(k.TriggerTopic == "" || k.TriggerTopic != k.EventsTopic,
		"broker.kafka.events_topic", "events topic must differ from the trigger topic")
	p.check(k.DLQTopic == "" || k.DLQTopic != k.TriggerTopic,
		"broker.kafka.dlq_topic", "DLQ topic must differ from the trigger topic")

	r := k.Retry
	p.check(r.MaxAttempts >= 0, "broker.kafka.retry.max_attempts", "max_attempts must be non-negative")
	p.check(r.InitialInterval >= 0, "broker.kafka.retry.initial_interval", "initial_interval must be non-negative")
	p.check(r.MaxInterval >= 0, "broker.kafka.retry.max_interval", "max_interval must be non-negative")
	p.check(r.MaxInterval == 0 || r.MaxInterval >= r.InitialInterval,
		"broker.kafka.retry.max_interval", "max_interval must be greater than or equal to initial_interval")
	p.check(r.Multiplier > 0, "broker.kafka.retry.multiplier", "multiplier must be positive")
}

var sslModes = map[string]bool{
	"disable": true, "allow": true, "prefer": true,
	"require": true, "verify-ca": true, "verify-full": true,
}

func validateDatabase(p *problems, cfg DatabaseConfig) {
	pg := cfg.Postgres
	p.check(pg.Host != "", "database.postgres.host", "PostgreSQL host is required")
	p.port(pg.Port, "database.postgres.port")
	p.check(pg.User != "", "database.postgres.user", "PostgreSQL user is required")
	p.check(pg.DBName != "", "database.postgres.dbname", "PostgreSQL database name is required")
	p.check(pg.SSLMode == "" || sslModes[strings.ToLower(pg.SSLMode)], "database.postgres.sslmode",
		"invalid SSL mode: %s (valid: disable, allow, prefer, require, verify-ca, verify-full)", pg.SSLMode)

	mongo := cfg.MongoDB
	p.check(strings.HasPrefix(mongo.URI, "mongodb://") || strings.HasPrefix(mongo.URI, "mongodb+srv://"),
		"database.mongodb.uri", "MongoDB URI must start with mongodb:// or mongodb+srv://")
	p.check(mongo.Database != "", "database.mongodb.database", "MongoDB database name is required")

	// Redis is optional; without it store refreshes run unlocked.
	if cfg.Redis.Host != "" || cfg.Redis.Port > 0 {
		p.check(cfg.Redis.Host != "", "database.redis.host", "Redis host is required")
		p.port(cfg.Redis.Port, "database.redis.port")
	}
}

func validateSync(p *problems, cfg SyncConfig) {
	p.check(!cfg.Schedule.Enabled || cfg.Schedule.IntervalSeconds > 0, "sync.schedule.interval_seconds",
		"interval must be positive when the schedule is enabled")
	p.check(cfg.Schedule.JitterSeconds >= 0, "sync.schedule.jitter_seconds", "jitter must be non-negative")
	p.check(cfg.StoreConcurrency >= 1, "sync.store_concurrency",
		"store concurrency must be at least 1, got %d", cfg.StoreConcurrency)
	p.check(cfg.LockTTLSeconds > 0, "sync.lock_ttl_seconds", "lock TTL must be positive")
	p.check(cfg.NotifyBuffer >= 1, "sync.notify_buffer", "notify buffer must be at least 1")
}
