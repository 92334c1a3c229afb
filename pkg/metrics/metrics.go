package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	MembershipRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_refreshes_total",
			Help: "Total number of container membership refreshes (count)",
		},
		[]string{"kind", "status"},
	)

	MembershipRefreshDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "membership_refresh_duration_ms",
			Help:    "Duration of a single container refresh in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"kind", "status"},
	)

	MembershipStoreRefreshDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "membership_store_refresh_duration_ms",
			Help:    "Duration of refreshing every automated container of a store in milliseconds",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		},
		[]string{"kind"},
	)

	MembershipMembers = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "membership_members",
			Help:    "Number of members written by a refresh (count)",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
		[]string{"kind"},
	)

	MembershipChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_changes_total",
			Help: "Total number of members added or removed by refreshes (count)",
		},
		[]string{"kind", "change"},
	)

	MembershipCandidates = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "membership_candidates",
			Help:    "Number of candidate entities loaded for a refresh (count)",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
		[]string{"kind"},
	)

	MembershipTenantViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_tenant_violations_total",
			Help: "Total number of candidates discarded for belonging to another store (count)",
		},
		[]string{"kind"},
	)

	RuleInvalidConditionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rule_invalid_conditions_total",
			Help: "Total number of misconfigured rule set elements seen during evaluation (count)",
		},
		[]string{"kind", "reason"},
	)

	MembershipNotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_notifications_total",
			Help: "Total number of membership notifications by outcome (count)",
		},
		[]string{"status"},
	)

	RefreshLockContentionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_lock_contention_total",
			Help: "Total number of refreshes skipped because the store lock was held (count)",
		},
		[]string{"kind"},
	)

	TriggerEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trigger_events_total",
			Help: "Total number of refresh trigger events consumed (count)",
		},
		[]string{"event_type", "status"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessageSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_message_size_bytes",
			Help:    "Size of Kafka messages in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"service", "topic", "direction"},
	)

	KafkaConsumerLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kafka_consumer_lag",
			Help: "Kafka consumer lag (difference between latest offset and committed offset) (count)",
		},
		[]string{"service", "topic", "partition"},
	)

	KafkaReadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_read_duration_ms",
			Help:    "Duration of reading messages from Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"service", "database", "operation", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"service", "database", "operation"},
	)

	MessageQueueSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "message_queue_size",
			Help: "Current size of message processing queue (count)",
		},
		[]string{"service"},
	)
)

var registerOnce sync.Once

// RegisterAll registers every collector with the default registry. Safe to
// call more than once.
func RegisterAll() {
	registerOnce.Do(func() {
		RegisterMembershipMetrics()
		RegisterBrokerMetrics()
		RegisterCircuitBreakerMetrics()
		RegisterManagementMetrics()
	})
}

func RegisterMembershipMetrics() {
	prometheus.MustRegister(MembershipRefreshesTotal)
	prometheus.MustRegister(MembershipRefreshDuration)
	prometheus.MustRegister(MembershipStoreRefreshDuration)
	prometheus.MustRegister(MembershipMembers)
	prometheus.MustRegister(MembershipChangesTotal)
	prometheus.MustRegister(MembershipCandidates)
	prometheus.MustRegister(MembershipTenantViolationsTotal)
	prometheus.MustRegister(RuleInvalidConditionsTotal)
	prometheus.MustRegister(MembershipNotificationsTotal)
	prometheus.MustRegister(RefreshLockContentionTotal)
	prometheus.MustRegister(TriggerEventsTotal)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(DLQMessagesTotal)
	prometheus.MustRegister(KafkaMessagesReadTotal)
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
	prometheus.MustRegister(KafkaMessageSizeBytes)
	prometheus.MustRegister(KafkaConsumerLag)
	prometheus.MustRegister(KafkaReadDuration)
	prometheus.MustRegister(KafkaWriteDuration)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterManagementMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
	prometheus.MustRegister(DatabaseQueriesTotal)
	prometheus.MustRegister(DatabaseQueryDuration)
	prometheus.MustRegister(MessageQueueSize)
}

func IncMembershipRefresh(kind, status string) {
	MembershipRefreshesTotal.WithLabelValues(kind, status).Inc()
}

func ObserveMembershipRefreshDuration(kind, status string, duration time.Duration) {
	MembershipRefreshDuration.WithLabelValues(kind, status).Observe(float64(duration.Milliseconds()))
}

func ObserveStoreRefreshDuration(kind string, duration time.Duration) {
	MembershipStoreRefreshDuration.WithLabelValues(kind).Observe(float64(duration.Milliseconds()))
}

func ObserveMembershipMembers(kind string, count int) {
	MembershipMembers.WithLabelValues(kind).Observe(float64(count))
}

func AddMembershipChanges(kind string, added, removed int) {
	if added > 0 {
		MembershipChangesTotal.WithLabelValues(kind, "added").Add(float64(added))
	}
	if removed > 0 {
		MembershipChangesTotal.WithLabelValues(kind, "removed").Add(float64(removed))
	}
}

func ObserveMembershipCandidates(kind string, count int) {
	MembershipCandidates.WithLabelValues(kind).Observe(float64(count))
}

func AddTenantViolations(kind string, count int) {
	MembershipTenantViolationsTotal.WithLabelValues(kind).Add(float64(count))
}

func IncRuleInvalidCondition(kind, reason string) {
	RuleInvalidConditionsTotal.WithLabelValues(kind, reason).Inc()
}

func IncMembershipNotification(status string) {
	MembershipNotificationsTotal.WithLabelValues(status).Inc()
}

func IncRefreshLockContention(kind string) {
	RefreshLockContentionTotal.WithLabelValues(kind).Inc()
}

func IncTriggerEvent(eventType, status string) {
	TriggerEventsTotal.WithLabelValues(eventType, status).Inc()
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaMessageSize(service, topic, direction string, sizeBytes int) {
	KafkaMessageSizeBytes.WithLabelValues(service, topic, direction).Observe(float64(sizeBytes))
}

func SetKafkaConsumerLag(service, topic string, partition int, lag int64) {
	KafkaConsumerLag.WithLabelValues(service, topic, fmt.Sprintf("%d", partition)).Set(float64(lag))
}

func ObserveKafkaReadDuration(service, topic string, duration time.Duration) {
	KafkaReadDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func IncDatabaseQuery(service, database, operation, status string) {
	DatabaseQueriesTotal.WithLabelValues(service, database, operation, status).Inc()
}

func ObserveDatabaseQueryDuration(service, database, operation string, duration time.Duration) {
	DatabaseQueryDuration.WithLabelValues(service, database, operation).Observe(float64(duration.Milliseconds()))
}

// ObserveDatabaseQuery records both the counter and the duration of a query
// started at start.
func ObserveDatabaseQuery(service, database, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	IncDatabaseQuery(service, database, operation, status)
	ObserveDatabaseQueryDuration(service, database, operation, time.Since(start))
}

func SetMessageQueueSize(service string, size int) {
	MessageQueueSize.WithLabelValues(service).Set(float64(size))
}
