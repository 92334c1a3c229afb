package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultTriggerTopic = "membership_triggers"
	DefaultEventsTopic  = "membership_events"
)

const (
	DefaultMongoDBName  = "membersync"
	ContainerCollection = "containers"
)

const (
	ServiceName = "membership-service"
)

const (
	ShutdownTimeout = 5 * time.Second
	InitTimeout     = 30 * time.Second
)

const (
	DefaultScheduleIntervalSeconds = 900
	DefaultScheduleJitterSeconds   = 60
	DefaultStoreConcurrency        = 4
	DefaultLockTTLSeconds          = 300
	DefaultNotifyBuffer            = 1024
)

const (
	LockKeyPrefix = "membersync:refresh:"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Trigger event types consumed from the trigger topic.
const (
	EventProductCreated  = "product_created"
	EventProductUpdated  = "product_updated"
	EventProductDeleted  = "product_deleted"
	EventCustomerCreated = "customer_created"
	EventCustomerUpdated = "customer_updated"
	EventCustomerDeleted = "customer_deleted"
	EventRuleSetUpdated  = "rule_set_updated"
)

const (
	EventMembershipRefreshed = "membership_refreshed"
)
