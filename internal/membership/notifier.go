package membership

import (
	"context"
	"fmt"

	"membersync/internal/broker"
	"membersync/internal/constants"
	"membersync/internal/logger"
	"membersync/pkg/logging"
	"membersync/pkg/metrics"
	"membersync/pkg/models"
)

// Publisher delivers one membership event downstream.
type Publisher interface {
	Publish(ctx context.Context, event models.MembershipRefreshedEvent, traceID string) error
}

// KafkaPublisher writes membership_refreshed envelopes to the events topic.
type KafkaPublisher struct {
	producer broker.Producer
	topic    string
}

func NewKafkaPublisher(producer broker.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event models.MembershipRefreshedEvent, traceID string) error {
	envelope, err := models.NewEventEnvelope(constants.EventMembershipRefreshed, constants.ServiceName, event.StoreID, event)
	if err != nil {
		return err
	}
	envelope.Metadata.TraceID = traceID

	if err := p.producer.Publish(ctx, p.topic, *envelope); err != nil {
		return fmt.Errorf("failed to publish membership event: %w", err)
	}
	return nil
}

type pendingEvent struct {
	event   models.MembershipRefreshedEvent
	traceID string
}

// AsyncNotifier queues events in a bounded buffer drained by Run. When the
// buffer is full the event is dropped; the next refresh of the container
// produces a fresh one.
type AsyncNotifier struct {
	publisher Publisher
	queue     chan pendingEvent
	logger    logger.Logger
}

func NewAsyncNotifier(publisher Publisher, buffer int, log logger.Logger) *AsyncNotifier {
	if buffer <= 0 {
		buffer = constants.DefaultNotifyBuffer
	}
	return &AsyncNotifier{
		publisher: publisher,
		queue:     make(chan pendingEvent, buffer),
		logger:    log,
	}
}

func (n *AsyncNotifier) NotifyMembershipRefreshed(ctx context.Context, event models.MembershipRefreshedEvent) {
	select {
	case n.queue <- pendingEvent{event: event, traceID: logging.GetTraceID(ctx)}:
		metrics.SetMessageQueueSize(constants.ServiceName, len(n.queue))
	default:
		metrics.IncMembershipNotification("dropped")
		n.logger.WarnwCtx(ctx, "Notification buffer full, dropping membership event",
			"container_id", event.ContainerID,
		)
	}
}

// Run publishes queued events until ctx is canceled.
func (n *AsyncNotifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			n.drain()
			return nil
		case pending := <-n.queue:
			n.publish(ctx, pending)
		}
	}
}

// drain flushes what is already buffered on shutdown.
func (n *AsyncNotifier) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	for {
		select {
		case pending := <-n.queue:
			n.publish(ctx, pending)
		default:
			return
		}
	}
}

func (n *AsyncNotifier) publish(ctx context.Context, pending pendingEvent) {
	metrics.SetMessageQueueSize(constants.ServiceName, len(n.queue))

	ctx = logging.WithTraceID(ctx, pending.traceID)
	ctx = logging.WithStoreID(ctx, pending.event.StoreID)
	ctx = logging.WithContainerID(ctx, pending.event.ContainerID)

	if err := n.publisher.Publish(ctx, pending.event, pending.traceID); err != nil {
		metrics.IncMembershipNotification("failed")
		n.logger.ErrorwCtx(ctx, "Failed to publish membership event", "error", err)
		return
	}
	metrics.IncMembershipNotification("published")
}
