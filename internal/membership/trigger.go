package membership

import (
	"context"
	"strings"

	"membersync/internal/constants"
	"membersync/internal/container"
	"membersync/internal/logger"
	"membersync/pkg/errors"
	"membersync/pkg/logging"
	"membersync/pkg/metrics"
	"membersync/pkg/models"
)

// TriggerHandler turns trigger topic events into refreshes.
type TriggerHandler struct {
	registry   *Registry
	containers ContainerGetter
	logger     logger.Logger
}

func NewTriggerHandler(registry *Registry, containers ContainerGetter, log logger.Logger) *TriggerHandler {
	return &TriggerHandler{registry: registry, containers: containers, logger: log}
}

// Handle is a broker.HandlerFunc. Returned errors that are retryable make the
// consumer retry and eventually dead-letter the message.
func (h *TriggerHandler) Handle(ctx context.Context, msg models.MessageEnvelope) error {
	var err error
	switch {
	case strings.HasPrefix(msg.Type, models.EntityTypeProduct+"_"):
		err = h.handleEntityChanged(ctx, msg, container.KindCollection)
	case strings.HasPrefix(msg.Type, models.EntityTypeCustomer+"_"):
		err = h.handleEntityChanged(ctx, msg, container.KindSegment)
	case msg.Type == constants.EventRuleSetUpdated:
		err = h.handleRuleSetUpdated(ctx, msg)
	default:
		metrics.IncTriggerEvent(msg.Type, "ignored")
		h.logger.DebugwCtx(ctx, "Ignoring trigger event", "type", msg.Type)
		return nil
	}

	status := "success"
	switch {
	case err == nil:
	case errors.IsRefreshInProgress(err):
		status = "in_progress"
	default:
		status = "failed"
	}
	metrics.IncTriggerEvent(msg.Type, status)
	return err
}

func (h *TriggerHandler) handleEntityChanged(ctx context.Context, msg models.MessageEnvelope, kind container.Kind) error {
	var event models.EntityChangedEvent
	if err := models.DecodePayload(msg, &event); err != nil {
		return errors.Wrap(err, errors.ErrValidation)
	}
	storeID := event.StoreID
	if storeID == "" {
		storeID = msg.Metadata.StoreID
	}
	if storeID == "" {
		return errors.ErrValidation.WithDetail("message", "entity event without store_id")
	}

	refresher, err := h.registry.For(kind)
	if err != nil {
		return err
	}

	ctx = logging.WithStoreID(ctx, storeID)
	report, err := refresher.RefreshAll(ctx, storeID)
	if err != nil {
		return err
	}
	if report.Failed() {
		h.logger.WarnwCtx(ctx, "Triggered refresh finished with failures",
			"type", msg.Type,
			"entity_id", event.EntityID,
			"failures", len(report.Failures),
		)
	}
	return nil
}

func (h *TriggerHandler) handleRuleSetUpdated(ctx context.Context, msg models.MessageEnvelope) error {
	var event models.RuleSetUpdatedEvent
	if err := models.DecodePayload(msg, &event); err != nil {
		return errors.Wrap(err, errors.ErrValidation)
	}
	if event.StoreID == "" || event.ContainerID == "" {
		return errors.ErrValidation.WithDetail("message", "rule_set_updated without store_id or container_id")
	}

	ctx = logging.WithStoreID(ctx, event.StoreID)
	ctx = logging.WithContainerID(ctx, event.ContainerID)

	c, err := h.containers.Get(ctx, event.StoreID, event.ContainerID)
	if errors.IsNotFound(err) {
		h.logger.InfowCtx(ctx, "Container no longer exists, skipping refresh")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrDataAccess)
	}

	refresher, err := h.registry.For(c.Kind)
	if err != nil {
		return err
	}
	_, err = refresher.RefreshOne(ctx, *c)
	return err
}
