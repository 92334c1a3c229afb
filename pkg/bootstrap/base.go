// Package bootstrap opens the external dependencies a service process needs
// and closes them again on shutdown.
package bootstrap

import (
	"context"
	stderrors "errors"
	"fmt"

	"membersync/internal/broker"
	"membersync/internal/config"
	"membersync/internal/logger"
)

type Base struct {
	Config   *config.Config
	Logger   logger.Logger
	Producer broker.Producer
	Consumer broker.Consumer
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{Config: cfg, Logger: log}
}

// InitBroker creates the producer and consumer. With broker.type "none"
// both stay nil.
func (b *Base) InitBroker(serviceName string) error {
	producer, err := broker.NewProducer(b.Config.Broker, b.Logger)
	switch {
	case stderrors.Is(err, broker.ErrBrokerDisabled):
		b.Logger.Warnw("Broker disabled, membership events are not published and triggers are not consumed")
		return nil
	case err != nil:
		return fmt.Errorf("failed to create producer: %w", err)
	}

	consumer, err := broker.NewConsumer(b.Config.Broker, b.Logger)
	if err != nil {
		_ = producer.Close()
		return fmt.Errorf("failed to create consumer: %w", err)
	}
	consumer.SetServiceName(serviceName)

	b.Producer, b.Consumer = producer, consumer
	return nil
}

func (b *Base) closeBroker() []error {
	var errs []error
	if b.Consumer != nil {
		if err := b.Consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("consumer close error: %w", err))
		}
	}
	if b.Producer != nil {
		if err := b.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}
	return errs
}

// Shutdown closes the broker clients, then runs closeOthers.
func (b *Base) Shutdown(ctx context.Context, closeOthers func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	errs := b.closeBroker()
	if closeOthers != nil {
		errs = append(errs, closeOthers(ctx)...)
	}
	if err := stderrors.Join(errs...); err != nil {
		return fmt.Errorf("shutdown errors: %w", err)
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
