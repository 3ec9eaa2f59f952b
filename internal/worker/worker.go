package worker

import (
	"context"

	"distribution-engine/internal/broker"
	"distribution-engine/internal/models"
	"distribution-engine/internal/util"

	"go.uber.org/zap"
)

// RateHandler applies a commission-rate table update
type RateHandler interface {
	HandleRateTableUpdated(ctx context.Context, event *models.RateTableUpdatedEvent) error
}

// RateWorker consumes commission-rate updates from Kafka
type RateWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewRateWorker creates a new rate worker
func NewRateWorker(consumer *broker.Consumer, rates RateHandler) *RateWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnRateTableUpdated(rates.HandleRateTableUpdated)

	return &RateWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start blocks consuming until ctx is cancelled
func (w *RateWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting rate worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *RateWorker) Stop() error {
	w.logger.Info("Stopping rate worker")
	return w.consumer.Close()
}
