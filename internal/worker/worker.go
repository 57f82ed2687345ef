package worker

import (
	"context"
	"errors"
	"fmt"

	"shipment-consolidator/internal/broker"
	"shipment-consolidator/internal/models"
	"shipment-consolidator/internal/service"
	"shipment-consolidator/internal/util"

	"go.uber.org/zap"
)

// Runner executes one consolidation run
type Runner interface {
	Run(ctx context.Context) (*models.RunSummary, error)
}

// RunWorker starts consolidation runs on RunRequested events
type RunWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	runner       Runner
	logger       *zap.Logger
}

// NewRunWorker creates a new run worker
func NewRunWorker(consumer *broker.Consumer, runner Runner) *RunWorker {
	w := &RunWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		runner:       runner,
		logger:       util.GetLogger(),
	}
	w.eventHandler.OnRunRequested(w.HandleRunRequested)
	return w
}

// HandleRunRequested runs the engine for one request. A request that arrives while
// another run holds the lock is dropped.
func (w *RunWorker) HandleRunRequested(ctx context.Context, event *models.RunRequestedEvent) error {
	ctx, span := util.StartSpan(ctx, "RunWorker.HandleRunRequested")
	defer span.End()

	w.logger.Info("Run requested",
		zap.String("event_id", event.EventID),
		zap.String("requested_by", event.RequestedBy))

	summary, err := w.runner.Run(ctx)
	if errors.Is(err, service.ErrRunInProgress) {
		w.logger.Warn("Run already in progress, dropping request", zap.String("event_id", event.EventID))
		return nil
	}
	if err != nil {
		util.SpanError(span, err)
		return fmt.Errorf("run for request %s failed: %w", event.EventID, err)
	}

	w.logger.Info("Requested run finished",
		zap.String("event_id", event.EventID),
		zap.String("run_id", summary.RunID),
		zap.String("outcome", summary.Outcome))
	return nil
}

// Start starts the worker
func (w *RunWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting run worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *RunWorker) Stop() error {
	w.logger.Info("Stopping run worker")
	return w.consumer.Close()
}
