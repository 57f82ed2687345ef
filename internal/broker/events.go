package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shipment-consolidator/internal/models"
	"shipment-consolidator/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing run events
type EventPublisher struct {
	requests *Producer
	results  *Producer
}

// NewEventPublisher creates a new event publisher. Run requests go to the requests
// producer, run results to the results producer.
func NewEventPublisher(requests, results *Producer) *EventPublisher {
	return &EventPublisher{requests: requests, results: results}
}

// RequestRun publishes a RunRequested event and returns its id
func (ep *EventPublisher) RequestRun(ctx context.Context, requestedBy string) (string, error) {
	event := &models.RunRequestedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeRunRequested,
			Timestamp: time.Now(),
		},
		RequestedBy: requestedBy,
	}
	// single key keeps requests ordered on one partition
	if err := ep.requests.PublishEvent(ctx, "run-request", event); err != nil {
		return "", err
	}
	return event.EventID, nil
}

// PublishRunCompleted publishes RunCompleted event
func (ep *EventPublisher) PublishRunCompleted(ctx context.Context, event *models.RunCompletedEvent) error {
	return ep.results.PublishEvent(ctx, "run-"+event.RunID, event)
}

// PublishInstructionsWritten publishes InstructionsWritten event
func (ep *EventPublisher) PublishInstructionsWritten(ctx context.Context, event *models.InstructionsWrittenEvent) error {
	key := fmt.Sprintf("run-%s-%s", event.RunID, event.Source)
	return ep.results.PublishEvent(ctx, key, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onRunRequested func(context.Context, *models.RunRequestedEvent) error
	logger         *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnRunRequested registers a handler for RunRequested events
func (eh *EventHandler) OnRunRequested(handler func(context.Context, *models.RunRequestedEvent) error) {
	eh.onRunRequested = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Info("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeRunRequested:
		if eh.onRunRequested != nil {
			var event models.RunRequestedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal RunRequested event: %w", err)
			}
			return eh.onRunRequested(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
