package broker

import (
	"context"
	"encoding/json"
	"testing"

	"shipment-consolidator/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleMessageRoutesRunRequested(t *testing.T) {
	h := NewEventHandler()
	var got *models.RunRequestedEvent
	h.OnRunRequested(func(_ context.Context, e *models.RunRequestedEvent) error {
		got = e
		return nil
	})

	payload, err := json.Marshal(models.RunRequestedEvent{
		BaseEvent:   models.BaseEvent{EventID: "e-1", EventType: models.EventTypeRunRequested},
		RequestedBy: "scheduler",
	})
	require.NoError(t, err)

	require.NoError(t, h.HandleMessage(context.Background(), kafka.Message{Value: payload}))
	require.NotNil(t, got)
	assert.Equal(t, "e-1", got.EventID)
	assert.Equal(t, "scheduler", got.RequestedBy)
}

func TestHandleMessageIgnoresOtherEvents(t *testing.T) {
	h := NewEventHandler()
	called := false
	h.OnRunRequested(func(context.Context, *models.RunRequestedEvent) error {
		called = true
		return nil
	})

	payload := []byte(`{"event_id":"e-2","event_type":"RUN_COMPLETED"}`)
	assert.NoError(t, h.HandleMessage(context.Background(), kafka.Message{Value: payload}))
	assert.False(t, called)
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	h := NewEventHandler()
	assert.Error(t, h.HandleMessage(context.Background(), kafka.Message{Value: []byte("not json")}))
}
