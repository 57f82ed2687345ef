package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"shipment-consolidator/internal/models"
	"shipment-consolidator/internal/service"

	"github.com/stretchr/testify/assert"
)

type stubRunner struct {
	summary *models.RunSummary
	err     error
	calls   int
}

func (r *stubRunner) Run(context.Context) (*models.RunSummary, error) {
	r.calls++
	return r.summary, r.err
}

func request() *models.RunRequestedEvent {
	return &models.RunRequestedEvent{
		BaseEvent:   models.BaseEvent{EventID: "e-1", EventType: models.EventTypeRunRequested},
		RequestedBy: "scheduler",
	}
}

func TestHandleRunRequested(t *testing.T) {
	r := &stubRunner{summary: models.NewRunSummary("run-1", time.Now())}
	w := NewRunWorker(nil, r)

	assert.NoError(t, w.HandleRunRequested(context.Background(), request()))
	assert.Equal(t, 1, r.calls)
}

func TestHandleRunRequestedDropsWhenLocked(t *testing.T) {
	w := NewRunWorker(nil, &stubRunner{err: service.ErrRunInProgress})

	assert.NoError(t, w.HandleRunRequested(context.Background(), request()))
}

func TestHandleRunRequestedReportsFatal(t *testing.T) {
	cause := errors.New("listing resolution failed")
	w := NewRunWorker(nil, &stubRunner{summary: models.NewRunSummary("run-1", time.Now()), err: cause})

	err := w.HandleRunRequested(context.Background(), request())

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "e-1")
}
