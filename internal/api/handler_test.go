package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shipment-consolidator/internal/models"
	"shipment-consolidator/internal/service"
	"shipment-consolidator/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	summary *models.RunSummary
	err     error
	ctxErr  error
}

func (r *stubRunner) Run(ctx context.Context) (*models.RunSummary, error) {
	r.ctxErr = ctx.Err()
	return r.summary, r.err
}

type stubRequester struct {
	requestedBy string
}

func (r *stubRequester) RequestRun(_ context.Context, requestedBy string) (string, error) {
	r.requestedBy = requestedBy
	return "req-1", nil
}

type stubHistory struct {
	runs map[string]*models.RunSummary
}

func (h *stubHistory) GetRun(_ context.Context, id string) (*models.RunSummary, error) {
	if run, ok := h.runs[id]; ok {
		return run, nil
	}
	return nil, store.ErrRunNotFound
}

func (h *stubHistory) ListRuns(_ context.Context, limit int) ([]models.RunSummary, error) {
	out := make([]models.RunSummary, 0, len(h.runs))
	for _, r := range h.runs {
		out = append(out, *r)
	}
	return out, nil
}

func newRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h.SetupRoutes(router)
	return router
}

func serve(router *gin.Engine, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func summary(id, outcome string) *models.RunSummary {
	s := models.NewRunSummary(id, time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC))
	s.Outcome = outcome
	return s
}

func TestStartRun(t *testing.T) {
	router := newRouter(NewHandler(&stubRunner{summary: summary("run-1", models.RunOutcomeSuccess)}, nil, &stubHistory{}, nil))

	rec := serve(router, http.MethodPost, "/api/v1/runs", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body models.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body.RunID)
	assert.Equal(t, models.RunOutcomeSuccess, body.Outcome)
}

func TestStartRunOutlivesCancelledRequest(t *testing.T) {
	runner := &stubRunner{summary: summary("run-3", models.RunOutcomeSuccess)}
	router := newRouter(NewHandler(runner, nil, &stubHistory{}, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, runner.ctxErr)
}

func TestStartRunConflict(t *testing.T) {
	router := newRouter(NewHandler(&stubRunner{err: service.ErrRunInProgress}, nil, &stubHistory{}, nil))

	rec := serve(router, http.MethodPost, "/api/v1/runs", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStartRunFatal(t *testing.T) {
	runner := &stubRunner{summary: summary("run-2", models.RunOutcomeFatal), err: errors.New("listing resolution failed")}
	router := newRouter(NewHandler(runner, nil, &stubHistory{}, nil))

	rec := serve(router, http.MethodPost, "/api/v1/runs", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "run-2")
}

func TestRequestRun(t *testing.T) {
	requester := &stubRequester{}
	router := newRouter(NewHandler(&stubRunner{}, requester, &stubHistory{}, nil))

	rec := serve(router, http.MethodPost, "/api/v1/runs/requests", map[string]string{"X-Requested-By": "ops"})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "req-1")
	assert.Equal(t, "ops", requester.requestedBy)
}

func TestRequestRunDisabled(t *testing.T) {
	router := newRouter(NewHandler(&stubRunner{}, nil, &stubHistory{}, nil))

	rec := serve(router, http.MethodPost, "/api/v1/runs/requests", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetRun(t *testing.T) {
	history := &stubHistory{runs: map[string]*models.RunSummary{"run-1": summary("run-1", models.RunOutcomeSuccess)}}
	router := newRouter(NewHandler(&stubRunner{}, nil, history, nil))

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/v1/runs/run-1", nil).Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/api/v1/runs/nope", nil).Code)
}

func TestListRunsValidatesLimit(t *testing.T) {
	history := &stubHistory{runs: map[string]*models.RunSummary{"run-1": summary("run-1", models.RunOutcomeSuccess)}}
	router := newRouter(NewHandler(&stubRunner{}, nil, history, nil))

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/v1/runs?limit=5", nil).Code)
	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodGet, "/api/v1/runs?limit=abc", nil).Code)
}

func TestReadiness(t *testing.T) {
	checks := map[string]ReadyCheck{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}
	router := newRouter(NewHandler(&stubRunner{}, nil, &stubHistory{}, checks))

	rec := serve(router, http.MethodGet, "/ready", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis")
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health", nil).Code)
}
