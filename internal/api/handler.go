package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"shipment-consolidator/internal/models"
	"shipment-consolidator/internal/service"
	"shipment-consolidator/internal/store"
	"shipment-consolidator/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Runner executes one consolidation run
type Runner interface {
	Run(ctx context.Context) (*models.RunSummary, error)
}

// RunRequester queues a run for a worker
type RunRequester interface {
	RequestRun(ctx context.Context, requestedBy string) (string, error)
}

// RunHistory reads finished runs
type RunHistory interface {
	GetRun(ctx context.Context, runID string) (*models.RunSummary, error)
	ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error)
}

// ReadyCheck reports whether a dependency is reachable
type ReadyCheck func(ctx context.Context) error

// Handler contains HTTP handlers
type Handler struct {
	runner    Runner
	requester RunRequester
	history   RunHistory
	checks    map[string]ReadyCheck
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler. requester may be nil when no broker is configured.
func NewHandler(runner Runner, requester RunRequester, history RunHistory, checks map[string]ReadyCheck) *Handler {
	return &Handler{
		runner:    runner,
		requester: requester,
		history:   history,
		checks:    checks,
		logger:    util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/runs", h.startRun)
		v1.POST("/runs/requests", h.requestRun)
		v1.GET("/runs", h.listRuns)
		v1.GET("/runs/:id", h.getRun)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only when every dependency answers
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// startRun runs the engine synchronously and returns its summary. The run is
// detached from the request so a client disconnect cannot interrupt its writes.
func (h *Handler) startRun(c *gin.Context) {
	summary, err := h.runner.Run(context.WithoutCancel(c.Request.Context()))
	switch {
	case errors.Is(err, service.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{
			"error": "Run already in progress",
		})
		return
	case err != nil && summary == nil:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to start run",
			"details": err.Error(),
		})
		return
	case err != nil:
		h.logger.Error("Run failed", zap.String("run_id", summary.RunID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Run failed",
			"details": err.Error(),
			"summary": summary,
		})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// requestRun queues a run for the worker
func (h *Handler) requestRun(c *gin.Context) {
	if h.requester == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Run requests are not enabled",
		})
		return
	}

	requestedBy := c.GetHeader("X-Requested-By")
	if requestedBy == "" {
		requestedBy = "api"
	}

	id, err := h.requester.RequestRun(c.Request.Context(), requestedBy)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Failed to queue run",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"request_id": id,
	})
}

// listRuns handles listing recent runs
func (h *Handler) listRuns(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid limit",
			})
			return
		}
		limit = n
	}

	runs, err := h.history.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list runs",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs": runs,
	})
}

// getRun handles get run by ID
func (h *Handler) getRun(c *gin.Context) {
	run, err := h.history.GetRun(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Run not found",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get run",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, run)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
