// Package api exposes adjustment runs over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vsinha/rebalance/pkg/application/dto"
	"github.com/vsinha/rebalance/pkg/domain/entities"
	"github.com/vsinha/rebalance/pkg/infrastructure/events"
)

// Runner executes one adjustment request
type Runner interface {
	Run(ctx context.Context, req dto.AdjustmentRequest) (*dto.AdjustmentResult, error)
}

// EventReader returns the retained events of one run
type EventReader interface {
	ReadEvents(streamID string, fromVersion int) ([]events.Event, error)
}

// Handler serves the adjustment API
type Handler struct {
	runner  Runner
	events  EventReader
	metrics http.Handler
	logger  *slog.Logger
}

// NewHandler creates a handler. events and metrics may be nil.
func NewHandler(runner Runner, events EventReader, metrics http.Handler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{runner: runner, events: events, metrics: metrics, logger: logger}
}

// RegisterRoutes mounts the API routes on r
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/healthz", h.Health)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics))
	}
	v1 := r.Group("/v1")
	{
		v1.POST("/adjustments", h.CreateAdjustment)
		if h.events != nil {
			v1.GET("/runs/:id/events", h.ListRunEvents)
		}
	}
}

// NewRouter builds a gin engine with request logging and the API routes
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger())
	h.RegisterRoutes(router)
	return router
}

// Health reports liveness
// GET /healthz
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CreateAdjustment runs one adjustment and returns its result
// POST /v1/adjustments
func (h *Handler) CreateAdjustment(c *gin.Context) {
	var req dto.AdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}

	result, err := h.runner.Run(c.Request.Context(), req)
	if err != nil {
		status := StatusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Adjustment run failed", "date", req.Date, "line", req.Line, "error", err)
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListRunEvents returns the event history of a recent run
// GET /v1/runs/:id/events?from=<version>
func (h *Handler) ListRunEvents(c *gin.Context) {
	runID := c.Param("id")
	from := 1
	if raw := c.Query("from"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be a positive version"})
			return
		}
		from = v
	}

	history, err := h.events.ReadEvents(runID, 1)
	if err != nil {
		h.logger.Error("Reading run events failed", "run_id", runID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(history) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no events retained for run " + runID})
		return
	}

	envelopes := make([]events.Envelope, 0, len(history))
	for _, event := range history {
		if event.Version() < from {
			continue
		}
		envelope, err := events.NewEnvelope(event)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		envelopes = append(envelopes, envelope)
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "events": envelopes})
}

// StatusFor maps a run error to its HTTP status
func StatusFor(err error) int {
	switch {
	case errors.Is(err, dto.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, entities.ErrNoPlan):
		return http.StatusNotFound
	case errors.Is(err, entities.ErrTargetUnresolved):
		return http.StatusUnprocessableEntity
	case errors.Is(err, entities.ErrSnapshotUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, entities.ErrInvalidPlanRow):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// Server runs the router with graceful shutdown
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a server listening on addr
func NewServer(addr string, h *Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(h),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: h.logger,
	}
}

// Run serves until ctx is cancelled, then shuts down
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("HTTP server shutting down")
	return s.httpServer.Shutdown(shutdownCtx)
}
