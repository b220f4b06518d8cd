package api

import (
	"net/http"
	"time"

	domrepo "FloodCast/internal/domain/repository"
	xlogger "FloodCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

// HealthHandler exposes liveness and readiness probes.
type HealthHandler struct {
	logger  *xlogger.Logger
	storage domrepo.Storage
}

func NewHealthHandler(logger *xlogger.Logger, storage domrepo.Storage) *HealthHandler {
	return &HealthHandler{logger: logger, storage: storage}
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)
	e.GET("/readyz", h.Readyz)
}

// Healthz reports process liveness.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports readiness of downstream storage.
func (h *HealthHandler) Readyz(c echo.Context) error {
	ctx := c.Request().Context()
	if h.storage != nil {
		start := time.Now()
		if err := h.storage.Health(ctx); err != nil {
			if h.logger != nil {
				h.logger.Error("storage health check failed", xlogger.Error(err))
			}
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"error":  err.Error(),
			})
		}
		if h.logger != nil {
			h.logger.Debug("storage health ok", xlogger.Duration("duration_ms", time.Since(start)))
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}
