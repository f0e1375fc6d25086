package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/straye-as/solar-crm-api/internal/database"
	"github.com/straye-as/solar-crm-api/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const healthCheckTimeout = 3 * time.Second

// HealthHandler serves the liveness and readiness probes
type HealthHandler struct {
	db      *gorm.DB
	storage storage.Storage
	logger  *zap.Logger
}

func NewHealthHandler(db *gorm.DB, fileStorage storage.Storage, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, storage: fileStorage, logger: logger}
}

// Live godoc
// @Summary Liveness probe
// @Tags Health
// @Success 200 {string} string "OK"
// @Router /health [get]
func (h *HealthHandler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Database godoc
// @Summary Database health with pool statistics
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *HealthHandler) Database(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	stats, err := database.HealthCheckWithStats(ctx, h.db)
	if err != nil {
		h.logger.Error("Database health check failed", zap.Error(err))
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "unhealthy",
			"error":   err.Error(),
			"service": "database",
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "database",
		"pool":    stats,
	})
}

// Ready godoc
// @Summary Readiness probe
// @Description Checks the database and the meter file storage
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health/ready [get]
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"database": "ok", "storage": "ok"}
	status := http.StatusOK

	if err := database.HealthCheck(ctx, h.db); err != nil {
		h.logger.Warn("readiness: database unavailable", zap.Error(err))
		checks["database"] = "unavailable"
		status = http.StatusServiceUnavailable
	}
	if err := h.storage.HealthCheck(ctx); err != nil {
		h.logger.Warn("readiness: storage unavailable", zap.Error(err))
		checks["storage"] = "unavailable"
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, checks)
}
