package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/puanakeyla/ChatbotMasakanIndonesia/utils"
	"go.uber.org/zap"
)

const readinessTimeout = 2 * time.Second

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// StatusInfo describes the running configuration for GET /api/v1/status
type StatusInfo struct {
	Version     string `json:"version"`
	Environment string `json:"environment"`
	Provider    string `json:"provider"`
	Model       string `json:"model"`
	Embedder    string `json:"embedder"`
	IndexStore  string `json:"index_store"`
	DefaultTopK int    `json:"default_top_k"`
	PromptGuard bool   `json:"prompt_guard"`
}

// Pinger checks that a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	index  Pinger
	status StatusInfo
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(index Pinger, status StatusInfo, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		index:  index,
		status: status,
		logger: logger,
	}
}

// HandleHealth handles GET /healthz.
// Always returns 200 while the process is serving.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness handles GET /readyz by pinging the recipe index
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.index.Ping(ctx); err != nil {
		h.logger.Warn("index health check failed", zap.Error(err))
		checks["index"] = "unhealthy"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["index"] = "healthy"
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// HandleStatus handles GET /api/v1/status
func (h *HealthHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if err := utils.WriteOK(w, h.status); err != nil {
		h.logger.Error("failed to write status response", zap.Error(err))
	}
}
