package handlers

import (
	"context"
	"net/http"

	"github.com/puanakeyla/ChatbotMasakanIndonesia/middleware"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/models"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services/ingest"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/utils"
	"go.uber.org/zap"
)

// Ingester rebuilds the recipe collection
type Ingester interface {
	Replace(ctx context.Context, raw []models.Recipe) (*ingest.Result, error)
	Clear(ctx context.Context) error
}

// AdminHandler handles admin-only recipe management
type AdminHandler struct {
	ingester Ingester
	logger   *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(ingester Ingester, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		ingester: ingester,
		logger:   logger,
	}
}

// HandleReplaceRecipes handles POST /api/v1/admin/recipes.
// The body is a JSON array of raw recipes that replaces the collection.
func (h *AdminHandler) HandleReplaceRecipes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var raw []models.Recipe
	if err := utils.DecodeJSON(w, r, &raw); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.ingester.Replace(ctx, raw)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	subject := ""
	if claims := middleware.GetClaimsFromContext(ctx); claims != nil {
		subject = claims.Subject
	}
	h.logger.Info("recipe collection replaced",
		zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
		zap.String("admin", subject),
		zap.Int("loaded", result.Loaded))

	if err := utils.WriteCreated(w, result); err != nil {
		h.logger.Error("failed to write ingest response", zap.Error(err))
	}
}

// HandleDeleteRecipes handles DELETE /api/v1/admin/recipes
func (h *AdminHandler) HandleDeleteRecipes(w http.ResponseWriter, r *http.Request) {
	if err := h.ingester.Clear(r.Context()); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	utils.WriteNoContent(w)
}
