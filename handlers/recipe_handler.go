package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/models"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services/chat"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services/retrieval"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/utils"
	"go.uber.org/zap"
)

const maxSearchTopK = 20

// RecipeSearcher runs similarity searches over the recipe collection
type RecipeSearcher interface {
	RetrieveWithThreshold(ctx context.Context, query string, topK int, minSimilarity float64) ([]models.ScoredResult, error)
	RetrieveByCategory(ctx context.Context, query, category string, topK int) ([]models.RetrievalResult, error)
	DefaultTopK() int
}

// RecipeCatalog describes the indexed collection
type RecipeCatalog interface {
	AllCategories(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (*models.IndexStats, error)
}

// SearchResponse is the body of a recipe search
type SearchResponse struct {
	Query    string                `json:"query"`
	TopK     int                   `json:"top_k"`
	Category string                `json:"category,omitempty"`
	Results  []models.ScoredResult `json:"results"`
}

// CategoryPromptResponse carries the ready-made recommendation prompt for a category
type CategoryPromptResponse struct {
	Category string `json:"category"`
	Prompt   string `json:"prompt"`
}

// RecipeHandler handles recipe browsing HTTP requests
type RecipeHandler struct {
	searcher RecipeSearcher
	catalog  RecipeCatalog
	logger   *zap.Logger
}

// NewRecipeHandler creates a new RecipeHandler
func NewRecipeHandler(searcher RecipeSearcher, catalog RecipeCatalog, logger *zap.Logger) *RecipeHandler {
	return &RecipeHandler{
		searcher: searcher,
		catalog:  catalog,
		logger:   logger,
	}
}

// HandleSearch handles GET /api/v1/recipes/search
func (h *RecipeHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		_ = utils.WriteBadRequest(w, "q is required", nil)
		return
	}
	topK, err := utils.QueryInt(r, "top_k", h.searcher.DefaultTopK(), 1, maxSearchTopK)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	minSimilarity, err := utils.QueryFloat(r, "min_similarity", 0, 0, 1)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	category := strings.TrimSpace(r.URL.Query().Get("category"))

	var results []models.ScoredResult
	if category != "" {
		var raw []models.RetrievalResult
		raw, err = h.searcher.RetrieveByCategory(ctx, query, category, topK)
		results = atLeast(retrieval.Score(raw), minSimilarity)
	} else {
		results, err = h.searcher.RetrieveWithThreshold(ctx, query, topK, minSimilarity)
	}
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, SearchResponse{
		Query:    query,
		TopK:     topK,
		Category: category,
		Results:  results,
	}); err != nil {
		h.logger.Error("failed to write search response", zap.Error(err))
	}
}

// HandleCategories handles GET /api/v1/recipes/categories
func (h *RecipeHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.AllCategories(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if categories == nil {
		categories = []string{}
	}

	if err := utils.WriteOK(w, categories); err != nil {
		h.logger.Error("failed to write categories response", zap.Error(err))
	}
}

// HandleStats handles GET /api/v1/recipes/stats
func (h *RecipeHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.catalog.Stats(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, stats); err != nil {
		h.logger.Error("failed to write stats response", zap.Error(err))
	}
}

// HandleCategoryPrompt handles GET /api/v1/recipes/categories/{category}/prompt
func (h *RecipeHandler) HandleCategoryPrompt(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	if decoded, err := url.PathUnescape(category); err == nil {
		category = decoded
	}
	category = strings.TrimSpace(category)
	if category == "" {
		_ = utils.WriteBadRequest(w, "category is required", nil)
		return
	}

	if err := utils.WriteOK(w, CategoryPromptResponse{
		Category: category,
		Prompt:   chat.CategoryPrompt(category),
	}); err != nil {
		h.logger.Error("failed to write category prompt", zap.Error(err))
	}
}

// atLeast drops results scored below minSimilarity. A zero threshold keeps everything.
func atLeast(results []models.ScoredResult, minSimilarity float64) []models.ScoredResult {
	if minSimilarity <= 0 {
		return results
	}
	kept := results[:0]
	for _, r := range results {
		if r.Similarity != nil && *r.Similarity >= minSimilarity {
			kept = append(kept, r)
		}
	}
	return kept
}
