package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/puanakeyla/ChatbotMasakanIndonesia/models"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/repositories"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services"
	"go.uber.org/zap"
)

// NoContext is what FormatContext renders for an empty result list.
// The chat orchestrator keys the ungrounded prompt off this exact string.
const NoContext = "Tidak ada resep yang relevan ditemukan."

const (
	contextHeader = "Berikut adalah resep-resep yang relevan:\n"
	unknownRecipe = "Unknown"

	// DefaultTopK is used when the configured default is not positive
	DefaultTopK = 3
)

// Service ranks recipes for a query and turns the hits into LLM context
type Service struct {
	index       repositories.EmbeddingIndex
	defaultTopK int
	logger      *zap.Logger
}

// NewService creates a retriever. A non-positive defaultTopK falls back to 3.
func NewService(index repositories.EmbeddingIndex, defaultTopK int, logger *zap.Logger) *Service {
	if defaultTopK <= 0 {
		defaultTopK = DefaultTopK
	}
	return &Service{
		index:       index,
		defaultTopK: defaultTopK,
		logger:      logger,
	}
}

// DefaultTopK returns the number of results used when callers pass topK <= 0
func (s *Service) DefaultTopK() int {
	return s.defaultTopK
}

func (s *Service) resolveTopK(topK int) int {
	if topK <= 0 {
		return s.defaultTopK
	}
	return topK
}

// Retrieve returns up to topK results ordered by ascending distance
func (s *Service) Retrieve(ctx context.Context, query string, topK int) ([]models.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, services.NewValidationError("query must not be empty")
	}

	k := s.resolveTopK(topK)
	results, err := s.index.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("retrieved recipes",
		zap.Int("top_k", k),
		zap.Int("results", len(results)))
	return results, nil
}

// RetrieveWithThreshold keeps results whose similarity is at least
// minSimilarity. Results without a distance are dropped.
func (s *Service) RetrieveWithThreshold(ctx context.Context, query string, topK int, minSimilarity float64) ([]models.ScoredResult, error) {
	results, err := s.Retrieve(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	filtered := make([]models.ScoredResult, 0, len(results))
	for _, r := range results {
		similarity := r.Similarity()
		if similarity == nil || *similarity < minSimilarity {
			continue
		}
		filtered = append(filtered, models.ScoredResult{RetrievalResult: r, Similarity: similarity})
	}
	return filtered, nil
}

// RetrieveByCategory is Retrieve restricted to an exact category match
func (s *Service) RetrieveByCategory(ctx context.Context, query, category string, topK int) ([]models.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, services.NewValidationError("query must not be empty")
	}
	if strings.TrimSpace(category) == "" {
		return nil, services.NewValidationError("category must not be empty")
	}

	k := s.resolveTopK(topK)
	results, err := s.index.SearchFiltered(ctx, query, k, category)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("retrieved recipes by category",
		zap.String("category", category),
		zap.Int("top_k", k),
		zap.Int("results", len(results)))
	return results, nil
}

// FormatContext renders results as the numbered recipe context handed to
// the model. An empty slice renders as NoContext.
func FormatContext(results []models.RetrievalResult, includeMetadata bool) string {
	if len(results) == 0 {
		return NoContext
	}

	parts := make([]string, 0, 1+len(results)*6)
	parts = append(parts, contextHeader)

	for i, r := range results {
		name := r.Metadata.Name
		if name == "" {
			name = unknownRecipe
		}
		parts = append(parts, fmt.Sprintf("\n=== Resep %d: %s ===", i+1, name))

		if includeMetadata {
			m := r.Metadata
			if m.Category != "" {
				parts = append(parts, "Kategori: "+m.Category)
			}
			if m.Servings != "" {
				parts = append(parts, "Porsi: "+m.Servings)
			}
			if m.CookTime != "" {
				parts = append(parts, "Waktu Memasak: "+m.CookTime)
			}
			if m.Difficulty != "" {
				parts = append(parts, "Tingkat Kesulitan: "+m.Difficulty)
			}
		}

		parts = append(parts, "\n"+r.Document)
	}

	return strings.Join(parts, "\n")
}

// IsNoContext reports whether a rendered context carries no recipes
func IsNoContext(context string) bool {
	return context == NoContext
}

// Summarize lists recipe names in rank order and distinct non-empty
// categories in first-seen order
func Summarize(results []models.RetrievalResult) models.RetrievalSummary {
	summary := models.RetrievalSummary{
		TotalRetrieved: len(results),
		RecipeNames:    make([]string, 0, len(results)),
		Categories:     []string{},
	}

	seen := make(map[string]struct{})
	for _, r := range results {
		summary.RecipeNames = append(summary.RecipeNames, r.Metadata.Name)

		category := r.Metadata.Category
		if category == "" {
			continue
		}
		if _, ok := seen[category]; ok {
			continue
		}
		seen[category] = struct{}{}
		summary.Categories = append(summary.Categories, category)
	}
	return summary
}

// Sources builds the citation list returned alongside a chat response
func Sources(results []models.RetrievalResult) []models.SourceRef {
	sources := make([]models.SourceRef, 0, len(results))
	for _, r := range results {
		sources = append(sources, models.SourceRef{
			Name:       r.Metadata.Name,
			Category:   r.Metadata.Category,
			Similarity: r.Similarity(),
		})
	}
	return sources
}

// Score attaches similarity scores without filtering
func Score(results []models.RetrievalResult) []models.ScoredResult {
	scored := make([]models.ScoredResult, 0, len(results))
	for _, r := range results {
		scored = append(scored, models.ScoredResult{RetrievalResult: r, Similarity: r.Similarity()})
	}
	return scored
}
