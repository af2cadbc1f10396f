package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/puanakeyla/ChatbotMasakanIndonesia/models"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/repositories"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services/recipes"
	"go.uber.org/zap"
)

// Result describes one completed replacement of the recipe collection
type Result struct {
	Loaded   int                `json:"loaded"`
	Removed  int                `json:"removed"`
	Stats    *models.IndexStats `json:"stats"`
	Duration time.Duration      `json:"-"`
}

// Service rebuilds the embedding index from raw recipe records
type Service struct {
	index  repositories.EmbeddingIndex
	logger *zap.Logger

	mu sync.Mutex
}

// NewService creates a new ingestion service
func NewService(index repositories.EmbeddingIndex, logger *zap.Logger) *Service {
	return &Service{
		index:  index,
		logger: logger,
	}
}

// Replace processes raw recipes and swaps them in for the current collection.
// Processing happens before anything is deleted, so an invalid record leaves
// the index untouched.
func (s *Service) Replace(ctx context.Context, raw []models.Recipe) (*Result, error) {
	if len(raw) == 0 {
		return nil, services.NewValidationError("no recipes to ingest")
	}

	processed, err := recipes.ProcessAll(raw)
	if err != nil {
		return nil, err
	}
	docs := recipes.ToDocuments(processed)

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()

	existing, err := s.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count indexed recipes: %w", err)
	}
	if existing > 0 {
		s.logger.Info("clearing existing collection", zap.Int("documents", existing))
		if err := s.index.DeleteAll(ctx); err != nil {
			return nil, fmt.Errorf("failed to clear index: %w", err)
		}
	}

	if err := s.index.Add(ctx, docs); err != nil {
		return nil, fmt.Errorf("failed to add recipes: %w", err)
	}

	stats, err := s.index.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read index stats: %w", err)
	}

	result := &Result{
		Loaded:   len(docs),
		Removed:  existing,
		Stats:    stats,
		Duration: time.Since(start),
	}

	s.logger.Info("recipes ingested",
		zap.Int("loaded", result.Loaded),
		zap.Int("removed", result.Removed),
		zap.Int("total_documents", stats.TotalDocuments),
		zap.Int("categories", stats.NumCategories),
		zap.Duration("duration", result.Duration),
	)

	return result, nil
}

// IngestFile loads a JSON or YAML recipe file and replaces the collection with it
func (s *Service) IngestFile(ctx context.Context, path string) (*Result, error) {
	raw, err := recipes.LoadFile(path)
	if err != nil {
		return nil, err
	}
	s.logger.Info("recipe file loaded", zap.String("path", path), zap.Int("recipes", len(raw)))
	return s.Replace(ctx, raw)
}

// Clear removes every indexed recipe
func (s *Service) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.DeleteAll(ctx); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}
	s.logger.Info("recipe collection cleared")
	return nil
}
