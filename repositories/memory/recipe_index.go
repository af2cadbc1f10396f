// Package memory provides an in-process EmbeddingIndex for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/puanakeyla/ChatbotMasakanIndonesia/models"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/repositories"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/repositories/indexutil"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services/embedding"
	"go.uber.org/zap"
)

type record struct {
	doc    models.IndexedDocument
	vector []float32
}

// RecipeIndex keeps documents and vectors in a slice guarded by a RWMutex
type RecipeIndex struct {
	mu       sync.RWMutex
	records  []record
	byID     map[string]int
	embedder embedding.Embedder
	logger   *zap.Logger
}

var _ repositories.EmbeddingIndex = (*RecipeIndex)(nil)

// NewRecipeIndex creates an empty in-memory index
func NewRecipeIndex(embedder embedding.Embedder, logger *zap.Logger) *RecipeIndex {
	return &RecipeIndex{
		byID:     make(map[string]int),
		embedder: embedder,
		logger:   logger,
	}
}

// Add embeds and stores docs
func (idx *RecipeIndex) Add(ctx context.Context, docs []models.IndexedDocument) error {
	if len(docs) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	prepared, err := indexutil.Prepare(docs, len(idx.records), func(id string) bool {
		_, ok := idx.byID[id]
		return ok
	})
	if err != nil {
		return err
	}

	vectors, err := idx.embedder.Embed(ctx, indexutil.Texts(prepared))
	if err != nil {
		return services.WrapIndex("failed to embed documents", err)
	}
	if err := indexutil.CheckVectorCount(vectors, len(prepared)); err != nil {
		return services.WrapIndex("failed to embed documents", err)
	}

	for i, doc := range prepared {
		idx.byID[doc.ID] = len(idx.records)
		idx.records = append(idx.records, record{doc: doc, vector: vectors[i]})
	}

	idx.logger.Info("documents added to index",
		zap.Int("added", len(prepared)),
		zap.Int("total", len(idx.records)))
	return nil
}

// AddWithMetadata zips parallel slices and adds them
func (idx *RecipeIndex) AddWithMetadata(ctx context.Context, texts []string, metadata []models.Metadata, ids []string) error {
	docs, err := indexutil.Zip(texts, metadata, ids)
	if err != nil {
		return err
	}
	return idx.Add(ctx, docs)
}

// Search returns the topK nearest documents
func (idx *RecipeIndex) Search(ctx context.Context, query string, topK int) ([]models.RetrievalResult, error) {
	return idx.search(ctx, query, topK, nil)
}

// SearchFiltered returns the topK nearest documents of the given category
func (idx *RecipeIndex) SearchFiltered(ctx context.Context, query string, topK int, category string) ([]models.RetrievalResult, error) {
	return idx.search(ctx, query, topK, &category)
}

func (idx *RecipeIndex) search(ctx context.Context, query string, topK int, category *string) ([]models.RetrievalResult, error) {
	if err := indexutil.ValidateTopK(topK); err != nil {
		return nil, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.records) == 0 {
		return []models.RetrievalResult{}, nil
	}

	queryVec, err := embedding.EmbedOne(ctx, idx.embedder, query)
	if err != nil {
		return nil, services.WrapIndex("failed to embed query", err)
	}

	candidates := make([]indexutil.Candidate, 0, len(idx.records))
	for seq, rec := range idx.records {
		if category != nil && rec.doc.Metadata.Category != *category {
			continue
		}
		d, err := indexutil.L2(queryVec, rec.vector)
		if err != nil {
			return nil, services.WrapIndex("stored vector is incompatible with query", err)
		}
		candidates = append(candidates, indexutil.Candidate{
			Seq:      seq,
			Distance: d,
			Result: models.RetrievalResult{
				ID:       rec.doc.ID,
				Document: rec.doc.Text,
				Metadata: rec.doc.Metadata,
			},
		})
	}

	return indexutil.Rank(candidates, topK), nil
}

// AllCategories returns distinct non-empty categories sorted ascending
func (idx *RecipeIndex) AllCategories(ctx context.Context) ([]string, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.categoriesLocked(), nil
}

func (idx *RecipeIndex) categoriesLocked() []string {
	values := make([]string, len(idx.records))
	for i, rec := range idx.records {
		values[i] = rec.doc.Metadata.Category
	}
	return indexutil.SortedCategories(values)
}

// Stats describes the index
func (idx *RecipeIndex) Stats(ctx context.Context) (*models.IndexStats, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return indexutil.BuildStats(len(idx.records), idx.categoriesLocked()), nil
}

// Count returns the number of documents
func (idx *RecipeIndex) Count(ctx context.Context) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.records), nil
}

// DeleteAll removes every document
func (idx *RecipeIndex) DeleteAll(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.records = nil
	idx.byID = make(map[string]int)
	idx.logger.Info("index cleared")
	return nil
}

// Ping always succeeds
func (idx *RecipeIndex) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (idx *RecipeIndex) Close() error {
	return nil
}
