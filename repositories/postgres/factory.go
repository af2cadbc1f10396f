package postgres

import (
	"context"

	"github.com/puanakeyla/ChatbotMasakanIndonesia/config"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services/embedding"
	"go.uber.org/zap"
)

// OpenRecipeIndex connects to Postgres, enables pgvector and returns the
// index for the configured collection. The index owns the pool.
func OpenRecipeIndex(ctx context.Context, cfg *config.Config, embedder embedding.Embedder, logger *zap.Logger) (*RecipeIndex, error) {
	db, err := NewDB(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	if err := db.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	idx, err := NewRecipeIndex(ctx, db, cfg.Index.Collection, embedder, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}
