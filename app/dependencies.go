package app

import (
	"context"
	"fmt"

	"github.com/puanakeyla/ChatbotMasakanIndonesia/config"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/handlers"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/middleware"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/repositories"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/repositories/memory"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/repositories/postgres"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/repositories/sqlite"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services/chat"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services/embedding"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services/ingest"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services/prompt"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services/providers"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services/retrieval"
	"go.uber.org/zap"

	// Adapters register themselves with the provider registry
	_ "github.com/puanakeyla/ChatbotMasakanIndonesia/services/providers/gemini"
	_ "github.com/puanakeyla/ChatbotMasakanIndonesia/services/providers/openai"
)

// Version is the build version reported by /api/v1/status
var Version = "dev"

// Dependencies holds every long-lived component of the chatbot.
// It owns the index and the embedder and releases them in Close.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger

	// Storage
	Embedder embedding.Embedder
	Index    repositories.EmbeddingIndex

	// Services
	Retriever *retrieval.Service
	Backend   providers.Backend
	Chat      *chat.Service
	Ingest    *ingest.Service
	Guard     *prompt.Guard

	// Auth
	AuthMiddleware *middleware.AuthMiddleware

	closeEmbedder func() error
}

// NewDependencies creates and wires up all application dependencies.
// Any failure releases what was already opened.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps, err := NewIndexDependencies(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := deps.initGeneration(cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	deps.initAuth(cfg)

	logger.Info("all dependencies initialized successfully",
		zap.String("index", cfg.Index.Backend),
		zap.String("embedder", deps.Embedder.Name()),
		zap.String("provider", deps.Backend.Name()))
	return deps, nil
}

// NewIndexDependencies wires only the embedder, the index and the services
// over it. The ingest command uses it and needs no generation backend.
func NewIndexDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initEmbedder(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	if err := deps.initIndex(ctx, cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize recipe index: %w", err)
	}

	deps.Retriever = retrieval.NewService(deps.Index, cfg.Retrieval.DefaultTopK, logger)
	deps.Ingest = ingest.NewService(deps.Index, logger)
	return deps, nil
}

// initEmbedder builds the configured embedding model and wraps it with
// batching and the query cache
func (d *Dependencies) initEmbedder(cfg *config.Config) error {
	var base embedding.Embedder

	switch cfg.Embedding.Provider {
	case config.EmbeddingProviderOpenAI:
		if cfg.Providers.OpenAI.APIKey == "" {
			return services.NewConfigurationError("OPENAI_API_KEY is required for openai embeddings")
		}
		base = embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKey:     cfg.Providers.OpenAI.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Timeout:    cfg.Embedding.Timeout,
			MaxRetries: cfg.Embedding.MaxRetries,
		}, d.Logger)
	case config.EmbeddingProviderLocal:
		local, err := embedding.NewLocalEmbedder(cfg.Embedding.ModelPath, cfg.Embedding.Model, cfg.Embedding.Dimensions, d.Logger)
		if err != nil {
			return err
		}
		d.closeEmbedder = local.Close
		base = local
	case config.EmbeddingProviderHashing:
		base = embedding.NewHashingEmbedder(cfg.Embedding.Dimensions)
	default:
		return services.NewConfigurationError("unknown embedding provider %q", cfg.Embedding.Provider)
	}

	batched := embedding.NewBatchedEmbedder(base, cfg.Embedding.BatchSize, cfg.Embedding.Concurrency)
	if cfg.Embedding.CacheSize > 0 {
		d.Embedder = embedding.NewCachedEmbedder(batched, cfg.Embedding.CacheSize, cfg.Embedding.CacheTTL)
	} else {
		d.Embedder = batched
	}

	d.Logger.Info("embedder initialized",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", d.Embedder.Name()),
		zap.Int("dimensions", d.Embedder.Dimensions()))
	return nil
}

// initIndex opens the configured index store
func (d *Dependencies) initIndex(ctx context.Context, cfg *config.Config) error {
	switch cfg.Index.Backend {
	case config.IndexBackendSQLite:
		idx, err := sqlite.Open(ctx, cfg.Index.PersistDir, cfg.Index.Collection, d.Embedder, d.Logger)
		if err != nil {
			return err
		}
		d.Index = idx
	case config.IndexBackendPostgres:
		idx, err := postgres.OpenRecipeIndex(ctx, cfg, d.Embedder, d.Logger)
		if err != nil {
			return err
		}
		d.Index = idx
		d.Logger.Info("database connection established",
			zap.String("connection", cfg.Database.LogString()))
	case config.IndexBackendMemory:
		d.Index = memory.NewRecipeIndex(d.Embedder, d.Logger)
	default:
		return services.NewConfigurationError("unknown index backend %q", cfg.Index.Backend)
	}

	count, err := d.Index.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count indexed recipes: %w", err)
	}
	if count == 0 {
		d.Logger.Warn("recipe index is empty, run the ingest command first",
			zap.String("collection", cfg.Index.Collection))
	}

	d.Logger.Info("recipe index opened",
		zap.String("backend", cfg.Index.Backend),
		zap.String("collection", cfg.Index.Collection),
		zap.Int("documents", count))
	return nil
}

// initGeneration builds the backend, the chat orchestrator and the prompt guard
func (d *Dependencies) initGeneration(cfg *config.Config) error {
	backend, err := providers.NewBackend(cfg, d.Logger)
	if err != nil {
		return err
	}
	d.Backend = backend

	d.Chat = chat.NewService(d.Retriever, d.Backend, chat.Config{
		Temperature:      cfg.Generation.Temperature,
		MaxTokens:        cfg.Generation.MaxTokens,
		RetrievalTimeout: cfg.Chat.RetrievalTimeout,
	}, d.Logger)

	d.Guard = prompt.NewGuard(cfg.Prompt.GuardEnabled, d.Logger)
	return nil
}

func (d *Dependencies) initAuth(cfg *config.Config) {
	if cfg.Admin.JWTSecret == "" {
		d.Logger.Warn("ADMIN_JWT_SECRET not set, admin endpoints disabled")
	}
	d.AuthMiddleware = middleware.NewAuthMiddleware(middleware.NewHMACValidator(cfg.Admin.JWTSecret), d.Logger)
}

// StatusInfo describes the running configuration for the status endpoint
func (d *Dependencies) StatusInfo() handlers.StatusInfo {
	info := handlers.StatusInfo{
		Version:     Version,
		Environment: d.Config.Environment,
		IndexStore:  d.Config.Index.Backend,
		DefaultTopK: d.Config.Retrieval.DefaultTopK,
		PromptGuard: d.Guard.Enabled(),
	}
	if d.Backend != nil {
		info.Provider = d.Backend.Name()
		info.Model = d.Backend.Model()
	}
	if d.Embedder != nil {
		info.Embedder = d.Embedder.Name()
	}
	return info
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Index != nil {
		if err := d.Index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close recipe index: %w", err))
		} else {
			d.Logger.Info("recipe index closed")
		}
	}

	if d.closeEmbedder != nil {
		if err := d.closeEmbedder(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close embedder: %w", err))
		}
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
