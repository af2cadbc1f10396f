package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/app"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/handlers"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/middleware"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()
	cfg := deps.Config

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	if cfg.Server.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.Server.RequestTimeout))
	}

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	health := handlers.NewHealthHandler(deps.Index, deps.StatusInfo(), deps.Logger)
	chat := handlers.NewChatHandler(deps.Chat, deps.Guard, cfg.Retrieval.MaxTopK, deps.Logger)
	recipes := handlers.NewRecipeHandler(deps.Retriever, deps.Index, deps.Logger)
	admin := handlers.NewAdminHandler(deps.Ingest, deps.Logger)

	// Health check endpoints
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", health.HandleStatus)

		r.Route("/chat", func(r chi.Router) {
			r.Post("/", chat.HandleChat)
			r.Post("/plain", chat.HandlePlainChat)
		})

		r.Route("/recipes", func(r chi.Router) {
			r.Get("/search", recipes.HandleSearch)
			r.Get("/categories", recipes.HandleCategories)
			r.Get("/categories/{category}/prompt", recipes.HandleCategoryPrompt)
			r.Get("/stats", recipes.HandleStats)
		})

		// Recipe management (require admin role)
		r.Route("/admin", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAdmin)
			r.Post("/recipes", admin.HandleReplaceRecipes)
			r.Delete("/recipes", admin.HandleDeleteRecipes)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusNotFound, "endpoint not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return r
}
