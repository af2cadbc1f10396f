package providers

import (
	"errors"
	"sort"
	"sync"

	"github.com/puanakeyla/ChatbotMasakanIndonesia/config"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services"
	"go.uber.org/zap"
)

// Provider names
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

var (
	// ErrProviderNotFound is returned when no builder is registered under a name
	ErrProviderNotFound = errors.New("provider not found")

	// ErrProviderAlreadyRegistered is returned when trying to register a duplicate builder
	ErrProviderAlreadyRegistered = errors.New("provider already registered")
)

// Builder creates a backend from its configuration
type Builder func(cfg ProviderConfig, logger *zap.Logger) (Backend, error)

// Registry maps provider names to backend builders
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Register adds a builder under name
func (r *Registry) Register(name string, builder Builder) error {
	if name == "" {
		return errors.New("provider name cannot be empty")
	}
	if builder == nil {
		return errors.New("provider builder cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.builders[name]; exists {
		return ErrProviderAlreadyRegistered
	}
	r.builders[name] = builder
	return nil
}

// Build creates the backend registered under name
func (r *Registry) Build(name string, cfg ProviderConfig, logger *zap.Logger) (Backend, error) {
	r.mu.RLock()
	builder, exists := r.builders[name]
	r.mu.RUnlock()

	if !exists {
		return nil, ErrProviderNotFound
	}
	return builder(cfg.WithDefaults(), logger)
}

// ListProviders returns registered provider names, sorted
func (r *Registry) ListProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultRegistry = NewRegistry()

// Register registers a builder in the default registry. Adapter packages
// call it from init, so importing an adapter makes it selectable.
func Register(name string, builder Builder) {
	if err := defaultRegistry.Register(name, builder); err != nil {
		panic("providers: " + name + ": " + err.Error())
	}
}

// ListProviders lists the providers in the default registry
func ListProviders() []string {
	return defaultRegistry.ListProviders()
}

// SelectedProvider returns the provider name chosen by the configuration
func SelectedProvider(cfg *config.Config) string {
	if cfg.Generation.UseGemini {
		return ProviderGemini
	}
	return ProviderOpenAI
}

// ConfigFor extracts the provider config for name from the application config
func ConfigFor(cfg *config.Config, name string) ProviderConfig {
	pcfg := DefaultProviderConfig()
	pcfg.Model = cfg.Generation.Model

	switch name {
	case ProviderGemini:
		pcfg.APIKey = cfg.Providers.Gemini.APIKey
		pcfg.BaseURL = cfg.Providers.Gemini.BaseURL
		pcfg.Timeout = cfg.Providers.Gemini.Timeout
		pcfg.MaxRetries = cfg.Providers.Gemini.MaxRetries
	case ProviderOpenAI:
		pcfg.APIKey = cfg.Providers.OpenAI.APIKey
		pcfg.BaseURL = cfg.Providers.OpenAI.BaseURL
		pcfg.Timeout = cfg.Providers.OpenAI.Timeout
		pcfg.MaxRetries = cfg.Providers.OpenAI.MaxRetries
	}
	return pcfg
}

// NewBackend builds the single backend selected by USE_GEMINI from the
// default registry
func NewBackend(cfg *config.Config, logger *zap.Logger) (Backend, error) {
	return newBackend(defaultRegistry, cfg, logger)
}

func newBackend(r *Registry, cfg *config.Config, logger *zap.Logger) (Backend, error) {
	name := SelectedProvider(cfg)
	pcfg := ConfigFor(cfg, name)

	if pcfg.APIKey == "" {
		return nil, services.NewConfigurationError("API key for provider %s is not configured", name).
			WithDetail("provider", name)
	}

	backend, err := r.Build(name, pcfg, logger)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return nil, services.NewConfigurationError("provider %s is not available in this build", name).
				WithDetail("provider", name)
		}
		return nil, services.WrapConfiguration("failed to create generation backend", err)
	}

	logger.Info("generation backend selected",
		zap.String("provider", backend.Name()),
		zap.String("model", backend.Model()))
	return backend, nil
}
