package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Index backends
const (
	IndexBackendSQLite   = "sqlite"
	IndexBackendPostgres = "postgres"
	IndexBackendMemory   = "memory"
)

// Embedding providers
const (
	EmbeddingProviderOpenAI  = "openai"
	EmbeddingProviderLocal   = "local"
	EmbeddingProviderHashing = "hashing"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Index         IndexConfig
	Embedding     EmbeddingConfig
	Generation    GenerationConfig
	Providers     ProvidersConfig
	Retrieval     RetrievalConfig
	Chat          ChatConfig
	Admin         AdminConfig
	Prompt        PromptConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	AllowedOrigins  []string
	TLS             struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// IndexConfig selects and configures the recipe index store
type IndexConfig struct {
	Backend    string // sqlite, postgres or memory
	PersistDir string // sqlite only
	Collection string // table name
}

// EmbeddingConfig configures the embedding model client
type EmbeddingConfig struct {
	Provider    string
	Model       string
	ModelPath   string // local ONNX model directory
	Dimensions  int
	BaseURL     string
	Timeout     time.Duration
	MaxRetries  int
	BatchSize   int
	Concurrency int
	CacheSize   int
	CacheTTL    time.Duration
}

// GenerationConfig holds the sampling parameters and backend selection
type GenerationConfig struct {
	UseGemini   bool
	Model       string // empty means the provider default
	Temperature float64
	MaxTokens   int
}

// ProvidersConfig holds LLM provider configurations
type ProvidersConfig struct {
	Gemini GeminiConfig
	OpenAI OpenAIConfig
}

// GeminiConfig holds Gemini provider configuration
type GeminiConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// OpenAIConfig holds OpenAI provider configuration
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// RetrievalConfig holds retrieval defaults
type RetrievalConfig struct {
	DefaultTopK int
	MaxTopK     int
}

// ChatConfig holds per-stage limits of the chat pipeline
type ChatConfig struct {
	RetrievalTimeout time.Duration
}

// AdminConfig holds admin API authentication settings
type AdminConfig struct {
	JWTSecret string // admin routes are disabled when empty
}

// PromptConfig toggles the prompt-injection guard
type PromptConfig struct {
	GuardEnabled bool
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// .env is optional; real environment variables win
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 90*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 75*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:8501", "http://localhost:5173"}),
			TLS: struct {
				Enabled  bool
				CertFile string
				KeyFile  string
			}{
				Enabled:  getEnvAsBool("TLS_ENABLED", false),
				CertFile: getEnv("TLS_CERT_FILE", "certs/cert.pem"),
				KeyFile:  getEnv("TLS_KEY_FILE", "certs/key.pem"),
			},
		},
		Database: loadDatabaseConfig(),
		Index: IndexConfig{
			Backend:    strings.ToLower(getEnv("INDEX_BACKEND", IndexBackendSQLite)),
			PersistDir: getEnv("INDEX_PERSIST_DIR", "./chroma_db"),
			Collection: getEnv("INDEX_COLLECTION", "indonesian_recipes"),
		},
		Embedding: EmbeddingConfig{
			Provider:    strings.ToLower(getEnv("EMBEDDING_PROVIDER", EmbeddingProviderLocal)),
			Model:       getEnv("EMBEDDING_MODEL", ""), // empty means the provider default
			ModelPath:   getEnv("EMBEDDING_MODEL_PATH", "./models/paraphrase-multilingual-MiniLM-L12-v2"),
			Dimensions:  getEnvAsInt("EMBEDDING_DIMENSIONS", 384),
			BaseURL:     getEnv("EMBEDDING_BASE_URL", "https://api.openai.com/v1"),
			Timeout:     getEnvAsDuration("EMBEDDING_TIMEOUT", 30*time.Second),
			MaxRetries:  getEnvAsInt("EMBEDDING_MAX_RETRIES", 2),
			BatchSize:   getEnvAsInt("EMBEDDING_BATCH_SIZE", 32),
			Concurrency: getEnvAsInt("EMBEDDING_CONCURRENCY", 4),
			CacheSize:   getEnvAsInt("EMBEDDING_CACHE_SIZE", 1000),
			CacheTTL:    getEnvAsDuration("EMBEDDING_CACHE_TTL", time.Hour),
		},
		Generation: GenerationConfig{
			UseGemini:   getEnvAsBool("USE_GEMINI", true),
			Model:       getEnv("LLM_MODEL", ""),
			Temperature: getEnvAsFloat("TEMPERATURE", 0.7),
			MaxTokens:   getEnvAsInt("MAX_TOKENS", 1000),
		},
		Providers: ProvidersConfig{
			Gemini: GeminiConfig{
				APIKey:     getEnv("GEMINI_API_KEY", getEnv("GOOGLE_API_KEY", "")),
				BaseURL:    getEnv("GEMINI_BASE_URL", ""),
				Timeout:    getEnvAsDuration("GEMINI_TIMEOUT", 60*time.Second),
				MaxRetries: getEnvAsInt("GEMINI_MAX_RETRIES", 3),
			},
			OpenAI: OpenAIConfig{
				APIKey:     getEnv("OPENAI_API_KEY", ""),
				BaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				Timeout:    getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
				MaxRetries: getEnvAsInt("OPENAI_MAX_RETRIES", 3),
			},
		},
		Retrieval: RetrievalConfig{
			DefaultTopK: getEnvAsInt("RETRIEVAL_TOP_K", 3),
			MaxTopK:     getEnvAsInt("RETRIEVAL_MAX_TOP_K", 5),
		},
		Chat: ChatConfig{
			RetrievalTimeout: getEnvAsDuration("CHAT_RETRIEVAL_TIMEOUT", 15*time.Second),
		},
		Admin: AdminConfig{
			JWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
		},
		Prompt: PromptConfig{
			GuardEnabled: getEnvAsBool("PROMPT_GUARD_ENABLED", false),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	switch c.Index.Backend {
	case IndexBackendSQLite:
		if c.Index.PersistDir == "" {
			return fmt.Errorf("INDEX_PERSIST_DIR is required for the sqlite index")
		}
	case IndexBackendPostgres:
		if c.Database.ConnectionString == "" && c.Database.Host == "" {
			return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
		}
		if c.Database.ConnectionString == "" {
			if c.Database.User == "" {
				return fmt.Errorf("database user is required")
			}
			if c.Database.Database == "" {
				return fmt.Errorf("database name is required")
			}
		}
	case IndexBackendMemory:
	default:
		return fmt.Errorf("unknown index backend %q", c.Index.Backend)
	}
	if c.Index.Collection == "" {
		return fmt.Errorf("index collection name is required")
	}

	switch c.Embedding.Provider {
	case EmbeddingProviderOpenAI, EmbeddingProviderLocal, EmbeddingProviderHashing:
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive")
	}

	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %v", c.Generation.Temperature)
	}
	if c.Generation.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive")
	}

	if c.Retrieval.DefaultTopK <= 0 || c.Retrieval.MaxTopK < c.Retrieval.DefaultTopK {
		return fmt.Errorf("retrieval top_k must satisfy 0 < RETRIEVAL_TOP_K <= RETRIEVAL_MAX_TOP_K")
	}

	// The selected provider needs a key in production; elsewhere the
	// backend factory reports it when the app is wired.
	if c.IsProduction() {
		if c.Generation.UseGemini && c.Providers.Gemini.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required in production when USE_GEMINI=true")
		}
		if !c.Generation.UseGemini && c.Providers.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required in production when USE_GEMINI=false")
		}
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "chef"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "resep"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8000)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8000
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
