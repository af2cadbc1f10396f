package repositories

import (
	"context"

	"github.com/puanakeyla/ChatbotMasakanIndonesia/models"
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// EmbeddingIndex is a durable collection of recipe documents with similarity search.
// Reads are safe for concurrent callers. Add and DeleteAll are exclusive.
type EmbeddingIndex interface {
	// Add persists documents and their embeddings.
	// Empty ids are assigned as recipe_{n} continuing from the current count.
	Add(ctx context.Context, docs []models.IndexedDocument) error

	// AddWithMetadata is Add for parallel slices; ids may be nil.
	// Fails with a validation error when the slice lengths differ.
	AddWithMetadata(ctx context.Context, texts []string, metadata []models.Metadata, ids []string) error

	// Search returns up to topK nearest documents in ascending distance
	Search(ctx context.Context, query string, topK int) ([]models.RetrievalResult, error)

	// SearchFiltered is Search restricted to an exact category match
	SearchFiltered(ctx context.Context, query string, topK int, category string) ([]models.RetrievalResult, error)

	// AllCategories returns distinct non-empty categories sorted ascending
	AllCategories(ctx context.Context) ([]string, error)

	// Stats describes the indexed collection
	Stats(ctx context.Context) (*models.IndexStats, error)

	// Count returns the number of indexed documents
	Count(ctx context.Context) (int, error)

	// DeleteAll drops and recreates the collection
	DeleteAll(ctx context.Context) error

	// Ping checks that the backing store is reachable
	Ping(ctx context.Context) error

	// Close releases the backing store
	Close() error
}
