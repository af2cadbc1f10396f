package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/models"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/repositories"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/repositories/indexutil"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services/embedding"
	"go.uber.org/zap"
)

// uniqueViolation is the SQLSTATE for a duplicate primary key
const uniqueViolation pq.ErrorCode = "23505"

// RecipeIndex implements repositories.EmbeddingIndex on a pgvector table.
// Distances are Euclidean (the <-> operator).
type RecipeIndex struct {
	mu         sync.RWMutex
	db         *DB
	txManager  repositories.TransactionManager
	table      string
	dimensions int
	embedder   embedding.Embedder
	logger     *zap.Logger
}

var _ repositories.EmbeddingIndex = (*RecipeIndex)(nil)

// NewRecipeIndex creates the collection table when missing. The vector
// column width is taken from the embedder.
func NewRecipeIndex(ctx context.Context, db *DB, collection string, embedder embedding.Embedder, logger *zap.Logger) (*RecipeIndex, error) {
	if err := indexutil.ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if embedder.Dimensions() <= 0 {
		return nil, services.NewConfigurationError("embedder %s reports no vector dimensions", embedder.Name())
	}

	idx := &RecipeIndex{
		db:         db,
		txManager:  NewTransactionManager(db, logger),
		table:      collection,
		dimensions: embedder.Dimensions(),
		embedder:   embedder,
		logger:     logger,
	}
	if err := idx.createTable(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *RecipeIndex) createTable(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			seq BIGSERIAL,
			document TEXT NOT NULL,
			nama TEXT NOT NULL,
			kategori TEXT NOT NULL DEFAULT '',
			porsi TEXT NOT NULL DEFAULT '',
			waktu_masak TEXT NOT NULL DEFAULT '',
			tingkat_kesulitan TEXT NOT NULL DEFAULT '',
			embedding vector(%d) NOT NULL
		)`, idx.table, idx.dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]s_embedding ON %[1]s USING hnsw (embedding vector_l2_ops)`, idx.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]s_kategori ON %[1]s (kategori)`, idx.table),
	}

	for _, stmt := range statements {
		if _, err := idx.db.ExecContext(ctx, stmt); err != nil {
			return services.WrapIndex("failed to create collection table", err)
		}
	}

	idx.logger.Info("checked/created collection table",
		zap.String("table", idx.table),
		zap.Int("dimensions", idx.dimensions))
	return nil
}

// Add embeds docs and inserts them in one transaction
func (idx *RecipeIndex) Add(ctx context.Context, docs []models.IndexedDocument) error {
	if len(docs) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	count, err := idx.count(ctx)
	if err != nil {
		return err
	}
	prepared, err := indexutil.Prepare(docs, count, nil)
	if err != nil {
		return err
	}
	existing, err := idx.existingIDs(ctx, prepared)
	if err != nil {
		return err
	}
	if err := indexutil.RejectStored(prepared, func(id string) bool {
		_, ok := existing[id]
		return ok
	}); err != nil {
		return err
	}

	vectors, err := idx.embedder.Embed(ctx, indexutil.Texts(prepared))
	if err != nil {
		return services.WrapIndex("failed to embed documents", err)
	}
	if err := indexutil.CheckVectorCount(vectors, len(prepared)); err != nil {
		return services.WrapIndex("failed to embed documents", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, document, nama, kategori, porsi, waktu_masak, tingkat_kesulitan, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, idx.table)

	err = idx.txManager.InTransaction(ctx, func(txCtx context.Context, _ repositories.Transaction) error {
		executor := GetExecutor(txCtx, idx.db)
		for i, doc := range prepared {
			m := doc.Metadata
			if _, err := executor.ExecContext(txCtx, query,
				doc.ID, doc.Text, m.Name, m.Category, m.Servings, m.CookTime, m.Difficulty,
				pgvector.NewVector(vectors[i]),
			); err != nil {
				return fmt.Errorf("failed to insert document %s: %w", doc.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return services.NewDomainError(services.ErrorTypeValidation, "document id already indexed", err)
		}
		return services.WrapIndex("failed to add documents", err)
	}

	idx.logger.Info("documents added to index",
		zap.String("table", idx.table),
		zap.Int("added", len(prepared)),
		zap.Int("total", count+len(prepared)))
	return nil
}

func (idx *RecipeIndex) existingIDs(ctx context.Context, docs []models.IndexedDocument) (map[string]struct{}, error) {
	var ids []string
	for _, doc := range docs {
		if doc.ID != "" {
			ids = append(ids, doc.ID)
		}
	}
	found := make(map[string]struct{})
	if len(ids) == 0 {
		return found, nil
	}

	rows, err := GetExecutor(ctx, idx.db).QueryContext(ctx,
		fmt.Sprintf(`SELECT id FROM %s WHERE id = ANY($1)`, idx.table), pq.Array(ids))
	if err != nil {
		return nil, services.WrapIndex("failed to check document ids", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, services.WrapIndex("failed to scan document id", err)
		}
		found[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, services.WrapIndex("failed to check document ids", err)
	}
	return found, nil
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

	queryVec, err := embedding.EmbedOne(ctx, idx.embedder, query)
	if err != nil {
		return nil, services.WrapIndex("failed to embed query", err)
	}

	args := []interface{}{pgvector.NewVector(queryVec), topK}
	sqlQuery := fmt.Sprintf(`
		SELECT id, document, nama, kategori, porsi, waktu_masak, tingkat_kesulitan, embedding <-> $1 AS distance
		FROM %s
		ORDER BY distance, seq
		LIMIT $2
	`, idx.table)

	// An approximate HNSW scan filters after it collects candidates and can
	// return fewer than topK rows for a small category. The materialized CTE
	// keeps the planner off the vector index so the filtered ranking is exact.
	if category != nil {
		args = append(args, *category)
		sqlQuery = fmt.Sprintf(`
		WITH candidates AS MATERIALIZED (
			SELECT id, seq, document, nama, kategori, porsi, waktu_masak, tingkat_kesulitan, embedding <-> $1 AS distance
			FROM %s
			WHERE kategori = $3
		)
		SELECT id, document, nama, kategori, porsi, waktu_masak, tingkat_kesulitan, distance
		FROM candidates
		ORDER BY distance, seq
		LIMIT $2
	`, idx.table)
	}

	rows, err := idx.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, services.WrapIndex("failed to search collection", err)
	}
	defer rows.Close()

	results := make([]models.RetrievalResult, 0, topK)
	for rows.Next() {
		var (
			r        models.RetrievalResult
			distance float64
		)
		if err := rows.Scan(&r.ID, &r.Document,
			&r.Metadata.Name, &r.Metadata.Category, &r.Metadata.Servings,
			&r.Metadata.CookTime, &r.Metadata.Difficulty, &distance); err != nil {
			return nil, services.WrapIndex("failed to scan search result", err)
		}
		r.Distance = models.Float64(distance)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, services.WrapIndex("failed to iterate search results", err)
	}
	return results, nil
}

// AllCategories returns distinct non-empty categories sorted ascending
func (idx *RecipeIndex) AllCategories(ctx context.Context) ([]string, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.categories(ctx)
}

func (idx *RecipeIndex) categories(ctx context.Context) ([]string, error) {
	rows, err := idx.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT DISTINCT kategori FROM %s WHERE kategori <> ''`, idx.table))
	if err != nil {
		return nil, services.WrapIndex("failed to list categories", err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, services.WrapIndex("failed to scan category", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, services.WrapIndex("failed to list categories", err)
	}
	// Sorted in Go so ordering does not depend on the database collation.
	return indexutil.SortedCategories(values), nil
}

// Stats describes the collection
func (idx *RecipeIndex) Stats(ctx context.Context) (*models.IndexStats, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	count, err := idx.count(ctx)
	if err != nil {
		return nil, err
	}
	categories, err := idx.categories(ctx)
	if err != nil {
		return nil, err
	}
	return indexutil.BuildStats(count, categories), nil
}

// Count returns the number of documents
func (idx *RecipeIndex) Count(ctx context.Context) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.count(ctx)
}

func (idx *RecipeIndex) count(ctx context.Context) (int, error) {
	var count int
	if err := idx.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, idx.table)).Scan(&count); err != nil {
		return 0, services.WrapIndex("failed to count documents", err)
	}
	return count, nil
}

// DeleteAll drops and recreates the collection table
func (idx *RecipeIndex) DeleteAll(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, err := idx.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, idx.table)); err != nil {
		return services.WrapIndex("failed to drop collection", err)
	}
	if err := idx.createTable(ctx); err != nil {
		return err
	}

	idx.logger.Info("index cleared", zap.String("table", idx.table))
	return nil
}

// Ping checks the database
func (idx *RecipeIndex) Ping(ctx context.Context) error {
	if err := idx.db.HealthCheck(ctx); err != nil {
		return services.WrapIndex("postgres unavailable", err)
	}
	return nil
}

// Close closes the underlying pool
func (idx *RecipeIndex) Close() error {
	return idx.db.Close()
}
