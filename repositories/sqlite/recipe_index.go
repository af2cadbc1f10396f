// Package sqlite persists the recipe index in a single SQLite file so a
// collection survives restarts without an external database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/puanakeyla/ChatbotMasakanIndonesia/models"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/repositories"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/repositories/indexutil"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services/embedding"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver
)

// DatabaseFile is the file created inside the persist directory
const DatabaseFile = "recipes.db"

// RecipeIndex stores documents in a table named after the collection.
// Vectors are JSON arrays and distances are computed in process.
type RecipeIndex struct {
	mu         sync.RWMutex
	db         *sql.DB
	collection string
	embedder   embedding.Embedder
	logger     *zap.Logger
}

var _ repositories.EmbeddingIndex = (*RecipeIndex)(nil)

// Open opens (or creates) the database under persistDir and ensures the
// collection table exists.
func Open(ctx context.Context, persistDir, collection string, embedder embedding.Embedder, logger *zap.Logger) (*RecipeIndex, error) {
	if err := indexutil.ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(persistDir, 0o755); err != nil {
		return nil, services.WrapIndex("failed to create persist directory", err)
	}

	path := filepath.Join(persistDir, DatabaseFile)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, services.WrapIndex("failed to open sqlite database", err)
	}
	// A single connection serializes writers at the driver level too.
	db.SetMaxOpenConns(1)

	idx := &RecipeIndex{
		db:         db,
		collection: collection,
		embedder:   embedder,
		logger:     logger,
	}
	if err := idx.createTable(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sqlite index opened",
		zap.String("path", path),
		zap.String("collection", collection))
	return idx, nil
}

func (idx *RecipeIndex) createTable(ctx context.Context) error {
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			document TEXT NOT NULL,
			nama TEXT NOT NULL,
			kategori TEXT NOT NULL DEFAULT '',
			porsi TEXT NOT NULL DEFAULT '',
			waktu_masak TEXT NOT NULL DEFAULT '',
			tingkat_kesulitan TEXT NOT NULL DEFAULT '',
			embedding TEXT NOT NULL
		)
	`, idx.collection)

	if _, err := idx.db.ExecContext(ctx, schema); err != nil {
		return services.WrapIndex("failed to create collection table", err)
	}
	categoryIndex := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]s_kategori ON %[1]s(kategori)`, idx.collection)
	if _, err := idx.db.ExecContext(ctx, categoryIndex); err != nil {
		return services.WrapIndex("failed to create category index", err)
	}
	return nil
}

// Add embeds docs and inserts them in a single transaction
func (idx *RecipeIndex) Add(ctx context.Context, docs []models.IndexedDocument) error {
	if len(docs) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	count, err := idx.countLocked(ctx)
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

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return services.WrapIndex("failed to begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, document, nama, kategori, porsi, waktu_masak, tingkat_kesulitan, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, idx.collection))
	if err != nil {
		return services.WrapIndex("failed to prepare insert", err)
	}
	defer stmt.Close()

	for i, doc := range prepared {
		vecJSON, err := json.Marshal(vectors[i])
		if err != nil {
			return services.WrapIndex("failed to encode vector", err)
		}
		m := doc.Metadata
		if _, err := stmt.ExecContext(ctx, doc.ID, doc.Text,
			m.Name, m.Category, m.Servings, m.CookTime, m.Difficulty, string(vecJSON)); err != nil {
			return services.WrapIndex(fmt.Sprintf("failed to insert document %s", doc.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return services.WrapIndex("failed to commit documents", err)
	}

	idx.logger.Info("documents added to index",
		zap.String("collection", idx.collection),
		zap.Int("added", len(prepared)),
		zap.Int("total", count+len(prepared)))
	return nil
}

func (idx *RecipeIndex) existingIDs(ctx context.Context, docs []models.IndexedDocument) (map[string]struct{}, error) {
	found := make(map[string]struct{})
	query := fmt.Sprintf(`SELECT 1 FROM %s WHERE id = ?`, idx.collection)
	for _, doc := range docs {
		if doc.ID == "" {
			continue
		}
		var one int
		err := idx.db.QueryRowContext(ctx, query, doc.ID).Scan(&one)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, services.WrapIndex("failed to check document id", err)
		}
		found[doc.ID] = struct{}{}
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

	count, err := idx.countLocked(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return []models.RetrievalResult{}, nil
	}

	queryVec, err := embedding.EmbedOne(ctx, idx.embedder, query)
	if err != nil {
		return nil, services.WrapIndex("failed to embed query", err)
	}

	sqlQuery := fmt.Sprintf(`
		SELECT seq, id, document, nama, kategori, porsi, waktu_masak, tingkat_kesulitan, embedding
		FROM %s
	`, idx.collection)
	var args []interface{}
	if category != nil {
		sqlQuery += ` WHERE kategori = ?`
		args = append(args, *category)
	}

	rows, err := idx.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, services.WrapIndex("failed to query collection", err)
	}
	defer rows.Close()

	var candidates []indexutil.Candidate
	for rows.Next() {
		var (
			seq     int
			result  models.RetrievalResult
			m       models.Metadata
			vecJSON string
		)
		if err := rows.Scan(&seq, &result.ID, &result.Document,
			&m.Name, &m.Category, &m.Servings, &m.CookTime, &m.Difficulty, &vecJSON); err != nil {
			return nil, services.WrapIndex("failed to scan document", err)
		}
		var vec []float32
		if err := json.Unmarshal([]byte(vecJSON), &vec); err != nil {
			return nil, services.WrapIndex(fmt.Sprintf("corrupt vector for document %s", result.ID), err)
		}
		d, err := indexutil.L2(queryVec, vec)
		if err != nil {
			return nil, services.WrapIndex("stored vector is incompatible with query", err)
		}
		result.Metadata = m
		candidates = append(candidates, indexutil.Candidate{Seq: seq, Result: result, Distance: d})
	}
	if err := rows.Err(); err != nil {
		return nil, services.WrapIndex("failed to iterate documents", err)
	}

	return indexutil.Rank(candidates, topK), nil
}

// AllCategories returns distinct non-empty categories sorted ascending
func (idx *RecipeIndex) AllCategories(ctx context.Context) ([]string, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.categoriesLocked(ctx)
}

func (idx *RecipeIndex) categoriesLocked(ctx context.Context) ([]string, error) {
	rows, err := idx.db.QueryContext(ctx, fmt.Sprintf(`SELECT DISTINCT kategori FROM %s`, idx.collection))
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
		return nil, services.WrapIndex("failed to iterate categories", err)
	}
	return indexutil.SortedCategories(values), nil
}

// Stats describes the collection
func (idx *RecipeIndex) Stats(ctx context.Context) (*models.IndexStats, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	count, err := idx.countLocked(ctx)
	if err != nil {
		return nil, err
	}
	categories, err := idx.categoriesLocked(ctx)
	if err != nil {
		return nil, err
	}
	return indexutil.BuildStats(count, categories), nil
}

// Count returns the number of documents
func (idx *RecipeIndex) Count(ctx context.Context) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.countLocked(ctx)
}

func (idx *RecipeIndex) countLocked(ctx context.Context) (int, error) {
	var count int
	err := idx.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, idx.collection)).Scan(&count)
	if err != nil {
		return 0, services.WrapIndex("failed to count documents", err)
	}
	return count, nil
}

// DeleteAll drops and recreates the collection table
func (idx *RecipeIndex) DeleteAll(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, err := idx.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, idx.collection)); err != nil {
		return services.WrapIndex("failed to drop collection", err)
	}
	if err := idx.createTable(ctx); err != nil {
		return err
	}

	idx.logger.Info("index cleared", zap.String("collection", idx.collection))
	return nil
}

// Ping checks the database connection
func (idx *RecipeIndex) Ping(ctx context.Context) error {
	if err := idx.db.PingContext(ctx); err != nil {
		return services.WrapIndex("sqlite ping failed", err)
	}
	return nil
}

// Close closes the database
func (idx *RecipeIndex) Close() error {
	idx.logger.Info("closing sqlite index")
	return idx.db.Close()
}
