// Package indexutil holds the validation and ranking rules shared by every
// EmbeddingIndex implementation.
package indexutil

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/puanakeyla/ChatbotMasakanIndonesia/models"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/utils"
)

// IDPrefix prefixes generated document ids
const IDPrefix = "recipe_"

var collectionNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// ValidateCollectionName ensures the name is safe to use as a SQL identifier
func ValidateCollectionName(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return services.NewConfigurationError("invalid collection name %q: use lowercase letters, digits and underscores", name)
	}
	return nil
}

// ValidateTopK rejects non-positive result counts
func ValidateTopK(topK int) error {
	if topK <= 0 {
		return services.NewValidationError("top_k must be greater than 0, got %d", topK).WithDetail("top_k", topK)
	}
	return nil
}

// Zip combines parallel text/metadata/id slices into documents.
// ids may be nil; otherwise all lengths must match.
func Zip(texts []string, metadata []models.Metadata, ids []string) ([]models.IndexedDocument, error) {
	if len(texts) != len(metadata) {
		return nil, services.NewValidationError("got %d documents but %d metadata entries", len(texts), len(metadata)).
			WithDetail("documents", len(texts)).
			WithDetail("metadata", len(metadata))
	}
	if ids != nil && len(ids) != len(texts) {
		return nil, services.NewValidationError("got %d documents but %d ids", len(texts), len(ids))
	}

	docs := make([]models.IndexedDocument, len(texts))
	for i := range texts {
		docs[i] = models.IndexedDocument{Text: texts[i], Metadata: metadata[i]}
		if ids != nil {
			docs[i].ID = ids[i]
		}
	}
	return docs, nil
}

// Prepare validates a batch and assigns missing ids from existingCount onward.
// exists reports whether an id is already stored. The input slice is not modified.
func Prepare(docs []models.IndexedDocument, existingCount int, exists func(id string) bool) ([]models.IndexedDocument, error) {
	out := make([]models.IndexedDocument, len(docs))
	seen := make(map[string]struct{}, len(docs))
	next := existingCount

	for i, doc := range docs {
		if strings.TrimSpace(doc.Text) == "" {
			return nil, services.NewValidationError("document %d has empty text", i)
		}
		if err := utils.ValidateStruct(doc.Metadata); err != nil {
			return nil, services.NewDomainError(services.ErrorTypeValidation,
				fmt.Sprintf("document %d has invalid metadata", i), err)
		}

		if doc.ID == "" {
			doc.ID = fmt.Sprintf("%s%d", IDPrefix, next)
			next++
		}
		if _, dup := seen[doc.ID]; dup {
			return nil, services.NewValidationError("duplicate document id %q in batch", doc.ID)
		}
		if exists != nil && exists(doc.ID) {
			return nil, services.NewValidationError("document id %q already indexed", doc.ID)
		}
		seen[doc.ID] = struct{}{}
		out[i] = doc
	}
	return out, nil
}

// RejectStored fails with a ValidationError when any prepared id, supplied or
// generated, is already present in the store.
func RejectStored(docs []models.IndexedDocument, exists func(id string) bool) error {
	for _, doc := range docs {
		if exists(doc.ID) {
			return services.NewValidationError("document id %q already indexed", doc.ID)
		}
	}
	return nil
}

// IDs returns the ids of docs in order
func IDs(docs []models.IndexedDocument) []string {
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}
	return ids
}

// Texts returns the texts of docs in order
func Texts(docs []models.IndexedDocument) []string {
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Text
	}
	return texts
}

// L2 returns the Euclidean distance between a and b
func L2(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension mismatch: %d vs %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Candidate is a stored document scored against a query
type Candidate struct {
	Seq      int
	Result   models.RetrievalResult
	Distance float64
}

// Rank orders candidates by ascending distance, ties by insertion order,
// and keeps at most topK.
func Rank(candidates []Candidate, topK int) []models.RetrievalResult {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		return candidates[i].Seq < candidates[j].Seq
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	results := make([]models.RetrievalResult, len(candidates))
	for i, c := range candidates {
		r := c.Result
		r.Distance = models.Float64(c.Distance)
		results[i] = r
	}
	return results
}

// SortedCategories returns the distinct non-empty values sorted ascending
func SortedCategories(values []string) []string {
	set := make(map[string]struct{})
	for _, v := range values {
		if v != "" {
			set[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// BuildStats assembles IndexStats from a document count and its categories
func BuildStats(total int, categories []string) *models.IndexStats {
	if categories == nil {
		categories = []string{}
	}
	return &models.IndexStats{
		TotalDocuments: total,
		Categories:     categories,
		NumCategories:  len(categories),
	}
}

// CheckVectorCount verifies the embedder returned one vector per document
func CheckVectorCount(vectors [][]float32, want int) error {
	if len(vectors) != want {
		return fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), want)
	}
	return nil
}
