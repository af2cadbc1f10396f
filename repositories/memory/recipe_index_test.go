package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/puanakeyla/ChatbotMasakanIndonesia/models"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingEmbedder struct{}

func (failingEmbedder) Name() string    { return "failing" }
func (failingEmbedder) Dimensions() int { return 4 }
func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("model unavailable")
}

func newTestIndex(t *testing.T) *RecipeIndex {
	t.Helper()
	return NewRecipeIndex(embedding.NewHashingEmbedder(128), zap.NewNop())
}

func sampleDocs() []models.IndexedDocument {
	return []models.IndexedDocument{
		{
			Text:     "Nama Masakan: Nasi Goreng\nBahan-bahan:\n- nasi\n- kecap manis\n- telur",
			Metadata: models.Metadata{Name: "Nasi Goreng", Category: "Nasi", Servings: "2 porsi"},
		},
		{
			Text:     "Nama Masakan: Soto Ayam\nBahan-bahan:\n- ayam\n- kunyit\n- serai",
			Metadata: models.Metadata{Name: "Soto Ayam", Category: "Sup"},
		},
		{
			Text:     "Nama Masakan: Rendang Sapi\nBahan-bahan:\n- daging sapi\n- santan\n- cabai",
			Metadata: models.Metadata{Name: "Rendang Sapi", Category: "Daging"},
		},
		{
			Text:     "Nama Masakan: Nasi Uduk\nBahan-bahan:\n- nasi\n- santan\n- daun salam",
			Metadata: models.Metadata{Name: "Nasi Uduk", Category: "Nasi"},
		},
		{
			Text:     "Nama Masakan: Es Cendol\nBahan-bahan:\n- cendol\n- gula merah",
			Metadata: models.Metadata{Name: "Es Cendol"},
		},
	}
}

func TestRecipeIndex_AddAssignsSequentialIDs(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	require.NoError(t, idx.Add(ctx, sampleDocs()[:2]))
	require.NoError(t, idx.Add(ctx, sampleDocs()[2:3]))

	results, err := idx.Search(ctx, "rendang daging sapi santan", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "recipe_2", results[0].ID)

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRecipeIndex_AddValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("count mismatch leaves index unchanged", func(t *testing.T) {
		idx := newTestIndex(t)
		require.NoError(t, idx.Add(ctx, sampleDocs()[:1]))

		err := idx.AddWithMetadata(ctx,
			[]string{"a", "b", "c"},
			[]models.Metadata{{Name: "A"}, {Name: "B"}},
			nil)
		require.Error(t, err)
		assert.True(t, services.IsValidationError(err))

		count, err := idx.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("duplicate ids in batch", func(t *testing.T) {
		idx := newTestIndex(t)
		err := idx.AddWithMetadata(ctx,
			[]string{"a", "b"},
			[]models.Metadata{{Name: "A"}, {Name: "B"}},
			[]string{"x", "x"})
		assert.True(t, services.IsValidationError(err))
	})

	t.Run("id already indexed", func(t *testing.T) {
		idx := newTestIndex(t)
		require.NoError(t, idx.AddWithMetadata(ctx, []string{"a"}, []models.Metadata{{Name: "A"}}, []string{"x"}))

		err := idx.AddWithMetadata(ctx, []string{"b"}, []models.Metadata{{Name: "B"}}, []string{"x"})
		assert.True(t, services.IsValidationError(err))
	})

	t.Run("generated id already indexed", func(t *testing.T) {
		idx := newTestIndex(t)
		require.NoError(t, idx.AddWithMetadata(ctx, []string{"a"}, []models.Metadata{{Name: "A"}}, []string{"recipe_1"}))

		err := idx.AddWithMetadata(ctx, []string{"b"}, []models.Metadata{{Name: "B"}}, nil)
		assert.True(t, services.IsValidationError(err))
		count, _ := idx.Count(ctx)
		assert.Equal(t, 1, count)
	})

	t.Run("metadata without name", func(t *testing.T) {
		idx := newTestIndex(t)
		err := idx.Add(ctx, []models.IndexedDocument{{Text: "x", Metadata: models.Metadata{Category: "Nasi"}}})
		assert.True(t, services.IsValidationError(err))
	})

	t.Run("embedder failure is an index error", func(t *testing.T) {
		idx := NewRecipeIndex(failingEmbedder{}, zap.NewNop())
		err := idx.Add(ctx, sampleDocs()[:1])
		assert.True(t, services.IsIndexError(err))
	})
}

func TestRecipeIndex_Search(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	require.NoError(t, idx.Add(ctx, sampleDocs()))

	for topK := 1; topK <= 7; topK++ {
		t.Run(fmt.Sprintf("top_k=%d", topK), func(t *testing.T) {
			results, err := idx.Search(ctx, "nasi goreng kecap telur", topK)
			require.NoError(t, err)
			assert.Len(t, results, min(topK, len(sampleDocs())))

			for i := 1; i < len(results); i++ {
				require.NotNil(t, results[i].Distance)
				assert.LessOrEqual(t, *results[i-1].Distance, *results[i].Distance)
			}
			assert.Equal(t, "Nasi Goreng", results[0].Metadata.Name)
		})
	}

	t.Run("rejects non-positive top_k", func(t *testing.T) {
		_, err := idx.Search(ctx, "nasi", 0)
		assert.True(t, services.IsValidationError(err))
	})
}

func TestRecipeIndex_SearchEmpty(t *testing.T) {
	results, err := newTestIndex(t).Search(context.Background(), "apa saja", 3)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestRecipeIndex_SearchFiltered(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	require.NoError(t, idx.Add(ctx, sampleDocs()))

	results, err := idx.SearchFiltered(ctx, "santan", 5, "Nasi")
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, "Nasi", r.Metadata.Category)
	}

	results, err = idx.SearchFiltered(ctx, "santan", 5, "nasi")
	require.NoError(t, err)
	assert.Empty(t, results, "category match is case-sensitive")

	results, err = idx.SearchFiltered(ctx, "santan", 5, "Minuman")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRecipeIndex_CategoriesAndStats(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	require.NoError(t, idx.Add(ctx, sampleDocs()))

	categories, err := idx.AllCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Daging", "Nasi", "Sup"}, categories)

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalDocuments)
	assert.Equal(t, 3, stats.NumCategories)
	assert.Equal(t, categories, stats.Categories)
}

func TestRecipeIndex_DeleteAll(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	require.NoError(t, idx.Add(ctx, sampleDocs()))

	require.NoError(t, idx.DeleteAll(ctx))

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &models.IndexStats{TotalDocuments: 0, Categories: []string{}, NumCategories: 0}, stats)

	require.NoError(t, idx.Add(ctx, sampleDocs()[:1]))
	results, err := idx.Search(ctx, "nasi", 1)
	require.NoError(t, err)
	assert.Equal(t, "recipe_0", results[0].ID)
}

func TestRecipeIndex_ConcurrentReads(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	require.NoError(t, idx.Add(ctx, sampleDocs()))

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := idx.Search(ctx, "nasi", 2)
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := idx.Stats(ctx)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}
