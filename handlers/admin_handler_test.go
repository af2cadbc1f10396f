package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/puanakeyla/ChatbotMasakanIndonesia/models"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/repositories/memory"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services/embedding"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services/ingest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockIngester is a mock implementation of Ingester
type MockIngester struct {
	mock.Mock
}

func (m *MockIngester) Replace(ctx context.Context, raw []models.Recipe) (*ingest.Result, error) {
	args := m.Called(ctx, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ingest.Result), args.Error(1)
}

func (m *MockIngester) Clear(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestHandleReplaceRecipes(t *testing.T) {
	logger := zap.NewNop()

	t.Run("replaces the collection", func(t *testing.T) {
		idx := memory.NewRecipeIndex(embedding.NewHashingEmbedder(64), logger)
		handler := NewAdminHandler(ingest.NewService(idx, logger), logger)

		w := postJSON(t, handler.HandleReplaceRecipes, "/api/v1/admin/recipes", `[
			{"nama": "Gado-gado", "kategori": "Sayur", "bahan": ["- sayuran rebus", "- bumbu kacang"]},
			{"nama": "Pempek", "kategori": "Ikan"}
		]`)

		require.Equal(t, http.StatusCreated, w.Code)
		assert.JSONEq(t, `{"data": {
			"loaded": 2,
			"removed": 0,
			"stats": {"total_recipes": 2, "categories": ["Ikan", "Sayur"], "num_categories": 2}
		}}`, w.Body.String())

		count, err := idx.Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("invalid recipe is a 400", func(t *testing.T) {
		idx := memory.NewRecipeIndex(embedding.NewHashingEmbedder(64), logger)
		handler := NewAdminHandler(ingest.NewService(idx, logger), logger)

		w := postJSON(t, handler.HandleReplaceRecipes, "/api/v1/admin/recipes", `[{"nama": "Sate"}, {"kategori": "Sup"}]`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		response := decodeError(t, w)
		assert.Equal(t, "recipe 1: invalid recipe", response.Message)
		assert.Contains(t, response.Details, "Name")
	})

	t.Run("body must be an array", func(t *testing.T) {
		ingester := new(MockIngester)
		handler := NewAdminHandler(ingester, logger)

		w := postJSON(t, handler.HandleReplaceRecipes, "/api/v1/admin/recipes", `{"nama": "Sate"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		ingester.AssertNotCalled(t, "Replace", mock.Anything, mock.Anything)
	})

	t.Run("index failure is a 503", func(t *testing.T) {
		ingester := new(MockIngester)
		ingester.On("Replace", mock.Anything, mock.Anything).
			Return(nil, services.WrapIndex("failed to embed documents", errors.New("timeout")))
		handler := NewAdminHandler(ingester, logger)

		w := postJSON(t, handler.HandleReplaceRecipes, "/api/v1/admin/recipes", `[{"nama": "Sate"}]`)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestHandleDeleteRecipes(t *testing.T) {
	logger := zap.NewNop()

	t.Run("clears the collection", func(t *testing.T) {
		ingester := new(MockIngester)
		ingester.On("Clear", mock.Anything).Return(nil)
		handler := NewAdminHandler(ingester, logger)

		w := httptest.NewRecorder()
		handler.HandleDeleteRecipes(w, httptest.NewRequest(http.MethodDelete, "/api/v1/admin/recipes", nil))

		assert.Equal(t, http.StatusNoContent, w.Code)
		ingester.AssertExpectations(t)
	})

	t.Run("failure", func(t *testing.T) {
		ingester := new(MockIngester)
		ingester.On("Clear", mock.Anything).Return(services.WrapIndex("failed to drop table", errors.New("locked")))
		handler := NewAdminHandler(ingester, logger)

		w := httptest.NewRecorder()
		handler.HandleDeleteRecipes(w, httptest.NewRequest(http.MethodDelete, "/api/v1/admin/recipes", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
