package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/puanakeyla/ChatbotMasakanIndonesia/models"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/repositories/memory"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services/embedding"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services/providers"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockBackend is a mock implementation of providers.Backend
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Name() string  { return "mock" }
func (m *MockBackend) Model() string { return "mock-model" }

func (m *MockBackend) Complete(ctx context.Context, req *providers.CompletionRequest) (*providers.Completion, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.Completion), args.Error(1)
}

// MockRetriever is a mock implementation of Retriever
type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) Retrieve(ctx context.Context, query string, topK int) ([]models.RetrievalResult, error) {
	args := m.Called(ctx, query, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RetrievalResult), args.Error(1)
}

func (m *MockRetriever) RetrieveByCategory(ctx context.Context, query, category string, topK int) ([]models.RetrievalResult, error) {
	args := m.Called(ctx, query, category, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RetrievalResult), args.Error(1)
}

var testConfig = Config{Temperature: 0.7, MaxTokens: 1000, RetrievalTimeout: 5 * time.Second}

func okCompletion(text string) *providers.Completion {
	return &providers.Completion{
		Text:         text,
		FinishReason: "stop",
		Usage:        providers.Usage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
	}
}

func seededRetriever(t *testing.T) *retrieval.Service {
	t.Helper()
	idx := memory.NewRecipeIndex(embedding.NewHashingEmbedder(128), zap.NewNop())
	require.NoError(t, idx.Add(context.Background(), []models.IndexedDocument{
		{
			Text:     "Nama Masakan: Nasi Goreng\nBahan-bahan:\n- nasi putih\n- kecap manis\n- bawang merah\nCara Membuat:\n1. Tumis bumbu\n2. Masukkan nasi",
			Metadata: models.Metadata{Name: "Nasi Goreng", Category: "Nasi", Servings: "2 porsi", CookTime: "20 menit", Difficulty: "Mudah"},
		},
		{
			Text:     "Nama Masakan: Soto Ayam\nBahan-bahan:\n- ayam\n- kunyit\n- serai",
			Metadata: models.Metadata{Name: "Soto Ayam", Category: "Sup"},
		},
		{
			Text:     "Nama Masakan: Rendang\nBahan-bahan:\n- daging sapi\n- santan",
			Metadata: models.Metadata{Name: "Rendang", Category: "Daging"},
		},
	}))
	return retrieval.NewService(idx, 3, zap.NewNop())
}

func lastMessage(req *providers.CompletionRequest) providers.Message {
	return req.Messages[len(req.Messages)-1]
}

func TestService_Chat_Grounded(t *testing.T) {
	backend := new(MockBackend)
	var captured *providers.CompletionRequest
	backend.On("Complete", mock.Anything, mock.AnythingOfType("*providers.CompletionRequest")).
		Run(func(args mock.Arguments) { captured = args.Get(1).(*providers.CompletionRequest) }).
		Return(okCompletion("Berikut cara membuat nasi goreng..."), nil)

	svc := NewService(seededRetriever(t), backend, testConfig, zap.NewNop())

	resp, err := svc.Chat(context.Background(), Request{
		Query:          "cara membuat nasi goreng",
		TopK:           2,
		IncludeSources: true,
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, models.ChatModeRAG, resp.Mode)
	assert.Equal(t, "Berikut cara membuat nasi goreng...", resp.Response)
	assert.Equal(t, "cara membuat nasi goreng", resp.Query)
	assert.Equal(t, "mock", resp.Provider)
	assert.Equal(t, "mock-model", resp.Model)
	assert.Empty(t, resp.Error)

	require.NotNil(t, resp.Retrieval)
	assert.Equal(t, 2, resp.Retrieval.TotalRetrieved)
	assert.Equal(t, "Nasi Goreng", resp.Retrieval.RecipeNames[0])

	require.Len(t, resp.Sources, 2)
	assert.Equal(t, "Nasi Goreng", resp.Sources[0].Name)
	require.NotNil(t, resp.Sources[0].Similarity)
	assert.Greater(t, *resp.Sources[0].Similarity, 0.0)
	assert.LessOrEqual(t, *resp.Sources[0].Similarity, 1.0)

	require.NotNil(t, resp.Usage)
	assert.Equal(t, 150, resp.Usage.TotalTokens)

	require.NotNil(t, captured)
	assert.Equal(t, 0.7, captured.Temperature)
	assert.Equal(t, 1000, captured.MaxTokens)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, providers.RoleSystem, captured.Messages[0].Role)
	assert.Equal(t, SystemPrompt, captured.Messages[0].Content)

	user := lastMessage(captured)
	assert.Equal(t, providers.RoleUser, user.Role)
	assert.True(t, strings.HasPrefix(user.Content, "Konteks Resep yang Relevan:\nBerikut adalah resep-resep yang relevan:\n"))
	assert.Contains(t, user.Content, "=== Resep 1: Nasi Goreng ===")
	assert.Contains(t, user.Content, "Kategori: Nasi")
	assert.Contains(t, user.Content, "Pertanyaan User: cara membuat nasi goreng")
	assert.NotContains(t, user.Content, retrieval.NoContext)

	backend.AssertExpectations(t)
}

func TestService_Chat_EmptyCorpusIsUngrounded(t *testing.T) {
	backend := new(MockBackend)
	var captured *providers.CompletionRequest
	backend.On("Complete", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(1).(*providers.CompletionRequest) }).
		Return(okCompletion("Maaf, resep itu belum ada di database."), nil)

	idx := memory.NewRecipeIndex(embedding.NewHashingEmbedder(32), zap.NewNop())
	svc := NewService(retrieval.NewService(idx, 3, zap.NewNop()), backend, testConfig, zap.NewNop())

	resp, err := svc.Chat(context.Background(), Request{Query: "resep pempek", IncludeSources: true})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, 0, resp.Retrieval.TotalRetrieved)
	assert.Empty(t, resp.Retrieval.RecipeNames)
	assert.Nil(t, resp.Sources, "no sources without results")

	user := lastMessage(captured)
	assert.Equal(t, UngroundedPrompt("resep pempek"), user.Content)
	assert.True(t, strings.HasPrefix(user.Content, "Pertanyaan User: resep pempek\n\nCatatan: Tidak ada resep spesifik"))
}

func TestService_Chat_HistoryPassedThroughInOrder(t *testing.T) {
	backend := new(MockBackend)
	var captured *providers.CompletionRequest
	backend.On("Complete", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(1).(*providers.CompletionRequest) }).
		Return(okCompletion("ok"), nil)

	svc := NewService(seededRetriever(t), backend, testConfig, zap.NewNop())

	history := []models.ConversationTurn{
		{Role: models.RoleUser, Content: "Apa itu rendang?"},
		{Role: models.RoleAssistant, Content: "Rendang adalah masakan daging khas Minang."},
	}
	_, err := svc.Chat(context.Background(), Request{Query: "Berapa lama memasaknya?", History: history})
	require.NoError(t, err)

	require.Len(t, captured.Messages, 4)
	assert.Equal(t, providers.Message{Role: "user", Content: "Apa itu rendang?"}, captured.Messages[1])
	assert.Equal(t, providers.Message{Role: "assistant", Content: "Rendang adalah masakan daging khas Minang."}, captured.Messages[2])
	assert.Equal(t, providers.RoleUser, captured.Messages[3].Role)
}

func TestService_Chat_SourcesOptional(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Complete", mock.Anything, mock.Anything).Return(okCompletion("ok"), nil)

	svc := NewService(seededRetriever(t), backend, testConfig, zap.NewNop())

	resp, err := svc.Chat(context.Background(), Request{Query: "soto ayam", IncludeSources: false})
	require.NoError(t, err)
	assert.Nil(t, resp.Sources)
	assert.NotNil(t, resp.Retrieval)
}

func TestService_Chat_BackendFailureIsRecovered(t *testing.T) {
	backend := new(MockBackend)
	backendErr := providers.NewProviderError("gemini", "UNAVAILABLE", "service unavailable", 503, true, nil)
	backend.On("Complete", mock.Anything, mock.Anything).Return(nil, backendErr)

	svc := NewService(seededRetriever(t), backend, testConfig, zap.NewNop())

	resp, err := svc.Chat(context.Background(), Request{Query: "nasi goreng", IncludeSources: true})
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.False(t, resp.Success)
	assert.Equal(t, "Maaf, terjadi kesalahan: "+backendErr.Error(), resp.Response)
	assert.Equal(t, backendErr.Error(), resp.Error)
	assert.Nil(t, resp.Usage)
	assert.NotNil(t, resp.Retrieval)
}

func TestService_Chat_RetrievalErrorPropagates(t *testing.T) {
	retriever := new(MockRetriever)
	indexErr := services.WrapIndex("failed to search collection", errors.New("database is locked"))
	retriever.On("Retrieve", mock.Anything, "nasi goreng", 3).Return(nil, indexErr)

	backend := new(MockBackend)
	svc := NewService(retriever, backend, testConfig, zap.NewNop())

	resp, err := svc.Chat(context.Background(), Request{Query: "nasi goreng", TopK: 3})
	assert.Nil(t, resp)
	assert.True(t, services.IsIndexError(err))
	backend.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestService_Chat_Category(t *testing.T) {
	retriever := new(MockRetriever)
	retriever.On("RetrieveByCategory", mock.Anything, "rekomendasi", "Sup", 0).Return([]models.RetrievalResult{
		{ID: "recipe_1", Document: "Nama Masakan: Soto Ayam", Metadata: models.Metadata{Name: "Soto Ayam", Category: "Sup"}, Distance: models.Float64(1)},
	}, nil)

	backend := new(MockBackend)
	backend.On("Complete", mock.Anything, mock.Anything).Return(okCompletion("Coba soto ayam!"), nil)

	svc := NewService(retriever, backend, testConfig, zap.NewNop())

	resp, err := svc.Chat(context.Background(), Request{Query: "rekomendasi", Category: "Sup", IncludeSources: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Sup"}, resp.Retrieval.Categories)
	require.Len(t, resp.Sources, 1)
	assert.InDelta(t, 0.5, *resp.Sources[0].Similarity, 1e-9)
	retriever.AssertNotCalled(t, "Retrieve", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Chat_RetrievalTimeout(t *testing.T) {
	retriever := new(MockRetriever)
	retriever.On("Retrieve", mock.Anything, "rendang", 0).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline, "retrieval must run under its own deadline")
		}).
		Return([]models.RetrievalResult{}, nil)

	backend := new(MockBackend)
	backend.On("Complete", mock.Anything, mock.Anything).Return(okCompletion("ok"), nil)

	svc := NewService(retriever, backend, testConfig, zap.NewNop())
	_, err := svc.Chat(context.Background(), Request{Query: "rendang"})
	require.NoError(t, err)
	retriever.AssertExpectations(t)
}

func TestService_Chat_EmptyQuery(t *testing.T) {
	retriever := new(MockRetriever)
	backend := new(MockBackend)
	svc := NewService(retriever, backend, testConfig, zap.NewNop())

	for _, query := range []string{"", "   ", "\n\t"} {
		_, err := svc.Chat(context.Background(), Request{Query: query})
		assert.True(t, services.IsValidationError(err), "query %q", query)
	}
	retriever.AssertNotCalled(t, "Retrieve", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_ChatWithoutRAG(t *testing.T) {
	t.Run("sends the raw query", func(t *testing.T) {
		backend := new(MockBackend)
		var captured *providers.CompletionRequest
		backend.On("Complete", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { captured = args.Get(1).(*providers.CompletionRequest) }).
			Return(okCompletion("Halo!"), nil)

		retriever := new(MockRetriever)
		svc := NewService(retriever, backend, testConfig, zap.NewNop())

		history := []models.ConversationTurn{{Role: models.RoleUser, Content: "hai"}}
		resp, err := svc.ChatWithoutRAG(context.Background(), "apa kabar?", history)
		require.NoError(t, err)

		assert.True(t, resp.Success)
		assert.Equal(t, models.ChatModeWithoutRAG, resp.Mode)
		assert.Nil(t, resp.Retrieval)
		require.Len(t, captured.Messages, 3)
		assert.Equal(t, "apa kabar?", lastMessage(captured).Content)
		retriever.AssertNotCalled(t, "Retrieve", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("recovers backend failures", func(t *testing.T) {
		backend := new(MockBackend)
		backend.On("Complete", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

		svc := NewService(new(MockRetriever), backend, testConfig, zap.NewNop())

		resp, err := svc.ChatWithoutRAG(context.Background(), "apa kabar?", nil)
		require.NoError(t, err)
		assert.False(t, resp.Success)
		assert.Equal(t, "Maaf, terjadi kesalahan: timeout", resp.Response)
		assert.Equal(t, "timeout", resp.Error)
		assert.Equal(t, models.ChatModeWithoutRAG, resp.Mode)
	})

	t.Run("rejects empty query", func(t *testing.T) {
		svc := NewService(new(MockRetriever), new(MockBackend), testConfig, zap.NewNop())
		_, err := svc.ChatWithoutRAG(context.Background(), " ", nil)
		assert.True(t, services.IsValidationError(err))
	})
}

func TestPrompts(t *testing.T) {
	grounded := GroundedPrompt("KONTEKS", "bagaimana?")
	assert.True(t, strings.HasPrefix(grounded, "Konteks Resep yang Relevan:\nKONTEKS\n\n---\n\nPertanyaan User: bagaimana?\n\nInstruksi:"))

	assert.Equal(t, "Tolong rekomendasikan resep dari kategori Sup", CategoryPrompt("Sup"))
	assert.Equal(t, "Maaf, terjadi kesalahan: boom", ErrorResponse(errors.New("boom")))
	assert.Contains(t, SystemPrompt, "Asisten Chef")
}
