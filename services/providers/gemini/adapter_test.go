package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/puanakeyla/ChatbotMasakanIndonesia/services/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const successBody = `{
  "candidates": [{
    "content": {"parts": [{"text": "Rendang dimasak perlahan dengan santan."}], "role": "model"},
    "finishReason": "STOP"
  }],
  "usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 8, "totalTokenCount": 20}
}`

func newTestAdapter(t *testing.T, baseURL string, maxRetries int) *Adapter {
	t.Helper()
	adapter, err := NewAdapter(context.Background(), providers.ProviderConfig{
		APIKey:     "test-key",
		BaseURL:    baseURL,
		Timeout:    5 * time.Second,
		MaxRetries: maxRetries,
		RetryDelay: time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)
	return adapter
}

func TestNewAdapter(t *testing.T) {
	adapter := newTestAdapter(t, "http://localhost", 0)
	assert.Equal(t, "gemini", adapter.Name())
	assert.Equal(t, defaultModel, adapter.Model())

	_, err := NewAdapter(context.Background(), providers.ProviderConfig{}, zap.NewNop())
	assert.Error(t, err)
}

func TestAdapter_Complete(t *testing.T) {
	var body map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-2.5-flash:generateContent"), r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(successBody))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL, 0)

	resp, err := adapter.Complete(context.Background(), &providers.CompletionRequest{
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: "Anda adalah asisten resep masakan Indonesia."},
			{Role: providers.RoleUser, Content: "Halo"},
			{Role: providers.RoleAssistant, Content: "Halo! Mau masak apa?"},
			{Role: providers.RoleUser, Content: "Bagaimana cara membuat rendang?"},
		},
		Temperature: 0.7,
		MaxTokens:   1000,
	})
	require.NoError(t, err)

	assert.Equal(t, "Rendang dimasak perlahan dengan santan.", resp.Text)
	assert.Equal(t, "STOP", resp.FinishReason)
	assert.Equal(t, providers.Usage{PromptTokens: 12, CompletionTokens: 8, TotalTokens: 20}, resp.Usage)

	contents, ok := body["contents"].([]interface{})
	require.True(t, ok)
	require.Len(t, contents, 3, "system message must not be sent as a turn")

	roles := make([]string, 0, len(contents))
	for _, c := range contents {
		roles = append(roles, c.(map[string]interface{})["role"].(string))
	}
	assert.Equal(t, []string{"user", "model", "user"}, roles)

	system, ok := body["systemInstruction"].(map[string]interface{})
	require.True(t, ok)
	parts := system["parts"].([]interface{})
	assert.Equal(t, "Anda adalah asisten resep masakan Indonesia.", parts[0].(map[string]interface{})["text"])

	genConfig, ok := body["generationConfig"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 1000, genConfig["maxOutputTokens"])
	assert.InDelta(t, 0.7, genConfig["temperature"], 1e-6)
}

func TestAdapter_Complete_RetriesUnavailable(t *testing.T) {
	var attempts int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&attempts, 1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":{"code":503,"message":"The model is overloaded.","status":"UNAVAILABLE"}}`))
			return
		}
		w.Write([]byte(successBody))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL, 2)

	resp, err := adapter.Complete(context.Background(), &providers.CompletionRequest{
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "rendang"}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Text)
	assert.EqualValues(t, 2, attempts)
}

func TestAdapter_Complete_PermanentError(t *testing.T) {
	var attempts int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":400,"message":"API key not valid.","status":"INVALID_ARGUMENT"}}`))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL, 3)

	_, err := adapter.Complete(context.Background(), &providers.CompletionRequest{
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "rendang"}},
	})
	require.Error(t, err)

	var provErr *providers.ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, "gemini", provErr.Provider)
	assert.Equal(t, "INVALID_ARGUMENT", provErr.Code)
	assert.Equal(t, http.StatusBadRequest, provErr.StatusCode)
	assert.Equal(t, "API key not valid.", provErr.Message)
	assert.False(t, provErr.Retryable)
	assert.EqualValues(t, 1, attempts)
}

func TestAdapter_Complete_BlockedPrompt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL, 0)

	_, err := adapter.Complete(context.Background(), &providers.CompletionRequest{
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "rendang"}},
	})

	var provErr *providers.ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, "EMPTY_RESPONSE", provErr.Code)
	assert.Contains(t, provErr.Message, "SAFETY")
}

func TestAdapter_Complete_RequiresConversation(t *testing.T) {
	adapter := newTestAdapter(t, "http://localhost", 0)

	_, err := adapter.Complete(context.Background(), &providers.CompletionRequest{
		Messages: []providers.Message{{Role: providers.RoleSystem, Content: "persona only"}},
	})

	var provErr *providers.ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, "INVALID_REQUEST", provErr.Code)
}

func TestBuildRequest(t *testing.T) {
	adapter := newTestAdapter(t, "http://localhost", 0)

	contents, genConfig := adapter.buildRequest(&providers.CompletionRequest{
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: "a"},
			{Role: providers.RoleSystem, Content: "b"},
			{Role: providers.RoleUser, Content: "q"},
		},
		Temperature: 0,
	})

	require.Len(t, contents, 1)
	assert.Equal(t, "user", contents[0].Role)
	require.NotNil(t, genConfig.SystemInstruction)
	assert.Equal(t, "a\n\nb", genConfig.SystemInstruction.Parts[0].Text)
	require.NotNil(t, genConfig.Temperature)
	assert.Equal(t, float32(0), *genConfig.Temperature)
	assert.Zero(t, genConfig.MaxOutputTokens)
}
