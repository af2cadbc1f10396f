package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	t.Run("successful write", func(t *testing.T) {
		w := httptest.NewRecorder()

		err := WriteJSON(w, http.StatusOK, map[string]string{"message": "test"})
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "test", response["message"])
	})

	t.Run("nil data", func(t *testing.T) {
		w := httptest.NewRecorder()

		require.NoError(t, WriteJSON(w, http.StatusNoContent, nil))

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestWriteOK(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, WriteOK(w, map[string]string{"result": "success"}))
	assert.Equal(t, http.StatusOK, w.Code)

	var response SuccessResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

	dataMap := response.Data.(map[string]interface{})
	assert.Equal(t, "success", dataMap["result"])
}

func TestWriteCreated(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, WriteCreated(w, map[string]int{"loaded": 3}))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"data": {"loaded": 3}}`, w.Body.String())
}

func TestWriteNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	WriteNoContent(w)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		message      string
		expectedCode string
		expectedMsg  string
	}{
		{"bad request", http.StatusBadRequest, "query is required", "bad_request", "query is required"},
		{"unauthorized", http.StatusUnauthorized, "", "unauthorized", "Unauthorized"},
		{"not found", http.StatusNotFound, "no route", "not_found", "no route"},
		{"bad gateway", http.StatusBadGateway, "backend down", "backend_error", "backend down"},
		{"service unavailable", http.StatusServiceUnavailable, "index down", "index_unavailable", "index down"},
		{"unmapped status", http.StatusTeapot, "", "internal_error", "I'm a teapot"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			require.NoError(t, WriteError(w, tt.status, tt.message, nil))
			assert.Equal(t, tt.status, w.Code)

			var response ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.expectedCode, response.Error)
			assert.Equal(t, tt.expectedMsg, response.Message)
		})
	}
}

func TestWriteHelpers(t *testing.T) {
	t.Run("bad request with details", func(t *testing.T) {
		w := httptest.NewRecorder()
		require.NoError(t, WriteBadRequest(w, "invalid", map[string]interface{}{"top_k": "out of range"}))

		var response ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "out of range", response.Details["top_k"])
	})

	t.Run("default messages", func(t *testing.T) {
		w := httptest.NewRecorder()
		require.NoError(t, WriteUnauthorized(w, ""))
		assert.Contains(t, w.Body.String(), "Authentication required")

		w = httptest.NewRecorder()
		require.NoError(t, WriteNotFound(w, ""))
		assert.Contains(t, w.Body.String(), "Resource not found")

		w = httptest.NewRecorder()
		require.NoError(t, WriteInternalServerError(w, ""))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "Internal server error")
	})
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Query string `json:"query"`
	}

	t.Run("valid body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"query": "rendang"}`))
		var p payload
		require.NoError(t, DecodeJSON(httptest.NewRecorder(), r, &p))
		assert.Equal(t, "rendang", p.Query)
	})

	t.Run("empty body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		var p payload
		err := DecodeJSON(httptest.NewRecorder(), r, &p)
		require.Error(t, err)
		assert.Equal(t, "request body is empty", err.Error())
	})

	t.Run("malformed body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"query":`))
		var p payload
		err := DecodeJSON(httptest.NewRecorder(), r, &p)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid JSON body")
	})

	t.Run("oversized body", func(t *testing.T) {
		big := `{"query": "` + strings.Repeat("a", maxBodyBytes) + `"}`
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
		var p payload
		err := DecodeJSON(httptest.NewRecorder(), r, &p)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "request body exceeds")
	})
}

func TestQueryInt(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected int
		wantErr  bool
	}{
		{"missing uses fallback", "/search", 3, false},
		{"valid", "/search?top_k=5", 5, false},
		{"below range", "/search?top_k=0", 0, true},
		{"above range", "/search?top_k=6", 0, true},
		{"not a number", "/search?top_k=lima", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.url, nil)
			got, err := QueryInt(r, "top_k", 3, 1, 5)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestQueryFloat(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/search?min_similarity=0.25", nil)
	got, err := QueryFloat(r, "min_similarity", 0, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.25, got)

	r = httptest.NewRequest(http.MethodGet, "/search", nil)
	got, err = QueryFloat(r, "min_similarity", 0, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)

	r = httptest.NewRequest(http.MethodGet, "/search?min_similarity=2", nil)
	_, err = QueryFloat(r, "min_similarity", 0, 0, 1)
	assert.Error(t, err)
}
