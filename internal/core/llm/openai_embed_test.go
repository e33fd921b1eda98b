package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendocareer/ragpipeline/internal/core"
)

type fakeEmbedData struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

func newEmbedServer(t *testing.T, handler http.HandlerFunc) *OpenAIEmbedder {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	e, err := NewOpenAIEmbedder(srv.URL, "test-key", "test-model", 3, 5*time.Second)
	require.NoError(t, err)
	return e
}

func vec(base float32) []float32 { return []float32{base, base + 1, base + 2} }

func TestOpenAIEmbedHappyPath(t *testing.T) {
	e := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)

		data := make([]fakeEmbedData, len(req.Input))
		for i := range req.Input {
			data[i] = fakeEmbedData{Index: i, Embedding: vec(float32(i))}
		}
		json.NewEncoder(w).Encode(map[string]any{"data": data})
	})

	vectors, err := e.EmbedTexts(context.Background(), []string{"one", "two", "three"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, vec(0), vectors[0])
	assert.Equal(t, vec(2), vectors[2])
}

func TestOpenAIEmbedReordersByIndex(t *testing.T) {
	e := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		// Entries deliberately out of order; index is authoritative.
		json.NewEncoder(w).Encode(map[string]any{"data": []fakeEmbedData{
			{Index: 1, Embedding: vec(10)},
			{Index: 0, Embedding: vec(20)},
		}})
	})

	vectors, err := e.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, vec(20), vectors[0])
	assert.Equal(t, vec(10), vectors[1])
}

func TestOpenAIEmbedServerErrorIsRetryable(t *testing.T) {
	e := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	_, err := e.EmbedTexts(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Equal(t, core.KindEmbeddingUnavailable, core.KindOf(err))
	assert.True(t, core.Retryable(err))
}

func TestOpenAIEmbedDimensionMismatchIsFatal(t *testing.T) {
	e := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []fakeEmbedData{
			{Index: 0, Embedding: []float32{1, 2, 3, 4, 5}},
		}})
	})

	_, err := e.EmbedTexts(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Equal(t, core.KindDimensionMismatch, core.KindOf(err))
	assert.False(t, core.Retryable(err))
}

func TestOpenAIEmbedCountMismatch(t *testing.T) {
	e := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []fakeEmbedData{
			{Index: 0, Embedding: vec(1)},
		}})
	})

	_, err := e.EmbedTexts(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Equal(t, core.KindEmbeddingUnavailable, core.KindOf(err))
}

func TestOpenAIEmbedIndexOutOfRange(t *testing.T) {
	e := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []fakeEmbedData{
			{Index: 5, Embedding: vec(1)},
		}})
	})

	_, err := e.EmbedTexts(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Equal(t, core.KindEmbeddingUnavailable, core.KindOf(err))
}

func TestOpenAIEmbedEmptyInput(t *testing.T) {
	e := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for empty input")
	})
	vectors, err := e.EmbedTexts(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestOpenAIEmbedRequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIEmbedder("http://localhost", "", "m", 3, time.Second)
	require.Error(t, err)
	assert.Contains(t, fmt.Sprint(err), "API key")
}
