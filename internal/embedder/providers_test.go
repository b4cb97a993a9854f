package embedder

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brainocr/pkg/types"
)

func embeddingsHandler(t *testing.T, wantAuth func(*http.Request)) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		wantAuth(r)

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req["input"])

		_, _ = w.Write([]byte(`{
			"data": [{"embedding": [0.1, 0.2, 0.3], "index": 0}],
			"model": "text-embedding-3-small"
		}`))
	}
}

func TestOpenAIProviderGeneratesEmbedding(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		embeddingsHandler(t, func(r *http.Request) {
			assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
			assert.Equal(t, "/embeddings", r.URL.Path)
		})(w, r)
	}))
	t.Cleanup(srv.Close)

	p, err := NewOpenAIProvider(srv.URL, "sk-test", "", time.Second, NewCache(10))
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	emb, err := p.GenerateEmbedding(t.Context(), "handwritten page about habits")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, emb.Vector)
	assert.Equal(t, 3, emb.Dimension)
	assert.Equal(t, "text-embedding-3-small", emb.Model)

	// Second call for identical text is served from cache.
	_, err = p.GenerateEmbedding(t.Context(), "handwritten page about habits")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestAzureProviderGeneratesEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		embeddingsHandler(t, func(r *http.Request) {
			assert.Equal(t, "azure-key", r.Header.Get("api-key"))
			assert.Equal(t, "/openai/deployments/embed-prod/embeddings", r.URL.Path)
			assert.Equal(t, AzureAPIVersion, r.URL.Query().Get("api-version"))
		})(w, r)
	}))
	t.Cleanup(srv.Close)

	p, err := NewAzureProvider(srv.URL, "azure-key", "embed-prod", time.Second, nil)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	emb, err := p.GenerateEmbedding(t.Context(), "note text")
	require.NoError(t, err)
	assert.Equal(t, ProviderAzure, emb.Provider)
	assert.Len(t, emb.Vector, 3)
}

func TestAzureProviderDimensionFollowsDeployment(t *testing.T) {
	small, err := NewAzureProvider("https://res.openai.azure.com", "k", "text-embedding-3-small", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 1536, small.Dimension())

	large, err := NewAzureProvider("https://res.openai.azure.com", "k", "text-embedding-3-large", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 3072, large.Dimension())
}

func TestProviderErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, transient: true},
		{name: "server error", status: http.StatusBadGateway, transient: true},
		{name: "unauthorized", status: http.StatusUnauthorized, transient: false},
		{name: "bad request", status: http.StatusBadRequest, transient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, tt.name, tt.status)
			}))
			t.Cleanup(srv.Close)

			p, err := NewOpenAIProvider(srv.URL, "sk-test", "", time.Second, nil)
			require.NoError(t, err)

			_, err = p.GenerateEmbedding(t.Context(), "text")
			require.Error(t, err)
			if tt.transient {
				assert.True(t, types.IsTransient(err))
			} else {
				assert.True(t, types.IsPermanent(err))
			}
		})
	}
}

func TestEmptyResponseIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": [], "model": "m"}`))
	}))
	t.Cleanup(srv.Close)

	p, err := NewOpenAIProvider(srv.URL, "sk-test", "", time.Second, nil)
	require.NoError(t, err)

	_, err = p.GenerateEmbedding(t.Context(), "text")
	require.Error(t, err)
	assert.True(t, types.IsTransient(err))
}
