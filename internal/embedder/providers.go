package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"brainocr/pkg/types"
)

// Provider names and defaults.
const (
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
	ProviderLocal  = "local"

	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultOpenAIBase  = "https://api.openai.com/v1"

	AzureAPIVersion = "2024-02-01"

	OpenAIDimension = 1536
	LocalDimension  = 384
)

// embeddingsResponse is the wire shape shared by OpenAI and Azure
// OpenAI.
type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// OpenAIProvider implements Embedder against the OpenAI embeddings
// API (or any compatible endpoint).
type OpenAIProvider struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	cache      *Cache
}

// NewOpenAIProvider creates an OpenAI embedder. baseURL and model fall
// back to the public API and the small embedding model.
func NewOpenAIProvider(baseURL, apiKey, model string, timeout time.Duration, cache *Cache) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai embedder: api key not set")
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBase
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
	}, nil
}

func (o *OpenAIProvider) GenerateEmbedding(ctx context.Context, text string) (*Embedding, error) {
	if strings.TrimSpace(text) == "" {
		return nil, types.Permanent(types.ErrEmptyText)
	}

	hash := ComputeHash(text)
	if o.cache != nil {
		if emb, ok := o.cache.Get(hash); ok {
			return emb, nil
		}
	}

	reqBody := map[string]interface{}{
		"input": text,
		"model": o.model,
	}
	u := o.baseURL + "/embeddings"
	vector, model, err := postEmbeddings(ctx, o.httpClient, u, map[string]string{
		"Authorization": "Bearer " + o.apiKey,
	}, reqBody)
	if err != nil {
		return nil, err
	}

	emb := &Embedding{
		Vector:    vector,
		Dimension: len(vector),
		Provider:  ProviderOpenAI,
		Model:     model,
		Hash:      hash,
	}
	if o.cache != nil {
		o.cache.Set(hash, emb)
	}
	return emb, nil
}

func (o *OpenAIProvider) Dimension() int { return OpenAIDimension }
func (o *OpenAIProvider) Provider() string { return ProviderOpenAI }
func (o *OpenAIProvider) Model() string { return o.model }
func (o *OpenAIProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}

// AzureProvider implements Embedder against an Azure OpenAI
// deployment.
type AzureProvider struct {
	endpoint   string
	apiKey     string
	deployment string
	httpClient *http.Client
	cache      *Cache
}

// NewAzureProvider creates an Azure OpenAI embedder for the given
// deployment.
func NewAzureProvider(endpoint, apiKey, deployment string, timeout time.Duration, cache *Cache) (*AzureProvider, error) {
	if endpoint == "" || apiKey == "" {
		return nil, fmt.Errorf("azure embedder: endpoint and api key required")
	}
	if deployment == "" {
		deployment = DefaultOpenAIModel
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AzureProvider{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		deployment: deployment,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
	}, nil
}

func (a *AzureProvider) GenerateEmbedding(ctx context.Context, text string) (*Embedding, error) {
	if strings.TrimSpace(text) == "" {
		return nil, types.Permanent(types.ErrEmptyText)
	}

	hash := ComputeHash(text)
	if a.cache != nil {
		if emb, ok := a.cache.Get(hash); ok {
			return emb, nil
		}
	}

	u := fmt.Sprintf("%s/openai/deployments/%s/embeddings?api-version=%s",
		a.endpoint, a.deployment, AzureAPIVersion)
	vector, model, err := postEmbeddings(ctx, a.httpClient, u, map[string]string{
		"api-key": a.apiKey,
	}, map[string]interface{}{"input": text})
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = a.deployment
	}

	emb := &Embedding{
		Vector:    vector,
		Dimension: len(vector),
		Provider:  ProviderAzure,
		Model:     model,
		Hash:      hash,
	}
	if a.cache != nil {
		a.cache.Set(hash, emb)
	}
	return emb, nil
}

// Dimension follows the deployment name: the large model is 3072-wide,
// everything else ships 1536.
func (a *AzureProvider) Dimension() int {
	if strings.Contains(a.deployment, "text-embedding-3-large") {
		return 3072
	}
	return OpenAIDimension
}

func (a *AzureProvider) Provider() string { return ProviderAzure }
func (a *AzureProvider) Model() string { return a.deployment }
func (a *AzureProvider) Close() error {
	a.httpClient.CloseIdleConnections()
	return nil
}

// postEmbeddings performs one embeddings call and classifies failures.
func postEmbeddings(ctx context.Context, client *http.Client, url string, headers map[string]string, reqBody map[string]interface{}) ([]float32, string, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, "", types.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, "", types.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", types.Transient(fmt.Errorf("embeddings call: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, "", types.FromHTTPStatus(resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var apiResp embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, "", types.Transient(fmt.Errorf("decode response: %w", err))
	}
	if len(apiResp.Data) == 0 {
		return nil, "", types.Transientf("no embeddings returned")
	}
	return apiResp.Data[0].Embedding, apiResp.Model, nil
}

// LocalProvider is the offline embedder: a deterministic vector
// derived from the content hash. Useless for semantic search quality,
// invaluable for tests and air-gapped runs.
type LocalProvider struct {
	model string
	cache *Cache
}

// NewLocalProvider creates the offline embedder.
func NewLocalProvider(cache *Cache) *LocalProvider {
	return &LocalProvider{model: "local-hash", cache: cache}
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, text string) (*Embedding, error) {
	if strings.TrimSpace(text) == "" {
		return nil, types.Permanent(types.ErrEmptyText)
	}

	hash := ComputeHash(text)
	if l.cache != nil {
		if emb, ok := l.cache.Get(hash); ok {
			return emb, nil
		}
	}

	vector := make([]float32, LocalDimension)
	sum := sha256.Sum256([]byte(text))
	for i := 0; i < LocalDimension; i++ {
		vector[i] = float32(sum[i%len(sum)]) / 255.0
	}

	emb := &Embedding{
		Vector:    vector,
		Dimension: LocalDimension,
		Provider:  ProviderLocal,
		Model:     l.model,
		Hash:      hash,
	}
	if l.cache != nil {
		l.cache.Set(hash, emb)
	}
	return emb, nil
}

func (l *LocalProvider) Dimension() int { return LocalDimension }
func (l *LocalProvider) Provider() string { return ProviderLocal }
func (l *LocalProvider) Model() string { return l.model }
func (l *LocalProvider) Close() error { return nil }
