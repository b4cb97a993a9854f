package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"brainocr/pkg/types"
)

const searchAPIVersion = "2023-11-01"

// AzureSearchIndex implements Index against the Azure AI Search REST
// API.
type AzureSearchIndex struct {
	endpoint   string
	apiKey     string
	indexName  string
	dimension  int
	httpClient *http.Client
}

// NewAzureSearchIndex creates a client for the given search service
// and index name. dimension sizes the vector field in the schema.
func NewAzureSearchIndex(endpoint, apiKey, indexName string, dimension int, timeout time.Duration) (*AzureSearchIndex, error) {
	if endpoint == "" || apiKey == "" || indexName == "" {
		return nil, fmt.Errorf("azure search: endpoint, api key and index name required")
	}
	if dimension <= 0 {
		dimension = 1536
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AzureSearchIndex{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		indexName:  indexName,
		dimension:  dimension,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// searchDoc is the wire shape of one indexed document.
type searchDoc struct {
	Action    string    `json:"@search.action,omitempty"`
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	FileName  string    `json:"file_name"`
	Category  string    `json:"category"`
	Source    string    `json:"source"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	WordCount int       `json:"word_count"`
	PageCount int       `json:"page_count"`
	Vector    []float32 `json:"content_vector,omitempty"`
	IndexedAt time.Time `json:"indexed_at"`
}

// EnsureReady creates or updates the index schema.
func (a *AzureSearchIndex) EnsureReady(ctx context.Context) error {
	schema := map[string]interface{}{
		"name": a.indexName,
		"fields": []map[string]interface{}{
			{"name": "id", "type": "Edm.String", "key": true, "filterable": true},
			{"name": "path", "type": "Edm.String", "filterable": true},
			{"name": "file_name", "type": "Edm.String", "filterable": true},
			{"name": "category", "type": "Edm.String", "filterable": true, "facetable": true},
			{"name": "source", "type": "Edm.String", "filterable": true, "facetable": true},
			{"name": "title", "type": "Edm.String", "searchable": true},
			{"name": "content", "type": "Edm.String", "searchable": true},
			{"name": "word_count", "type": "Edm.Int32", "filterable": true},
			{"name": "page_count", "type": "Edm.Int32", "filterable": true},
			{"name": "indexed_at", "type": "Edm.DateTimeOffset", "filterable": true, "sortable": true},
			{
				"name":                "content_vector",
				"type":                "Collection(Edm.Single)",
				"searchable":          true,
				"dimensions":          a.dimension,
				"vectorSearchProfile": "vector-profile",
			},
		},
		"vectorSearch": map[string]interface{}{
			"algorithms": []map[string]interface{}{
				{"name": "hnsw-config", "kind": "hnsw"},
			},
			"profiles": []map[string]interface{}{
				{"name": "vector-profile", "algorithm": "hnsw-config"},
			},
		},
	}

	u := fmt.Sprintf("%s/indexes/%s?api-version=%s", a.endpoint, url.PathEscape(a.indexName), searchAPIVersion)
	resp, err := a.do(ctx, http.MethodPut, u, schema)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	// 200 on update, 201 on create.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return readAPIError(resp)
	}
	return nil
}

// Upsert merge-or-uploads one document.
func (a *AzureSearchIndex) Upsert(ctx context.Context, doc *Document) error {
	if doc.ID == "" {
		return types.Permanentf("document ID must not be empty")
	}
	indexedAt := doc.IndexedAt
	if indexedAt.IsZero() {
		indexedAt = time.Now().UTC()
	}

	payload := map[string]interface{}{
		"value": []searchDoc{{
			Action:    "mergeOrUpload",
			ID:        doc.ID,
			Path:      doc.Path,
			FileName:  doc.FileName,
			Category:  doc.Category,
			Source:    doc.Source,
			Title:     doc.Title,
			Content:   doc.Content,
			WordCount: doc.WordCount,
			PageCount: doc.PageCount,
			Vector:    doc.Vector,
			IndexedAt: indexedAt,
		}},
	}

	u := fmt.Sprintf("%s/indexes/%s/docs/index?api-version=%s", a.endpoint, url.PathEscape(a.indexName), searchAPIVersion)
	resp, err := a.do(ctx, http.MethodPost, u, payload)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}

	// The batch API returns 200 with per-document status.
	var result struct {
		Value []struct {
			Key          string `json:"key"`
			Status       bool   `json:"status"`
			StatusCode   int    `json:"statusCode"`
			ErrorMessage string `json:"errorMessage"`
		} `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return types.Transient(fmt.Errorf("decode index response: %w", err))
	}
	for _, v := range result.Value {
		if !v.Status {
			return types.FromHTTPStatus(v.StatusCode,
				fmt.Sprintf("index %s: %s", v.Key, v.ErrorMessage))
		}
	}
	return nil
}

// Search runs a hybrid keyword/vector query.
func (a *AzureSearchIndex) Search(ctx context.Context, q Query) ([]Result, error) {
	if q.Limit <= 0 {
		q.Limit = 10
	}

	payload := map[string]interface{}{
		"top":    q.Limit,
		"select": "id,path,file_name,category,source,title,content,word_count,page_count,indexed_at",
	}
	if strings.TrimSpace(q.Text) != "" {
		payload["search"] = q.Text
	}
	if len(q.Vector) > 0 {
		payload["vectorQueries"] = []map[string]interface{}{{
			"kind":   "vector",
			"vector": q.Vector,
			"fields": "content_vector",
			"k":      q.Limit,
		}}
	}
	if filter := buildODataFilter(q); filter != "" {
		payload["filter"] = filter
	}

	u := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s", a.endpoint, url.PathEscape(a.indexName), searchAPIVersion)
	resp, err := a.do(ctx, http.MethodPost, u, payload)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(resp)
	}

	var result struct {
		Value []struct {
			searchDoc
			Score float64 `json:"@search.score"`
		} `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, types.Transient(fmt.Errorf("decode search response: %w", err))
	}

	results := make([]Result, 0, len(result.Value))
	for _, v := range result.Value {
		results = append(results, Result{
			Document: Document{
				ID:        v.ID,
				Path:      v.Path,
				FileName:  v.FileName,
				Category:  v.Category,
				Source:    v.Source,
				Title:     v.Title,
				Content:   v.Content,
				WordCount: v.WordCount,
				PageCount: v.PageCount,
				IndexedAt: v.IndexedAt,
			},
			Score: v.Score,
		})
	}
	return results, nil
}

// Stats reports document counts using a facet query.
func (a *AzureSearchIndex) Stats(ctx context.Context) (*Stats, error) {
	payload := map[string]interface{}{
		"search": "*",
		"top":    0,
		"count":  true,
		"facets": []string{"category,count:100"},
	}

	u := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s", a.endpoint, url.PathEscape(a.indexName), searchAPIVersion)
	resp, err := a.do(ctx, http.MethodPost, u, payload)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(resp)
	}

	var result struct {
		Count  int `json:"@odata.count"`
		Facets struct {
			Category []struct {
				Value string `json:"value"`
				Count int    `json:"count"`
			} `json:"category"`
		} `json:"@search.facets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, types.Transient(fmt.Errorf("decode stats response: %w", err))
	}

	stats := &Stats{
		Documents:  result.Count,
		Categories: make(map[string]int),
		Backend:    BackendAzureSearch,
	}
	for _, f := range result.Facets.Category {
		stats.Categories[f.Value] = f.Count
	}
	return stats, nil
}

// Clear deletes every document from the remote index, paging through
// IDs until the index reports empty. The schema itself is kept.
func (a *AzureSearchIndex) Clear(ctx context.Context) error {
	for {
		ids, err := a.listIDs(ctx, 1000)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		actions := make([]map[string]string, 0, len(ids))
		for _, id := range ids {
			actions = append(actions, map[string]string{
				"@search.action": "delete",
				"id":             id,
			})
		}

		u := fmt.Sprintf("%s/indexes/%s/docs/index?api-version=%s", a.endpoint, url.PathEscape(a.indexName), searchAPIVersion)
		resp, err := a.do(ctx, http.MethodPost, u, map[string]interface{}{"value": actions})
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			err := readAPIError(resp)
			_ = resp.Body.Close()
			return err
		}
		_ = resp.Body.Close()
	}
}

// listIDs fetches up to n document IDs.
func (a *AzureSearchIndex) listIDs(ctx context.Context, n int) ([]string, error) {
	payload := map[string]interface{}{
		"search": "*",
		"select": "id",
		"top":    n,
	}

	u := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s", a.endpoint, url.PathEscape(a.indexName), searchAPIVersion)
	resp, err := a.do(ctx, http.MethodPost, u, payload)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(resp)
	}

	var result struct {
		Value []struct {
			ID string `json:"id"`
		} `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, types.Transient(fmt.Errorf("decode id listing: %w", err))
	}

	ids := make([]string, 0, len(result.Value))
	for _, v := range result.Value {
		ids = append(ids, v.ID)
	}
	return ids, nil
}

// Close releases idle connections.
func (a *AzureSearchIndex) Close() error {
	a.httpClient.CloseIdleConnections()
	return nil
}

// do sends one JSON request with auth headers.
func (a *AzureSearchIndex) do(ctx context.Context, method, u string, payload interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, types.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(body))
	if err != nil {
		return nil, types.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, types.Transient(fmt.Errorf("search service call: %w", err))
	}
	return resp, nil
}

// readAPIError classifies a non-success response by status code.
func readAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return types.FromHTTPStatus(resp.StatusCode, strings.TrimSpace(string(body)))
}

// buildODataFilter renders category/source filters as an OData
// expression. Single quotes in values are doubled per OData escaping.
func buildODataFilter(q Query) string {
	var parts []string
	if q.Category != "" {
		parts = append(parts, fmt.Sprintf("category eq '%s'", strings.ReplaceAll(q.Category, "'", "''")))
	}
	if q.Source != "" {
		parts = append(parts, fmt.Sprintf("source eq '%s'", strings.ReplaceAll(q.Source, "'", "''")))
	}
	return strings.Join(parts, " and ")
}
