package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"brainocr/pkg/types"
)

const (
	// analyzeModel is the generic read model: printed and handwritten
	// text from images and PDFs.
	analyzeModel = "prebuilt-read"

	apiVersion = "2024-02-29-preview"

	defaultPollInterval = 2 * time.Second
	maxPollAttempts     = 60
)

// AzureExtractor implements Extractor against the Azure Document
// Intelligence REST API.
type AzureExtractor struct {
	endpoint     string
	apiKey       string
	httpClient   *http.Client
	pollInterval time.Duration
}

// NewAzureExtractor creates an extractor for the given service
// endpoint and key.
func NewAzureExtractor(endpoint, apiKey string, timeout time.Duration) *AzureExtractor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AzureExtractor{
		endpoint:     strings.TrimRight(endpoint, "/"),
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: timeout},
		pollInterval: defaultPollInterval,
	}
}

// analyzeResponse is the subset of the analyze result we consume.
type analyzeResponse struct {
	Status string `json:"status"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	AnalyzeResult *struct {
		Content string `json:"content"`
		Pages   []struct {
			PageNumber int `json:"pageNumber"`
		} `json:"pages"`
		Languages []struct {
			Locale string `json:"locale"`
		} `json:"languages"`
	} `json:"analyzeResult"`
}

// Extract submits the file for analysis and polls the returned
// operation until it settles.
func (a *AzureExtractor) Extract(ctx context.Context, path string) (*Extraction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.Permanent(fmt.Errorf("read %s: %w", path, err))
	}

	opURL, err := a.submit(ctx, data, ContentType(path))
	if err != nil {
		return nil, err
	}

	result, err := a.poll(ctx, opURL)
	if err != nil {
		return nil, err
	}

	ex := &Extraction{}
	if ar := result.AnalyzeResult; ar != nil {
		ex.Text = ar.Content
		ex.CharCount = len(ar.Content)
		ex.WordCount = len(strings.Fields(ar.Content))
		ex.PageCount = len(ar.Pages)
		for _, l := range ar.Languages {
			ex.Languages = append(ex.Languages, l.Locale)
		}
	}

	// The read model sometimes omits page metadata for PDFs; count
	// locally so the index still carries it.
	if ex.PageCount == 0 && strings.EqualFold(filepath.Ext(path), ".pdf") {
		if n, err := api.PageCountFile(path); err == nil {
			ex.PageCount = n
		} else {
			log.Printf("ocr: local page count for %s failed: %v", path, err)
		}
	}

	return ex, nil
}

// submit starts an analyze operation and returns its polling URL.
func (a *AzureExtractor) submit(ctx context.Context, data []byte, contentType string) (string, error) {
	u := fmt.Sprintf("%s/documentintelligence/documentModels/%s:analyze?api-version=%s",
		a.endpoint, analyzeModel, apiVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return "", types.Permanent(fmt.Errorf("create analyze request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Ocp-Apim-Subscription-Key", a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", types.Transient(fmt.Errorf("analyze call: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return "", types.FromHTTPStatus(resp.StatusCode, strings.TrimSpace(string(body)))
	}

	opURL := resp.Header.Get("Operation-Location")
	if opURL == "" {
		return "", types.Transientf("analyze accepted but no Operation-Location header")
	}
	return opURL, nil
}

// poll fetches the operation until it reaches a terminal status.
func (a *AzureExtractor) poll(ctx context.Context, opURL string) (*analyzeResponse, error) {
	for attempt := 0; attempt < maxPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.pollInterval):
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, opURL, nil)
		if err != nil {
			return nil, types.Permanent(fmt.Errorf("create poll request: %w", err))
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", a.apiKey)

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return nil, types.Transient(fmt.Errorf("poll call: %w", err))
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			return nil, types.FromHTTPStatus(resp.StatusCode, strings.TrimSpace(string(body)))
		}

		var result analyzeResponse
		err = json.NewDecoder(resp.Body).Decode(&result)
		_ = resp.Body.Close()
		if err != nil {
			return nil, types.Transient(fmt.Errorf("decode poll response: %w", err))
		}

		switch result.Status {
		case "succeeded":
			return &result, nil
		case "failed":
			detail := "analysis failed"
			if result.Error != nil {
				detail = fmt.Sprintf("%s: %s", result.Error.Code, result.Error.Message)
			}
			return nil, types.Permanentf("ocr %s", detail)
		}
		// notStarted / running: keep polling.
	}
	return nil, types.Transientf("ocr operation did not settle after %d polls", maxPollAttempts)
}
