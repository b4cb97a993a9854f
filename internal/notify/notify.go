package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"brainocr/pkg/types"
)

// Notifier receives pipeline lifecycle events.
type Notifier interface {
	// FileProcessed reports one successfully indexed file.
	FileProcessed(ctx context.Context, result *types.PipelineResult)

	// FileFailed reports a file that exhausted its attempts.
	FileFailed(ctx context.Context, result *types.PipelineResult)

	// BatchComplete reports the end of an initial-scan batch.
	BatchComplete(ctx context.Context, processed, failed int)
}

// Nop discards all events.
type Nop struct{}

func (Nop) FileProcessed(context.Context, *types.PipelineResult) {}
func (Nop) FileFailed(context.Context, *types.PipelineResult) {}
func (Nop) BatchComplete(context.Context, int, int) {}

// Webhook posts events as JSON to a single URL.
type Webhook struct {
	url        string
	isDiscord  bool
	httpClient *http.Client
}

// NewWebhook creates a webhook notifier. An empty URL yields a Nop.
func NewWebhook(url string, timeout time.Duration) Notifier {
	if url == "" {
		return Nop{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Webhook{
		url:        url,
		isDiscord:  strings.Contains(url, "discord.com/api/webhooks"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// event is the generic webhook payload.
type event struct {
	Event     string                 `json:"event"`
	Timestamp string                 `json:"timestamp"`
	File      string                 `json:"file,omitempty"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

func (w *Webhook) FileProcessed(ctx context.Context, result *types.PipelineResult) {
	name := filepath.Base(result.Task.Path)
	w.send(ctx, event{
		Event:     string(types.EventFileProcessed),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		File:      result.Task.Path,
		Message:   fmt.Sprintf("Processed %s (%d words)", name, result.WordCount),
		Metadata: map[string]interface{}{
			"category":   result.Task.Class.Category,
			"source":     result.Task.Class.Source,
			"word_count": result.WordCount,
			"duration":   result.Duration.String(),
		},
	})
}

func (w *Webhook) FileFailed(ctx context.Context, result *types.PipelineResult) {
	name := filepath.Base(result.Task.Path)
	w.send(ctx, event{
		Event:     string(types.EventProcessingError),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		File:      result.Task.Path,
		Message:   fmt.Sprintf("Failed %s at %s: %v", name, result.Stage, result.Err),
		Metadata: map[string]interface{}{
			"stage": string(result.Stage),
		},
	})
}

func (w *Webhook) BatchComplete(ctx context.Context, processed, failed int) {
	w.send(ctx, event{
		Event:     string(types.EventBatchComplete),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Message:   fmt.Sprintf("Batch complete: %d processed, %d failed", processed, failed),
		Metadata: map[string]interface{}{
			"processed": processed,
			"failed":    failed,
		},
	})
}

// send delivers one event. Failures are logged, never returned.
func (w *Webhook) send(ctx context.Context, ev event) {
	var payload interface{} = ev
	if w.isDiscord {
		payload = map[string]string{"content": ev.Message}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("notify: marshal event: %v", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		log.Printf("notify: create request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		log.Printf("notify: deliver %s: %v", ev.Event, err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		log.Printf("notify: webhook returned %d for %s", resp.StatusCode, ev.Event)
	}
}
