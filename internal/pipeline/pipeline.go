package pipeline

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"brainocr/internal/classify"
	"brainocr/internal/embedder"
	"brainocr/internal/index"
	"brainocr/internal/notify"
	"brainocr/internal/ocr"
	"brainocr/internal/state"
	"brainocr/pkg/types"
)

// maxEmbedChars caps the text sent to the embedding provider. The
// full content still goes to the index.
const maxEmbedChars = 8000

// Config tunes the orchestrator.
type Config struct {
	MaxAttempts int
	BackoffBase time.Duration
	Workers     int
}

// Orchestrator drives FileTasks through the pipeline stages.
type Orchestrator struct {
	extractor ocr.Extractor
	embedder  embedder.Embedder
	index     index.Index
	tracker   *state.Tracker
	notifier  notify.Notifier
	cfg       Config

	// Injected for tests; production uses the defaults.
	backoff Backoff
	sleep   func(ctx context.Context, d time.Duration) error
}

// New wires an orchestrator. Nil notifier means no notifications.
func New(extractor ocr.Extractor, emb embedder.Embedder, idx index.Index, tracker *state.Tracker, notifier notify.Notifier, cfg Config) *Orchestrator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Orchestrator{
		extractor: extractor,
		embedder:  emb,
		index:     idx,
		tracker:   tracker,
		notifier:  notifier,
		cfg:       cfg,
		backoff:   ExponentialBackoff,
		sleep:     sleepCtx,
	}
}

// Process runs one task through extract, embed, index and state write.
// The returned result always carries the task; Err is nil on success.
func (o *Orchestrator) Process(ctx context.Context, task types.FileTask) *types.PipelineResult {
	start := time.Now()
	result := &types.PipelineResult{Task: task, Stage: types.StageDiscovered}

	fp := state.Fingerprint(task.Path)
	if o.tracker.IsProcessed(fp) {
		// Already done in a previous run; nothing to redo.
		result.Stage = types.StageDone
		if rec, ok := o.tracker.Record(fp); ok {
			result.WordCount = rec.WordCount
		}
		result.Duration = time.Since(start)
		return result
	}

	result.Stage = types.StageExtracting
	var extraction *ocr.Extraction
	err := o.retryTransient(ctx, func() error {
		var exErr error
		extraction, exErr = o.extractor.Extract(ctx, task.Path)
		return exErr
	})
	if err != nil {
		return o.fail(ctx, result, start, err)
	}
	result.WordCount = extraction.WordCount
	result.TextLength = extraction.CharCount

	// A legible scan of a blank page is a success, not an error: mark
	// it processed so it is never re-OCR'd, skip embed and index.
	if extraction.WordCount == 0 {
		result.Stage = types.StageStateWrite
		if err := o.tracker.MarkProcessed(fp, 0); err != nil {
			return o.fail(ctx, result, start, err)
		}
		result.Stage = types.StageDone
		result.Duration = time.Since(start)
		log.Printf("pipeline: %s extracted no text, marked processed", task.Path)
		o.notifier.FileProcessed(ctx, result)
		return result
	}

	result.Stage = types.StageEmbedding
	var emb *embedder.Embedding
	err = o.retryTransient(ctx, func() error {
		var emErr error
		emb, emErr = o.embedder.GenerateEmbedding(ctx, embedText(extraction.Text))
		return emErr
	})
	if err != nil {
		return o.fail(ctx, result, start, err)
	}

	result.Stage = types.StageIndexing
	doc := o.buildDocument(task, extraction, emb)
	err = o.retryTransient(ctx, func() error {
		return o.index.Upsert(ctx, doc)
	})
	if err != nil {
		return o.fail(ctx, result, start, err)
	}

	result.Stage = types.StageStateWrite
	if err := o.tracker.MarkProcessed(fp, extraction.WordCount); err != nil {
		// The document is indexed but the file stays unprocessed; the
		// next run re-indexes via upsert, which is safe.
		return o.fail(ctx, result, start, err)
	}

	result.Stage = types.StageDone
	result.Duration = time.Since(start)
	log.Printf("pipeline: processed %s (%d words, %s)", task.Path, result.WordCount, result.Duration.Round(time.Millisecond))
	o.notifier.FileProcessed(ctx, result)
	return result
}

// fail finalizes a failed result and notifies.
func (o *Orchestrator) fail(ctx context.Context, result *types.PipelineResult, start time.Time, err error) *types.PipelineResult {
	result.Err = fmt.Errorf("%s: %w", result.Stage, err)
	result.Duration = time.Since(start)
	log.Printf("pipeline: %s failed at %s: %v", result.Task.Path, result.Stage, err)
	o.notifier.FileFailed(ctx, result)
	return result
}

// buildDocument assembles the index document for a task.
func (o *Orchestrator) buildDocument(task types.FileTask, extraction *ocr.Extraction, emb *embedder.Embedding) *index.Document {
	class := task.Class
	if class.Category == "" {
		class = classify.Classify(task.Path)
	}
	return &index.Document{
		ID:        classify.DocumentID(task.Path),
		Path:      task.Path,
		FileName:  filepath.Base(task.Path),
		Category:  class.Category,
		Source:    class.Source,
		Title:     class.Title,
		Content:   extraction.Text,
		WordCount: extraction.WordCount,
		PageCount: extraction.PageCount,
		Vector:    emb.Vector,
		IndexedAt: time.Now().UTC(),
	}
}

// embedText trims and caps the extraction before embedding.
func embedText(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > maxEmbedChars {
		text = text[:maxEmbedChars]
	}
	return text
}

// Run consumes tasks until the channel closes or the context is
// cancelled. release is called for every task once its outcome is
// decided, successful or not, so the watcher can re-admit the path.
func (o *Orchestrator) Run(ctx context.Context, tasks <-chan types.FileTask, release func(path string)) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < o.cfg.Workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case task, ok := <-tasks:
					if !ok {
						return nil
					}
					o.Process(ctx, task)
					if release != nil {
						release(task.Path)
					}
				}
			}
		})
	}

	return g.Wait()
}

// ProcessBatch runs a fixed set of tasks through the worker pool and
// sends one batch-complete notification when anything was processed.
func (o *Orchestrator) ProcessBatch(ctx context.Context, tasks []types.FileTask, release func(path string)) (processed, failed int) {
	if len(tasks) == 0 {
		return 0, 0
	}

	results := make(chan *types.PipelineResult, len(tasks))
	queue := make(chan types.FileTask, len(tasks))
	for _, task := range tasks {
		queue <- task
	}
	close(queue)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < o.cfg.Workers; i++ {
		g.Go(func() error {
			for task := range queue {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				results <- o.Process(gctx, task)
				if release != nil {
					release(task.Path)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	for r := range results {
		if r.Succeeded() {
			processed++
		} else {
			failed++
		}
	}

	if processed > 0 || failed > 0 {
		o.notifier.BatchComplete(ctx, processed, failed)
	}
	return processed, failed
}
