package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"brainocr/internal/config"
	"brainocr/internal/notify"
	"brainocr/internal/ocr"
	"brainocr/internal/pipeline"
	"brainocr/internal/state"
	"brainocr/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the watch daemon: OCR, embed and index new files",
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(cmd.ErrOrStderr(), "config:", err)
		}
		return fmt.Errorf("configuration invalid, refusing to start")
	}

	tracker, err := state.Load(cfg.StateFile)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	log.Printf("state: %d files already processed", tracker.Count())

	emb, err := openEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("init embedder: %w", err)
	}
	defer func() { _ = emb.Close() }()

	idx, err := openIndex(cfg, emb.Dimension())
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer func() { _ = idx.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := idx.EnsureReady(ctx); err != nil {
		return fmt.Errorf("prepare index: %w", err)
	}

	extractor := ocr.NewAzureExtractor(cfg.OCREndpoint, cfg.OCRKey, cfg.HTTPTimeout)
	notifier := notify.NewWebhook(cfg.WebhookURL, cfg.HTTPTimeout)

	orch := pipeline.New(extractor, emb, idx, tracker, notifier, pipeline.Config{
		MaxAttempts: cfg.MaxAttempts,
		BackoffBase: cfg.BackoffBase,
		Workers:     cfg.Workers,
	})

	w := watcher.New(watcher.Config{
		Root:         cfg.WatchDir,
		Extensions:   cfg.Extensions,
		UsePolling:   cfg.UsePolling,
		PollInterval: cfg.PollInterval,
		Debounce:     cfg.DebounceWindow,
	}, tracker)

	// Catch up on files that appeared while the daemon was down.
	backlog, err := w.InitialScan(ctx)
	if err != nil {
		return fmt.Errorf("initial scan: %w", err)
	}
	if len(backlog) > 0 {
		log.Printf("initial scan: %d files to process", len(backlog))
		processed, failed := orch.ProcessBatch(ctx, backlog, w.Release)
		log.Printf("initial scan: %d processed, %d failed", processed, failed)
	}

	mode := "events"
	if cfg.UsePolling {
		mode = fmt.Sprintf("polling every %s", cfg.PollInterval)
	}
	log.Printf("watching %s (%s)", cfg.WatchDir, mode)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(ctx) })
	g.Go(func() error { return orch.Run(ctx, w.Tasks(), w.Release) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Printf("shutdown complete")
	return nil
}
