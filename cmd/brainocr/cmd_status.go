package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"brainocr/internal/config"
	"brainocr/internal/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index statistics and processed-file state",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()

	idx, err := openIndex(cfg, 0)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer func() { _ = idx.Close() }()

	// A fresh SQLite file needs its schema before Stats can run. The
	// remote backend is left untouched: status is read-only and must
	// not push a schema sized from defaults.
	if cfg.IndexBackend == config.IndexSQLite {
		if err := idx.EnsureReady(cmd.Context()); err != nil {
			return fmt.Errorf("prepare index: %w", err)
		}
	}

	stats, err := idx.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("index stats: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Backend:     %s\n", stats.Backend)
	fmt.Fprintf(out, "Documents:   %d\n", stats.Documents)
	fmt.Fprintf(out, "Total words: %d\n", stats.TotalWords)

	if len(stats.Categories) > 0 {
		fmt.Fprintf(out, "Categories:\n")
		names := make([]string, 0, len(stats.Categories))
		for name := range stats.Categories {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "  %-20s %d\n", name, stats.Categories[name])
		}
	}

	tracker, err := state.Load(cfg.StateFile)
	if err != nil {
		fmt.Fprintf(out, "State:       unreadable (%v)\n", err)
		return nil
	}
	fmt.Fprintf(out, "Processed:   %d files (%s)\n", tracker.Count(), cfg.StateFile)
	return nil
}
