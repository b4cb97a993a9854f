package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"brainocr/internal/config"
)

var clearFlags struct {
	force bool
	state bool
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every document from the index",
	Long: "clear removes all indexed documents so the watch tree can be\n" +
		"re-indexed from scratch. With --state the processed-file record is\n" +
		"deleted too, making the next run pick every file up again.",
	RunE: runClear,
}

func init() {
	f := clearCmd.Flags()
	f.BoolVar(&clearFlags.force, "force", false, "Confirm the deletion")
	f.BoolVar(&clearFlags.state, "state", false, "Also delete the processed-file state record")
}

func runClear(cmd *cobra.Command, _ []string) error {
	if !clearFlags.force {
		return fmt.Errorf("clear deletes every indexed document; re-run with --force to confirm")
	}

	cfg := config.Load()

	idx, err := openIndex(cfg, 0)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer func() { _ = idx.Close() }()

	// A fresh SQLite file needs its schema before the delete can run;
	// the remote backend only needs its documents removed.
	if cfg.IndexBackend == config.IndexSQLite {
		if err := idx.EnsureReady(cmd.Context()); err != nil {
			return fmt.Errorf("prepare index: %w", err)
		}
	}

	if err := idx.Clear(cmd.Context()); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Index cleared.")

	if clearFlags.state {
		if err := os.Remove(cfg.StateFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove state file: %w", err)
		}
		fmt.Fprintf(out, "State file removed (%s).\n", cfg.StateFile)
	}
	return nil
}
