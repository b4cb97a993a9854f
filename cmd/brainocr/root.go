package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"brainocr/internal/index"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "brainocr",
	Short: "Watch a notes directory, OCR new files and index them for search",
	Long: "brainocr watches a directory tree of scanned handwritten notes,\n" +
		"extracts their text with OCR, embeds it and writes it to a search\n" +
		"index. Files are processed exactly once per successful run.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.Version = fmt.Sprintf("%s (sqlite: %s, vector extension: %v)",
		version, index.BuildMode, index.VectorExtensionAvailable)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
