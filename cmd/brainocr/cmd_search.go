package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"brainocr/internal/config"
	"brainocr/internal/index"
)

var searchFlags struct {
	category string
	source   string
	limit    int
	keyword  bool
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the note index",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	f := searchCmd.Flags()
	f.StringVar(&searchFlags.category, "category", "", "Restrict to one category")
	f.StringVar(&searchFlags.source, "source", "", "Restrict to one source")
	f.IntVar(&searchFlags.limit, "limit", 10, "Maximum number of results")
	f.BoolVar(&searchFlags.keyword, "keyword", false, "Keyword search only, skip query embedding")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	query := strings.Join(args, " ")

	idx, err := openIndex(cfg, 0)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer func() { _ = idx.Close() }()

	q := index.Query{
		Text:     query,
		Category: searchFlags.category,
		Source:   searchFlags.source,
		Limit:    searchFlags.limit,
	}

	if !searchFlags.keyword {
		if emb, err := openEmbedder(cfg); err == nil {
			defer func() { _ = emb.Close() }()
			if e, eErr := emb.GenerateEmbedding(cmd.Context(), query); eErr == nil {
				q.Vector = e.Vector
			} else {
				log.Printf("query embedding failed, keyword search only: %v", eErr)
			}
		} else {
			log.Printf("embedder unavailable, keyword search only: %v", err)
		}
	}

	results, err := idx.Search(cmd.Context(), q)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "No results.")
		return nil
	}

	for i, r := range results {
		fmt.Fprintf(out, "%2d. [%.3f] %s (%s/%s)\n", i+1, r.Score, r.Document.Title,
			r.Document.Category, r.Document.Source)
		fmt.Fprintf(out, "    %s (%d words)\n", r.Document.Path, r.Document.WordCount)
		if s := firstLine(r.Document.Content, 160); s != "" {
			fmt.Fprintf(out, "    %s\n", s)
		}
	}
	return nil
}

// firstLine returns the first n bytes of content collapsed to one
// line.
func firstLine(content string, n int) string {
	content = strings.Join(strings.Fields(content), " ")
	if len(content) > n {
		content = content[:n] + "…"
	}
	return content
}
