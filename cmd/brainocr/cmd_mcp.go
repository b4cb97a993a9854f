package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"brainocr/internal/config"
	"brainocr/internal/index"
	"brainocr/internal/mcp"
	"brainocr/internal/state"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the note index over the Model Context Protocol on stdio",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, _ []string) error {
	// stdout is reserved for the MCP protocol.
	log.SetOutput(os.Stderr)
	log.Printf("brainocr MCP server v%s starting (build mode %s)", version, index.BuildMode)

	cfg := config.Load()

	emb, err := openEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("init embedder: %w", err)
	}
	defer func() { _ = emb.Close() }()

	idx, err := openIndex(cfg, emb.Dimension())
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	if err := idx.EnsureReady(cmd.Context()); err != nil {
		_ = idx.Close()
		return fmt.Errorf("prepare index: %w", err)
	}

	tracker, err := state.Load(cfg.StateFile)
	if err != nil {
		log.Printf("state unreadable, index_status omits processed counts: %v", err)
		tracker = nil
	}

	server, err := mcp.NewServer(idx, emb, tracker)
	if err != nil {
		_ = idx.Close()
		return fmt.Errorf("create MCP server: %w", err)
	}

	log.Printf("MCP server ready, listening on stdio")
	return server.Serve(cmd.Context())
}
