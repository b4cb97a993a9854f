package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"

	"brainocr/internal/embedder"
	"brainocr/internal/index"
	"brainocr/internal/state"
)

const (
	// ServerName is the MCP server name.
	ServerName = "brainocr"
	// ServerVersion is the current server version.
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with the search dependencies.
type Server struct {
	mcp      *server.MCPServer
	index    index.Index
	embedder embedder.Embedder
	tracker  *state.Tracker
}

// NewServer creates an MCP server over an opened index. The embedder
// is used to embed queries for semantic search; the tracker supplies
// processed-file counts for index_status.
func NewServer(idx index.Index, emb embedder.Embedder, tracker *state.Tracker) (*Server, error) {
	if idx == nil {
		return nil, fmt.Errorf("mcp server requires an index")
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		index:    idx,
		embedder: emb,
		tracker:  tracker,
	}
	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown.
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.index.Close() }()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools.
func (s *Server) registerTools() {
	s.mcp.AddTool(searchNotesTool(), s.handleSearchNotes)
	s.mcp.AddTool(indexStatusTool(), s.handleIndexStatus)
}
