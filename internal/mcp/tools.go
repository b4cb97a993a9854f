package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"brainocr/internal/index"
)

// MCP error codes.
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeEmptyQuery    = -32001 // Query parameter is empty
)

// MCPError represents an MCP protocol error.
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// newMCPError creates a properly formatted MCP error.
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{Code: code, Message: message, Data: data}
}

// handleSearchNotes handles the search_notes tool invocation.
func (s *Server) handleSearchNotes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	searchMode := getStringDefault(args, "search_mode", "hybrid")
	if searchMode != "hybrid" && searchMode != "vector" && searchMode != "keyword" {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid search_mode", map[string]interface{}{
			"param":   "search_mode",
			"value":   searchMode,
			"allowed": []string{"hybrid", "vector", "keyword"},
		})
	}

	q := index.Query{
		Limit:    limit,
		Category: getStringDefault(args, "category", ""),
		Source:   getStringDefault(args, "source", ""),
	}
	if searchMode != "vector" {
		q.Text = query
	}
	if searchMode != "keyword" && s.embedder != nil {
		emb, err := s.embedder.GenerateEmbedding(ctx, query)
		if err != nil {
			if searchMode == "vector" {
				return nil, newMCPError(ErrorCodeInternalError, "failed to embed query", map[string]interface{}{
					"error": err.Error(),
				})
			}
			// Hybrid degrades to keyword when embedding is unavailable.
			q.Text = query
		} else {
			q.Vector = emb.Vector
		}
	}

	results, err := s.index.Search(ctx, q)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	hits := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		hits = append(hits, map[string]interface{}{
			"id":         r.Document.ID,
			"path":       r.Document.Path,
			"category":   r.Document.Category,
			"source":     r.Document.Source,
			"title":      r.Document.Title,
			"word_count": r.Document.WordCount,
			"page_count": r.Document.PageCount,
			"score":      r.Score,
			"snippet":    snippet(r.Document.Content, 240),
		})
	}

	response := map[string]interface{}{
		"query":        query,
		"search_mode":  searchMode,
		"result_count": len(hits),
		"results":      hits,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIndexStatus handles the index_status tool invocation.
func (s *Server) handleIndexStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.index.Stats(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get index stats", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"backend":     stats.Backend,
		"documents":   stats.Documents,
		"total_words": stats.TotalWords,
		"categories":  stats.Categories,
	}
	if s.tracker != nil {
		response["processed_files"] = s.tracker.Count()
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// snippet truncates content to at most n bytes on a word boundary.
func snippet(content string, n int) string {
	if len(content) <= n {
		return content
	}
	cut := content[:n]
	for i := len(cut) - 1; i > 0; i-- {
		if cut[i] == ' ' {
			return cut[:i] + "…"
		}
	}
	return cut + "…"
}

// formatJSON formats a map as indented JSON.
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value.
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	// JSON numbers decode as float64.
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value.
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}
