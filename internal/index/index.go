package index

import (
	"context"
	"fmt"
	"time"
)

// Document is one indexed note page or PDF.
type Document struct {
	ID        string    // sanitized document ID, unique per path
	Path      string    // absolute source path
	FileName  string    // base name of the source file
	Category  string    // e.g. "books", "papers"
	Source    string    // e.g. "atomic-habits"
	Title     string    // human-readable source title
	Content   string    // full extracted text
	WordCount int
	PageCount int
	Vector    []float32 // content embedding, may be nil
	IndexedAt time.Time
}

// Query is a search request. Text drives keyword search, Vector drives
// semantic search; when both are set results are merged with vector
// matches ranked first.
type Query struct {
	Text     string
	Vector   []float32
	Category string // optional filter
	Source   string // optional filter
	Limit    int
}

// Result is one search hit.
type Result struct {
	Document Document
	Score    float64
}

// Stats summarizes index contents.
type Stats struct {
	Documents  int
	TotalWords int
	Categories map[string]int
	Backend    string
}

// Index is the write/search surface the pipeline and the MCP server
// share.
type Index interface {
	// EnsureReady creates or migrates the backing store. Safe to call
	// repeatedly.
	EnsureReady(ctx context.Context) error

	// Upsert writes a document, replacing any previous version with
	// the same ID.
	Upsert(ctx context.Context, doc *Document) error

	// Search runs a query and returns ranked hits.
	Search(ctx context.Context, q Query) ([]Result, error)

	// Stats reports index contents.
	Stats(ctx context.Context) (*Stats, error)

	// Clear removes every document so the tree can be re-indexed from
	// scratch.
	Clear(ctx context.Context) error

	// Close releases the backing store.
	Close() error
}

// Config selects and parameterizes a backend.
type Config struct {
	Backend string // sqlite | azure

	// SQLite
	Path string

	// Azure AI Search
	Endpoint  string
	APIKey    string
	IndexName string
	Dimension int // embedding dimension for the azure schema
	Timeout   time.Duration
}

// Backend names.
const (
	BackendSQLite      = "sqlite"
	BackendAzureSearch = "azure"
)

// New creates the configured backend.
func New(cfg Config) (Index, error) {
	switch cfg.Backend {
	case BackendSQLite:
		return NewSQLiteIndex(cfg.Path)
	case BackendAzureSearch:
		return NewAzureSearchIndex(cfg.Endpoint, cfg.APIKey, cfg.IndexName, cfg.Dimension, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Backend)
	}
}
