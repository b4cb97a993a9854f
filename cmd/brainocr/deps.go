package main

import (
	"brainocr/internal/config"
	"brainocr/internal/embedder"
	"brainocr/internal/index"
)

// openEmbedder builds the configured embedding provider.
func openEmbedder(cfg *config.Config) (embedder.Embedder, error) {
	return embedder.New(embedder.Config{
		Provider:   cfg.EmbeddingProvider,
		APIKey:     cfg.EmbeddingAPIKey,
		Endpoint:   cfg.EmbeddingEndpoint,
		Deployment: cfg.EmbeddingDeployment,
		Timeout:    cfg.HTTPTimeout,
	})
}

// openIndex builds the configured index backend. dimension sizes the
// vector field for backends that need a schema.
func openIndex(cfg *config.Config, dimension int) (index.Index, error) {
	return index.New(index.Config{
		Backend:   cfg.IndexBackend,
		Path:      cfg.IndexPath,
		Endpoint:  cfg.SearchEndpoint,
		APIKey:    cfg.SearchKey,
		IndexName: cfg.SearchIndexName,
		Dimension: dimension,
		Timeout:   cfg.HTTPTimeout,
	})
}
