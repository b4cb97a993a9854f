package embedder

import (
	"fmt"
	"strings"
	"time"
)

// Config holds embedder construction parameters.
type Config struct {
	Provider   string // openai | azure | local
	APIKey     string
	Endpoint   string // azure only
	Deployment string // azure deployment / openai model name
	Timeout    time.Duration
	CacheSize  int
}

// New creates an embedder from explicit configuration.
func New(cfg Config) (Embedder, error) {
	cache := NewCache(cfg.CacheSize)

	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		return NewOpenAIProvider("", cfg.APIKey, cfg.Deployment, cfg.Timeout, cache)
	case ProviderAzure:
		return NewAzureProvider(cfg.Endpoint, cfg.APIKey, cfg.Deployment, cfg.Timeout, cache)
	case ProviderLocal:
		return NewLocalProvider(cache), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
