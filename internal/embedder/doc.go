// Package embedder generates vector embeddings for extracted note
// text.
//
// Providers (OpenAI, Azure OpenAI, local) share the Embedder
// interface and an LRU cache keyed by content hash, so re-embedding
// identical text is free. Providers classify their failures as
// transient or permanent; retry policy lives with the pipeline
// orchestrator, not here.
package embedder
