// Package index stores OCR'd documents and their embeddings for
// retrieval.
//
// Two backends implement the Index interface: a local SQLite database
// (the default) and Azure AI Search. The SQLite backend keeps one row
// per document, upserted by document ID so reprocessing a file never
// duplicates it, with FTS5 for keyword search and vector similarity
// for semantic search. The vector path has two builds: with the
// sqlite_vec tag similarity is computed inside SQLite, without it a
// pure Go fallback scans candidates and ranks them in process.
package index
