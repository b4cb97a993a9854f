package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"brainocr/pkg/types"
)

// ErrNotFound is returned when a requested document doesn't exist.
var ErrNotFound = errors.New("not found")

// SQLiteIndex implements Index against a local SQLite database.
type SQLiteIndex struct {
	db   *sql.DB
	path string
}

// openDatabase opens a SQLite database with the settings the index
// relies on.
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// WAL for concurrent readers while the pipeline writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteIndex opens (creating if needed) the database at path.
func NewSQLiteIndex(path string) (*SQLiteIndex, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
	}

	db, err := openDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &SQLiteIndex{db: db, path: path}, nil
}

// EnsureReady applies pending schema migrations.
func (s *SQLiteIndex) EnsureReady(ctx context.Context) error {
	if err := ApplyMigrations(ctx, s.db); err != nil {
		return types.Permanent(fmt.Errorf("migrate index schema: %w", err))
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

// Upsert writes a document and its embedding, replacing any previous
// version with the same doc ID. Local storage failures are permanent:
// retrying an INSERT against a broken schema or full disk will not
// heal it.
func (s *SQLiteIndex) Upsert(ctx context.Context, doc *Document) error {
	if doc.ID == "" {
		return types.Permanentf("document ID must not be empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Permanent(fmt.Errorf("begin upsert: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	indexedAt := doc.IndexedAt
	if indexedAt.IsZero() {
		indexedAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (doc_id, path, file_name, category, source, title, content, word_count, page_count, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET
			path = excluded.path,
			file_name = excluded.file_name,
			category = excluded.category,
			source = excluded.source,
			title = excluded.title,
			content = excluded.content,
			word_count = excluded.word_count,
			page_count = excluded.page_count,
			indexed_at = excluded.indexed_at,
			updated_at = CURRENT_TIMESTAMP`,
		doc.ID, doc.Path, doc.FileName, doc.Category, doc.Source, doc.Title,
		doc.Content, doc.WordCount, doc.PageCount, indexedAt)
	if err != nil {
		return types.Permanent(fmt.Errorf("upsert document %s: %w", doc.ID, err))
	}

	var rowID int64
	if err := tx.QueryRowContext(ctx, "SELECT id FROM documents WHERE doc_id = ?", doc.ID).Scan(&rowID); err != nil {
		return types.Permanent(fmt.Errorf("resolve document %s: %w", doc.ID, err))
	}

	if len(doc.Vector) > 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO embeddings (document_id, vector, dimension)
			VALUES (?, ?, ?)
			ON CONFLICT(document_id) DO UPDATE SET
				vector = excluded.vector,
				dimension = excluded.dimension`,
			rowID, serializeVector(doc.Vector), len(doc.Vector))
		if err != nil {
			return types.Permanent(fmt.Errorf("upsert embedding for %s: %w", doc.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return types.Permanent(fmt.Errorf("commit upsert for %s: %w", doc.ID, err))
	}
	return nil
}

// Search ranks documents against the query. Vector hits come first,
// then keyword hits not already seen.
func (s *SQLiteIndex) Search(ctx context.Context, q Query) ([]Result, error) {
	if q.Limit <= 0 {
		q.Limit = 10
	}

	var ordered []vectorHit
	seen := make(map[int64]bool)

	if len(q.Vector) > 0 {
		hits, err := searchVector(ctx, s.db, q.Vector, q)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			if !seen[h.rowID] {
				seen[h.rowID] = true
				ordered = append(ordered, h)
			}
		}
	}

	if strings.TrimSpace(q.Text) != "" && len(ordered) < q.Limit {
		hits, err := searchText(ctx, s.db, q.Text, q)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			if len(ordered) >= q.Limit {
				break
			}
			if !seen[h.rowID] {
				seen[h.rowID] = true
				ordered = append(ordered, h)
			}
		}
	}

	results := make([]Result, 0, len(ordered))
	for _, h := range ordered {
		doc, err := s.getByRowID(ctx, h.rowID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		results = append(results, Result{Document: *doc, Score: h.score})
	}
	return results, nil
}

// getByRowID loads one document by its internal rowid.
func (s *SQLiteIndex) getByRowID(ctx context.Context, rowID int64) (*Document, error) {
	var doc Document
	var blob []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT d.doc_id, d.path, d.file_name, d.category, d.source, d.title,
		       d.content, d.word_count, d.page_count, d.indexed_at, e.vector
		FROM documents d
		LEFT JOIN embeddings e ON d.id = e.document_id
		WHERE d.id = ?`, rowID).
		Scan(&doc.ID, &doc.Path, &doc.FileName, &doc.Category, &doc.Source,
			&doc.Title, &doc.Content, &doc.WordCount, &doc.PageCount,
			&doc.IndexedAt, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load document %d: %w", rowID, err)
	}
	if len(blob) > 0 {
		doc.Vector = deserializeVector(blob)
	}
	return &doc, nil
}

// Get loads one document by its doc ID.
func (s *SQLiteIndex) Get(ctx context.Context, docID string) (*Document, error) {
	var rowID int64
	err := s.db.QueryRowContext(ctx, "SELECT id FROM documents WHERE doc_id = ?", docID).Scan(&rowID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve document %s: %w", docID, err)
	}
	return s.getByRowID(ctx, rowID)
}

// Clear deletes every document. The delete trigger empties the FTS
// table and the foreign key cascade removes embeddings.
func (s *SQLiteIndex) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return types.Permanent(fmt.Errorf("clear index: %w", err))
	}
	return nil
}

// Stats reports document counts overall and per category.
func (s *SQLiteIndex) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Categories: make(map[string]int),
		Backend:    BackendSQLite + "/" + BuildMode,
	}

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(word_count), 0) FROM documents").
		Scan(&stats.Documents, &stats.TotalWords)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT category, COUNT(*) FROM documents GROUP BY category")
	if err != nil {
		return nil, fmt.Errorf("count categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		stats.Categories[category] = n
	}
	return stats, rows.Err()
}
