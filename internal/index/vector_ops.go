package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// vectorHit pairs a document rowid with its similarity score.
type vectorHit struct {
	rowID int64
	score float64
}

// searchVector ranks documents by cosine similarity to the query
// vector. With sqlite-vec the distance is computed in SQL; otherwise
// candidates are scanned and scored in Go.
func searchVector(ctx context.Context, db *sql.DB, queryVector []float32, q Query) ([]vectorHit, error) {
	if VectorExtensionAvailable {
		return searchVectorOptimized(ctx, db, queryVector, q)
	}
	return searchVectorFallback(ctx, db, queryVector, q)
}

// searchVectorOptimized uses the sqlite-vec extension for SQL-based
// similarity search. vec_distance_cosine returns distance (lower is
// better); we convert to similarity to keep one ranking convention.
func searchVectorOptimized(ctx context.Context, db *sql.DB, queryVector []float32, q Query) ([]vectorHit, error) {
	if q.Limit <= 0 {
		return []vectorHit{}, nil
	}
	blob := serializeVector(queryVector)

	query := `
		SELECT
			d.id,
			1.0 - vec_distance_cosine(e.vector, ?) as similarity
		FROM documents d
		INNER JOIN embeddings e ON d.id = e.document_id
		WHERE 1=1
	`
	args := []interface{}{blob}
	query, args = applyDocFilters(query, args, q)

	query += " ORDER BY similarity DESC LIMIT ?"
	args = append(args, q.Limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits := make([]vectorHit, 0, q.Limit)
	for rows.Next() {
		var h vectorHit
		if err := rows.Scan(&h.rowID, &h.score); err != nil {
			return nil, fmt.Errorf("scan vector hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// searchVectorFallback scores candidates in Go for purego builds.
func searchVectorFallback(ctx context.Context, db *sql.DB, queryVector []float32, q Query) ([]vectorHit, error) {
	if q.Limit <= 0 {
		return []vectorHit{}, nil
	}

	query := `
		SELECT d.id, e.vector
		FROM documents d
		INNER JOIN embeddings e ON d.id = e.document_id
		WHERE 1=1
	`
	var args []interface{}
	query, args = applyDocFilters(query, args, q)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []vectorHit
	for rows.Next() {
		var rowID int64
		var blob []byte
		if err := rows.Scan(&rowID, &blob); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		hits = append(hits, vectorHit{
			rowID: rowID,
			score: cosineSimilarity(queryVector, deserializeVector(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	return hits, nil
}

// searchText runs BM25 full-text search over title and content.
func searchText(ctx context.Context, db *sql.DB, text string, q Query) ([]vectorHit, error) {
	sanitized := sanitizeFTSQuery(text)
	if sanitized == "" {
		return nil, fmt.Errorf("empty search query")
	}
	if q.Limit <= 0 {
		return []vectorHit{}, nil
	}

	query := `
		SELECT
			d.id,
			-bm25(documents_fts) as score
		FROM documents_fts
		INNER JOIN documents d ON documents_fts.rowid = d.id
		WHERE documents_fts MATCH ?
	`
	args := []interface{}{sanitized}
	query, args = applyDocFilters(query, args, q)

	query += " ORDER BY score DESC LIMIT ?"
	args = append(args, q.Limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []vectorHit
	for rows.Next() {
		var h vectorHit
		if err := rows.Scan(&h.rowID, &h.score); err != nil {
			return nil, fmt.Errorf("scan text hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// applyDocFilters appends category/source constraints to a query that
// already carries a WHERE clause.
func applyDocFilters(query string, args []interface{}, q Query) (string, []interface{}) {
	if q.Category != "" {
		query += " AND d.category = ?"
		args = append(args, q.Category)
	}
	if q.Source != "" {
		query += " AND d.source = ?"
		args = append(args, q.Source)
	}
	return query, args
}

// serializeVector converts a float32 slice to a little-endian blob,
// the layout sqlite-vec expects.
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice.
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// FTS5 operator pattern for escaping Boolean operators.
var ftsOperatorPattern = regexp.MustCompile(`\b(AND|OR|NOT|NEAR)\b`)

// sanitizeFTSQuery escapes FTS5 operators and special characters so
// user queries cannot inject match syntax.
func sanitizeFTSQuery(query string) string {
	if query == "" {
		return ""
	}

	replacer := strings.NewReplacer(
		`"`, `\"`,
		`*`, `\*`,
		`(`, `\(`,
		`)`, `\)`,
	)
	escaped := replacer.Replace(query)

	escaped = ftsOperatorPattern.ReplaceAllStringFunc(escaped, func(match string) string {
		return `\` + match
	})

	return escaped
}

// SerializeVector is an exported helper for testing.
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing.
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing.
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
