package index

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIndex(t *testing.T) *SQLiteIndex {
	t.Helper()
	idx, err := NewSQLiteIndex(filepath.Join(t.TempDir(), "brainocr.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	require.NoError(t, idx.EnsureReady(t.Context()))
	return idx
}

func sampleDoc(id string) *Document {
	return &Document{
		ID:        id,
		Path:      "/brain-notes/books/atomic-habits/page1.jpg",
		FileName:  "page1.jpg",
		Category:  "books",
		Source:    "atomic-habits",
		Title:     "Atomic Habits",
		Content:   "tiny habits compound into remarkable results over time",
		WordCount: 8,
		PageCount: 1,
		Vector:    []float32{0.1, 0.5, 0.9},
		IndexedAt: time.Now().UTC(),
	}
}

func TestUpsertAndGet(t *testing.T) {
	idx := testIndex(t)

	doc := sampleDoc("books_atomic-habits_page1_jpg")
	require.NoError(t, idx.Upsert(t.Context(), doc))

	got, err := idx.Get(t.Context(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Content, got.Content)
	assert.Equal(t, doc.Category, got.Category)
	assert.InDeltaSlice(t, doc.Vector, got.Vector, 1e-6)
}

func TestUpsertTwiceKeepsOneRow(t *testing.T) {
	idx := testIndex(t)

	doc := sampleDoc("books_atomic-habits_page1_jpg")
	require.NoError(t, idx.Upsert(t.Context(), doc))

	doc.Content = "revised extraction after a better scan"
	doc.WordCount = 6
	require.NoError(t, idx.Upsert(t.Context(), doc))

	stats, err := idx.Stats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)

	got, err := idx.Get(t.Context(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "revised extraction after a better scan", got.Content)
	assert.Equal(t, 6, got.WordCount)

	// The replaced content must drop out of keyword search too.
	stale, err := idx.Search(t.Context(), Query{Text: "remarkable", Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, stale, "old content should no longer match")

	fresh, err := idx.Search(t.Context(), Query{Text: "revised", Limit: 5})
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, doc.ID, fresh[0].Document.ID)
}

func TestUpsertRejectsEmptyID(t *testing.T) {
	idx := testIndex(t)
	doc := sampleDoc("")
	require.Error(t, idx.Upsert(t.Context(), doc))
}

func TestTextSearch(t *testing.T) {
	idx := testIndex(t)

	habits := sampleDoc("books_atomic-habits_page1_jpg")
	require.NoError(t, idx.Upsert(t.Context(), habits))

	meetings := sampleDoc("work_standup_notes_jpg")
	meetings.Path = "/brain-notes/work/standup/notes.jpg"
	meetings.Category = "work"
	meetings.Source = "standup"
	meetings.Title = "Standup"
	meetings.Content = "deploy pipeline blocked on review"
	require.NoError(t, idx.Upsert(t.Context(), meetings))

	results, err := idx.Search(t.Context(), Query{Text: "habits", Limit: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, habits.ID, results[0].Document.ID)
}

func TestVectorSearchRanksByNearness(t *testing.T) {
	idx := testIndex(t)

	near := sampleDoc("near")
	near.Vector = []float32{1, 0, 0}
	require.NoError(t, idx.Upsert(t.Context(), near))

	far := sampleDoc("far")
	far.Path = "/brain-notes/books/atomic-habits/page2.jpg"
	far.Vector = []float32{0, 1, 0}
	require.NoError(t, idx.Upsert(t.Context(), far))

	results, err := idx.Search(t.Context(), Query{Vector: []float32{0.9, 0.1, 0}, Limit: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "near", results[0].Document.ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearchFiltersByCategory(t *testing.T) {
	idx := testIndex(t)

	books := sampleDoc("books_doc")
	require.NoError(t, idx.Upsert(t.Context(), books))

	work := sampleDoc("work_doc")
	work.Category = "work"
	work.Source = "standup"
	require.NoError(t, idx.Upsert(t.Context(), work))

	results, err := idx.Search(t.Context(), Query{
		Vector:   []float32{0.1, 0.5, 0.9},
		Category: "work",
		Limit:    10,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "work_doc", results[0].Document.ID)
}

func TestStatsCountsCategories(t *testing.T) {
	idx := testIndex(t)

	for i, id := range []string{"a", "b", "c"} {
		doc := sampleDoc(id)
		doc.Path = doc.Path + string(rune('a'+i))
		if id == "c" {
			doc.Category = "papers"
		}
		require.NoError(t, idx.Upsert(t.Context(), doc))
	}

	stats, err := idx.Stats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Documents)
	assert.Equal(t, 2, stats.Categories["books"])
	assert.Equal(t, 1, stats.Categories["papers"])
	assert.Equal(t, 24, stats.TotalWords)
}

func TestClearEmptiesIndex(t *testing.T) {
	idx := testIndex(t)

	first := sampleDoc("books_atomic-habits_page1_jpg")
	require.NoError(t, idx.Upsert(t.Context(), first))

	second := sampleDoc("work_standup_notes_jpg")
	second.Path = "/brain-notes/work/standup/notes.jpg"
	second.Category = "work"
	require.NoError(t, idx.Upsert(t.Context(), second))

	require.NoError(t, idx.Clear(t.Context()))

	stats, err := idx.Stats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Documents)
	assert.Equal(t, 0, stats.TotalWords)

	results, err := idx.Search(t.Context(), Query{Text: "habits", Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, results)

	// The index stays usable after a wipe.
	require.NoError(t, idx.Upsert(t.Context(), first))
	got, err := idx.Get(t.Context(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Content, got.Content)
}

func TestEnsureReadyIsIdempotent(t *testing.T) {
	idx := testIndex(t)
	require.NoError(t, idx.EnsureReady(t.Context()))
	require.NoError(t, idx.EnsureReady(t.Context()))
}
