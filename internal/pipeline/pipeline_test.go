package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brainocr/internal/embedder"
	"brainocr/internal/index"
	"brainocr/internal/ocr"
	"brainocr/internal/state"
	"brainocr/pkg/types"
)

// fakeExtractor returns queued outcomes in order, repeating the last.
type fakeExtractor struct {
	mu       sync.Mutex
	calls    int
	outcomes []func() (*ocr.Extraction, error)
}

func (f *fakeExtractor) Extract(_ context.Context, _ string) (*ocr.Extraction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.outcomes) {
		i = len(f.outcomes) - 1
	}
	f.calls++
	return f.outcomes[i]()
}

func extractionOf(text string) func() (*ocr.Extraction, error) {
	return func() (*ocr.Extraction, error) {
		return &ocr.Extraction{
			Text:      text,
			WordCount: len(strings.Fields(text)),
			CharCount: len(text),
			PageCount: 1,
		}, nil
	}
}

func extractionErr(err error) func() (*ocr.Extraction, error) {
	return func() (*ocr.Extraction, error) { return nil, err }
}

// fakeEmbedder wraps the deterministic local provider, optionally
// failing first.
type fakeEmbedder struct {
	*embedder.LocalProvider
	mu       sync.Mutex
	failures []error
}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, text string) (*embedder.Embedding, error) {
	f.mu.Lock()
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		f.mu.Unlock()
		return nil, err
	}
	f.mu.Unlock()
	return f.LocalProvider.GenerateEmbedding(ctx, text)
}

// fakeIndex records upserts in memory.
type fakeIndex struct {
	mu      sync.Mutex
	docs    map[string]*index.Document
	failErr error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{docs: make(map[string]*index.Document)}
}

func (f *fakeIndex) EnsureReady(context.Context) error { return nil }
func (f *fakeIndex) Close() error { return nil }

func (f *fakeIndex) Upsert(_ context.Context, doc *index.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeIndex) Search(context.Context, index.Query) ([]index.Result, error) {
	return nil, nil
}

func (f *fakeIndex) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = make(map[string]*index.Document)
	return nil
}

func (f *fakeIndex) Stats(context.Context) (*index.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &index.Stats{Documents: len(f.docs)}, nil
}

// recordingNotifier captures events for assertions.
type recordingNotifier struct {
	mu        sync.Mutex
	processed []string
	failed    []string
	batches   [][2]int
}

func (r *recordingNotifier) FileProcessed(_ context.Context, res *types.PipelineResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processed = append(r.processed, res.Task.Path)
}

func (r *recordingNotifier) FileFailed(_ context.Context, res *types.PipelineResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, res.Task.Path)
}

func (r *recordingNotifier) BatchComplete(_ context.Context, processed, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, [2]int{processed, failed})
}

type fixture struct {
	extractor *fakeExtractor
	index     *fakeIndex
	tracker   *state.Tracker
	notifier  *recordingNotifier
	orch      *Orchestrator
	sleeps    []time.Duration
}

func newFixture(t *testing.T, outcomes ...func() (*ocr.Extraction, error)) *fixture {
	t.Helper()
	if len(outcomes) == 0 {
		outcomes = []func() (*ocr.Extraction, error){
			extractionOf("tiny habits compound into remarkable results"),
		}
	}

	tracker, err := state.Load(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	f := &fixture{
		extractor: &fakeExtractor{outcomes: outcomes},
		index:     newFakeIndex(),
		tracker:   tracker,
		notifier:  &recordingNotifier{},
	}
	f.orch = New(f.extractor,
		&fakeEmbedder{LocalProvider: embedder.NewLocalProvider(nil)},
		f.index, tracker, f.notifier,
		Config{MaxAttempts: 3, BackoffBase: time.Millisecond})

	// Count backoffs instead of sleeping.
	f.orch.sleep = func(_ context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		return nil
	}
	return f
}

func taskFor(path string) types.FileTask {
	return types.FileTask{
		Path: path,
		Class: types.Classification{
			Category: "books",
			Source:   "atomic-habits",
			Title:    "Atomic Habits",
		},
		DiscoveredAt: time.Now(),
	}
}

func TestProcessSucceedsEndToEnd(t *testing.T) {
	f := newFixture(t)
	task := taskFor("/brain-notes/books/atomic-habits/page1.jpg")

	result := f.orch.Process(t.Context(), task)
	require.NoError(t, result.Err)
	assert.Equal(t, types.StageDone, result.Stage)
	assert.Equal(t, 6, result.WordCount)

	// Indexed with classification metadata.
	stats, _ := f.index.Stats(t.Context())
	assert.Equal(t, 1, stats.Documents)
	doc := f.index.docs["brain-notes_books_atomic-habits_page1_jpg"]
	require.NotNil(t, doc)
	assert.Equal(t, "books", doc.Category)
	assert.Equal(t, "Atomic Habits", doc.Title)
	assert.NotEmpty(t, doc.Vector)

	// Marked processed only after everything succeeded.
	assert.True(t, f.tracker.IsProcessed(state.Fingerprint(task.Path)))
	assert.Equal(t, []string{task.Path}, f.notifier.processed)
}

func TestProcessSkipsAlreadyProcessed(t *testing.T) {
	f := newFixture(t)
	task := taskFor("/brain-notes/books/atomic-habits/page1.jpg")
	require.NoError(t, f.tracker.MarkProcessed(state.Fingerprint(task.Path), 45))

	result := f.orch.Process(t.Context(), task)
	require.NoError(t, result.Err)
	assert.Equal(t, 45, result.WordCount)
	assert.Equal(t, 0, f.extractor.calls, "no OCR for an already processed file")
}

func TestProcessRetriesTransientThenSucceeds(t *testing.T) {
	f := newFixture(t,
		extractionErr(types.Transientf("rate limited")),
		extractionErr(types.Transientf("rate limited")),
		extractionOf("recovered text"),
	)
	task := taskFor("/brain-notes/books/atomic-habits/page2.jpg")

	result := f.orch.Process(t.Context(), task)
	require.NoError(t, result.Err)
	assert.Equal(t, 3, f.extractor.calls)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, f.sleeps)
}

func TestProcessGivesUpAfterMaxAttempts(t *testing.T) {
	f := newFixture(t, extractionErr(types.Transientf("still down")))
	task := taskFor("/brain-notes/books/atomic-habits/page3.jpg")

	result := f.orch.Process(t.Context(), task)
	require.Error(t, result.Err)
	assert.Equal(t, types.StageExtracting, result.Stage)
	assert.Equal(t, 3, f.extractor.calls)
	assert.False(t, f.tracker.IsProcessed(state.Fingerprint(task.Path)))
	assert.Equal(t, []string{task.Path}, f.notifier.failed)
}

func TestProcessDoesNotRetryPermanent(t *testing.T) {
	f := newFixture(t, extractionErr(types.Permanentf("unsupported format")))
	task := taskFor("/brain-notes/books/atomic-habits/broken.bmp")

	result := f.orch.Process(t.Context(), task)
	require.Error(t, result.Err)
	assert.Equal(t, 1, f.extractor.calls, "permanent errors fail immediately")
	assert.Empty(t, f.sleeps)
	assert.False(t, f.tracker.IsProcessed(state.Fingerprint(task.Path)))
}

func TestProcessZeroWordsMarksProcessed(t *testing.T) {
	f := newFixture(t, extractionOf(""))
	task := taskFor("/brain-notes/books/atomic-habits/blank.jpg")

	result := f.orch.Process(t.Context(), task)
	require.NoError(t, result.Err)
	assert.Equal(t, types.StageDone, result.Stage)
	assert.Equal(t, 0, result.WordCount)

	rec, ok := f.tracker.Record(state.Fingerprint(task.Path))
	require.True(t, ok, "blank page counts as processed")
	assert.Equal(t, 0, rec.WordCount)

	stats, _ := f.index.Stats(t.Context())
	assert.Equal(t, 0, stats.Documents, "nothing to embed or index")
}

func TestProcessIndexFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	f.index.failErr = types.Permanentf("schema mismatch")
	task := taskFor("/brain-notes/books/atomic-habits/page4.jpg")

	result := f.orch.Process(t.Context(), task)
	require.Error(t, result.Err)
	assert.Equal(t, types.StageIndexing, result.Stage)
	assert.False(t, f.tracker.IsProcessed(state.Fingerprint(task.Path)))
}

func TestProcessEmbedFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	f.orch.embedder = &fakeEmbedder{
		LocalProvider: embedder.NewLocalProvider(nil),
		failures: []error{
			types.Permanentf("context length exceeded"),
		},
	}
	task := taskFor("/brain-notes/books/atomic-habits/page6.jpg")

	result := f.orch.Process(t.Context(), task)
	require.Error(t, result.Err)
	assert.Equal(t, types.StageEmbedding, result.Stage)
	assert.False(t, f.tracker.IsProcessed(state.Fingerprint(task.Path)))

	stats, _ := f.index.Stats(t.Context())
	assert.Equal(t, 0, stats.Documents)
}

func TestFortyFiveWordPageEndToEnd(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("word ", 45))
	f := newFixture(t, extractionOf(text))
	task := taskFor("/brain-notes/books/test-book/page1.jpg")

	result := f.orch.Process(t.Context(), task)
	require.NoError(t, result.Err)
	assert.Equal(t, 45, result.WordCount)

	rec, ok := f.tracker.Record(state.Fingerprint(task.Path))
	require.True(t, ok)
	assert.Equal(t, 45, rec.WordCount)

	doc := f.index.docs["brain-notes_books_test-book_page1_jpg"]
	require.NotNil(t, doc)
	assert.NotEmpty(t, doc.Vector)
	assert.Len(t, f.notifier.processed, 1)

	// A second run over the same file does no work and re-notifies
	// nothing.
	again := f.orch.Process(t.Context(), task)
	require.NoError(t, again.Err)
	assert.Equal(t, 1, f.extractor.calls)
	assert.Len(t, f.notifier.processed, 1)
}

func TestProcessStateWriteFailureFailsTheTask(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.json")
	tracker, err := state.Load(statePath)
	require.NoError(t, err)
	// Renaming the temp file over a directory fails, so every persist
	// fails from here on.
	require.NoError(t, os.Mkdir(statePath, 0o755))

	f := newFixture(t)
	f.orch.tracker = tracker
	task := taskFor("/brain-notes/books/atomic-habits/page5.jpg")

	result := f.orch.Process(t.Context(), task)
	require.Error(t, result.Err)
	assert.Equal(t, types.StageStateWrite, result.Stage)
	assert.ErrorIs(t, result.Err, types.ErrStateWrite)
	assert.False(t, tracker.IsProcessed(state.Fingerprint(task.Path)),
		"rolled back, eligible for reprocessing")

	// Reprocessing after the crash upserts by document ID, so the index
	// still holds exactly one copy.
	f.orch.tracker = f.tracker
	again := f.orch.Process(t.Context(), task)
	require.NoError(t, again.Err)
	stats, _ := f.index.Stats(t.Context())
	assert.Equal(t, 1, stats.Documents)
}

func TestRunConsumesChannelAndReleases(t *testing.T) {
	f := newFixture(t)
	f.orch.cfg.Workers = 2

	tasks := make(chan types.FileTask, 3)
	paths := []string{
		"/brain-notes/books/atomic-habits/a.jpg",
		"/brain-notes/books/atomic-habits/b.jpg",
		"/brain-notes/books/atomic-habits/c.jpg",
	}
	for _, p := range paths {
		tasks <- taskFor(p)
	}
	close(tasks)

	var mu sync.Mutex
	var released []string
	err := f.orch.Run(t.Context(), tasks, func(path string) {
		mu.Lock()
		released = append(released, path)
		mu.Unlock()
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, paths, released)

	stats, _ := f.index.Stats(t.Context())
	assert.Equal(t, 3, stats.Documents)
}

func TestProcessBatchNotifiesCompletion(t *testing.T) {
	f := newFixture(t,
		extractionOf("some text"),
		extractionErr(types.Permanentf("corrupt")),
	)
	tasks := []types.FileTask{
		taskFor("/brain-notes/books/atomic-habits/ok.jpg"),
		taskFor("/brain-notes/books/atomic-habits/bad.jpg"),
	}

	processed, failed := f.orch.ProcessBatch(t.Context(), tasks, nil)
	assert.Equal(t, 1, processed)
	assert.Equal(t, 1, failed)
	require.Len(t, f.notifier.batches, 1)
	assert.Equal(t, [2]int{1, 1}, f.notifier.batches[0])
}

func TestProcessBatchEmptyIsSilent(t *testing.T) {
	f := newFixture(t)
	processed, failed := f.orch.ProcessBatch(t.Context(), nil, nil)
	assert.Zero(t, processed)
	assert.Zero(t, failed)
	assert.Empty(t, f.notifier.batches)
}

func TestExponentialBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	assert.Equal(t, 100*time.Millisecond, ExponentialBackoff(1, base))
	assert.Equal(t, 200*time.Millisecond, ExponentialBackoff(2, base))
	assert.Equal(t, 400*time.Millisecond, ExponentialBackoff(3, base))
	assert.Equal(t, 5*time.Second, ExponentialBackoff(10, base), "capped")
	assert.Equal(t, base, ExponentialBackoff(0, base), "attempt floor")
}
