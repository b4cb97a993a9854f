package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"brainocr/pkg/types"
)

// CurrentStoreVersion is written into every persisted store.
const CurrentStoreVersion = 1

// FileRecord is one successfully processed file.
type FileRecord struct {
	ProcessedAt time.Time `json:"processed_at"`
	WordCount   int       `json:"word_count"`
}

// store is the on-disk layout: one JSON object mapping fingerprints to
// records.
type store struct {
	Version     int                   `json:"version"`
	LastUpdated time.Time             `json:"last_updated"`
	Files       map[string]FileRecord `json:"files"`
}

// Tracker is the durable set of processed files. Lookups are pure
// in-memory reads after the initial load; MarkProcessed persists
// synchronously under a single-writer lock.
type Tracker struct {
	path string

	mu    sync.RWMutex
	files map[string]FileRecord
}

// Fingerprint derives the stable identity used as the processed-state
// key: the cleaned absolute path in slash form. Identity is
// path-only, so an in-place edit of an already processed file is not
// re-detected; removing its entry from the store forces a reprocess.
func Fingerprint(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	return filepath.ToSlash(abs)
}

// Load reads the store at path. A missing or empty file means no
// files have been processed yet; a file that exists but cannot be
// parsed is a fatal configuration error, because silently dropping
// history would reprocess the entire tree.
func Load(path string) (*Tracker, error) {
	t := &Tracker{
		path:  path,
		files: make(map[string]FileRecord),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return t, nil
	}

	var s store
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("state file %s is corrupted: %w", path, err)
	}
	if s.Files != nil {
		t.files = s.Files
	}
	return t, nil
}

// IsProcessed reports whether fingerprint completed the pipeline.
func (t *Tracker) IsProcessed(fingerprint string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.files[fingerprint]
	return ok
}

// Record returns the stored record for fingerprint, if any.
func (t *Tracker) Record(fingerprint string) (FileRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.files[fingerprint]
	return rec, ok
}

// Count returns the number of processed files.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.files)
}

// MarkProcessed records a successful pipeline run and persists before
// returning. Marking an already-known fingerprint is a no-op. If the
// write fails the in-memory entry is rolled back and the error is
// returned wrapped in types.ErrStateWrite: the caller must not report
// success, since memory claiming what disk does not hold is exactly
// the drift the tracker exists to prevent.
func (t *Tracker) MarkProcessed(fingerprint string, wordCount int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.files[fingerprint]; ok {
		return nil
	}

	t.files[fingerprint] = FileRecord{
		ProcessedAt: time.Now().UTC(),
		WordCount:   wordCount,
	}

	if err := t.persistLocked(); err != nil {
		delete(t.files, fingerprint)
		return fmt.Errorf("%w: %v", types.ErrStateWrite, err)
	}
	return nil
}

// persistLocked writes the full store to a temp file in the same
// directory, syncs it, and renames it over the store path. Callers
// must hold t.mu.
func (t *Tracker) persistLocked() error {
	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	s := store{
		Version:     CurrentStoreVersion,
		LastUpdated: time.Now().UTC(),
		Files:       t.files,
	}
	data, err := json.MarshalIndent(&s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tmpName, t.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
