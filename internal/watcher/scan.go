package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"brainocr/internal/classify"
	"brainocr/internal/state"
	"brainocr/pkg/types"
)

// ProcessedIndex is the read-only view of the state tracker the
// watcher needs: "is this fingerprint known?". The watcher never
// writes state.
type ProcessedIndex interface {
	IsProcessed(fingerprint string) bool
}

// fileSig captures the attributes that must hold still between two
// consecutive observations before a file counts as stable.
type fileSig struct {
	size    int64
	modTime time.Time
}

// Scanner performs recursive directory scans and owns the bookkeeping
// both watch modes share: previous sightings for the stability check
// and the explicit in-flight set. It is safe for concurrent use.
type Scanner struct {
	root      string
	exts      map[string]bool
	processed ProcessedIndex

	mu        sync.Mutex
	sightings map[string]fileSig
	inflight  map[string]bool
}

// NewScanner creates a scanner over root accepting the given
// extensions (normalized to lowercase, leading dot).
func NewScanner(root string, extensions []string, processed ProcessedIndex) *Scanner {
	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = true
	}
	return &Scanner{
		root:      root,
		exts:      exts,
		processed: processed,
		sightings: make(map[string]fileSig),
		inflight:  make(map[string]bool),
	}
}

// Scan walks the watch root and returns a task for every qualifying
// file observed with an unchanged size and modification time since the
// previous scan. Paths are returned in lexical order so repeated runs
// over the same unprocessed set behave reproducibly. Emitted paths
// enter the in-flight set and stay there until Release is called.
func (s *Scanner) Scan() ([]types.FileTask, error) {
	type observation struct {
		path string
		sig  fileSig
	}
	var observed []observation

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A directory vanishing mid-scan is routine churn, not a
			// reason to abort discovery.
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != s.root {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.accepts(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		observed = append(observed, observation{
			path: path,
			sig:  fileSig{size: info.Size(), modTime: info.ModTime()},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(observed, func(i, j int) bool { return observed[i].path < observed[j].path })

	now := time.Now()
	var tasks []types.FileTask

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(observed))
	for _, ob := range observed {
		seen[ob.path] = true
		prev, sighted := s.sightings[ob.path]
		s.sightings[ob.path] = ob.sig

		if s.inflight[ob.path] {
			continue
		}
		if s.processed != nil && s.processed.IsProcessed(state.Fingerprint(ob.path)) {
			continue
		}
		// Stability gate: a file still being written changes size or
		// mtime between polls and waits for the next round.
		if !sighted || prev != ob.sig {
			continue
		}

		s.inflight[ob.path] = true
		tasks = append(tasks, types.FileTask{
			Path:         ob.path,
			Class:        classify.ClassifyRel(s.root, ob.path),
			DiscoveredAt: now,
		})
	}

	// Drop sightings for files that vanished so the maps don't grow
	// with deleted paths.
	for path := range s.sightings {
		if !seen[path] {
			delete(s.sightings, path)
		}
	}

	return tasks, nil
}

// Offer admits a single path discovered by the event watcher, applying
// the same extension/processed/in-flight gates as a scan. The caller
// has already established stability via the debounce window.
func (s *Scanner) Offer(path string) (types.FileTask, bool) {
	if !s.accepts(path) {
		return types.FileTask{}, false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return types.FileTask{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight[path] {
		return types.FileTask{}, false
	}
	if s.processed != nil && s.processed.IsProcessed(state.Fingerprint(path)) {
		return types.FileTask{}, false
	}

	s.sightings[path] = fileSig{size: info.Size(), modTime: info.ModTime()}
	s.inflight[path] = true
	return types.FileTask{
		Path:         path,
		Class:        classify.ClassifyRel(s.root, path),
		DiscoveredAt: time.Now(),
	}, true
}

// Release returns a path to eligibility after its task reached a
// terminal state. Successfully processed files stay excluded through
// the processed index; failed ones become discoverable again on the
// next cycle.
func (s *Scanner) Release(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, path)
}

// InFlight reports how many paths are currently held by the pipeline.
func (s *Scanner) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

func (s *Scanner) accepts(path string) bool {
	return s.exts[strings.ToLower(filepath.Ext(path))]
}
