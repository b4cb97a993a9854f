package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"brainocr/pkg/types"
)

// DefaultQueueSize bounds the task channel between discovery and the
// pipeline.
const DefaultQueueSize = 256

// Config holds watcher settings. PollInterval applies to polling
// mode, Debounce to both modes (it also spaces the two passes of the
// initial scan).
type Config struct {
	Root         string
	Extensions   []string
	UsePolling   bool
	PollInterval time.Duration
	Debounce     time.Duration
	QueueSize    int
}

// Watcher turns filesystem activity under the root into FileTasks.
type Watcher struct {
	cfg     Config
	scanner *Scanner
	tasks   chan types.FileTask

	// done is closed when Run returns, releasing any debounce timers
	// blocked on the task channel.
	done     chan struct{}
	doneOnce sync.Once

	timersMu sync.Mutex
	timers   map[string]*time.Timer
}

// New creates a watcher. processed is the read-only view of the state
// tracker used to skip already-processed files.
func New(cfg Config, processed ProcessedIndex) *Watcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 180 * time.Second
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 2 * time.Second
	}
	return &Watcher{
		cfg:     cfg,
		scanner: NewScanner(cfg.Root, cfg.Extensions, processed),
		tasks:   make(chan types.FileTask, cfg.QueueSize),
		done:    make(chan struct{}),
		timers:  make(map[string]*time.Timer),
	}
}

// Tasks is the stream of discovered work consumed by the orchestrator.
func (w *Watcher) Tasks() <-chan types.FileTask { return w.tasks }

// Release returns a path to eligibility after its task reached a
// terminal state.
func (w *Watcher) Release(path string) { w.scanner.Release(path) }

// InitialScan performs the startup sweep that catches files added
// while the process was down: one observation pass, a settle wait of
// one debounce window, then the emitting pass. Files still changing
// between the passes are left for steady-state discovery.
func (w *Watcher) InitialScan(ctx context.Context) ([]types.FileTask, error) {
	if _, err := w.scanner.Scan(); err != nil {
		return nil, fmt.Errorf("initial scan: %w", err)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(w.cfg.Debounce):
	}
	tasks, err := w.scanner.Scan()
	if err != nil {
		return nil, fmt.Errorf("initial scan: %w", err)
	}
	return tasks, nil
}

// Run watches until ctx is cancelled, in the configured mode.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.close()
	if w.cfg.UsePolling {
		return w.runPolling(ctx)
	}
	return w.runEvents(ctx)
}

func (w *Watcher) close() {
	w.doneOnce.Do(func() {
		close(w.done)
		w.timersMu.Lock()
		for path, t := range w.timers {
			t.Stop()
			delete(w.timers, path)
		}
		w.timersMu.Unlock()
	})
}

// runPolling rescans the tree on a fixed interval. Each file needs two
// consecutive identical observations before it is emitted, so a file
// mid-copy is never picked up.
func (w *Watcher) runPolling(ctx context.Context) error {
	log.Printf("watcher: polling mode, interval %s", w.cfg.PollInterval)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			tasks, err := w.scanner.Scan()
			if err != nil {
				log.Printf("watcher: scan failed: %v", err)
				continue
			}
			for _, task := range tasks {
				select {
				case w.tasks <- task:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

// runEvents subscribes to filesystem notifications for the whole tree
// and debounces per path: a task is emitted only after the path has
// been quiet for the debounce window, which coalesces the multi-step
// writes editors and sync clients produce.
func (w *Watcher) runEvents(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fs watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := w.watchTree(fw, w.cfg.Root); err != nil {
		return fmt.Errorf("watch %s: %w", w.cfg.Root, err)
	}
	log.Printf("watcher: event mode, debounce %s", w.cfg.Debounce)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fw, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Printf("watcher: fsnotify error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(fw *fsnotify.Watcher, ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}

	// New directories must be added to the watch set; fsnotify is not
	// recursive.
	if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
		if ev.Op&fsnotify.Create != 0 {
			if err := w.watchTree(fw, ev.Name); err != nil {
				log.Printf("watcher: failed to watch new directory %s: %v", ev.Name, err)
			}
		}
		return
	}

	if !w.scanner.accepts(ev.Name) {
		return
	}
	w.debounce(ev.Name)
}

// debounce (re)starts the per-path timer; only the final event in a
// burst survives to emit a task.
func (w *Watcher) debounce(path string) {
	w.timersMu.Lock()
	defer w.timersMu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Reset(w.cfg.Debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.cfg.Debounce, func() {
		w.timersMu.Lock()
		delete(w.timers, path)
		w.timersMu.Unlock()
		w.emit(path)
	})
}

// emit offers a settled path to the pipeline. Runs on a timer
// goroutine, so it may block on the task channel but never blocks
// event dispatch.
func (w *Watcher) emit(path string) {
	task, ok := w.scanner.Offer(path)
	if !ok {
		return
	}
	select {
	case w.tasks <- task:
	case <-w.done:
		w.scanner.Release(path)
	}
}

// watchTree adds dir and every directory below it to the fsnotify
// watch set.
func (w *Watcher) watchTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != dir {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}
