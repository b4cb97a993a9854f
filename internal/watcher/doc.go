// Package watcher discovers new files under the watch root and turns
// them into pipeline tasks exactly once.
//
// Two operating modes share one contract: polling (recursive scans on
// a fixed interval, the reliable default for network shares and sync
// clients) and event-driven (fsnotify with a per-path debounce
// window). In both modes a file is only offered once it has an
// accepted extension, is not already processed or in flight, and has
// held still long enough to be considered fully written: identical
// size and modification time across two consecutive observations in
// polling mode, or a quiet debounce window after the last event.
//
// Discovery never blocks on the pipeline: tasks flow through a
// bounded channel and the in-flight set keeps a path from being
// offered again until the orchestrator releases it.
package watcher
