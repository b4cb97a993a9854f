package types

import "time"

// Stage identifies where in the pipeline a task currently is, or the
// stage at which it terminally failed.
type Stage string

const (
	StageDiscovered Stage = "discovered"
	StageExtracting Stage = "extracting"
	StageEmbedding  Stage = "embedding"
	StageIndexing   Stage = "indexing"
	StageStateWrite Stage = "state_write"
	StageDone       Stage = "done"
)

// EventKind names a notification event emitted by the pipeline.
type EventKind string

const (
	EventFileProcessed   EventKind = "file_processed"
	EventProcessingError EventKind = "processing_error"
	EventBatchComplete   EventKind = "batch_complete"
)

// Classification is the metadata derived from a file's position under
// the watch root: the grandparent directory is the category, the
// parent directory the source, and the title is a human-readable form
// of the source.
type Classification struct {
	Category string
	Source   string
	Title    string
}

// FileTask is one in-flight unit of work. Created by the watcher once
// a file is stable, consumed and discarded by the orchestrator; it has
// no identity beyond the pipeline run.
type FileTask struct {
	Path         string // absolute path
	Class        Classification
	DiscoveredAt time.Time
}

// PipelineResult is the outcome of running one FileTask through the
// pipeline. Err is nil on success; on failure Stage names where the
// task died.
type PipelineResult struct {
	Task       FileTask
	Stage      Stage
	WordCount  int
	TextLength int
	Duration   time.Duration
	Err        error
}

// Succeeded reports whether the task completed the full pipeline.
func (r PipelineResult) Succeeded() bool { return r.Err == nil }
