// Package types contains the shared data structures and error taxonomy
// used across the brainocr pipeline: file tasks, pipeline results, and
// the transient/permanent classification external-service errors must
// carry so the orchestrator can decide whether a retry is worthwhile.
package types
