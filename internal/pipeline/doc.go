// Package pipeline runs discovered files through extract, embed and
// index, then records success in the state tracker.
//
// The orchestrator owns the retry policy: transient failures are
// retried with bounded exponential backoff, permanent failures fail
// the file immediately. A file is marked processed only after every
// stage has succeeded, so a crash at any point leaves the file
// eligible for reprocessing on the next run. The index upsert is
// keyed by document ID, which makes that reprocessing harmless.
package pipeline
