// Package state tracks which files have completed the full pipeline.
//
// The tracker is the idempotency core of brainocr: a fingerprint
// appears in the store if and only if its file made it all the way
// through OCR, embedding, and indexing at least once. Partial
// failures never produce a record, so a crashed or failed file is
// simply rediscovered and retried on the next scan.
//
// The backing store is a single human-inspectable JSON file. Every
// mutation is persisted before MarkProcessed returns, using a
// write-to-temp-then-rename so a crash can never leave a partially
// written store behind.
package state
