//go:build purego || !sqlite_vec
// +build purego !sqlite_vec

package index

// Compiled without CGO or without the sqlite_vec tag. Uses the pure Go
// SQLite implementation; vector similarity is computed in process.
//
// Build command:
//   CGO_ENABLED=0 go build -tags "purego" ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use.
	DriverName = "sqlite"

	// VectorExtensionAvailable reports whether vec_distance_cosine is
	// usable in SQL.
	VectorExtensionAvailable = false

	// BuildMode describes the current build configuration.
	BuildMode = "purego"
)
