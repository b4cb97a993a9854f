//go:build sqlite_vec
// +build sqlite_vec

package index

// Compiled when building with CGO and the sqlite_vec tag. Vector
// similarity runs inside SQLite via the sqlite-vec extension.
//
// Build command:
//   CGO_ENABLED=1 go build -tags "sqlite_vec,fts5" ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use.
	DriverName = "sqlite3"

	// VectorExtensionAvailable reports whether vec_distance_cosine is
	// usable in SQL.
	VectorExtensionAvailable = true

	// BuildMode describes the current build configuration.
	BuildMode = "cgo"
)
