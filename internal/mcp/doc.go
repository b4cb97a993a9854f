// Package mcp exposes the note index over the Model Context Protocol.
//
// The server runs on stdio and offers two tools: search_notes for
// hybrid keyword/semantic retrieval and index_status for index
// statistics. It is read-only; indexing happens in the watch daemon.
package mcp
