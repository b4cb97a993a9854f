// Package classify derives searchable metadata from a file's position
// in the watch tree. Classification is a pure function of the path: it
// never touches the filesystem and never fails, so a badly placed file
// degrades to defaults instead of blocking the pipeline.
package classify

import (
	"path/filepath"
	"strings"

	"brainocr/pkg/types"
)

// Defaults used when a file sits too shallow in the tree to carry
// category/source directories.
const (
	DefaultCategory = "uncategorized"
	DefaultSource   = "unsorted"
)

// Classify derives {category, source, title} from a path. The file's
// grandparent directory is the category and its parent directory the
// source, so notes laid out as <category>/<source>/<page> classify the
// same whether the path is absolute or relative to the watch root.
// Shallower paths keep the defaults for the missing levels.
func Classify(path string) types.Classification {
	parts := splitPath(path)

	c := types.Classification{
		Category: DefaultCategory,
		Source:   DefaultSource,
	}

	switch {
	case len(parts) >= 3:
		c.Category = parts[len(parts)-3]
		c.Source = parts[len(parts)-2]
	case len(parts) == 2:
		c.Source = parts[0]
	}

	c.Title = Title(c.Source)
	return c
}

// ClassifyRel classifies path relative to root. If path is not under
// root the path is classified as-is.
func ClassifyRel(root, path string) types.Classification {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return Classify(path)
	}
	return Classify(rel)
}

// Title turns a hyphen/underscore separated source name into a
// human-readable title: "atomic-habits" -> "Atomic Habits".
func Title(source string) string {
	source = strings.ReplaceAll(source, "-", " ")
	source = strings.ReplaceAll(source, "_", " ")

	words := strings.Fields(source)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// DocumentID derives a stable index document id from a file path, so
// that re-indexing the same file overwrites rather than duplicates.
// Characters outside [A-Za-z0-9_=-] are folded to underscores and any
// leading underscores are stripped (index services reject ids that
// start with one).
func DocumentID(path string) string {
	id := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '_' || r == '-' || r == '=':
			return r
		default:
			return '_'
		}
	}, path)
	return strings.TrimLeft(id, "_")
}

// splitPath breaks a path into its non-empty segments, tolerating both
// separators and redundant elements.
func splitPath(path string) []string {
	clean := filepath.ToSlash(filepath.Clean(path))
	raw := strings.Split(clean, "/")

	parts := raw[:0]
	for _, p := range raw {
		if p != "" && p != "." {
			parts = append(parts, p)
		}
	}
	return parts
}
