package ocr

import (
	"context"
	"path/filepath"
	"strings"
)

// Extraction is the result of running OCR over one file.
type Extraction struct {
	Text      string
	WordCount int
	CharCount int
	PageCount int
	Languages []string
}

// Extractor turns a file on disk into extracted text. Implementations
// must classify errors via the types transient/permanent wrappers.
// A zero-word extraction is a valid result, not an error: some images
// legitimately contain no recognizable text.
type Extractor interface {
	Extract(ctx context.Context, path string) (*Extraction, error)
}

// ContentType maps a file extension to the MIME type sent to the OCR
// service. Unknown extensions fall back to octet-stream, which the
// service sniffs itself.
func ContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".bmp":
		return "image/bmp"
	case ".tiff", ".tif":
		return "image/tiff"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
