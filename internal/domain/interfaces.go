package domain

import (
	"context"
	"image"
)

// Rasterizer renders PDF pages to images.
type Rasterizer interface {
	// Open prepares the document and returns its page count.
	Open(path string) (int, error)

	// Page renders a zero-based page at the given DPI.
	Page(pageNum int, dpi float64) (image.Image, error)

	// Close releases the document.
	Close() error
}

// VisionExtractor turns one page image into markdown text.
type VisionExtractor interface {
	DescribeImage(ctx context.Context, prompt string, pngData []byte) (string, error)
}

// Completer sends a text prompt to a completion model.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
