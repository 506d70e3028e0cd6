// Package pdf opens PDF datasheets and renders their pages for vision extraction.
package pdf

import (
	"fmt"
	"image"
	"sync"

	"github.com/gen2brain/go-fitz"

	"github.com/spherical-ai/part-extractor/internal/domain"
)

// Metadata describes an opened document.
type Metadata struct {
	Pages    int    `json:"pages"`
	Title    string `json:"title,omitempty"`
	Author   string `json:"author,omitempty"`
	Producer string `json:"producer,omitempty"`
}

// FitzRasterizer implements domain.Rasterizer with MuPDF.
// One instance holds one open document.
type FitzRasterizer struct {
	mu  sync.Mutex
	doc *fitz.Document
}

// NewRasterizer creates an unopened rasterizer.
func NewRasterizer() *FitzRasterizer {
	return &FitzRasterizer{}
}

// Open loads the document at path and returns its page count.
func (r *FitzRasterizer) Open(path string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.doc != nil {
		_ = r.doc.Close()
		r.doc = nil
	}

	doc, err := fitz.New(path)
	if err != nil {
		return 0, domain.DocumentOpenError(path, err)
	}
	r.doc = doc
	return doc.NumPage(), nil
}

// Page renders a zero-based page at dpi.
func (r *FitzRasterizer) Page(pageNum int, dpi float64) (image.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.doc == nil {
		return nil, fmt.Errorf("document not open")
	}
	img, err := r.doc.ImageDPI(pageNum, dpi)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", pageNum+1, err)
	}
	return img, nil
}

// Metadata returns the page count and info dictionary of the open document.
func (r *FitzRasterizer) Metadata() (Metadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.doc == nil {
		return Metadata{}, fmt.Errorf("document not open")
	}
	info := r.doc.Metadata()
	return Metadata{
		Pages:    r.doc.NumPage(),
		Title:    info["title"],
		Author:   info["author"],
		Producer: info["producer"],
	}, nil
}

// Close releases the document. It is safe to call more than once.
func (r *FitzRasterizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.doc == nil {
		return nil
	}
	err := r.doc.Close()
	r.doc = nil
	return err
}

// ReadMetadata opens path just long enough to read its metadata.
func ReadMetadata(path string) (Metadata, error) {
	r := NewRasterizer()
	if _, err := r.Open(path); err != nil {
		return Metadata{}, err
	}
	defer r.Close()
	return r.Metadata()
}
