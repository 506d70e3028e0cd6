package pdf

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spherical-ai/part-extractor/internal/domain"
)

// DefaultMaxSize is the largest document accepted for ingestion.
const DefaultMaxSize = 10 << 20

var magic = []byte("%PDF-")

// Validator checks uploaded documents before they reach the rasterizer.
type Validator struct {
	maxSize int64
}

// NewValidator creates a validator. A non-positive maxSize uses DefaultMaxSize.
func NewValidator(maxSize int64) *Validator {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Validator{maxSize: maxSize}
}

// MaxSize returns the largest accepted file size in bytes.
func (v *Validator) MaxSize() int64 {
	return v.maxSize
}

// IsPDFName reports whether a file name carries the .pdf extension.
func IsPDFName(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// ValidatePath checks that path names a readable PDF within the size limit.
func (v *Validator) ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return domain.ValidationError("file path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ValidationError(fmt.Sprintf("file does not exist: %s", path), err)
		}
		return domain.ValidationError(fmt.Sprintf("cannot access file: %s", path), err)
	}
	if info.IsDir() {
		return domain.ValidationError(fmt.Sprintf("path is a directory, not a file: %s", path), nil)
	}
	if !IsPDFName(path) {
		return domain.ValidationError(fmt.Sprintf("file is not a PDF (has extension %s)", filepath.Ext(path)), nil)
	}
	if info.Size() > v.maxSize {
		return domain.ValidationError(fmt.Sprintf("file exceeds %d MB limit", v.maxSize>>20), nil)
	}

	f, err := os.Open(path)
	if err != nil {
		return domain.ValidationError(fmt.Sprintf("cannot open file: %s", path), err)
	}
	defer f.Close()
	return v.checkMagic(f)
}

// ValidateUpload checks an uploaded file name and its leading bytes.
func (v *Validator) ValidateUpload(name string, size int64, r io.Reader) error {
	if !IsPDFName(name) {
		return domain.ValidationError(fmt.Sprintf("file is not a PDF: %s", name), nil)
	}
	if size > v.maxSize {
		return domain.ValidationError(fmt.Sprintf("file exceeds %d MB limit", v.maxSize>>20), nil)
	}
	return v.checkMagic(r)
}

func (v *Validator) checkMagic(r io.Reader) error {
	head := make([]byte, len(magic))
	if _, err := io.ReadFull(r, head); err != nil {
		return domain.ValidationError("file is too short to be a PDF", err)
	}
	if !bytes.Equal(head, magic) {
		return domain.ValidationError("file does not start with a PDF header", nil)
	}
	return nil
}
