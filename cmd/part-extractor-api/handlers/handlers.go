// Package handlers provides HTTP handlers for the part extractor API.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spherical-ai/part-extractor/internal/domain"
	"github.com/spherical-ai/part-extractor/internal/extraction"
	"github.com/spherical-ai/part-extractor/internal/index"
	"github.com/spherical-ai/part-extractor/internal/pdf"
)

// multipartOverhead is the slack allowed above the upload limit for form fields.
const multipartOverhead = 1 << 20

// Processor runs extraction jobs.
type Processor interface {
	Process(ctx context.Context, job extraction.Job) []domain.ExtractionResult
}

// Documents indexes uploaded datasheets and serves retrieval over them.
type Documents interface {
	IndexDocument(ctx context.Context, path string) (index.Handle, int, error)
	Retrieve(ctx context.Context, h index.Handle, query string, k int) ([]domain.Passage, error)
	DeleteDocument(ctx context.Context, h index.Handle) error
}

// errorStatus maps request-level failures to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case domain.IsType(err, domain.ErrorTypeValidation):
		return http.StatusBadRequest
	case index.IsUnknownHandle(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	resp := map[string]string{
		"error":   message,
		"message": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	writeJSON(w, status, resp)
}

// upload is a form file saved under a private temp directory.
type upload struct {
	dir  string
	Path string
	Name string
}

// saveUpload validates a PDF upload and writes it to disk under its own base
// name so passages keep the original document name.
func saveUpload(v *pdf.Validator, file multipart.File, header *multipart.FileHeader) (*upload, error) {
	name := filepath.Base(header.Filename)
	if err := v.ValidateUpload(name, header.Size, file); err != nil {
		return nil, err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, domain.IOError("rewind upload", err)
	}

	dir, err := os.MkdirTemp("", "part-extractor-*")
	if err != nil {
		return nil, domain.IOError("create temp dir", err)
	}
	u := &upload{dir: dir, Path: filepath.Join(dir, name), Name: name}

	out, err := os.Create(u.Path)
	if err != nil {
		u.Remove()
		return nil, domain.IOError("create temp file", err)
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		u.Remove()
		return nil, domain.IOError(fmt.Sprintf("write %s", name), err)
	}
	if err := out.Close(); err != nil {
		u.Remove()
		return nil, domain.IOError(fmt.Sprintf("close %s", name), err)
	}
	return u, nil
}

// Remove deletes the saved file and its directory.
func (u *upload) Remove() {
	_ = os.RemoveAll(u.dir)
}
