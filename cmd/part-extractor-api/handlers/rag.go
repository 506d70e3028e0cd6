package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spherical-ai/part-extractor/internal/index"
	"github.com/spherical-ai/part-extractor/internal/observability"
	"github.com/spherical-ai/part-extractor/internal/pdf"
)

// RAGHandler exposes the passage index directly.
type RAGHandler struct {
	logger    *observability.Logger
	documents Documents
	validator *pdf.Validator
	defaultK  int
}

// NewRAGHandler creates a new RAG handler. defaultK applies when a query omits n_results.
func NewRAGHandler(logger *observability.Logger, documents Documents, validator *pdf.Validator, defaultK int) *RAGHandler {
	if defaultK < 1 {
		defaultK = 4
	}
	return &RAGHandler{
		logger:    logger,
		documents: documents,
		validator: validator,
		defaultK:  defaultK,
	}
}

// UploadResponseDTO reports an indexed upload.
type UploadResponseDTO struct {
	Handle  string `json:"handle"`
	Chunks  int    `json:"chunks"`
	Message string `json:"message"`
}

// QueryRequestDTO asks for passages of one indexed document.
type QueryRequestDTO struct {
	Handle   string `json:"handle"`
	Text     string `json:"text"`
	NResults *int   `json:"n_results,omitempty"`
}

// DocumentDTO is one retrieved passage.
type DocumentDTO struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// Upload handles POST /api/rag/upload.
func (h *RAGHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, h.validator.MaxSize()+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, "file too large", err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required", err.Error())
		return
	}
	defer file.Close()

	u, err := saveUpload(h.validator, file, header)
	if err != nil {
		writeError(w, errorStatus(err), "Only PDF files are supported", err.Error())
		return
	}
	defer u.Remove()

	handle, chunks, err := h.documents.IndexDocument(ctx, u.Path)
	if err != nil {
		h.logger.WithContext(ctx).Error().Err(err).Str("file", u.Name).Msg("failed to index upload")
		writeError(w, errorStatus(err), "failed to process document", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, UploadResponseDTO{
		Handle:  string(handle),
		Chunks:  chunks,
		Message: fmt.Sprintf("Successfully processed %d chunks from %s", chunks, u.Name),
	})
}

// Query handles POST /api/rag/query.
func (h *RAGHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Handle == "" {
		writeError(w, http.StatusBadRequest, "handle is required", "")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required", "")
		return
	}
	k := h.defaultK
	if req.NResults != nil {
		k = *req.NResults
	}

	passages, err := h.documents.Retrieve(r.Context(), index.Handle(req.Handle), req.Text, k)
	if err != nil {
		writeError(w, errorStatus(err), "query failed", err.Error())
		return
	}

	out := make([]DocumentDTO, len(passages))
	for i, p := range passages {
		out[i] = DocumentDTO{Text: p.Text, Metadata: p.Metadata()}
	}
	writeJSON(w, http.StatusOK, out)
}
