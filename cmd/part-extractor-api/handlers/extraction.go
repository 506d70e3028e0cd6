package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/spherical-ai/part-extractor/internal/domain"
	"github.com/spherical-ai/part-extractor/internal/extraction"
	"github.com/spherical-ai/part-extractor/internal/index"
	"github.com/spherical-ai/part-extractor/internal/metrics"
	"github.com/spherical-ai/part-extractor/internal/observability"
	"github.com/spherical-ai/part-extractor/internal/pdf"
)

// ExtractionHandler handles attribute extraction requests.
type ExtractionHandler struct {
	logger    *observability.Logger
	processor Processor
	documents Documents
	validator *pdf.Validator
}

// NewExtractionHandler creates a new extraction handler.
func NewExtractionHandler(logger *observability.Logger, processor Processor, documents Documents, validator *pdf.Validator) *ExtractionHandler {
	return &ExtractionHandler{
		logger:    logger,
		processor: processor,
		documents: documents,
		validator: validator,
	}
}

// MetricsRequestDTO carries results to summarise.
type MetricsRequestDTO struct {
	Results []domain.ExtractionResult `json:"results"`
}

// Process handles POST /api/extract/process.
//
// The multipart form carries the datasheet as "file" plus optional
// "part_number", "attributes" (JSON array) and "ground_truth" (JSON object).
// A non-PDF file runs the web stage only.
func (h *ExtractionHandler) Process(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.WithContext(ctx)

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

	job := extraction.Job{PartNumber: strings.TrimSpace(r.FormValue("part_number"))}

	if raw := r.FormValue("attributes"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &job.Attributes); err != nil {
			writeError(w, http.StatusBadRequest, "attributes must be a JSON array of strings", err.Error())
			return
		}
	}
	if raw := r.FormValue("ground_truth"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &job.GroundTruth); err != nil {
			writeError(w, http.StatusBadRequest, "ground_truth must be a JSON object", err.Error())
			return
		}
	}

	start := time.Now()
	if pdf.IsPDFName(header.Filename) {
		u, err := saveUpload(h.validator, file, header)
		if err != nil {
			writeError(w, errorStatus(err), "invalid upload", err.Error())
			return
		}
		defer u.Remove()

		handle, chunks, err := h.documents.IndexDocument(ctx, u.Path)
		switch {
		case err == nil:
			defer h.forget(r, handle)
			job.Handle = handle
			logger.Info().
				Str("file", u.Name).
				Str("handle", string(handle)).
				Int("chunks", chunks).
				Msg("datasheet indexed")
		case domain.IsRequestFatal(err):
			logger.Error().Err(err).Str("file", u.Name).Msg("failed to index datasheet")
			writeError(w, errorStatus(err), "failed to process datasheet", err.Error())
			return
		default:
			logger.Warn().Err(err).Str("file", u.Name).Msg("datasheet unavailable, running web extraction only")
		}
	} else {
		logger.Info().
			Str("file", filepath.Base(header.Filename)).
			Msg("non-PDF upload, running web extraction only")
	}

	results := h.processor.Process(ctx, job)

	logger.Info().
		Str("part_number", job.PartNumber).
		Int("results", len(results)).
		Dur("latency", time.Since(start)).
		Msg("extraction request completed")

	writeJSON(w, http.StatusOK, results)
}

func (h *ExtractionHandler) forget(r *http.Request, handle index.Handle) {
	if err := h.documents.DeleteDocument(context.WithoutCancel(r.Context()), handle); err != nil {
		h.logger.WithContext(r.Context()).Warn().Err(err).Str("handle", string(handle)).Msg("failed to drop request index")
	}
}

// Metrics handles POST /api/extract/metrics.
func (h *ExtractionHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	var req MetricsRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, metrics.Aggregate(req.Results))
}
