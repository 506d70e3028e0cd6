package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/part-extractor/internal/domain"
	"github.com/spherical-ai/part-extractor/internal/extraction"
	"github.com/spherical-ai/part-extractor/internal/index"
	"github.com/spherical-ai/part-extractor/internal/observability"
	"github.com/spherical-ai/part-extractor/internal/pdf"
)

const pdfBody = "%PDF-1.4\n1 0 obj\n<<>>\nendobj\n"

type fakeProcessor struct {
	mu   sync.Mutex
	jobs []extraction.Job
}

func (f *fakeProcessor) Process(_ context.Context, job extraction.Job) []domain.ExtractionResult {
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	f.mu.Unlock()

	src := domain.SourceWeb
	if job.Handle != "" {
		src = domain.SourcePDF
	}
	return []domain.ExtractionResult{domain.NewExtractionResult("Colour", "Black", src, 1)}
}

type fakeDocuments struct {
	indexErr  error
	passages  []domain.Passage
	searchErr error

	indexed []string
	existed []bool
	deleted []index.Handle
	lastK   int
}

func (f *fakeDocuments) IndexDocument(_ context.Context, path string) (index.Handle, int, error) {
	_, err := os.Stat(path)
	f.existed = append(f.existed, err == nil)
	f.indexed = append(f.indexed, filepath.Base(path))
	if f.indexErr != nil {
		return "", 0, f.indexErr
	}
	return "h-1", 3, nil
}

func (f *fakeDocuments) Retrieve(_ context.Context, _ index.Handle, _ string, k int) ([]domain.Passage, error) {
	f.lastK = k
	return f.passages, f.searchErr
}

func (f *fakeDocuments) DeleteDocument(_ context.Context, h index.Handle) error {
	f.deleted = append(f.deleted, h)
	return nil
}

func multipartRequest(t *testing.T, url, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, url, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newExtractionHandler(p Processor, d Documents) *ExtractionHandler {
	return NewExtractionHandler(observability.Nop(), p, d, pdf.NewValidator(0))
}

func TestProcess_PDFUpload(t *testing.T) {
	proc := &fakeProcessor{}
	docs := &fakeDocuments{}
	h := newExtractionHandler(proc, docs)

	req := multipartRequest(t, "/api/extract/process", "datasheet.pdf", pdfBody, map[string]string{
		"part_number":  "2-1419108-1",
		"attributes":   `["Colour"]`,
		"ground_truth": `{"Colour":"black"}`,
	})
	rec := httptest.NewRecorder()
	h.Process(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var results []domain.ExtractionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, domain.SourcePDF, results[0].Source)

	require.Len(t, proc.jobs, 1)
	job := proc.jobs[0]
	assert.Equal(t, "2-1419108-1", job.PartNumber)
	assert.Equal(t, index.Handle("h-1"), job.Handle)
	assert.Equal(t, []string{"Colour"}, job.Attributes)
	assert.Equal(t, map[string]string{"Colour": "black"}, job.GroundTruth)

	assert.Equal(t, []string{"datasheet.pdf"}, docs.indexed)
	assert.Equal(t, []bool{true}, docs.existed)
	assert.Equal(t, []index.Handle{"h-1"}, docs.deleted)
}

func TestProcess_NonPDFRunsWebOnly(t *testing.T) {
	proc := &fakeProcessor{}
	docs := &fakeDocuments{}
	h := newExtractionHandler(proc, docs)

	req := multipartRequest(t, "/api/extract/process", "notes.txt", "hello", map[string]string{"part_number": "123456789"})
	rec := httptest.NewRecorder()
	h.Process(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, proc.jobs, 1)
	assert.Empty(t, proc.jobs[0].Handle)
	assert.Empty(t, docs.indexed)
}

func TestProcess_BadRequests(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		fields   map[string]string
	}{
		{name: "missing file"},
		{name: "bad attributes", filename: "a.txt", content: "x", fields: map[string]string{"attributes": "Colour"}},
		{name: "bad ground truth", filename: "a.txt", content: "x", fields: map[string]string{"ground_truth": "[1]"}},
		{name: "fake pdf", filename: "fake.pdf", content: "not a pdf at all"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &fakeProcessor{}
			h := newExtractionHandler(proc, &fakeDocuments{})

			rec := httptest.NewRecorder()
			h.Process(rec, multipartRequest(t, "/api/extract/process", tt.filename, tt.content, tt.fields))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, proc.jobs)
		})
	}
}

func TestProcess_DatasheetFailureFallsBackToWeb(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"index failure", domain.IndexError("embed passages", errors.New("embedding service down"))},
		{"no text on any page", domain.DocumentExtractionError("no text extracted from any page", nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &fakeProcessor{}
			docs := &fakeDocuments{indexErr: tt.err}
			h := newExtractionHandler(proc, docs)

			rec := httptest.NewRecorder()
			h.Process(rec, multipartRequest(t, "/api/extract/process", "ds.pdf", pdfBody,
				map[string]string{"part_number": "1234567-1"}))

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			require.Len(t, proc.jobs, 1)
			assert.Equal(t, "1234567-1", proc.jobs[0].PartNumber)
			assert.Empty(t, proc.jobs[0].Handle)
			assert.Empty(t, docs.deleted)

			var results []domain.ExtractionResult
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
			require.Len(t, results, 1)
			assert.Equal(t, domain.SourceWeb, results[0].Source)
		})
	}
}

func TestProcess_ClientInitFailureAborts(t *testing.T) {
	proc := &fakeProcessor{}
	docs := &fakeDocuments{indexErr: domain.ClientInitError("vision client", nil)}
	h := newExtractionHandler(proc, docs)

	rec := httptest.NewRecorder()
	h.Process(rec, multipartRequest(t, "/api/extract/process", "ds.pdf", pdfBody, nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "failed to process datasheet")
	assert.Empty(t, proc.jobs)
}

func TestMetricsHandler(t *testing.T) {
	h := newExtractionHandler(&fakeProcessor{}, &fakeDocuments{})

	body := `{"results":[
		{"attribute":"Colour","value":"Black","source":"web","latency":1,"is_success":true,"exact_match":true,"case_insensitive_match":true},
		{"attribute":"Material","value":"NOT FOUND","source":"none","latency":3,"is_not_found":true}
	]}`
	rec := httptest.NewRecorder()
	h.Metrics(rec, httptest.NewRequest(http.MethodPost, "/api/extract/metrics", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var m domain.BatchMetrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, 2, m.TotalFields)
	assert.Equal(t, 1, m.AccuracyDenominator)
	assert.InDelta(t, 1.0, m.ExactMatchAccuracy, 1e-9)
	assert.InDelta(t, 2.0, m.AvgLatency, 1e-9)
}

func TestMetricsHandler_InvalidBody(t *testing.T) {
	h := newExtractionHandler(&fakeProcessor{}, &fakeDocuments{})
	rec := httptest.NewRecorder()
	h.Metrics(rec, httptest.NewRequest(http.MethodPost, "/api/extract/metrics", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRAGUpload(t *testing.T) {
	docs := &fakeDocuments{}
	h := NewRAGHandler(observability.Nop(), docs, pdf.NewValidator(0), 4)

	rec := httptest.NewRecorder()
	h.Upload(rec, multipartRequest(t, "/api/rag/upload", "ds.pdf", pdfBody, nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp UploadResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "h-1", resp.Handle)
	assert.Equal(t, 3, resp.Chunks)
	assert.Equal(t, "Successfully processed 3 chunks from ds.pdf", resp.Message)
	assert.Empty(t, docs.deleted)
}

func TestRAGUpload_RejectsNonPDF(t *testing.T) {
	h := NewRAGHandler(observability.Nop(), &fakeDocuments{}, pdf.NewValidator(0), 4)

	rec := httptest.NewRecorder()
	h.Upload(rec, multipartRequest(t, "/api/rag/upload", "notes.txt", "hello", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRAGQuery(t *testing.T) {
	docs := &fakeDocuments{passages: []domain.Passage{
		{Text: "Operating temperature -40 to 125", SourceDocument: "ds.pdf", Page: 2, ChunkIndex: 1, ChunkCount: 1},
	}}
	h := NewRAGHandler(observability.Nop(), docs, pdf.NewValidator(0), 4)

	rec := httptest.NewRecorder()
	h.Query(rec, httptest.NewRequest(http.MethodPost, "/api/rag/query", strings.NewReader(`{"handle":"h-1","text":"temperature"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	var out []DocumentDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "ds.pdf", out[0].Metadata["source"])
	assert.EqualValues(t, 2, out[0].Metadata["page"])
	assert.Equal(t, 4, docs.lastK)

	rec = httptest.NewRecorder()
	h.Query(rec, httptest.NewRequest(http.MethodPost, "/api/rag/query", strings.NewReader(`{"handle":"h-1","text":"temperature","n_results":2}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, docs.lastK)
}

func TestRAGQuery_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{name: "missing handle", body: `{"text":"x"}`, wantStatus: http.StatusBadRequest},
		{name: "missing text", body: `{"handle":"h"}`, wantStatus: http.StatusBadRequest},
		{name: "unknown handle", body: `{"handle":"h","text":"x"}`, err: domain.IndexError("search passages", index.ErrUnknownHandle), wantStatus: http.StatusNotFound},
		{name: "bad k", body: `{"handle":"h","text":"x","n_results":0}`, err: domain.ValidationError("k must be at least 1, got 0", nil), wantStatus: http.StatusBadRequest},
		{name: "store failure", body: `{"handle":"h","text":"x"}`, err: domain.IndexError("search passages", errors.New("db down")), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRAGHandler(observability.Nop(), &fakeDocuments{searchErr: tt.err}, pdf.NewValidator(0), 4)
			rec := httptest.NewRecorder()
			h.Query(rec, httptest.NewRequest(http.MethodPost, "/api/rag/query", strings.NewReader(tt.body)))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
