// Package ingest turns PDF datasheets into passages by transcribing each
// rendered page with a vision model.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spherical-ai/part-extractor/internal/domain"
	"github.com/spherical-ai/part-extractor/internal/observability"
	"github.com/spherical-ai/part-extractor/internal/prompt"
)

const (
	defaultDPI            = 300
	defaultMaxConcurrency = 4
)

// Options configures the ingestion service.
type Options struct {
	ChunkSize         int
	ChunkOverlap      int
	DPI               float64
	MaxConcurrentDocs int
}

// Service ingests PDF documents into passages.
type Service struct {
	newRasterizer func() domain.Rasterizer
	vision        domain.VisionExtractor
	splitter      *Splitter
	dpi           float64
	maxConcurrent int
	logger        *observability.Logger
}

// DocumentResult is the outcome of ingesting one document in a batch.
type DocumentResult struct {
	Path     string
	Passages []domain.Passage
	Err      error
}

// NewService creates an ingestion service. newRasterizer is called once per
// document so documents can be ingested concurrently.
func NewService(newRasterizer func() domain.Rasterizer, vision domain.VisionExtractor, opts Options, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.Nop()
	}
	if opts.DPI <= 0 {
		opts.DPI = defaultDPI
	}
	if opts.MaxConcurrentDocs <= 0 {
		opts.MaxConcurrentDocs = defaultMaxConcurrency
	}
	return &Service{
		newRasterizer: newRasterizer,
		vision:        vision,
		splitter:      NewSplitter(opts.ChunkSize, opts.ChunkOverlap),
		dpi:           opts.DPI,
		maxConcurrent: opts.MaxConcurrentDocs,
		logger:        logger.WithComponent("ingest"),
	}
}

// Ingest transcribes every page of the PDF at path and returns its passages
// in page order. Pages whose transcription fails are skipped; the call fails
// only when the document cannot be opened or yields no passages at all.
func (s *Service) Ingest(ctx context.Context, path string) ([]domain.Passage, error) {
	source := filepath.Base(path)
	log := s.logger.WithContext(ctx).WithOperation("ingest")
	start := time.Now()

	r := s.newRasterizer()
	pageCount, err := r.Open(path)
	if err != nil {
		if errors.Is(err, domain.ErrDocumentOpen) {
			return nil, err
		}
		return nil, domain.DocumentOpenError(path, err)
	}
	defer func() {
		if err := r.Close(); err != nil {
			log.Warn().Err(err).Str("source", source).Msg("close document")
		}
	}()

	log.Info().Str("source", source).Int("pages", pageCount).Msg("document opened")

	var passages []domain.Passage
	pagesProcessed := 0
	for i := 0; i < pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := i + 1
		text, err := s.transcribePage(ctx, r, i)
		if err != nil {
			log.Warn().Err(err).Str("source", source).Int("page", page).Msg("page transcription failed, skipping")
			continue
		}
		if strings.TrimSpace(text) == "" {
			log.Warn().Str("source", source).Int("page", page).Msg("no content extracted from page")
			continue
		}

		chunks := s.splitter.Split(text)
		for j, chunk := range chunks {
			passages = append(passages, domain.Passage{
				ID:             uuid.NewString(),
				Text:           chunk,
				SourceDocument: source,
				Page:           page,
				ChunkIndex:     j + 1,
				ChunkCount:     len(chunks),
			})
		}
		pagesProcessed++
		log.Debug().Str("source", source).Int("page", page).Int("chunks", len(chunks)).Msg("page processed")
	}

	if len(passages) == 0 {
		return nil, domain.DocumentExtractionError(fmt.Sprintf("no text could be extracted from %s", source), nil)
	}

	log.Info().
		Str("source", source).
		Int("pages_processed", pagesProcessed).
		Int("passages", len(passages)).
		Dur("duration", time.Since(start)).
		Msg("document ingested")
	return passages, nil
}

func (s *Service) transcribePage(ctx context.Context, r domain.Rasterizer, pageNum int) (string, error) {
	img, err := r.Page(pageNum, s.dpi)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode page: %w", err)
	}

	return s.vision.DescribeImage(ctx, prompt.VisionInstruction, buf.Bytes())
}

// IngestAll ingests several documents with a bounded worker pool. Results keep
// the order of paths.
func (s *Service) IngestAll(ctx context.Context, paths []string) []DocumentResult {
	results := make([]DocumentResult, len(paths))
	if len(paths) == 0 {
		return results
	}

	work := make(chan int, len(paths))
	for i := range paths {
		work <- i
	}
	close(work)

	workers := min(len(paths), s.maxConcurrent)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				passages, err := s.Ingest(ctx, paths[i])
				results[i] = DocumentResult{Path: paths[i], Passages: passages, Err: err}
			}
		}()
	}
	wg.Wait()

	return results
}
