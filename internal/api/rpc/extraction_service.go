// Package rpc provides Connect service implementations for the part extractor.
package rpc

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/spherical-ai/part-extractor/internal/domain"
	"github.com/spherical-ai/part-extractor/internal/extraction"
	"github.com/spherical-ai/part-extractor/internal/index"
	"github.com/spherical-ai/part-extractor/internal/metrics"
	"github.com/spherical-ai/part-extractor/internal/observability"
)

const (
	// ServicePath is the path prefix the service is mounted under.
	ServicePath = "/partextractor.v1.ExtractionService/"

	ExtractProcedure = ServicePath + "Extract"
	MetricsProcedure = ServicePath + "Metrics"
	QueryProcedure   = ServicePath + "Query"
)

// Processor runs extraction jobs.
type Processor interface {
	Process(ctx context.Context, job extraction.Job) []domain.ExtractionResult
}

// PassageSearcher answers similarity queries against an indexed document.
type PassageSearcher interface {
	Retrieve(ctx context.Context, h index.Handle, query string, k int) ([]domain.Passage, error)
}

// ExtractionService implements the Connect extraction service.
type ExtractionService struct {
	logger    *observability.Logger
	processor Processor
	searcher  PassageSearcher
}

// NewExtractionService creates a new extraction service.
func NewExtractionService(logger *observability.Logger, processor Processor, searcher PassageSearcher) *ExtractionService {
	if logger == nil {
		logger = observability.Nop()
	}
	return &ExtractionService{
		logger:    logger.WithComponent("rpc"),
		processor: processor,
		searcher:  searcher,
	}
}

// ExtractRequest represents the extract request message.
type ExtractRequest struct {
	PartNumber  string            `json:"part_number"`
	Handle      string            `json:"handle,omitempty"`
	Attributes  []string          `json:"attributes,omitempty"`
	GroundTruth map[string]string `json:"ground_truth,omitempty"`
}

// ExtractResponse represents the extract response message.
type ExtractResponse struct {
	Results   []domain.ExtractionResult `json:"results"`
	Metrics   domain.BatchMetrics       `json:"metrics"`
	LatencyMs int64                     `json:"latency_ms"`
}

// MetricsRequest carries previously produced results.
type MetricsRequest struct {
	Results []domain.ExtractionResult `json:"results"`
}

// QueryRequest asks for the passages closest to a question.
type QueryRequest struct {
	Handle string `json:"handle"`
	Query  string `json:"query"`
	K      int32  `json:"k,omitempty"`
}

// QueryResponse lists the matching passages, closest first.
type QueryResponse struct {
	Passages []domain.Passage `json:"passages"`
}

// Handler returns the service mount path and its HTTP handler.
func (s *ExtractionService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec())}, opts...)

	mux := http.NewServeMux()
	mux.Handle(ExtractProcedure, connect.NewUnaryHandler(ExtractProcedure, s.Extract, opts...))
	mux.Handle(MetricsProcedure, connect.NewUnaryHandler(MetricsProcedure, s.Metrics, opts...))
	mux.Handle(QueryProcedure, connect.NewUnaryHandler(QueryProcedure, s.Query, opts...))
	return ServicePath, mux
}

// Extract runs the web then PDF cascade for every selected attribute.
func (s *ExtractionService) Extract(ctx context.Context, req *connect.Request[ExtractRequest]) (*connect.Response[ExtractResponse], error) {
	msg := req.Msg

	partNumber := strings.TrimSpace(msg.PartNumber)
	handle := strings.TrimSpace(msg.Handle)
	if partNumber == "" && handle == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("part_number or handle is required"))
	}

	start := time.Now()
	results := s.processor.Process(ctx, extraction.Job{
		PartNumber:  partNumber,
		Handle:      index.Handle(handle),
		Attributes:  msg.Attributes,
		GroundTruth: msg.GroundTruth,
	})
	if err := ctx.Err(); err != nil {
		return nil, connect.NewError(connect.CodeCanceled, err)
	}

	s.logger.Info().
		Str("part_number", partNumber).
		Str("handle", handle).
		Int("attributes", len(results)).
		Dur("latency", time.Since(start)).
		Msg("extraction completed")

	return connect.NewResponse(&ExtractResponse{
		Results:   results,
		Metrics:   metrics.Aggregate(results),
		LatencyMs: time.Since(start).Milliseconds(),
	}), nil
}

// Metrics aggregates client-supplied results.
func (s *ExtractionService) Metrics(_ context.Context, req *connect.Request[MetricsRequest]) (*connect.Response[domain.BatchMetrics], error) {
	m := metrics.Aggregate(req.Msg.Results)
	return connect.NewResponse(&m), nil
}

// Query returns passages of an indexed document.
func (s *ExtractionService) Query(ctx context.Context, req *connect.Request[QueryRequest]) (*connect.Response[QueryResponse], error) {
	msg := req.Msg
	if msg.Handle == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("handle is required"))
	}
	if strings.TrimSpace(msg.Query) == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("query is required"))
	}
	k := int(msg.K)
	if k == 0 {
		k = 4
	}

	passages, err := s.searcher.Retrieve(ctx, index.Handle(msg.Handle), msg.Query, k)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&QueryResponse{Passages: passages}), nil
}

func toConnectError(err error) *connect.Error {
	switch {
	case index.IsUnknownHandle(err):
		return connect.NewError(connect.CodeNotFound, err)
	case domain.IsType(err, domain.ErrorTypeValidation):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
