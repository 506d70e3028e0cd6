// Package extraction resolves attribute values from supplier pages first and
// indexed datasheet passages second.
package extraction

import (
	"context"
	"errors"
	"time"

	"github.com/spherical-ai/part-extractor/internal/domain"
	"github.com/spherical-ai/part-extractor/internal/index"
	"github.com/spherical-ai/part-extractor/internal/llm"
	"github.com/spherical-ai/part-extractor/internal/observability"
	"github.com/spherical-ai/part-extractor/internal/prompt"
)

// ContentSource returns cleaned supplier content for a part number.
type ContentSource interface {
	Scrape(ctx context.Context, partNumber string) (string, bool)
}

// Retriever returns the passages of a handle nearest to a query.
type Retriever interface {
	Retrieve(ctx context.Context, h index.Handle, query string, k int) ([]domain.Passage, error)
}

var errNoWebContent = errors.New("no supplier content")

// Config tunes the orchestrator.
type Config struct {
	RetrievalK        int
	AttributeDeadline time.Duration // bounds both stages of one attribute; zero disables
}

// Request asks for one attribute. Either PartNumber or Handle may be empty.
type Request struct {
	Attribute  domain.AttributeSpec
	PartNumber string
	Handle     index.Handle
}

// Outcome is the result of one extraction. Latency is in seconds.
type Outcome struct {
	Value       string
	Source      domain.Source
	Latency     float64
	RateLimited bool
}

// evidence is the context handed to a prompt builder.
type evidence string

// answer is a sanitized completion and the value it carries.
type answer struct {
	Sanitized string
	Value     string
	Present   bool
}

// Orchestrator runs the web stage and falls back to the document stage.
type Orchestrator struct {
	source    ContentSource
	retriever Retriever
	completer domain.Completer
	cfg       Config
	logger    *observability.Logger
}

// NewOrchestrator wires the stage collaborators. source or retriever may be
// nil, which disables the corresponding stage.
func NewOrchestrator(source ContentSource, retriever Retriever, completer domain.Completer, cfg Config, logger *observability.Logger) *Orchestrator {
	if logger == nil {
		logger = observability.Nop()
	}
	if cfg.RetrievalK < 1 {
		cfg.RetrievalK = 4
	}
	return &Orchestrator{
		source:    source,
		retriever: retriever,
		completer: completer,
		cfg:       cfg,
		logger:    logger.WithComponent("extraction"),
	}
}

// Extract resolves one attribute. It never fails: stage errors are logged
// and the result degrades to the next stage or to NOT FOUND.
func (o *Orchestrator) Extract(ctx context.Context, req Request) Outcome {
	start := time.Now()
	key := req.Attribute.Key
	log := o.logger.WithContext(ctx).WithAttribute(key)

	if o.cfg.AttributeDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.AttributeDeadline)
		defer cancel()
	}

	out := Outcome{Value: domain.NotFound, Source: domain.SourceNone}
	finish := func() Outcome {
		out.Latency = time.Since(start).Seconds()
		log.Info().
			Str("source", string(out.Source)).
			Str("value", out.Value).
			Float64("latency", out.Latency).
			Msg("attribute resolved")
		return out
	}

	if req.PartNumber != "" && o.source != nil {
		ans, err := o.runStage(ctx, key,
			func(ctx context.Context) (evidence, error) { return o.webEvidence(ctx, req.PartNumber) },
			func(ev evidence) string { return prompt.WebPrompt(string(ev), req.Attribute.WebInstructions, key) },
		)
		switch {
		case err != nil:
			out.RateLimited = out.RateLimited || llm.IsRateLimited(err)
			log.Warn().Err(err).Str("stage", "web").Msg("stage failed")
		case ans.Present && ans.Value != domain.NotFound:
			out.Value, out.Source = ans.Value, domain.SourceWeb
			return finish()
		default:
			log.Debug().Str("stage", "web").Str("response", ans.Sanitized).Msg("no value on supplier page")
		}
	}

	if req.Handle != "" && o.retriever != nil {
		ans, err := o.runStage(ctx, key,
			func(ctx context.Context) (evidence, error) { return o.pdfEvidence(ctx, req.Handle, key, req.PartNumber) },
			func(ev evidence) string {
				return prompt.PDFPrompt(string(ev), req.Attribute.PDFInstructions, key, req.PartNumber)
			},
		)
		switch {
		case err != nil:
			out.RateLimited = out.RateLimited || llm.IsRateLimited(err)
			log.Warn().Err(err).Str("stage", "pdf").Msg("stage failed")
		case ans.Present:
			out.Value, out.Source = ans.Value, domain.SourcePDF
			return finish()
		default:
			log.Debug().Str("stage", "pdf").Str("response", ans.Sanitized).Msg("completion carried no value")
		}
	}

	return finish()
}

// runStage gathers evidence, builds the prompt, calls the model and
// sanitizes the completion.
func (o *Orchestrator) runStage(
	ctx context.Context,
	key string,
	gather func(context.Context) (evidence, error),
	build func(evidence) string,
) (answer, error) {
	ev, err := gather(ctx)
	if err != nil {
		return answer{}, err
	}

	raw, err := o.completer.Complete(ctx, build(ev))
	if err != nil {
		return answer{}, err
	}

	sanitized := llm.SanitizeResponse(raw, key)
	value, ok := llm.DecodeValue(sanitized, key)
	return answer{Sanitized: sanitized, Value: value, Present: ok}, nil
}

func (o *Orchestrator) webEvidence(ctx context.Context, partNumber string) (evidence, error) {
	content, ok := o.source.Scrape(ctx, partNumber)
	if !ok {
		return "", errNoWebContent
	}
	return evidence(content), nil
}

func (o *Orchestrator) pdfEvidence(ctx context.Context, h index.Handle, key, partNumber string) (evidence, error) {
	passages, err := o.retriever.Retrieve(ctx, h, prompt.RetrievalQuery(key, partNumber), o.cfg.RetrievalK)
	if err != nil {
		return "", err
	}
	return evidence(prompt.FormatPassages(passages)), nil
}
