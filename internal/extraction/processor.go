package extraction

import (
	"context"
	"sync"
	"time"

	"github.com/spherical-ai/part-extractor/internal/domain"
	"github.com/spherical-ai/part-extractor/internal/index"
	"github.com/spherical-ai/part-extractor/internal/observability"
	"github.com/spherical-ai/part-extractor/internal/prompt"
)

const defaultMaxParallel = 4

// Job is one extraction request over many attributes.
type Job struct {
	PartNumber  string
	Handle      index.Handle
	Attributes  []string          // empty selects every registered attribute
	GroundTruth map[string]string // optional expected values by attribute key

	// OnResult, when set, is called as each attribute finishes.
	OnResult func(domain.ExtractionResult)
}

// Processor fans a Job's attributes out over a bounded worker pool.
type Processor struct {
	orchestrator *Orchestrator
	maxWorkers   int
	logger       *observability.Logger
}

// NewProcessor creates a processor running at most maxWorkers attributes at once.
func NewProcessor(o *Orchestrator, maxWorkers int, logger *observability.Logger) *Processor {
	if maxWorkers <= 0 {
		maxWorkers = defaultMaxParallel
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Processor{
		orchestrator: o,
		maxWorkers:   maxWorkers,
		logger:       logger.WithComponent("processor"),
	}
}

// Specs returns the attributes a job selects, in registry order.
func Specs(job Job) []domain.AttributeSpec {
	return prompt.Filter(job.Attributes)
}

// Process extracts every selected attribute and returns results in registry order.
func (p *Processor) Process(ctx context.Context, job Job) []domain.ExtractionResult {
	specs := Specs(job)
	results := make([]domain.ExtractionResult, len(specs))
	if len(specs) == 0 {
		return results
	}

	start := time.Now()
	log := p.logger.WithContext(ctx).WithOperation("process")
	log.Info().
		Str("part_number", job.PartNumber).
		Bool("document", job.Handle != "").
		Int("attributes", len(specs)).
		Msg("extraction started")

	work := make(chan int, len(specs))
	for i := range specs {
		work <- i
	}
	close(work)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for w := 0; w < p.maxWorkers && w < len(specs); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				r := p.extractOne(ctx, job, specs[i])
				results[i] = r
				if job.OnResult != nil {
					mu.Lock()
					job.OnResult(r)
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	log.Info().
		Int("attributes", len(specs)).
		Dur("duration", time.Since(start)).
		Msg("extraction finished")
	return results
}

func (p *Processor) extractOne(ctx context.Context, job Job, spec domain.AttributeSpec) domain.ExtractionResult {
	out := p.orchestrator.Extract(ctx, Request{
		Attribute:  spec,
		PartNumber: job.PartNumber,
		Handle:     job.Handle,
	})

	r := domain.NewExtractionResult(spec.Key, out.Value, out.Source, out.Latency)
	r.IsRateLimit = out.RateLimited
	if truth, ok := job.GroundTruth[spec.Key]; ok {
		r = r.WithGroundTruth(truth)
	}
	return r
}
