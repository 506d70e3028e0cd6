// Package embedding provides text embedding backends for passage retrieval.
package embedding

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/spherical-ai/part-extractor/internal/cache"
	"github.com/spherical-ai/part-extractor/internal/domain"
)

// Embedder defines the interface for embedding generation.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
	Model() string
	Dimension() int
}

// Ensure implementations satisfy interface.
var (
	_ Embedder = (*Client)(nil)
	_ Embedder = (*GeminiClient)(nil)
	_ Embedder = (*HashEmbedder)(nil)
	_ Embedder = (*CachedEmbedder)(nil)
)

// Options selects and configures an embedding backend.
type Options struct {
	Provider     string // http, gemini or hash
	BaseURL      string
	APIKey       string
	GeminiAPIKey string
	Model        string
	Dimension    int
	BatchSize    int
	Timeout      time.Duration
	Cache        cache.Client
	CacheTTL     time.Duration
}

// New builds the configured embedder, wrapped in a cache when one is given.
func New(ctx context.Context, opts Options) (Embedder, error) {
	var (
		e   Embedder
		err error
	)

	switch opts.Provider {
	case "", "http":
		e, err = NewClient(Config{
			APIKey:    opts.APIKey,
			Model:     opts.Model,
			BaseURL:   opts.BaseURL,
			Dimension: opts.Dimension,
			BatchSize: opts.BatchSize,
			Timeout:   opts.Timeout,
		})
	case "gemini":
		e, err = NewGeminiClient(ctx, opts.GeminiAPIKey, opts.Model)
	case "hash":
		e = NewHashEmbedder(opts.Dimension)
	default:
		return nil, domain.ClientInitError(fmt.Sprintf("unknown embedding provider %q", opts.Provider), nil)
	}
	if err != nil {
		return nil, err
	}

	if opts.Cache != nil {
		e = NewCachedEmbedder(e, opts.Cache, opts.CacheTTL)
	}
	return e, nil
}

// Normalize scales v to unit length in place and returns it. Zero vectors are
// returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= norm
	}
	return v
}
