package embedding

import (
	"context"
	"errors"
	"time"

	"github.com/spherical-ai/part-extractor/internal/cache"
)

// CachedEmbedder stores vectors keyed by model and text so repeated uploads
// of the same datasheet skip the embedding calls.
type CachedEmbedder struct {
	next  Embedder
	cache cache.Client
	ttl   time.Duration
}

// NewCachedEmbedder wraps next with a cache.
func NewCachedEmbedder(next Embedder, c cache.Client, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{next: next, cache: c, ttl: ttl}
}

// Embed returns cached vectors where available and embeds the rest in one call.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, t := range texts {
		var v []float32
		err := cache.GetJSON(ctx, c.cache, c.key(t), &v)
		if err == nil && len(v) > 0 {
			out[i] = v
			continue
		}
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			_ = c.cache.Delete(ctx, c.key(t)) // undecodable entry
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	fresh, err := c.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = fresh[j]
		_ = cache.SetJSON(ctx, c.cache, c.key(missTexts[j]), fresh[j], c.ttl)
	}
	return out, nil
}

// EmbedSingle embeds one text through the cache.
func (c *CachedEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	out, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// Model returns the wrapped model name.
func (c *CachedEmbedder) Model() string {
	return c.next.Model()
}

// Dimension returns the wrapped dimension.
func (c *CachedEmbedder) Dimension() int {
	return c.next.Dimension()
}

func (c *CachedEmbedder) key(text string) string {
	return cache.HashKey("embed", c.next.Model(), text)
}
