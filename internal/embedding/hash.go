package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// HashEmbedder produces deterministic bag-of-words vectors without any
// network calls. Texts sharing words end up close in cosine space.
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder creates a hash embedder of the given dimension.
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = defaultDimension
	}
	return &HashEmbedder{dimension: dimension}
}

// Embed hashes each lower-cased token into a bucket and normalizes the counts.
func (h *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = h.vector(text)
	}
	return out, nil
}

// EmbedSingle embeds one text.
func (h *HashEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	return h.vector(text), nil
}

func (h *HashEmbedder) vector(text string) []float32 {
	v := make([]float32, h.dimension)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		f := fnv.New32a()
		_, _ = f.Write([]byte(tok))
		v[f.Sum32()%uint32(h.dimension)]++
	}
	return Normalize(v)
}

// Model returns the embedder name.
func (h *HashEmbedder) Model() string {
	return "hash-bow"
}

// Dimension returns the embedding dimension.
func (h *HashEmbedder) Dimension() int {
	return h.dimension
}
