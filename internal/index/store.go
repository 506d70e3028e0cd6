package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/spherical-ai/part-extractor/internal/domain"
)

// ErrVectorDimensionMismatch indicates a dimension mismatch within one handle.
var ErrVectorDimensionMismatch = errors.New("vector dimension mismatch")

// ErrUnknownHandle indicates a handle with no stored passages.
var ErrUnknownHandle = errors.New("unknown document handle")

// Entry is one passage and its embedding.
type Entry struct {
	Passage domain.Passage
	Vector  []float32
}

// Match is a search hit. Score is cosine similarity, higher is closer.
type Match struct {
	Passage domain.Passage `json:"passage"`
	Score   float32        `json:"score"`
}

// VectorStore persists passage vectors grouped by document handle.
type VectorStore interface {
	// Insert adds entries under handle.
	Insert(ctx context.Context, handle string, entries []Entry) error

	// Search returns up to k entries of handle nearest to query, closest first.
	Search(ctx context.Context, handle string, query []float32, k int) ([]Match, error)

	// Delete removes every entry of handle.
	Delete(ctx context.Context, handle string) error

	// Count returns the number of entries under handle.
	Count(ctx context.Context, handle string) (int, error)

	// Handles lists the stored handles.
	Handles(ctx context.Context) ([]string, error)

	// Close releases resources.
	Close() error
}

// cosineDistance computes cosine distance between two normalized vectors.
// For normalized vectors: distance = 1 - dot(a, b)
func cosineDistance(a, b []float32) float32 {
	if len(a) != len(b) {
		return 1.0
	}

	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}

	if dot > 1 {
		dot = 1
	} else if dot < -1 {
		dot = -1
	}
	return 1 - dot
}

// normalizeVector returns a unit-length copy of v.
func normalizeVector(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)

	normalized := make([]float32, len(v))
	if norm == 0 {
		copy(normalized, v)
		return normalized
	}
	for i, x := range v {
		normalized[i] = float32(float64(x) / norm)
	}
	return normalized
}

// checkDimensions verifies every entry carries a vector of one dimension.
// want is the dimension already stored for the handle, or 0.
func checkDimensions(entries []Entry, want int) error {
	for _, e := range entries {
		if len(e.Vector) == 0 {
			return fmt.Errorf("%w: empty vector for passage %s", ErrVectorDimensionMismatch, e.Passage.ID)
		}
		if want == 0 {
			want = len(e.Vector)
		}
		if len(e.Vector) != want {
			return fmt.Errorf("%w: expected %d, got %d for passage %s",
				ErrVectorDimensionMismatch, want, len(e.Vector), e.Passage.ID)
		}
	}
	return nil
}

// rank orders normalized entries by distance to a normalized query and keeps
// the first k. Ties keep insertion order.
func rank(entries []Entry, query []float32, k int) ([]Match, error) {
	type scored struct {
		entry    Entry
		distance float32
	}

	results := make([]scored, 0, len(entries))
	for _, e := range entries {
		if len(e.Vector) != len(query) {
			return nil, fmt.Errorf("%w: query has %d dimensions, passage %s has %d",
				ErrVectorDimensionMismatch, len(query), e.Passage.ID, len(e.Vector))
		}
		results = append(results, scored{entry: e, distance: cosineDistance(query, e.Vector)})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].distance < results[j].distance
	})

	if k > len(results) {
		k = len(results)
	}

	out := make([]Match, k)
	for i := 0; i < k; i++ {
		out[i] = Match{Passage: results[i].entry.Passage, Score: 1 - results[i].distance}
	}
	return out, nil
}
