// Package index embeds passages and answers similarity queries over them.
package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/spherical-ai/part-extractor/internal/domain"
	"github.com/spherical-ai/part-extractor/internal/embedding"
	"github.com/spherical-ai/part-extractor/internal/observability"
)

// Handle identifies one indexed document set.
type Handle string

// Options configures an Index.
type Options struct {
	Normalize bool
	StoreName string
}

// Index builds per-document vector indexes on top of a VectorStore.
type Index struct {
	embedder  embedding.Embedder
	store     VectorStore
	normalize bool
	storeName string
	logger    *observability.Logger
}

// Stats summarises the stored indexes.
type Stats struct {
	Store     string `json:"store"`
	Model     string `json:"model"`
	Documents int    `json:"documents"`
	Passages  int    `json:"passages"`
}

// New creates an Index.
func New(embedder embedding.Embedder, store VectorStore, opts Options, logger *observability.Logger) *Index {
	if logger == nil {
		logger = observability.Nop()
	}
	name := opts.StoreName
	if name == "" {
		name = "memory"
	}
	return &Index{
		embedder:  embedder,
		store:     store,
		normalize: opts.Normalize,
		storeName: name,
		logger:    logger.WithComponent("index"),
	}
}

// OpenStore builds the VectorStore named by kind.
func OpenStore(ctx context.Context, kind, persistDir, postgresDSN string) (VectorStore, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(persistDir)
	case "postgres":
		return NewPostgresStore(ctx, postgresDSN)
	default:
		return nil, fmt.Errorf("unknown index store %q", kind)
	}
}

// Build embeds passages and stores them under a fresh handle.
func (ix *Index) Build(ctx context.Context, passages []domain.Passage) (Handle, error) {
	if len(passages) == 0 {
		return "", domain.EmptyDocumentError("no passages to index")
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}

	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return "", domain.IndexError("embed passages", err)
	}
	if len(vectors) != len(passages) {
		return "", domain.IndexError(fmt.Sprintf("embedder returned %d vectors for %d passages", len(vectors), len(passages)), nil)
	}

	entries := make([]Entry, len(passages))
	for i, p := range passages {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		v := vectors[i]
		if ix.normalize {
			v = embedding.Normalize(v)
		}
		entries[i] = Entry{Passage: p, Vector: v}
	}

	handle := Handle(uuid.NewString())
	if err := ix.store.Insert(ctx, string(handle), entries); err != nil {
		return "", domain.IndexError("store passages", err)
	}

	ix.logger.Info().
		Str("handle", string(handle)).
		Int("passages", len(entries)).
		Str("model", ix.embedder.Model()).
		Msg("index built")
	return handle, nil
}

// Retrieve returns the k passages most similar to query, closest first.
// A k larger than the indexed set returns every passage.
func (ix *Index) Retrieve(ctx context.Context, h Handle, query string, k int) ([]domain.Passage, error) {
	matches, err := ix.Search(ctx, h, query, k)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Passage, len(matches))
	for i, m := range matches {
		out[i] = m.Passage
	}
	return out, nil
}

// Search is Retrieve with similarity scores.
func (ix *Index) Search(ctx context.Context, h Handle, query string, k int) ([]Match, error) {
	if k < 1 {
		return nil, domain.ValidationError(fmt.Sprintf("k must be at least 1, got %d", k), nil)
	}

	v, err := ix.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, domain.IndexError("embed query", err)
	}
	if ix.normalize {
		v = embedding.Normalize(v)
	}

	matches, err := ix.store.Search(ctx, string(h), v, k)
	if err != nil {
		return nil, domain.IndexError("search passages", err)
	}
	return matches, nil
}

// Delete drops a handle and its passages.
func (ix *Index) Delete(ctx context.Context, h Handle) error {
	if err := ix.store.Delete(ctx, string(h)); err != nil {
		return domain.IndexError("delete handle", err)
	}
	return nil
}

// Stats counts stored documents and passages.
func (ix *Index) Stats(ctx context.Context) (Stats, error) {
	handles, err := ix.store.Handles(ctx)
	if err != nil {
		return Stats{}, domain.IndexError("list handles", err)
	}
	st := Stats{Store: ix.storeName, Model: ix.embedder.Model(), Documents: len(handles)}
	for _, h := range handles {
		n, err := ix.store.Count(ctx, h)
		if err != nil {
			return Stats{}, domain.IndexError("count passages", err)
		}
		st.Passages += n
	}
	return st, nil
}

// IsUnknownHandle reports whether err came from querying a missing handle.
func IsUnknownHandle(err error) bool {
	return errors.Is(err, ErrUnknownHandle)
}

// Close releases the store.
func (ix *Index) Close() error {
	return ix.store.Close()
}
