package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/part-extractor/internal/domain"
	"github.com/spherical-ai/part-extractor/internal/index"
	"github.com/spherical-ai/part-extractor/internal/observability"
)

type fakeSource struct {
	content string
	calls   int
	mu      sync.Mutex
}

func (f *fakeSource) Scrape(_ context.Context, _ string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.content, f.content != ""
}

type fakeRetriever struct {
	passages []domain.Passage
	err      error
	queries  []string
	mu       sync.Mutex
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ index.Handle, query string, k int) ([]domain.Passage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, fmt.Sprintf("%s|%d", query, k))
	if f.err != nil {
		return nil, f.err
	}
	return f.passages, nil
}

type completerFunc func(ctx context.Context, prompt string) (string, error)

func (f completerFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func isWebPrompt(p string) bool {
	return strings.Contains(p, "--- Cleaned Scraped Website Data ---")
}

var materialFilling = domain.AttributeSpec{
	Key:             "Material Filling",
	WebInstructions: "web instructions",
	PDFInstructions: "pdf instructions",
}

func newOrchestrator(src ContentSource, r Retriever, c domain.Completer) *Orchestrator {
	return NewOrchestrator(src, r, c, Config{RetrievalK: 4}, observability.Nop())
}

func TestExtract_WebStageWins(t *testing.T) {
	retriever := &fakeRetriever{}
	c := completerFunc(func(_ context.Context, p string) (string, error) {
		require.True(t, isWebPrompt(p))
		assert.Contains(t, p, "web instructions")
		return "<think>looking at the table</think>\n```json\n{\"Material Filling\": \"GF20\"}\n```", nil
	})
	o := newOrchestrator(&fakeSource{content: "Filling GF20"}, retriever, c)

	out := o.Extract(context.Background(), Request{Attribute: materialFilling, PartNumber: "1234567-1", Handle: "doc"})

	assert.Equal(t, "GF20", out.Value)
	assert.Equal(t, domain.SourceWeb, out.Source)
	assert.GreaterOrEqual(t, out.Latency, 0.0)
	assert.Empty(t, retriever.queries)
}

func TestExtract_NoContentNoHandle(t *testing.T) {
	called := false
	c := completerFunc(func(context.Context, string) (string, error) {
		called = true
		return "", nil
	})
	o := newOrchestrator(&fakeSource{}, &fakeRetriever{}, c)

	out := o.Extract(context.Background(), Request{Attribute: materialFilling, PartNumber: "ABC"})

	assert.Equal(t, domain.NotFound, out.Value)
	assert.Equal(t, domain.SourceNone, out.Source)
	assert.False(t, called)
}

func TestExtract_FallsBackToDocument(t *testing.T) {
	src := &fakeSource{}
	retriever := &fakeRetriever{passages: []domain.Passage{{Text: "**Filling:** GF30", SourceDocument: "ds.pdf", Page: 2}}}
	c := completerFunc(func(_ context.Context, p string) (string, error) {
		require.False(t, isWebPrompt(p))
		assert.Contains(t, p, "Chunk 1 from 'ds.pdf' (Page 2)")
		assert.Contains(t, p, "pdf instructions")
		assert.Contains(t, p, "ABC")
		return `{"Material Filling": "GF30"}`, nil
	})
	o := newOrchestrator(src, retriever, c)

	out := o.Extract(context.Background(), Request{Attribute: materialFilling, PartNumber: "ABC", Handle: "doc"})

	assert.Equal(t, "GF30", out.Value)
	assert.Equal(t, domain.SourcePDF, out.Source)
	assert.Equal(t, 1, src.calls)
	assert.Equal(t, []string{"Extract information about Material Filling for part number ABC|4"}, retriever.queries)
}

func TestExtract_WebSentinelFallsThrough(t *testing.T) {
	c := completerFunc(func(_ context.Context, p string) (string, error) {
		if isWebPrompt(p) {
			return `{"Material Filling": "NOT FOUND"}`, nil
		}
		return `{"Material Filling": "none"}`, nil
	})
	o := newOrchestrator(&fakeSource{content: "x"}, &fakeRetriever{}, c)

	out := o.Extract(context.Background(), Request{Attribute: materialFilling, PartNumber: "1234567-1", Handle: "doc"})
	assert.Equal(t, "none", out.Value)
	assert.Equal(t, domain.SourcePDF, out.Source)
}

func TestExtract_DocumentSentinelIsTerminal(t *testing.T) {
	c := completerFunc(func(context.Context, string) (string, error) {
		return "I could not find it", nil
	})
	o := newOrchestrator(nil, &fakeRetriever{}, c)

	out := o.Extract(context.Background(), Request{Attribute: materialFilling, Handle: "doc"})
	assert.Equal(t, domain.NotFound, out.Value)
	assert.Equal(t, domain.SourcePDF, out.Source)

	r := domain.NewExtractionResult(materialFilling.Key, out.Value, out.Source, out.Latency)
	assert.Equal(t, domain.SourceNone, r.Source)
	assert.True(t, r.IsNotFound)
}

func TestExtract_StageErrorsAreAbsorbed(t *testing.T) {
	c := completerFunc(func(_ context.Context, p string) (string, error) {
		if isWebPrompt(p) {
			return "", errors.New("connection reset")
		}
		t.Fatal("document stage must not call the model when retrieval fails")
		return "", nil
	})
	o := newOrchestrator(&fakeSource{content: "x"}, &fakeRetriever{err: domain.IndexError("search", nil)}, c)

	out := o.Extract(context.Background(), Request{Attribute: materialFilling, PartNumber: "1234567-1", Handle: "doc"})
	assert.Equal(t, domain.NotFound, out.Value)
	assert.Equal(t, domain.SourceNone, out.Source)
	assert.False(t, out.RateLimited)
}

func TestExtract_RateLimited(t *testing.T) {
	c := completerFunc(func(context.Context, string) (string, error) {
		return "", fmt.Errorf("groq: %w", domain.ErrRateLimited)
	})
	o := newOrchestrator(&fakeSource{content: "x"}, nil, c)

	out := o.Extract(context.Background(), Request{Attribute: materialFilling, PartNumber: "1234567-1"})
	assert.True(t, out.RateLimited)
	assert.Equal(t, domain.NotFound, out.Value)
}

func TestExtract_AttributeDeadline(t *testing.T) {
	c := completerFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	o := NewOrchestrator(&fakeSource{content: "x"}, &fakeRetriever{}, c,
		Config{AttributeDeadline: 50 * time.Millisecond}, nil)

	start := time.Now()
	out := o.Extract(context.Background(), Request{Attribute: materialFilling, PartNumber: "1234567-1", Handle: "doc"})

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, domain.NotFound, out.Value)
	assert.Equal(t, domain.SourceNone, out.Source)
}

func TestExtract_NonStringValue(t *testing.T) {
	c := completerFunc(func(context.Context, string) (string, error) {
		return `{"Number of Rows": 2}`, nil
	})
	o := newOrchestrator(&fakeSource{content: "x"}, nil, c)

	out := o.Extract(context.Background(), Request{Attribute: domain.AttributeSpec{Key: "Number of Rows"}, PartNumber: "123456789"})
	assert.Equal(t, "2", out.Value)
	assert.Equal(t, domain.SourceWeb, out.Source)
}

func TestExtract_BlankWebValueFallsThrough(t *testing.T) {
	for _, web := range []string{`{"Material Filling": null}`, `{"Material Filling": ""}`} {
		t.Run(web, func(t *testing.T) {
			docCalled := false
			c := completerFunc(func(_ context.Context, p string) (string, error) {
				if isWebPrompt(p) {
					return web, nil
				}
				docCalled = true
				return `{"Material Filling": "GF30"}`, nil
			})
			o := newOrchestrator(&fakeSource{content: "x"}, &fakeRetriever{}, c)

			out := o.Extract(context.Background(), Request{Attribute: materialFilling, PartNumber: "1234567-1", Handle: "doc"})
			assert.True(t, docCalled)
			assert.Equal(t, "GF30", out.Value)
			assert.Equal(t, domain.SourcePDF, out.Source)
		})
	}
}

func TestExtract_BlankValueWithoutDocumentIsNotFound(t *testing.T) {
	c := completerFunc(func(context.Context, string) (string, error) {
		return `{"Material Filling": null}`, nil
	})
	o := newOrchestrator(&fakeSource{content: "x"}, nil, c)

	out := o.Extract(context.Background(), Request{Attribute: materialFilling, PartNumber: "1234567-1"})
	assert.Equal(t, domain.NotFound, out.Value)
	assert.Equal(t, domain.SourceNone, out.Source)
}
