package embedding

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/spherical-ai/part-extractor/internal/domain"
)

const (
	geminiDefaultModel     = "gemini-embedding-001"
	geminiDefaultDimension = 3072
	geminiMaxBatch         = 100
)

// GeminiClient generates embeddings with the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini embedding client.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, domain.ClientInitError("GEMINI_API_KEY is required for the gemini embedding provider", nil)
	}
	if model == "" || model == defaultModel {
		model = geminiDefaultModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, domain.ClientInitError("create gemini client", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

// Embed generates embeddings for texts in batches of at most 100.
func (g *GeminiClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	em := g.client.EmbeddingModel(g.model)
	out := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += geminiMaxBatch {
		end := i + geminiMaxBatch
		if end > len(texts) {
			end = len(texts)
		}

		batch := em.NewBatch()
		for _, t := range texts[i:end] {
			batch.AddContent(genai.Text(t))
		}
		res, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("gemini batch %d-%d: %w", i, end, err)
		}
		if len(res.Embeddings) != end-i {
			return nil, fmt.Errorf("gemini returned %d embeddings for %d inputs", len(res.Embeddings), end-i)
		}
		for _, e := range res.Embeddings {
			out = append(out, e.Values)
		}
	}
	return out, nil
}

// EmbedSingle generates an embedding for a single text.
func (g *GeminiClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	res, err := g.client.EmbeddingModel(g.model).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if res.Embedding == nil {
		return nil, fmt.Errorf("no embedding returned")
	}
	return res.Embedding.Values, nil
}

// Model returns the model being used.
func (g *GeminiClient) Model() string {
	return g.model
}

// Dimension returns the default output size of the Gemini embedding model.
func (g *GeminiClient) Dimension() int {
	return geminiDefaultDimension
}

// Close releases the underlying client.
func (g *GeminiClient) Close() error {
	return g.client.Close()
}
