// Package app wires the extraction services from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/spherical-ai/part-extractor/internal/cache"
	"github.com/spherical-ai/part-extractor/internal/config"
	"github.com/spherical-ai/part-extractor/internal/domain"
	"github.com/spherical-ai/part-extractor/internal/embedding"
	"github.com/spherical-ai/part-extractor/internal/extraction"
	"github.com/spherical-ai/part-extractor/internal/index"
	"github.com/spherical-ai/part-extractor/internal/ingest"
	"github.com/spherical-ai/part-extractor/internal/llm"
	"github.com/spherical-ai/part-extractor/internal/observability"
	"github.com/spherical-ai/part-extractor/internal/pdf"
	"github.com/spherical-ai/part-extractor/internal/scrape"
)

// App holds the long-lived clients shared by every request.
type App struct {
	Config    *config.Config
	Logger    *observability.Logger
	Cache     cache.Client
	Index     *index.Index
	Scraper   *scrape.Scraper
	Ingester  *ingest.Service
	Processor *extraction.Processor
	Validator *pdf.Validator
}

// New builds every client once. Missing credentials fail here, not per call.
func New(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*App, error) {
	if logger == nil {
		logger = observability.Nop()
	}

	c, err := cache.New(cache.Options{
		Driver:     cfg.Cache.Driver,
		MaxEntries: cfg.Cache.MaxEntries,
		Redis: cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
		},
	})
	if err != nil {
		return nil, domain.ClientInitError("create cache", err)
	}

	a := &App{Config: cfg, Logger: logger, Cache: c, Validator: pdf.NewValidator(cfg.Server.MaxUploadBytes)}
	if err := a.build(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config
	retry := &llm.RetryConfig{
		MaxRetries:     cfg.Extraction.Retries,
		InitialBackoff: cfg.Extraction.Delay,
		MaxBackoff:     llm.DefaultRetryConfig().MaxBackoff,
	}

	completer, err := llm.NewClient(llm.ClientConfig{
		Provider:    "Groq",
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxOutputTokens,
		Timeout:     cfg.Extraction.Timeout,
		Retry:       retry,
	}, a.Logger)
	if err != nil {
		return err
	}

	vision, err := llm.NewClient(llm.ClientConfig{
		Provider: "Mistral",
		BaseURL:  cfg.Vision.BaseURL,
		APIKey:   cfg.Vision.APIKey,
		Model:    cfg.Vision.Model,
		Timeout:  cfg.Extraction.Timeout,
		Retry:    retry,
	}, a.Logger)
	if err != nil {
		return err
	}

	embedder, err := embedding.New(ctx, embedding.Options{
		Provider:     cfg.Embedding.Provider,
		BaseURL:      cfg.Embedding.BaseURL,
		APIKey:       cfg.Embedding.APIKey,
		GeminiAPIKey: cfg.Embedding.GeminiAPIKey,
		Model:        cfg.Embedding.Model,
		Dimension:    cfg.Embedding.Dimension,
		BatchSize:    cfg.Embedding.BatchSize,
		Timeout:      cfg.Extraction.Timeout,
		Cache:        a.Cache,
		CacheTTL:     cfg.Cache.TTL,
	})
	if err != nil {
		return err
	}

	store, err := index.OpenStore(ctx, cfg.Index.Store, cfg.Index.PersistDir, cfg.Index.PostgresDSN)
	if err != nil {
		return domain.ClientInitError("open passage store", err)
	}
	a.Index = index.New(embedder, store, index.Options{Normalize: cfg.Index.Normalize, StoreName: cfg.Index.Store}, a.Logger)

	a.Scraper = scrape.New(
		scrape.ChromeLauncher(scrape.ChromeOptions{Headless: cfg.Scraping.Headless, UserAgent: cfg.Scraping.UserAgent}),
		scrape.DefaultProfiles(),
		a.Cache,
		scrape.Options{
			Timeout:  cfg.Scraping.Timeout,
			Retries:  cfg.Scraping.Retries,
			Delay:    cfg.Scraping.Delay,
			CacheTTL: cfg.Cache.TTL,
		},
		a.Logger,
	)

	a.Ingester = ingest.NewService(
		func() domain.Rasterizer { return pdf.NewRasterizer() },
		vision,
		ingest.Options{
			ChunkSize:         cfg.Ingestion.ChunkSize,
			ChunkOverlap:      cfg.Ingestion.ChunkOverlap,
			DPI:               cfg.Ingestion.DPI,
			MaxConcurrentDocs: cfg.Ingestion.MaxConcurrentDocs,
		},
		a.Logger,
	)

	orchestrator := extraction.NewOrchestrator(a.Scraper, a.Index, completer, extraction.Config{
		RetrievalK:        cfg.Retrieval.K,
		AttributeDeadline: cfg.Extraction.AttributeDeadline,
	}, a.Logger)
	a.Processor = extraction.NewProcessor(orchestrator, cfg.Extraction.MaxParallelAttributes, a.Logger)
	return nil
}

// IndexDocument validates, ingests and indexes the PDF at path.
func (a *App) IndexDocument(ctx context.Context, path string) (index.Handle, int, error) {
	if err := a.Validator.ValidatePath(path); err != nil {
		return "", 0, err
	}
	passages, err := a.Ingester.Ingest(ctx, path)
	if err != nil {
		return "", 0, err
	}
	h, err := a.Index.Build(ctx, passages)
	if err != nil {
		return "", 0, err
	}
	return h, len(passages), nil
}

// Retrieve returns the k passages of h closest to query.
func (a *App) Retrieve(ctx context.Context, h index.Handle, query string, k int) ([]domain.Passage, error) {
	return a.Index.Retrieve(ctx, h, query, k)
}

// DeleteDocument drops an indexed document.
func (a *App) DeleteDocument(ctx context.Context, h index.Handle) error {
	return a.Index.Delete(ctx, h)
}

// Close releases the browser session, the passage store and the cache.
func (a *App) Close() error {
	var errs []error
	if a.Scraper != nil {
		errs = append(errs, a.Scraper.Close())
	}
	if a.Index != nil {
		errs = append(errs, a.Index.Close())
	}
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close app: %w", err)
	}
	return nil
}
