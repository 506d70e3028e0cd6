package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 5000, cfg.Ingestion.ChunkSize)
	assert.Equal(t, 75, cfg.Ingestion.ChunkOverlap)
	assert.Equal(t, 4, cfg.Retrieval.K)
	assert.Equal(t, 5*time.Second, cfg.Scraping.Timeout)
	assert.Equal(t, 3, cfg.Scraping.Retries)
	assert.Equal(t, "qwen-qwq-32b", cfg.LLM.Model)
	assert.Equal(t, "mistral-small-latest", cfg.Vision.Model)
	assert.Equal(t, 31550, cfg.LLM.MaxOutputTokens)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlData := `
retrieval:
  k: 6
scraping:
  timeout: 8s
extraction:
  max_parallel_attributes: 2
`
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0o644))

	t.Setenv("GROQ_API_KEY", "groq-key")
	t.Setenv("CHUNK_SIZE", "1200")
	t.Setenv("REDIS_URL", "redis://cache:6379")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Retrieval.K)
	assert.Equal(t, 8*time.Second, cfg.Scraping.Timeout)
	assert.Equal(t, 2, cfg.Extraction.MaxParallelAttributes)
	assert.Equal(t, 1200, cfg.Ingestion.ChunkSize)
	assert.Equal(t, "groq-key", cfg.LLM.APIKey)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, "cache:6379", cfg.Cache.Redis.Addr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad cache", func(c *Config) { c.Cache.Driver = "memcached" }},
		{"bad store", func(c *Config) { c.Index.Store = "chroma" }},
		{"postgres without dsn", func(c *Config) { c.Index.Store = "postgres" }},
		{"overlap too large", func(c *Config) { c.Ingestion.ChunkOverlap = c.Ingestion.ChunkSize }},
		{"zero k", func(c *Config) { c.Retrieval.K = 0 }},
		{"zero workers", func(c *Config) { c.Extraction.MaxParallelAttributes = 0 }},
		{"bad provider", func(c *Config) { c.Embedding.Provider = "onnx" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWarnings(t *testing.T) {
	cfg := DefaultConfig()
	assert.Len(t, cfg.Warnings(), 2)

	cfg.LLM.APIKey = "a"
	cfg.Vision.APIKey = "b"
	assert.Empty(t, cfg.Warnings())

	cfg.Embedding.Provider = "gemini"
	assert.Equal(t, []string{"GEMINI_API_KEY is not set"}, cfg.Warnings())
}
