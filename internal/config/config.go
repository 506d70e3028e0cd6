// Package config provides configuration loading for the part extractor.
// Supports YAML files, .env files, environment variables and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the part extractor.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	LLM           LLMConfig           `yaml:"llm"`
	Vision        VisionConfig        `yaml:"vision"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	Cache         CacheConfig         `yaml:"cache"`
	Index         IndexConfig         `yaml:"index"`
	Ingestion     IngestionConfig     `yaml:"ingestion"`
	Retrieval     RetrievalConfig     `yaml:"retrieval"`
	Scraping      ScrapingConfig      `yaml:"scraping"`
	Extraction    ExtractionConfig    `yaml:"extraction"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
}

// LLMConfig holds the text completion model settings.
type LLMConfig struct {
	BaseURL         string  `yaml:"base_url"`
	APIKey          string  `yaml:"-"`
	Model           string  `yaml:"model"`
	Temperature     float64 `yaml:"temperature"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
}

// VisionConfig holds the vision model settings used for PDF pages.
type VisionConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"-"`
	Model   string `yaml:"model"`
}

// EmbeddingConfig holds embedding model settings.
type EmbeddingConfig struct {
	Provider     string `yaml:"provider"` // http, gemini or hash
	BaseURL      string `yaml:"base_url"`
	APIKey       string `yaml:"-"`
	GeminiAPIKey string `yaml:"-"`
	Model        string `yaml:"model"`
	Dimension    int    `yaml:"dimension"`
	BatchSize    int    `yaml:"batch_size"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// IndexConfig holds passage store settings.
type IndexConfig struct {
	Store       string `yaml:"store"` // memory, sqlite or postgres
	PersistDir  string `yaml:"persist_dir"`
	PostgresDSN string `yaml:"postgres_dsn"`
	Normalize   bool   `yaml:"normalize"`
}

// IngestionConfig holds PDF ingestion settings.
type IngestionConfig struct {
	ChunkSize         int     `yaml:"chunk_size"`
	ChunkOverlap      int     `yaml:"chunk_overlap"`
	DPI               float64 `yaml:"dpi"`
	MaxConcurrentDocs int     `yaml:"max_concurrent_docs"`
}

// RetrievalConfig holds retrieval settings.
type RetrievalConfig struct {
	K int `yaml:"k"`
}

// ScrapingConfig holds browser scraping settings.
type ScrapingConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	Retries   int           `yaml:"retries"`
	Delay     time.Duration `yaml:"delay"`
	Headless  bool          `yaml:"headless"`
	UserAgent string        `yaml:"user_agent"`
}

// ExtractionConfig holds completion call and worker pool settings.
type ExtractionConfig struct {
	Timeout               time.Duration `yaml:"timeout"`
	Retries               int           `yaml:"retries"`
	Delay                 time.Duration `yaml:"delay"`
	MaxParallelAttributes int           `yaml:"max_parallel_attributes"`
	AttributeDeadline     time.Duration `yaml:"attribute_deadline"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads .env, the YAML file (if any) and environment overrides, then validates.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // .env is optional

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8000,
			ReadTimeout:      60 * time.Second,
			WriteTimeout:     10 * time.Minute,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
			AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
			MaxUploadBytes:   10 << 20,
		},
		LLM: LLMConfig{
			BaseURL:         "https://api.groq.com/openai/v1",
			Model:           "qwen-qwq-32b",
			Temperature:     0.1,
			MaxOutputTokens: 31550,
		},
		Vision: VisionConfig{
			BaseURL: "https://api.mistral.ai/v1",
			Model:   "mistral-small-latest",
		},
		Embedding: EmbeddingConfig{
			Provider:  "http",
			BaseURL:   "http://localhost:8080/v1",
			Model:     "sentence-transformers/all-MiniLM-L6-v2",
			Dimension: 384,
			BatchSize: 64,
		},
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        30 * time.Minute,
			MaxEntries: 10000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
			},
		},
		Index: IndexConfig{
			Store:      "memory",
			PersistDir: "./chroma_db",
			Normalize:  true,
		},
		Ingestion: IngestionConfig{
			ChunkSize:         5000,
			ChunkOverlap:      75,
			DPI:               300,
			MaxConcurrentDocs: 4,
		},
		Retrieval: RetrievalConfig{
			K: 4,
		},
		Scraping: ScrapingConfig{
			Timeout:  5000 * time.Millisecond,
			Retries:  3,
			Delay:    time.Second,
			Headless: true,
		},
		Extraction: ExtractionConfig{
			Timeout:               30 * time.Second,
			Retries:               2,
			Delay:                 500 * time.Millisecond,
			MaxParallelAttributes: 4,
			AttributeDeadline:     3 * time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	switch c.Index.Store {
	case "memory", "sqlite":
	case "postgres":
		if c.Index.PostgresDSN == "" {
			return fmt.Errorf("index store postgres requires postgres_dsn")
		}
	default:
		return fmt.Errorf("invalid index store: %s", c.Index.Store)
	}

	switch c.Embedding.Provider {
	case "http", "gemini", "hash":
	default:
		return fmt.Errorf("invalid embedding provider: %s", c.Embedding.Provider)
	}

	if c.Embedding.Dimension < 1 {
		return fmt.Errorf("embedding dimension must be positive")
	}

	if c.Ingestion.ChunkSize < 1 {
		return fmt.Errorf("chunk_size must be positive")
	}

	if c.Ingestion.ChunkOverlap < 0 || c.Ingestion.ChunkOverlap >= c.Ingestion.ChunkSize {
		return fmt.Errorf("chunk_overlap must be between 0 and chunk_size")
	}

	if c.Ingestion.DPI <= 0 {
		return fmt.Errorf("dpi must be positive")
	}

	if c.Retrieval.K < 1 {
		return fmt.Errorf("retrieval k must be at least 1")
	}

	if c.Extraction.MaxParallelAttributes < 1 {
		return fmt.Errorf("max_parallel_attributes must be at least 1")
	}

	if c.Extraction.Retries < 0 || c.Scraping.Retries < 0 {
		return fmt.Errorf("retries must not be negative")
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}

	return nil
}

// Warnings lists settings that are valid but leave features unusable.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.LLM.APIKey == "" {
		warnings = append(warnings, "GROQ_API_KEY is not set")
	}
	if c.Vision.APIKey == "" {
		warnings = append(warnings, "MISTRAL_API_KEY is not set")
	}
	if c.Embedding.Provider == "gemini" && c.Embedding.GeminiAPIKey == "" {
		warnings = append(warnings, "GEMINI_API_KEY is not set")
	}
	return warnings
}

// Address returns the host:port the HTTP server listens on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GROQ_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}

	if v := os.Getenv("MISTRAL_API_KEY"); v != "" {
		cfg.Vision.APIKey = v
	}

	if v := os.Getenv("EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}

	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Embedding.GeminiAPIKey = v
	}

	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}

	if v := os.Getenv("VISION_MODEL"); v != "" {
		cfg.Vision.Model = v
	}

	if v := os.Getenv("EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}

	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}

	if v := os.Getenv("EMBEDDING_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "postgres") {
			cfg.Index.Store = "postgres"
			cfg.Index.PostgresDSN = v
		}
	}

	if v := os.Getenv("PERSIST_DIR"); v != "" {
		cfg.Index.PersistDir = v
	}

	if v := os.Getenv("INDEX_STORE"); v != "" {
		cfg.Index.Store = v
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	envInt("SERVER_PORT", &cfg.Server.Port)
	envInt("CHUNK_SIZE", &cfg.Ingestion.ChunkSize)
	envInt("CHUNK_OVERLAP", &cfg.Ingestion.ChunkOverlap)
	envInt("RETRIEVER_K", &cfg.Retrieval.K)
	envInt("MAX_PARALLEL_ATTRIBUTES", &cfg.Extraction.MaxParallelAttributes)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

func envInt(name string, dst *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}
