package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string

	// Auth. Empty disables bearer auth on the HTTP surface.
	APIKey string

	// Generation
	LLMProvider           string
	AnthropicAPIKey       string
	AnthropicModel        string
	OpenAIAPIKey          string
	OpenAIBaseURL         string
	OpenAIModel           string
	GenerationTemperature float64
	GenerationTimeout     time.Duration
	LLMRatePerSec         float64

	// Embeddings
	EmbeddingProvider string
	EmbeddingModel    string
	EmbeddingDim      int
	EmbedTimeout      time.Duration

	// Storage
	StoreBackend  string
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Upload limits
	MaxUploadBytes int64

	// Chunking
	ChunkSize    int
	ChunkOverlap int

	// Retrieval and guardrails
	TopK                 int
	ConfidenceThreshold  float64
	RetrievalFloor       float64
	StopwordsFile        string
	HallucinationPhrases []string

	// Logging
	LogFile  string
	LogLevel string

	// PDF
	PDFFallbackPdftotext bool
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8000"),

		APIKey: os.Getenv("API_KEY"),

		LLMProvider:           strings.ToLower(envOr("LLM_PROVIDER", defaultLLMProvider())),
		AnthropicAPIKey:       os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:        envOr("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
		OpenAIAPIKey:          os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:         envOr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:           envOr("OPENAI_MODEL", "gpt-4o-mini"),
		GenerationTemperature: envFloat("GENERATION_TEMPERATURE", 0.1),
		GenerationTimeout:     envDuration("GENERATION_TIMEOUT", 30*time.Second),
		LLMRatePerSec:         envFloat("LLM_RATE_PER_SEC", 5),

		EmbeddingProvider: strings.ToLower(envOr("EMBEDDING_PROVIDER", "local")),
		EmbeddingModel:    os.Getenv("EMBEDDING_MODEL"),
		EmbeddingDim:      envInt("EMBEDDING_DIM", 384),
		EmbedTimeout:      envDuration("EMBED_TIMEOUT", 30*time.Second),

		StoreBackend:  strings.ToLower(envOr("STORE_BACKEND", "memory")),
		SQLitePath:    envOr("SQLITE_PATH", "freightdoc.db"),
		RedisAddr:     envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 20971520), // 20MB

		ChunkSize:    envInt("CHUNK_SIZE", 512),
		ChunkOverlap: envInt("CHUNK_OVERLAP", 64),

		TopK:                 envInt("TOP_K_RESULTS", 5),
		ConfidenceThreshold:  envFloat("CONFIDENCE_THRESHOLD", 0.45),
		RetrievalFloor:       envFloat("RETRIEVAL_FLOOR", 0.25),
		StopwordsFile:        os.Getenv("STOPWORDS_FILE"),
		HallucinationPhrases: envList("HALLUCINATION_PHRASES"),

		LogFile:  os.Getenv("LOG_FILE"),
		LogLevel: envOr("LOG_LEVEL", "info"),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 30 * time.Second
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = 30 * time.Second
	}
	if cfg.EmbeddingDim <= 0 {
		cfg.EmbeddingDim = 384
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20971520
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 512
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 64
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		cfg.ConfidenceThreshold = 0.45
	}
	if cfg.RetrievalFloor < 0 || cfg.RetrievalFloor > 1 {
		cfg.RetrievalFloor = 0.25
	}

	return cfg
}

func (c Config) Validate() error {
	switch c.LLMProvider {
	case "none":
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when LLM_PROVIDER=anthropic")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}

	switch c.EmbeddingProvider {
	case "local":
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when EMBEDDING_PROVIDER=openai")
		}
	default:
		return fmt.Errorf("unknown EMBEDDING_PROVIDER %q", c.EmbeddingProvider)
	}

	switch c.StoreBackend {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// defaultLLMProvider falls back to the extractive and pattern paths when no
// Anthropic key is present.
func defaultLLMProvider() string {
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		return "none"
	}
	return "anthropic"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList splits a comma-separated variable, dropping empty items.
func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
