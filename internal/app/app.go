// Package app wires configuration into a running pipeline. Both binaries
// build their dependencies through it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/freightdoc/internal/chunker"
	"github.com/dgallion1/freightdoc/internal/config"
	"github.com/dgallion1/freightdoc/internal/embedding"
	"github.com/dgallion1/freightdoc/internal/extract"
	"github.com/dgallion1/freightdoc/internal/guardrail"
	"github.com/dgallion1/freightdoc/internal/llm"
	"github.com/dgallion1/freightdoc/internal/pipeline"
	"github.com/dgallion1/freightdoc/internal/retriever"
	"github.com/dgallion1/freightdoc/internal/store"
	"github.com/dgallion1/freightdoc/internal/store/memory"
	"github.com/dgallion1/freightdoc/internal/store/redisstore"
	"github.com/dgallion1/freightdoc/internal/store/sqlite"
	"github.com/dgallion1/freightdoc/internal/terms"
)

// App holds the wired pipeline and the resources it owns.
type App struct {
	Service *pipeline.Service
	// Generator is nil when LLM_PROVIDER=none.
	Generator *llm.Instrumented

	closers []func()
}

// New builds every dependency described by cfg. The caller must Close the
// returned App.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	a := &App{}

	stopwords := terms.DefaultStopwords()
	if cfg.StopwordsFile != "" {
		sw, err := terms.LoadStopwords(cfg.StopwordsFile)
		if err != nil {
			return nil, err
		}
		stopwords = sw
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() {
		if err := st.Close(); err != nil {
			log.Warn("close store", "error", err)
		}
	})

	emb, err := a.embedder(cfg, stopwords)
	if err != nil {
		a.Close()
		return nil, err
	}

	var gen llm.Generator
	if g, err := a.generator(cfg, log); err != nil {
		a.Close()
		return nil, err
	} else if g != nil {
		a.Generator = g
		gen = g
	}

	guardCfg := guardrail.Config{
		RetrievalFloor:       cfg.RetrievalFloor,
		ConfidenceThreshold:  cfg.ConfidenceThreshold,
		HallucinationPhrases: cfg.HallucinationPhrases,
	}
	if len(guardCfg.HallucinationPhrases) == 0 {
		guardCfg.HallucinationPhrases = guardrail.DefaultHallucinationPhrases
	}

	r := retriever.New(retriever.Config{
		TopK:              cfg.TopK,
		Temperature:       cfg.GenerationTemperature,
		GenerationTimeout: cfg.GenerationTimeout,
	}, retriever.Deps{
		Documents: st,
		Index:     st,
		Embedder:  emb,
		Generator: gen,
		Guardrail: guardrail.NewEvaluator(guardCfg),
		Stopwords: stopwords,
		Logger:    log,
	})

	pcfg := pipeline.DefaultConfig()
	pcfg.Chunking = chunker.Config{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		MinChunk:     chunker.DefaultConfig().MinChunk,
	}
	a.Service = pipeline.New(pcfg, pipeline.Deps{
		Documents: st,
		Index:     st,
		Embedder:  emb,
		Retriever: r,
		Extractor: extract.New(gen, cfg.GenerationTimeout, log),
		Logger:    log,
	})

	log.Info("pipeline ready",
		"store", cfg.StoreBackend,
		"embedding_model", emb.ModelName(),
		"llm_provider", cfg.LLMProvider,
	)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case "", "memory":
		return memory.New(), nil
	case "sqlite":
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	case "redis":
		s, err := redisstore.New(ctx, redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func (a *App) embedder(cfg config.Config, stopwords terms.Set) (embedding.Embedder, error) {
	var base embedding.Embedder
	switch cfg.EmbeddingProvider {
	case "", "local":
		base = embedding.NewHashEmbedder(cfg.EmbeddingDim, stopwords)
	case "openai":
		e, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.EmbeddingModel,
			Timeout: cfg.EmbedTimeout,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, e.Close)
		base = e
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
	// The question embedding is the only per-request call; chunk batches
	// pass through uncached.
	return embedding.NewCached(base, 30*time.Minute), nil
}

func (a *App) generator(cfg config.Config, log *slog.Logger) (*llm.Instrumented, error) {
	var next llm.Generator
	switch cfg.LLMProvider {
	case "none":
		return nil, nil
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, errors.New("anthropic: API key is required")
		}
		c := llm.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.GenerationTimeout)
		a.closers = append(a.closers, c.Close)
		next = c
	case "openai":
		c, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.GenerationTimeout,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, c.Close)
		next = c
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
	return llm.NewInstrumented(next, cfg.LLMRatePerSec, log), nil
}
