// Package retriever answers questions about one document from its most
// similar chunks, falling back to extractive answers when generation is
// unavailable.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/dgallion1/freightdoc/internal/confidence"
	"github.com/dgallion1/freightdoc/internal/embedding"
	"github.com/dgallion1/freightdoc/internal/guardrail"
	"github.com/dgallion1/freightdoc/internal/llm"
	"github.com/dgallion1/freightdoc/internal/store"
	"github.com/dgallion1/freightdoc/internal/terms"
)

// Answer methods.
const (
	MethodGenerated  = "generated"
	MethodExtractive = "extractive"
)

// ErrEmbeddingMismatch is returned when a document was indexed with a
// different embedding model than the one configured.
var ErrEmbeddingMismatch = errors.New("embedding model mismatch")

// Source is a retrieved chunk cited by an answer.
type Source struct {
	Text            string  `json:"text"`
	ChunkIndex      int     `json:"chunk_index"`
	SimilarityScore float64 `json:"similarity_score"`
}

// Answer is the guarded response to a question.
type Answer struct {
	Text               string               `json:"answer"`
	ConfidenceScore    float64              `json:"confidence_score"`
	Sources            []Source             `json:"sources"`
	GuardrailTriggered bool                 `json:"guardrail_triggered"`
	GuardrailMessage   string               `json:"guardrail_message,omitempty"`
	Method             string               `json:"method"`
	Signals            confidence.Breakdown `json:"confidence_breakdown"`
}

// Config tunes retrieval and generation.
type Config struct {
	TopK              int
	Temperature       float64
	MaxTokens         int
	GenerationTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		TopK:              5,
		Temperature:       0.1,
		MaxTokens:         500,
		GenerationTimeout: 30 * time.Second,
	}
}

// Deps are the collaborators of a Retriever. Generator may be nil.
type Deps struct {
	Documents store.DocumentStore
	Index     store.VectorIndex
	Embedder  embedding.Embedder
	Generator llm.Generator
	Guardrail *guardrail.Evaluator
	Stopwords terms.Set
	Logger    *slog.Logger
}

type Retriever struct {
	cfg       Config
	docs      store.DocumentStore
	index     store.VectorIndex
	embedder  embedding.Embedder
	gen       llm.Generator
	guard     *guardrail.Evaluator
	scorer    confidence.Scorer
	stopwords terms.Set
	log       *slog.Logger
}

// New returns a Retriever. Zero config fields take their defaults.
func New(cfg Config, deps Deps) *Retriever {
	def := DefaultConfig()
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = def.GenerationTimeout
	}
	if deps.Guardrail == nil {
		deps.Guardrail = guardrail.NewEvaluator(guardrail.DefaultConfig())
	}
	if deps.Stopwords == nil {
		deps.Stopwords = terms.DefaultStopwords()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Retriever{
		cfg:       cfg,
		docs:      deps.Documents,
		index:     deps.Index,
		embedder:  deps.Embedder,
		gen:       deps.Generator,
		guard:     deps.Guardrail,
		scorer:    confidence.Scorer{Stopwords: deps.Stopwords},
		stopwords: deps.Stopwords,
		log:       deps.Logger,
	}
}

// Answer retrieves the chunks of documentID most similar to question and
// answers from them. Guardrail refusals are successful answers.
func (r *Retriever) Answer(ctx context.Context, documentID, question string) (Answer, error) {
	log := r.log.With("doc_id", documentID)

	doc, err := r.docs.GetDocument(ctx, documentID)
	if err != nil {
		return Answer{}, err
	}
	n, err := r.index.Count(ctx, documentID)
	if err != nil {
		return Answer{}, fmt.Errorf("count chunks: %w", err)
	}
	if n == 0 {
		return Answer{}, fmt.Errorf("document %s has no chunks: %w", documentID, store.ErrNotFound)
	}
	if doc.EmbeddingModel != "" && doc.EmbeddingModel != r.embedder.ModelName() {
		return Answer{}, fmt.Errorf("%w: document indexed with %q, configured %q",
			ErrEmbeddingMismatch, doc.EmbeddingModel, r.embedder.ModelName())
	}

	qvec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return Answer{}, fmt.Errorf("embed question: %w", err)
	}
	hits, err := r.index.Query(ctx, documentID, qvec, r.cfg.TopK)
	if err != nil {
		return Answer{}, fmt.Errorf("query index: %w", err)
	}

	text, method := r.candidate(ctx, log, question, hits)

	signals := r.scorer.Breakdown(hits, text, question)
	in := guardrail.Input{
		Answer:     text,
		Confidence: signals.Composite,
		HasResults: len(hits) > 0,
	}
	if len(hits) > 0 {
		in.TopSimilarity = hits[0].Score
	}
	outcome := r.guard.Evaluate(in)
	if outcome.Triggered {
		log.Info("guardrail triggered", "gate", outcome.Gate, "refused", outcome.Refused,
			"confidence", signals.Composite, "top_similarity", in.TopSimilarity)
	}

	sources := make([]Source, len(hits))
	for i, h := range hits {
		sources[i] = Source{Text: h.Text, ChunkIndex: h.Index, SimilarityScore: round4(h.Score)}
	}
	return Answer{
		Text:               outcome.Text,
		ConfidenceScore:    signals.Composite,
		Sources:            sources,
		GuardrailTriggered: outcome.Triggered,
		GuardrailMessage:   outcome.Message,
		Method:             method,
		Signals:            signals,
	}, nil
}

// candidate produces the unguarded answer text and the method used.
func (r *Retriever) candidate(ctx context.Context, log *slog.Logger, question string, hits []store.Hit) (string, string) {
	if len(hits) == 0 {
		return "", MethodExtractive
	}
	if r.gen != nil {
		genCtx, cancel := context.WithTimeout(ctx, r.cfg.GenerationTimeout)
		out, err := r.gen.Generate(genCtx, llm.Request{
			System:      systemPrompt,
			Prompt:      buildPrompt(question, hits),
			Temperature: r.cfg.Temperature,
			MaxTokens:   r.cfg.MaxTokens,
		})
		cancel()
		if err == nil && strings.TrimSpace(out) != "" {
			return strings.TrimSpace(out), MethodGenerated
		}
		log.Warn("generation unavailable, using extractive answer", "error", err)
	}
	return extractiveAnswer(question, hits[0].Text, r.stopwords), MethodExtractive
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
