// Package pipeline ties ingestion, question answering and extraction
// together over one document store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/freightdoc/internal/chunker"
	"github.com/dgallion1/freightdoc/internal/embedding"
	"github.com/dgallion1/freightdoc/internal/extract"
	"github.com/dgallion1/freightdoc/internal/retriever"
	"github.com/dgallion1/freightdoc/internal/store"
)

const (
	// MinTextLength is the shortest trimmed document text accepted.
	MinTextLength = 20
	// MaxQuestionLength bounds questions, in runes.
	MaxQuestionLength = 2000
)

// Config controls chunking and embedding fan-out.
type Config struct {
	Chunking           chunker.Config
	EmbedBatchSize     int
	MaxConcurrentEmbed int
}

func DefaultConfig() Config {
	return Config{
		Chunking:           chunker.DefaultConfig(),
		EmbedBatchSize:     32,
		MaxConcurrentEmbed: 4,
	}
}

// Deps are the collaborators of a Service.
type Deps struct {
	Documents store.DocumentStore
	Index     store.VectorIndex
	Embedder  embedding.Embedder
	Retriever *retriever.Retriever
	Extractor *extract.Extractor
	Logger    *slog.Logger
}

// Service is the document pipeline. It is safe for concurrent use.
type Service struct {
	cfg       Config
	docs      store.DocumentStore
	index     store.VectorIndex
	embedder  embedding.Embedder
	retriever *retriever.Retriever
	extractor *extract.Extractor
	log       *slog.Logger
	locks     *keyedMutex
	now       func() time.Time
}

// New returns a Service. Zero batch settings take their defaults.
func New(cfg Config, deps Deps) *Service {
	def := DefaultConfig()
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = def.EmbedBatchSize
	}
	if cfg.MaxConcurrentEmbed <= 0 {
		cfg.MaxConcurrentEmbed = def.MaxConcurrentEmbed
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		cfg:       cfg,
		docs:      deps.Documents,
		index:     deps.Index,
		embedder:  deps.Embedder,
		retriever: deps.Retriever,
		extractor: deps.Extractor,
		log:       deps.Logger,
		locks:     newKeyedMutex(),
		now:       time.Now,
	}
}

// Ingest chunks, embeds and stores text. Re-ingesting an identical file
// returns the stored document unchanged.
func (s *Service) Ingest(ctx context.Context, filename, text string) (store.Document, error) {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < MinTextLength {
		return store.Document{}, &ContentError{Reason: fmt.Sprintf(
			"document text too short: need at least %d characters", MinTextLength)}
	}

	hash := ContentHashHex([]byte(text))
	id := DocumentID(filename, hash)
	log := s.log.With("doc_id", id, "filename", filename)

	unlock := s.locks.Lock(id)
	defer unlock()

	existing, err := s.docs.GetDocument(ctx, id)
	switch {
	case err == nil:
		log.Info("duplicate document, skipping")
		return existing, nil
	case !errors.Is(err, store.ErrNotFound):
		return store.Document{}, fmt.Errorf("dedup check: %w", err)
	}

	texts := chunker.Split(text, s.cfg.Chunking)
	if len(texts) == 0 {
		return store.Document{}, &ContentError{Reason: "no extractable content"}
	}
	log.Info("chunked document", "chunks", len(texts))

	vectors, err := s.embed(ctx, texts)
	if err != nil {
		return store.Document{}, fmt.Errorf("embed chunks: %w", err)
	}

	chunks := make([]store.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = store.Chunk{Index: i, Text: t, Vector: vectors[i]}
	}
	if err := s.index.Upsert(ctx, id, chunks); err != nil {
		s.rollback(log, id)
		return store.Document{}, fmt.Errorf("upsert vectors: %w", err)
	}

	doc := store.Document{
		ID:             id,
		Filename:       filename,
		Text:           text,
		ContentHash:    hash,
		NumChunks:      len(chunks),
		EmbeddingModel: s.embedder.ModelName(),
		CreatedAt:      s.now().UTC(),
	}
	if err := s.docs.PutDocument(ctx, doc); err != nil {
		s.rollback(log, id)
		return store.Document{}, fmt.Errorf("store document: %w", err)
	}
	log.Info("document ingested", "chunks", len(chunks), "embedding_model", doc.EmbeddingModel)
	return doc, nil
}

// embed vectorizes texts in batches with bounded concurrency, preserving order.
func (s *Service) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrentEmbed)

	for start := 0; start < len(texts); start += s.cfg.EmbedBatchSize {
		end := min(start+s.cfg.EmbedBatchSize, len(texts))
		g.Go(func() error {
			out, err := s.embedder.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("batch %d-%d: %w", start, end, err)
			}
			if len(out) != end-start {
				return fmt.Errorf("batch %d-%d: got %d vectors", start, end, len(out))
			}
			copy(vectors[start:end], out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// rollback removes partially written vectors. It runs detached from the
// request context so a cancelled request still cleans up.
func (s *Service) rollback(log *slog.Logger, id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.index.DeleteVectors(ctx, id); err != nil {
		log.Error("rollback failed", "error", err)
	}
}

// Ask answers question about document id.
func (s *Service) Ask(ctx context.Context, id, question string) (retriever.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return retriever.Answer{}, &ValidationError{Field: "question", Reason: "must not be empty"}
	}
	if utf8.RuneCountInString(question) > MaxQuestionLength {
		return retriever.Answer{}, &ValidationError{Field: "question",
			Reason: fmt.Sprintf("must be at most %d characters", MaxQuestionLength)}
	}
	if strings.TrimSpace(id) == "" {
		return retriever.Answer{}, &ValidationError{Field: "document_id", Reason: "must not be empty"}
	}

	ans, err := s.retriever.Answer(ctx, id, question)
	if errors.Is(err, store.ErrNotFound) {
		return retriever.Answer{}, &NotFoundError{ID: id}
	}
	return ans, err
}

// Extract runs structured extraction over the full text of document id.
func (s *Service) Extract(ctx context.Context, id string) (extract.Record, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return extract.Record{}, err
	}
	return s.extractor.Extract(ctx, doc.Text), nil
}

func (s *Service) Get(ctx context.Context, id string) (store.Document, error) {
	doc, err := s.docs.GetDocument(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.Document{}, &NotFoundError{ID: id}
	}
	return doc, err
}

func (s *Service) List(ctx context.Context) ([]store.Document, error) {
	return s.docs.ListDocuments(ctx)
}

// Delete removes a document and its vectors.
func (s *Service) Delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.index.DeleteVectors(ctx, id); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if err := s.docs.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	s.log.Info("document deleted", "doc_id", id)
	return nil
}

// EmbeddingModel names the embedder new documents are indexed with.
func (s *Service) EmbeddingModel() string { return s.embedder.ModelName() }
