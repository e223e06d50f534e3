package retriever

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/freightdoc/internal/embedding/embeddingtest"
	"github.com/dgallion1/freightdoc/internal/guardrail"
	"github.com/dgallion1/freightdoc/internal/llm"
	"github.com/dgallion1/freightdoc/internal/store"
	"github.com/dgallion1/freightdoc/internal/store/memory"
	"github.com/dgallion1/freightdoc/internal/terms"
)

var sampleChunks = []string{
	"RATE CONFIRMATION\nCarrier Name: FastFreight Logistics LLC\nTotal Rate: $3,575.00 USD",
	"SHIPPER INFORMATION\nShipper: Acme Manufacturing Inc\nPickup: Chicago, IL",
	"EQUIPMENT TYPE\nEquipment: 53' Dry Van\nWeight: 42,000 lbs",
}

type fakeGenerator struct {
	out  string
	err  error
	reqs []llm.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req llm.Request) (string, error) {
	f.reqs = append(f.reqs, req)
	return f.out, f.err
}

func (f *fakeGenerator) Model() string { return "fake" }

func setup(t *testing.T, gen llm.Generator, cfg Config) *Retriever {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	emb := embeddingtest.NewVocab(256)

	vecs, err := emb.EmbedBatch(ctx, sampleChunks)
	require.NoError(t, err)
	chunks := make([]store.Chunk, len(sampleChunks))
	for i, text := range sampleChunks {
		chunks[i] = store.Chunk{Index: i, Text: text, Vector: vecs[i]}
	}
	require.NoError(t, st.PutDocument(ctx, store.Document{
		ID: "doc-1", Filename: "rc.txt", NumChunks: len(chunks),
		EmbeddingModel: emb.ModelName(), CreatedAt: time.Now(),
	}))
	require.NoError(t, st.Upsert(ctx, "doc-1", chunks))

	return New(cfg, Deps{Documents: st, Index: st, Embedder: emb, Generator: gen})
}

func TestAnswer_UnknownDocument(t *testing.T) {
	r := setup(t, nil, DefaultConfig())
	_, err := r.Answer(context.Background(), "missing", "What is the rate?")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAnswer_DocumentWithoutChunks(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	emb := embeddingtest.NewVocab(64)
	require.NoError(t, st.PutDocument(ctx, store.Document{ID: "empty", EmbeddingModel: emb.ModelName()}))

	r := New(DefaultConfig(), Deps{Documents: st, Index: st, Embedder: emb})
	_, err := r.Answer(ctx, "empty", "What is the rate?")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAnswer_EmbeddingModelMismatch(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, st.PutDocument(ctx, store.Document{ID: "d", EmbeddingModel: "feature-hash-384"}))
	require.NoError(t, st.Upsert(ctx, "d", []store.Chunk{{Index: 0, Text: "x", Vector: []float32{1}}}))

	r := New(DefaultConfig(), Deps{Documents: st, Index: st, Embedder: embeddingtest.NewVocab(8)})
	_, err := r.Answer(ctx, "d", "rate?")
	assert.ErrorIs(t, err, ErrEmbeddingMismatch)
}

func TestAnswer_Generated(t *testing.T) {
	gen := &fakeGenerator{out: "  The total rate is $3,575.00 USD.  "}
	r := setup(t, gen, DefaultConfig())

	ans, err := r.Answer(context.Background(), "doc-1", "What is the carrier rate?")
	require.NoError(t, err)

	assert.Equal(t, MethodGenerated, ans.Method)
	assert.Equal(t, "The total rate is $3,575.00 USD.", ans.Text)
	assert.False(t, ans.GuardrailTriggered)
	assert.InDelta(t, 0.5199, ans.ConfidenceScore, 0.001)
	assert.Equal(t, 1.0, ans.Signals.Coverage)
	assert.Equal(t, 0.0, ans.Signals.Agreement)

	require.Len(t, gen.reqs, 1)
	req := gen.reqs[0]
	assert.Equal(t, 0.1, req.Temperature)
	assert.Equal(t, 500, req.MaxTokens)
	assert.Equal(t, systemPrompt, req.System)
	assert.Contains(t, req.Prompt, "[Chunk 0] (relevance: 0.53)")
	assert.Contains(t, req.Prompt, "Question: What is the carrier rate?")
}

func TestAnswer_SourcesOrdered(t *testing.T) {
	r := setup(t, nil, DefaultConfig())

	ans, err := r.Answer(context.Background(), "doc-1", "What is the carrier rate?")
	require.NoError(t, err)

	require.Len(t, ans.Sources, 3)
	assert.Equal(t, 0, ans.Sources[0].ChunkIndex)
	assert.InDelta(t, 0.5309, ans.Sources[0].SimilarityScore, 0.0002)
	// zero-score ties fall back to chunk order
	assert.Equal(t, 1, ans.Sources[1].ChunkIndex)
	assert.Equal(t, 2, ans.Sources[2].ChunkIndex)
	assert.Equal(t, sampleChunks[0], ans.Sources[0].Text)
}

func TestAnswer_TopKLimitsSources(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TopK = 2
	r := setup(t, nil, cfg)

	ans, err := r.Answer(context.Background(), "doc-1", "What is the carrier rate?")
	require.NoError(t, err)
	assert.Len(t, ans.Sources, 2)
}

func TestAnswer_ExtractiveWhenNoGenerator(t *testing.T) {
	r := setup(t, nil, DefaultConfig())

	ans, err := r.Answer(context.Background(), "doc-1", "What is the carrier rate?")
	require.NoError(t, err)

	assert.Equal(t, MethodExtractive, ans.Method)
	assert.Equal(t, "RATE CONFIRMATION Carrier Name: FastFreight Logistics LLC Total Rate: $3,575.00 USD", ans.Text)
	assert.False(t, ans.GuardrailTriggered)
	assert.InDelta(t, 0.5199, ans.ConfidenceScore, 0.001)
}

func TestAnswer_GenerationFailureFallsBack(t *testing.T) {
	for name, gen := range map[string]*fakeGenerator{
		"error": {err: errors.New("upstream 503")},
		"empty": {out: "   "},
	} {
		t.Run(name, func(t *testing.T) {
			r := setup(t, gen, DefaultConfig())
			ans, err := r.Answer(context.Background(), "doc-1", "What is the carrier rate?")
			require.NoError(t, err)
			assert.Equal(t, MethodExtractive, ans.Method)
			assert.Contains(t, ans.Text, "$3,575.00")
			assert.Len(t, gen.reqs, 1)
		})
	}
}

func TestAnswer_UnrelatedQuestionRefused(t *testing.T) {
	gen := &fakeGenerator{out: "It will be sunny."}
	r := setup(t, gen, DefaultConfig())

	ans, err := r.Answer(context.Background(), "doc-1", "What is the weather?")
	require.NoError(t, err)

	assert.True(t, ans.GuardrailTriggered)
	assert.Equal(t, guardrail.MsgNoRelevantContent, ans.Text)
	assert.Contains(t, ans.GuardrailMessage, "below 0.25")
	assert.Len(t, ans.Sources, 3)
	for _, s := range ans.Sources {
		assert.Zero(t, s.SimilarityScore)
	}
}

func TestAnswer_NonAnswerRefusedForLowConfidence(t *testing.T) {
	gen := &fakeGenerator{out: "Not found in the document."}
	r := setup(t, gen, DefaultConfig())

	ans, err := r.Answer(context.Background(), "doc-1", "What is the carrier rate?")
	require.NoError(t, err)

	assert.True(t, ans.GuardrailTriggered)
	assert.Equal(t, guardrail.MsgLowConfidence, ans.Text)
	assert.Zero(t, ans.Signals.Coverage)
	assert.InDelta(t, 0.1699, ans.ConfidenceScore, 0.001)
}

func TestAnswer_HallucinationFlaggedNotRefused(t *testing.T) {
	out := "Usually the total rate for FastFreight Logistics LLC is $3,575.00 USD."
	r := setup(t, &fakeGenerator{out: out}, DefaultConfig())

	ans, err := r.Answer(context.Background(), "doc-1", "What is the carrier rate?")
	require.NoError(t, err)

	assert.True(t, ans.GuardrailTriggered)
	assert.Equal(t, out, ans.Text)
	assert.Contains(t, ans.GuardrailMessage, `"usually"`)
	assert.InDelta(t, 0.481, ans.ConfidenceScore, 0.001)
}

func TestExtractiveAnswer_KeepsTiesInOrder(t *testing.T) {
	chunk := "Rate one applies. Weight is heavy. Rate two applies.\nRate three applies. Rate four applies."
	got := extractiveAnswer("what rate?", chunk, terms.DefaultStopwords())
	assert.Equal(t, "Rate one applies. Rate two applies. Rate three applies.", got)
}

func TestExtractiveAnswer_PrefersHigherOverlap(t *testing.T) {
	chunk := "The rate is fixed. The carrier rate is $900.00 flat. Carrier arrives Monday."
	got := extractiveAnswer("carrier rate", chunk, terms.DefaultStopwords())
	assert.Equal(t, "The carrier rate is $900.00 flat.", got)
}

func TestExtractiveAnswer_NoOverlapReturnsPreview(t *testing.T) {
	chunk := strings.Repeat("freight ", 100)
	got := extractiveAnswer("weather", chunk, terms.DefaultStopwords())
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, 503, len([]rune(got)))
}
