package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/freightdoc/internal/embedding"
	"github.com/dgallion1/freightdoc/internal/embedding/embeddingtest"
	"github.com/dgallion1/freightdoc/internal/extract"
	"github.com/dgallion1/freightdoc/internal/guardrail"
	"github.com/dgallion1/freightdoc/internal/retriever"
	"github.com/dgallion1/freightdoc/internal/store"
	"github.com/dgallion1/freightdoc/internal/store/memory"
)

const sampleDoc = `RATE CONFIRMATION
Load Number: LD-48213
Carrier Name: FastFreight Logistics LLC
Total Rate: $3,575.00 USD

SHIPPER INFORMATION
Shipper: Acme Manufacturing Inc
Pickup Date: 03/14/2024 08:00

CONSIGNEE INFORMATION
Consignee: Midwest Distribution Co
Delivery Date: 03/16/2024 14:00

EQUIPMENT DETAILS
Equipment: 53' Dry Van
Mode: FTL
Weight: 42,000 lbs
`

type countingEmbedder struct {
	embedding.Embedder
	batches atomic.Int32
	fail    error
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batches.Add(1)
	if c.fail != nil {
		return nil, c.fail
	}
	return c.Embedder.EmbedBatch(ctx, texts)
}

// failingDocs fails PutDocument after the vectors were written.
type failingDocs struct {
	*memory.Store
}

func (f failingDocs) PutDocument(context.Context, store.Document) error {
	return errors.New("disk full")
}

type fixture struct {
	svc   *Service
	st    *memory.Store
	embed *countingEmbedder
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	st := memory.New()
	emb := &countingEmbedder{Embedder: embeddingtest.NewVocab(256)}
	r := retriever.New(retriever.DefaultConfig(), retriever.Deps{Documents: st, Index: st, Embedder: emb})
	svc := New(cfg, Deps{
		Documents: st,
		Index:     st,
		Embedder:  emb,
		Retriever: r,
		Extractor: extract.New(nil, 0, nil),
	})
	return &fixture{svc: svc, st: st, embed: emb}
}

func TestIngest_RejectsShortText(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	for _, text := range []string{"", "   \n\t", "too short text", "   nineteen chars!!   "} {
		_, err := f.svc.Ingest(context.Background(), "a.txt", text)
		var ce *ContentError
		require.ErrorAs(t, err, &ce, "text %q", text)
	}
	assert.Zero(t, f.embed.batches.Load())
}

func TestIngest_NoChunksIsContentError(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	_, err := f.svc.Ingest(context.Background(), "a.txt", "NOTES\nok\nTERMS\nfine\nMORE\nyes\nNOTED\nfine")
	var ce *ContentError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "no extractable content", ce.Reason)
}

func TestIngest_StoresDocumentAndChunks(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	doc, err := f.svc.Ingest(ctx, "rc.txt", sampleDoc)
	require.NoError(t, err)

	assert.Equal(t, DocumentID("rc.txt", ContentHashHex([]byte(sampleDoc))), doc.ID)
	assert.Equal(t, 7, doc.NumChunks)
	assert.Equal(t, "vocab-test", doc.EmbeddingModel)
	assert.Equal(t, sampleDoc, doc.Text)

	n, err := f.st.Count(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestIngest_Idempotent(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	f.svc.now = func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }

	first, err := f.svc.Ingest(ctx, "rc.txt", sampleDoc)
	require.NoError(t, err)
	batches := f.embed.batches.Load()

	f.svc.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	second, err := f.svc.Ingest(ctx, "rc.txt", sampleDoc)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, batches, f.embed.batches.Load(), "duplicate must not re-embed")

	other, err := f.svc.Ingest(ctx, "copy.txt", sampleDoc)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestIngest_EmbedsInBatches(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EmbedBatchSize = 2
	cfg.MaxConcurrentEmbed = 3
	f := newFixture(t, cfg)
	ctx := context.Background()

	doc, err := f.svc.Ingest(ctx, "rc.txt", sampleDoc)
	require.NoError(t, err)
	assert.Equal(t, int32(4), f.embed.batches.Load())

	// a zero query vector ties every chunk, so all come back in index order
	all, err := f.st.Query(ctx, doc.ID, make([]float32, f.embed.Dimensions()), doc.NumChunks)
	require.NoError(t, err)
	require.Len(t, all, doc.NumChunks)
	for i, h := range all {
		require.Equal(t, i, h.Index)
		v, err := f.embed.Embed(ctx, h.Text)
		require.NoError(t, err)
		top, err := f.st.Query(ctx, doc.ID, v, 1)
		require.NoError(t, err)
		assert.Equal(t, i, top[0].Index, "vector stored under chunk %d belongs elsewhere", i)
	}
}

func TestIngest_EmbedFailureStoresNothing(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.embed.fail = errors.New("embedding service down")
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, "rc.txt", sampleDoc)
	require.Error(t, err)

	docs, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestIngest_RollsBackVectorsWhenDocumentWriteFails(t *testing.T) {
	st := memory.New()
	emb := embeddingtest.NewVocab(256)
	svc := New(DefaultConfig(), Deps{Documents: failingDocs{st}, Index: st, Embedder: emb})
	ctx := context.Background()

	_, err := svc.Ingest(ctx, "rc.txt", sampleDoc)
	require.Error(t, err)

	n, err := st.Count(ctx, DocumentID("rc.txt", ContentHashHex([]byte(sampleDoc))))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIngest_ConcurrentSameAndDifferentDocuments(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 16)
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := fmt.Sprintf("rc-%d.txt", i%4)
			doc, err := f.svc.Ingest(ctx, name, sampleDoc)
			assert.NoError(t, err)
			ids[i] = doc.ID
		}()
	}
	wg.Wait()

	for i := range ids {
		assert.Equal(t, ids[i%4], ids[i])
		n, err := f.st.Count(ctx, ids[i])
		require.NoError(t, err)
		assert.Equal(t, 7, n)
	}
	docs, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 4)
	assert.Zero(t, f.svc.locks.size())
}

func TestAsk_EndToEnd(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	doc, err := f.svc.Ingest(ctx, "rc.txt", sampleDoc)
	require.NoError(t, err)

	ans, err := f.svc.Ask(ctx, doc.ID, "What is the carrier rate?")
	require.NoError(t, err)

	assert.Contains(t, ans.Text, "3,575")
	assert.GreaterOrEqual(t, ans.ConfidenceScore, 0.45)
	assert.InDelta(t, 0.5948, ans.ConfidenceScore, 0.001)
	assert.False(t, ans.GuardrailTriggered)
	assert.Equal(t, retriever.MethodExtractive, ans.Method)
	require.NotEmpty(t, ans.Sources)
	assert.Equal(t, 1, ans.Sources[0].ChunkIndex)
}

func TestAsk_UnrelatedQuestionRefused(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	doc, err := f.svc.Ingest(ctx, "rc.txt", sampleDoc)
	require.NoError(t, err)

	ans, err := f.svc.Ask(ctx, doc.ID, "What is the weather?")
	require.NoError(t, err)
	assert.True(t, ans.GuardrailTriggered)
	assert.Equal(t, guardrail.MsgNoRelevantContent, ans.Text)
}

func TestAsk_Errors(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	var ve *ValidationError
	_, err := f.svc.Ask(ctx, "some-id", "   ")
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "question", ve.Field)

	_, err = f.svc.Ask(ctx, "", "What is the rate?")
	require.ErrorAs(t, err, &ve)

	var nf *NotFoundError
	_, err = f.svc.Ask(ctx, "missing", "What is the rate?")
	require.ErrorAs(t, err, &nf)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestExtract_EndToEnd(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	doc, err := f.svc.Ingest(ctx, "rc.txt", sampleDoc)
	require.NoError(t, err)

	rec, err := f.svc.Extract(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, rec.Shipment.Rate)
	assert.Equal(t, "3575.00", *rec.Shipment.Rate)
	assert.Equal(t, "USD", *rec.Shipment.Currency)
	assert.Equal(t, "FastFreight Logistics LLC", *rec.Shipment.CarrierName)
	assert.Equal(t, extract.MethodPattern, rec.Method)

	_, err = f.svc.Extract(ctx, "missing")
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestDelete(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	doc, err := f.svc.Ingest(ctx, "rc.txt", sampleDoc)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, doc.ID))

	_, err = f.svc.Get(ctx, doc.ID)
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
	n, err := f.st.Count(ctx, doc.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.ErrorAs(t, f.svc.Delete(ctx, doc.ID), &nf)
}
