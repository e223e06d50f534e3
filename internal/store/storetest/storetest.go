// Package storetest holds the behaviour every store.Store backend must share.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/freightdoc/internal/store"
)

// Run exercises a backend. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("DocumentRoundTrip", func(t *testing.T) { testDocumentRoundTrip(t, newStore(t)) })
	t.Run("MissingDocument", func(t *testing.T) { testMissingDocument(t, newStore(t)) })
	t.Run("QueryScopedToDocument", func(t *testing.T) { testQueryScoped(t, newStore(t)) })
	t.Run("UpsertReplacesIndex", func(t *testing.T) { testUpsertReplaces(t, newStore(t)) })
	t.Run("DeleteVectors", func(t *testing.T) { testDeleteVectors(t, newStore(t)) })
}

func sampleDoc(id string, created time.Time) store.Document {
	return store.Document{
		ID:             id,
		Filename:       id + ".txt",
		Text:           "Carrier Name: FastFreight Logistics LLC",
		ContentHash:    "abc123",
		NumChunks:      2,
		EmbeddingModel: "feature-hash-384",
		CreatedAt:      created.UTC().Truncate(time.Millisecond),
	}
}

func testDocumentRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now()
	a := sampleDoc("doc-a", now.Add(-time.Minute))
	b := sampleDoc("doc-b", now)

	require.NoError(t, s.PutDocument(ctx, a))
	require.NoError(t, s.PutDocument(ctx, b))

	got, err := s.GetDocument(ctx, "doc-a")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, a.Filename, got.Filename)
	assert.Equal(t, a.Text, got.Text)
	assert.Equal(t, a.ContentHash, got.ContentHash)
	assert.Equal(t, a.NumChunks, got.NumChunks)
	assert.Equal(t, a.EmbeddingModel, got.EmbeddingModel)
	assert.True(t, a.CreatedAt.Equal(got.CreatedAt), "created_at %v != %v", a.CreatedAt, got.CreatedAt)

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "doc-b", docs[0].ID)
	assert.Equal(t, "doc-a", docs[1].ID)

	require.NoError(t, s.DeleteDocument(ctx, "doc-a"))
	_, err = s.GetDocument(ctx, "doc-a")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func testMissingDocument(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, err := s.GetDocument(ctx, "nope")
	assert.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)

	n, err := s.Count(ctx, "nope")
	require.NoError(t, err)
	assert.Zero(t, n)

	hits, err := s.Query(ctx, "nope", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func testQueryScoped(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "doc-a", []store.Chunk{
		{Index: 0, Text: "a0", Vector: []float32{1, 0, 0}},
		{Index: 1, Text: "a1", Vector: []float32{0, 1, 0}},
	}))
	require.NoError(t, s.Upsert(ctx, "doc-b", []store.Chunk{
		{Index: 0, Text: "b0", Vector: []float32{1, 0, 0}},
		{Index: 1, Text: "b1", Vector: []float32{1, 0, 0}},
		{Index: 2, Text: "b2", Vector: []float32{0.9, 0.1, 0}},
	}))

	for k := 1; k <= 5; k++ {
		hits, err := s.Query(ctx, "doc-a", []float32{1, 0, 0}, k)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(hits), k)
		for _, h := range hits {
			assert.Contains(t, []string{"a0", "a1"}, h.Text, "k=%d leaked chunk %q", k, h.Text)
		}
	}

	hits, err := s.Query(ctx, "doc-b", []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 0, hits[0].Index)
	assert.Equal(t, 1, hits[1].Index)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)

	n, err := s.Count(ctx, "doc-b")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func testUpsertReplaces(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "doc", []store.Chunk{{Index: 0, Text: "old", Vector: []float32{1, 0}}}))
	require.NoError(t, s.Upsert(ctx, "doc", []store.Chunk{{Index: 0, Text: "new", Vector: []float32{0, 1}}}))

	hits, err := s.Query(ctx, "doc", []float32{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "new", hits[0].Text)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
}

func testDeleteVectors(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "doc-a", []store.Chunk{{Index: 0, Text: "a", Vector: []float32{1}}}))
	require.NoError(t, s.Upsert(ctx, "doc-b", []store.Chunk{{Index: 0, Text: "b", Vector: []float32{1}}}))

	require.NoError(t, s.DeleteVectors(ctx, "doc-a"))

	n, err := s.Count(ctx, "doc-a")
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = s.Count(ctx, "doc-b")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
