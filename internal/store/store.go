// Package store defines document and vector persistence. Every vector
// operation is scoped to a single document id.
package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/dgallion1/freightdoc/internal/embedding"
)

// ErrNotFound is returned when a document id is unknown.
var ErrNotFound = errors.New("document not found")

// Document is an ingested file. It is immutable once stored.
type Document struct {
	ID             string    `json:"document_id"`
	Filename       string    `json:"filename"`
	Text           string    `json:"-"`
	ContentHash    string    `json:"content_hash"`
	NumChunks      int       `json:"num_chunks"`
	EmbeddingModel string    `json:"embedding_model"`
	CreatedAt      time.Time `json:"created_at"`
}

// Chunk is one retrieval unit of a document.
type Chunk struct {
	Index  int
	Text   string
	Vector []float32
}

// Hit is a chunk returned by a similarity query.
type Hit struct {
	Index int
	Text  string
	Score float64
}

// DocumentStore persists document metadata.
type DocumentStore interface {
	PutDocument(ctx context.Context, doc Document) error
	GetDocument(ctx context.Context, id string) (Document, error)
	ListDocuments(ctx context.Context) ([]Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

// VectorIndex stores chunk vectors and answers document-scoped cosine queries.
type VectorIndex interface {
	// Upsert writes chunks for docID, replacing any with the same index.
	Upsert(ctx context.Context, docID string, chunks []Chunk) error
	// Query returns at most k chunks of docID ordered by descending cosine
	// similarity, ties by ascending chunk index.
	Query(ctx context.Context, docID string, vector []float32, k int) ([]Hit, error)
	Count(ctx context.Context, docID string) (int, error)
	DeleteVectors(ctx context.Context, docID string) error
}

// Store is a backend providing both documents and vectors.
type Store interface {
	DocumentStore
	VectorIndex
	Close() error
}

// Rank scores chunks against vector and returns the top k hits.
func Rank(chunks []Chunk, vector []float32, k int) []Hit {
	if k <= 0 || len(chunks) == 0 {
		return nil
	}
	hits := make([]Hit, 0, len(chunks))
	for _, c := range chunks {
		hits = append(hits, Hit{
			Index: c.Index,
			Text:  c.Text,
			Score: embedding.Cosine(vector, c.Vector),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Index < hits[j].Index
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// SortDocuments orders documents newest first, then by id.
func SortDocuments(docs []Document) {
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
}
