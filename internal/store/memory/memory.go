// Package memory is an in-process store.Store backed by maps.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dgallion1/freightdoc/internal/store"
)

// Store is a thread-safe in-memory document and vector registry.
type Store struct {
	mu     sync.RWMutex
	docs   map[string]store.Document
	chunks map[string]map[int]store.Chunk
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		docs:   make(map[string]store.Document),
		chunks: make(map[string]map[int]store.Chunk),
	}
}

func (s *Store) PutDocument(_ context.Context, doc store.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
	return nil
}

func (s *Store) GetDocument(_ context.Context, id string) (store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return store.Document{}, fmt.Errorf("get %s: %w", id, store.ErrNotFound)
	}
	return doc, nil
}

func (s *Store) ListDocuments(_ context.Context) ([]store.Document, error) {
	s.mu.RLock()
	docs := make([]store.Document, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, d)
	}
	s.mu.RUnlock()
	store.SortDocuments(docs)
	return docs, nil
}

func (s *Store) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	delete(s.chunks, id)
	return nil
}

func (s *Store) Upsert(_ context.Context, docID string, chunks []store.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.chunks[docID]
	if m == nil {
		m = make(map[int]store.Chunk, len(chunks))
		s.chunks[docID] = m
	}
	for _, c := range chunks {
		vec := make([]float32, len(c.Vector))
		copy(vec, c.Vector)
		c.Vector = vec
		m[c.Index] = c
	}
	return nil
}

func (s *Store) Query(_ context.Context, docID string, vector []float32, k int) ([]store.Hit, error) {
	s.mu.RLock()
	m := s.chunks[docID]
	chunks := make([]store.Chunk, 0, len(m))
	for _, c := range m {
		chunks = append(chunks, c)
	}
	s.mu.RUnlock()
	return store.Rank(chunks, vector, k), nil
}

func (s *Store) Count(_ context.Context, docID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks[docID]), nil
}

func (s *Store) DeleteVectors(_ context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, docID)
	return nil
}

func (s *Store) Close() error { return nil }
