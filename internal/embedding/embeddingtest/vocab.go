// Package embeddingtest provides a collision-free embedder for tests.
package embeddingtest

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/dgallion1/freightdoc/internal/embedding"
	"github.com/dgallion1/freightdoc/internal/terms"
)

// Vocab gives every distinct significant token its own dimension, weighted
// 1+ln(tf) and L2-normalized like embedding.HashEmbedder. Cosine similarity
// is therefore exact weighted term overlap.
type Vocab struct {
	dims      int
	stopwords terms.Set

	mu    sync.Mutex
	index map[string]int
}

var _ embedding.Embedder = (*Vocab)(nil)

func NewVocab(dims int) *Vocab {
	return &Vocab{dims: dims, stopwords: terms.DefaultStopwords(), index: make(map[string]int)}
}

func (v *Vocab) Embed(_ context.Context, text string) ([]float32, error) {
	return v.vector(text)
}

func (v *Vocab) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := v.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (v *Vocab) Dimensions() int   { return v.dims }
func (v *Vocab) ModelName() string { return "vocab-test" }

func (v *Vocab) vector(text string) ([]float32, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	counts := make(map[int]int)
	for _, tok := range terms.Tokenize(text) {
		if len(tok) < 2 || v.stopwords.Contains(tok) {
			continue
		}
		i, ok := v.index[tok]
		if !ok {
			if len(v.index) == v.dims {
				return nil, fmt.Errorf("vocabulary exceeds %d dimensions", v.dims)
			}
			i = len(v.index)
			v.index[tok] = i
		}
		counts[i]++
	}
	vec := make([]float32, v.dims)
	for i, n := range counts {
		vec[i] = float32(1 + math.Log(float64(n)))
	}
	embedding.Normalize(vec)
	return vec, nil
}
