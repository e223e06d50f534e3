package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"slices"
	"strings"

	"github.com/dgallion1/freightdoc/internal/terms"
)

const DefaultHashDimensions = 384

// HashEmbedder is a local, dependency-free embedder. Each significant token
// is hashed to a bucket and a sign, weighted by sublinear term frequency,
// and the result is L2-normalized. Tokens sharing a bucket with opposite
// signs cancel instead of reinforcing each other, so cosine similarity
// tracks weighted term overlap.
type HashEmbedder struct {
	dims      int
	stopwords terms.Set
	model     string
}

var _ Embedder = (*HashEmbedder)(nil)

// NewHashEmbedder returns a HashEmbedder with dims buckets. A nil stopword
// set uses terms.DefaultStopwords.
func NewHashEmbedder(dims int, stopwords terms.Set) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultHashDimensions
	}
	if stopwords == nil {
		stopwords = terms.DefaultStopwords()
	}
	return &HashEmbedder{
		dims:      dims,
		stopwords: stopwords,
		model:     fmt.Sprintf("feature-hash-%d-%s", dims, stopwordDigest(stopwords)),
	}
}

func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return h.vector(text), nil
}

func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *HashEmbedder) Dimensions() int { return h.dims }

// ModelName encodes the dimension count and the stopword set, both of which
// shape the vector space.
func (h *HashEmbedder) ModelName() string { return h.model }

func (h *HashEmbedder) vector(text string) []float32 {
	counts := make(map[string]int)
	for _, tok := range terms.Tokenize(text) {
		if len(tok) < 2 || h.stopwords.Contains(tok) {
			continue
		}
		counts[tok]++
	}
	v := make([]float32, h.dims)
	for tok, n := range counts {
		b, sign := h.bucket(tok)
		v[b] += sign * float32(1+math.Log(float64(n)))
	}
	Normalize(v)
	return v
}

// bucket maps tok to an index from the low bits of its FNV-64a hash and to a
// sign from the top bit.
func (h *HashEmbedder) bucket(tok string) (int, float32) {
	f := fnv.New64a()
	f.Write([]byte(tok))
	sum := f.Sum64()
	sign := float32(1)
	if sum>>63 == 1 {
		sign = -1
	}
	return int(sum % uint64(h.dims)), sign
}

func stopwordDigest(sw terms.Set) string {
	words := make([]string, 0, len(sw))
	for w := range sw {
		words = append(words, w)
	}
	slices.Sort(words)
	f := fnv.New32a()
	f.Write([]byte(strings.Join(words, "\n")))
	return fmt.Sprintf("%08x", f.Sum32())
}
