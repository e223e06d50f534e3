package embedding

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// Cached memoizes single-text embeddings, which covers repeated questions.
// Batch calls pass through: chunk text is embedded once at ingestion.
type Cached struct {
	next  Embedder
	cache *cache.Cache
}

var _ Embedder = (*Cached)(nil)

// NewCached wraps next with an expiring cache. Entries live for ttl and are
// purged every ttl/2.
func NewCached(next Embedder, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Cached{next: next, cache: cache.New(ttl, ttl/2)}
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if x, found := c.cache.Get(text); found {
		return clone(x.([]float32)), nil
	}
	v, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, clone(v), cache.DefaultExpiration)
	return v, nil
}

func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return c.next.EmbedBatch(ctx, texts)
}

func (c *Cached) Dimensions() int   { return c.next.Dimensions() }
func (c *Cached) ModelName() string { return c.next.ModelName() }

// Len reports the number of cached entries.
func (c *Cached) Len() int { return c.cache.ItemCount() }

func clone(v []float32) []float32 {
	return append([]float32(nil), v...)
}
