package llm

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/dgallion1/freightdoc/internal/retry"
)

// Instrumented wraps a Generator with rate limiting, retries on transient
// failures, latency stats, and logging.
type Instrumented struct {
	next    Generator
	limiter *rate.Limiter
	stats   *CallStats
	log     *slog.Logger
	wait    func(int) time.Duration
}

var _ Generator = (*Instrumented)(nil)

// NewInstrumented limits calls to ratePerSec (unlimited when <= 0).
func NewInstrumented(next Generator, ratePerSec float64, log *slog.Logger) *Instrumented {
	limit := rate.Inf
	burst := 1
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
		burst = max(1, int(ratePerSec))
	}
	if log == nil {
		log = slog.Default()
	}
	return &Instrumented{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
		stats:   NewCallStats(time.Hour),
		log:     log.With("model", next.Model()),
	}
}

func (g *Instrumented) Model() string { return g.next.Model() }

// Stats returns the rolling call statistics.
func (g *Instrumented) Stats() StatsSnapshot {
	snap := g.stats.Snapshot()
	snap.Model = g.next.Model()
	return snap
}

func (g *Instrumented) Generate(ctx context.Context, req Request) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	start := time.Now()
	var out string
	err := retry.Do(ctx, g.wait, func(ctx context.Context) error {
		var err error
		out, err = g.next.Generate(ctx, req)
		if err != nil && retry.IsRetryable(err) {
			g.log.Warn("retrying generation", "error", err)
		}
		return err
	})
	elapsed := time.Since(start)
	g.stats.Record(elapsed, err)

	if err != nil {
		g.log.Warn("generation failed", "error", err, "duration_ms", elapsed.Milliseconds())
		return "", err
	}
	g.log.Debug("generation complete", "duration_ms", elapsed.Milliseconds(), "chars", len(out))
	return out, nil
}
