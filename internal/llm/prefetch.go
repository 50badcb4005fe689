package llm

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const prefetchBatchSize = 16

// Prefetcher fetches embeddings for a whole batch of texts ahead of
// clustering. Calls run concurrently in fixed-size chunks behind a rate
// limiter; a failed or timed-out chunk leaves nil embeddings for its texts
// instead of failing the run.
type Prefetcher struct {
	embedder    Embedder
	limiter     *rate.Limiter
	callTimeout time.Duration
}

// NewPrefetcher creates a prefetcher. ratePerSecond <= 0 disables limiting.
func NewPrefetcher(embedder Embedder, ratePerSecond float64, callTimeout time.Duration) *Prefetcher {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return &Prefetcher{
		embedder:    embedder,
		limiter:     limiter,
		callTimeout: callTimeout,
	}
}

// Fetch returns one embedding per input text, in order. Entries are nil for
// texts whose embedding call failed; the caller decides how to degrade.
func (p *Prefetcher) Fetch(ctx context.Context, texts []string) [][]float64 {
	embeddings := make([][]float64, len(texts))
	if p.embedder == nil || len(texts) == 0 {
		return embeddings
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for start := 0; start < len(texts); start += prefetchBatchSize {
		end := start + prefetchBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		start, end := start, end

		g.Go(func() error {
			if err := p.limiter.Wait(gctx); err != nil {
				return err
			}

			callCtx, cancel := context.WithTimeout(gctx, p.callTimeout)
			defer cancel()

			result, err := p.embedder.Embed(callCtx, texts[start:end])
			if err != nil {
				// Degrade this chunk only; the run continues.
				log.Printf("embedding batch [%d:%d] failed: %v", start, end, err)
				return nil
			}
			copy(embeddings[start:end], result)
			return nil
		})
	}

	// Only context cancellation propagates here; embed failures are logged.
	if err := g.Wait(); err != nil {
		log.Printf("embedding prefetch interrupted: %v", err)
	}
	return embeddings
}
