package fetch

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// deadlineGrace covers the gap between a fetch hitting its own timeout
// and its result arriving on the channel.
const deadlineGrace = 250 * time.Millisecond

// Orchestrator fans out fetches concurrently and joins on all-complete or
// deadline, whichever comes first. Every goroutine owns exactly one result
// slot (the buffered channel entry), so no locking is needed.
type Orchestrator struct {
	fetcher *Fetcher
	fetchK  int
	timeout time.Duration
	logger  *zap.Logger
}

func NewOrchestrator(fetcher *Fetcher, fetchK int, timeout time.Duration, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		fetcher: fetcher,
		fetchK:  fetchK,
		timeout: timeout,
		logger:  logger,
	}
}

// FetchAll dispatches up to fetchK of the given URLs in parallel and
// returns one Result per dispatched URL, always complete. Fetches still
// outstanding at the deadline are cancelled and recorded as Timeout. The
// parallel dispatch means the whole fan-out is charged one timeout, not
// one per URL.
func (o *Orchestrator) FetchAll(ctx context.Context, urls []string) map[string]Result {
	dispatched := urls
	if len(dispatched) > o.fetchK {
		dispatched = dispatched[:o.fetchK]
	}
	out := make(map[string]Result, len(dispatched))
	if len(dispatched) == 0 {
		return out
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout+deadlineGrace)
	defer cancel()

	results := make(chan Result, len(dispatched))
	for _, u := range dispatched {
		go func(u string) {
			results <- o.fetcher.Fetch(ctx, u)
		}(u)
	}

	start := time.Now()
	collected := 0
	for collected < len(dispatched) {
		select {
		case r := <-results:
			out[r.URL] = r
			collected++
		case <-ctx.Done():
			// Stragglers past the deadline are abandoned, not awaited.
			for _, u := range dispatched {
				if _, ok := out[u]; !ok {
					out[u] = failure(u, ReasonTimeout)
				}
			}
			o.logger.Warn("fetch_fanout_deadline",
				zap.Int("dispatched", len(dispatched)),
				zap.Int("collected", collected),
				zap.Duration("elapsed", time.Since(start)))
			return out
		}
	}

	succeeded := 0
	for _, r := range out {
		if r.OK() {
			succeeded++
		}
	}
	o.logger.Info("fetch_fanout_result",
		zap.Int("dispatched", len(dispatched)),
		zap.Int("succeeded", succeeded),
		zap.Duration("elapsed", time.Since(start)))
	return out
}
