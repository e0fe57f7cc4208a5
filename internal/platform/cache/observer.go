package cache

import (
	"context"
	"sync/atomic"
	"time"
)

// Observer receives cache events per data category. Implementations must be
// safe for concurrent use.
type Observer interface {
	Hit(ctx context.Context, category string, age time.Duration)
	Miss(ctx context.Context, category string)
	StaleServed(ctx context.Context, category string, age time.Duration, source Source)
	UpstreamCall(ctx context.Context, category string, latency time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) Hit(context.Context, string, time.Duration)                 {}
func (nopObserver) Miss(context.Context, string)                               {}
func (nopObserver) StaleServed(context.Context, string, time.Duration, Source) {}
func (nopObserver) UpstreamCall(context.Context, string, time.Duration, error) {}

// Counters are process-wide totals reported by the internal stats endpoint.
type Counters struct {
	Hits                 int64 `json:"hits"`
	Misses               int64 `json:"misses"`
	StaleServed          int64 `json:"stale_served"`
	UpstreamCalls        int64 `json:"upstream_calls"`
	UpstreamErrors       int64 `json:"upstream_errors"`
	RejectedWrites       int64 `json:"rejected_writes"`
	RevalidationsDropped int64 `json:"revalidations_dropped"`
}

type counters struct {
	hits                 atomic.Int64
	misses               atomic.Int64
	staleServed          atomic.Int64
	upstreamCalls        atomic.Int64
	upstreamErrors       atomic.Int64
	rejectedWrites       atomic.Int64
	revalidationsDropped atomic.Int64
}

func (c *counters) snapshot() Counters {
	return Counters{
		Hits:                 c.hits.Load(),
		Misses:               c.misses.Load(),
		StaleServed:          c.staleServed.Load(),
		UpstreamCalls:        c.upstreamCalls.Load(),
		UpstreamErrors:       c.upstreamErrors.Load(),
		RejectedWrites:       c.rejectedWrites.Load(),
		RevalidationsDropped: c.revalidationsDropped.Load(),
	}
}
