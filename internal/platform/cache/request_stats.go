package cache

import (
	"context"
	"sync/atomic"
	"time"
)

type requestStatsKey struct{}

// RequestStats accumulates cache activity for one inbound request.
type RequestStats struct {
	started       time.Time
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
	staleServed   atomic.Int64
	upstreamCalls atomic.Int64
	upstreamNanos atomic.Int64
}

type RequestStatsSnapshot struct {
	CacheHits         int64   `json:"cache_hits"`
	CacheMisses       int64   `json:"cache_misses"`
	StaleServed       int64   `json:"stale_served"`
	UpstreamCalls     int64   `json:"upstream_calls"`
	UpstreamLatencyMs float64 `json:"upstream_latency_ms"`
	TotalLatencyMs    float64 `json:"total_latency_ms"`
}

func WithRequestStats(ctx context.Context) (context.Context, *RequestStats) {
	stats := &RequestStats{started: time.Now()}
	return context.WithValue(ctx, requestStatsKey{}, stats), stats
}

func RequestStatsFrom(ctx context.Context) *RequestStats {
	if ctx == nil {
		return nil
	}
	stats, _ := ctx.Value(requestStatsKey{}).(*RequestStats)
	return stats
}

// withoutRequestStats detaches background work from the request that
// triggered it.
func withoutRequestStats(ctx context.Context) context.Context {
	return context.WithValue(ctx, requestStatsKey{}, (*RequestStats)(nil))
}

func (s *RequestStats) Snapshot() RequestStatsSnapshot {
	if s == nil {
		return RequestStatsSnapshot{}
	}
	return RequestStatsSnapshot{
		CacheHits:         s.cacheHits.Load(),
		CacheMisses:       s.cacheMisses.Load(),
		StaleServed:       s.staleServed.Load(),
		UpstreamCalls:     s.upstreamCalls.Load(),
		UpstreamLatencyMs: roundMs(time.Duration(s.upstreamNanos.Load())),
		TotalLatencyMs:    roundMs(time.Since(s.started)),
	}
}

func roundMs(d time.Duration) float64 {
	return float64(d.Microseconds()/10) / 100
}

func recordHit(ctx context.Context) {
	if s := RequestStatsFrom(ctx); s != nil {
		s.cacheHits.Add(1)
	}
}

func recordMiss(ctx context.Context) {
	if s := RequestStatsFrom(ctx); s != nil {
		s.cacheMisses.Add(1)
	}
}

func recordStale(ctx context.Context) {
	if s := RequestStatsFrom(ctx); s != nil {
		s.staleServed.Add(1)
	}
}

func recordUpstream(ctx context.Context, latency time.Duration) {
	if s := RequestStatsFrom(ctx); s != nil {
		s.upstreamCalls.Add(1)
		s.upstreamNanos.Add(int64(latency))
	}
}
