package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/riskibarqy/cricket-predictor/internal/platform/cache"
)

const cacheMeterName = "cricket-predictor/internal/platform/cache"

// CacheMetrics records cache events as OpenTelemetry instruments labelled
// by data category.
type CacheMetrics struct {
	hits            metric.Int64Counter
	misses          metric.Int64Counter
	stale           metric.Int64Counter
	upstreamCalls   metric.Int64Counter
	upstreamLatency metric.Float64Histogram
	entryAge        metric.Float64Histogram
}

var _ cache.Observer = (*CacheMetrics)(nil)

// NewCacheMetrics registers instruments on provider, or the global meter
// provider when provider is nil.
func NewCacheMetrics(provider metric.MeterProvider) (*CacheMetrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(cacheMeterName)

	m := &CacheMetrics{}
	var err error
	if m.hits, err = meter.Int64Counter("cache.hits", metric.WithDescription("Fresh cache hits")); err != nil {
		return nil, err
	}
	if m.misses, err = meter.Int64Counter("cache.misses", metric.WithDescription("Cache misses that required an upstream fetch")); err != nil {
		return nil, err
	}
	if m.stale, err = meter.Int64Counter("cache.stale_served", metric.WithDescription("Responses served from expired or soft-expired entries")); err != nil {
		return nil, err
	}
	if m.upstreamCalls, err = meter.Int64Counter("cache.upstream.calls", metric.WithDescription("Upstream fetches issued by the cache")); err != nil {
		return nil, err
	}
	if m.upstreamLatency, err = meter.Float64Histogram("cache.upstream.latency", metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.entryAge, err = meter.Float64Histogram("cache.entry.age", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *CacheMetrics) Hit(ctx context.Context, category string, age time.Duration) {
	attrs := metric.WithAttributes(attribute.String("category", category))
	m.hits.Add(ctx, 1, attrs)
	m.entryAge.Record(ctx, age.Seconds(), attrs)
}

func (m *CacheMetrics) Miss(ctx context.Context, category string) {
	m.misses.Add(ctx, 1, metric.WithAttributes(attribute.String("category", category)))
}

func (m *CacheMetrics) StaleServed(ctx context.Context, category string, age time.Duration, source cache.Source) {
	attrs := metric.WithAttributes(
		attribute.String("category", category),
		attribute.String("source", string(source)),
	)
	m.stale.Add(ctx, 1, attrs)
	m.entryAge.Record(ctx, age.Seconds(), attrs)
}

func (m *CacheMetrics) UpstreamCall(ctx context.Context, category string, latency time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("category", category),
		attribute.Bool("error", err != nil),
	)
	m.upstreamCalls.Add(ctx, 1, attrs)
	m.upstreamLatency.Record(ctx, float64(latency.Microseconds())/1000, attrs)
}
