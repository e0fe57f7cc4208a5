package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/riskibarqy/cricket-predictor/internal/platform/cache"
)

func TestCacheMetrics_RecordsWithoutPanicking(t *testing.T) {
	metrics, err := NewCacheMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new cache metrics: %v", err)
	}

	ctx := context.Background()
	metrics.Hit(ctx, "match_info", 3*time.Second)
	metrics.Miss(ctx, "live_overs")
	metrics.StaleServed(ctx, "series_schedule", 2*time.Hour, cache.SourceRevalidating)
	metrics.UpstreamCall(ctx, "scorecard", 120*time.Millisecond, errors.New("503"))
}
