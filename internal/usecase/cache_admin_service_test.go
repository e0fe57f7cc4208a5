package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"

	upstreammock "github.com/riskibarqy/cricket-predictor/internal/mocks/domain/upstream"
	"github.com/riskibarqy/cricket-predictor/internal/platform/resilience"
)

func TestCacheAdminService_InvalidatePrefixForcesRefetch(t *testing.T) {
	t.Parallel()

	provider := upstreammock.NewProvider(t)
	provider.On("FetchSeries", mock.Anything, testSeriesID).Return(testSchedule(), nil).Twice()

	gateway := newTestGateway(t, provider)
	admin := NewCacheAdminService(gateway.cache, "memory", true, nil)
	ctx := context.Background()

	if _, _, err := gateway.FetchSeriesMatches(ctx, testSeriesID, "2025-04-10"); err != nil {
		t.Fatalf("first list: %v", err)
	}
	result, err := admin.Invalidate(ctx, "", "series_")
	if err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if result.Removed != 2 {
		t.Fatalf("expected schedule and list keys removed, got %d", result.Removed)
	}
	if _, _, err := gateway.FetchSeriesMatches(ctx, testSeriesID, "2025-04-10"); err != nil {
		t.Fatalf("second list: %v", err)
	}

	stats := admin.Stats(ctx)
	if stats.Counters.UpstreamCalls < 2 || stats.Upstream.State != resilience.CircuitStateClosed {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestCacheAdminService_InvalidateRequiresExactlyOneSelector(t *testing.T) {
	t.Parallel()

	admin := NewCacheAdminService(newTestCache(t), "memory", true, nil)
	for _, tc := range []struct{ key, prefix string }{{"", ""}, {"a", "b"}} {
		if _, err := admin.Invalidate(context.Background(), tc.key, tc.prefix); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("key=%q prefix=%q: expected ErrInvalidInput, got %v", tc.key, tc.prefix, err)
		}
	}
}
