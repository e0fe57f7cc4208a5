package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/riskibarqy/cricket-predictor/internal/platform/cache"
	"github.com/riskibarqy/cricket-predictor/internal/platform/resilience"
)

type CacheStats struct {
	Enabled  bool                       `json:"enabled"`
	Backend  string                     `json:"backend"`
	Counters cache.Counters             `json:"counters"`
	Upstream resilience.BreakerSnapshot `json:"upstream_breaker"`
}

type InvalidateResult struct {
	Key     string `json:"key,omitempty"`
	Prefix  string `json:"prefix,omitempty"`
	Removed int    `json:"removed"`
}

// CacheAdminService backs the internal cache endpoints.
type CacheAdminService struct {
	cache   *cache.Client
	backend string
	enabled bool
	breaker func() resilience.BreakerSnapshot
}

func NewCacheAdminService(cacheClient *cache.Client, backend string, enabled bool, breaker func() resilience.BreakerSnapshot) *CacheAdminService {
	if breaker == nil {
		breaker = func() resilience.BreakerSnapshot { return resilience.BreakerSnapshot{State: resilience.CircuitStateClosed} }
	}
	return &CacheAdminService{cache: cacheClient, backend: backend, enabled: enabled, breaker: breaker}
}

func (s *CacheAdminService) Stats(ctx context.Context) CacheStats {
	_, span := startUsecaseSpan(ctx, "usecase.CacheAdminService.Stats")
	defer span.End()

	return CacheStats{
		Enabled:  s.enabled,
		Backend:  s.backend,
		Counters: s.cache.Counters(),
		Upstream: s.breaker(),
	}
}

// Invalidate removes one key or every key under a prefix. Exactly one of
// key and prefix must be set.
func (s *CacheAdminService) Invalidate(ctx context.Context, key, prefix string) (InvalidateResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CacheAdminService.Invalidate")
	defer span.End()

	key = strings.TrimSpace(key)
	prefix = strings.TrimSpace(prefix)
	switch {
	case key != "" && prefix != "":
		return InvalidateResult{}, fmt.Errorf("%w: set key or prefix, not both", ErrInvalidInput)
	case key != "":
		if err := s.cache.Invalidate(ctx, key); err != nil {
			return InvalidateResult{}, fmt.Errorf("invalidate key %s: %w", key, err)
		}
		return InvalidateResult{Key: key, Removed: 1}, nil
	case prefix != "":
		removed, err := s.cache.InvalidatePrefix(ctx, prefix)
		if err != nil {
			return InvalidateResult{}, fmt.Errorf("invalidate prefix %s: %w", prefix, err)
		}
		return InvalidateResult{Prefix: prefix, Removed: removed}, nil
	default:
		return InvalidateResult{}, fmt.Errorf("%w: key or prefix is required", ErrInvalidInput)
	}
}
