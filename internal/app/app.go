package app

import (
	"context"
	"fmt"
	"net/http"

	crerr "github.com/cockroachdb/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/riskibarqy/cricket-predictor/external/cricbuzz"
	"github.com/riskibarqy/cricket-predictor/internal/config"
	"github.com/riskibarqy/cricket-predictor/internal/domain/prior"
	"github.com/riskibarqy/cricket-predictor/internal/domain/upstream"
	"github.com/riskibarqy/cricket-predictor/internal/interfaces/httpapi"
	"github.com/riskibarqy/cricket-predictor/internal/observability"
	"github.com/riskibarqy/cricket-predictor/internal/platform/cache"
	"github.com/riskibarqy/cricket-predictor/internal/platform/logging"
	"github.com/riskibarqy/cricket-predictor/internal/platform/resilience"
	"github.com/riskibarqy/cricket-predictor/internal/usecase"
)

// App owns the HTTP server and the long-lived resources behind it.
type App struct {
	Server *http.Server
	cache  *cache.Client
	cancel context.CancelFunc
}

// Close stops background work and releases the cache backend.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	a.cancel()
	return a.cache.Close()
}

func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	backend, err := newCacheBackend(ctx, bgCtx, cfg, logger)
	if err != nil {
		cancel()
		return nil, err
	}

	metrics, err := observability.NewCacheMetrics(nil)
	if err != nil {
		cancel()
		_ = backend.Close()
		return nil, fmt.Errorf("register cache metrics: %w", err)
	}

	cacheClient, err := cache.NewClient(backend, cache.ClientConfig{
		Enabled:        cfg.CacheEnabled,
		Namespace:      cfg.CacheNamespace,
		Version:        cfg.CacheVersion,
		FetchTimeout:   cfg.CacheFetchTimeout,
		CallTimeout:    cfg.CacheCallTimeout,
		RefreshWorkers: cfg.CacheRefreshWorkers,
	}, cache.WithLogger(logger.Named("cache")), cache.WithObserver(metrics))
	if err != nil {
		cancel()
		_ = backend.Close()
		return nil, err
	}

	provider, breaker := newProvider(cfg, logger)

	gateway := usecase.NewDataGateway(provider, cacheClient, cacheTiers(cfg), usecase.WithGatewayLogger(logger.Named("gateway")))
	matchSvc := usecase.NewMatchService(gateway, logger)
	featureSvc := usecase.NewFeatureService(gateway, matchSvc, cfg.FeatureWorkers, logger)
	predictionSvc := usecase.NewPredictionService(matchSvc, featureSvc, prior.NewResolver(priorConfig(cfg)), logger)
	cacheAdmin := usecase.NewCacheAdminService(cacheClient, cfg.CacheBackend, cfg.CacheEnabled, breaker)

	handler := httpapi.NewHandler(matchSvc, predictionSvc, cacheAdmin, cfg.IPLSeriesID, logger)
	router := httpapi.NewRouter(handler, logger, cfg.CORSAllowedOrigins, cfg.InternalJobToken)

	logger.Info("app wired",
		"cache_backend", cfg.CacheBackend,
		"cache_enabled", cfg.CacheEnabled,
		"upstream_enabled", cfg.CricbuzzEnabled,
		"default_series_id", cfg.IPLSeriesID,
	)

	return &App{
		Server: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		cache:  cacheClient,
		cancel: cancel,
	}, nil
}

func newCacheBackend(ctx, bgCtx context.Context, cfg config.Config, logger *logging.Logger) (cache.Backend, error) {
	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		store, err := cache.NewRedisStoreFromURL(ctx, cfg.CacheRedisURL, cfg.CacheStaleRetention)
		if err != nil {
			return nil, fmt.Errorf("connect redis cache: %w", err)
		}
		return store, nil
	default:
		store := cache.NewMemoryStore(cfg.CacheStaleRetention)
		store.StartSweeper(bgCtx, cfg.CacheSweepInterval, func(removed int) {
			logger.Debug("cache sweep", "removed", removed)
		})
		return store, nil
	}
}

func newProvider(cfg config.Config, logger *logging.Logger) (upstream.Provider, func() resilience.BreakerSnapshot) {
	if !cfg.CricbuzzEnabled {
		logger.Warn("upstream disabled", "reason", "CRICBUZZ_ENABLED=false")
		return disabledProvider{}, nil
	}

	client := cricbuzz.NewClient(cricbuzz.ClientConfig{
		HTTPClient: &http.Client{
			Timeout:   cfg.CricbuzzTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		BaseURL:           cfg.CricbuzzBaseURL,
		APIKey:            cfg.CricbuzzAPIKey,
		APIHost:           cfg.CricbuzzAPIHost,
		SeriesEndpoint:    cfg.CricbuzzSeriesEndpoint,
		MatchInfoEndpoint: cfg.CricbuzzMatchInfoEndpoint,
		ScorecardEndpoint: cfg.CricbuzzScorecardEndpoint,
		Timeout:           cfg.CricbuzzTimeout,
		MaxRetries:        cfg.CricbuzzMaxRetries,
		RetryDelay:        cfg.CricbuzzRetryDelay,
		Logger:            logger,
		CircuitBreaker: resilience.BreakerConfig{
			Enabled:  cfg.CricbuzzCircuitEnabled,
			Failures: cfg.CricbuzzCircuitFailureCount,
			Cooldown: cfg.CricbuzzCircuitOpenTimeout,
			Trials:   cfg.CricbuzzCircuitHalfOpenMaxReq,
		},
	})
	return client, client.Breaker
}

func cacheTiers(cfg config.Config) usecase.CacheTiers {
	tiers := usecase.DefaultCacheTiers()
	apply := func(tier *cache.Tier, c config.CacheTierConfig) {
		tier.TTL = c.TTL
		tier.SoftTTL = c.SoftTTL
	}
	apply(&tiers.SeriesSchedule, cfg.CacheSeriesSchedule)
	apply(&tiers.MatchListToday, cfg.CacheMatchListToday)
	apply(&tiers.MatchListPast, cfg.CacheMatchListPast)
	apply(&tiers.MatchListFuture, cfg.CacheMatchListFuture)
	apply(&tiers.MatchInfo, cfg.CacheMatchInfo)
	apply(&tiers.CompletedMatch, cfg.CacheCompletedMatch)
	apply(&tiers.LiveOvers, cfg.CacheLiveOvers)
	apply(&tiers.Scorecard, cfg.CacheScorecard)
	apply(&tiers.Features, cfg.CacheFeatures)
	return tiers
}

func priorConfig(cfg config.Config) prior.Config {
	out := prior.DefaultConfig()
	out.MinVenueSamples = cfg.PriorMinVenueSamples
	out.MinSeriesSamples = cfg.PriorMinSeriesSamples
	out.League = map[prior.Metric]prior.Stat{
		prior.MetricInningsRuns:    {Avg: cfg.PriorLeagueRunsAvg, StdDev: cfg.PriorLeagueRunsStdDev},
		prior.MetricInningsWickets: {Avg: cfg.PriorLeagueWicketsAvg, StdDev: cfg.PriorLeagueWicketsStdDev},
		prior.MetricPowerplayRatio: {Avg: cfg.PriorLeaguePowerplayRatioAvg, StdDev: cfg.PriorLeaguePowerplayRatioStdev},
	}
	out.Floors = map[prior.Metric]float64{
		prior.MetricInningsRuns:    cfg.PriorRunsStdDevFloor,
		prior.MetricInningsWickets: cfg.PriorWicketsStdDevFloor,
		prior.MetricPowerplayRatio: cfg.PriorPowerplayRatioStdDevFloor,
		prior.MetricChaseSuccess:   cfg.PriorChaseSuccessStdDevFloor,
	}
	return out
}

var errUpstreamDisabled = crerr.New("upstream provider disabled")

// disabledProvider serves every request with ErrDependencyUnavailable so
// the process can run against a pre-warmed redis cache.
type disabledProvider struct{}

func (disabledProvider) FetchSeries(context.Context, int) (upstream.SeriesSchedule, error) {
	return upstream.SeriesSchedule{}, fmt.Errorf("%w: %w", usecase.ErrDependencyUnavailable, errUpstreamDisabled)
}

func (disabledProvider) FetchMatchInfo(context.Context, int) (upstream.MatchInfo, error) {
	return upstream.MatchInfo{}, fmt.Errorf("%w: %w", usecase.ErrDependencyUnavailable, errUpstreamDisabled)
}

func (disabledProvider) FetchOvers(context.Context, int) (upstream.OversSnapshot, error) {
	return upstream.OversSnapshot{}, fmt.Errorf("%w: %w", usecase.ErrDependencyUnavailable, errUpstreamDisabled)
}

func (disabledProvider) FetchScorecard(context.Context, int) (upstream.Scorecard, error) {
	return upstream.Scorecard{}, upstream.ErrEndpointDisabled
}
