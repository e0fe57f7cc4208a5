package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/cricket-predictor/internal/platform/logging"
)

const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// CacheTierConfig is the TTL pair for one cached data category.
type CacheTierConfig struct {
	TTL     time.Duration
	SoftTTL time.Duration
}

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv             string
	ServiceName        string
	ServiceVersion     string
	HTTPAddr           string
	CORSAllowedOrigins []string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	InternalJobToken   string
	LogLevel           logging.Level

	CacheEnabled        bool
	CacheBackend        string
	CacheRedisURL       string
	CacheNamespace      string
	CacheVersion        string
	CacheStaleRetention time.Duration
	CacheSweepInterval  time.Duration
	CacheRefreshWorkers int
	CacheFetchTimeout   time.Duration
	CacheCallTimeout    time.Duration

	CacheSeriesSchedule  CacheTierConfig
	CacheMatchListToday  CacheTierConfig
	CacheMatchListPast   CacheTierConfig
	CacheMatchListFuture CacheTierConfig
	CacheMatchInfo       CacheTierConfig
	CacheCompletedMatch  CacheTierConfig
	CacheLiveOvers       CacheTierConfig
	CacheScorecard       CacheTierConfig
	CacheFeatures        CacheTierConfig

	CricbuzzEnabled                bool
	CricbuzzBaseURL                string
	CricbuzzAPIKey                 string
	CricbuzzAPIHost                string
	CricbuzzSeriesEndpoint         string
	CricbuzzMatchInfoEndpoint      string
	CricbuzzScorecardEndpoint      string
	CricbuzzTimeout                time.Duration
	CricbuzzMaxRetries             int
	CricbuzzRetryDelay             time.Duration
	CricbuzzCircuitEnabled         bool
	CricbuzzCircuitFailureCount    int
	CricbuzzCircuitOpenTimeout     time.Duration
	CricbuzzCircuitHalfOpenMaxReq  int
	IPLSeriesID                    int
	T20WorldCupSeriesID            int
	FeatureWorkers                 int
	PriorMinVenueSamples           int
	PriorMinSeriesSamples          int
	PriorLeagueRunsAvg             float64
	PriorLeagueRunsStdDev          float64
	PriorLeagueWicketsAvg          float64
	PriorLeagueWicketsStdDev       float64
	PriorLeaguePowerplayRatioAvg   float64
	PriorLeaguePowerplayRatioStdev float64
	PriorRunsStdDevFloor           float64
	PriorWicketsStdDevFloor        float64
	PriorPowerplayRatioStdDevFloor float64
	PriorChaseSuccessStdDevFloor   float64

	PprofEnabled               bool
	PprofAddr                  string
	UptraceEnabled             bool
	UptraceDSN                 string
	UptraceLogsEnabled         bool
	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:             appEnv,
		ServiceName:        getEnv("APP_SERVICE_NAME", "cricket-predictor-api"),
		ServiceVersion:     getEnv("APP_SERVICE_VERSION", "dev"),
		HTTPAddr:           getEnv("APP_HTTP_ADDR", ":8080"),
		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		InternalJobToken:   strings.TrimSpace(getEnv("INTERNAL_JOB_TOKEN", "")),
		LogLevel:           logging.ParseLevel(getEnv("APP_LOG_LEVEL", "info")),
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		return Config{}, fmt.Errorf("CORS_ALLOWED_ORIGINS cannot be empty")
	}
	if cfg.ReadTimeout, err = positiveDuration("APP_READ_TIMEOUT", "10s"); err != nil {
		return Config{}, err
	}
	// Live predictions may wait on several upstream fetches.
	if cfg.WriteTimeout, err = positiveDuration("APP_WRITE_TIMEOUT", "30s"); err != nil {
		return Config{}, err
	}

	if err := loadCache(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadCricbuzz(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadPriors(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadObservability(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadCache(cfg *Config) error {
	var err error
	if cfg.CacheEnabled, err = strconv.ParseBool(getEnv("CACHE_ENABLED", "true")); err != nil {
		return fmt.Errorf("parse CACHE_ENABLED: %w", err)
	}

	cfg.CacheBackend = strings.ToLower(strings.TrimSpace(getEnv("CACHE_BACKEND", CacheBackendMemory)))
	switch cfg.CacheBackend {
	case CacheBackendMemory:
	case CacheBackendRedis:
		cfg.CacheRedisURL = strings.TrimSpace(getEnv("CACHE_REDIS_URL", ""))
		if cfg.CacheRedisURL == "" {
			return fmt.Errorf("CACHE_REDIS_URL is required when CACHE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("invalid CACHE_BACKEND %q: valid values are %s, %s", cfg.CacheBackend, CacheBackendMemory, CacheBackendRedis)
	}

	cfg.CacheNamespace = strings.TrimSpace(getEnv("CACHE_NAMESPACE", "cricket"))
	cfg.CacheVersion = strings.TrimSpace(getEnv("CACHE_VERSION", "v1"))
	if cfg.CacheNamespace == "" || strings.Contains(cfg.CacheNamespace, ":") {
		return fmt.Errorf("CACHE_NAMESPACE must be non-empty and must not contain ':'")
	}
	if cfg.CacheVersion == "" || strings.Contains(cfg.CacheVersion, ":") {
		return fmt.Errorf("CACHE_VERSION must be non-empty and must not contain ':'")
	}

	if cfg.CacheStaleRetention, err = positiveDuration("CACHE_STALE_RETENTION", "6h"); err != nil {
		return err
	}
	if cfg.CacheSweepInterval, err = positiveDuration("CACHE_SWEEP_INTERVAL", "1m"); err != nil {
		return err
	}
	if cfg.CacheFetchTimeout, err = positiveDuration("CACHE_FETCH_TIMEOUT", "25s"); err != nil {
		return err
	}
	if cfg.CacheCallTimeout, err = positiveDuration("CACHE_CALL_TIMEOUT", "90s"); err != nil {
		return err
	}
	if cfg.CacheCallTimeout < cfg.CacheFetchTimeout {
		return fmt.Errorf("CACHE_CALL_TIMEOUT must be >= CACHE_FETCH_TIMEOUT")
	}
	if cfg.CacheRefreshWorkers, err = getEnvAsInt("CACHE_REFRESH_WORKERS", 8); err != nil {
		return fmt.Errorf("parse CACHE_REFRESH_WORKERS: %w", err)
	}
	if cfg.CacheRefreshWorkers < 1 {
		return fmt.Errorf("CACHE_REFRESH_WORKERS must be >= 1")
	}

	tiers := []struct {
		target  *CacheTierConfig
		prefix  string
		ttl     string
		softTTL string
	}{
		{&cfg.CacheSeriesSchedule, "CACHE_SERIES_SCHEDULE", "24h", "1h"},
		{&cfg.CacheMatchListToday, "CACHE_MATCH_LIST_TODAY", "1h", ""},
		{&cfg.CacheMatchListPast, "CACHE_MATCH_LIST_PAST", "24h", ""},
		{&cfg.CacheMatchListFuture, "CACHE_MATCH_LIST_FUTURE", "30m", ""},
		{&cfg.CacheMatchInfo, "CACHE_MATCH_INFO", "30s", "0s"},
		{&cfg.CacheCompletedMatch, "CACHE_COMPLETED_MATCH", "24h", ""},
		{&cfg.CacheLiveOvers, "CACHE_LIVE_OVERS", "8s", ""},
		{&cfg.CacheScorecard, "CACHE_SCORECARD", "10s", ""},
		{&cfg.CacheFeatures, "CACHE_FEATURE", "1h", "10m"},
	}
	for _, tier := range tiers {
		parsed, err := loadTier(tier.prefix, tier.ttl, tier.softTTL)
		if err != nil {
			return err
		}
		*tier.target = parsed
	}
	return nil
}

// loadTier reads <prefix>_TTL and, when the category supports it,
// <prefix>_SOFT_TTL. A soft TTL of zero disables background revalidation.
func loadTier(prefix, ttlFallback, softFallback string) (CacheTierConfig, error) {
	ttl, err := positiveDuration(prefix+"_TTL", ttlFallback)
	if err != nil {
		return CacheTierConfig{}, err
	}
	if softFallback == "" {
		return CacheTierConfig{TTL: ttl}, nil
	}

	key := prefix + "_SOFT_TTL"
	soft, err := time.ParseDuration(getEnv(key, softFallback))
	if err != nil {
		return CacheTierConfig{}, fmt.Errorf("parse %s: %w", key, err)
	}
	if soft < 0 || soft >= ttl {
		return CacheTierConfig{}, fmt.Errorf("%s must be >= 0 and < %s_TTL", key, prefix)
	}
	return CacheTierConfig{TTL: ttl, SoftTTL: soft}, nil
}

func loadCricbuzz(cfg *Config) error {
	var err error
	if cfg.CricbuzzEnabled, err = strconv.ParseBool(getEnv("CRICBUZZ_ENABLED", "true")); err != nil {
		return fmt.Errorf("parse CRICBUZZ_ENABLED: %w", err)
	}
	cfg.CricbuzzBaseURL = strings.TrimSpace(getEnv("CRICBUZZ_BASE_URL", "https://Cricbuzz-Official-Cricket-API.proxy-production.allthingsdev.co"))
	cfg.CricbuzzAPIKey = strings.TrimSpace(getEnv("CRICBUZZ_API_KEY", ""))
	cfg.CricbuzzAPIHost = strings.TrimSpace(getEnv("CRICBUZZ_API_HOST", "Cricbuzz-Official-Cricket-API.allthingsdev.co"))
	cfg.CricbuzzSeriesEndpoint = strings.TrimSpace(getEnv("CRICBUZZ_SERIES_ENDPOINT", ""))
	cfg.CricbuzzMatchInfoEndpoint = strings.TrimSpace(getEnv("CRICBUZZ_MATCH_INFO_ENDPOINT", ""))
	cfg.CricbuzzScorecardEndpoint = strings.TrimSpace(getEnv("CRICBUZZ_SCORECARD_ENDPOINT", ""))
	if cfg.CricbuzzEnabled && cfg.CricbuzzAPIKey == "" {
		return fmt.Errorf("CRICBUZZ_API_KEY is required when CRICBUZZ_ENABLED=true")
	}

	if cfg.CricbuzzTimeout, err = positiveDuration("CRICBUZZ_TIMEOUT", "20s"); err != nil {
		return err
	}
	if cfg.CricbuzzRetryDelay, err = positiveDuration("CRICBUZZ_RETRY_DELAY", "1s"); err != nil {
		return err
	}
	if cfg.CricbuzzMaxRetries, err = getEnvAsInt("CRICBUZZ_MAX_RETRIES", 2); err != nil {
		return fmt.Errorf("parse CRICBUZZ_MAX_RETRIES: %w", err)
	}
	if cfg.CricbuzzMaxRetries < 0 {
		return fmt.Errorf("CRICBUZZ_MAX_RETRIES must be >= 0")
	}
	if cfg.CricbuzzCircuitEnabled, err = strconv.ParseBool(getEnv("CRICBUZZ_CIRCUIT_ENABLED", "true")); err != nil {
		return fmt.Errorf("parse CRICBUZZ_CIRCUIT_ENABLED: %w", err)
	}
	if cfg.CricbuzzCircuitFailureCount, err = getEnvAsInt("CRICBUZZ_CIRCUIT_FAILURE_COUNT", 5); err != nil {
		return fmt.Errorf("parse CRICBUZZ_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if cfg.CricbuzzCircuitFailureCount < 1 {
		return fmt.Errorf("CRICBUZZ_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	if cfg.CricbuzzCircuitOpenTimeout, err = positiveDuration("CRICBUZZ_CIRCUIT_OPEN_TIMEOUT", "15s"); err != nil {
		return err
	}
	if cfg.CricbuzzCircuitHalfOpenMaxReq, err = getEnvAsInt("CRICBUZZ_CIRCUIT_HALF_OPEN_MAX_REQ", 2); err != nil {
		return fmt.Errorf("parse CRICBUZZ_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}
	if cfg.CricbuzzCircuitHalfOpenMaxReq < 1 {
		return fmt.Errorf("CRICBUZZ_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}

	if cfg.IPLSeriesID, err = getEnvAsInt("IPL_SERIES_ID", 9237); err != nil {
		return fmt.Errorf("parse IPL_SERIES_ID: %w", err)
	}
	if cfg.IPLSeriesID <= 0 {
		return fmt.Errorf("IPL_SERIES_ID must be > 0")
	}
	if cfg.T20WorldCupSeriesID, err = getEnvAsInt("T20WC_SERIES_ID", 0); err != nil {
		return fmt.Errorf("parse T20WC_SERIES_ID: %w", err)
	}
	if cfg.FeatureWorkers, err = getEnvAsInt("FEATURE_WORKERS", 4); err != nil {
		return fmt.Errorf("parse FEATURE_WORKERS: %w", err)
	}
	if cfg.FeatureWorkers < 1 {
		return fmt.Errorf("FEATURE_WORKERS must be >= 1")
	}
	return nil
}

func loadPriors(cfg *Config) error {
	var err error
	if cfg.PriorMinVenueSamples, err = getEnvAsInt("PRIOR_MIN_VENUE_SAMPLES", 5); err != nil {
		return fmt.Errorf("parse PRIOR_MIN_VENUE_SAMPLES: %w", err)
	}
	if cfg.PriorMinSeriesSamples, err = getEnvAsInt("PRIOR_MIN_SERIES_SAMPLES", 3); err != nil {
		return fmt.Errorf("parse PRIOR_MIN_SERIES_SAMPLES: %w", err)
	}
	if cfg.PriorMinVenueSamples < 1 || cfg.PriorMinSeriesSamples < 1 {
		return fmt.Errorf("PRIOR_MIN_VENUE_SAMPLES and PRIOR_MIN_SERIES_SAMPLES must be >= 1")
	}

	floats := []struct {
		target   *float64
		key      string
		fallback float64
	}{
		{&cfg.PriorLeagueRunsAvg, "PRIOR_LEAGUE_RUNS_AVG", 160},
		{&cfg.PriorLeagueRunsStdDev, "PRIOR_LEAGUE_RUNS_STDDEV", 25},
		{&cfg.PriorLeagueWicketsAvg, "PRIOR_LEAGUE_WICKETS_AVG", 7},
		{&cfg.PriorLeagueWicketsStdDev, "PRIOR_LEAGUE_WICKETS_STDDEV", 2.5},
		{&cfg.PriorLeaguePowerplayRatioAvg, "PRIOR_LEAGUE_PP_RATIO_AVG", 0.28},
		{&cfg.PriorLeaguePowerplayRatioStdev, "PRIOR_LEAGUE_PP_RATIO_STDDEV", 0.05},
	}
	for _, item := range floats {
		value, err := getEnvAsFloat(item.key, item.fallback)
		if err != nil {
			return fmt.Errorf("parse %s: %w", item.key, err)
		}
		if value < 0 {
			return fmt.Errorf("%s must be >= 0", item.key)
		}
		*item.target = value
	}

	floors := []struct {
		target   *float64
		key      string
		fallback float64
	}{
		{&cfg.PriorRunsStdDevFloor, "PRIOR_RUNS_STDDEV_FLOOR", 12},
		{&cfg.PriorWicketsStdDevFloor, "PRIOR_WICKETS_STDDEV_FLOOR", 2},
		{&cfg.PriorPowerplayRatioStdDevFloor, "PRIOR_PP_RATIO_STDDEV_FLOOR", 0.05},
		{&cfg.PriorChaseSuccessStdDevFloor, "PRIOR_CHASE_SUCCESS_STDDEV_FLOOR", 0.1},
	}
	for _, item := range floors {
		value, err := getEnvAsFloat(item.key, item.fallback)
		if err != nil {
			return fmt.Errorf("parse %s: %w", item.key, err)
		}
		if value <= 0 {
			return fmt.Errorf("%s must be > 0", item.key)
		}
		*item.target = value
	}
	return nil
}

func loadObservability(cfg *Config) error {
	var err error
	if cfg.UptraceEnabled, err = strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false")); err != nil {
		return fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	cfg.UptraceDSN = strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if cfg.UptraceDSN == "" {
		cfg.UptraceDSN = parseUptraceDSNFromOTLPHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""))
	}
	if cfg.UptraceEnabled && cfg.UptraceDSN == "" {
		return fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}
	if cfg.UptraceLogsEnabled, err = strconv.ParseBool(getEnv("UPTRACE_LOGS_ENABLED", "true")); err != nil {
		return fmt.Errorf("parse UPTRACE_LOGS_ENABLED: %w", err)
	}

	if cfg.PprofEnabled, err = strconv.ParseBool(getEnv("PPROF_ENABLED", "false")); err != nil {
		return fmt.Errorf("parse PPROF_ENABLED: %w", err)
	}
	cfg.PprofAddr = strings.TrimSpace(getEnv("PPROF_ADDR", ":6060"))
	if cfg.PprofEnabled && cfg.PprofAddr == "" {
		return fmt.Errorf("PPROF_ADDR is required when PPROF_ENABLED=true")
	}

	if cfg.PyroscopeEnabled, err = strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false")); err != nil {
		return fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	cfg.PyroscopeServerAddress = strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if cfg.PyroscopeEnabled && cfg.PyroscopeServerAddress == "" {
		return fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	if cfg.PyroscopeUploadRate, err = positiveDuration("PYROSCOPE_UPLOAD_RATE", "15s"); err != nil {
		return err
	}
	cfg.PyroscopeAuthToken = strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", ""))
	cfg.PyroscopeBasicAuthUser = strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", ""))
	cfg.PyroscopeBasicAuthPassword = strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", ""))
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))
	if cfg.PyroscopeEnabled && cfg.PyroscopeAppName == "" {
		return fmt.Errorf("PYROSCOPE_APP_NAME cannot be empty when PYROSCOPE_ENABLED=true")
	}
	return nil
}

func positiveDuration(key, fallback string) (time.Duration, error) {
	value, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return value, nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func getEnvAsFloat(key string, fallback float64) (float64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(value, 64)
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	items := strings.Split(raw, ",")
	for _, item := range items {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "uptrace-dsn") {
			value := strings.TrimSpace(parts[1])
			return strings.Trim(value, "\"'")
		}
	}

	return ""
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
