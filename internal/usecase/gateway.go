package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/riskibarqy/cricket-predictor/internal/domain/upstream"
	"github.com/riskibarqy/cricket-predictor/internal/platform/cache"
	"github.com/riskibarqy/cricket-predictor/internal/platform/logging"
)

const dateLayout = "2006-01-02"

// CacheTiers holds the TTL class of every cached category.
type CacheTiers struct {
	SeriesSchedule  cache.Tier
	MatchListToday  cache.Tier
	MatchListPast   cache.Tier
	MatchListFuture cache.Tier
	MatchInfo       cache.Tier
	CompletedMatch  cache.Tier
	LiveOvers       cache.Tier
	Scorecard       cache.Tier
	Features        cache.Tier
}

func DefaultCacheTiers() CacheTiers {
	return CacheTiers{
		SeriesSchedule:  cache.Tier{Name: "series_schedule", TTL: 24 * time.Hour, SoftTTL: time.Hour},
		MatchListToday:  cache.Tier{Name: "series_matches", TTL: time.Hour, Derived: true},
		MatchListPast:   cache.Tier{Name: "series_matches", TTL: 24 * time.Hour, Derived: true},
		MatchListFuture: cache.Tier{Name: "series_matches", TTL: 30 * time.Minute, Derived: true},
		MatchInfo:       cache.Tier{Name: "match_info", TTL: 30 * time.Second},
		CompletedMatch:  cache.Tier{Name: "completed_match", TTL: 24 * time.Hour, Derived: true},
		LiveOvers:       cache.Tier{Name: "live_overs", TTL: 8 * time.Second},
		Scorecard:       cache.Tier{Name: "scorecard", TTL: 10 * time.Second},
		Features:        cache.Tier{Name: "features", TTL: time.Hour, SoftTTL: 10 * time.Minute, Derived: true},
	}
}

// Freshness describes where a served value came from and how old it is.
type Freshness struct {
	Key         string       `json:"key"`
	Source      cache.Source `json:"source"`
	Fresh       bool         `json:"fresh"`
	StaleServed bool         `json:"stale_served"`
	Shared      bool         `json:"shared,omitempty"`
	AgeSeconds  float64      `json:"age_seconds"`
	Error       string       `json:"error,omitempty"`
}

func freshnessOf(key string, res cache.Result) Freshness {
	f := Freshness{
		Key:         key,
		Source:      res.Source,
		Fresh:       res.Fresh,
		StaleServed: res.StaleServed,
		Shared:      res.Shared,
		AgeSeconds:  float64(res.Age.Milliseconds()) / 1000,
	}
	if res.FetchErr != nil {
		f.Error = res.FetchErr.Error()
	}
	return f
}

func failedFreshness(key string, err error) Freshness {
	return Freshness{Key: key, Error: err.Error()}
}

// DataGateway is the only path to the upstream provider. Every read goes
// through the cache client under a "{category}:{id}[:{date}]" key.
type DataGateway struct {
	provider upstream.Provider
	cache    *cache.Client
	tiers    CacheTiers
	logger   *logging.Logger
	now      func() time.Time
}

type GatewayOption func(*DataGateway)

func WithGatewayLogger(logger *logging.Logger) GatewayOption {
	return func(g *DataGateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func WithGatewayClock(now func() time.Time) GatewayOption {
	return func(g *DataGateway) {
		if now != nil {
			g.now = now
		}
	}
}

func NewDataGateway(provider upstream.Provider, cacheClient *cache.Client, tiers CacheTiers, opts ...GatewayOption) *DataGateway {
	g := &DataGateway{
		provider: provider,
		cache:    cacheClient,
		tiers:    tiers,
		logger:   logging.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *DataGateway) Tiers() CacheTiers {
	return g.tiers
}

func seriesScheduleKey(seriesID int) string {
	return fmt.Sprintf("series_schedule:%d", seriesID)
}

func seriesMatchesKey(seriesID int, date string) string {
	return fmt.Sprintf("series_matches:%d:%s", seriesID, date)
}

func matchInfoKey(matchID int) string {
	return fmt.Sprintf("match_info:%d", matchID)
}

func completedMatchKey(matchID int) string {
	return fmt.Sprintf("completed_match:%d", matchID)
}

func liveOversKey(matchID int) string {
	return fmt.Sprintf("live_overs:%d", matchID)
}

func scorecardKey(matchID int) string {
	return fmt.Sprintf("scorecard:%d", matchID)
}

func featuresKey(seriesID int) string {
	return fmt.Sprintf("features:%d", seriesID)
}

// FetchSeriesSchedule serves the schedule stale-while-revalidate; it changes
// rarely and every other series read derives from it.
func (g *DataGateway) FetchSeriesSchedule(ctx context.Context, seriesID int) (upstream.SeriesSchedule, Freshness, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DataGateway.FetchSeriesSchedule")
	defer span.End()

	key := seriesScheduleKey(seriesID)
	if seriesID <= 0 {
		err := fmt.Errorf("%w: series id must be positive", ErrInvalidInput)
		return upstream.SeriesSchedule{}, failedFreshness(key, err), err
	}

	schedule, res, err := cache.Load(ctx, g.cache, cache.ModeStaleWhileRevalidate, key, g.tiers.SeriesSchedule,
		func(ctx context.Context) (upstream.SeriesSchedule, error) {
			return g.provider.FetchSeries(ctx, seriesID)
		})
	if err != nil {
		return upstream.SeriesSchedule{}, failedFreshness(key, err), fmt.Errorf("fetch series schedule %d: %w", seriesID, err)
	}
	return schedule, freshnessOf(key, res), nil
}

// seriesMatchesEntry is the cached per-day list together with the
// provenance of the schedule it was cut from.
type seriesMatchesEntry struct {
	Matches  []upstream.SeriesMatch `json:"matches"`
	Schedule Freshness              `json:"schedule"`
}

// FetchSeriesMatches lists the T20 matches of one UTC calendar day. The TTL
// depends on whether the day is past, today or upcoming. A list cut from a
// stale schedule is served with the schedule's provenance and not retained.
func (g *DataGateway) FetchSeriesMatches(ctx context.Context, seriesID int, date string) ([]upstream.SeriesMatch, Freshness, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DataGateway.FetchSeriesMatches")
	defer span.End()

	date, err := g.normalizeDate(date)
	if err != nil {
		return nil, failedFreshness(seriesMatchesKey(seriesID, ""), err), err
	}
	key := seriesMatchesKey(seriesID, date)
	if seriesID <= 0 {
		err := fmt.Errorf("%w: series id must be positive", ErrInvalidInput)
		return nil, failedFreshness(key, err), err
	}

	entry, res, err := cache.Load(ctx, g.cache, cache.ModeGetOrFetch, key, g.matchListTier(date),
		func(ctx context.Context) (seriesMatchesEntry, error) {
			schedule, fresh, err := g.FetchSeriesSchedule(ctx, seriesID)
			if err != nil {
				return seriesMatchesEntry{}, err
			}
			return seriesMatchesEntry{Matches: filterMatches(schedule.Matches, date, nil), Schedule: fresh}, nil
		})
	if err != nil {
		return nil, failedFreshness(key, err), fmt.Errorf("fetch series matches %d/%s: %w", seriesID, date, err)
	}

	fresh := freshnessOf(key, res)
	if entry.Schedule.StaleServed {
		if res.Source == cache.SourceFetched && !res.Shared {
			if err := g.cache.Invalidate(ctx, key); err != nil {
				g.logger.WarnContext(ctx, "drop list derived from stale schedule failed", "key", key, "error", err)
			}
		}
		fresh.Source = entry.Schedule.Source
		fresh.Fresh = false
		fresh.StaleServed = true
		fresh.AgeSeconds = entry.Schedule.AgeSeconds
		if fresh.Error == "" {
			fresh.Error = entry.Schedule.Error
		}
	}
	return entry.Matches, fresh, nil
}

func (g *DataGateway) FetchMatchInfo(ctx context.Context, matchID int) (upstream.MatchInfo, Freshness, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DataGateway.FetchMatchInfo")
	defer span.End()

	key := matchInfoKey(matchID)
	info, res, err := cache.Load(ctx, g.cache, cache.ModeGetOrFetch, key, g.tiers.MatchInfo,
		func(ctx context.Context) (upstream.MatchInfo, error) {
			return g.provider.FetchMatchInfo(ctx, matchID)
		})
	if err != nil {
		return upstream.MatchInfo{}, failedFreshness(key, err), fmt.Errorf("fetch match info %d: %w", matchID, err)
	}
	return info, freshnessOf(key, res), nil
}

func (g *DataGateway) FetchLiveOvers(ctx context.Context, matchID int) (upstream.OversSnapshot, Freshness, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DataGateway.FetchLiveOvers")
	defer span.End()

	key := liveOversKey(matchID)
	overs, res, err := cache.Load(ctx, g.cache, cache.ModeGetOrFetch, key, g.tiers.LiveOvers,
		func(ctx context.Context) (upstream.OversSnapshot, error) {
			return g.provider.FetchOvers(ctx, matchID)
		})
	if err != nil {
		return upstream.OversSnapshot{}, failedFreshness(key, err), fmt.Errorf("fetch live overs %d: %w", matchID, err)
	}
	return overs, freshnessOf(key, res), nil
}

// FetchScorecard returns upstream.ErrEndpointDisabled untouched so callers
// can skip the optional feed without logging it as a failure.
func (g *DataGateway) FetchScorecard(ctx context.Context, matchID int) (upstream.Scorecard, Freshness, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DataGateway.FetchScorecard")
	defer span.End()

	key := scorecardKey(matchID)
	card, res, err := cache.Load(ctx, g.cache, cache.ModeGetOrFetch, key, g.tiers.Scorecard,
		func(ctx context.Context) (upstream.Scorecard, error) {
			return g.provider.FetchScorecard(ctx, matchID)
		})
	if err != nil {
		if errors.Is(err, upstream.ErrEndpointDisabled) {
			return upstream.Scorecard{}, failedFreshness(key, err), upstream.ErrEndpointDisabled
		}
		return upstream.Scorecard{}, failedFreshness(key, err), fmt.Errorf("fetch scorecard %d: %w", matchID, err)
	}
	return card, freshnessOf(key, res), nil
}

func (g *DataGateway) normalizeDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return g.now().UTC().Format(dateLayout), nil
	}
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil {
		return "", fmt.Errorf("%w: date must be YYYY-MM-DD, got %q", ErrInvalidInput, raw)
	}
	return parsed.Format(dateLayout), nil
}

func (g *DataGateway) matchListTier(date string) cache.Tier {
	today := g.now().UTC().Format(dateLayout)
	switch {
	case date < today:
		return g.tiers.MatchListPast
	case date == today:
		return g.tiers.MatchListToday
	default:
		return g.tiers.MatchListFuture
	}
}

// filterMatches keeps T20 matches starting on date (UTC). A non-empty teams
// list further requires one side to be in it.
func filterMatches(matches []upstream.SeriesMatch, date string, teams []string) []upstream.SeriesMatch {
	out := make([]upstream.SeriesMatch, 0, 4)
	for _, m := range matches {
		if !strings.EqualFold(m.Format, "T20") {
			continue
		}
		if m.StartTime.UTC().Format(dateLayout) != date {
			continue
		}
		if len(teams) > 0 && !containsTeam(teams, m.Team1) && !containsTeam(teams, m.Team2) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func containsTeam(teams []string, name string) bool {
	for _, team := range teams {
		if strings.EqualFold(strings.TrimSpace(team), strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}
