package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/riskibarqy/cricket-predictor/internal/domain/upstream"
	upstreammock "github.com/riskibarqy/cricket-predictor/internal/mocks/domain/upstream"
	"github.com/riskibarqy/cricket-predictor/internal/platform/cache"
	"github.com/riskibarqy/cricket-predictor/internal/platform/logging"
)

const testSeriesID = 9237

var testToday = time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC)

func newTestCache(t *testing.T) *cache.Client {
	t.Helper()

	store := cache.NewMemoryStore(time.Hour)
	c, err := cache.NewClient(store, cache.ClientConfig{
		Enabled:        true,
		Namespace:      "cricket",
		Version:        "v1",
		FetchTimeout:   5 * time.Second,
		RefreshWorkers: 2,
	}, cache.WithLogger(logging.NewNop()))
	if err != nil {
		t.Fatalf("new cache client: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func newTestGateway(t *testing.T, provider upstream.Provider) *DataGateway {
	t.Helper()
	return NewDataGateway(provider, newTestCache(t), DefaultCacheTiers(),
		WithGatewayLogger(logging.NewNop()),
		WithGatewayClock(func() time.Time { return testToday }),
	)
}

func seriesMatch(id int, start time.Time, team1, team2, venue, status string) upstream.SeriesMatch {
	return upstream.SeriesMatch{
		MatchID:   id,
		SeriesID:  testSeriesID,
		Format:    "T20",
		Team1:     team1,
		Team2:     team2,
		Venue:     venue,
		StartTime: start,
		Status:    status,
	}
}

func testSchedule() upstream.SeriesSchedule {
	day := time.Date(2025, 4, 10, 14, 0, 0, 0, time.UTC)
	odi := seriesMatch(104, day, "India", "Australia", "Wankhede Stadium", "Match starts at 14:00 GMT")
	odi.Format = "ODI"
	return upstream.SeriesSchedule{
		SeriesID: testSeriesID,
		Name:     "Indian Premier League 2025",
		Matches: []upstream.SeriesMatch{
			seriesMatch(101, day, "Mumbai Indians", "Chennai Super Kings", "Wankhede Stadium", "Match starts at 14:00 GMT"),
			seriesMatch(102, day.Add(4*time.Hour), "Delhi Capitals", "Punjab Kings", "Arun Jaitley Stadium", "Match starts at 18:00 GMT"),
			seriesMatch(103, day.AddDate(0, 0, -1), "Gujarat Titans", "Rajasthan Royals", "Narendra Modi Stadium", "Gujarat Titans won by 5 wkts"),
			odi,
		},
	}
}

func TestDataGateway_ConcurrentListRequestsShareOneUpstreamCall(t *testing.T) {
	t.Parallel()

	provider := upstreammock.NewProvider(t)
	provider.
		On("FetchSeries", mock.Anything, testSeriesID).
		Run(func(mock.Arguments) { time.Sleep(30 * time.Millisecond) }).
		Return(testSchedule(), nil).
		Once()

	gateway := newTestGateway(t, provider)

	var wg sync.WaitGroup
	results := make([][]upstream.SeriesMatch, 2)
	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _, errs[i] = gateway.FetchSeriesMatches(context.Background(), testSeriesID, "2025-04-10")
		}()
	}
	wg.Wait()

	for i := range 2 {
		if errs[i] != nil {
			t.Fatalf("request %d failed: %v", i, errs[i])
		}
		if len(results[i]) != 2 {
			t.Fatalf("request %d: expected 2 T20 matches, got %d", i, len(results[i]))
		}
	}

	// A different day is derived from the already cached schedule.
	yesterday, _, err := gateway.FetchSeriesMatches(context.Background(), testSeriesID, "2025-04-09")
	if err != nil {
		t.Fatalf("list previous day: %v", err)
	}
	if len(yesterday) != 1 || yesterday[0].MatchID != 103 {
		t.Fatalf("unexpected previous day matches: %+v", yesterday)
	}
}

func TestDataGateway_MatchListTTLDependsOnDate(t *testing.T) {
	t.Parallel()

	provider := upstreammock.NewProvider(t)
	provider.On("FetchSeries", mock.Anything, testSeriesID).Return(testSchedule(), nil).Once()

	gateway := newTestGateway(t, provider)
	ctx := context.Background()
	tiers := DefaultCacheTiers()

	cases := []struct {
		date string
		ttl  time.Duration
	}{
		{date: "2025-04-09", ttl: tiers.MatchListPast.TTL},
		{date: "2025-04-10", ttl: tiers.MatchListToday.TTL},
		{date: "2025-04-11", ttl: tiers.MatchListFuture.TTL},
	}
	for _, tc := range cases {
		if _, _, err := gateway.FetchSeriesMatches(ctx, testSeriesID, tc.date); err != nil {
			t.Fatalf("list %s: %v", tc.date, err)
		}
		entry, ok := gateway.cache.Peek(ctx, seriesMatchesKey(testSeriesID, tc.date))
		if !ok {
			t.Fatalf("expected cached list for %s", tc.date)
		}
		if entry.TTL != tc.ttl {
			t.Fatalf("date %s: unexpected ttl got=%s want=%s", tc.date, entry.TTL, tc.ttl)
		}
	}
}

func TestDataGateway_RequestStatsCountOnlyProviderCalls(t *testing.T) {
	t.Parallel()

	provider := upstreammock.NewProvider(t)
	provider.On("FetchSeries", mock.Anything, testSeriesID).Return(testSchedule(), nil).Once()

	gateway := newTestGateway(t, provider)
	ctx, stats := cache.WithRequestStats(context.Background())

	if _, _, err := gateway.FetchSeriesMatches(ctx, testSeriesID, "2025-04-10"); err != nil {
		t.Fatalf("list today: %v", err)
	}
	if got := stats.Snapshot().UpstreamCalls; got != 1 {
		t.Fatalf("cold list: upstream_calls=%d, provider calls=1", got)
	}

	// Another day is cut from the fresh schedule without a provider call.
	if _, _, err := gateway.FetchSeriesMatches(ctx, testSeriesID, "2025-04-09"); err != nil {
		t.Fatalf("list previous day: %v", err)
	}
	if got := stats.Snapshot().UpstreamCalls; got != 1 {
		t.Fatalf("derived list: upstream_calls=%d, provider calls=1", got)
	}
	if got := gateway.cache.Counters().UpstreamCalls; got != 1 {
		t.Fatalf("client counters report %d upstream calls, provider calls=1", got)
	}
	provider.AssertNumberOfCalls(t, "FetchSeries", 1)
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestDataGateway_ListFromStaleScheduleIsNotRetained(t *testing.T) {
	t.Parallel()

	provider := upstreammock.NewProvider(t)
	provider.On("FetchSeries", mock.Anything, testSeriesID).Return(testSchedule(), nil).Times(2)

	clock := &stepClock{now: testToday}
	cacheClient, err := cache.NewClient(cache.NewMemoryStore(48*time.Hour, cache.WithClock(clock.Now)), cache.ClientConfig{
		Enabled:        true,
		Namespace:      "cricket",
		Version:        "v1",
		FetchTimeout:   5 * time.Second,
		RefreshWorkers: 1,
	}, cache.WithLogger(logging.NewNop()), cache.WithClientClock(clock.Now))
	if err != nil {
		t.Fatalf("new cache client: %v", err)
	}
	t.Cleanup(func() { _ = cacheClient.Close() })
	gateway := NewDataGateway(provider, cacheClient, DefaultCacheTiers(),
		WithGatewayLogger(logging.NewNop()), WithGatewayClock(clock.Now))
	ctx := context.Background()

	if _, _, err := gateway.FetchSeriesSchedule(ctx, testSeriesID); err != nil {
		t.Fatalf("warm schedule: %v", err)
	}

	// Past the schedule TTL but inside its soft window.
	clock.Advance(24*time.Hour + 10*time.Minute)
	listKey := seriesMatchesKey(testSeriesID, "2025-04-10")

	matches, fresh, err := gateway.FetchSeriesMatches(ctx, testSeriesID, "2025-04-10")
	if err != nil {
		t.Fatalf("list from stale schedule: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if fresh.Fresh || !fresh.StaleServed || fresh.Source != cache.SourceRevalidating {
		t.Fatalf("expected stale provenance from the schedule, got %+v", fresh)
	}
	if _, ok := gateway.cache.Peek(ctx, listKey); ok {
		t.Fatalf("list cut from a stale schedule must not be retained")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		entry, ok := gateway.cache.Peek(ctx, seriesScheduleKey(testSeriesID))
		if ok && entry.Fresh(clock.Now()) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("schedule was not revalidated in the background")
		}
		time.Sleep(5 * time.Millisecond)
	}

	_, fresh, err = gateway.FetchSeriesMatches(ctx, testSeriesID, "2025-04-10")
	if err != nil {
		t.Fatalf("list after refresh: %v", err)
	}
	if !fresh.Fresh || fresh.StaleServed {
		t.Fatalf("expected fresh list after refresh, got %+v", fresh)
	}
	if _, ok := gateway.cache.Peek(ctx, listKey); !ok {
		t.Fatalf("fresh list should be retained")
	}
}

func TestDataGateway_RejectsMalformedDate(t *testing.T) {
	t.Parallel()

	gateway := newTestGateway(t, upstreammock.NewProvider(t))
	_, _, err := gateway.FetchSeriesMatches(context.Background(), testSeriesID, "10/04/2025")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDataGateway_UpstreamFailureIsNotCached(t *testing.T) {
	t.Parallel()

	provider := upstreammock.NewProvider(t)
	provider.On("FetchMatchInfo", mock.Anything, 101).Return(upstream.MatchInfo{}, errors.New("503 from upstream")).Once()
	provider.On("FetchMatchInfo", mock.Anything, 101).Return(upstream.MatchInfo{MatchID: 101, Status: "Toss pending"}, nil).Once()

	gateway := newTestGateway(t, provider)
	ctx := context.Background()

	_, fresh, err := gateway.FetchMatchInfo(ctx, 101)
	if !errors.Is(err, cache.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if fresh.Error == "" {
		t.Fatalf("expected freshness to carry the failure")
	}

	info, fresh, err := gateway.FetchMatchInfo(ctx, 101)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if info.MatchID != 101 || fresh.Source != cache.SourceFetched {
		t.Fatalf("unexpected retry result: info=%+v freshness=%+v", info, fresh)
	}
}

func TestDataGateway_ScorecardDisabledPassesThrough(t *testing.T) {
	t.Parallel()

	provider := upstreammock.NewProvider(t)
	provider.On("FetchScorecard", mock.Anything, 101).Return(upstream.Scorecard{}, upstream.ErrEndpointDisabled)

	gateway := newTestGateway(t, provider)
	_, _, err := gateway.FetchScorecard(context.Background(), 101)
	if !errors.Is(err, upstream.ErrEndpointDisabled) {
		t.Fatalf("expected ErrEndpointDisabled, got %v", err)
	}
}

func TestFilterMatches_TeamsAndFormat(t *testing.T) {
	t.Parallel()

	got := filterMatches(testSchedule().Matches, "2025-04-10", []string{"punjab kings"})
	if len(got) != 1 || got[0].MatchID != 102 {
		t.Fatalf("unexpected filtered matches: %+v", got)
	}
}
