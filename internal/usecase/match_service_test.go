package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/riskibarqy/cricket-predictor/internal/domain/match"
	"github.com/riskibarqy/cricket-predictor/internal/domain/upstream"
	upstreammock "github.com/riskibarqy/cricket-predictor/internal/mocks/domain/upstream"
	"github.com/riskibarqy/cricket-predictor/internal/platform/cache"
	"github.com/riskibarqy/cricket-predictor/internal/platform/logging"
)

func testMatchInfo(id int, status string) upstream.MatchInfo {
	return upstream.MatchInfo{
		MatchID:  id,
		SeriesID: testSeriesID,
		Format:   "T20",
		Status:   status,
		Venue:    "Wankhede Stadium",
		Team1: upstream.TeamSheet{Name: "Mumbai Indians", Players: []upstream.Player{
			{Name: "Rohit Sharma"}, {Name: "Suryakumar Yadav"}, {Name: "Impact Sub", Substitute: true},
		}},
		Team2: upstream.TeamSheet{Name: "Chennai Super Kings", Players: []upstream.Player{
			{Name: "Ruturaj Gaikwad"},
		}},
		Toss: &upstream.TossResult{Winner: "Chennai Super Kings", Decision: "bowl"},
	}
}

func newTestMatchService(t *testing.T, provider *upstreammock.Provider) (*MatchService, *DataGateway) {
	t.Helper()
	gateway := newTestGateway(t, provider)
	return NewMatchService(gateway, logging.NewNop()), gateway
}

func TestMatchService_MatchContext_LiveChase(t *testing.T) {
	t.Parallel()

	provider := upstreammock.NewProvider(t)
	provider.On("FetchSeries", mock.Anything, testSeriesID).Return(testSchedule(), nil).Once()
	provider.On("FetchMatchInfo", mock.Anything, 101).Return(testMatchInfo(101, "Chennai Super Kings need 41 runs"), nil).Once()
	provider.On("FetchOvers", mock.Anything, 101).Return(upstream.OversSnapshot{
		MatchID: 101,
		Status:  "Chennai Super Kings need 41 runs in 30 balls",
		Innings: []upstream.InningsLine{
			{InningsID: 2, BattingTeam: "Chennai Super Kings", Runs: 140, Wickets: 4, Overs: 15},
			{InningsID: 1, BattingTeam: "Mumbai Indians", Runs: 180, Wickets: 6, Overs: 20},
		},
		PowerplayRuns: map[int]int{1: 55},
	}, nil).Once()
	provider.On("FetchScorecard", mock.Anything, 101).Return(upstream.Scorecard{}, upstream.ErrEndpointDisabled).Once()

	service, _ := newTestMatchService(t, provider)

	snapshot, err := service.MatchContext(context.Background(), testSeriesID, "2025-04-10", 0)
	if err != nil {
		t.Fatalf("match context: %v", err)
	}

	if snapshot.Classification.Stage != match.StageChaseLive {
		t.Fatalf("unexpected stage: %+v", snapshot.Classification)
	}
	innings := snapshot.Context.Innings
	if len(innings) != 2 || innings[0].InningsID != 1 {
		t.Fatalf("innings not ordered by id: %+v", innings)
	}
	if innings[1].Target == nil || *innings[1].Target != 181 {
		t.Fatalf("expected target 181, got %+v", innings[1].Target)
	}
	if pp := snapshot.Context.Powerplay["Mumbai Indians"]; pp.Runs != 55 || pp.Estimated {
		t.Fatalf("expected upstream powerplay for first innings, got %+v", pp)
	}
	if pp := snapshot.Context.Powerplay["Chennai Super Kings"]; pp.Runs != 56 || !pp.Estimated || pp.Wickets != 2 {
		t.Fatalf("expected estimated powerplay for second innings, got %+v", pp)
	}
	if got := snapshot.Context.PlayingXI["Mumbai Indians"]; len(got) != 2 {
		t.Fatalf("substitutes should be excluded from playing xi: %v", got)
	}
	if _, ok := snapshot.Sources["scorecard"]; ok {
		t.Fatalf("disabled scorecard should not be reported as a source")
	}
	if _, ok := snapshot.Sources["series_matches"]; !ok {
		t.Fatalf("expected series_matches source, got %v", snapshot.Sources)
	}
}

func TestMatchService_MatchContext_NotFound(t *testing.T) {
	t.Parallel()

	provider := upstreammock.NewProvider(t)
	provider.On("FetchSeries", mock.Anything, testSeriesID).Return(testSchedule(), nil).Once()

	service, _ := newTestMatchService(t, provider)
	_, err := service.MatchContext(context.Background(), testSeriesID, "2025-04-10", 5)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMatchService_MatchContext_OversFailureIsContained(t *testing.T) {
	t.Parallel()

	provider := upstreammock.NewProvider(t)
	provider.On("FetchSeries", mock.Anything, testSeriesID).Return(testSchedule(), nil).Once()
	provider.On("FetchMatchInfo", mock.Anything, 101).Return(testMatchInfo(101, "Chennai Super Kings opt to bowl"), nil).Once()
	provider.On("FetchOvers", mock.Anything, 101).Return(upstream.OversSnapshot{}, errors.New("connection reset")).Once()
	provider.On("FetchScorecard", mock.Anything, 101).Return(upstream.Scorecard{}, upstream.ErrEndpointDisabled).Once()

	service, _ := newTestMatchService(t, provider)
	snapshot, err := service.MatchContext(context.Background(), testSeriesID, "2025-04-10", 0)
	if err != nil {
		t.Fatalf("match context: %v", err)
	}
	if snapshot.Classification.Stage != match.StagePostToss {
		t.Fatalf("expected post_toss from match info, got %+v", snapshot.Classification)
	}
	if len(snapshot.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", snapshot.Warnings)
	}
	if snapshot.Sources["live_overs"].Error == "" {
		t.Fatalf("expected live_overs source to carry the error")
	}
}

func TestMatchService_CompletedMatchIsRecachedLongLived(t *testing.T) {
	t.Parallel()

	provider := upstreammock.NewProvider(t)
	provider.On("FetchSeries", mock.Anything, testSeriesID).Return(testSchedule(), nil).Once()
	provider.On("FetchMatchInfo", mock.Anything, 103).Return(upstream.MatchInfo{
		MatchID: 103,
		Format:  "T20",
		Status:  "Gujarat Titans won by 5 wkts",
		Team1:   upstream.TeamSheet{Name: "Gujarat Titans"},
		Team2:   upstream.TeamSheet{Name: "Rajasthan Royals"},
	}, nil).Once()
	provider.On("FetchOvers", mock.Anything, 103).Return(upstream.OversSnapshot{
		MatchID: 103,
		Status:  "Gujarat Titans won by 5 wkts",
		Innings: []upstream.InningsLine{
			{InningsID: 1, BattingTeam: "Rajasthan Royals", Runs: 170, Wickets: 8, Overs: 20},
			{InningsID: 2, BattingTeam: "Gujarat Titans", Runs: 171, Wickets: 5, Overs: 19.2},
		},
	}, nil).Once()
	provider.On("FetchScorecard", mock.Anything, 103).Return(upstream.Scorecard{}, upstream.ErrEndpointDisabled).Once()

	service, gateway := newTestMatchService(t, provider)
	ctx := context.Background()

	snapshot, err := service.MatchContext(ctx, testSeriesID, "2025-04-09", 0)
	if err != nil {
		t.Fatalf("match context: %v", err)
	}
	if snapshot.Classification.Stage != match.StageCompleted {
		t.Fatalf("expected completed, got %+v", snapshot.Classification)
	}

	entry, ok := gateway.cache.Peek(ctx, completedMatchKey(103))
	if !ok {
		t.Fatalf("expected completed match to be cached")
	}
	if entry.TTL != 24*time.Hour {
		t.Fatalf("unexpected completed ttl: %s", entry.TTL)
	}

	// Served from the completed tier without touching upstream again.
	again, _, err := service.CompletedMatch(ctx, snapshot.Listing)
	if err != nil {
		t.Fatalf("completed match: %v", err)
	}
	if again.Context.MatchID != 103 {
		t.Fatalf("unexpected cached snapshot: %+v", again.Context)
	}
}

func TestMatchService_FinishedListingIsServedFromCompletedTier(t *testing.T) {
	t.Parallel()

	provider := upstreammock.NewProvider(t)
	provider.On("FetchSeries", mock.Anything, testSeriesID).Return(testSchedule(), nil).Once()
	provider.On("FetchMatchInfo", mock.Anything, 103).Return(upstream.MatchInfo{
		MatchID: 103,
		Format:  "T20",
		Status:  "Gujarat Titans won by 5 wkts",
		Team1:   upstream.TeamSheet{Name: "Gujarat Titans"},
		Team2:   upstream.TeamSheet{Name: "Rajasthan Royals"},
	}, nil).Once()
	provider.On("FetchOvers", mock.Anything, 103).Return(upstream.OversSnapshot{MatchID: 103, Status: "Gujarat Titans won by 5 wkts"}, nil).Once()
	provider.On("FetchScorecard", mock.Anything, 103).Return(upstream.Scorecard{}, upstream.ErrEndpointDisabled).Once()

	service, _ := newTestMatchService(t, provider)

	for i := range 3 {
		ctx, stats := cache.WithRequestStats(context.Background())
		snapshot, err := service.MatchContext(ctx, testSeriesID, "2025-04-09", 0)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if snapshot.Classification.Stage != match.StageCompleted {
			t.Fatalf("call %d: expected completed, got %+v", i, snapshot.Classification)
		}
		if _, ok := snapshot.Sources["completed_match"]; !ok {
			t.Fatalf("call %d: expected completed_match source, got %v", i, snapshot.Sources)
		}
		if i > 0 && stats.Snapshot().UpstreamCalls != 0 {
			t.Fatalf("call %d: expected no provider calls, got %d", i, stats.Snapshot().UpstreamCalls)
		}
	}
}

func TestMatchService_RetainedCompletedMatchSkipsProvider(t *testing.T) {
	t.Parallel()

	// Schedule still lists the match as upcoming while match info reports
	// the result.
	provider := upstreammock.NewProvider(t)
	provider.On("FetchSeries", mock.Anything, testSeriesID).Return(testSchedule(), nil).Once()
	provider.On("FetchMatchInfo", mock.Anything, 101).Return(testMatchInfo(101, "Mumbai Indians won by 12 runs"), nil).Once()
	provider.On("FetchOvers", mock.Anything, 101).Return(upstream.OversSnapshot{
		MatchID: 101,
		Status:  "Mumbai Indians won by 12 runs",
		Innings: []upstream.InningsLine{
			{InningsID: 1, BattingTeam: "Mumbai Indians", Runs: 180, Wickets: 6, Overs: 20},
			{InningsID: 2, BattingTeam: "Chennai Super Kings", Runs: 168, Wickets: 9, Overs: 20},
		},
	}, nil).Once()
	provider.On("FetchScorecard", mock.Anything, 101).Return(upstream.Scorecard{}, upstream.ErrEndpointDisabled).Once()

	service, _ := newTestMatchService(t, provider)

	first, err := service.MatchContext(context.Background(), testSeriesID, "2025-04-10", 0)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if first.Classification.Stage != match.StageCompleted {
		t.Fatalf("expected completed, got %+v", first.Classification)
	}
	if _, ok := first.Sources["completed_match"]; ok {
		t.Fatalf("first call should assemble live feeds, got %v", first.Sources)
	}

	ctx, stats := cache.WithRequestStats(context.Background())
	second, err := service.MatchContext(ctx, testSeriesID, "2025-04-10", 0)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if got := stats.Snapshot().UpstreamCalls; got != 0 {
		t.Fatalf("expected no provider calls, got %d", got)
	}
	if fresh, ok := second.Sources["completed_match"]; !ok || fresh.Source != cache.SourceHit {
		t.Fatalf("expected completed_match from cache, got %v", second.Sources)
	}
	if second.MatchNumber != 0 || second.Context.MatchID != 101 {
		t.Fatalf("unexpected snapshot: %+v", second)
	}
}

func TestExtractPowerplay(t *testing.T) {
	t.Parallel()

	lines := []upstream.InningsLine{
		{InningsID: 1, BattingTeam: "A", Runs: 48, Wickets: 1, Overs: 5.4},
		{InningsID: 2, BattingTeam: "B", Runs: 120, Wickets: 5, Overs: 12},
		{InningsID: 3, BattingTeam: "", Runs: 10, Overs: 1},
	}
	got := extractPowerplay(lines, nil)

	if got["A"] != (match.PowerplayScore{Runs: 48, Wickets: 1}) {
		t.Fatalf("in-powerplay innings should report actual score, got %+v", got["A"])
	}
	if got["B"] != (match.PowerplayScore{Runs: 60, Wickets: 2, Estimated: true}) {
		t.Fatalf("unexpected estimate: %+v", got["B"])
	}
	if len(got) != 2 {
		t.Fatalf("innings without a batting team should be skipped: %+v", got)
	}
}

func TestCleanTeams(t *testing.T) {
	t.Parallel()

	got := cleanTeams([]string{" Mumbai Indians, Chennai Super Kings ", ""})
	if len(got) != 2 || got[1] != "Chennai Super Kings" {
		t.Fatalf("unexpected teams: %v", got)
	}
	if cleanTeams([]string{" , "}) != nil {
		t.Fatalf("blank filter should be nil")
	}
}
