package usecase

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/riskibarqy/cricket-predictor/internal/domain/prior"
	"github.com/riskibarqy/cricket-predictor/internal/domain/upstream"
	"github.com/riskibarqy/cricket-predictor/internal/platform/cache"
	"github.com/riskibarqy/cricket-predictor/internal/platform/logging"
)

const defaultFeatureWorkers = 4

type TeamForm struct {
	Played int `json:"played"`
	Wins   int `json:"wins"`
}

func (f TeamForm) WinRate() float64 {
	if f.Played == 0 {
		return 0
	}
	return float64(f.Wins) / float64(f.Played)
}

// SeriesFeatures are the aggregates derived from a series' finished matches.
type SeriesFeatures struct {
	SeriesID    int                 `json:"series_id"`
	Tables      prior.Tables        `json:"tables"`
	TeamForm    map[string]TeamForm `json:"team_form"`
	MatchesUsed int                 `json:"matches_used"`
	BuiltAt     time.Time           `json:"built_at"`
}

type FeatureService struct {
	gateway *DataGateway
	matches *MatchService
	workers int
	logger  *logging.Logger
}

func NewFeatureService(gateway *DataGateway, matches *MatchService, workers int, logger *logging.Logger) *FeatureService {
	if workers < 1 {
		workers = defaultFeatureWorkers
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FeatureService{gateway: gateway, matches: matches, workers: workers, logger: logger}
}

// SeriesFeatures serves the series aggregates stale-while-revalidate.
func (s *FeatureService) SeriesFeatures(ctx context.Context, seriesID int) (SeriesFeatures, Freshness, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.FeatureService.SeriesFeatures")
	defer span.End()

	key := featuresKey(seriesID)
	if seriesID <= 0 {
		err := fmt.Errorf("%w: series id must be positive", ErrInvalidInput)
		return SeriesFeatures{}, failedFreshness(key, err), err
	}

	features, res, err := cache.Load(ctx, s.gateway.cache, cache.ModeStaleWhileRevalidate, key, s.gateway.tiers.Features,
		func(ctx context.Context) (SeriesFeatures, error) {
			return s.build(ctx, seriesID)
		})
	if err != nil {
		return SeriesFeatures{}, failedFreshness(key, err), fmt.Errorf("series features %d: %w", seriesID, err)
	}
	return features, freshnessOf(key, res), nil
}

type decidedMatch struct {
	listing   upstream.SeriesMatch
	team1Runs int
	team2Runs int
	team1Wkts int
	team2Wkts int
}

type powerplayShares struct {
	index  int
	ratios []float64
}

func (s *FeatureService) build(ctx context.Context, seriesID int) (SeriesFeatures, error) {
	schedule, _, err := s.gateway.FetchSeriesSchedule(ctx, seriesID)
	if err != nil {
		return SeriesFeatures{}, err
	}

	decided := decidedMatches(schedule.Matches)
	shares := s.powerplayShares(ctx, decided)

	venues := make(map[string]aggregateBuilder)
	series := aggregateBuilder{}
	form := make(map[string]TeamForm)

	for i, d := range decided {
		venue := d.listing.Venue
		if venues[venue] == nil {
			venues[venue] = aggregateBuilder{}
		}
		for _, agg := range []aggregateBuilder{venues[venue], series} {
			agg.add(prior.MetricInningsRuns, float64(d.team1Runs), float64(d.team2Runs))
			agg.add(prior.MetricInningsWickets, float64(d.team1Wkts), float64(d.team2Wkts))

			target := d.team1Runs + 1
			chased := 0.0
			if d.team2Runs >= target {
				chased = 1
			}
			agg.add(prior.ChaseMetric(target), chased)

			if len(shares[i]) > 0 {
				agg.add(prior.MetricPowerplayRatio, shares[i]...)
			}
		}

		winner := winnerFromStatus(d.listing.Status, d.listing.Team1, d.listing.Team2)
		for _, team := range []string{d.listing.Team1, d.listing.Team2} {
			tf := form[team]
			tf.Played++
			if winner != "" && strings.EqualFold(team, winner) {
				tf.Wins++
			}
			form[team] = tf
		}
	}

	tables := prior.Tables{
		Venue:  make(map[string]prior.Aggregate, len(venues)),
		Series: map[int]prior.Aggregate{},
	}
	for venue, agg := range venues {
		tables.Venue[venue] = agg.build()
	}
	if len(decided) > 0 {
		tables.Series[seriesID] = series.build()
	}

	s.logger.InfoContext(ctx, "series features built",
		"series_id", seriesID,
		"matches_used", len(decided),
		"venues", len(venues),
	)
	return SeriesFeatures{
		SeriesID:    seriesID,
		Tables:      tables,
		TeamForm:    form,
		MatchesUsed: len(decided),
		BuiltAt:     time.Now().UTC(),
	}, nil
}

// decidedMatches keeps matches with a result and both first-innings scores.
func decidedMatches(matches []upstream.SeriesMatch) []decidedMatch {
	out := make([]decidedMatch, 0, len(matches))
	for _, m := range matches {
		if !strings.Contains(strings.ToLower(m.Status), "won by") {
			continue
		}
		if strings.TrimSpace(m.Venue) == "" || m.Team1 == "" || m.Team2 == "" {
			continue
		}
		if m.Team1Score == nil || m.Team2Score == nil {
			continue
		}
		out = append(out, decidedMatch{
			listing:   m,
			team1Runs: m.Team1Score.Runs,
			team2Runs: m.Team2Score.Runs,
			team1Wkts: m.Team1Score.Wickets,
			team2Wkts: m.Team2Score.Wickets,
		})
	}
	return out
}

// powerplayShares loads completed match details concurrently and returns,
// per decided match, the powerplay share of each side's innings total. A
// match whose details fail contributes no share.
func (s *FeatureService) powerplayShares(ctx context.Context, decided []decidedMatch) map[int][]float64 {
	p := pool.NewWithResults[powerplayShares]().WithMaxGoroutines(s.workers)
	for i, d := range decided {
		p.Go(func() powerplayShares {
			snapshot, _, err := s.matches.CompletedMatch(ctx, d.listing)
			if err != nil {
				s.logger.DebugContext(ctx, "skip powerplay share", "match_id", d.listing.MatchID, "error", err)
				return powerplayShares{index: i}
			}

			ratios := make([]float64, 0, 2)
			totals := map[string]int{d.listing.Team1: d.team1Runs, d.listing.Team2: d.team2Runs}
			for team, pp := range snapshot.Context.Powerplay {
				total, ok := totals[team]
				if !ok || total <= 0 || pp.Runs <= 0 {
					continue
				}
				ratios = append(ratios, float64(pp.Runs)/float64(total))
			}
			return powerplayShares{index: i, ratios: ratios}
		})
	}

	out := make(map[int][]float64, len(decided))
	for _, r := range p.Wait() {
		out[r.index] = r.ratios
	}
	return out
}

// winnerFromStatus matches the side whose name opens a result line such as
// "Mumbai Indians won by 5 wkts".
func winnerFromStatus(status, team1, team2 string) string {
	status = strings.ToLower(strings.TrimSpace(status))
	for _, team := range []string{team1, team2} {
		if team != "" && strings.HasPrefix(status, strings.ToLower(team)) {
			return team
		}
	}
	return ""
}

type metricSamples struct {
	values  []float64
	matches int
}

// aggregateBuilder collects per-match observations. SampleSize counts the
// matches that contributed, however many values each added.
type aggregateBuilder map[prior.Metric]*metricSamples

func (b aggregateBuilder) add(metric prior.Metric, values ...float64) {
	samples := b[metric]
	if samples == nil {
		samples = &metricSamples{}
		b[metric] = samples
	}
	samples.values = append(samples.values, values...)
	samples.matches++
}

func (b aggregateBuilder) build() prior.Aggregate {
	out := make(prior.Aggregate, len(b))
	for metric, samples := range b {
		if len(samples.values) == 0 {
			continue
		}
		avg, std := meanStdDev(samples.values)
		out[metric] = prior.Stat{Avg: avg, StdDev: std, SampleSize: samples.matches}
	}
	return out
}

// meanStdDev returns the mean and population standard deviation.
func meanStdDev(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}
