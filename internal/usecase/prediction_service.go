package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/riskibarqy/cricket-predictor/internal/domain/match"
	"github.com/riskibarqy/cricket-predictor/internal/domain/prior"
	"github.com/riskibarqy/cricket-predictor/internal/platform/cache"
	"github.com/riskibarqy/cricket-predictor/internal/platform/logging"
)

const (
	KindPreMatch = "pre_match"
	KindLive     = "live"

	maxConfidence   = 0.8
	postTossBoost   = 0.05
	wicketsCap      = 10
	defaultMaxOvers = 20

	winnerMethodDefault = "default_50_50"
	winnerMethodForm    = "series_form_ratio"
	winnerMethodChase   = "chase_projection"
)

var confidenceByTier = map[string]map[prior.Tier]float64{
	KindPreMatch: {prior.TierVenue: 0.70, prior.TierSeries: 0.58, prior.TierLeague: 0.48},
	KindLive:     {prior.TierVenue: 0.72, prior.TierSeries: 0.60, prior.TierLeague: 0.48},
}

// Provenance records which prior tier and which data feed a value rests on.
type Provenance struct {
	Tier           prior.Tier `json:"tier,omitempty"`
	SampleSize     int        `json:"sample_size"`
	FloorApplied   bool       `json:"floor_applied,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	Source         string     `json:"source"`
	Fresh          bool       `json:"fresh"`
	StaleServed    bool       `json:"stale_served"`
	DataAgeSeconds float64    `json:"data_age_seconds"`
}

type RangePrediction struct {
	Low        int        `json:"low"`
	Mid        int        `json:"mid"`
	High       int        `json:"high"`
	Provenance Provenance `json:"provenance"`
}

type WinnerPrediction struct {
	Team          string             `json:"team"`
	Probability   *float64           `json:"probability,omitempty"`
	Probabilities map[string]float64 `json:"probabilities,omitempty"`
	Method        string             `json:"method"`
	Provenance    Provenance         `json:"provenance"`
}

type ChasePrediction struct {
	Target          int        `json:"target"`
	RequiredRunRate *float64   `json:"required_run_rate,omitempty"`
	WillReach       bool       `json:"will_reach"`
	FinishAt        string     `json:"finish_at,omitempty"`
	ShortBy         *int       `json:"short_by,omitempty"`
	HistoricalRate  *float64   `json:"historical_success_rate,omitempty"`
	Provenance      Provenance `json:"provenance"`
}

type LiveState struct {
	BattingTeam    string     `json:"batting_team"`
	Runs           int        `json:"runs"`
	Wickets        int        `json:"wickets"`
	Overs          float64    `json:"overs"`
	CurrentRunRate float64    `json:"current_run_rate"`
	ProjectedTotal *int       `json:"projected_total,omitempty"`
	Provenance     Provenance `json:"provenance"`
}

type MatchSummary struct {
	MatchID int    `json:"match_id"`
	Team1   string `json:"team1"`
	Team2   string `json:"team2"`
	Venue   string `json:"venue"`
	Date    string `json:"date"`
	Status  string `json:"status"`
}

type PriorView struct {
	Metric prior.Metric  `json:"metric"`
	Bundle *prior.Bundle `json:"bundle,omitempty"`
	Error  string        `json:"error,omitempty"`
}

type Prediction struct {
	Kind           string                     `json:"kind"`
	Stage          match.Stage                `json:"stage"`
	StageAmbiguous bool                       `json:"stage_ambiguous,omitempty"`
	StageReason    string                     `json:"stage_reason"`
	Match          MatchSummary               `json:"match"`
	Message        string                     `json:"message,omitempty"`
	DataQuality    string                     `json:"data_quality,omitempty"`
	FallbackLevel  prior.Tier                 `json:"fallback_level,omitempty"`
	FallbackReason string                     `json:"fallback_reason,omitempty"`
	Confidence     float64                    `json:"confidence,omitempty"`
	Uncertainty    string                     `json:"uncertainty,omitempty"`
	Winner         *WinnerPrediction          `json:"winner,omitempty"`
	TotalScore     *RangePrediction           `json:"total_score,omitempty"`
	Wickets        *RangePrediction           `json:"wickets,omitempty"`
	Powerplay      *RangePrediction           `json:"powerplay,omitempty"`
	Chase          *ChasePrediction           `json:"chase,omitempty"`
	Live           *LiveState                 `json:"live,omitempty"`
	TeamForm       map[string]TeamForm        `json:"team_form,omitempty"`
	Priors         []PriorView                `json:"priors,omitempty"`
	Unavailable    map[string]string          `json:"unavailable,omitempty"`
	Sources        map[string]Freshness       `json:"sources"`
	RequestStats   cache.RequestStatsSnapshot `json:"request_stats"`
}

type PriorReport struct {
	SeriesID int         `json:"series_id"`
	Venue    string      `json:"venue"`
	Stage    match.Stage `json:"stage"`
	Target   int         `json:"target,omitempty"`
	Priors   []PriorView `json:"priors"`
	Features Freshness   `json:"features"`
}

// PredictionService turns a match snapshot and resolved priors into
// predictions. It does no I/O of its own.
type PredictionService struct {
	matches  *MatchService
	features *FeatureService
	resolver *prior.Resolver
	logger   *logging.Logger
}

func NewPredictionService(matches *MatchService, features *FeatureService, resolver *prior.Resolver, logger *logging.Logger) *PredictionService {
	if logger == nil {
		logger = logging.Default()
	}
	return &PredictionService{matches: matches, features: features, resolver: resolver, logger: logger}
}

func (s *PredictionService) PreMatch(ctx context.Context, seriesID int, date string, matchNumber int) (Prediction, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.PredictionService.PreMatch")
	defer span.End()

	snapshot, err := s.matches.MatchContext(ctx, seriesID, date, matchNumber)
	if err != nil {
		return Prediction{}, err
	}

	p := newPrediction(KindPreMatch, snapshot)
	switch stage := snapshot.Classification.Stage; {
	case stage == match.StageCompleted:
		p.Message = "Match already completed. Showing final status only."
	case !stage.PreMatch():
		p.Message = "Match already started. Use the live prediction for current estimates."
	default:
		s.predictFromPriors(ctx, &p, snapshot, seriesID, nil)
	}
	return finish(ctx, p), nil
}

func (s *PredictionService) Live(ctx context.Context, seriesID int, date string, matchNumber int) (Prediction, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.PredictionService.Live")
	defer span.End()

	snapshot, err := s.matches.MatchContext(ctx, seriesID, date, matchNumber)
	if err != nil {
		return Prediction{}, err
	}

	p := newPrediction(KindLive, snapshot)
	stage := snapshot.Classification.Stage
	switch {
	case stage == match.StageCompleted:
		p.Message = "Match already completed. Showing final status only."
	case stage.PreMatch():
		p.Kind = KindPreMatch
		p.Message = "Match has not started yet. Showing pre-match prediction."
		s.predictFromPriors(ctx, &p, snapshot, seriesID, nil)
	case stage == match.StageSuperOver:
		p.Message = "Super over in progress. Innings projections do not apply."
		p.Live = liveState(snapshot)
	default:
		p.Live = liveState(snapshot)
		s.predictFromPriors(ctx, &p, snapshot, seriesID, p.Live)
	}
	return finish(ctx, p), nil
}

// ResolvePriors exposes the resolver for one venue and stage.
func (s *PredictionService) ResolvePriors(ctx context.Context, seriesID int, venue string, stage match.Stage, target int) (PriorReport, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.PredictionService.ResolvePriors")
	defer span.End()

	venue = strings.TrimSpace(venue)
	if venue == "" {
		return PriorReport{}, fmt.Errorf("%w: venue is required", ErrInvalidInput)
	}
	if stage == "" {
		stage = match.StagePreToss
	}
	if target < 0 {
		return PriorReport{}, fmt.Errorf("%w: target must not be negative", ErrInvalidInput)
	}

	features, fresh, err := s.features.SeriesFeatures(ctx, seriesID)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			return PriorReport{}, err
		}
		s.logger.WarnContext(ctx, "series features unavailable, resolving from league defaults",
			"series_id", seriesID,
			"error", err,
		)
	}

	metrics := prior.MetricsForStage(stage, target)
	return PriorReport{
		SeriesID: seriesID,
		Venue:    venue,
		Stage:    stage,
		Target:   target,
		Priors:   priorViews(s.resolver.ResolveAll(features.Tables, venue, seriesID, metrics)),
		Features: fresh,
	}, nil
}

func newPrediction(kind string, snapshot MatchSnapshot) Prediction {
	mc := snapshot.Context
	sources := make(map[string]Freshness, len(snapshot.Sources)+1)
	for k, v := range snapshot.Sources {
		sources[k] = v
	}
	return Prediction{
		Kind:           kind,
		Stage:          snapshot.Classification.Stage,
		StageAmbiguous: snapshot.Classification.Ambiguous,
		StageReason:    snapshot.Classification.Reason,
		Match: MatchSummary{
			MatchID: mc.MatchID,
			Team1:   mc.Team1,
			Team2:   mc.Team2,
			Venue:   mc.Venue,
			Date:    mc.StartTime.UTC().Format(dateLayout),
			Status:  mc.StatusText,
		},
		Sources: sources,
	}
}

func finish(ctx context.Context, p Prediction) Prediction {
	p.RequestStats = cache.RequestStatsFrom(ctx).Snapshot()
	return p
}

func (s *PredictionService) predictFromPriors(ctx context.Context, p *Prediction, snapshot MatchSnapshot, seriesID int, live *LiveState) {
	mc := snapshot.Context
	stage := snapshot.Classification.Stage

	features, featFresh, err := s.features.SeriesFeatures(ctx, seriesID)
	p.Sources["features"] = featFresh
	if err != nil {
		s.logger.WarnContext(ctx, "series features unavailable, falling back to league defaults",
			"series_id", seriesID,
			"error", err,
		)
	}

	target := chaseTarget(mc, stage, live)
	resolutions := s.resolver.ResolveAll(features.Tables, mc.Venue, seriesID, prior.MetricsForStage(stage, target))
	p.Priors = priorViews(resolutions)

	bundles := make(map[prior.Metric]prior.Bundle, len(resolutions))
	for _, r := range resolutions {
		if r.Err != nil {
			p.unavailable(string(r.Metric), r.Err.Error())
			continue
		}
		bundles[r.Metric] = r.Bundle
	}

	runs, haveRuns := bundles[prior.MetricInningsRuns]
	if haveRuns {
		low, mid, high := rangeFromStats(runs.Avg, runs.StdDev, 0)
		p.TotalScore = &RangePrediction{Low: low, Mid: mid, High: high, Provenance: priorProvenance(runs, featFresh)}
	}
	if wkts, ok := bundles[prior.MetricInningsWickets]; ok {
		low, mid, high := rangeFromStats(wkts.Avg, wkts.StdDev, wicketsCap)
		p.Wickets = &RangePrediction{Low: low, Mid: mid, High: high, Provenance: priorProvenance(wkts, featFresh)}
	}
	if ratio, ok := bundles[prior.MetricPowerplayRatio]; ok && p.TotalScore != nil {
		low := int(math.Round(float64(p.TotalScore.Low) * ratio.Avg))
		mid := int(math.Round(float64(p.TotalScore.Mid) * ratio.Avg))
		high := int(math.Round(float64(p.TotalScore.High) * ratio.Avg))
		p.Powerplay = &RangePrediction{Low: min(low, high), Mid: mid, High: max(low, high), Provenance: priorProvenance(ratio, featFresh)}
	} else if ok {
		p.unavailable("powerplay", "innings runs prior unavailable")
	}

	level, reason := fallbackLevel(runs, haveRuns)
	form1, ok1 := features.TeamForm[mc.Team1]
	form2, ok2 := features.TeamForm[mc.Team2]
	haveForm := ok1 && ok2
	if !haveForm {
		level = prior.TierLeague
		reason += "; team form unavailable for one or both teams"
	} else {
		p.TeamForm = map[string]TeamForm{mc.Team1: form1, mc.Team2: form2}
	}

	p.FallbackLevel = level
	p.FallbackReason = reason
	p.DataQuality = "degraded"
	if level == prior.TierVenue {
		p.DataQuality = "good"
	}
	confidence := confidenceByTier[p.Kind][level]
	if stage == match.StagePostToss {
		confidence = math.Min(maxConfidence, confidence+postTossBoost)
	}
	p.Confidence = roundTo(confidence, 2)
	p.Uncertainty = uncertaintyFor(confidence)

	formProvenance := Provenance{Tier: level, Source: "features", Fresh: featFresh.Fresh, StaleServed: featFresh.StaleServed, DataAgeSeconds: featFresh.AgeSeconds}
	if live != nil {
		p.Chase = chasePrediction(mc, stage, live, bundles)
	}
	switch {
	case p.Chase != nil:
		p.Winner = chaseWinner(mc, live, p.Chase)
	case haveForm:
		p.Winner = formWinner(mc, form1, form2, level, formProvenance)
	case live == nil:
		p.Winner = evenWinner(mc, level, formProvenance)
	default:
		p.unavailable("winner", "insufficient data for winner prediction")
	}
}

func (p *Prediction) unavailable(metric, reason string) {
	if p.Unavailable == nil {
		p.Unavailable = make(map[string]string)
	}
	p.Unavailable[metric] = reason
}

func priorViews(resolutions []prior.Resolution) []PriorView {
	out := make([]PriorView, 0, len(resolutions))
	for _, r := range resolutions {
		view := PriorView{Metric: r.Metric}
		if r.Err != nil {
			view.Error = r.Err.Error()
		} else {
			bundle := r.Bundle
			view.Bundle = &bundle
		}
		out = append(out, view)
	}
	return out
}

func priorProvenance(b prior.Bundle, fresh Freshness) Provenance {
	return Provenance{
		Tier:           b.SourceTier,
		SampleSize:     b.SampleSize,
		FloorApplied:   b.FloorApplied,
		Reason:         b.Reason,
		Source:         "features",
		Fresh:          fresh.Fresh,
		StaleServed:    fresh.StaleServed,
		DataAgeSeconds: fresh.AgeSeconds,
	}
}

func liveProvenance(snapshot MatchSnapshot) Provenance {
	source := "live_overs"
	if _, ok := snapshot.Sources["scorecard"]; ok && snapshot.Sources["scorecard"].Error == "" {
		source = "scorecard"
	}
	fresh := snapshot.Sources[source]
	return Provenance{Source: source, Fresh: fresh.Fresh, StaleServed: fresh.StaleServed, DataAgeSeconds: fresh.AgeSeconds}
}

func fallbackLevel(runs prior.Bundle, ok bool) (prior.Tier, string) {
	if !ok {
		return prior.TierLeague, "no innings runs prior available"
	}
	return runs.SourceTier, runs.Reason
}

// chaseTarget is the score the chasing side needs: the actual target once a
// chase has started, otherwise the first innings total (or its projection)
// plus one. 0 means no chase prior applies yet.
func chaseTarget(mc match.MatchContext, stage match.Stage, live *LiveState) int {
	switch stage {
	case match.StageChaseLive:
		if n := len(mc.Innings); n > 1 && mc.Innings[1].Target != nil {
			return *mc.Innings[1].Target
		}
	case match.StageInningsBreak:
		if len(mc.Innings) > 0 {
			return mc.Innings[0].Runs + 1
		}
	case match.StageInnings1Live:
		if live != nil && live.ProjectedTotal != nil {
			return *live.ProjectedTotal + 1
		}
	}
	return 0
}

func liveState(snapshot MatchSnapshot) *LiveState {
	innings := snapshot.Context.Innings
	if len(innings) == 0 {
		return nil
	}
	current := innings[len(innings)-1]
	balls := current.Balls()
	overs := match.BallsToOvers(balls)

	state := &LiveState{
		BattingTeam: current.BattingTeam,
		Runs:        current.Runs,
		Wickets:     current.Wickets,
		Overs:       current.OversCompleted,
		Provenance:  liveProvenance(snapshot),
	}
	if balls > 0 {
		rr := float64(current.Runs) / overs
		state.CurrentRunRate = roundTo(rr, 2)
		remaining := math.Max(0, float64(maxOversOf(snapshot.Context))-overs)
		projected := int(math.Round(float64(current.Runs) + rr*remaining))
		state.ProjectedTotal = &projected
	}
	return state
}

func maxOversOf(mc match.MatchContext) int {
	if n := mc.Format.MaxOvers(); n > 0 {
		return n
	}
	return defaultMaxOvers
}

// chasePrediction projects the second innings at the current run rate. It is
// nil outside a live chase.
func chasePrediction(mc match.MatchContext, stage match.Stage, live *LiveState, bundles map[prior.Metric]prior.Bundle) *ChasePrediction {
	if stage != match.StageChaseLive || live == nil || len(mc.Innings) < 2 || mc.Innings[1].Target == nil {
		return nil
	}
	target := *mc.Innings[1].Target
	current := mc.Innings[1]
	balls := current.Balls()

	out := &ChasePrediction{Target: target, Provenance: live.Provenance}
	if remaining := maxOversOf(mc)*6 - balls; remaining > 0 {
		rrr := roundTo(float64(target-current.Runs)/(float64(remaining)/6), 2)
		out.RequiredRunRate = &rrr
	}
	if b, ok := bundles[prior.ChaseMetric(target)]; ok {
		rate := roundTo(b.Avg, 3)
		out.HistoricalRate = &rate
	}
	if live.ProjectedTotal == nil {
		return out
	}

	projected := *live.ProjectedTotal
	if projected >= target {
		needed := 0
		rr := float64(current.Runs) / match.BallsToOvers(balls)
		if rr > 0 && target > current.Runs {
			needed = int(math.Ceil(float64(target-current.Runs) / rr * 6))
		}
		finishAt := balls + needed
		out.WillReach = true
		out.FinishAt = fmt.Sprintf("%d.%d", finishAt/6, finishAt%6)
		return out
	}
	shortBy := target - projected
	out.ShortBy = &shortBy
	return out
}

func chaseWinner(mc match.MatchContext, live *LiveState, chase *ChasePrediction) *WinnerPrediction {
	team := live.BattingTeam
	if !chase.WillReach {
		team = mc.Opponent(live.BattingTeam)
	}
	return &WinnerPrediction{Team: team, Method: winnerMethodChase, Provenance: live.Provenance}
}

func formWinner(mc match.MatchContext, form1, form2 TeamForm, level prior.Tier, prov Provenance) *WinnerPrediction {
	total := form1.WinRate() + form2.WinRate()
	if total == 0 {
		return evenWinner(mc, level, prov)
	}
	return probabilityWinner(mc, form1.WinRate()/total, form2.WinRate()/total, winnerMethodForm, level, prov)
}

func evenWinner(mc match.MatchContext, level prior.Tier, prov Provenance) *WinnerPrediction {
	return probabilityWinner(mc, 0.5, 0.5, winnerMethodDefault, level, prov)
}

func probabilityWinner(mc match.MatchContext, p1, p2 float64, method string, level prior.Tier, prov Provenance) *WinnerPrediction {
	places := 2
	if level == prior.TierVenue {
		places = 3
	}
	r1, r2 := roundTo(p1, places), roundTo(p2, places)
	team, prob := mc.Team1, r1
	if p2 > p1 {
		team, prob = mc.Team2, r2
	}
	return &WinnerPrediction{
		Team:          team,
		Probability:   &prob,
		Probabilities: map[string]float64{mc.Team1: r1, mc.Team2: r2},
		Method:        method,
		Provenance:    prov,
	}
}

// rangeFromStats is avg ± one standard deviation, clamped at zero and, when
// limit is positive, at limit.
func rangeFromStats(avg, std float64, limit int) (int, int, int) {
	low := max(0, int(math.Round(avg-std)))
	mid := max(0, int(math.Round(avg)))
	high := max(low, int(math.Round(avg+std)))
	if limit > 0 {
		low, mid, high = min(low, limit), min(mid, limit), min(high, limit)
	}
	return low, mid, high
}

func uncertaintyFor(confidence float64) string {
	switch {
	case confidence >= 0.7:
		return "low"
	case confidence >= 0.55:
		return "medium"
	default:
		return "high"
	}
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
