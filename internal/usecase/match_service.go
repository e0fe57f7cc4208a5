package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/riskibarqy/cricket-predictor/internal/domain/match"
	"github.com/riskibarqy/cricket-predictor/internal/domain/upstream"
	"github.com/riskibarqy/cricket-predictor/internal/platform/cache"
	"github.com/riskibarqy/cricket-predictor/internal/platform/logging"
)

const powerplayOvers = 6

type MatchList struct {
	SeriesID  int                    `json:"series_id"`
	Date      string                 `json:"date"`
	Teams     []string               `json:"teams,omitempty"`
	Matches   []upstream.SeriesMatch `json:"matches"`
	Freshness Freshness              `json:"freshness"`
}

// MatchSnapshot is an assembled match context plus the provenance of every
// feed that went into it.
type MatchSnapshot struct {
	MatchNumber    int                  `json:"match_number"`
	Listing        upstream.SeriesMatch `json:"listing"`
	Context        match.MatchContext   `json:"context"`
	Classification match.Classification `json:"classification"`
	Sources        map[string]Freshness `json:"sources"`
	Warnings       []string             `json:"warnings,omitempty"`
}

type MatchService struct {
	gateway *DataGateway
	logger  *logging.Logger
}

func NewMatchService(gateway *DataGateway, logger *logging.Logger) *MatchService {
	if logger == nil {
		logger = logging.Default()
	}
	return &MatchService{gateway: gateway, logger: logger}
}

// ListMatches returns the day's T20 matches. A teams filter reads the
// schedule directly and skips the per-day list cache.
func (s *MatchService) ListMatches(ctx context.Context, seriesID int, date string, teams []string) (MatchList, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchService.ListMatches")
	defer span.End()

	date, err := s.gateway.normalizeDate(date)
	if err != nil {
		return MatchList{}, err
	}
	teams = cleanTeams(teams)

	if len(teams) == 0 {
		matches, fresh, err := s.gateway.FetchSeriesMatches(ctx, seriesID, date)
		if err != nil {
			return MatchList{}, err
		}
		return MatchList{SeriesID: seriesID, Date: date, Matches: matches, Freshness: fresh}, nil
	}

	schedule, fresh, err := s.gateway.FetchSeriesSchedule(ctx, seriesID)
	if err != nil {
		return MatchList{}, err
	}
	return MatchList{
		SeriesID:  seriesID,
		Date:      date,
		Teams:     teams,
		Matches:   filterMatches(schedule.Matches, date, teams),
		Freshness: fresh,
	}, nil
}

func cleanTeams(teams []string) []string {
	out := make([]string, 0, len(teams))
	for _, raw := range teams {
		for _, team := range strings.Split(raw, ",") {
			if team = strings.TrimSpace(team); team != "" {
				out = append(out, team)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// MatchContext resolves the day's match at index matchNumber (0-based, in
// schedule order) and assembles its current context.
func (s *MatchService) MatchContext(ctx context.Context, seriesID int, date string, matchNumber int) (MatchSnapshot, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchService.MatchContext")
	defer span.End()

	if matchNumber < 0 {
		return MatchSnapshot{}, fmt.Errorf("%w: match number must not be negative", ErrInvalidInput)
	}

	list, err := s.ListMatches(ctx, seriesID, date, nil)
	if err != nil {
		return MatchSnapshot{}, err
	}
	if matchNumber >= len(list.Matches) {
		return MatchSnapshot{}, fmt.Errorf("%w: match %d on %s (series=%d, found %d)",
			ErrNotFound, matchNumber, list.Date, seriesID, len(list.Matches))
	}

	listing := list.Matches[matchNumber]
	if s.knownCompleted(ctx, listing) {
		snapshot, fresh, err := s.CompletedMatch(ctx, listing)
		if err == nil {
			snapshot.MatchNumber = matchNumber
			if snapshot.Sources == nil {
				snapshot.Sources = make(map[string]Freshness, 2)
			}
			snapshot.Sources["completed_match"] = fresh
			snapshot.Sources["series_matches"] = list.Freshness
			return snapshot, nil
		}
		s.logger.WarnContext(ctx, "completed match unavailable, assembling live feeds",
			"match_id", listing.MatchID,
			"error", err,
		)
	}

	snapshot, err := s.assemble(ctx, listing, true)
	if err != nil {
		return MatchSnapshot{}, err
	}
	snapshot.MatchNumber = matchNumber
	snapshot.Sources["series_matches"] = list.Freshness
	return snapshot, nil
}

// knownCompleted reports whether the listing is already over, either by its
// schedule status or because a completed snapshot was retained earlier.
func (s *MatchService) knownCompleted(ctx context.Context, listing upstream.SeriesMatch) bool {
	if match.Finished(listing.Status) {
		return true
	}
	_, ok := s.gateway.cache.Peek(ctx, completedMatchKey(listing.MatchID))
	return ok
}

// CompletedMatch serves a finished match from the long-lived completed tier,
// assembling it once on a miss.
func (s *MatchService) CompletedMatch(ctx context.Context, listing upstream.SeriesMatch) (MatchSnapshot, Freshness, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchService.CompletedMatch")
	defer span.End()

	key := completedMatchKey(listing.MatchID)
	snapshot, res, err := cache.Load(ctx, s.gateway.cache, cache.ModeGetOrFetch, key, s.gateway.tiers.CompletedMatch,
		func(ctx context.Context) (MatchSnapshot, error) {
			return s.assemble(ctx, listing, false)
		})
	if err != nil {
		return MatchSnapshot{}, failedFreshness(key, err), fmt.Errorf("completed match %d: %w", listing.MatchID, err)
	}
	return snapshot, freshnessOf(key, res), nil
}

func (s *MatchService) assemble(ctx context.Context, listing upstream.SeriesMatch, remember bool) (MatchSnapshot, error) {
	snapshot := MatchSnapshot{
		Listing: listing,
		Sources: make(map[string]Freshness, 4),
	}

	info, infoFresh, infoErr := s.gateway.FetchMatchInfo(ctx, listing.MatchID)
	snapshot.Sources["match_info"] = infoFresh
	if infoErr != nil {
		snapshot.Warnings = append(snapshot.Warnings, "match info unavailable")
		s.logger.WarnContext(ctx, "match info unavailable, using schedule listing",
			"match_id", listing.MatchID,
			"error", infoErr,
		)
	}

	overs, oversFresh, oversErr := s.gateway.FetchLiveOvers(ctx, listing.MatchID)
	snapshot.Sources["live_overs"] = oversFresh
	if oversErr != nil {
		snapshot.Warnings = append(snapshot.Warnings, "live overs unavailable")
		s.logger.WarnContext(ctx, "live overs unavailable",
			"match_id", listing.MatchID,
			"error", oversErr,
		)
	}

	if infoErr != nil && oversErr != nil {
		return MatchSnapshot{}, fmt.Errorf("assemble match %d: %w", listing.MatchID, infoErr)
	}

	card, cardFresh, cardErr := s.gateway.FetchScorecard(ctx, listing.MatchID)
	switch {
	case cardErr == nil:
		snapshot.Sources["scorecard"] = cardFresh
	case errors.Is(cardErr, upstream.ErrEndpointDisabled):
	default:
		snapshot.Sources["scorecard"] = cardFresh
		s.logger.WarnContext(ctx, "scorecard unavailable, using overs innings",
			"match_id", listing.MatchID,
			"error", cardErr,
		)
	}

	snapshot.Context = buildMatchContext(listing, info, overs, card)
	snapshot.Classification = match.Classify(snapshot.Context)
	if snapshot.Classification.Ambiguous {
		s.logger.WarnContext(ctx, "ambiguous match stage",
			"match_id", listing.MatchID,
			"stage", string(snapshot.Classification.Stage),
			"reason", snapshot.Classification.Reason,
			"status", snapshot.Context.StatusText,
		)
	}

	if remember && snapshot.Classification.Stage == match.StageCompleted {
		key := completedMatchKey(listing.MatchID)
		if err := cache.Store(ctx, s.gateway.cache, key, s.gateway.tiers.CompletedMatch, snapshot); err != nil {
			s.logger.WarnContext(ctx, "store completed match failed", "key", key, "error", err)
		}
	}
	return snapshot, nil
}

func buildMatchContext(listing upstream.SeriesMatch, info upstream.MatchInfo, overs upstream.OversSnapshot, card upstream.Scorecard) match.MatchContext {
	mc := match.MatchContext{
		MatchID:    listing.MatchID,
		SeriesID:   listing.SeriesID,
		Team1:      firstNonBlank(info.Team1.Name, listing.Team1),
		Team2:      firstNonBlank(info.Team2.Name, listing.Team2),
		Venue:      firstNonBlank(info.Venue, listing.Venue),
		StartTime:  listing.StartTime,
		Format:     match.Format(strings.ToUpper(firstNonBlank(info.Format, listing.Format))),
		StatusText: firstNonBlank(overs.Status, card.Status, info.Status, listing.Status),
	}
	if !info.StartTime.IsZero() {
		mc.StartTime = info.StartTime
	}
	if info.Toss != nil && strings.TrimSpace(info.Toss.Winner) != "" {
		mc.Toss = &match.Toss{Winner: info.Toss.Winner, Decision: info.Toss.Decision}
	}

	lines := card.Innings
	if len(lines) == 0 {
		lines = overs.Innings
	}
	mc.Innings = buildInnings(lines)
	mc.Powerplay = extractPowerplay(lines, overs.PowerplayRuns)

	xi := make(map[string][]string, 2)
	for _, sheet := range []upstream.TeamSheet{info.Team1, info.Team2} {
		if sheet.Name == "" {
			continue
		}
		for _, p := range sheet.Players {
			if !p.Substitute {
				xi[sheet.Name] = append(xi[sheet.Name], p.Name)
			}
		}
	}
	if len(xi) > 0 {
		mc.PlayingXI = xi
	}
	return mc
}

// buildInnings orders innings by id and sets the chase target on the second
// innings when a different side is batting.
func buildInnings(lines []upstream.InningsLine) []match.InningsState {
	if len(lines) == 0 {
		return nil
	}
	sorted := make([]upstream.InningsLine, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].InningsID < sorted[j].InningsID })

	out := make([]match.InningsState, 0, len(sorted))
	for i, line := range sorted {
		state := match.InningsState{
			InningsID:      line.InningsID,
			BattingTeam:    line.BattingTeam,
			Runs:           line.Runs,
			Wickets:        line.Wickets,
			OversCompleted: line.Overs,
		}
		if i == 1 && !strings.EqualFold(line.BattingTeam, sorted[0].BattingTeam) {
			target := sorted[0].Runs + 1
			state.Target = &target
		}
		out = append(out, state)
	}
	return out
}

// extractPowerplay reports the first six overs of each innings. Innings past
// the powerplay use the upstream powerplay total when present, otherwise a
// pro-rata estimate.
func extractPowerplay(lines []upstream.InningsLine, ppRuns map[int]int) map[string]match.PowerplayScore {
	out := make(map[string]match.PowerplayScore, len(lines))
	for _, line := range lines {
		team := strings.TrimSpace(line.BattingTeam)
		if team == "" {
			continue
		}
		if line.Overs <= powerplayOvers {
			out[team] = match.PowerplayScore{Runs: line.Runs, Wickets: line.Wickets}
			continue
		}

		ppKey := 2
		if line.InningsID == 1 {
			ppKey = 1
		}
		if runs := ppRuns[ppKey]; runs > 0 {
			out[team] = match.PowerplayScore{Runs: runs}
			continue
		}

		overs := match.BallsToOvers(match.OversToBalls(line.Overs))
		out[team] = match.PowerplayScore{
			Runs:      int(float64(line.Runs) * powerplayOvers / overs),
			Wickets:   min(2, line.Wickets),
			Estimated: true,
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
