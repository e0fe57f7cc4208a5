package cricbuzz

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/valyala/bytebufferpool"

	"github.com/riskibarqy/cricket-predictor/internal/domain/upstream"
	"github.com/riskibarqy/cricket-predictor/internal/platform/logging"
	"github.com/riskibarqy/cricket-predictor/internal/platform/resilience"
	"github.com/riskibarqy/cricket-predictor/internal/usecase"
)

const (
	defaultBaseURL    = "https://Cricbuzz-Official-Cricket-API.proxy-production.allthingsdev.co"
	defaultAPIHost    = "Cricbuzz-Official-Cricket-API.allthingsdev.co"
	maxResponseBytes  = 6 << 20
	defaultRetryDelay = time.Second
)

var errCricbuzzTransient = crerr.New("cricbuzz transient failure")

type ClientConfig struct {
	HTTPClient        *http.Client
	BaseURL           string
	APIKey            string
	APIHost           string
	SeriesEndpoint    string
	MatchInfoEndpoint string
	ScorecardEndpoint string
	Timeout           time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	Logger            *logging.Logger
	CircuitBreaker    resilience.BreakerConfig
}

// Client talks to the Cricbuzz API proxy. It retries transient failures and
// trips a circuit breaker; caching and coalescing happen a layer above.
type Client struct {
	httpClient        *http.Client
	baseURL           string
	apiKey            string
	apiHost           string
	seriesEndpoint    string
	matchInfoEndpoint string
	scorecardEndpoint string
	maxRetries        int
	retryDelay        time.Duration
	logger            *logging.Logger
	breaker           *resilience.CircuitBreaker
}

var _ upstream.Provider = (*Client)(nil)

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 20 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	apiHost := strings.TrimSpace(cfg.APIHost)
	if apiHost == "" {
		apiHost = defaultAPIHost
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	breaker := cfg.CircuitBreaker
	if err := breaker.Validate(); err != nil {
		logger.Warn("cricbuzz circuit breaker config rejected, using defaults", "error", err)
		breaker = resilience.BreakerConfig{Enabled: breaker.Enabled}
	}

	return &Client{
		httpClient:        httpClient,
		baseURL:           baseURL,
		apiKey:            strings.TrimSpace(cfg.APIKey),
		apiHost:           apiHost,
		seriesEndpoint:    strings.TrimSpace(cfg.SeriesEndpoint),
		matchInfoEndpoint: strings.TrimSpace(cfg.MatchInfoEndpoint),
		scorecardEndpoint: strings.TrimSpace(cfg.ScorecardEndpoint),
		maxRetries:        max(cfg.MaxRetries, 0),
		retryDelay:        retryDelay,
		logger:            logger.Named("cricbuzz"),
		breaker:           resilience.NewCircuitBreakerFromConfig(breaker),
	}
}

// Breaker exposes the breaker state for diagnostics.
func (c *Client) Breaker() resilience.BreakerSnapshot {
	return c.breaker.Snapshot()
}

func (c *Client) FetchSeries(ctx context.Context, seriesID int) (upstream.SeriesSchedule, error) {
	if seriesID <= 0 {
		return upstream.SeriesSchedule{}, fmt.Errorf("%w: series id must be greater than zero", usecase.ErrInvalidInput)
	}

	var payload seriesEnvelope
	if err := c.doJSON(ctx, fmt.Sprintf("/series/%d", seriesID), c.seriesEndpoint, &payload); err != nil {
		return upstream.SeriesSchedule{}, fmt.Errorf("fetch series series_id=%d: %w", seriesID, err)
	}

	out := upstream.SeriesSchedule{SeriesID: seriesID, Name: payload.SeriesName}
	for _, day := range payload.MatchDetails {
		if day.MatchDetailsMap == nil {
			continue
		}
		for _, item := range day.MatchDetailsMap.Match {
			if item.MatchInfo.MatchID <= 0 {
				continue
			}
			out.Matches = append(out.Matches, mapSeriesMatch(seriesID, item))
		}
	}
	sort.SliceStable(out.Matches, func(i, j int) bool {
		return out.Matches[i].StartTime.Before(out.Matches[j].StartTime)
	})
	return out, nil
}

func (c *Client) FetchMatchInfo(ctx context.Context, matchID int) (upstream.MatchInfo, error) {
	if matchID <= 0 {
		return upstream.MatchInfo{}, fmt.Errorf("%w: match id must be greater than zero", usecase.ErrInvalidInput)
	}

	var payload matchInfoEnvelope
	if err := c.doJSON(ctx, fmt.Sprintf("/match/%d", matchID), c.matchInfoEndpoint, &payload); err != nil {
		return upstream.MatchInfo{}, fmt.Errorf("fetch match info match_id=%d: %w", matchID, err)
	}

	info := payload.MatchInfo
	out := upstream.MatchInfo{
		MatchID:  matchID,
		SeriesID: int(info.Series.ID),
		Format:   strings.ToUpper(strings.TrimSpace(info.MatchFormat)),
		Status:   strings.TrimSpace(info.Status),
		State:    strings.TrimSpace(info.State),
		Venue:    strings.TrimSpace(info.Venue.Name),
		Team1:    mapTeamSheet(info.Team1),
		Team2:    mapTeamSheet(info.Team2),
	}
	if info.MatchStartTimestamp > 0 {
		out.StartTime = time.UnixMilli(int64(info.MatchStartTimestamp)).UTC()
	}
	if toss := info.TossResults; toss != nil && strings.TrimSpace(toss.TossWinnerName) != "" {
		out.Toss = &upstream.TossResult{
			Winner:   strings.TrimSpace(toss.TossWinnerName),
			Decision: strings.ToLower(strings.TrimSpace(toss.Decision)),
		}
	}
	return out, nil
}

func (c *Client) FetchOvers(ctx context.Context, matchID int) (upstream.OversSnapshot, error) {
	if matchID <= 0 {
		return upstream.OversSnapshot{}, fmt.Errorf("%w: match id must be greater than zero", usecase.ErrInvalidInput)
	}

	var payload oversEnvelope
	if err := c.doJSON(ctx, fmt.Sprintf("/match/%d/overs", matchID), c.matchInfoEndpoint, &payload); err != nil {
		return upstream.OversSnapshot{}, fmt.Errorf("fetch overs match_id=%d: %w", matchID, err)
	}

	out := upstream.OversSnapshot{
		MatchID: matchID,
		Status:  firstNonEmpty(payload.Status, payload.MatchScoreDetails.CustomStatus),
		Innings: mapInningsLines(payload.MatchScoreDetails.InningsScoreList),
	}
	for key, pp := range payload.PPData {
		var inningsID int
		if _, err := fmt.Sscanf(key, "pp_%d", &inningsID); err != nil || pp.RunsScored <= 0 {
			continue
		}
		if out.PowerplayRuns == nil {
			out.PowerplayRuns = make(map[int]int, 2)
		}
		out.PowerplayRuns[inningsID] = pp.RunsScored
	}
	return out, nil
}

func (c *Client) FetchScorecard(ctx context.Context, matchID int) (upstream.Scorecard, error) {
	if matchID <= 0 {
		return upstream.Scorecard{}, fmt.Errorf("%w: match id must be greater than zero", usecase.ErrInvalidInput)
	}
	if c.scorecardEndpoint == "" {
		return upstream.Scorecard{}, upstream.ErrEndpointDisabled
	}

	var payload scorecardEnvelope
	if err := c.doJSON(ctx, fmt.Sprintf("/match/%d/scorecard", matchID), c.scorecardEndpoint, &payload); err != nil {
		return upstream.Scorecard{}, fmt.Errorf("fetch scorecard match_id=%d: %w", matchID, err)
	}

	return upstream.Scorecard{
		MatchID: matchID,
		Status:  strings.TrimSpace(payload.Status),
		Innings: mapInningsLines(payload.Scorecard),
	}, nil
}

func (c *Client) doJSON(ctx context.Context, path, endpointID string, target any) error {
	if err := c.breaker.Allow(); err != nil {
		c.logger.WarnContext(ctx, "cricbuzz circuit breaker rejected request", "path", path, "state", c.breaker.State())
		return fmt.Errorf("%w: match data provider is temporarily unavailable", usecase.ErrDependencyUnavailable)
	}

	raw, err := c.executeRequest(ctx, c.baseURL+path, endpointID)
	if err != nil && isCricbuzzCircuitFailure(err) {
		c.breaker.RecordFailure()
	} else {
		c.breaker.RecordSuccess()
	}
	if err != nil {
		return err
	}

	if err := sonic.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode provider payload: %w", err)
	}
	return nil
}

func (c *Client) executeRequest(ctx context.Context, fullURL, endpointID string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("accept", "application/json")
		req.Header.Set("x-apihub-key", c.apiKey)
		req.Header.Set("x-apihub-host", c.apiHost)
		if endpointID != "" {
			req.Header.Set("x-apihub-endpoint", endpointID)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: send request: %s", errCricbuzzTransient, sanitizeSensitiveText(err.Error(), c.apiKey))
		} else {
			raw, readErr := readBody(resp.Body)
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("%w: read response body: %v", errCricbuzzTransient, readErr)
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return raw, nil
			case resp.StatusCode == http.StatusNotFound:
				return nil, fmt.Errorf("%w: provider status=404 body=%s", usecase.ErrNotFound, abbreviateBody(raw))
			case isRetryableStatus(resp.StatusCode):
				lastErr = fmt.Errorf("%w: provider status=%d body=%s", errCricbuzzTransient, resp.StatusCode, sanitizeSensitiveText(abbreviateBody(raw), c.apiKey))
			default:
				return nil, fmt.Errorf("provider status=%d body=%s", resp.StatusCode, sanitizeSensitiveText(abbreviateBody(raw), c.apiKey))
			}
		}

		if attempt == c.maxRetries {
			break
		}
		timer := time.NewTimer(time.Duration(attempt+1) * c.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("provider request failed")
	}
	c.logger.WarnContext(ctx, "cricbuzz request failed", "url", fullURL, "attempts", c.maxRetries+1, "error", lastErr)
	return nil, lastErr
}

// readBody copies the response through a pooled buffer; the returned slice
// is owned by the caller.
func readBody(body io.Reader) ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if _, err := buf.ReadFrom(io.LimitReader(body, maxResponseBytes)); err != nil {
		return nil, err
	}
	out := make([]byte, buf.Len())
	copy(out, buf.B)
	return out, nil
}

func mapSeriesMatch(seriesID int, item seriesMatchItem) upstream.SeriesMatch {
	info := item.MatchInfo
	out := upstream.SeriesMatch{
		MatchID:   int(info.MatchID),
		SeriesID:  seriesID,
		MatchDesc: strings.TrimSpace(info.MatchDesc),
		Format:    strings.ToUpper(strings.TrimSpace(info.MatchFormat)),
		Team1:     strings.TrimSpace(info.Team1.TeamName),
		Team2:     strings.TrimSpace(info.Team2.TeamName),
		Venue:     strings.TrimSpace(info.VenueInfo.Ground),
		City:      strings.TrimSpace(info.VenueInfo.City),
		Status:    strings.TrimSpace(info.Status),
		State:     strings.TrimSpace(info.State),
	}
	if info.SeriesID > 0 {
		out.SeriesID = int(info.SeriesID)
	}
	if info.StartDate > 0 {
		out.StartTime = time.UnixMilli(int64(info.StartDate)).UTC()
	}
	if s := item.MatchScore.Team1Score.Inngs1; s != nil {
		out.Team1Score = &upstream.InningsScore{Runs: s.Runs, Wickets: s.Wickets, Overs: s.Overs}
	}
	if s := item.MatchScore.Team2Score.Inngs1; s != nil {
		out.Team2Score = &upstream.InningsScore{Runs: s.Runs, Wickets: s.Wickets, Overs: s.Overs}
	}
	return out
}

// mapTeamSheet keeps the announced eleven when available and falls back to
// the full squad otherwise.
func mapTeamSheet(team matchTeam) upstream.TeamSheet {
	out := upstream.TeamSheet{Name: strings.TrimSpace(team.Name)}
	for _, p := range team.PlayerDetails {
		name := strings.TrimSpace(p.FullName)
		if name == "" {
			continue
		}
		out.Players = append(out.Players, upstream.Player{
			Name:       name,
			Substitute: p.Substitute == nil || *p.Substitute,
		})
	}
	return out
}

func mapInningsLines(items []inningsScoreItem) []upstream.InningsLine {
	out := make([]upstream.InningsLine, 0, len(items))
	for _, item := range items {
		inningsID := int(item.InningsID)
		if inningsID <= 0 {
			inningsID = int(item.InningsIDLower)
		}
		team := firstNonEmpty(item.BatTeamName, item.BatTeamLower)
		if inningsID <= 0 || team == "" || item.Score == nil || item.Wickets == nil || item.Overs == nil {
			continue
		}
		out = append(out, upstream.InningsLine{
			InningsID:   inningsID,
			BattingTeam: team,
			Runs:        *item.Score,
			Wickets:     *item.Wickets,
			Overs:       *item.Overs,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].InningsID < out[j].InningsID })
	return out
}

func sanitizeSensitiveText(value, apiKey string) string {
	value = strings.TrimSpace(value)
	if value == "" || apiKey == "" {
		return value
	}
	return strings.ReplaceAll(value, apiKey, "REDACTED")
}

func isCricbuzzCircuitFailure(err error) bool {
	if err == nil {
		return false
	}
	return stderrors.Is(err, errCricbuzzTransient)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
