package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/stretchr/testify/mock"

	"github.com/riskibarqy/cricket-predictor/internal/domain/prior"
	"github.com/riskibarqy/cricket-predictor/internal/domain/upstream"
	upstreammock "github.com/riskibarqy/cricket-predictor/internal/mocks/domain/upstream"
	"github.com/riskibarqy/cricket-predictor/internal/platform/cache"
	"github.com/riskibarqy/cricket-predictor/internal/platform/logging"
	"github.com/riskibarqy/cricket-predictor/internal/usecase"
)

const (
	testSeriesID = 9237
	testJobToken = "job-token"
)

type envelope struct {
	APIVersion string         `json:"apiVersion"`
	Data       map[string]any `json:"data"`
	Error      *struct {
		Code   int    `json:"code"`
		Status string `json:"status"`
	} `json:"error"`
}

func newTestRouter(t *testing.T, provider upstream.Provider) http.Handler {
	t.Helper()

	cacheClient, err := cache.NewClient(cache.NewMemoryStore(time.Hour), cache.ClientConfig{
		Enabled:        true,
		Namespace:      "cricket",
		Version:        "v1",
		FetchTimeout:   5 * time.Second,
		RefreshWorkers: 2,
	}, cache.WithLogger(logging.NewNop()))
	if err != nil {
		t.Fatalf("new cache client: %v", err)
	}
	t.Cleanup(func() { _ = cacheClient.Close() })

	gateway := usecase.NewDataGateway(provider, cacheClient, usecase.DefaultCacheTiers(), usecase.WithGatewayLogger(logging.NewNop()))
	matches := usecase.NewMatchService(gateway, logging.NewNop())
	features := usecase.NewFeatureService(gateway, matches, 2, logging.NewNop())
	predictions := usecase.NewPredictionService(matches, features, prior.NewResolver(prior.DefaultConfig()), logging.NewNop())
	admin := usecase.NewCacheAdminService(cacheClient, "memory", true, nil)

	handler := NewHandler(matches, predictions, admin, testSeriesID, logging.NewNop())
	return NewRouter(handler, logging.NewNop(), []string{"*"}, testJobToken)
}

func testSchedule() upstream.SeriesSchedule {
	start := time.Date(2025, 4, 10, 14, 0, 0, 0, time.UTC)
	return upstream.SeriesSchedule{
		SeriesID: testSeriesID,
		Name:     "Indian Premier League 2025",
		Matches: []upstream.SeriesMatch{
			{MatchID: 101, SeriesID: testSeriesID, Format: "T20", Team1: "Mumbai Indians", Team2: "Chennai Super Kings", Venue: "Wankhede Stadium", StartTime: start},
			{MatchID: 102, SeriesID: testSeriesID, Format: "T20", Team1: "Delhi Capitals", Team2: "Punjab Kings", Venue: "Arun Jaitley Stadium", StartTime: start.Add(4 * time.Hour)},
		},
	}
}

func serve(t *testing.T, router http.Handler, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var body envelope
	if err := sonic.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response body %q: %v", rec.Body.String(), err)
	}
	return rec, body
}

func TestRouter_ListSeriesMatches(t *testing.T) {
	t.Parallel()

	provider := upstreammock.NewProvider(t)
	provider.On("FetchSeries", mock.Anything, testSeriesID).Return(testSchedule(), nil).Once()

	router := newTestRouter(t, provider)
	req := httptest.NewRequest(http.MethodGet, "/v1/series/9237/matches?date=2025-04-10", nil)
	req.Header.Set(correlationIDHeader, "req-42")

	rec, body := serve(t, router, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get(correlationIDHeader); got != "req-42" {
		t.Fatalf("expected correlation id to be echoed, got %q", got)
	}
	matches, _ := body.Data["matches"].([]any)
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %v", body.Data["matches"])
	}
}

func TestRouter_RejectsBadQuery(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, upstreammock.NewProvider(t))

	paths := []string{
		"/v1/series/abc/matches",
		"/v1/series/9237/matches?date=10-04-2025",
		"/v1/series/9237/matches/-1/context",
		"/v1/series/9237/priors",
		"/v1/series/9237/priors?venue=Wankhede%20Stadium&stage=tea_break",
		"/v1/predictions/pre-match?match_number=x",
	}
	for _, path := range paths {
		rec, body := serve(t, router, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusBadRequest || body.Error == nil || body.Error.Status != "INVALID_ARGUMENT" {
			t.Fatalf("%s: expected 400 INVALID_ARGUMENT, got %d %s", path, rec.Code, rec.Body.String())
		}
	}
}

func TestRouter_GeneratesCorrelationID(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, upstreammock.NewProvider(t))
	rec, _ := serve(t, router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(correlationIDHeader) == "" {
		t.Fatalf("expected generated correlation id")
	}
}

func TestRouter_InternalCacheRoutesRequireToken(t *testing.T) {
	t.Parallel()

	provider := upstreammock.NewProvider(t)
	provider.On("FetchSeries", mock.Anything, testSeriesID).Return(testSchedule(), nil).Once()
	router := newTestRouter(t, provider)

	rec, _ := serve(t, router, httptest.NewRequest(http.MethodGet, "/v1/internal/cache/stats", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec, _ = serve(t, router, httptest.NewRequest(http.MethodGet, "/v1/series/9237/matches?date=2025-04-10", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("warm cache: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodDelete, "/v1/internal/cache?prefix=series_", nil)
	req.Header.Set("X-Internal-Job-Token", testJobToken)
	rec, body := serve(t, router, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if removed, _ := body.Data["removed"].(float64); removed != 2 {
		t.Fatalf("expected schedule and list entries removed, got %v", body.Data["removed"])
	}

	req = httptest.NewRequest(http.MethodDelete, "/v1/internal/cache?prefix=series_&key=match_info:1", nil)
	req.Header.Set("X-Internal-Job-Token", testJobToken)
	rec, _ = serve(t, router, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for key and prefix together, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/internal/cache/stats", nil)
	req.Header.Set("X-Internal-Job-Token", testJobToken)
	rec, body = serve(t, router, req)
	if rec.Code != http.StatusOK || body.Data["backend"] != "memory" {
		t.Fatalf("unexpected stats response %d: %s", rec.Code, rec.Body.String())
	}
}
