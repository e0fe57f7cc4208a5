package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/riskibarqy/cricket-predictor/internal/domain/match"
	"github.com/riskibarqy/cricket-predictor/internal/platform/logging"
	"github.com/riskibarqy/cricket-predictor/internal/usecase"
)

type Handler struct {
	matchService      *usecase.MatchService
	predictionService *usecase.PredictionService
	cacheAdmin        *usecase.CacheAdminService
	defaultSeriesID   int
	logger            *logging.Logger
	validator         *validator.Validate
}

func NewHandler(
	matchService *usecase.MatchService,
	predictionService *usecase.PredictionService,
	cacheAdmin *usecase.CacheAdminService,
	defaultSeriesID int,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		matchService:      matchService,
		predictionService: predictionService,
		cacheAdmin:        cacheAdmin,
		defaultSeriesID:   defaultSeriesID,
		logger:            logger,
		validator:         validator.New(),
	}
}

type listMatchesRequest struct {
	SeriesID int    `validate:"gt=0"`
	Date     string `validate:"omitempty,datetime=2006-01-02"`
	Teams    []string
}

type matchContextRequest struct {
	SeriesID    int    `validate:"gt=0"`
	Date        string `validate:"omitempty,datetime=2006-01-02"`
	MatchNumber int    `validate:"gte=0"`
}

type priorsRequest struct {
	SeriesID int    `validate:"gt=0"`
	Venue    string `validate:"required,max=200"`
	Stage    string `validate:"omitempty"`
	Target   int    `validate:"gte=0"`
}

type invalidateCacheRequest struct {
	Key    string `validate:"required_without=Prefix,excluded_with=Prefix,max=512"`
	Prefix string `validate:"required_without=Key,max=512"`
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListSeriesMatches(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListSeriesMatches")
	defer span.End()

	seriesID, err := parseIntParam(r.PathValue("seriesID"), "seriesID", 0)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	query := r.URL.Query()
	req := listMatchesRequest{
		SeriesID: seriesID,
		Date:     strings.TrimSpace(query.Get("date")),
	}
	if raw := strings.TrimSpace(query.Get("teams")); raw != "" {
		req.Teams = strings.Split(raw, ",")
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	list, err := h.matchService.ListMatches(ctx, req.SeriesID, req.Date, req.Teams)
	if err != nil {
		h.logger.WarnContext(ctx, "list series matches failed", "series_id", req.SeriesID, "date", req.Date, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, list)
}

func (h *Handler) GetMatchContext(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetMatchContext")
	defer span.End()

	seriesID, err := parseIntParam(r.PathValue("seriesID"), "seriesID", 0)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	matchNumber, err := parseIntParam(r.PathValue("matchNumber"), "matchNumber", 0)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	req := matchContextRequest{
		SeriesID:    seriesID,
		Date:        strings.TrimSpace(r.URL.Query().Get("date")),
		MatchNumber: matchNumber,
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	snapshot, err := h.matchService.MatchContext(ctx, req.SeriesID, req.Date, req.MatchNumber)
	if err != nil {
		h.logger.WarnContext(ctx, "get match context failed",
			"series_id", req.SeriesID,
			"date", req.Date,
			"match_number", req.MatchNumber,
			"error", err,
		)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, snapshot)
}

func (h *Handler) GetSeriesPriors(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetSeriesPriors")
	defer span.End()

	seriesID, err := parseIntParam(r.PathValue("seriesID"), "seriesID", 0)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	query := r.URL.Query()
	target, err := parseIntParam(query.Get("target"), "target", 0)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	req := priorsRequest{
		SeriesID: seriesID,
		Venue:    strings.TrimSpace(query.Get("venue")),
		Stage:    strings.TrimSpace(query.Get("stage")),
		Target:   target,
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	var stage match.Stage
	if req.Stage != "" {
		parsed, ok := match.ParseStage(req.Stage)
		if !ok {
			writeError(ctx, w, fmt.Errorf("%w: unknown stage %q", usecase.ErrInvalidInput, req.Stage))
			return
		}
		stage = parsed
	}

	report, err := h.predictionService.ResolvePriors(ctx, req.SeriesID, req.Venue, stage, req.Target)
	if err != nil {
		h.logger.WarnContext(ctx, "resolve priors failed", "series_id", req.SeriesID, "venue", req.Venue, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, report)
}

func (h *Handler) GetPreMatchPrediction(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetPreMatchPrediction")
	defer span.End()

	req, err := h.predictionRequest(ctx, r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	prediction, err := h.predictionService.PreMatch(ctx, req.SeriesID, req.Date, req.MatchNumber)
	if err != nil {
		h.logger.WarnContext(ctx, "pre-match prediction failed",
			"series_id", req.SeriesID,
			"date", req.Date,
			"match_number", req.MatchNumber,
			"error", err,
		)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, prediction)
}

func (h *Handler) GetLivePrediction(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetLivePrediction")
	defer span.End()

	req, err := h.predictionRequest(ctx, r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	prediction, err := h.predictionService.Live(ctx, req.SeriesID, req.Date, req.MatchNumber)
	if err != nil {
		h.logger.WarnContext(ctx, "live prediction failed",
			"series_id", req.SeriesID,
			"date", req.Date,
			"match_number", req.MatchNumber,
			"error", err,
		)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, prediction)
}

func (h *Handler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetCacheStats")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, h.cacheAdmin.Stats(ctx))
}

func (h *Handler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.InvalidateCache")
	defer span.End()

	query := r.URL.Query()
	req := invalidateCacheRequest{
		Key:    strings.TrimSpace(query.Get("key")),
		Prefix: strings.TrimSpace(query.Get("prefix")),
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := h.cacheAdmin.Invalidate(ctx, req.Key, req.Prefix)
	if err != nil {
		h.logger.WarnContext(ctx, "cache invalidation failed", "key", req.Key, "prefix", req.Prefix, "error", err)
		writeError(ctx, w, err)
		return
	}

	h.logger.InfoContext(ctx, "cache invalidated", "key", req.Key, "prefix", req.Prefix, "removed", result.Removed)
	writeSuccess(ctx, w, http.StatusOK, result)
}

// predictionRequest reads series_id, date and match_number. series_id falls
// back to the configured default series.
func (h *Handler) predictionRequest(ctx context.Context, r *http.Request) (matchContextRequest, error) {
	query := r.URL.Query()
	seriesID, err := parseIntParam(query.Get("series_id"), "series_id", h.defaultSeriesID)
	if err != nil {
		return matchContextRequest{}, err
	}
	matchNumber, err := parseIntParam(query.Get("match_number"), "match_number", 0)
	if err != nil {
		return matchContextRequest{}, err
	}

	req := matchContextRequest{
		SeriesID:    seriesID,
		Date:        strings.TrimSpace(query.Get("date")),
		MatchNumber: matchNumber,
	}
	if err := h.validateRequest(ctx, req); err != nil {
		return matchContextRequest{}, err
	}
	return req, nil
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}

func parseIntParam(raw, name string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", usecase.ErrInvalidInput, name)
	}
	return value, nil
}
