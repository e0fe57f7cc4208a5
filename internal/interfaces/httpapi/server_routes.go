package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
}

func registerSeriesRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/series/{seriesID}/matches", handler.ListSeriesMatches)
	mux.HandleFunc("GET /v1/series/{seriesID}/matches/{matchNumber}/context", handler.GetMatchContext)
	mux.HandleFunc("GET /v1/series/{seriesID}/priors", handler.GetSeriesPriors)
}

func registerPredictionRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/predictions/pre-match", handler.GetPreMatchPrediction)
	mux.HandleFunc("GET /v1/predictions/live", handler.GetLivePrediction)
}

func registerInternalCacheRoutes(mux *http.ServeMux, handler *Handler, internalJobToken string) {
	mux.Handle("GET /v1/internal/cache/stats", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.GetCacheStats)))
	mux.Handle("DELETE /v1/internal/cache", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.InvalidateCache)))
}
