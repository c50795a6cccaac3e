// Package api exposes the feed, the side-channel routes and the operational
// endpoints over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/glucofeed/internal/domain/model"
	"github.com/okian/glucofeed/internal/domain/types"
)

// Router resolves internal route paths. The sgv feed and the side-channel
// routes are all served through it.
type Router interface {
	HandleRoute(ctx context.Context, path string) types.Result
}

// StatusStore holds the external status line attached to the feed.
type StatusStore interface {
	Set(ctx context.Context, text string, timestamp int64) model.StatusLine
	Current() model.StatusLine
}

// Server wires HTTP routes for the API.
type Server struct {
	feedHandler   *FeedHandler
	routeHandler  *RouteHandler
	statusHandler *StatusHandler
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(router Router, status StatusStore, statsProvider StatsProvider) *Server {
	return &Server{
		feedHandler:   NewFeedHandler(router),
		routeHandler:  NewRouteHandler(router),
		statusHandler: NewStatusHandler(status),
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/status", MetricsMiddleware(s.statusHandler.HandleStatus, "status"))

	for _, path := range FeedPaths {
		mux.HandleFunc(path, MetricsMiddleware(s.feedHandler.HandleFeed, "sgv"))
	}

	mux.HandleFunc("/steps/set/", MetricsMiddleware(s.routeHandler.HandleRoute, "steps"))
	mux.HandleFunc("/heart/set/", MetricsMiddleware(s.routeHandler.HandleRoute, "heart"))
	mux.HandleFunc("/tasker/", MetricsMiddleware(s.routeHandler.HandleRoute, "tasker"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", types.ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeResult copies a route result onto the response.
func writeResult(w http.ResponseWriter, res types.Result) {
	ct := res.ContentType
	if ct == "" {
		ct = types.ContentTypeJSON
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(res.Code)
	_, _ = w.Write(res.Body)
}
