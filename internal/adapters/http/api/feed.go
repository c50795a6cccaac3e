package api

import (
	"net/http"
	"strings"
)

// FeedPaths are the URLs Nightscout clients use for the entries feed.
var FeedPaths = []string{
	"/sgv.json",
	"/api/v1/entries/sgv.json",
	"/api/v1/entries.json",
}

const feedRoute = "sgv.json"

// FeedHandler serves the sgv feed.
type FeedHandler struct {
	router Router
}

// NewFeedHandler creates a new feed handler.
func NewFeedHandler(router Router) *FeedHandler {
	return &FeedHandler{router: router}
}

// HandleFeed handles GET requests on every FeedPaths entry. The raw query is
// forwarded untouched so side-channel commands reach the feed.
func (h *FeedHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed)
		return
	}
	path := feedRoute
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}
	writeResult(w, h.router.HandleRoute(r.Context(), path))
}

// RouteHandler exposes the side-channel routes directly.
type RouteHandler struct {
	router Router
}

// NewRouteHandler creates a new route handler.
func NewRouteHandler(router Router) *RouteHandler {
	return &RouteHandler{router: router}
}

// HandleRoute handles GET /steps/set/{n}, /heart/set/{bpm}/{accuracy} and /tasker/{word}.
func (h *RouteHandler) HandleRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed)
		return
	}
	// these routes take no query; only the decoded path is forwarded
	writeResult(w, h.router.HandleRoute(r.Context(), strings.TrimPrefix(r.URL.Path, "/")))
}
