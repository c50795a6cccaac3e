// Package route resolves internal route paths such as "steps/set/1200" to
// handlers. The sgv feed reaches the side-channel handlers through it, and
// the HTTP layer exposes the same handlers directly.
package route

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/okian/glucofeed/internal/domain/types"
	"github.com/okian/glucofeed/pkg/logger"
	"github.com/okian/glucofeed/pkg/metrics"
)

// Handler serves one route. rest is the path after the matched prefix. For
// routes registered with RegisterQuery the query string is split off rest
// and passed as rawQuery; other routes get rest verbatim and no query.
type Handler func(ctx context.Context, rest, rawQuery string) types.Result

type entry struct {
	prefix  string
	name    string
	query   bool
	handler Handler
}

// Finder dispatches route paths to the handler with the longest matching prefix.
type Finder struct {
	mu      sync.RWMutex
	entries []entry
	logger  logger.Logger
}

// NewFinder creates an empty finder.
func NewFinder(l logger.Logger) *Finder {
	if l == nil {
		l = logger.Named("route")
	}
	return &Finder{logger: l}
}

// Register binds prefix to h. name labels the route in metrics and logs.
// Registering the same prefix again replaces the earlier handler.
func (f *Finder) Register(prefix, name string, h Handler) {
	f.register(entry{prefix: prefix, name: name, handler: h})
}

// RegisterQuery is Register for routes that accept a query string.
func (f *Finder) RegisterQuery(prefix, name string, h Handler) {
	f.register(entry{prefix: prefix, name: name, query: true, handler: h})
}

func (f *Finder) register(e entry) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.entries {
		if f.entries[i].prefix == e.prefix {
			f.entries[i] = e
			return
		}
	}
	f.entries = append(f.entries, e)
	sort.SliceStable(f.entries, func(i, j int) bool {
		return len(f.entries[i].prefix) > len(f.entries[j].prefix)
	})
}

// HandleRoute resolves path, which may carry a leading slash. A "?" is only
// treated as the start of a query for routes registered with RegisterQuery.
func (f *Finder) HandleRoute(ctx context.Context, path string) types.Result {
	path = strings.TrimPrefix(path, "/")

	f.mu.RLock()
	var match *entry
	for i := range f.entries {
		if strings.HasPrefix(path, f.entries[i].prefix) {
			e := f.entries[i]
			match = &e
			break
		}
	}
	f.mu.RUnlock()

	if match == nil {
		f.logger.Debug(ctx, "no route", logger.String("path", path))
		metrics.RecordRouteResolution("unknown", http.StatusNotFound)
		return codeResult(http.StatusNotFound)
	}

	rest, rawQuery := strings.TrimPrefix(path, match.prefix), ""
	if match.query {
		if i := strings.IndexByte(rest, '?'); i >= 0 {
			rest, rawQuery = rest[:i], rest[i+1:]
		}
	}
	res := match.handler(ctx, rest, rawQuery)
	if !res.OK() {
		f.logger.Debug(ctx, "route rejected", logger.String("route", match.name), logger.Int("code", res.Code))
	}
	metrics.RecordRouteResolution(match.name, res.Code)
	return res
}

// codeResult builds the {"result": code} body used by the side-channel routes.
func codeResult(code int) types.Result {
	body, _ := json.Marshal(struct {
		Result int `json:"result"`
	}{Result: code})
	return types.NewResult(code, body)
}
