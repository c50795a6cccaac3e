// Package types contains common types used across the application
package types

import (
	"net/http"
	"net/url"
)

// Query is a parsed query-parameter set, one value per key.
type Query map[string]string

// ParseQuery parses a raw query string. Duplicate keys keep the last value;
// malformed pairs are skipped rather than failing the whole query.
func ParseQuery(raw string) Query {
	q := Query{}
	values, _ := url.ParseQuery(raw) // partial results are still usable
	for k, vs := range values {
		if len(vs) > 0 {
			q[k] = vs[len(vs)-1]
		}
	}
	return q
}

// Lookup returns the value for key and whether it was present.
func (q Query) Lookup(key string) (string, bool) {
	v, ok := q[key]
	return v, ok
}

// ContentTypeJSON is the content type of every JSON route result.
const ContentTypeJSON = "application/json; charset=utf-8"

// Result is the outcome of resolving an internal route.
// A zero Code means the route was never invoked.
type Result struct {
	Code        int
	Body        []byte
	ContentType string
}

// NewResult builds a JSON result with the given code.
func NewResult(code int, body []byte) Result {
	return Result{Code: code, Body: body, ContentType: ContentTypeJSON}
}

// OK reports whether the route completed with a 2xx code.
func (r Result) OK() bool {
	return r.Code >= http.StatusOK && r.Code < http.StatusMultipleChoices
}
