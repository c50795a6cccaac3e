package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/glucofeed/pkg/metrics"
)

// errorClass labels a failed response for the error metrics.
type errorClass struct {
	kind     string
	severity string
}

// errorClasses covers the codes the feed and side-channel routes produce.
var errorClasses = map[int]errorClass{
	http.StatusBadRequest:            {kind: "invalid_value", severity: "low"},
	http.StatusNotFound:              {kind: "unknown_route", severity: "low"},
	http.StatusMethodNotAllowed:      {kind: "method_not_allowed", severity: "low"},
	http.StatusRequestEntityTooLarge: {kind: "oversized_body", severity: "medium"},
	http.StatusInternalServerError:   {kind: "store_failure", severity: "high"},
	http.StatusServiceUnavailable:    {kind: "backpressure", severity: "medium"},
}

// MetricsMiddleware wraps HTTP handlers to record Prometheus metrics.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		durationMs := float64(time.Since(start).Microseconds()) / 1000
		code := strconv.Itoa(wrapped.statusCode)
		metrics.RecordHTTPRequest(endpoint, r.Method, code)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, code, durationMs)

		if wrapped.statusCode >= http.StatusBadRequest {
			c := classifyStatus(wrapped.statusCode)
			metrics.RecordErrorByEndpoint(endpoint, r.Method, c.kind)
			metrics.RecordErrorByType(c.kind, c.severity)
		}
	}
}

func classifyStatus(code int) errorClass {
	if c, ok := errorClasses[code]; ok {
		return c
	}
	if code >= http.StatusInternalServerError {
		return errorClass{kind: "server_error", severity: "high"}
	}
	return errorClass{kind: "client_error", severity: "low"}
}

// responseWriter captures the status code written by the wrapped handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}
