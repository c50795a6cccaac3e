package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const maxStatusBody = 4 << 10

// statusRequest is the body of POST /status.
type statusRequest struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

type statusResponse struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// StatusHandler reads and updates the external status line.
type StatusHandler struct {
	store StatusStore
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(store StatusStore) *StatusHandler {
	return &StatusHandler{store: store}
}

// HandleStatus handles GET and POST /status.
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		line := h.store.Current()
		writeJSON(w, http.StatusOK, statusResponse{Status: line.Text, Timestamp: line.Timestamp})
	case http.MethodPost:
		var req statusRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxStatusBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", fmt.Errorf("%w: %w", ErrBadRequest, err))
				return
			}
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
			return
		}
		if req.Timestamp < 0 {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: negative timestamp", ErrBadRequest))
			return
		}
		line := h.store.Set(r.Context(), strings.TrimSpace(req.Status), req.Timestamp)
		writeJSON(w, http.StatusOK, statusResponse{Status: line.Text, Timestamp: line.Timestamp})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed)
	}
}
