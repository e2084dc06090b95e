package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"inventory-ledger/internal/core"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorStatus maps a ledger error kind to an HTTP status and machine code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, core.ErrInvalidMagnitude):
		return http.StatusUnprocessableEntity, "INVALID_MAGNITUDE"
	case errors.Is(err, core.ErrInvalidKind):
		return http.StatusUnprocessableEntity, "INVALID_KIND"
	case errors.Is(err, core.ErrValidation):
		return http.StatusUnprocessableEntity, "VALIDATION_FAILED"
	case errors.Is(err, core.ErrConcurrencyConflict):
		return http.StatusConflict, "CONCURRENCY_CONFLICT"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

// writeServiceError translates a service error into form-style feedback.
// Unclassified errors are logged and hidden behind a generic message.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.Error(err))
		writeError(w, r, "internal server error", code, status)
		return
	}
	writeError(w, r, core.Reason(err), code, status)
}
