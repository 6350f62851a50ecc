package web

// errors.go centralizes JSON response and error handling for the API.
// Technical details are logged server-side with the request ID; clients
// get a short message and a machine-readable code.

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/qrsheet/qrsheet/internal/logging"
)

// ErrorResponse is the JSON body for API errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeJSON encodes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already sent, nothing to do but log.
		slog.Error("json encode error", "error", err)
	}
}

// writeError writes a JSON error response with a sanitized message.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	var code string
	switch {
	case status == http.StatusNotFound:
		code = "not_found"
	case status == http.StatusTooManyRequests:
		code = "rate_limited"
	case status == http.StatusRequestEntityTooLarge:
		code = "file_too_large"
	case status >= 500:
		code = "internal"
	default:
		code = "bad_request"
	}

	if r != nil {
		logging.FromContext(r.Context()).Error("request error",
			"path", r.URL.Path,
			"method", r.Method,
			"status", status,
			"error", message,
		)
	}

	if status >= 500 {
		// Internal details stay in the log.
		message = "internal server error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code})
}

// badRequest reports a client error, trimming wrapped error chains down
// to the outermost message.
func badRequest(w http.ResponseWriter, r *http.Request, err error) {
	msg := err.Error()
	if i := strings.Index(msg, "\n"); i >= 0 {
		msg = msg[:i]
	}
	writeError(w, r, http.StatusBadRequest, msg)
}
