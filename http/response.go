// Package http holds the small set of helpers the upload engine's HTTP
// server uses to write JSON responses, shared across the serve command's
// handlers.
package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/streamforge/uploadengine/uploaderr"
)

// ErrorResponse is the JSON body written for every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes v as a JSON body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes err as a JSON ErrorResponse. When err is one of the
// engine's typed *uploaderr.Error values its Code and StatusCode are used
// directly, including a Retry-After header for rate limit responses;
// anything else is reported as a generic 500.
func WriteError(w http.ResponseWriter, err error) {
	uerr, ok := err.(*uploaderr.Error)
	if !ok {
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
			Code:    "INTERNAL",
			Message: err.Error(),
		})
		return
	}

	if uerr.Code == uploaderr.CodeRateLimitExceeded && uerr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(uerr.RetryAfter.Seconds())))
	}

	WriteJSON(w, uerr.StatusCode, ErrorResponse{
		Code:    string(uerr.Code),
		Message: uerr.Message,
	})
}
