package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/okx-folio/internal/apierrors"
	"github.com/okx-folio/internal/storage"
)

// ErrorBody is the uniform error response shape
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an ErrorBody
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, statusCode int, code, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

// parseJSONBody parses a JSON request body
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// Common error codes
const (
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeUpstreamError      = "UPSTREAM_ERROR"
	ErrCodeUpstreamTimeout    = "UPSTREAM_TIMEOUT"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// respondServiceError maps taxonomy errors to HTTP statuses. An open
// circuit becomes 503 with a Retry-After hint; transport failures toward
// the upstream surface as 504.
func respondServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
		return
	}

	apiErr, ok := apierrors.As(err)
	if !ok {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	switch apiErr.Kind {
	case apierrors.KindCircuitOpen:
		if apiErr.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(apiErr.RetryAfter.Seconds())))
		}
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, apiErr.Message)
	case apierrors.KindNetwork:
		respondError(w, http.StatusGatewayTimeout, ErrCodeUpstreamTimeout, apiErr.Message)
	case apierrors.KindUpstream, apierrors.KindNormalization:
		respondError(w, http.StatusBadGateway, ErrCodeUpstreamError, apiErr.Message)
	case apierrors.KindDatabase:
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, apiErr.Message)
	default:
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, apiErr.Message)
	}
}
