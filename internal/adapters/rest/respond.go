package rest

import (
	"errors"
	"mime"
	"net/http"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/ewilliams-labs/moodlist/internal/core/domain"
)

const (
	codeInvalidInput       = "INVALID_INPUT"
	codeNotFound           = "NOT_FOUND"
	codeSessionNotFound    = "SESSION_NOT_FOUND"
	codeDuplicateSong      = "DUPLICATE_SONG"
	codeReadOnlyStore      = "READ_ONLY_STORE"
	codeStoreUnavailable   = "STORE_UNAVAILABLE"
	codeCapabilityNotReady = "CAPABILITY_NOT_READY"
	codeSessionActive      = "SESSION_ACTIVE"
	codeNotSampling        = "NOT_SAMPLING"
	codeSamplingIdle       = "SAMPLING_IDLE"
	codeNotResolved        = "NOT_RESOLVED"
	codeQueueFull          = "QUEUE_FULL"
	codeRateLimited        = "RATE_LIMITED"
	codeNoMatch            = "NO_MATCH"
	codeNotImplemented     = "NOT_IMPLEMENTED"
	codeInternal           = "INTERNAL"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeErrorWithCode(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// writeDomainError maps service errors onto status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeErrorWithCode(w, status, err.Error(), code)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, codeInvalidInput
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, codeSessionNotFound
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, domain.ErrDuplicateSong):
		return http.StatusConflict, codeDuplicateSong
	case errors.Is(err, domain.ErrReadOnlyStore):
		return http.StatusForbidden, codeReadOnlyStore
	case errors.Is(err, domain.ErrStoreQuery),
		errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests):
		return http.StatusServiceUnavailable, codeStoreUnavailable
	case errors.Is(err, domain.ErrCapabilityNotReady):
		return http.StatusServiceUnavailable, codeCapabilityNotReady
	case errors.Is(err, domain.ErrSessionActive):
		return http.StatusConflict, codeSessionActive
	case errors.Is(err, domain.ErrNotSampling):
		return http.StatusConflict, codeNotSampling
	case errors.Is(err, domain.ErrSamplingIdle):
		return http.StatusConflict, codeSamplingIdle
	case errors.Is(err, domain.ErrNotResolved):
		return http.StatusConflict, codeNotResolved
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func isJSONContentType(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

// decodeJSON reports false after writing the error response itself.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if !isJSONContentType(r) {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErrorWithCode(w, http.StatusBadRequest, "Invalid request body", codeInvalidInput)
		return false
	}
	return true
}
