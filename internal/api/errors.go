package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/ppiankov/incidentlens/internal/model"
)

// bodyTooLargeError reports a request body over maxBodyBytes
type bodyTooLargeError struct {
	limit int64
}

func (e *bodyTooLargeError) Error() string {
	return fmt.Sprintf("request body exceeds %d bytes", e.limit)
}

// statusFor maps an error to its HTTP status
func statusFor(err error) int {
	var (
		loadErr      *model.LoadError
		notFound     *model.ColumnNotFoundError
		badCriterion *model.InvalidCriterionError
		reqErr       *model.RequestError
		tooLarge     *bodyTooLargeError
		svcErr       *model.ExternalServiceError
		parseErr     *model.ResponseParseError
	)

	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &loadErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &notFound), errors.As(err, &badCriterion), errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, model.ErrNoProvider):
		return http.StatusServiceUnavailable
	case errors.As(err, &svcErr), errors.As(err, &parseErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr writes {"error": ...}. Unknown columns also list the available
// columns. Internal errors are logged and replaced by a generic message.
func writeErr(w http.ResponseWriter, err error) {
	code := statusFor(err)
	body := map[string]any{"error": err.Error()}

	var notFound *model.ColumnNotFoundError
	if errors.As(err, &notFound) {
		body["error"] = fmt.Sprintf("column '%s' not found", notFound.Column)
		body["columns"] = notFound.Available
	}

	if code == http.StatusInternalServerError {
		log.Printf("api: internal error: %v", err)
		body["error"] = "internal server error"
	}
	writeJSON(w, code, body)
}

func writeMethodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(append(allowed, http.MethodOptions), ", "))
	writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
}

func writeRateLimited(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "1")
	writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": "rate limit exceeded, retry shortly"})
}
