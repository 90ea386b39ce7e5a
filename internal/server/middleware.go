package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/festlist/internal/shared"
)

// RequestLogger returns middleware that logs one line per request with
// method, path, status, and duration.
func RequestLogger(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(recorder, r)

			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", recorder.status,
				"duration", time.Since(started),
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error body, mapping known pipeline errors to
// HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, shared.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrMissingArgument):
		status = http.StatusBadRequest
	case errors.Is(err, shared.ErrAssetNotFound):
		status = http.StatusNotFound
	case errors.Is(err, shared.ErrExtractionFailed):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, shared.ErrPlaylistCreateFailed):
		status = http.StatusBadGateway
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}
