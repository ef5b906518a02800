package status

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mikhskaz/videocutter/internal/logging"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// SessionHeader carries the review session id on every response.
const SessionHeader = "X-Videocutter-Session"

// tagRequests stamps each request with a short id and echoes both it and the
// review session id back to the client.
func tagRequests(sessionID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := uuid.NewString()[:8]
			w.Header().Set("X-Request-ID", id)
			if sessionID != "" {
				w.Header().Set(SessionHeader, sessionID)
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
		})
	}
}

func recoverPanics(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					logger.Error("status handler panicked", "panic", v, "request_id", requestID(r))
					WriteError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// accessLog records one debug line per status request, tagged with the
// review session it observed.
func accessLog(logger *slog.Logger, sessionID string) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	if sessionID != "" {
		logger = logging.WithSessionID(logger, sessionID)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Debug("status request",
				"method", r.Method,
				"path", r.URL.Path,
				"code", rec.code,
				"elapsed", time.Since(start),
				"request_id", requestID(r),
			)
		})
	}
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
