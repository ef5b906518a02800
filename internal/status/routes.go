package status

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mikhskaz/videocutter/internal/session"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type SessionResponse struct {
	SessionID string `json:"session_id,omitempty"`
	session.Progress
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func NewRouter(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(tagRequests(cfg.SessionID))
	r.Use(recoverPanics(cfg.Logger))
	r.Use(accessLog(cfg.Logger, cfg.SessionID))

	r.Get("/healthz", healthHandler(cfg))
	r.Get("/session", sessionHandler(cfg))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, "not found", "NOT_FOUND")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "method not allowed", "METHOD_NOT_ALLOWED")
	})
	return r
}

func healthHandler(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		})
	}
}

func sessionHandler(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Source == nil {
			WriteError(w, http.StatusServiceUnavailable, "no active session", "NO_SESSION")
			return
		}
		WriteJSON(w, http.StatusOK, SessionResponse{
			SessionID: cfg.SessionID,
			Progress:  cfg.Source.Snapshot(),
		})
	}
}

func WriteError(w http.ResponseWriter, status int, message, code string) {
	WriteJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
