package status

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mikhskaz/videocutter/internal/session"
	"github.com/mikhskaz/videocutter/internal/store"
)

type staticSource struct {
	p session.Progress
}

func (s staticSource) Snapshot() session.Progress { return s.p }

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestHealthz(t *testing.T) {
	router := NewRouter(Config{Version: "0.1.0", StartTime: time.Now().Add(-3 * time.Second)})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing request id header")
	}
	body := decodeJSONBody(t, rr)
	if body["status"] != "ok" || body["version"] != "0.1.0" {
		t.Fatalf("unexpected body %v", body)
	}
	if up, _ := body["uptime_s"].(float64); up < 3 {
		t.Fatalf("uptime_s = %v", body["uptime_s"])
	}
}

func TestSessionSnapshot(t *testing.T) {
	src := staticSource{p: session.Progress{
		Mode:     "presenting",
		Current:  "/v/b.mp4",
		Position: 2,
		Total:    3,
		Counts:   store.Counts{Pass: 1},
		Labeled:  1,
	}}
	router := NewRouter(Config{Source: src, SessionID: "abc"})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/session", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["session_id"] != "abc" || body["mode"] != "presenting" || body["current"] != "/v/b.mp4" {
		t.Fatalf("unexpected body %v", body)
	}
	counts, ok := body["counts"].(map[string]any)
	if !ok || counts["pass"] != 1.0 {
		t.Fatalf("unexpected counts %v", body["counts"])
	}
}

func TestSessionWithoutSource(t *testing.T) {
	router := NewRouter(Config{})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/session", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestUnknownRouteAndMethod(t *testing.T) {
	router := NewRouter(Config{})
	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/nope", http.StatusNotFound},
		{http.MethodPost, "/healthz", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
		if rr.Code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rr.Code, tt.want)
		}
	}
}

func TestRecoverPanics(t *testing.T) {
	h := recoverPanics(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestRequestsCarrySessionID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	router := NewRouter(Config{Source: staticSource{}, SessionID: "sess-42", Logger: logger})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if got := rr.Header().Get(SessionHeader); got != "sess-42" {
		t.Fatalf("session header = %q", got)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing request id header")
	}
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["session_id"] != "sess-42" || line["path"] != "/healthz" || line["request_id"] == "" {
		t.Fatalf("unexpected log line %v", line)
	}
}

func TestServerStartAndShutdown(t *testing.T) {
	srv := NewServer(Config{Addr: "127.0.0.1:0", Source: staticSource{}})
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
