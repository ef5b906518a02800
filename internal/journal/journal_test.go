package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikhskaz/videocutter/internal/clip"
	"github.com/mikhskaz/videocutter/internal/session"
	"github.com/mikhskaz/videocutter/internal/store"
)

func openTemp(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return j, path
}

func TestOpenCreatesSchema(t *testing.T) {
	j, _ := openTemp(t)
	defer j.Close(store.Counts{})
	for _, table := range []string{"_migrations", "sessions", "events"} {
		var name string
		if err := j.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name); err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	j, path := openTemp(t)
	j.Close(store.Counts{})

	j2, err := Open(path, nil)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer j2.Close(store.Counts{})
	var count int
	if err := j2.db.QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("migration count = %d, want 2", count)
	}
}

func TestEventsAreRecordedInOrder(t *testing.T) {
	j, path := openTemp(t)
	ctx := context.Background()
	id, err := j.BeginSession(ctx, "/v", "/v/labels.csv", "new")
	if err != nil {
		t.Fatalf("BeginSession: %v", err)
	}
	if id == "" || j.SessionID() != id {
		t.Fatalf("unexpected session id %q", id)
	}

	j.Present(session.VideoPresented{Path: "/v/a.mp4", Position: 1, Total: 2})
	j.Present(session.Committed{Entry: store.Entry{Path: "/v/a.mp4", Label: store.Pass}})
	j.Present(session.RateChanged{Rate: 0.5}) // not journaled
	j.ObserveAttempt(clip.Request{Source: "/v/b.mp4"}, clip.Attempt{Strategy: "copy", ExitCode: 1, StderrTail: "boom"})
	j.Present(session.ExtractionFailed{Path: "/v/b.mp4", Err: errors.New("all strategies failed")})
	j.Present(session.SessionDone{Counts: store.Counts{Pass: 1}})

	if err := j.Close(store.Counts{Pass: 1}); err != nil {
		t.Fatalf("Close: %v", err)
	}

	j2, err := Open(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j2.Close(store.Counts{})

	events, err := j2.Events(ctx, id)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	kinds := []string{KindPresented, KindCommitted, KindAttempt, KindExtractionFailed, KindDone}
	if len(events) != len(kinds) {
		t.Fatalf("expected %d events, got %+v", len(kinds), events)
	}
	for i, k := range kinds {
		if events[i].Kind != k {
			t.Errorf("event %d kind = %s, want %s", i, events[i].Kind, k)
		}
	}
	if events[1].Label != "pass" || events[2].Strategy != "copy" || events[2].ExitCode != 1 || events[2].Detail != "boom" {
		t.Fatalf("unexpected event fields %+v %+v", events[1], events[2])
	}

	sessions, err := j2.RecentSessions(ctx, 5)
	if err != nil {
		t.Fatalf("RecentSessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].EndedAt == nil || sessions[0].Counts.Pass != 1 {
		t.Fatalf("unexpected sessions %+v", sessions)
	}
}

func TestEventsBeforeSessionAreIgnored(t *testing.T) {
	j, _ := openTemp(t)
	j.Present(session.VideoPresented{Path: "/v/a.mp4"})
	if err := j.Close(store.Counts{}); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Close twice is harmless and later events are dropped.
	if err := j.Close(store.Counts{}); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	j.Present(session.VideoPresented{Path: "/v/b.mp4"})
}

func TestQueueFullDropsWithoutBlocking(t *testing.T) {
	j, _ := openTemp(t)
	defer j.Close(store.Counts{})
	if _, err := j.BeginSession(context.Background(), "/v", "/v/labels.csv", "new"); err != nil {
		t.Fatalf("BeginSession: %v", err)
	}
	done := make(chan struct{})
	go func() {
		for i := 0; i < queueSize*4; i++ {
			j.Present(session.VideoPresented{Path: "/v/a.mp4"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Present blocked")
	}
}
