// Package journal keeps a SQLite audit trail of review sessions. It is
// write-behind: events are queued and inserted by a background goroutine so
// the UI loop never waits on disk.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mikhskaz/videocutter/internal/clip"
	"github.com/mikhskaz/videocutter/internal/logging"
	"github.com/mikhskaz/videocutter/internal/session"
	"github.com/mikhskaz/videocutter/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const queueSize = 256

// Event kinds.
const (
	KindPresented         = "presented"
	KindCommitted         = "committed"
	KindReverted          = "reverted"
	KindSkipped           = "skipped"
	KindExtractionStarted = "extraction_started"
	KindExtractionFailed  = "extraction_failed"
	KindAttempt           = "attempt"
	KindDone              = "done"
)

// EventRecord is one journal row.
type EventRecord struct {
	ID         int64
	SessionID  string
	Kind       string
	Path       string
	Label      string
	OutputPath string
	Detail     string
	Strategy   string
	ExitCode   int
	CreatedAt  time.Time
}

// SessionRecord summarizes one session.
type SessionRecord struct {
	ID        string
	Root      string
	Records   string
	Mode      string
	StartedAt time.Time
	EndedAt   *time.Time
	Counts    store.Counts
}

// Journal is an open journal database.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	closed    bool
	sessionID string
	queue     chan EventRecord
	wg        sync.WaitGroup
	dropped   atomic.Int64
}

// Open opens or creates the journal at path and applies migrations.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping journal: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	j := &Journal{
		db:     db,
		logger: logging.WithComponent(logger, "journal"),
		now:    time.Now,
		queue:  make(chan EventRecord, queueSize),
	}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	j.wg.Add(1)
	go j.writeLoop()
	return j, nil
}

func (j *Journal) migrate() error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return err
	}
	for _, m := range entries {
		if m.IsDir() {
			continue
		}
		name := m.Name()
		if j.applied(name) {
			continue
		}
		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := j.db.Exec(string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", name, err)
		}
		if _, err := j.db.Exec("INSERT INTO _migrations (name) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		j.logger.Info("applied migration", "name", name)
	}
	return nil
}

func (j *Journal) applied(name string) bool {
	var one int
	if err := j.db.QueryRow("SELECT 1 FROM sqlite_master WHERE type='table' AND name='_migrations'").Scan(&one); err != nil {
		return false
	}
	err := j.db.QueryRow("SELECT 1 FROM _migrations WHERE name = ?", name).Scan(&one)
	return err == nil
}

// BeginSession records a new session and returns its id. Events presented
// afterwards belong to it.
func (j *Journal) BeginSession(ctx context.Context, root, records, mode string) (string, error) {
	id := uuid.NewString()
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO sessions (id, root, records, mode, started_at) VALUES (?, ?, ?, ?, ?)",
		id, root, records, mode, formatTime(j.now()),
	)
	if err != nil {
		return "", fmt.Errorf("begin session: %w", err)
	}
	j.mu.Lock()
	j.sessionID = id
	j.mu.Unlock()
	return id, nil
}

// SessionID returns the active session id.
func (j *Journal) SessionID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.sessionID
}

// Present records a controller event. It never blocks.
func (j *Journal) Present(e session.Event) {
	rec, ok := fromEvent(e)
	if !ok {
		return
	}
	j.enqueue(rec)
}

// ObserveAttempt records one extraction attempt. Safe from any goroutine.
func (j *Journal) ObserveAttempt(req clip.Request, a clip.Attempt) {
	rec := EventRecord{
		Kind:     KindAttempt,
		Path:     req.Source,
		Strategy: a.Strategy,
		ExitCode: a.ExitCode,
		Detail:   tail(a.StderrTail, 2048),
	}
	if a.Err != nil {
		rec.Detail = a.Err.Error()
	}
	j.enqueue(rec)
}

func fromEvent(e session.Event) (EventRecord, bool) {
	switch ev := e.(type) {
	case session.VideoPresented:
		return EventRecord{Kind: KindPresented, Path: ev.Path, Detail: fmt.Sprintf("%d/%d", ev.Position, ev.Total)}, true
	case session.Committed:
		return EventRecord{Kind: KindCommitted, Path: ev.Entry.Path, Label: ev.Entry.Label.String(), OutputPath: ev.Entry.OutputPath, Detail: ev.Entry.Note}, true
	case session.Reverted:
		return EventRecord{Kind: KindReverted, Path: ev.Entry.Path, Label: ev.Entry.Label.String(), OutputPath: ev.Entry.OutputPath}, true
	case session.VideoSkipped:
		return EventRecord{Kind: KindSkipped, Path: ev.Path, Detail: errString(ev.Err)}, true
	case session.ExtractionStarted:
		return EventRecord{Kind: KindExtractionStarted, Path: ev.Path, Detail: fmt.Sprintf("%d-%d ms", ev.Segment.Start.Milliseconds(), ev.Segment.End.Milliseconds())}, true
	case session.ExtractionFailed:
		return EventRecord{Kind: KindExtractionFailed, Path: ev.Path, Detail: errString(ev.Err)}, true
	case session.SessionDone:
		return EventRecord{Kind: KindDone, Detail: fmt.Sprintf("pass=%d fail=%d uncertain=%d", ev.Counts.Pass, ev.Counts.Fail, ev.Counts.Uncertain)}, true
	}
	return EventRecord{}, false
}

func (j *Journal) enqueue(rec EventRecord) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed || j.sessionID == "" {
		return
	}
	rec.SessionID = j.sessionID
	rec.CreatedAt = j.now()
	select {
	case j.queue <- rec:
	default:
		if n := j.dropped.Add(1); n == 1 || n%100 == 0 {
			j.logger.Warn("journal queue full, dropping events", "dropped", n)
		}
	}
}

func (j *Journal) writeLoop() {
	defer j.wg.Done()
	for rec := range j.queue {
		if err := j.insert(rec); err != nil {
			j.logger.Warn("journal insert failed", "kind", rec.Kind, "error", err)
		}
	}
}

func (j *Journal) insert(rec EventRecord) error {
	_, err := j.db.Exec(
		`INSERT INTO events (session_id, kind, path, label, output_path, detail, strategy, exit_code, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Kind, rec.Path, rec.Label, rec.OutputPath, rec.Detail, rec.Strategy, rec.ExitCode,
		formatTime(rec.CreatedAt),
	)
	return err
}

// Close drains the queue, stamps the session end with counts and closes the
// database.
func (j *Journal) Close(counts store.Counts) error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	id := j.sessionID
	close(j.queue)
	j.mu.Unlock()

	j.wg.Wait()
	if id != "" {
		if _, err := j.db.Exec(
			"UPDATE sessions SET ended_at = ?, pass = ?, fail = ?, uncertain = ? WHERE id = ?",
			formatTime(j.now()), counts.Pass, counts.Fail, counts.Uncertain, id,
		); err != nil {
			j.logger.Warn("journal session end failed", "error", err)
		}
	}
	return j.db.Close()
}

// Events returns the events of sessionID in insertion order.
func (j *Journal) Events(ctx context.Context, sessionID string) ([]EventRecord, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, session_id, kind, path, label, output_path, detail, strategy, exit_code, created_at
		 FROM events WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var rec EventRecord
		var created string
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Kind, &rec.Path, &rec.Label, &rec.OutputPath,
			&rec.Detail, &rec.Strategy, &rec.ExitCode, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		rec.CreatedAt = parseTime(created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecentSessions returns up to limit sessions, newest first.
func (j *Journal) RecentSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, root, records, mode, started_at, ended_at, pass, fail, uncertain
		 FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var started string
		var ended sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Root, &rec.Records, &rec.Mode, &started, &ended,
			&rec.Counts.Pass, &rec.Counts.Fail, &rec.Counts.Uncertain); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		rec.StartedAt = parseTime(started)
		if ended.Valid {
			t := parseTime(ended.String)
			rec.EndedAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
