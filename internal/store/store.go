// Package store persists review decisions to a CSV record file. Every
// committed label is flushed and synced before the caller moves on, so a
// crash never loses a decision that was acknowledged.
package store

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/mikhskaz/videocutter/internal/fsutil"
	"github.com/mikhskaz/videocutter/internal/logging"
)

// Mode selects how Open treats an existing record file.
type Mode int

const (
	// CreateNew starts a fresh session and refuses a file that already holds rows.
	CreateNew Mode = iota
	// Resume loads existing rows and keeps appending to the same file.
	Resume
)

func (m Mode) String() string {
	if m == Resume {
		return "resume"
	}
	return "new"
}

// row is one physical record in file order. raw holds the exact bytes read or
// written so rewrites keep skipped rows verbatim.
type row struct {
	raw   []byte
	entry Entry
	valid bool
}

// Store is the append-oriented record file plus its in-memory index.
type Store struct {
	mu       sync.Mutex
	path     string
	rows     []row
	counts   Counts
	warnings []error
	logger   *slog.Logger
}

// Open opens or creates the record file at path.
func Open(path string, mode Mode, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	abs, err := fsutil.ResolvePath(path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, &IOError{Op: "open", Path: abs, Err: err}
	}

	s := &Store{path: abs, logger: logging.WithComponent(logger, "store")}

	data, err := os.ReadFile(abs)
	switch {
	case errors.Is(err, os.ErrNotExist):
		data = nil
	case err != nil:
		return nil, &IOError{Op: "read", Path: abs, Err: err}
	}

	if mode == CreateNew && len(bytes.TrimSpace(data)) > 0 {
		return nil, &IOError{Op: "create", Path: abs, Err: ErrRecordsExist}
	}
	if mode == Resume {
		s.load(data)
	}

	// Touch the file so the session owns it from the start.
	f, err := os.OpenFile(abs, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, &IOError{Op: "open", Path: abs, Err: err}
	}
	if err := f.Close(); err != nil {
		return nil, &IOError{Op: "open", Path: abs, Err: err}
	}

	s.logger.Info("record file opened",
		"path", abs,
		"mode", mode.String(),
		"records", s.counts.Total(),
		"skipped_rows", len(s.warnings),
	)
	return s, nil
}

func (s *Store) load(data []byte) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var prev int64
	seen := make(map[string]int)
	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		offset := r.InputOffset()
		if offset <= prev {
			// A reader that stops making progress would loop forever.
			s.warn(&ValidationError{Line: 1 + bytes.Count(data[:prev], []byte{'\n'}), Reason: "unparseable trailing data"})
			s.rows = append(s.rows, row{raw: append([]byte(nil), data[prev:]...)})
			break
		}
		raw := append([]byte(nil), data[prev:offset]...)
		line := recordLine(r, fields, err, data[:prev])
		prev = offset

		if err != nil {
			s.warn(&ValidationError{Line: line, Reason: err.Error()})
			s.rows = append(s.rows, row{raw: raw})
			continue
		}
		entry, verr := decodeFields(fields)
		if verr != nil {
			s.warn(&ValidationError{Line: line, Reason: verr.Error()})
			s.rows = append(s.rows, row{raw: raw})
			continue
		}
		if idx, dup := seen[entry.Path]; dup {
			// The latest row wins; the earlier one stays on disk untouched.
			s.counts.add(s.rows[idx].entry.Label, -1)
			s.rows[idx].valid = false
			s.warn(&ValidationError{Line: line, Reason: "duplicate record for " + entry.Path + "; keeping the later one"})
		}
		seen[entry.Path] = len(s.rows)
		s.rows = append(s.rows, row{raw: raw, entry: entry, valid: true})
		s.counts.add(entry.Label, 1)
	}
}

func recordLine(r *csv.Reader, fields []string, err error, before []byte) int {
	var perr *csv.ParseError
	switch {
	case err == nil && len(fields) > 0:
		line, _ := r.FieldPos(0)
		return line
	case errors.As(err, &perr):
		return perr.StartLine
	}
	return 1 + bytes.Count(before, []byte{'\n'})
}

func (s *Store) warn(err error) {
	s.warnings = append(s.warnings, err)
	s.logger.Warn("skipping record row", "error", err)
}

// Path returns the absolute record file path.
func (s *Store) Path() string {
	return s.path
}

// Warnings returns the rows skipped while resuming.
func (s *Store) Warnings() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.warnings...)
}

// Snapshot returns the current per-label counts.
func (s *Store) Snapshot() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts
}

// Labeled returns the set of video paths that already have a record.
func (s *Store) Labeled() map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{}, len(s.rows))
	for _, r := range s.rows {
		if r.valid {
			out[r.entry.Path] = struct{}{}
		}
	}
	return out
}

// Entries returns the valid records in file order.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.rows))
	for _, r := range s.rows {
		if r.valid {
			out = append(out, r.entry)
		}
	}
	return out
}

// Lookup returns the record for path, if any.
func (s *Store) Lookup(path string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexOf(normalizePath(path)); idx >= 0 {
		return s.rows[idx].entry, true
	}
	return Entry{}, false
}

// AppendOrReplace commits entry. A path without a record gets a new row
// appended and synced; a path that already has one is rewritten in place so
// the file never holds two records for the same video.
func (s *Store) AppendOrReplace(entry Entry) error {
	entry.Path = normalizePath(entry.Path)
	if err := entry.Validate(); err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	raw, err := encodeEntry(entry)
	if err != nil {
		return &ValidationError{Reason: err.Error()}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := s.indexOf(entry.Path); idx >= 0 {
		next := s.without(idx)
		next = append(next, row{raw: raw, entry: entry, valid: true})
		if err := s.rewrite(next); err != nil {
			return err
		}
		s.counts.add(s.rows[idx].entry.Label, -1)
		s.counts.add(entry.Label, 1)
		s.rows = next
		s.logger.Info("record replaced", "path", entry.Path, "label", entry.Label.String())
		return nil
	}

	if err := s.appendRaw(raw); err != nil {
		return err
	}
	s.rows = append(s.rows, row{raw: raw, entry: entry, valid: true})
	s.counts.add(entry.Label, 1)
	s.logger.Info("record appended", "path", entry.Path, "label", entry.Label.String())
	return nil
}

// Remove deletes the most recent record for path through an atomic rewrite
// and returns it. Skipped rows are carried over unchanged.
func (s *Store) Remove(path string) (Entry, error) {
	path = normalizePath(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(path)
	if idx < 0 {
		return Entry{}, fmt.Errorf("remove %s: %w", path, ErrNoRecord)
	}
	removed := s.rows[idx].entry
	next := s.without(idx)
	if err := s.rewrite(next); err != nil {
		return Entry{}, err
	}
	s.rows = next
	s.counts.add(removed.Label, -1)
	s.logger.Info("record removed", "path", path, "label", removed.Label.String())
	return removed, nil
}

func (s *Store) indexOf(path string) int {
	for i := len(s.rows) - 1; i >= 0; i-- {
		if s.rows[i].valid && s.rows[i].entry.Path == path {
			return i
		}
	}
	return -1
}

func (s *Store) without(idx int) []row {
	next := make([]row, 0, len(s.rows))
	next = append(next, s.rows[:idx]...)
	return append(next, s.rows[idx+1:]...)
}

func (s *Store) appendRaw(raw []byte) error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return &IOError{Op: "append", Path: s.path, Err: err}
	}
	if s.needsSeparator() {
		raw = append([]byte{'\n'}, raw...)
	}
	if _, err := f.Write(raw); err != nil {
		f.Close()
		return &IOError{Op: "append", Path: s.path, Err: err}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return &IOError{Op: "sync", Path: s.path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &IOError{Op: "close", Path: s.path, Err: err}
	}
	return nil
}

// needsSeparator reports whether the file ends mid-line, as a hand-edited
// file without a trailing newline would.
func (s *Store) needsSeparator() bool {
	if len(s.rows) == 0 {
		return false
	}
	last := s.rows[len(s.rows)-1].raw
	return len(last) > 0 && last[len(last)-1] != '\n'
}

func (s *Store) rewrite(rows []row) error {
	var buf bytes.Buffer
	for _, r := range rows {
		buf.Write(r.raw)
		if n := len(r.raw); n > 0 && r.raw[n-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	if err := fsutil.WriteFileAtomic(s.path, buf.Bytes(), 0o644); err != nil {
		return &IOError{Op: "rewrite", Path: s.path, Err: err}
	}
	return nil
}
