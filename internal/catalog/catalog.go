// Package catalog scans a review root for candidate videos.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultFailuresDir is the reserved output directory skipped during scans.
const DefaultFailuresDir = "_failures"

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".avi":  {},
	".mov":  {},
	".mkv":  {},
	".wmv":  {},
	".webm": {},
	".flv":  {},
	".m4v":  {},
	".mpeg": {},
	".mpg":  {},
	".3gp":  {},
}

// Entry is one candidate video. Err is an *OpenError when the file could not
// be opened; such entries are skipped by the session, never fatal.
type Entry struct {
	Path string
	Err  error
}

// Options controls a scan.
type Options struct {
	// FailuresDir is skipped at any depth. Empty means DefaultFailuresDir.
	FailuresDir string
	Recursive   bool
	// OnVisit is called once per candidate video found.
	OnVisit func()
}

// Result is the ordered candidate list plus non-fatal problems met on the way.
type Result struct {
	Entries  []Entry
	Warnings []error
}

// Paths returns the candidate paths in scan order.
func (r *Result) Paths() []string {
	paths := make([]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		paths = append(paths, e.Path)
	}
	return paths
}

// ScanError means the root itself is unusable. It is fatal to session start.
type ScanError struct {
	Root string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Root, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// OpenError means a single video could not be opened.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// IsScanError reports whether err is a *ScanError.
func IsScanError(err error) bool {
	var e *ScanError
	return errors.As(err, &e)
}

// IsOpenError reports whether err is an *OpenError.
func IsOpenError(err error) bool {
	var e *OpenError
	return errors.As(err, &e)
}

// IsVideo reports whether path carries a supported extension.
func IsVideo(path string) bool {
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Scan lists the supported videos below root in lexicographic path order.
func Scan(root string, opts Options) (*Result, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &ScanError{Root: root, Err: err}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, &ScanError{Root: abs, Err: err}
	}
	if !info.IsDir() {
		return nil, &ScanError{Root: abs, Err: errors.New("not a directory")}
	}
	if _, err := os.ReadDir(abs); err != nil {
		return nil, &ScanError{Root: abs, Err: err}
	}

	s := scanner{
		failuresDir: opts.FailuresDir,
		recursive:   opts.Recursive,
		onVisit:     opts.OnVisit,
		visited:     make(map[string]struct{}),
	}
	if s.failuresDir == "" {
		s.failuresDir = DefaultFailuresDir
	}
	s.traverse(abs, abs)

	sort.Slice(s.entries, func(i, j int) bool { return s.entries[i].Path < s.entries[j].Path })
	return &Result{Entries: s.entries, Warnings: s.warnings}, nil
}

type scanner struct {
	failuresDir string
	recursive   bool
	onVisit     func()
	visited     map[string]struct{}
	entries     []Entry
	warnings    []error
}

func (s *scanner) traverse(displayPath, realPath string) {
	resolved, err := filepath.EvalSymlinks(realPath)
	if err != nil {
		resolved = realPath
	}
	resolved = filepath.Clean(resolved)
	if _, seen := s.visited[resolved]; seen {
		return
	}
	s.visited[resolved] = struct{}{}

	dirEntries, err := os.ReadDir(resolved)
	if err != nil {
		s.warnings = append(s.warnings, fmt.Errorf("skip directory %s: %w", displayPath, err))
		return
	}
	for _, de := range dirEntries {
		displayChild := filepath.Join(displayPath, de.Name())
		realChild := filepath.Join(resolved, de.Name())
		mode := de.Type()
		if mode&os.ModeSymlink != 0 {
			s.handleSymlink(displayChild, realChild)
			continue
		}
		if mode.IsDir() {
			s.enterDir(displayChild, realChild)
			continue
		}
		if IsVideo(displayChild) {
			s.record(displayChild)
		}
	}
}

func (s *scanner) enterDir(displayChild, realChild string) {
	if !s.recursive || filepath.Base(displayChild) == s.failuresDir || filepath.Base(realChild) == s.failuresDir {
		return
	}
	s.traverse(displayChild, realChild)
}

func (s *scanner) handleSymlink(displayChild, realChild string) {
	target, err := filepath.EvalSymlinks(realChild)
	if err != nil {
		if IsVideo(displayChild) {
			s.entries = append(s.entries, Entry{Path: displayChild, Err: &OpenError{Path: displayChild, Err: err}})
			s.visit()
		}
		return
	}
	info, err := os.Stat(target)
	if err != nil {
		return
	}
	if info.IsDir() {
		s.enterDir(displayChild, target)
		return
	}
	if IsVideo(displayChild) || IsVideo(target) {
		s.record(displayChild)
	}
}

func (s *scanner) record(path string) {
	entry := Entry{Path: path}
	if err := checkReadable(path); err != nil {
		entry.Err = &OpenError{Path: path, Err: err}
	}
	s.entries = append(s.entries, entry)
	s.visit()
}

func (s *scanner) visit() {
	if s.onVisit != nil {
		s.onVisit()
	}
}

func checkReadable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}
