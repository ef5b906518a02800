package catalog

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func writeFiles(t *testing.T, root string, rel ...string) {
	t.Helper()
	for _, r := range rel {
		path := filepath.Join(root, r)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", r, err)
		}
		if err := os.WriteFile(path, []byte("dummy"), 0o644); err != nil {
			t.Fatalf("write %s: %v", r, err)
		}
	}
}

func TestScanOrdersAndFiltersExtensions(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "c.mp4", "a.MKV", "b.3gp", "notes.txt", "sub/d.webm", "sub/e.MPEG")

	res, err := Scan(root, Options{Recursive: true})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	want := []string{
		filepath.Join(root, "a.MKV"),
		filepath.Join(root, "b.3gp"),
		filepath.Join(root, "c.mp4"),
		filepath.Join(root, "sub", "d.webm"),
		filepath.Join(root, "sub", "e.MPEG"),
	}
	got := res.Paths()
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entry %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestScanSkipsFailuresDirAtAnyDepth(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root,
		"a.mp4",
		"_failures/a_fail_5s-12s.mp4",
		"nested/_failures/x_fail_1s-2s.mp4",
		"nested/keep.mov",
		"_failures_archive/kept.mp4",
	)
	res, err := Scan(root, Options{Recursive: true})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	got := res.Paths()
	want := []string{
		filepath.Join(root, "_failures_archive", "kept.mp4"),
		filepath.Join(root, "a.mp4"),
		filepath.Join(root, "nested", "keep.mov"),
	}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entry %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestScanCustomFailuresDir(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.mp4", "rejects/a_fail_0s-1s.mp4", "_failures/b.mp4")
	res, err := Scan(root, Options{Recursive: true, FailuresDir: "rejects"})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("expected a.mp4 and _failures/b.mp4, got %v", res.Paths())
	}
}

func TestScanFlat(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "top.mp4", "sub/deep.mp4")
	res, err := Scan(root, Options{Recursive: false})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got := res.Paths(); len(got) != 1 || got[0] != filepath.Join(root, "top.mp4") {
		t.Fatalf("expected only top-level video, got %v", got)
	}
}

func TestScanCountsVisits(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.mp4", "b.mp4", "c.txt")
	visits := 0
	if _, err := Scan(root, Options{Recursive: true, OnVisit: func() { visits++ }}); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if visits != 2 {
		t.Fatalf("expected 2 visits, got %d", visits)
	}
}

func TestScanRootErrors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	if _, err := Scan(missing, Options{}); !IsScanError(err) {
		t.Fatalf("expected ScanError for missing root, got %v", err)
	}
	file := filepath.Join(t.TempDir(), "a.mp4")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Scan(file, Options{}); !IsScanError(err) {
		t.Fatalf("expected ScanError for file root, got %v", err)
	}
}

func TestScanReportsUnreadableFile(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits not enforced")
	}
	root := t.TempDir()
	writeFiles(t, root, "ok.mp4", "locked.mp4")
	locked := filepath.Join(root, "locked.mp4")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	defer os.Chmod(locked, 0o644)

	res, err := Scan(root, Options{Recursive: true})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("expected both entries, got %v", res.Paths())
	}
	if !IsOpenError(res.Entries[0].Err) || res.Entries[1].Err != nil {
		t.Fatalf("expected locked.mp4 flagged, got %+v", res.Entries)
	}
}

func TestScanFollowsSymlinkedDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink permissions vary on Windows")
	}
	root := t.TempDir()
	storage := t.TempDir()
	writeFiles(t, storage, "movie.mp4")
	link := filepath.Join(root, "linked")
	if err := os.Symlink(storage, link); err != nil {
		t.Skipf("symlink not supported: %v", err)
	}
	res, err := Scan(root, Options{Recursive: true})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	expected := filepath.Join(link, "movie.mp4")
	if got := res.Paths(); len(got) != 1 || got[0] != expected {
		t.Fatalf("expected %s, got %v", expected, got)
	}
}

func TestIsVideo(t *testing.T) {
	for _, p := range []string{"a.mp4", "B.MOV", "c.flv", "d.m4v", "e.mpg"} {
		if !IsVideo(p) {
			t.Errorf("expected %s to be a video", p)
		}
	}
	for _, p := range []string{"a.txt", "mp4", "b.csv"} {
		if IsVideo(p) {
			t.Errorf("expected %s not to be a video", p)
		}
	}
}
