package fsutil

import (
	"os"
	"os/user"
	"path/filepath"
	"testing"
)

func TestResolveRootPathExisting(t *testing.T) {
	root := t.TempDir()
	got, err := ResolveRootPath(" " + root + " ")
	if err != nil {
		t.Fatalf("resolve root: %v", err)
	}
	if got != root {
		t.Fatalf("expected %s, got %s", root, got)
	}
}

func TestResolveRootPathRequiresExisting(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	if _, err := ResolveRootPath(missing); err == nil {
		t.Fatalf("expected error for %s", missing)
	}
	if _, err := ResolveRootPath("  "); err == nil {
		t.Fatalf("expected error for empty root")
	}
}

func TestResolveRootPathRejectsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "video.mp4")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := ResolveRootPath(file); err == nil {
		t.Fatalf("expected error for file root")
	}
}

func TestResolvePathExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	got, err := ResolvePath("~/labels.csv")
	if err != nil {
		t.Fatalf("resolve path: %v", err)
	}
	if want := filepath.Join(home, "labels.csv"); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if v, err := ExpandPath("~"); err != nil || v != home {
		t.Fatalf("ExpandPath ~ failed: %v %s", err, v)
	}
	if _, err := ExpandPath("~no_such_user_here/foo"); err == nil {
		t.Fatalf("expected error for unknown user")
	}
	if p, err := ExpandPath("relative/path"); err != nil || p != "relative/path" {
		t.Fatalf("expected relative path unchanged, got %s %v", p, err)
	}
	if current, err := user.Current(); err == nil && current.Username != "" {
		if p, err := ExpandPath("~" + current.Username); err != nil || p != current.HomeDir {
			t.Fatalf("expected home dir %s, got %s (%v)", current.HomeDir, p, err)
		}
	}
}

func TestSplitUserPath(t *testing.T) {
	name, rest := splitUserPath("~alice/videos")
	if name != "alice" || rest != "/videos" {
		t.Fatalf("unexpected split %s %s", name, rest)
	}
	name, rest = splitUserPath("~bob")
	if name != "bob" || rest != "" {
		t.Fatalf("unexpected split %s %s", name, rest)
	}
}

func TestIsUnder(t *testing.T) {
	tests := []struct {
		path, base string
		want       bool
	}{
		{"/v/_failures", "/v/_failures", true},
		{"/v/_failures/a.mp4", "/v/_failures", true},
		{"/v/_failures_old/a.mp4", "/v/_failures", false},
		{"/v/a.mp4", "/v/_failures", false},
	}
	for _, tt := range tests {
		if got := IsUnder(tt.path, tt.base); got != tt.want {
			t.Errorf("IsUnder(%q, %q) = %v, want %v", tt.path, tt.base, got, tt.want)
		}
	}
}

func TestWriteFileAtomicReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "labels.csv")
	if err := WriteFileAtomic(path, []byte("one\n"), 0o644); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("two\n"), 0o644); err != nil {
		t.Fatalf("second write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "two\n" {
		t.Fatalf("unexpected content %q", data)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp files cleaned up, found %d entries", len(entries))
	}
}
