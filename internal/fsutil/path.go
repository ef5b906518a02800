package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// ResolveRootPath expands and validates the video root supplied on the command
// line. Unlike record files, the root is never created on demand: a review of
// a directory that does not exist is a user error.
func ResolveRootPath(input string) (string, error) {
	value := strings.TrimSpace(input)
	if value == "" {
		return "", errors.New("video root is required")
	}
	abs, err := ResolvePath(value)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("video root does not exist: %s", abs)
		}
		return "", fmt.Errorf("cannot access video root %q: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("video root %q is not a directory", abs)
	}
	return abs, nil
}

// ResolvePath expands a leading ~ and returns the cleaned absolute path.
// The path does not need to exist.
func ResolvePath(input string) (string, error) {
	value := strings.TrimSpace(input)
	expanded, err := ExpandPath(value)
	if err != nil {
		return "", fmt.Errorf("cannot expand path %q: %w", value, err)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("cannot resolve path %q: %w", expanded, err)
	}
	return abs, nil
}

// ExpandPath replaces a leading ~ or ~user with the matching home directory.
func ExpandPath(p string) (string, error) {
	if p == "" || p[0] != '~' {
		return p, nil
	}
	if len(p) == 1 {
		return os.UserHomeDir()
	}
	if p[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, p[2:]), nil
	}
	username, rest := splitUserPath(p)
	usr, err := user.Lookup(username)
	if err != nil {
		return "", err
	}
	if rest == "" {
		return usr.HomeDir, nil
	}
	return filepath.Join(usr.HomeDir, rest), nil
}

func splitUserPath(p string) (string, string) {
	sep := strings.IndexRune(p, '/')
	if sep == -1 {
		return p[1:], ""
	}
	return p[1:sep], p[sep:]
}

// IsUnder reports whether path equals base or lives below it.
func IsUnder(path, base string) bool {
	path = filepath.Clean(path)
	base = filepath.Clean(base)
	if path == base {
		return true
	}
	return strings.HasPrefix(path, base+string(filepath.Separator))
}
