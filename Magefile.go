//go:build mage

package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	binaryName  = "videocutter"
	mainPackage = "./cmd/videocutter"
	minCoverage = 85.0
)

var Default = Build

// Build compiles the videocutter binary with version information.
func Build() error {
	return run("go", "build", "-ldflags", ldflags(), "-o", binaryName, mainPackage)
}

// Test runs the unit test suite.
func Test() error {
	return run("go", "test", "./...")
}

// Race runs the unit tests with the race detector.
func Race() error {
	return run("go", "test", "-race", "./...")
}

// Vet runs go vet over the module.
func Vet() error {
	return run("go", "vet", "./...")
}

// Run starts a new review of $VIDEOCUTTER_ROOT (default: current directory).
func Run() error {
	root := os.Getenv("VIDEOCUTTER_ROOT")
	if root == "" {
		root = "."
	}
	return run("go", "run", mainPackage, "new", "--root", root)
}

// Install installs the videocutter binary into GOPATH/bin or GOBIN.
func Install() error {
	return run("go", "install", "-ldflags", ldflags(), mainPackage)
}

// Clean removes the built binary.
func Clean() error {
	if err := os.Remove(binaryName); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Coverage runs the unit tests with coverage and enforces the minimum target.
func Coverage() error {
	profile := filepath.Join(os.TempDir(), binaryName+"-coverage.out")
	if err := run("go", "test", "-coverprofile="+profile, "./..."); err != nil {
		return err
	}
	defer os.Remove(profile)
	out, err := exec.Command("go", "tool", "cover", "-func="+profile).CombinedOutput()
	fmt.Print(string(out))
	if err != nil {
		return err
	}
	total, err := parseTotalCoverage(string(out))
	if err != nil {
		return err
	}
	if total < minCoverage {
		return fmt.Errorf("coverage %.1f%% below required %.0f%%", total, minCoverage)
	}
	return nil
}

func ldflags() string {
	commit := "unknown"
	if out, err := exec.Command("git", "rev-parse", "--short", "HEAD").Output(); err == nil {
		commit = strings.TrimSpace(string(out))
	}
	return "-X github.com/mikhskaz/videocutter/internal/config.GitCommit=" + commit
}

func parseTotalCoverage(report string) (float64, error) {
	lines := strings.Split(strings.TrimSpace(report), "\n")
	last := lines[len(lines)-1]
	if last == "" {
		return 0, errors.New("empty coverage report")
	}
	fields := strings.Fields(last)
	if len(fields) < 3 || fields[0] != "total:" {
		return 0, fmt.Errorf("unexpected coverage line: %s", last)
	}
	return strconv.ParseFloat(strings.TrimSuffix(fields[len(fields)-1], "%"), 64)
}

func run(command string, args ...string) error {
	cmd := exec.Command(command, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
