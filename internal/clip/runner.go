package clip

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"time"
)

const maxStderrBytes = 8 * 1024

// RunResult is the outcome of one tool invocation.
type RunResult struct {
	ExitCode   int
	StderrTail string
	Stdout     string
	Duration   time.Duration
	// Err is set when the process could not be started or was killed.
	Err error
}

// IsSuccess reports whether the process exited cleanly.
func (r RunResult) IsSuccess() bool {
	return r.ExitCode == 0 && r.Err == nil
}

// Runner executes an external tool. Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) RunResult
}

// ExecRunner runs tools as real subprocesses.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) RunResult {
	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)

	var stderr, stdout bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderr, limit: maxStderrBytes}
	cmd.Stdout = &limitedWriter{w: &stdout, limit: maxStderrBytes}
	cmd.Stdin = nil

	err := cmd.Run()
	res := RunResult{
		StderrTail: stderr.String(),
		Stdout:     stdout.String(),
		Duration:   time.Since(start),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
		}
		if ctx.Err() != nil {
			res.Err = ctx.Err()
		} else if res.ExitCode == -1 {
			res.Err = err
		}
	}
	return res
}

// limitedWriter keeps only the last limit bytes written to it.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

var _ io.Writer = (*limitedWriter)(nil)

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := append([]byte(nil), b[len(b)-lw.limit:]...)
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}
