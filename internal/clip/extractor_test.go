package clip

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeRunner plays back one scripted step per call.
type fakeRunner struct {
	steps []fakeStep
	calls [][]string
}

type fakeStep struct {
	exit   int
	output []byte // written to the last argument when non-nil
	stderr string
	stdout string
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) RunResult {
	f.calls = append(f.calls, append([]string{name}, args...))
	if len(f.steps) == 0 {
		return RunResult{ExitCode: 1, StderrTail: "unexpected call"}
	}
	step := f.steps[0]
	f.steps = f.steps[1:]
	if step.output != nil {
		os.WriteFile(args[len(args)-1], step.output, 0o644)
	}
	return RunResult{ExitCode: step.exit, StderrTail: step.stderr, Stdout: step.stdout, Err: step.err}
}

func newTestExtractor(r Runner) *Extractor {
	return New(Config{FFmpegPath: "ffmpeg", Runner: r})
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		source     string
		start, end time.Duration
		want       string
	}{
		{"/v/b.mp4", 5 * time.Second, 12 * time.Second, "b_fail_5s-12s.mp4"},
		{"/v/clip.final.MOV", 1500 * time.Millisecond, 2999 * time.Millisecond, "clip.final_fail_1s-2s.MOV"},
		{"/v/x.mkv", 0, 900 * time.Millisecond, "x_fail_0s-0s.mkv"},
	}
	for _, tt := range tests {
		if got := OutputName(tt.source, tt.start, tt.end); got != tt.want {
			t.Errorf("OutputName(%s) = %s, want %s", tt.source, got, tt.want)
		}
	}
}

func TestTimestamp(t *testing.T) {
	if got := timestamp(3723*time.Second + 45*time.Millisecond); got != "01:02:03.045" {
		t.Fatalf("timestamp = %s", got)
	}
	if got := seconds(7 * time.Second); got != "7.000" {
		t.Fatalf("seconds = %s", got)
	}
}

func TestExtractStreamCopySucceeds(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "_failures")
	r := &fakeRunner{steps: []fakeStep{{output: []byte("clip")}}}
	var observed []Attempt
	e := newTestExtractor(r)
	e.SetObserver(func(_ Request, a Attempt) { observed = append(observed, a) })

	res, err := e.Extract(context.Background(), Request{
		Source: "/v/b.mp4", Start: 5 * time.Second, End: 12 * time.Second, OutputDir: dir,
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.OutputPath != filepath.Join(dir, "b_fail_5s-12s.mp4") || res.Strategy != "copy" || res.Size != 4 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(r.calls) != 1 || len(observed) != 1 {
		t.Fatalf("expected one attempt, got %d calls %d observed", len(r.calls), len(observed))
	}
	args := strings.Join(r.calls[0], " ")
	for _, want := range []string{"-ss 00:00:05.000", "-i /v/b.mp4", "-t 7.000", "-c copy", "-avoid_negative_ts make_zero"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
}

func TestExtractFallsBackToReencode(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRunner{steps: []fakeStep{
		{exit: 1, output: []byte("partial"), stderr: "copy failed"},
		{output: []byte("encoded")},
	}}
	res, err := newTestExtractor(r).Extract(context.Background(), Request{
		Source: "/v/b.mp4", Start: time.Second, End: 3 * time.Second, OutputDir: dir,
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Strategy != "reencode" || len(res.Attempts) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	data, err := os.ReadFile(res.OutputPath)
	if err != nil || string(data) != "encoded" {
		t.Fatalf("unexpected output %q %v", data, err)
	}
	if !strings.Contains(strings.Join(r.calls[1], " "), "-c:v libx264 -c:a aac -preset fast") {
		t.Fatalf("second attempt should re-encode: %v", r.calls[1])
	}
}

func TestExtractEmptyOutputCountsAsFailure(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRunner{steps: []fakeStep{
		{output: []byte{}},
		{exit: 183, stderr: "encoder missing"},
	}}
	_, err := newTestExtractor(r).Extract(context.Background(), Request{
		Source: "/v/b.mp4", Start: time.Second, End: 3 * time.Second, OutputDir: dir,
	})
	var xerr *ExtractionError
	if !errors.As(err, &xerr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
	if len(xerr.Attempts) != 2 || xerr.Attempts[1].ExitCode != 183 || xerr.Attempts[1].StderrTail != "encoder missing" {
		t.Fatalf("unexpected attempts %+v", xerr.Attempts)
	}
	if xerr.Attempts[0].Err == nil {
		t.Fatal("empty output should be reported on the first attempt")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("partial outputs should be removed, found %d files", len(entries))
	}
}

func TestExtractNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "b_fail_5s-12s.mp4")
	if err := os.WriteFile(existing, []byte("old"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b_fail_5s-12s_1.mp4"), []byte("old"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := &fakeRunner{steps: []fakeStep{{output: []byte("new")}}}
	res, err := newTestExtractor(r).Extract(context.Background(), Request{
		Source: "/v/b.mp4", Start: 5 * time.Second, End: 12 * time.Second, OutputDir: dir,
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.OutputPath != filepath.Join(dir, "b_fail_5s-12s_2.mp4") {
		t.Fatalf("unexpected output %s", res.OutputPath)
	}
	if data, _ := os.ReadFile(existing); string(data) != "old" {
		t.Fatal("existing clip was overwritten")
	}
}

func TestExtractRejectsInvalidRange(t *testing.T) {
	r := &fakeRunner{}
	_, err := newTestExtractor(r).Extract(context.Background(), Request{
		Source: "/v/b.mp4", Start: 5 * time.Second, End: 5 * time.Second, OutputDir: t.TempDir(),
	})
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	if len(r.calls) != 0 {
		t.Fatal("tool must not run for an invalid range")
	}
}

func TestExtractStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &fakeRunner{steps: []fakeStep{{exit: -1, err: context.Canceled}, {output: []byte("x")}}}
	_, err := newTestExtractor(r).Extract(ctx, Request{
		Source: "/v/b.mp4", Start: 0, End: time.Second, OutputDir: t.TempDir(),
	})
	if !IsExtractionError(err) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancelled ExtractionError, got %v", err)
	}
	if len(r.calls) != 1 {
		t.Fatalf("expected no fallback after cancel, got %d calls", len(r.calls))
	}
}

func TestAvailable(t *testing.T) {
	e := newTestExtractor(&fakeRunner{})
	e.lookPath = func(string) (string, error) { return "/usr/bin/ffmpeg", nil }
	if !e.Available() {
		t.Fatal("expected available")
	}
	e.lookPath = func(string) (string, error) { return "", errors.New("not found") }
	if e.Available() {
		t.Fatal("expected unavailable")
	}
}

func TestProbeDuration(t *testing.T) {
	r := &fakeRunner{steps: []fakeStep{{stdout: "12.500000\n"}, {exit: 1, stderr: "moov atom not found"}}}
	e := New(Config{FFmpegPath: "/opt/ff/bin/ffmpeg", Runner: r})
	d, err := e.ProbeDuration(context.Background(), "/v/a.mp4")
	if err != nil || d != 12500*time.Millisecond {
		t.Fatalf("ProbeDuration = %v, %v", d, err)
	}
	if r.calls[0][0] != filepath.Join("/opt/ff/bin", "ffprobe") {
		t.Fatalf("expected sibling ffprobe, got %s", r.calls[0][0])
	}
	if _, err := e.ProbeDuration(context.Background(), "/v/b.mp4"); err == nil || !strings.Contains(err.Error(), "moov") {
		t.Fatalf("expected probe error with stderr, got %v", err)
	}
}

func TestLimitedWriterKeepsTail(t *testing.T) {
	var buf bytes.Buffer
	w := &limitedWriter{w: &buf, limit: 4}
	w.Write([]byte("abc"))
	w.Write([]byte("defg"))
	if buf.String() != "defg" {
		t.Fatalf("expected tail, got %q", buf.String())
	}
}
