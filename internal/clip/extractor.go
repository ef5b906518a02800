// Package clip cuts failing segments out of source videos with ffmpeg.
//
// Extraction tries an ordered list of strategies. The first is a lossless
// stream copy; when that fails the segment is re-encoded. An attempt only
// counts as successful when the tool exits cleanly and leaves a non-empty file.
package clip

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/mikhskaz/videocutter/internal/logging"
)

// Request describes one segment to extract.
type Request struct {
	Source    string
	Start     time.Duration
	End       time.Duration
	OutputDir string
}

// Result is a successful extraction.
type Result struct {
	OutputPath string
	Strategy   string
	Size       int64
	Attempts   []Attempt
}

// Strategy builds the codec arguments for one extraction attempt.
type Strategy struct {
	Name  string
	Codec []string
}

// DefaultStrategies is stream copy first, then re-encode.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "copy", Codec: []string{"-c", "copy", "-avoid_negative_ts", "make_zero"}},
		{Name: "reencode", Codec: []string{"-c:v", "libx264", "-c:a", "aac", "-preset", "fast"}},
	}
}

// Observer is told about every attempt as soon as it finishes.
type Observer func(req Request, a Attempt)

// Config configures an Extractor.
type Config struct {
	FFmpegPath  string
	FFprobePath string
	// Timeout bounds each attempt. Zero means no limit.
	Timeout    time.Duration
	Strategies []Strategy
	Runner     Runner
	Observer   Observer
	Logger     *slog.Logger
}

// Extractor runs the strategy list for each request.
type Extractor struct {
	ffmpeg     string
	ffprobe    string
	timeout    time.Duration
	strategies []Strategy
	runner     Runner
	observer   Observer
	logger     *slog.Logger
	lookPath   func(string) (string, error)
}

// New builds an Extractor, filling in defaults for empty fields.
func New(cfg Config) *Extractor {
	e := &Extractor{
		ffmpeg:     cfg.FFmpegPath,
		ffprobe:    cfg.FFprobePath,
		timeout:    cfg.Timeout,
		strategies: cfg.Strategies,
		runner:     cfg.Runner,
		observer:   cfg.Observer,
		logger:     cfg.Logger,
		lookPath:   exec.LookPath,
	}
	if e.ffmpeg == "" {
		e.ffmpeg = "ffmpeg"
	}
	if e.ffprobe == "" {
		e.ffprobe = siblingTool(e.ffmpeg, "ffprobe")
	}
	if len(e.strategies) == 0 {
		e.strategies = DefaultStrategies()
	}
	if e.runner == nil {
		e.runner = ExecRunner{}
	}
	if e.logger == nil {
		e.logger = logging.Discard()
	}
	e.logger = logging.WithComponent(e.logger, "clip")
	return e
}

// SetObserver replaces the attempt observer.
func (e *Extractor) SetObserver(o Observer) {
	e.observer = o
}

// Available reports whether ffmpeg can be found.
func (e *Extractor) Available() bool {
	_, err := e.lookPath(e.ffmpeg)
	return err == nil
}

// Extract cuts req into a new file inside req.OutputDir.
func (e *Extractor) Extract(ctx context.Context, req Request) (Result, error) {
	if req.Start < 0 || req.Start >= req.End {
		return Result{}, fmt.Errorf("extract %s: %w", req.Source, ErrInvalidRange)
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return Result{}, &ExtractionError{
			Source:   req.Source,
			Attempts: []Attempt{{Strategy: "prepare", ExitCode: -1, Err: fmt.Errorf("create output dir: %w", err)}},
		}
	}
	out, err := uniquePath(req.OutputDir, OutputName(req.Source, req.Start, req.End))
	if err != nil {
		return Result{}, &ExtractionError{
			Source:   req.Source,
			Attempts: []Attempt{{Strategy: "prepare", ExitCode: -1, Err: err}},
		}
	}

	var attempts []Attempt
	for _, strategy := range e.strategies {
		attempt, size := e.attempt(ctx, strategy, req, out)
		attempts = append(attempts, attempt)
		if e.observer != nil {
			e.observer(req, attempt)
		}
		if attempt.ExitCode == 0 && attempt.Err == nil {
			e.logger.Info("clip extracted",
				"source", req.Source,
				"output", out,
				"strategy", strategy.Name,
				"bytes", size,
			)
			return Result{OutputPath: out, Strategy: strategy.Name, Size: size, Attempts: attempts}, nil
		}
		os.Remove(out)
		if ctx.Err() != nil {
			break
		}
	}
	return Result{}, &ExtractionError{Source: req.Source, Attempts: attempts}
}

func (e *Extractor) attempt(ctx context.Context, s Strategy, req Request, out string) (Attempt, int64) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	args := []string{"-y", "-ss", timestamp(req.Start), "-i", req.Source, "-t", seconds(req.End - req.Start)}
	args = append(args, s.Codec...)
	args = append(args, out)

	res := e.runner.Run(ctx, e.ffmpeg, args...)
	attempt := Attempt{Strategy: s.Name, ExitCode: res.ExitCode, StderrTail: res.StderrTail, Err: res.Err}
	if !res.IsSuccess() {
		e.logger.Warn("clip attempt failed",
			"strategy", s.Name,
			"exit_code", res.ExitCode,
			"duration_ms", res.Duration.Milliseconds(),
			"stderr_tail", truncate(res.StderrTail, 512),
		)
		return attempt, 0
	}

	info, err := os.Stat(out)
	switch {
	case err != nil:
		attempt.Err = fmt.Errorf("output missing: %w", err)
	case info.Size() == 0:
		attempt.Err = fmt.Errorf("output is empty")
	default:
		return attempt, info.Size()
	}
	e.logger.Warn("clip attempt produced no output", "strategy", s.Name, "error", attempt.Err)
	return attempt, 0
}
