package clip

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const probeTimeout = 15 * time.Second

// ProbeDuration asks ffprobe for the container duration of path.
func (e *Extractor) ProbeDuration(ctx context.Context, path string) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	res := e.runner.Run(ctx, e.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if !res.IsSuccess() {
		if res.Err != nil {
			return 0, fmt.Errorf("probe %s: %w", path, res.Err)
		}
		return 0, fmt.Errorf("probe %s: exit %d: %s", path, res.ExitCode, truncate(strings.TrimSpace(res.StderrTail), 256))
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(res.Stdout), 64)
	if err != nil {
		return 0, fmt.Errorf("probe %s: parse duration: %w", path, err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// siblingTool returns tool next to the configured ffmpeg binary when ffmpeg
// was given as a path, or the bare name otherwise.
func siblingTool(ffmpeg, tool string) string {
	if dir := filepath.Dir(ffmpeg); dir != "." && strings.ContainsRune(ffmpeg, filepath.Separator) {
		return filepath.Join(dir, tool+filepath.Ext(ffmpeg))
	}
	return tool
}
