package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mikhskaz/videocutter/internal/catalog"
	"github.com/mikhskaz/videocutter/internal/player"
	"github.com/mikhskaz/videocutter/internal/session"
)

const (
	progressInterval = 200 * time.Millisecond
	positionInterval = 250 * time.Millisecond
)

func scanCmd(root string, opts catalog.Options, progress *loadProgress) tea.Cmd {
	return func() tea.Msg {
		opts.OnVisit = progress.Increment
		res, err := catalog.Scan(root, opts)
		progress.MarkDone()
		return scanDoneMsg{result: res, err: err}
	}
}

func progressTickerCmd(progress *loadProgress) tea.Cmd {
	if progress == nil {
		return nil
	}
	return tea.Tick(progressInterval, func(time.Time) tea.Msg {
		processed, done := progress.Snapshot()
		return progressUpdateMsg{processed: processed, done: done}
	})
}

// extractCmd runs job on a worker goroutine and reports back to the loop.
func extractCmd(ctx context.Context, job *session.Job) tea.Cmd {
	return func() tea.Msg {
		return extractionDoneMsg{outcome: job.Run(ctx)}
	}
}

// waitForPlayerFailure blocks on the player's failure feed. It is re-armed
// after every message.
func waitForPlayerFailure(p mediaPlayer) tea.Cmd {
	if p == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case f := <-p.Failures():
			return playerFailureMsg{failure: f}
		case <-p.Done():
			return playerClosedMsg{}
		}
	}
}

func probeDurationCmd(ctx context.Context, p durationProber, path string) tea.Cmd {
	if p == nil || path == "" {
		return nil
	}
	return func() tea.Msg {
		d, err := p.ProbeDuration(ctx, path)
		return durationProbedMsg{path: path, duration: d, err: err}
	}
}

func positionTickCmd() tea.Cmd {
	return tea.Tick(positionInterval, func(time.Time) tea.Msg {
		return positionTickMsg{}
	})
}

// mediaPlayer is the playback collaborator plus its asynchronous feeds.
type mediaPlayer interface {
	session.Player
	Paused() bool
	SetPaused(paused bool) error
	Failures() <-chan player.Failure
	Done() <-chan struct{}
	Close() error
}

type durationProber interface {
	ProbeDuration(ctx context.Context, path string) (time.Duration, error)
}
