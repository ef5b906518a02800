package app

import (
	"time"

	"github.com/mikhskaz/videocutter/internal/catalog"
	"github.com/mikhskaz/videocutter/internal/player"
	"github.com/mikhskaz/videocutter/internal/session"
)

type scanDoneMsg struct {
	result *catalog.Result
	err    error
}

type progressUpdateMsg struct {
	processed int
	done      bool
}

type extractionDoneMsg struct {
	outcome session.Outcome
}

type playerFailureMsg struct {
	failure player.Failure
}

type playerClosedMsg struct{}

type durationProbedMsg struct {
	path     string
	duration time.Duration
	err      error
}

type positionTickMsg struct{}
