package session

import (
	"time"

	"github.com/mikhskaz/videocutter/internal/store"
)

// Mode is the controller's top-level state.
type Mode int

const (
	Idle Mode = iota
	Presenting
	SegmentSelecting
	Extracting
	Done
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Presenting:
		return "presenting"
	case SegmentSelecting:
		return "segment_selecting"
	case Extracting:
		return "extracting"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Command is the closed set of operator inputs.
type Command int

const (
	CmdPass Command = iota
	CmdFail
	CmdUncertain
	CmdSetStart
	CmdSetEnd
	CmdConfirm
	CmdCancel
	CmdGoBack
	CmdTogglePause
	CmdCycleRate
	CmdReplay
	CmdSeekForward
	CmdSeekBackward
)

var commandNames = map[Command]string{
	CmdPass:         "pass",
	CmdFail:         "fail",
	CmdUncertain:    "uncertain",
	CmdSetStart:     "set_start",
	CmdSetEnd:       "set_end",
	CmdConfirm:      "confirm",
	CmdCancel:       "cancel",
	CmdGoBack:       "go_back",
	CmdTogglePause:  "toggle_pause",
	CmdCycleRate:    "cycle_rate",
	CmdReplay:       "replay",
	CmdSeekForward:  "seek_forward",
	CmdSeekBackward: "seek_backward",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

// Input is a command plus its optional argument.
type Input struct {
	Command Command
	// Note accompanies CmdUncertain.
	Note string
}

// VideoEntry is one queued video and its in-session label.
type VideoEntry struct {
	Path       string
	Label      store.Label
	OutputPath string
	Note       string
	// OpenErr is set once the video failed to open; it is skipped from then on.
	OpenErr error
}

func (v VideoEntry) record() store.Entry {
	return store.Entry{Path: v.Path, Label: v.Label, OutputPath: v.OutputPath, Note: v.Note}
}

// Segment is the in-progress failing range.
type Segment struct {
	Start    time.Duration
	End      time.Duration
	HasStart bool
	HasEnd   bool
}

// Complete reports whether both bounds are set.
func (s Segment) Complete() bool {
	return s.HasStart && s.HasEnd
}

// Length returns End-Start once both are set.
func (s Segment) Length() time.Duration {
	if !s.Complete() {
		return 0
	}
	return s.End - s.Start
}

type historyItem struct {
	index int
	entry store.Entry
}

// Progress is the read-only view published after every transition.
type Progress struct {
	Mode      string       `json:"mode"`
	Current   string       `json:"current,omitempty"`
	Position  int          `json:"position"`
	Total     int          `json:"total"`
	Counts    store.Counts `json:"counts"`
	Labeled   int          `json:"labeled"`
	CanGoBack bool         `json:"can_go_back"`
	UpdatedAt time.Time    `json:"updated_at"`
}
