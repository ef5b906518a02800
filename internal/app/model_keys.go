package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mikhskaz/videocutter/internal/session"
)

var reviewKeys = map[string]session.Command{
	"p":     session.CmdPass,
	"f":     session.CmdFail,
	"b":     session.CmdGoBack,
	"r":     session.CmdReplay,
	" ":     session.CmdTogglePause,
	"m":     session.CmdCycleRate,
	"right": session.CmdSeekForward,
	"left":  session.CmdSeekBackward,
}

var segmentKeys = map[string]session.Command{
	"s":     session.CmdSetStart,
	"e":     session.CmdSetEnd,
	"enter": session.CmdConfirm,
	"esc":   session.CmdCancel,
	"r":     session.CmdReplay,
	" ":     session.CmdTogglePause,
	"m":     session.CmdCycleRate,
	"right": session.CmdSeekForward,
	"left":  session.CmdSeekBackward,
}

func (m model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.requestQuit()
	}
	if m.loading {
		return m, nil
	}
	if m.editingNote {
		return m.handleNoteKey(msg)
	}
	key := keyName(msg)
	switch key {
	case "q":
		return m.requestQuit()
	case "?":
		m.showHelp = !m.showHelp
		return m, nil
	}
	if m.segmenting || m.extracting {
		if cmd, ok := segmentKeys[key]; ok {
			return m.dispatch(session.Input{Command: cmd})
		}
		return m, nil
	}
	if key == "u" && !m.done {
		return m.openNoteEditor()
	}
	if cmd, ok := reviewKeys[key]; ok {
		return m.dispatch(session.Input{Command: cmd})
	}
	return m, nil
}

func (m model) requestQuit() (tea.Model, tea.Cmd) {
	if m.deps.ctrl != nil && !m.deps.ctrl.CanQuit() {
		m.errorMsg = "A clip is being cut; wait for it to finish before quitting"
		return m, nil
	}
	m.quitting = true
	return m, tea.Quit
}

// keyName normalizes the space bar, which Bubble Tea reports as " " or "space"
// depending on version.
func keyName(msg tea.KeyMsg) string {
	if msg.Type == tea.KeySpace {
		return " "
	}
	s := msg.String()
	if s == "space" {
		return " "
	}
	return s
}
