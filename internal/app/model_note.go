package app

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mikhskaz/videocutter/internal/session"
)

const noteLimit = 512

func buildNoteInput() textinput.Model {
	in := textinput.New()
	in.Placeholder = "why is this uncertain? (optional)"
	in.Prompt = "Note: "
	in.CharLimit = noteLimit
	return in
}

func (m model) openNoteEditor() (tea.Model, tea.Cmd) {
	if m.current == "" {
		return m, nil
	}
	m.editingNote = true
	m.notePaused = false
	if m.deps.player != nil && !m.deps.player.Paused() {
		if err := m.deps.player.SetPaused(true); err != nil {
			m.deps.logger.Debug("pause for note", "error", err)
		} else {
			m.notePaused = true
		}
	}
	m.noteInput.SetValue("")
	m.noteInput.Focus()
	m.statusMsg = "Marking uncertain"
	return m, textinput.Blink
}

func (m model) handleNoteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		resume := m.notePaused
		m.closeNoteEditor()
		if resume {
			if err := m.deps.player.SetPaused(false); err != nil {
				m.deps.logger.Debug("resume after note", "error", err)
			}
		}
		m.statusMsg = "Uncertain cancelled"
		return m, nil
	case "enter":
		note := cleanNote(m.noteInput.Value())
		m.closeNoteEditor()
		return m.dispatch(session.Input{Command: session.CmdUncertain, Note: note})
	}
	var cmd tea.Cmd
	m.noteInput, cmd = m.noteInput.Update(msg)
	return m, cmd
}

func (m *model) closeNoteEditor() {
	m.editingNote = false
	m.notePaused = false
	m.noteInput.Blur()
}

// cleanNote trims the note and folds line breaks so it stays one CSV field line.
func cleanNote(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

func (m model) renderNoteModal() string {
	var b strings.Builder
	b.WriteString("Mark as uncertain\n\n")
	b.WriteString(m.noteInput.View())
	b.WriteString("\n\n")
	b.WriteString("Enter to save, Esc to cancel")
	return modalStyle.Render(b.String())
}
