package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mikhskaz/videocutter/internal/catalog"
	"github.com/mikhskaz/videocutter/internal/session"
	"github.com/mikhskaz/videocutter/internal/store"
)

// eventFeed collects controller events during one Update call.
type eventFeed struct {
	events []session.Event
}

func (f *eventFeed) Present(e session.Event) {
	f.events = append(f.events, e)
}

func (f *eventFeed) drain() []session.Event {
	out := f.events
	f.events = nil
	return out
}

type modelDeps struct {
	ctx         context.Context
	root        string
	scanOptions catalog.Options
	ctrl        *session.Controller
	feed        *eventFeed
	player      mediaPlayer
	prober      durationProber
	logger      *slog.Logger
}

type model struct {
	deps     modelDeps
	progress *loadProgress
	spinner  spinner.Model

	noteInput   textinput.Model
	editingNote bool
	notePaused  bool

	loading   bool
	scanned   int
	done      bool
	fatal     error
	quitting  bool
	showHelp  bool
	statusMsg string
	errorMsg  string
	lastAct   string

	current    string
	position   int
	total      int
	counts     store.Counts
	rate       float64
	playhead   time.Duration
	duration   time.Duration
	segmenting bool
	segment    session.Segment
	extracting bool
	lastClip   string
	lastSize   int64
	ticking    bool
}

func newModel(deps modelDeps) model {
	if deps.ctx == nil {
		deps.ctx = context.Background()
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = highlightStyle

	return model{
		deps:      deps,
		progress:  &loadProgress{},
		spinner:   sp,
		noteInput: buildNoteInput(),
		loading:   true,
		showHelp:  true,
		rate:      1.0,
		statusMsg: "Scanning for videos...",
	}
}

func (m model) Init() tea.Cmd {
	m.progress.Reset()
	return tea.Batch(
		scanCmd(m.deps.root, m.deps.scanOptions, m.progress),
		progressTickerCmd(m.progress),
		m.spinner.Tick,
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(typed)
	case progressUpdateMsg:
		return m.handleProgressUpdate(typed)
	case scanDoneMsg:
		return m.handleScanDone(typed)
	case extractionDoneMsg:
		return m.handleExtractionDone(typed)
	case playerFailureMsg:
		return m.handlePlayerFailure(typed)
	case playerClosedMsg:
		return m.handlePlayerClosed()
	case durationProbedMsg:
		return m.handleDurationProbed(typed), nil
	case positionTickMsg:
		return m.handlePositionTick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(typed)
		return m, cmd
	default:
		return m, nil
	}
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	if m.loading {
		return m.renderLoading()
	}
	body := m.renderBody()
	if m.editingNote {
		return body + "\n\n" + m.renderNoteModal()
	}
	return body
}

func (m model) handleProgressUpdate(msg progressUpdateMsg) (tea.Model, tea.Cmd) {
	if !m.loading {
		return m, nil
	}
	m.scanned = msg.processed
	if msg.done {
		return m, nil
	}
	m.statusMsg = fmt.Sprintf("Scanning for videos... %d found", msg.processed)
	return m, progressTickerCmd(m.progress)
}

func (m model) handleScanDone(msg scanDoneMsg) (tea.Model, tea.Cmd) {
	m.loading = false
	if msg.err != nil {
		return m.fail(fmt.Errorf("scan videos: %w", msg.err))
	}
	for _, w := range msg.result.Warnings {
		m.deps.logger.Warn("scan warning", "error", w)
	}
	if err := m.deps.ctrl.Start(msg.result.Entries); err != nil {
		return m.fail(err)
	}
	m.statusMsg = fmt.Sprintf("Found %d videos", len(msg.result.Entries))
	cmds := []tea.Cmd{waitForPlayerFailure(m.deps.player)}
	m, cmd := m.applyEvents()
	return m, tea.Batch(append(cmds, cmd)...)
}

func (m model) handleExtractionDone(msg extractionDoneMsg) (tea.Model, tea.Cmd) {
	if msg.outcome.Err == nil {
		m.lastSize = msg.outcome.Result.Size
	}
	if err := m.deps.ctrl.Complete(msg.outcome); err != nil {
		return m.fail(err)
	}
	return m.applyEvents()
}

func (m model) handlePlayerFailure(msg playerFailureMsg) (tea.Model, tea.Cmd) {
	m.deps.ctrl.OpenFailed(msg.failure.Path, msg.failure.Err)
	m, cmd := m.applyEvents()
	return m, tea.Batch(cmd, waitForPlayerFailure(m.deps.player))
}

func (m model) handlePlayerClosed() (tea.Model, tea.Cmd) {
	if m.extracting {
		m.errorMsg = "Player window closed; finishing the current clip first"
		return m, nil
	}
	m.quitting = true
	return m, tea.Quit
}

func (m model) handleDurationProbed(msg durationProbedMsg) model {
	if msg.err != nil {
		m.deps.logger.Debug("duration probe failed", "path", msg.path, "error", msg.err)
		return m
	}
	m.deps.ctrl.RecordDuration(msg.path, msg.duration)
	if msg.path == m.current && m.duration == 0 {
		m.duration = msg.duration
	}
	return m
}

func (m model) handlePositionTick() (tea.Model, tea.Cmd) {
	if m.done || m.deps.player == nil {
		m.ticking = false
		return m, nil
	}
	m.playhead = m.deps.player.Position()
	if d := m.deps.player.Duration(); d > 0 {
		m.duration = d
	}
	m.rate = m.deps.player.Rate()
	return m, positionTickCmd()
}

// startTicking arms the playhead ticker unless one is already pending.
func (m *model) startTicking() tea.Cmd {
	if m.ticking || m.done || m.deps.player == nil {
		return nil
	}
	m.ticking = true
	return positionTickCmd()
}

// dispatch sends one command to the controller and folds the result into the view.
func (m model) dispatch(in session.Input) (tea.Model, tea.Cmd) {
	m.errorMsg = ""
	job, err := m.deps.ctrl.Handle(in)
	if err != nil && store.IsIOError(err) {
		return m.fail(err)
	}
	m, cmd := m.applyEvents()
	if err != nil {
		m.errorMsg = describeError(err)
		return m, cmd
	}
	if job != nil {
		return m, tea.Batch(cmd, extractCmd(m.deps.ctx, job), m.spinner.Tick)
	}
	return m, cmd
}

func (m model) fail(err error) (tea.Model, tea.Cmd) {
	m.fatal = err
	m.quitting = true
	m.deps.logger.Error("session stopped", "error", err)
	return m, tea.Quit
}

// applyEvents renders every pending controller event into model state.
func (m model) applyEvents() (model, tea.Cmd) {
	var cmds []tea.Cmd
	for _, ev := range m.deps.feed.drain() {
		switch e := ev.(type) {
		case session.VideoPresented:
			m.current = e.Path
			m.position = e.Position
			m.total = e.Total
			m.counts = e.Counts
			m.rate = 1.0
			m.playhead = 0
			m.duration = 0
			m.segmenting = false
			m.extracting = false
			m.segment = session.Segment{}
			m.done = false
			if e.Previous != nil {
				m.statusMsg = fmt.Sprintf("Back to %s (was %s)", filepath.Base(e.Path), e.Previous.Label)
			} else {
				m.statusMsg = fmt.Sprintf("Reviewing %s", filepath.Base(e.Path))
			}
			cmds = append(cmds, probeDurationCmd(m.deps.ctx, m.deps.prober, e.Path))
			cmds = append(cmds, m.startTicking())
		case session.SegmentChanged:
			m.segmenting = e.Active
			m.segment = e.Segment
			if e.Duration > 0 {
				m.duration = e.Duration
			}
			if !e.Active {
				m.statusMsg = "Segment selection cancelled"
			}
		case session.ExtractionStarted:
			m.extracting = true
			m.statusMsg = fmt.Sprintf("Cutting %s-%s from %s",
				formatDuration(e.Segment.Start), formatDuration(e.Segment.End), filepath.Base(e.Path))
		case session.ExtractionFailed:
			m.extracting = false
			m.errorMsg = describeError(e.Err)
		case session.Committed:
			m.counts = e.Counts
			m.lastAct = commitMessage(e.Entry, m.lastSize)
			if e.Entry.Label == store.Fail {
				m.lastClip = e.Entry.OutputPath
			}
		case session.Reverted:
			m.counts = e.Counts
			m.lastAct = fmt.Sprintf("Removed %s label from %s", e.Entry.Label, filepath.Base(e.Entry.Path))
		case session.VideoSkipped:
			m.errorMsg = fmt.Sprintf("Skipped %s: %v", filepath.Base(e.Path), e.Err)
		case session.RateChanged:
			m.rate = e.Rate
			m.statusMsg = fmt.Sprintf("Playback speed %sx", formatRate(e.Rate))
		case session.SessionDone:
			m.done = true
			m.counts = e.Counts
			m.current = ""
			m.segmenting = false
			m.extracting = false
		}
	}
	return m, tea.Batch(cmds...)
}
