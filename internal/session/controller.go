// Package session is the review workflow: it walks the video queue, captures
// labels and failing segments, and commits each decision to the record store
// before moving on.
//
// A Controller is not safe for concurrent use. Every method except Snapshot
// and Job.Run must be called from the single interaction loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/mikhskaz/videocutter/internal/catalog"
	"github.com/mikhskaz/videocutter/internal/clip"
	"github.com/mikhskaz/videocutter/internal/logging"
	"github.com/mikhskaz/videocutter/internal/store"
)

const (
	DefaultHistoryDepth = 1
	DefaultMinSegment   = 100 * time.Millisecond
	DefaultSeekStep     = 5 * time.Second
)

// Player is the playback collaborator. Reads must be cheap; they are called
// on the interaction loop.
type Player interface {
	Load(path string) error
	Position() time.Duration
	// Duration returns zero when unknown.
	Duration() time.Duration
	Rate() float64
	SetRate(rate float64) error
	TogglePause() error
	Seek(offset time.Duration) error
	SeekTo(pos time.Duration) error
}

// Store is the durable record set.
type Store interface {
	AppendOrReplace(store.Entry) error
	Remove(path string) (store.Entry, error)
	Labeled() map[string]struct{}
	Snapshot() store.Counts
}

// Extractor cuts clips.
type Extractor interface {
	Available() bool
	Extract(ctx context.Context, req clip.Request) (clip.Result, error)
}

// Options wires a Controller.
type Options struct {
	Root         string
	FailuresDir  string
	HistoryDepth int
	MinSegment   time.Duration
	SeekStep     time.Duration

	Player    Player
	Presenter Presenter
	Store     Store
	Extractor Extractor
	Logger    *slog.Logger
	Now       func() time.Time
}

// Controller owns the session state.
type Controller struct {
	root         string
	failuresDir  string
	historyDepth int
	minSegment   time.Duration
	seekStep     time.Duration

	player    Player
	presenter Presenter
	store     Store
	extractor Extractor
	logger    *slog.Logger
	now       func() time.Time

	mode      Mode
	queue     []VideoEntry
	cursor    int
	history   []historyItem
	segment   Segment
	durations map[string]time.Duration
	job       *Job

	progress atomic.Pointer[Progress]
}

// New validates opts and returns an idle Controller.
func New(opts Options) (*Controller, error) {
	if opts.Player == nil || opts.Store == nil || opts.Extractor == nil {
		return nil, errors.New("session: player, store and extractor are required")
	}
	c := &Controller{
		root:         opts.Root,
		failuresDir:  opts.FailuresDir,
		historyDepth: opts.HistoryDepth,
		minSegment:   opts.MinSegment,
		seekStep:     opts.SeekStep,
		player:       opts.Player,
		presenter:    opts.Presenter,
		store:        opts.Store,
		extractor:    opts.Extractor,
		logger:       opts.Logger,
		now:          opts.Now,
		durations:    make(map[string]time.Duration),
	}
	if c.failuresDir == "" {
		c.failuresDir = catalog.DefaultFailuresDir
	}
	if c.historyDepth < 1 {
		c.historyDepth = DefaultHistoryDepth
	}
	if c.minSegment <= 0 {
		c.minSegment = DefaultMinSegment
	}
	if c.seekStep <= 0 {
		c.seekStep = DefaultSeekStep
	}
	if c.presenter == nil {
		c.presenter = PresenterFunc(func(Event) {})
	}
	if c.logger == nil {
		c.logger = logging.Discard()
	}
	c.logger = logging.WithComponent(c.logger, "session")
	if c.now == nil {
		c.now = time.Now
	}
	c.publish()
	return c, nil
}

// Start builds the queue from the scan result, leaving out videos the store
// already holds, and presents the first one.
func (c *Controller) Start(entries []catalog.Entry) error {
	if c.mode != Idle {
		return fmt.Errorf("start while %s: %w", c.mode, ErrCommandRejected)
	}
	labeled := c.store.Labeled()
	c.queue = c.queue[:0]
	for _, e := range entries {
		path := filepath.Clean(e.Path)
		if _, done := labeled[path]; done {
			continue
		}
		c.queue = append(c.queue, VideoEntry{Path: path, Label: store.Unlabeled, OpenErr: e.Err})
	}
	c.cursor = 0
	c.logger.Info("session started",
		"candidates", len(entries),
		"already_labeled", len(entries)-len(c.queue),
		"queued", len(c.queue),
	)
	c.presentCurrent(nil)
	c.publish()
	return nil
}

// Handle applies one operator command. A non-nil Job must be run off the loop
// and its Outcome passed back to Complete.
func (c *Controller) Handle(in Input) (*Job, error) {
	h, ok := transitions[c.mode][in.Command]
	if !ok {
		return nil, rejected(in.Command, c.mode)
	}
	job, err := h(c, in)
	c.publish()
	return job, err
}

// Complete finishes the in-flight extraction. The returned error is fatal.
func (c *Controller) Complete(out Outcome) error {
	if c.mode != Extracting || c.job == nil || out.Path != c.job.Path {
		c.logger.Warn("ignoring stale extraction outcome", "path", out.Path, "mode", c.mode.String())
		return nil
	}
	c.job = nil
	defer c.publish()

	if out.Err != nil {
		c.mode = SegmentSelecting
		c.logger.Warn("extraction failed", "path", out.Path, "error", out.Err)
		c.presenter.Present(ExtractionFailed{Path: out.Path, Err: out.Err})
		c.presenter.Present(c.segmentEvent(true))
		return nil
	}

	v := c.queue[c.cursor]
	v.Label = store.Fail
	v.OutputPath = out.Result.OutputPath
	v.Note = ""
	if err := c.commit(v); err != nil {
		// The clip exists but the decision is not recorded; stay put.
		c.mode = SegmentSelecting
		return err
	}
	return nil
}

// OpenFailed reports a load failure detected after Load returned. It is a
// no-op unless path is the video currently on screen.
func (c *Controller) OpenFailed(path string, err error) {
	if c.mode != Presenting && c.mode != SegmentSelecting {
		return
	}
	if c.cursor >= len(c.queue) || c.queue[c.cursor].Path != path {
		return
	}
	c.queue[c.cursor].OpenErr = &catalog.OpenError{Path: path, Err: err}
	c.segment = Segment{}
	c.skip(c.queue[c.cursor].OpenErr)
	c.cursor++
	c.presentCurrent(nil)
	c.publish()
}

// RecordDuration supplies a duration for path when the player cannot report one.
func (c *Controller) RecordDuration(path string, d time.Duration) {
	if d > 0 {
		c.durations[filepath.Clean(path)] = d
	}
}

// Mode returns the current state.
func (c *Controller) Mode() Mode { return c.mode }

// Current returns the video on screen.
func (c *Controller) Current() (VideoEntry, bool) {
	if c.mode == Idle || c.mode == Done || c.cursor >= len(c.queue) {
		return VideoEntry{}, false
	}
	return c.queue[c.cursor], true
}

// Selection returns the segment being edited.
func (c *Controller) Selection() Segment { return c.segment }

// CanGoBack reports whether there is a commit to undo.
func (c *Controller) CanGoBack() bool { return len(c.history) > 0 }

// CanQuit reports whether the session may end now. Quitting is refused while
// a clip is being written.
func (c *Controller) CanQuit() bool { return c.mode != Extracting }

// Snapshot returns the last published progress. Safe from any goroutine.
func (c *Controller) Snapshot() Progress {
	if p := c.progress.Load(); p != nil {
		return *p
	}
	return Progress{Mode: Idle.String()}
}

func (c *Controller) presentCurrent(previous *store.Entry) {
	for c.cursor < len(c.queue) {
		v := &c.queue[c.cursor]
		if v.Label.Terminal() {
			c.cursor++
			continue
		}
		if v.OpenErr != nil {
			c.skip(v.OpenErr)
			c.cursor++
			continue
		}
		if err := c.player.Load(v.Path); err != nil {
			v.OpenErr = &catalog.OpenError{Path: v.Path, Err: err}
			c.skip(v.OpenErr)
			c.cursor++
			continue
		}
		if err := c.player.SetRate(1.0); err != nil {
			c.logger.Warn("reset playback rate", "error", err)
		}
		c.mode = Presenting
		c.segment = Segment{}
		c.presenter.Present(VideoPresented{
			Path:     v.Path,
			Position: c.cursor + 1,
			Total:    len(c.queue),
			Counts:   c.store.Snapshot(),
			Previous: previous,
		})
		return
	}
	c.mode = Done
	c.segment = Segment{}
	counts := c.store.Snapshot()
	c.logger.Info("session finished", "pass", counts.Pass, "fail", counts.Fail, "uncertain", counts.Uncertain)
	c.presenter.Present(SessionDone{Counts: counts})
}

func (c *Controller) skip(err error) {
	path := c.queue[c.cursor].Path
	c.logger.Warn("skipping unreadable video", "path", path, "error", err)
	c.presenter.Present(VideoSkipped{Path: path, Err: err})
}

// commit persists v for the current cursor and advances.
func (c *Controller) commit(v VideoEntry) error {
	rec := v.record()
	if err := c.store.AppendOrReplace(rec); err != nil {
		return fmt.Errorf("commit %s: %w", v.Path, err)
	}
	c.queue[c.cursor] = v
	c.history = append(c.history, historyItem{index: c.cursor, entry: rec})
	if len(c.history) > c.historyDepth {
		c.history = c.history[len(c.history)-c.historyDepth:]
	}
	c.presenter.Present(Committed{Entry: rec, Counts: c.store.Snapshot()})
	c.logger.Info("label committed", "path", v.Path, "label", v.Label.String())
	c.cursor++
	c.presentCurrent(nil)
	return nil
}

func (c *Controller) duration(path string) time.Duration {
	if d := c.player.Duration(); d > 0 {
		return d
	}
	return c.durations[path]
}

func (c *Controller) segmentEvent(active bool) SegmentChanged {
	path := c.queue[c.cursor].Path
	return SegmentChanged{Path: path, Active: active, Segment: c.segment, Duration: c.duration(path)}
}

func (c *Controller) publish() {
	p := &Progress{
		Mode:      c.mode.String(),
		Total:     len(c.queue),
		Counts:    c.store.Snapshot(),
		CanGoBack: len(c.history) > 0,
		UpdatedAt: c.now(),
	}
	p.Labeled = p.Counts.Total()
	if v, ok := c.Current(); ok {
		p.Current = v.Path
		p.Position = c.cursor + 1
	}
	c.progress.Store(p)
}

// Job is one extraction handed to a worker.
type Job struct {
	Path      string
	Request   clip.Request
	extractor Extractor
}

// Run performs the extraction. It blocks and must not run on the loop.
func (j *Job) Run(ctx context.Context) Outcome {
	res, err := j.extractor.Extract(ctx, j.Request)
	return Outcome{Path: j.Path, Result: res, Err: err}
}

// Outcome is a finished Job.
type Outcome struct {
	Path   string
	Result clip.Result
	Err    error
}
