package session

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/mikhskaz/videocutter/internal/clip"
	"github.com/mikhskaz/videocutter/internal/store"
)

type handler func(c *Controller, in Input) (*Job, error)

// transitions lists every command each state accepts. Anything missing is
// rejected without touching state.
var transitions = map[Mode]map[Command]handler{
	Presenting: {
		CmdPass:         (*Controller).pass,
		CmdUncertain:    (*Controller).uncertain,
		CmdFail:         (*Controller).fail,
		CmdGoBack:       (*Controller).goBack,
		CmdTogglePause:  (*Controller).togglePause,
		CmdCycleRate:    (*Controller).cycleRate,
		CmdReplay:       (*Controller).replay,
		CmdSeekForward:  (*Controller).seekForward,
		CmdSeekBackward: (*Controller).seekBackward,
	},
	SegmentSelecting: {
		CmdSetStart:     (*Controller).setStart,
		CmdSetEnd:       (*Controller).setEnd,
		CmdConfirm:      (*Controller).confirm,
		CmdCancel:       (*Controller).cancel,
		CmdTogglePause:  (*Controller).togglePause,
		CmdCycleRate:    (*Controller).cycleRate,
		CmdReplay:       (*Controller).replay,
		CmdSeekForward:  (*Controller).seekForward,
		CmdSeekBackward: (*Controller).seekBackward,
	},
	Extracting: {
		CmdTogglePause:  (*Controller).togglePause,
		CmdCycleRate:    (*Controller).cycleRate,
		CmdReplay:       (*Controller).replay,
		CmdSeekForward:  (*Controller).seekForward,
		CmdSeekBackward: (*Controller).seekBackward,
	},
	Done: {
		CmdGoBack: (*Controller).goBack,
	},
}

// rateCycle is the slow-motion sequence; anything off-cycle returns to 1x.
var rateCycle = []float64{1.0, 0.5, 0.25}

func (c *Controller) pass(Input) (*Job, error) {
	v := c.queue[c.cursor]
	v.Label = store.Pass
	v.OutputPath = ""
	v.Note = ""
	return nil, c.commit(v)
}

func (c *Controller) uncertain(in Input) (*Job, error) {
	v := c.queue[c.cursor]
	v.Label = store.Uncertain
	v.OutputPath = ""
	v.Note = in.Note
	return nil, c.commit(v)
}

func (c *Controller) fail(Input) (*Job, error) {
	if !c.extractor.Available() {
		return nil, ErrExtractorUnavailable
	}
	c.mode = SegmentSelecting
	c.segment = Segment{}
	c.presenter.Present(c.segmentEvent(true))
	return nil, nil
}

func (c *Controller) setStart(Input) (*Job, error) {
	c.segment.Start = c.player.Position()
	c.segment.HasStart = true
	c.presenter.Present(c.segmentEvent(true))
	return nil, nil
}

func (c *Controller) setEnd(Input) (*Job, error) {
	c.segment.End = c.player.Position()
	c.segment.HasEnd = true
	c.presenter.Present(c.segmentEvent(true))
	return nil, nil
}

func (c *Controller) cancel(Input) (*Job, error) {
	c.mode = Presenting
	c.segment = Segment{}
	c.presenter.Present(c.segmentEvent(false))
	return nil, nil
}

func (c *Controller) confirm(Input) (*Job, error) {
	if err := c.validateSegment(); err != nil {
		return nil, err
	}
	v := c.queue[c.cursor]
	job := &Job{
		Path: v.Path,
		Request: clip.Request{
			Source:    v.Path,
			Start:     c.segment.Start,
			End:       c.segment.End,
			OutputDir: filepath.Join(c.root, c.failuresDir),
		},
		extractor: c.extractor,
	}
	c.job = job
	c.mode = Extracting
	c.logger.Info("extraction queued",
		"path", v.Path,
		"start_ms", c.segment.Start.Milliseconds(),
		"end_ms", c.segment.End.Milliseconds(),
	)
	c.presenter.Present(ExtractionStarted{Path: v.Path, Segment: c.segment})
	return job, nil
}

func (c *Controller) validateSegment() error {
	s := c.segment
	switch {
	case !s.HasStart && !s.HasEnd:
		return &ValidationError{Reason: "set a start and an end first"}
	case !s.HasStart:
		return &ValidationError{Reason: "set a start first"}
	case !s.HasEnd:
		return &ValidationError{Reason: "set an end first"}
	case s.Start >= s.End:
		return &ValidationError{Reason: fmt.Sprintf("start %s is not before end %s", s.Start, s.End)}
	case s.Length() < c.minSegment:
		return &ValidationError{Reason: fmt.Sprintf("segment shorter than %s", c.minSegment)}
	}
	if d := c.duration(c.queue[c.cursor].Path); d > 0 && s.End > d {
		return &ValidationError{Reason: fmt.Sprintf("end %s is past the video duration %s", s.End, d)}
	}
	return nil
}

func (c *Controller) goBack(Input) (*Job, error) {
	if len(c.history) == 0 {
		return nil, ErrNoHistory
	}
	last := c.history[len(c.history)-1]
	removed, err := c.store.Remove(last.entry.Path)
	if err != nil && !errors.Is(err, store.ErrNoRecord) {
		return nil, fmt.Errorf("go back to %s: %w", last.entry.Path, err)
	}
	if err != nil {
		c.logger.Warn("record already gone", "path", last.entry.Path)
		removed = last.entry
	}
	c.history = c.history[:len(c.history)-1]

	v := &c.queue[last.index]
	v.Label = store.Unlabeled
	v.OutputPath = ""
	v.Note = ""
	c.cursor = last.index
	c.logger.Info("went back", "path", v.Path, "previous_label", removed.Label.String())
	c.presenter.Present(Reverted{Entry: removed, Counts: c.store.Snapshot()})
	c.presentCurrent(&removed)
	return nil, nil
}

func (c *Controller) togglePause(Input) (*Job, error) {
	return nil, c.player.TogglePause()
}

func (c *Controller) cycleRate(Input) (*Job, error) {
	next := rateCycle[0]
	current := c.player.Rate()
	for i, r := range rateCycle {
		if r == current {
			next = rateCycle[(i+1)%len(rateCycle)]
			break
		}
	}
	if err := c.player.SetRate(next); err != nil {
		return nil, err
	}
	c.presenter.Present(RateChanged{Rate: next})
	return nil, nil
}

func (c *Controller) replay(Input) (*Job, error) {
	return nil, c.player.SeekTo(0)
}

func (c *Controller) seekForward(Input) (*Job, error) {
	return nil, c.player.Seek(c.seekStep)
}

func (c *Controller) seekBackward(Input) (*Job, error) {
	return nil, c.player.Seek(-c.seekStep)
}
