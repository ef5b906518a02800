package session

import (
	"time"

	"github.com/mikhskaz/videocutter/internal/store"
)

// Event is something the presenter should render.
type Event interface {
	isEvent()
}

// VideoPresented is sent each time a video becomes current.
type VideoPresented struct {
	Path     string
	Position int // 1-based
	Total    int
	Counts   store.Counts
	Previous *store.Entry // set when re-presented after go-back
}

// SegmentChanged is sent whenever the selection changes, including entry to
// and exit from segment selection.
type SegmentChanged struct {
	Path     string
	Active   bool
	Segment  Segment
	Duration time.Duration
}

// ExtractionStarted is sent when a confirmed segment is handed to a worker.
type ExtractionStarted struct {
	Path    string
	Segment Segment
}

// ExtractionFailed is sent when every strategy failed; the selection is kept.
type ExtractionFailed struct {
	Path string
	Err  error
}

// Committed is sent after a label is durably stored.
type Committed struct {
	Entry  store.Entry
	Counts store.Counts
}

// Reverted is sent after go-back removed a record.
type Reverted struct {
	Entry  store.Entry
	Counts store.Counts
}

// VideoSkipped is sent when a video cannot be opened.
type VideoSkipped struct {
	Path string
	Err  error
}

// RateChanged is sent after the playback rate changed.
type RateChanged struct {
	Rate float64
}

// SessionDone is sent once the queue is exhausted.
type SessionDone struct {
	Counts store.Counts
}

func (VideoPresented) isEvent()    {}
func (SegmentChanged) isEvent()    {}
func (ExtractionStarted) isEvent() {}
func (ExtractionFailed) isEvent()  {}
func (Committed) isEvent()         {}
func (Reverted) isEvent()          {}
func (VideoSkipped) isEvent()      {}
func (RateChanged) isEvent()       {}
func (SessionDone) isEvent()       {}

// Presenter receives controller events on the interaction loop. It must not
// block.
type Presenter interface {
	Present(Event)
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(Event)

func (f PresenterFunc) Present(e Event) { f(e) }

// Fanout delivers each event to every non-nil presenter in order.
func Fanout(ps ...Presenter) Presenter {
	var out multiPresenter
	for _, p := range ps {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

type multiPresenter []Presenter

func (m multiPresenter) Present(e Event) {
	for _, p := range m {
		p.Present(e)
	}
}
