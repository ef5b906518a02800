package store

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Label is the review decision for a video. The numeric values of the three
// terminal labels are the on-disk encoding.
type Label int

const (
	Unlabeled Label = -1
	Fail      Label = 0
	Pass      Label = 1
	Uncertain Label = 2
)

func (l Label) String() string {
	switch l {
	case Fail:
		return "fail"
	case Pass:
		return "pass"
	case Uncertain:
		return "uncertain"
	default:
		return "unlabeled"
	}
}

// Terminal reports whether l can be persisted.
func (l Label) Terminal() bool {
	return l == Fail || l == Pass || l == Uncertain
}

// Entry is one committed review decision.
type Entry struct {
	Path       string
	Label      Label
	OutputPath string
	Note       string
}

// Validate checks the rules every persisted entry must satisfy.
func (e Entry) Validate() error {
	switch {
	case strings.TrimSpace(e.Path) == "":
		return fmt.Errorf("empty video path")
	case !e.Label.Terminal():
		return fmt.Errorf("label %d outside {0,1,2}", int(e.Label))
	case e.Label == Fail && e.OutputPath == "":
		return fmt.Errorf("fail record without output path")
	case e.Label != Fail && e.OutputPath != "":
		return fmt.Errorf("%s record with output path", e.Label)
	}
	return nil
}

// Counts is the live per-label tally.
type Counts struct {
	Pass      int `json:"pass"`
	Fail      int `json:"fail"`
	Uncertain int `json:"uncertain"`
}

// Total returns the number of committed records.
func (c Counts) Total() int {
	return c.Pass + c.Fail + c.Uncertain
}

func (c *Counts) add(l Label, delta int) {
	switch l {
	case Pass:
		c.Pass += delta
	case Fail:
		c.Fail += delta
	case Uncertain:
		c.Uncertain += delta
	}
}

// Record columns: videoPath, label, outputPath, note. Files written by the
// earlier three-column layout carry no note and are still accepted.
const (
	columns       = 4
	legacyColumns = 3
)

func encodeEntry(e Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{e.Path, strconv.Itoa(int(e.Label)), e.OutputPath, e.Note}); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeFields(fields []string) (Entry, error) {
	if len(fields) != columns && len(fields) != legacyColumns {
		return Entry{}, fmt.Errorf("expected %d columns, got %d", columns, len(fields))
	}
	raw := strings.TrimSpace(fields[1])
	n, err := strconv.Atoi(raw)
	if err != nil {
		return Entry{}, fmt.Errorf("label %q is not a number", raw)
	}
	e := Entry{
		Path:       normalizePath(fields[0]),
		Label:      Label(n),
		OutputPath: fields[2],
	}
	if len(fields) == columns {
		e.Note = fields[3]
	}
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return p
	}
	return filepath.Clean(p)
}
