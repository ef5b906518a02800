package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mikhskaz/videocutter/internal/clip"
	"github.com/mikhskaz/videocutter/internal/session"
	"github.com/mikhskaz/videocutter/internal/store"
)

const progressBarWidth = 24

func (m model) renderLoading() string {
	line := fmt.Sprintf("%s Scanning for videos, please wait... %s found",
		m.spinner.View(), humanize.Comma(int64(m.scanned)))
	return statusStyle.Render(line)
}

func (m model) renderBody() string {
	parts := []string{panelStyle.Render(m.renderPanel())}
	if m.errorMsg != "" {
		parts = append(parts, errorStyle.Render(m.errorMsg))
	}
	if m.lastAct != "" {
		parts = append(parts, highlightStyle.Render(m.lastAct))
	}
	parts = append(parts, statusStyle.Render(m.statusMsg))
	if m.showHelp {
		parts = append(parts, statusStyle.Render(m.helpLine()))
	}
	return strings.Join(parts, "\n")
}

func (m model) renderPanel() string {
	var b strings.Builder
	if m.done {
		b.WriteString(headerStyle.Render("All videos reviewed"))
		b.WriteString("\n\n")
		b.WriteString(renderCounts(m.counts))
		if m.lastClip != "" {
			b.WriteString("\n")
			b.WriteString(statusStyle.Render("Last clip: " + trimPath(m.lastClip)))
		}
		return b.String()
	}

	b.WriteString(headerStyle.Render(fmt.Sprintf("Video %d of %d", m.position, m.total)))
	b.WriteString("  ")
	b.WriteString(renderProgressBar(m.position-1, m.total, progressBarWidth))
	b.WriteString("\n")
	b.WriteString(highlightStyle.Render(filepath.Base(m.current)))
	b.WriteString("\n")
	b.WriteString(statusStyle.Render(trimPath(filepath.Dir(m.current))))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("%s / %s  speed %sx",
		formatDuration(m.playhead), formatDuration(m.duration), formatRate(m.rate)))
	if m.segmenting || m.extracting {
		b.WriteString("\n")
		b.WriteString(m.renderSegment())
	}
	b.WriteString("\n\n")
	b.WriteString(renderCounts(m.counts))
	return b.String()
}

func (m model) renderSegment() string {
	start, end := "--", "--"
	if m.segment.HasStart {
		start = formatTimestamp(m.segment.Start)
	}
	if m.segment.HasEnd {
		end = formatTimestamp(m.segment.End)
	}
	line := fmt.Sprintf("Segment start %s  end %s", start, end)
	if m.segment.Complete() {
		line += fmt.Sprintf("  (%s)", formatTimestamp(m.segment.Length()))
	}
	if m.extracting {
		return failStyle.Render(line) + "  " + m.spinner.View() + " cutting"
	}
	return failStyle.Render(line)
}

func (m model) helpLine() string {
	switch {
	case m.done:
		return "b go back  •  q quit"
	case m.extracting:
		return "space pause  •  m speed  •  ←/→ seek  •  cutting clip, please wait"
	case m.segmenting:
		return "s mark start  •  e mark end  •  enter cut  •  esc cancel  •  space pause  •  m speed  •  ←/→ seek"
	default:
		return "p pass  •  f fail  •  u uncertain  •  b back  •  r replay  •  space pause  •  m speed  •  ←/→ seek  •  q quit"
	}
}

func renderCounts(c store.Counts) string {
	return strings.Join([]string{
		passStyle.Render("pass " + humanize.Comma(int64(c.Pass))),
		failStyle.Render("fail " + humanize.Comma(int64(c.Fail))),
		uncertainStyle.Render("uncertain " + humanize.Comma(int64(c.Uncertain))),
	}, "   ")
}

func commitMessage(e store.Entry, size int64) string {
	name := filepath.Base(e.Path)
	switch e.Label {
	case store.Fail:
		if size > 0 {
			return fmt.Sprintf("Failed %s, clip %s (%s)", name, filepath.Base(e.OutputPath), humanize.Bytes(uint64(size)))
		}
		return fmt.Sprintf("Failed %s, clip %s", name, filepath.Base(e.OutputPath))
	case store.Uncertain:
		if e.Note != "" {
			return fmt.Sprintf("Uncertain %s: %s", name, e.Note)
		}
		return fmt.Sprintf("Uncertain %s", name)
	default:
		return fmt.Sprintf("Passed %s", name)
	}
}

func describeError(err error) string {
	var verr *session.ValidationError
	switch {
	case errors.As(err, &verr):
		return "Segment not accepted: " + verr.Reason
	case errors.Is(err, session.ErrExtractorUnavailable):
		return "ffmpeg is not available; only pass and uncertain can be recorded"
	case errors.Is(err, session.ErrNoHistory):
		return "Nothing to go back to"
	case errors.Is(err, session.ErrCommandRejected):
		return "Not available right now"
	case clip.IsExtractionError(err):
		return "Clip extraction failed, adjust the segment and try again: " + err.Error()
	default:
		return err.Error()
	}
}

func renderProgressBar(done, total, width int) string {
	if width <= 0 || total <= 0 {
		return ""
	}
	if done < 0 {
		done = 0
	}
	if done > total {
		done = total
	}
	filled := int(float64(done) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("#", filled) + strings.Repeat("-", width-filled)
	return fmt.Sprintf("[%s]", bar)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "--"
	}
	totalSeconds := int(d.Seconds() + 0.5)
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// formatTimestamp keeps tenths of a second, which matters when marking segments.
func formatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	tenths := int64(d / (100 * time.Millisecond))
	minutes := tenths / 600
	seconds := (tenths % 600) / 10
	return fmt.Sprintf("%02d:%02d.%d", minutes, seconds, tenths%10)
}

func formatRate(r float64) string {
	return strconv.FormatFloat(r, 'f', -1, 64)
}

func trimPath(path string) string {
	home, err := os.UserHomeDir()
	if err == nil && home != "" && strings.HasPrefix(path, home) {
		return "~" + strings.TrimPrefix(path, home)
	}
	return path
}
