package watcher

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/aliskhannn/academy-tube/internal/tracker"
)

var (
	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("232")). // Dark text
			Background(lipgloss.Color("214")). // Amber
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).  // Bright white
			Background(lipgloss.Color("160")). // Red
			Padding(0, 1)

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")). // Bright white
			Background(lipgloss.Color("28")). // Green
			Padding(0, 1)

	barFull  = lipgloss.NewStyle().Foreground(lipgloss.Color("51"))  // Cyan
	barEmpty = lipgloss.NewStyle().Foreground(lipgloss.Color("238")) // Dark gray
)

const barWidth = 30

// clearLine returns the cursor to column 0 and erases the line.
const clearLine = "\r\x1b[K"

// Console prints notices and progress lines to a terminal. Transient notices
// go on a status line that the next write erases.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	status bool
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Notify implements tracker.Notifier.
func (c *Console) Notify(n tracker.Notice) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n.Transient {
		_, _ = fmt.Fprint(c.out, clearLine+RenderNotice(n))
		c.status = true
		return
	}
	c.println(RenderNotice(n))
}

// Progress prints one progress line.
func (c *Console) Progress(s tracker.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.println(RenderProgress(s))
}

func (c *Console) println(line string) {
	if c.status {
		line = clearLine + line
		c.status = false
	}
	_, _ = fmt.Fprintln(c.out, line)
}

// RenderNotice styles a notice by kind.
func RenderNotice(n tracker.Notice) string {
	switch n.Kind {
	case tracker.NoticeSkipBlocked:
		return warnStyle.Render(fmt.Sprintf("%s (back to %s)", n.Message, clock(n.Position)))
	case tracker.NoticeFirstWatchFailed:
		return warnStyle.Render(n.Message)
	case tracker.NoticeCompleted:
		return doneStyle.Render(n.Message)
	case tracker.NoticeEmbedUnavailable:
		return errorStyle.Render(n.Message)
	default:
		return n.Message
	}
}

// RenderProgress draws a bar with the position and the saved percentage.
func RenderProgress(s tracker.Snapshot) string {
	filled := int(s.Percent / 100 * barWidth)
	filled = min(max(filled, 0), barWidth)

	bar := barFull.Render(strings.Repeat("█", filled)) +
		barEmpty.Render(strings.Repeat("░", barWidth-filled))

	return fmt.Sprintf("%s %5.1f%%  %s / %s  saved %.0f%%  [%s]",
		bar, s.Percent, clock(s.MaxWatched), clock(s.Duration), s.LastSavedPercent, s.Phase)
}

func clock(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
