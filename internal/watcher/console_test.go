package watcher

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aliskhannn/academy-tube/internal/tracker"
)

func TestConsoleNotify(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.Notify(tracker.Notice{Kind: tracker.NoticeSkipBlocked, Message: "Skipping ahead is not allowed", Position: 75})
	c.Notify(tracker.Notice{Kind: tracker.NoticeEmbedUnavailable, Message: "Watch it on YouTube"})

	out := buf.String()
	assert.Contains(t, out, "Skipping ahead is not allowed")
	assert.Contains(t, out, "1:15")
	assert.Contains(t, out, "Watch it on YouTube")
}

func TestConsoleTransientNoticeIsOverwritten(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.Notify(tracker.Notice{Kind: tracker.NoticeFirstWatchFailed, Message: "Could not record the start", Transient: true})

	status := buf.String()
	assert.True(t, strings.HasPrefix(status, clearLine))
	assert.Contains(t, status, "Could not record the start")
	assert.NotContains(t, status, "\n")

	buf.Reset()
	c.Progress(tracker.Snapshot{Phase: tracker.PhasePolling, Duration: 60})
	assert.True(t, strings.HasPrefix(buf.String(), clearLine))
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))

	// Only the write right after a status line clears it.
	buf.Reset()
	c.Progress(tracker.Snapshot{Phase: tracker.PhasePolling, Duration: 60})
	assert.False(t, strings.HasPrefix(buf.String(), clearLine))
}

func TestRenderProgress(t *testing.T) {
	line := RenderProgress(tracker.Snapshot{
		Phase:            tracker.PhasePolling,
		MaxWatched:       90,
		Percent:          50,
		LastSavedPercent: 40,
		Duration:         180,
	})

	assert.Contains(t, line, "50.0%")
	assert.Contains(t, line, "1:30 / 3:00")
	assert.Contains(t, line, "saved 40%")
	assert.Contains(t, line, "polling")
}
