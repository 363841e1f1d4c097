package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aliskhannn/academy-tube/internal/domain/entities"
)

func TestSkipGuardAllow(t *testing.T) {
	g := SkipGuard{Tolerance: 2}

	assert.True(t, g.Allow(31, 30))
	assert.True(t, g.Allow(32, 30))
	assert.True(t, g.Allow(5, 30))
	assert.False(t, g.Allow(32.5, 30))
	assert.False(t, g.Allow(40, 30))
}

func TestSegmentRecorder(t *testing.T) {
	r := NewSegmentRecorder(2)

	r.Observe(0)
	r.Observe(0.5)
	r.Observe(1)
	// Rewind beyond tolerance starts a new segment.
	r.Observe(20)
	r.Observe(20.5)
	r.Observe(5)
	r.Observe(6)
	r.Break()

	assert.Equal(t, []entities.WatchSegment{
		{StartSec: 0, EndSec: 20.5},
		{StartSec: 5, EndSec: 6},
	}, r.Flush())
	assert.Empty(t, r.Flush())
}

func TestSegmentRecorderFlushKeepsContinuity(t *testing.T) {
	r := NewSegmentRecorder(2)

	r.Observe(10)
	r.Observe(12)
	assert.Equal(t, []entities.WatchSegment{{StartSec: 10, EndSec: 12}}, r.Flush())

	r.Observe(14)
	r.Break()
	assert.Equal(t, []entities.WatchSegment{{StartSec: 12, EndSec: 14}}, r.Flush())
}
