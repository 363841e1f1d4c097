package tracker

import "github.com/aliskhannn/academy-tube/internal/domain/entities"

// SegmentRecorder turns playback samples into watched segments. Forward samples
// extend the open segment, a backward jump beyond tolerance starts a new one.
type SegmentRecorder struct {
	tolerance float64

	open   *entities.WatchSegment
	last   float64
	closed []entities.WatchSegment
}

func NewSegmentRecorder(tolerance float64) *SegmentRecorder {
	return &SegmentRecorder{tolerance: tolerance}
}

// Observe records a sampled position while the video is playing.
func (r *SegmentRecorder) Observe(pos float64) {
	if r.open == nil {
		r.open = &entities.WatchSegment{StartSec: pos, EndSec: pos}
		r.last = pos
		return
	}

	if pos < r.last-r.tolerance {
		r.Break()
		r.open = &entities.WatchSegment{StartSec: pos, EndSec: pos}
	} else if pos > r.open.EndSec {
		r.open.EndSec = pos
	}
	r.last = pos
}

// Break closes the open segment, e.g. when playback pauses.
func (r *SegmentRecorder) Break() {
	if r.open == nil {
		return
	}
	if r.open.Valid() {
		r.closed = append(r.closed, *r.open)
	}
	r.open = nil
}

// Flush returns every segment recorded since the last flush. The open segment
// is cut at its current end and keeps growing from there.
func (r *SegmentRecorder) Flush() []entities.WatchSegment {
	if r.open != nil && r.open.Valid() {
		r.closed = append(r.closed, *r.open)
		r.open = &entities.WatchSegment{StartSec: r.open.EndSec, EndSec: r.open.EndSec}
	}
	out := r.closed
	r.closed = nil
	return out
}
