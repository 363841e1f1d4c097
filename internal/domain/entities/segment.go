package entities

import (
	"sort"

	"github.com/google/uuid"
)

// WatchSegment is a played range of a video, in seconds.
type WatchSegment struct {
	StartSec float64 `json:"start_sec"`
	EndSec   float64 `json:"end_sec"`
}

// StoredSegment is a persisted segment row.
type StoredSegment struct {
	ID uuid.UUID
	WatchSegment
}

// Ranges strips the row ids.
func Ranges(rows []StoredSegment) []WatchSegment {
	out := make([]WatchSegment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.WatchSegment)
	}
	return out
}

// RowIDs returns the ids of rows.
func RowIDs(rows []StoredSegment) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids
}

// Length returns the segment duration in seconds.
func (s WatchSegment) Length() float64 {
	if s.EndSec <= s.StartSec {
		return 0
	}
	return s.EndSec - s.StartSec
}

// Valid reports whether the segment describes a non-empty forward range.
func (s WatchSegment) Valid() bool {
	return s.StartSec >= 0 && s.EndSec > s.StartSec
}

// MergeSegments merges overlapping segments and segments separated by at most gap seconds.
// The result is sorted by start and contains no overlaps.
func MergeSegments(segments []WatchSegment, gap float64) []WatchSegment {
	if len(segments) == 0 {
		return nil
	}

	sorted := make([]WatchSegment, 0, len(segments))
	for _, s := range segments {
		if s.Valid() {
			sorted = append(sorted, s)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].StartSec == sorted[j].StartSec {
			return sorted[i].EndSec < sorted[j].EndSec
		}
		return sorted[i].StartSec < sorted[j].StartSec
	})

	var merged []WatchSegment
	for _, s := range sorted {
		if n := len(merged); n > 0 && s.StartSec <= merged[n-1].EndSec+gap {
			merged[n-1].EndSec = max(merged[n-1].EndSec, s.EndSec)
			continue
		}
		merged = append(merged, s)
	}

	return merged
}

// TotalSeconds sums the lengths of the given segments.
func TotalSeconds(segments []WatchSegment) float64 {
	var total float64
	for _, s := range segments {
		total += s.Length()
	}
	return total
}
