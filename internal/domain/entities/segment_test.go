package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeSegments(t *testing.T) {
	tests := []struct {
		name string
		in   []WatchSegment
		gap  float64
		want []WatchSegment
	}{
		{
			name: "empty",
			in:   nil,
			want: nil,
		},
		{
			name: "overlapping out of order",
			in:   []WatchSegment{{StartSec: 20, EndSec: 40}, {StartSec: 0, EndSec: 25}},
			want: []WatchSegment{{StartSec: 0, EndSec: 40}},
		},
		{
			name: "adjacent within gap",
			in:   []WatchSegment{{StartSec: 0, EndSec: 10}, {StartSec: 10.5, EndSec: 20}},
			gap:  1,
			want: []WatchSegment{{StartSec: 0, EndSec: 20}},
		},
		{
			name: "disjoint kept apart",
			in:   []WatchSegment{{StartSec: 0, EndSec: 10}, {StartSec: 30, EndSec: 40}},
			gap:  1,
			want: []WatchSegment{{StartSec: 0, EndSec: 10}, {StartSec: 30, EndSec: 40}},
		},
		{
			name: "contained segment",
			in:   []WatchSegment{{StartSec: 0, EndSec: 60}, {StartSec: 10, EndSec: 20}},
			want: []WatchSegment{{StartSec: 0, EndSec: 60}},
		},
		{
			name: "invalid dropped",
			in:   []WatchSegment{{StartSec: 5, EndSec: 5}, {StartSec: -1, EndSec: 3}, {StartSec: 1, EndSec: 2}},
			want: []WatchSegment{{StartSec: 1, EndSec: 2}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergeSegments(tt.in, tt.gap))
		})
	}
}

func TestTotalSeconds(t *testing.T) {
	segs := []WatchSegment{{StartSec: 0, EndSec: 10}, {StartSec: 30, EndSec: 45}}
	assert.Equal(t, 25.0, TotalSeconds(segs))
}

func TestProgressUpdateNormalize(t *testing.T) {
	u := ProgressUpdate{ProgressPercent: 96, IsCompleted: true, LastPosition: 96}
	assert.NoError(t, u.Normalize())
	assert.Equal(t, FullProgress, u.ProgressPercent)

	bad := ProgressUpdate{ProgressPercent: 120}
	assert.ErrorIs(t, bad.Normalize(), ErrProgressOutOfRange)

	neg := ProgressUpdate{ProgressPercent: 10, LastPosition: -1}
	assert.ErrorIs(t, neg.Normalize(), ErrProgressOutOfRange)
}
