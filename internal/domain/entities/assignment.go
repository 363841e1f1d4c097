package entities

import (
	"errors"
	"time"
)

// ErrProgressOutOfRange is returned for percentages outside [0, 100] or negative positions.
var ErrProgressOutOfRange = errors.New("progress out of range")

// FullProgress is the percentage stored for a completed assignment.
const FullProgress = 100.0

// Video is the YouTube video an assignment points to.
type Video struct {
	VideoID string `json:"video_id"` // YouTube video id
	Title   string `json:"title"`
}

// Assignment links one student to one video and carries the viewing progress.
type Assignment struct {
	ID              string     `json:"id"`
	StudentID       string     `json:"-"`
	IsCompleted     bool       `json:"is_completed"`
	ProgressPercent float64    `json:"progress_percent"` // 0..100
	LastPosition    float64    `json:"last_position"`    // highest confirmed position, seconds
	PreventSkip     bool       `json:"prevent_skip"`
	WatchedSeconds  float64    `json:"watched_seconds"` // sum of compacted segments
	LastWatchedAt   *time.Time `json:"last_watched_at,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"` // set once, never overwritten
	Video           *Video     `json:"video"`
}

// ProgressUpdate is a single progress write for an assignment.
type ProgressUpdate struct {
	ProgressPercent float64   `json:"progress_percent"`
	IsCompleted     bool      `json:"is_completed"`
	LastPosition    float64   `json:"last_position"`
	LastWatchedAt   time.Time `json:"last_watched_at"`
}

// Normalize validates the ranges and forces full progress on completed updates.
func (u *ProgressUpdate) Normalize() error {
	if u.ProgressPercent < 0 || u.ProgressPercent > FullProgress || u.LastPosition < 0 {
		return ErrProgressOutOfRange
	}
	if u.IsCompleted {
		u.ProgressPercent = FullProgress
	}
	return nil
}

// WatchStart is one audit row written every time a session first produces progress.
type WatchStart struct {
	ID           string    `json:"id"`
	AssignmentID string    `json:"assignment_id"`
	StartedAt    time.Time `json:"started_at"`
}
