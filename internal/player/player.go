// Package player wraps the embeddable YouTube player behind a small adapter
// that tolerates being queried before the player is ready or after teardown.
package player

import (
	"context"
	"errors"
	"net/url"
)

// State mirrors the state codes reported by the embed widget.
type State int

const (
	StateUnstarted State = -1
	StateEnded     State = 0
	StatePlaying   State = 1
	StatePaused    State = 2
	StateBuffering State = 3
	StateCued      State = 5
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateEnded:
		return "ended"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateBuffering:
		return "buffering"
	case StateCued:
		return "cued"
	default:
		return "unknown"
	}
}

// Widget error codes reported through Events.OnError.
const (
	ErrorCodeInvalidParam   = 2
	ErrorCodeHTML5          = 5
	ErrorCodeNotFound       = 100
	ErrorCodeEmbedForbidden = 101
	ErrorCodeEmbedDisabled  = 150
)

var (
	// ErrEmbedUnavailable marks a terminal failure: the video cannot be played inline.
	ErrEmbedUnavailable = errors.New("video cannot be embedded")

	// ErrVideoNotFound is returned when the video does not exist or is private.
	ErrVideoNotFound = errors.New("video not found")

	// ErrAlreadyInitialized is returned by a second Initialize on the same adapter.
	ErrAlreadyInitialized = errors.New("player already initialized")

	// ErrClosed is returned by Initialize after Close.
	ErrClosed = errors.New("player closed")
)

// Widget is a constructed third-party player instance bound to a container.
type Widget interface {
	CurrentTime() float64
	Duration() float64
	State() State
	PlaybackRate() float64
	SetPlaybackRate(rate float64)
	SeekTo(seconds float64, allowSeekAhead bool)
	Destroy()
}

// Events are the widget callbacks. They may be invoked from any goroutine,
// including synchronously from API.NewPlayer.
type Events struct {
	OnReady func()
	OnError func(code int)
}

// API is the loaded player script, able to construct widgets.
type API interface {
	NewPlayer(container, videoID string, events Events) (Widget, error)
}

// Script loads the player API asset.
type Script interface {
	Load(ctx context.Context) (API, error)
}

// EmbedChecker reports whether a video may be embedded.
type EmbedChecker interface {
	Check(ctx context.Context, videoID string) error
}

// WatchURL returns the external link used when the video cannot be embedded.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
}
