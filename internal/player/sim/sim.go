// Package sim provides a simulated embed player for headless sessions and tests.
package sim

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aliskhannn/academy-tube/internal/player"
)

// ErrDestroyed is returned by NewPlayer on a destroyed API.
var ErrDestroyed = errors.New("simulated player destroyed")

// Script loads an API after an optional delay, or fails with LoadErr.
type Script struct {
	API     *API
	Delay   time.Duration
	LoadErr error
}

func (s *Script) Load(ctx context.Context) (player.API, error) {
	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	if s.LoadErr != nil {
		return nil, s.LoadErr
	}
	return s.API, nil
}

// API constructs simulated widgets for videos of a known duration.
type API struct {
	// Durations maps video id to duration in seconds. Unknown videos get DefaultDuration.
	Durations       map[string]float64
	DefaultDuration float64
	// ErrorCodes makes NewPlayer report the widget error code for a video instead of ready.
	ErrorCodes map[string]int
	// Autoplay starts the widget playing as soon as it is ready.
	Autoplay bool
	// Now is the clock driving playback. Defaults to time.Now.
	Now func() time.Time

	mu      sync.Mutex
	widgets []*Widget
}

func (a *API) NewPlayer(container, videoID string, events player.Events) (player.Widget, error) {
	now := a.Now
	if now == nil {
		now = time.Now
	}

	duration, ok := a.Durations[videoID]
	if !ok {
		duration = a.DefaultDuration
	}

	w := &Widget{
		Container: container,
		VideoID:   videoID,
		duration:  duration,
		rate:      1,
		state:     player.StateUnstarted,
		now:       now,
	}

	a.mu.Lock()
	a.widgets = append(a.widgets, w)
	a.mu.Unlock()

	if code, failed := a.ErrorCodes[videoID]; failed {
		if events.OnError != nil {
			go events.OnError(code)
		}
		return w, nil
	}

	if a.Autoplay {
		w.Play()
	}
	if events.OnReady != nil {
		go events.OnReady()
	}

	return w, nil
}

// Widgets returns every widget constructed so far.
func (a *API) Widgets() []*Widget {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*Widget(nil), a.widgets...)
}

// Widget is a simulated player: while playing, position advances with the
// clock multiplied by the playback rate and stops at the end of the video.
type Widget struct {
	Container string
	VideoID   string

	mu        sync.Mutex
	now       func() time.Time
	duration  float64
	position  float64
	rate      float64
	state     player.State
	anchor    time.Time
	destroyed bool
	seeks     []float64
}

// Play starts or resumes playback.
func (w *Widget) Play() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed || w.state == player.StatePlaying {
		return
	}
	w.state = player.StatePlaying
	w.anchor = w.now()
}

// Pause freezes the position.
func (w *Widget) Pause() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.advanceLocked()
	if w.state == player.StatePlaying {
		w.state = player.StatePaused
	}
}

// SetDuration overrides the reported duration, including zero to mimic a bad read.
func (w *Widget) SetDuration(seconds float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.duration = seconds
}

func (w *Widget) CurrentTime() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.advanceLocked()
	return w.position
}

func (w *Widget) Duration() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.duration
}

func (w *Widget) State() player.State {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.advanceLocked()
	return w.state
}

func (w *Widget) PlaybackRate() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rate
}

func (w *Widget) SetPlaybackRate(rate float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if rate <= 0 {
		return
	}
	w.advanceLocked()
	w.rate = rate
}

func (w *Widget) SeekTo(seconds float64, _ bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.advanceLocked()
	w.position = min(max(seconds, 0), w.duration)
	w.seeks = append(w.seeks, seconds)
}

func (w *Widget) Destroy() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.destroyed = true
	w.state = player.StateUnstarted
}

// Destroyed reports whether Destroy was called.
func (w *Widget) Destroyed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.destroyed
}

// Seeks returns the positions passed to SeekTo.
func (w *Widget) Seeks() []float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]float64(nil), w.seeks...)
}

func (w *Widget) advanceLocked() {
	if w.state != player.StatePlaying || w.destroyed {
		return
	}
	now := w.now()
	w.position += now.Sub(w.anchor).Seconds() * w.rate
	w.anchor = now
	if w.duration > 0 && w.position >= w.duration {
		w.position = w.duration
		w.state = player.StateEnded
	}
}
