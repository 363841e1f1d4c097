package player

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Adapter owns one widget for one playback session. All accessors are safe to
// call at any time: before the widget is ready, after a failure, and after
// Close they return zero values instead of reaching the widget.
type Adapter struct {
	page    *Page
	checker EmbedChecker
	logger  *zap.Logger

	mu           sync.Mutex
	widget       Widget
	videoID      string
	start        float64
	initialized  bool
	ready        bool
	readyPending bool
	closed       bool
	err          error

	readyCh  chan struct{}
	failedCh chan struct{}
}

// NewAdapter creates an adapter bound to a page. The checker may be nil.
func NewAdapter(page *Page, checker EmbedChecker, logger *zap.Logger) *Adapter {
	return &Adapter{
		page:     page,
		checker:  checker,
		logger:   logger,
		readyCh:  make(chan struct{}),
		failedCh: make(chan struct{}),
	}
}

// Initialize loads the player API, constructs the widget in the container and
// seeks to startSeconds once the widget reports ready. Embed failures are
// terminal: they close Failed() and are returned wrapped in ErrEmbedUnavailable.
func (a *Adapter) Initialize(ctx context.Context, container, videoID string, startSeconds float64) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	if a.initialized {
		a.mu.Unlock()
		return ErrAlreadyInitialized
	}
	a.initialized = true
	a.videoID = videoID
	a.start = startSeconds
	a.mu.Unlock()

	// 1. Refuse videos that are known not to embed.
	if a.checker != nil {
		if err := a.checker.Check(ctx, videoID); err != nil {
			return a.fail(err)
		}
	}

	// 2. Load the shared script.
	api, err := a.page.API(ctx)
	if err != nil {
		return a.fail(fmt.Errorf("%w: %w", ErrEmbedUnavailable, err))
	}

	// 3. Construct the widget. Callbacks may fire before NewPlayer returns.
	w, err := api.NewPlayer(container, videoID, Events{
		OnReady: a.handleReady,
		OnError: a.handleError,
	})
	if err != nil {
		return a.fail(fmt.Errorf("%w: %w", ErrEmbedUnavailable, err))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || a.err != nil {
		w.Destroy()
		if a.err != nil {
			return a.err
		}
		return ErrClosed
	}

	a.widget = w
	if a.readyPending {
		a.markReadyLocked()
	}

	return nil
}

// Ready is closed once the widget can be queried.
func (a *Adapter) Ready() <-chan struct{} {
	return a.readyCh
}

// Failed is closed when the session hit a terminal embed error.
func (a *Adapter) Failed() <-chan struct{} {
	return a.failedCh
}

// Err returns the terminal embed error, if any.
func (a *Adapter) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// VideoID returns the video the adapter was initialized with.
func (a *Adapter) VideoID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.videoID
}

// IsReady reports whether the widget is live.
func (a *Adapter) IsReady() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready && !a.closed
}

func (a *Adapter) CurrentTime() float64 {
	w := a.live()
	if w == nil {
		return 0
	}
	return w.CurrentTime()
}

func (a *Adapter) Duration() float64 {
	w := a.live()
	if w == nil {
		return 0
	}
	return w.Duration()
}

func (a *Adapter) State() State {
	w := a.live()
	if w == nil {
		return StateUnstarted
	}
	return w.State()
}

func (a *Adapter) PlaybackRate() float64 {
	w := a.live()
	if w == nil {
		return 0
	}
	return w.PlaybackRate()
}

func (a *Adapter) SetPlaybackRate(rate float64) {
	if w := a.live(); w != nil {
		w.SetPlaybackRate(rate)
	}
}

func (a *Adapter) SeekTo(seconds float64, allowSeekAhead bool) {
	if w := a.live(); w != nil {
		w.SeekTo(seconds, allowSeekAhead)
	}
}

// Close destroys the widget and ignores any later callbacks. Safe to call repeatedly.
func (a *Adapter) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.ready = false
	w := a.widget
	a.widget = nil
	a.mu.Unlock()

	if w != nil {
		w.Destroy()
	}
}

func (a *Adapter) live() Widget {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.ready || a.closed {
		return nil
	}
	return a.widget
}

func (a *Adapter) handleReady() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || a.err != nil || a.ready {
		return
	}
	if a.widget == nil {
		a.readyPending = true
		return
	}
	a.markReadyLocked()
}

func (a *Adapter) markReadyLocked() {
	a.ready = true
	a.readyPending = false
	if a.start > 0 {
		a.widget.SeekTo(a.start, true)
	}
	close(a.readyCh)

	a.logger.Debug("player ready",
		zap.String("video_id", a.videoID),
		zap.Float64("start", a.start),
	)
}

func (a *Adapter) handleError(code int) {
	switch code {
	case ErrorCodeEmbedForbidden, ErrorCodeEmbedDisabled:
		_ = a.fail(fmt.Errorf("%w: widget error %d", ErrEmbedUnavailable, code))
	case ErrorCodeNotFound:
		_ = a.fail(fmt.Errorf("%w: %w", ErrEmbedUnavailable, ErrVideoNotFound))
	case ErrorCodeInvalidParam, ErrorCodeHTML5:
		_ = a.fail(fmt.Errorf("%w: widget error %d", ErrEmbedUnavailable, code))
	default:
		a.logger.Warn("unknown player error", zap.Int("code", code))
	}
}

// fail records the first terminal error, tears the widget down and closes Failed().
func (a *Adapter) fail(err error) error {
	a.mu.Lock()
	if a.err != nil || a.closed {
		existing := a.err
		a.mu.Unlock()
		if existing != nil {
			return existing
		}
		return err
	}
	a.err = err
	a.ready = false
	w := a.widget
	a.widget = nil
	close(a.failedCh)
	a.mu.Unlock()

	if w != nil {
		w.Destroy()
	}

	a.logger.Warn("player embed failed",
		zap.String("video_id", a.VideoID()),
		zap.Error(err),
	)

	return err
}
