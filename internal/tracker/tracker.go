// Package tracker samples an embedded player, blocks forward skips and pushes
// assignment progress to the store.
package tracker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aliskhannn/academy-tube/internal/domain/entities"
	"github.com/aliskhannn/academy-tube/internal/player"
)

// Player is the part of the player adapter the tracker samples.
type Player interface {
	CurrentTime() float64
	Duration() float64
	State() player.State
	SeekTo(seconds float64, allowSeekAhead bool)
}

// Store persists progress for an assignment.
type Store interface {
	SaveProgress(ctx context.Context, assignmentID string, update entities.ProgressUpdate) error
	RecordFirstWatch(ctx context.Context, assignmentID string) error
	RecordSegments(ctx context.Context, assignmentID string, segments []entities.WatchSegment) error
}

// Phase is the lifecycle of one playback session.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhasePolling
	PhaseCompleted
	PhaseTornDown
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhasePolling:
		return "polling"
	case PhaseCompleted:
		return "completed"
	case PhaseTornDown:
		return "torn_down"
	default:
		return "unknown"
	}
}

// Config holds the sampling parameters.
type Config struct {
	PollInterval        time.Duration
	SaveInterval        time.Duration
	SkipTolerance       float64 // seconds
	CompletionThreshold float64 // fraction of the duration
}

// DefaultConfig returns the parameters used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		PollInterval:        500 * time.Millisecond,
		SaveInterval:        5 * time.Second,
		SkipTolerance:       2,
		CompletionThreshold: 0.95,
	}
}

// Snapshot is a read-only view of the session used for display.
type Snapshot struct {
	Phase            Phase
	MaxWatched       float64
	Percent          float64 // last computed, 0..100
	LastSavedPercent float64
	Duration         float64
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces the wall clock used for save throttling.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// Tracker is one playback session for one assignment.
type Tracker struct {
	assignmentID string
	preventSkip  bool

	player   Player
	store    Store
	notifier Notifier
	cfg      Config
	guard    SkipGuard
	logger   *zap.Logger
	now      func() time.Time

	mu               sync.Mutex
	phase            Phase
	maxWatched       float64
	lastSavedPercent float64
	lastSaveAt       time.Time
	duration         float64
	percent          float64
	firstWatchSent   bool
	recorder         *SegmentRecorder

	inflight sync.WaitGroup
}

// New creates a tracker seeded from the persisted assignment state.
func New(
	assignment *entities.Assignment,
	p Player,
	store Store,
	notifier Notifier,
	cfg Config,
	logger *zap.Logger,
	opts ...Option,
) *Tracker {
	t := &Tracker{
		assignmentID:     assignment.ID,
		preventSkip:      assignment.PreventSkip,
		player:           p,
		store:            store,
		notifier:         notifier,
		cfg:              cfg,
		guard:            SkipGuard{Tolerance: cfg.SkipTolerance},
		logger:           logger.With(zap.String("assignment_id", assignment.ID)),
		now:              time.Now,
		phase:            PhaseUninitialized,
		maxWatched:       assignment.LastPosition,
		lastSavedPercent: assignment.ProgressPercent,
		recorder:         NewSegmentRecorder(cfg.SkipTolerance),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start moves the session into polling. Call it once the player is ready.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.phase == PhaseUninitialized {
		t.phase = PhasePolling
	}
}

// Run starts the session and samples the player until ctx is done or the
// session stops polling.
func (t *Tracker) Run(ctx context.Context) error {
	t.Start()

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.Tick(ctx)
			if t.Phase() != PhasePolling {
				return nil
			}
		}
	}
}

// Tick takes one sample of the player.
func (t *Tracker) Tick(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.phase != PhasePolling {
		return
	}

	// 1. Ignore paused and buffering ticks: seeking while paused is not a skip.
	if t.player.State() != player.StatePlaying {
		t.recorder.Break()
		return
	}

	// 2. Read the position, keeping the last good duration across bad reads.
	current := t.player.CurrentTime()
	duration := t.player.Duration()
	if duration > 0 {
		t.duration = duration
	} else {
		duration = t.duration
	}

	// 3. Refuse forward skips when the assignment requires it.
	if t.preventSkip && !t.guard.Allow(current, t.maxWatched) {
		t.player.SeekTo(t.maxWatched, true)
		t.logger.Info("skip blocked",
			zap.Float64("position", current),
			zap.Float64("max_watched", t.maxWatched),
		)
		t.notify(Notice{
			Kind:      NoticeSkipBlocked,
			Message:   "Skipping ahead is not allowed for this video.",
			Position:  t.maxWatched,
			Transient: true,
		})
		return
	}
	if !t.preventSkip {
		t.recorder.Observe(current)
	}

	if current > t.maxWatched {
		t.maxWatched = current
	}

	var fraction float64
	if duration > 0 {
		fraction = current / duration
		t.percent = min(current*100/duration, entities.FullProgress)
	} else {
		t.percent = 0
	}

	// 4. The first nonzero position of the session opens a watch start.
	if current > 0 && !t.firstWatchSent {
		t.firstWatchSent = true
		t.recordFirstWatch(ctx)
	}

	// 5. Completion is saved once and ends incremental saving.
	if fraction >= t.cfg.CompletionThreshold {
		t.complete(ctx)
		return
	}

	// 6. Throttled save, only when progress moved forward.
	now := t.now()
	if now.Sub(t.lastSaveAt) < t.cfg.SaveInterval || t.percent <= t.lastSavedPercent {
		return
	}
	t.lastSaveAt = now
	t.lastSavedPercent = t.percent
	t.save(ctx, entities.ProgressUpdate{
		ProgressPercent: t.percent,
		IsCompleted:     false,
		LastPosition:    t.maxWatched,
		LastWatchedAt:   now,
	})
	t.flushSegments(ctx)
}

// Close tears the session down. Calls already dispatched keep running.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.phase == PhaseTornDown {
		return
	}
	t.phase = PhaseTornDown
	t.recorder.Break()
	t.flushSegments(context.Background())
}

// Wait blocks until every dispatched store call has returned.
func (t *Tracker) Wait() {
	t.inflight.Wait()
}

// Phase returns the current lifecycle phase.
func (t *Tracker) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

// Snapshot returns the current session view.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		Phase:            t.phase,
		MaxWatched:       t.maxWatched,
		Percent:          t.percent,
		LastSavedPercent: t.lastSavedPercent,
		Duration:         t.duration,
	}
}

func (t *Tracker) complete(ctx context.Context) {
	now := t.now()
	t.phase = PhaseCompleted
	t.percent = entities.FullProgress
	t.lastSavedPercent = entities.FullProgress
	t.lastSaveAt = now

	t.save(ctx, entities.ProgressUpdate{
		ProgressPercent: entities.FullProgress,
		IsCompleted:     true,
		LastPosition:    t.maxWatched,
		LastWatchedAt:   now,
	})
	t.recorder.Break()
	t.flushSegments(ctx)

	t.logger.Info("assignment completed", zap.Float64("position", t.maxWatched))
	t.notify(Notice{
		Kind:     NoticeCompleted,
		Message:  "Video completed.",
		Position: t.maxWatched,
	})
}

func (t *Tracker) save(ctx context.Context, update entities.ProgressUpdate) {
	t.dispatch(ctx, "save progress", func(ctx context.Context) error {
		return t.store.SaveProgress(ctx, t.assignmentID, update)
	}, nil)
}

func (t *Tracker) recordFirstWatch(ctx context.Context) {
	t.dispatch(ctx, "record first watch", func(ctx context.Context) error {
		return t.store.RecordFirstWatch(ctx, t.assignmentID)
	}, func(err error) {
		t.notify(Notice{
			Kind:      NoticeFirstWatchFailed,
			Message:   "Could not record the start of this video. Playback continues.",
			Transient: true,
		})
	})
}

func (t *Tracker) flushSegments(ctx context.Context) {
	if t.preventSkip {
		return
	}
	segments := t.recorder.Flush()
	if len(segments) == 0 {
		return
	}
	t.dispatch(ctx, "record segments", func(ctx context.Context) error {
		return t.store.RecordSegments(ctx, t.assignmentID, segments)
	}, nil)
}

// dispatch runs a store call in the background. The call is detached from the
// caller's cancellation and its failure is only logged.
func (t *Tracker) dispatch(ctx context.Context, op string, fn func(context.Context) error, onErr func(error)) {
	callCtx := context.WithoutCancel(ctx)

	t.inflight.Add(1)
	go func() {
		defer t.inflight.Done()

		if err := fn(callCtx); err != nil {
			t.logger.Warn(op+" failed", zap.Error(err))
			if onErr != nil {
				onErr(err)
			}
		}
	}()
}

func (t *Tracker) notify(n Notice) {
	if t.notifier != nil {
		t.notifier.Notify(n)
	}
}
