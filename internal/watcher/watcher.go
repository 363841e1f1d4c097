// Package watcher runs one playback session for an assignment: it mounts the
// player, waits for it, and tracks progress until the video completes or the
// session is cancelled.
package watcher

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/aliskhannn/academy-tube/internal/domain/entities"
	"github.com/aliskhannn/academy-tube/internal/player"
	"github.com/aliskhannn/academy-tube/internal/tracker"
)

// ErrNoVideo is returned for an assignment without a video.
var ErrNoVideo = errors.New("assignment has no video")

type AssignmentSource interface {
	GetAssignment(ctx context.Context, id string) (*entities.Assignment, error)
}

// Result describes how a session ended.
type Result struct {
	Assignment *entities.Assignment
	// FallbackURL is set when the video cannot be embedded; nothing was tracked.
	FallbackURL string
	Snapshot    tracker.Snapshot
}

// Watcher wires the player adapter to a tracker.
type Watcher struct {
	source    AssignmentSource
	store     tracker.Store
	page      *player.Page
	checker   player.EmbedChecker
	notifier  tracker.Notifier
	cfg       tracker.Config
	logger    *zap.Logger
	container string

	// OnStart, if set, is called once tracking begins.
	OnStart func(*player.Adapter, *tracker.Tracker)
	// TrackerOptions are passed to every tracker.
	TrackerOptions []tracker.Option
}

func New(
	source AssignmentSource,
	store tracker.Store,
	page *player.Page,
	checker player.EmbedChecker,
	notifier tracker.Notifier,
	cfg tracker.Config,
	logger *zap.Logger,
) *Watcher {
	return &Watcher{
		source:    source,
		store:     store,
		page:      page,
		checker:   checker,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
		container: "player",
	}
}

// Watch runs a session for the assignment. It returns once the video completes,
// the player fails, or ctx is done; store calls still in flight are awaited.
func (w *Watcher) Watch(ctx context.Context, assignmentID string) (*Result, error) {
	logger := w.logger.With(zap.String("assignment_id", assignmentID))

	// 1. Load the assignment with its video.
	a, err := w.source.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	if a.Video == nil || a.Video.VideoID == "" {
		return nil, ErrNoVideo
	}
	res := &Result{Assignment: a}

	// 2. Mount the player at the last confirmed position.
	adapter := player.NewAdapter(w.page, w.checker, logger)
	defer adapter.Close()

	if err := adapter.Initialize(ctx, w.container, a.Video.VideoID, a.LastPosition); err != nil {
		if errors.Is(err, player.ErrEmbedUnavailable) {
			return w.fallback(res, err), nil
		}
		return nil, fmt.Errorf("initialize player: %w", err)
	}

	// 3. Wait for the widget.
	select {
	case <-adapter.Ready():
	case <-adapter.Failed():
		return w.fallback(res, adapter.Err()), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// 4. Track until completion or cancellation.
	tr := tracker.New(a, adapter, w.store, w.notifier, w.cfg, logger, w.TrackerOptions...)
	tr.Start()
	if w.OnStart != nil {
		w.OnStart(adapter, tr)
	}

	runErr := tr.Run(ctx)
	res.Snapshot = tr.Snapshot()
	tr.Close()
	tr.Wait()

	logger.Info("session ended",
		zap.Stringer("phase", res.Snapshot.Phase),
		zap.Float64("max_watched", res.Snapshot.MaxWatched),
	)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return res, runErr
	}
	return res, nil
}

func (w *Watcher) fallback(res *Result, err error) *Result {
	res.FallbackURL = player.WatchURL(res.Assignment.Video.VideoID)
	w.logger.Warn("video cannot be embedded",
		zap.String("video_id", res.Assignment.Video.VideoID),
		zap.Error(err),
	)
	if w.notifier != nil {
		w.notifier.Notify(tracker.Notice{
			Kind:    tracker.NoticeEmbedUnavailable,
			Message: "This video cannot be played here. Watch it on YouTube: " + res.FallbackURL,
		})
	}
	return res
}
