package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/aliskhannn/academy-tube/internal/domain/entities"
	"github.com/aliskhannn/academy-tube/internal/infra/postgres/repository"
)

// MaxSegmentsPerRequest bounds a single RecordSegments call.
const MaxSegmentsPerRequest = 500

// ErrInvalidSegments is returned for an empty, oversized or malformed segment batch.
var ErrInvalidSegments = errors.New("invalid segments")

// ProgressService owns every write a playback session makes.
type ProgressService struct {
	repo     AssignmentRepository
	tr       Transactor
	txRepo   TxRepositoryFactory
	notifier AdminNotifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewProgressService(
	repo AssignmentRepository,
	tr Transactor,
	notifier AdminNotifier,
	logger *zap.Logger,
) *ProgressService {
	return &ProgressService{
		repo:     repo,
		tr:       tr,
		txRepo:   defaultTxRepository,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

func defaultTxRepository(tx pgx.Tx) AssignmentTxRepository {
	return repository.NewAssignmentRepository(tx)
}

// GetAssignment returns the student's assignment with its video.
func (s *ProgressService) GetAssignment(ctx context.Context, studentID string, id uuid.UUID) (*entities.Assignment, error) {
	a, err := s.repo.GetForStudent(ctx, studentID, id)
	if err == nil || !errors.Is(err, repository.ErrMissingColumn) {
		return a, err
	}

	// Older schemas lack the position and timestamp columns; playback then
	// starts from the beginning.
	s.logger.Warn("assignment columns missing, reading reduced assignment",
		zap.String("assignment_id", id.String()),
		zap.Error(err),
	)
	return s.repo.GetForStudentReduced(ctx, studentID, id)
}

// SaveProgress validates and stores a progress update. Stored values only move
// forward, so late or reordered updates cannot lower them.
func (s *ProgressService) SaveProgress(ctx context.Context, studentID string, id uuid.UUID, u entities.ProgressUpdate) error {
	if err := u.Normalize(); err != nil {
		return err
	}
	if u.LastWatchedAt.IsZero() {
		u.LastWatchedAt = s.now().UTC()
	}

	err := s.repo.SaveProgress(ctx, studentID, id, u)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrMissingColumn) {
		return err
	}

	// Older schemas only carry percent and completion.
	s.logger.Warn("position columns missing, saving reduced progress",
		zap.String("assignment_id", id.String()),
		zap.Error(err),
	)
	return s.repo.SaveProgressReduced(ctx, studentID, id, u)
}

// RecordFirstWatch sets started_at if it is unset and appends an audit row for
// this session. first reports whether this call set started_at. On a schema
// without started_at only the audit row is written and first is false.
func (s *ProgressService) RecordFirstWatch(ctx context.Context, studentID string, id uuid.UUID) (startedAt time.Time, first bool, err error) {
	now := s.now().UTC()

	err = s.tr.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		repo := s.txRepo(tx)

		// 1. Conditional write: an existing started_at is never overwritten.
		startedAt, first, err = repo.MarkStarted(ctx, studentID, id, now)
		switch {
		case errors.Is(err, repository.ErrMissingColumn):
			// Without started_at only the audit row can be written.
			s.logger.Warn("started_at column missing, recording audit row only",
				zap.String("assignment_id", id.String()),
				zap.Error(err),
			)
			ok, err := repo.Exists(ctx, studentID, id)
			if err != nil {
				return err
			}
			if !ok {
				return repository.ErrAssignmentNotFound
			}
			startedAt, first = now, false
		case err != nil:
			return err
		}

		// 2. Audit row per session; skipped when the table is not deployed.
		ws := &entities.WatchStart{
			ID:           uuid.NewString(),
			AssignmentID: id.String(),
			StartedAt:    now,
		}
		if err := repo.AppendWatchStart(ctx, ws); err != nil {
			if !errors.Is(err, repository.ErrMissingTable) {
				return err
			}
			s.logger.Warn("watch_starts table missing, audit row skipped",
				zap.String("assignment_id", id.String()),
			)
		}

		return nil
	})
	if err != nil {
		if !errors.Is(err, repository.ErrAssignmentNotFound) {
			s.alert(ctx, fmt.Sprintf("Failed to record first watch for assignment %s: %v", id, err))
		}
		return time.Time{}, false, fmt.Errorf("record first watch: %w", err)
	}

	return startedAt, first, nil
}

// RecordSegments appends played ranges for an assignment the student owns.
func (s *ProgressService) RecordSegments(ctx context.Context, studentID string, id uuid.UUID, segments []entities.WatchSegment) error {
	if len(segments) == 0 || len(segments) > MaxSegmentsPerRequest {
		return fmt.Errorf("%w: expected 1..%d segments, got %d", ErrInvalidSegments, MaxSegmentsPerRequest, len(segments))
	}
	for i, seg := range segments {
		if !seg.Valid() {
			return fmt.Errorf("%w: segment %d [%v, %v]", ErrInvalidSegments, i, seg.StartSec, seg.EndSec)
		}
	}

	ok, err := s.repo.Exists(ctx, studentID, id)
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrAssignmentNotFound
	}

	return s.repo.AppendSegments(ctx, id, segments)
}

func (s *ProgressService) alert(ctx context.Context, text string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Alert(context.WithoutCancel(ctx), text); err != nil {
		s.logger.Error("failed to send admin alert", zap.Error(err))
	}
}
