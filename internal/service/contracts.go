package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aliskhannn/academy-tube/internal/domain/entities"
)

// AssignmentRepository covers the writes that run outside a transaction.
type AssignmentRepository interface {
	GetForStudent(ctx context.Context, studentID string, id uuid.UUID) (*entities.Assignment, error)
	GetForStudentReduced(ctx context.Context, studentID string, id uuid.UUID) (*entities.Assignment, error)
	Exists(ctx context.Context, studentID string, id uuid.UUID) (bool, error)
	SaveProgress(ctx context.Context, studentID string, id uuid.UUID, u entities.ProgressUpdate) error
	SaveProgressReduced(ctx context.Context, studentID string, id uuid.UUID, u entities.ProgressUpdate) error
	AppendSegments(ctx context.Context, id uuid.UUID, segments []entities.WatchSegment) error
	PendingSegmentAssignments(ctx context.Context, limit int) ([]uuid.UUID, error)
}

// AssignmentTxRepository covers the writes that run inside WithinTx.
type AssignmentTxRepository interface {
	Exists(ctx context.Context, studentID string, id uuid.UUID) (bool, error)
	MarkStarted(ctx context.Context, studentID string, id uuid.UUID, at time.Time) (time.Time, bool, error)
	AppendWatchStart(ctx context.Context, ws *entities.WatchStart) error
	ListSegments(ctx context.Context, id uuid.UUID) ([]entities.StoredSegment, error)
	ReplaceSegments(ctx context.Context, id uuid.UUID, replaced []uuid.UUID, segments []entities.WatchSegment) error
	SetWatchedSeconds(ctx context.Context, id uuid.UUID, seconds float64) error
}

// TxRepositoryFactory binds a transactional repository to tx.
type TxRepositoryFactory func(tx pgx.Tx) AssignmentTxRepository

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

// AdminNotifier delivers operational alerts to administrators.
type AdminNotifier interface {
	Alert(ctx context.Context, text string) error
}
