package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aliskhannn/academy-tube/internal/domain/entities"
	"github.com/aliskhannn/academy-tube/internal/infra/postgres"
)

var (
	ErrAssignmentNotFound = errors.New("assignment not found")

	// ErrMissingColumn means the deployed schema lacks an optional column.
	ErrMissingColumn = errors.New("column missing from schema")

	// ErrMissingTable means the deployed schema lacks an optional table.
	ErrMissingTable = errors.New("table missing from schema")
)

// PostgreSQL error codes the repository translates.
const (
	codeUndefinedColumn = "42703"
	codeUndefinedTable  = "42P01"
)

type AssignmentRepository struct {
	db postgres.DBTX
}

func NewAssignmentRepository(db postgres.DBTX) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// GetForStudent returns the assignment if it belongs to the student.
// Returns ErrAssignmentNotFound otherwise.
func (r *AssignmentRepository) GetForStudent(ctx context.Context, studentID string, id uuid.UUID) (*entities.Assignment, error) {
	query := `
		SELECT a.id, a.student_id, a.is_completed, a.progress_percent, a.last_position,
		       a.prevent_skip, a.watched_seconds, a.last_watched_at, a.started_at,
		       v.video_id, v.title
		FROM assignments a
		LEFT JOIN videos v ON v.id = a.video_ref
		WHERE a.id = $1 AND a.student_id = $2
	`

	var (
		a       entities.Assignment
		aID     uuid.UUID
		videoID *string
		title   *string
	)
	err := r.db.QueryRow(ctx, query, id, studentID).Scan(
		&aID,
		&a.StudentID,
		&a.IsCompleted,
		&a.ProgressPercent,
		&a.LastPosition,
		&a.PreventSkip,
		&a.WatchedSeconds,
		&a.LastWatchedAt,
		&a.StartedAt,
		&videoID,
		&title,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("get assignment: %w", translate(err))
	}

	a.ID = aID.String()
	a.Video = video(videoID, title)

	return &a, nil
}

// GetForStudentReduced reads only the columns every schema carries. Position,
// watch time and timestamps are left at their zero values.
func (r *AssignmentRepository) GetForStudentReduced(ctx context.Context, studentID string, id uuid.UUID) (*entities.Assignment, error) {
	query := `
		SELECT a.id, a.student_id, a.is_completed, a.progress_percent, a.prevent_skip,
		       v.video_id, v.title
		FROM assignments a
		LEFT JOIN videos v ON v.id = a.video_ref
		WHERE a.id = $1 AND a.student_id = $2
	`

	var (
		a       entities.Assignment
		aID     uuid.UUID
		videoID *string
		title   *string
	)
	err := r.db.QueryRow(ctx, query, id, studentID).Scan(
		&aID,
		&a.StudentID,
		&a.IsCompleted,
		&a.ProgressPercent,
		&a.PreventSkip,
		&videoID,
		&title,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("get assignment reduced: %w", translate(err))
	}

	a.ID = aID.String()
	a.Video = video(videoID, title)

	return &a, nil
}

func video(videoID, title *string) *entities.Video {
	if videoID == nil {
		return nil
	}
	v := &entities.Video{VideoID: *videoID}
	if title != nil {
		v.Title = *title
	}
	return v
}

// Exists reports whether the assignment belongs to the student.
func (r *AssignmentRepository) Exists(ctx context.Context, studentID string, id uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM assignments WHERE id = $1 AND student_id = $2)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, id, studentID).Scan(&exists); err != nil {
		return false, fmt.Errorf("assignment exists: %w", err)
	}

	return exists, nil
}

// SaveProgress writes a progress update. The stored percent and position never
// decrease and completion is never unset, whatever order writes arrive in.
func (r *AssignmentRepository) SaveProgress(ctx context.Context, studentID string, id uuid.UUID, u entities.ProgressUpdate) error {
	query := `
		UPDATE assignments
		SET progress_percent = GREATEST(progress_percent, $3),
		    is_completed = is_completed OR $4,
		    last_position = GREATEST(last_position, $5),
		    last_watched_at = $6
		WHERE id = $1 AND student_id = $2
	`

	tag, err := r.db.Exec(ctx, query, id, studentID, u.ProgressPercent, u.IsCompleted, u.LastPosition, u.LastWatchedAt)
	if err != nil {
		return fmt.Errorf("save progress: %w", translate(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrAssignmentNotFound
	}

	return nil
}

// SaveProgressReduced writes only percent and completion, for schemas without
// the position columns.
func (r *AssignmentRepository) SaveProgressReduced(ctx context.Context, studentID string, id uuid.UUID, u entities.ProgressUpdate) error {
	query := `
		UPDATE assignments
		SET progress_percent = GREATEST(progress_percent, $3),
		    is_completed = is_completed OR $4
		WHERE id = $1 AND student_id = $2
	`

	tag, err := r.db.Exec(ctx, query, id, studentID, u.ProgressPercent, u.IsCompleted)
	if err != nil {
		return fmt.Errorf("save progress reduced: %w", translate(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrAssignmentNotFound
	}

	return nil
}

// MarkStarted sets started_at only if it is still null and returns the stored value.
// first is true when this call set it. It must run inside a transaction: a
// schema without started_at fails with ErrMissingColumn and leaves the
// transaction usable.
func (r *AssignmentRepository) MarkStarted(ctx context.Context, studentID string, id uuid.UUID, at time.Time) (startedAt time.Time, first bool, err error) {
	query := `
		UPDATE assignments
		SET started_at = COALESCE(started_at, $3)
		WHERE id = $1 AND student_id = $2
		RETURNING started_at
	`

	// Match the microsecond precision of timestamptz so the comparison below holds.
	at = at.UTC().Truncate(time.Microsecond)

	err = r.savepoint(ctx, "mark_started", func() error {
		return r.db.QueryRow(ctx, query, id, studentID, at).Scan(&startedAt)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, ErrAssignmentNotFound
		}
		return time.Time{}, false, fmt.Errorf("mark started: %w", translate(err))
	}

	return startedAt, startedAt.Equal(at), nil
}

// AppendWatchStart adds one audit row. It must run inside a transaction: a
// failed insert leaves the transaction usable.
func (r *AssignmentRepository) AppendWatchStart(ctx context.Context, ws *entities.WatchStart) error {
	query := `
		INSERT INTO watch_starts (id, assignment_id, started_at)
		VALUES ($1, $2, $3)
	`

	err := r.savepoint(ctx, "watch_start", func() error {
		_, err := r.db.Exec(ctx, query, ws.ID, ws.AssignmentID, ws.StartedAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("append watch start: %w", translate(err))
	}

	return nil
}

// AppendSegments stores raw played ranges for later compaction.
func (r *AssignmentRepository) AppendSegments(ctx context.Context, id uuid.UUID, segments []entities.WatchSegment) error {
	return r.insertSegments(ctx, id, segments, false)
}

// PendingSegmentAssignments lists assignments that have segments not yet compacted.
func (r *AssignmentRepository) PendingSegmentAssignments(ctx context.Context, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT assignment_id
		FROM watch_segments
		WHERE compacted = false
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("pending segment assignments: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0, limit)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending assignment: %w", err)
		}
		ids = append(ids, id)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending assignments: %w", err)
	}

	return ids, nil
}

// ListSegments returns every segment row of an assignment and locks them.
// Rows inserted after this call are not locked and are not returned.
func (r *AssignmentRepository) ListSegments(ctx context.Context, id uuid.UUID) ([]entities.StoredSegment, error) {
	query := `
		SELECT id, start_sec, end_sec
		FROM watch_segments
		WHERE assignment_id = $1
		ORDER BY start_sec
		FOR UPDATE
	`

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var segments []entities.StoredSegment
	for rows.Next() {
		var s entities.StoredSegment
		if err := rows.Scan(&s.ID, &s.StartSec, &s.EndSec); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		segments = append(segments, s)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segments: %w", err)
	}

	return segments, nil
}

// ReplaceSegments deletes the listed rows and stores the compacted set in
// their place. Rows of the assignment not in replaced are kept for the next run.
func (r *AssignmentRepository) ReplaceSegments(ctx context.Context, id uuid.UUID, replaced []uuid.UUID, segments []entities.WatchSegment) error {
	query := `
		DELETE FROM watch_segments
		WHERE assignment_id = $1 AND id = ANY($2)
	`

	if _, err := r.db.Exec(ctx, query, id, replaced); err != nil {
		return fmt.Errorf("delete segments: %w", err)
	}
	return r.insertSegments(ctx, id, segments, true)
}

// SetWatchedSeconds stores the total of the compacted segments.
func (r *AssignmentRepository) SetWatchedSeconds(ctx context.Context, id uuid.UUID, seconds float64) error {
	_, err := r.db.Exec(ctx, `UPDATE assignments SET watched_seconds = $2 WHERE id = $1`, id, seconds)
	if err != nil {
		return fmt.Errorf("set watched seconds: %w", translate(err))
	}
	return nil
}

func (r *AssignmentRepository) insertSegments(ctx context.Context, id uuid.UUID, segments []entities.WatchSegment, compacted bool) error {
	if len(segments) == 0 {
		return nil
	}

	query := `
		INSERT INTO watch_segments (id, assignment_id, start_sec, end_sec, compacted)
		VALUES ($1, $2, $3, $4, $5)
	`

	batch := &pgx.Batch{}
	for _, s := range segments {
		batch.Queue(query, uuid.New(), id, s.StartSec, s.EndSec, compacted)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for range segments {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert segment: %w", translate(err))
		}
	}

	return nil
}

// savepoint runs fn under a savepoint and rolls back to it when fn fails.
func (r *AssignmentRepository) savepoint(ctx context.Context, name string, fn func() error) error {
	if _, err := r.db.Exec(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("savepoint %s: %w", name, err)
	}

	if err := fn(); err != nil {
		if _, rbErr := r.db.Exec(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("rollback to %s: %w", name, rbErr)
		}
		return err
	}

	if _, err := r.db.Exec(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release %s: %w", name, err)
	}
	return nil
}

// translate maps schema errors onto sentinels and keeps everything else as is.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case codeUndefinedColumn:
		return fmt.Errorf("%w: %s", ErrMissingColumn, pgErr.Message)
	case codeUndefinedTable:
		return fmt.Errorf("%w: %s", ErrMissingTable, pgErr.Message)
	default:
		return err
	}
}
