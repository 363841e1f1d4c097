package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aliskhannn/academy-tube/internal/domain/entities"
	"github.com/aliskhannn/academy-tube/internal/infra/postgres/repository"
)

const student = "student-1"

// fakeRepo keeps one student's assignments in memory and applies the same
// forward-only rules as the SQL.
type fakeRepo struct {
	mu sync.Mutex

	assignments map[uuid.UUID]*entities.Assignment
	segments    map[uuid.UUID][]fakeSegment
	watchStarts []entities.WatchStart

	missingColumn  bool
	missingStarted bool
	missingTable   bool
	markErr        error
	listErr        map[uuid.UUID]error

	// afterList runs once ListSegments has returned its rows, standing in for
	// a writer that commits while compaction is in progress.
	afterList func(id uuid.UUID)

	reducedWrites int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		assignments: map[uuid.UUID]*entities.Assignment{},
		segments:    map[uuid.UUID][]fakeSegment{},
		listErr:     map[uuid.UUID]error{},
	}
}

type fakeSegment struct {
	entities.StoredSegment
	compacted bool
}

func (r *fakeRepo) ranges(id uuid.UUID) []entities.WatchSegment {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entities.WatchSegment
	for _, s := range r.segments[id] {
		out = append(out, s.WatchSegment)
	}
	return out
}

func (r *fakeRepo) add(studentID string) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.New()
	r.assignments[id] = &entities.Assignment{ID: id.String(), StudentID: studentID}
	return id
}

func (r *fakeRepo) get(id uuid.UUID) entities.Assignment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.assignments[id]
}

func (r *fakeRepo) owned(studentID string, id uuid.UUID) (*entities.Assignment, bool) {
	a, ok := r.assignments[id]
	if !ok || a.StudentID != studentID {
		return nil, false
	}
	return a, true
}

func (r *fakeRepo) GetForStudent(_ context.Context, studentID string, id uuid.UUID) (*entities.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.missingColumn {
		return nil, repository.ErrMissingColumn
	}
	a, ok := r.owned(studentID, id)
	if !ok {
		return nil, repository.ErrAssignmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeRepo) GetForStudentReduced(_ context.Context, studentID string, id uuid.UUID) (*entities.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.owned(studentID, id)
	if !ok {
		return nil, repository.ErrAssignmentNotFound
	}
	return &entities.Assignment{
		ID:              a.ID,
		StudentID:       a.StudentID,
		IsCompleted:     a.IsCompleted,
		ProgressPercent: a.ProgressPercent,
		PreventSkip:     a.PreventSkip,
		Video:           a.Video,
	}, nil
}

func (r *fakeRepo) Exists(_ context.Context, studentID string, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.owned(studentID, id)
	return ok, nil
}

func (r *fakeRepo) SaveProgress(_ context.Context, studentID string, id uuid.UUID, u entities.ProgressUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.missingColumn {
		return repository.ErrMissingColumn
	}
	a, ok := r.owned(studentID, id)
	if !ok {
		return repository.ErrAssignmentNotFound
	}
	a.ProgressPercent = max(a.ProgressPercent, u.ProgressPercent)
	a.IsCompleted = a.IsCompleted || u.IsCompleted
	a.LastPosition = max(a.LastPosition, u.LastPosition)
	at := u.LastWatchedAt
	a.LastWatchedAt = &at
	return nil
}

func (r *fakeRepo) SaveProgressReduced(_ context.Context, studentID string, id uuid.UUID, u entities.ProgressUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.owned(studentID, id)
	if !ok {
		return repository.ErrAssignmentNotFound
	}
	r.reducedWrites++
	a.ProgressPercent = max(a.ProgressPercent, u.ProgressPercent)
	a.IsCompleted = a.IsCompleted || u.IsCompleted
	return nil
}

func (r *fakeRepo) AppendSegments(_ context.Context, id uuid.UUID, segments []entities.WatchSegment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, seg := range segments {
		r.segments[id] = append(r.segments[id], fakeSegment{
			StoredSegment: entities.StoredSegment{ID: uuid.New(), WatchSegment: seg},
		})
	}
	return nil
}

func (r *fakeRepo) PendingSegmentAssignments(_ context.Context, limit int) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uuid.UUID
	for id, rows := range r.segments {
		for _, s := range rows {
			if !s.compacted && len(ids) < limit {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids, nil
}

func (r *fakeRepo) MarkStarted(_ context.Context, studentID string, id uuid.UUID, at time.Time) (time.Time, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markErr != nil {
		return time.Time{}, false, r.markErr
	}
	if r.missingStarted {
		return time.Time{}, false, repository.ErrMissingColumn
	}
	a, ok := r.owned(studentID, id)
	if !ok {
		return time.Time{}, false, repository.ErrAssignmentNotFound
	}
	if a.StartedAt != nil {
		return *a.StartedAt, false, nil
	}
	a.StartedAt = &at
	return at, true, nil
}

func (r *fakeRepo) AppendWatchStart(_ context.Context, ws *entities.WatchStart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.missingTable {
		return repository.ErrMissingTable
	}
	r.watchStarts = append(r.watchStarts, *ws)
	return nil
}

func (r *fakeRepo) ListSegments(_ context.Context, id uuid.UUID) ([]entities.StoredSegment, error) {
	r.mu.Lock()
	if err := r.listErr[id]; err != nil {
		r.mu.Unlock()
		return nil, err
	}
	var rows []entities.StoredSegment
	for _, s := range r.segments[id] {
		rows = append(rows, s.StoredSegment)
	}
	hook := r.afterList
	r.afterList = nil
	r.mu.Unlock()

	if hook != nil {
		hook(id)
	}
	return rows, nil
}

func (r *fakeRepo) ReplaceSegments(_ context.Context, id uuid.UUID, replaced []uuid.UUID, segments []entities.WatchSegment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	gone := make(map[uuid.UUID]bool, len(replaced))
	for _, rid := range replaced {
		gone[rid] = true
	}
	var kept []fakeSegment
	for _, s := range r.segments[id] {
		if !gone[s.ID] {
			kept = append(kept, s)
		}
	}
	for _, seg := range segments {
		kept = append(kept, fakeSegment{
			StoredSegment: entities.StoredSegment{ID: uuid.New(), WatchSegment: seg},
			compacted:     true,
		})
	}
	r.segments[id] = kept
	return nil
}

func (r *fakeRepo) SetWatchedSeconds(_ context.Context, id uuid.UUID, seconds float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.assignments[id]; ok {
		a.WatchedSeconds = seconds
	}
	return nil
}

// fakeTransactor runs fn directly; the fake repository ignores tx.
type fakeTransactor struct{}

func (fakeTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []string
}

func (n *fakeNotifier) Alert(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, text)
	return nil
}

func newTestService(repo *fakeRepo, notifier *fakeNotifier) *ProgressService {
	s := NewProgressService(repo, fakeTransactor{}, notifier, zap.NewNop())
	s.txRepo = func(pgx.Tx) AssignmentTxRepository { return repo }
	return s
}

func TestSaveProgressIsMonotonic(t *testing.T) {
	repo := newFakeRepo()
	id := repo.add(student)
	s := newTestService(repo, &fakeNotifier{})
	ctx := context.Background()

	require.NoError(t, s.SaveProgress(ctx, student, id, entities.ProgressUpdate{ProgressPercent: 60, LastPosition: 60}))
	// A late, smaller update must not lower the stored values.
	require.NoError(t, s.SaveProgress(ctx, student, id, entities.ProgressUpdate{ProgressPercent: 40, LastPosition: 40}))

	a := repo.get(id)
	assert.Equal(t, 60.0, a.ProgressPercent)
	assert.Equal(t, 60.0, a.LastPosition)
	require.NotNil(t, a.LastWatchedAt)

	require.NoError(t, s.SaveProgress(ctx, student, id, entities.ProgressUpdate{ProgressPercent: 97, IsCompleted: true, LastPosition: 96}))
	require.NoError(t, s.SaveProgress(ctx, student, id, entities.ProgressUpdate{ProgressPercent: 80, LastPosition: 80}))

	a = repo.get(id)
	assert.True(t, a.IsCompleted)
	assert.Equal(t, entities.FullProgress, a.ProgressPercent)
	assert.Equal(t, 96.0, a.LastPosition)
}

func TestSaveProgressRejectsOutOfRange(t *testing.T) {
	repo := newFakeRepo()
	id := repo.add(student)
	s := newTestService(repo, &fakeNotifier{})

	tests := []entities.ProgressUpdate{
		{ProgressPercent: -1},
		{ProgressPercent: 101},
		{ProgressPercent: 10, LastPosition: -5},
	}
	for _, u := range tests {
		assert.ErrorIs(t, s.SaveProgress(context.Background(), student, id, u), entities.ErrProgressOutOfRange)
	}
}

func TestSaveProgressNotOwned(t *testing.T) {
	repo := newFakeRepo()
	id := repo.add("someone-else")
	s := newTestService(repo, &fakeNotifier{})

	err := s.SaveProgress(context.Background(), student, id, entities.ProgressUpdate{ProgressPercent: 10})
	assert.ErrorIs(t, err, repository.ErrAssignmentNotFound)
}

func TestSaveProgressFallsBackToReducedWrite(t *testing.T) {
	repo := newFakeRepo()
	repo.missingColumn = true
	id := repo.add(student)
	s := newTestService(repo, &fakeNotifier{})

	require.NoError(t, s.SaveProgress(context.Background(), student, id, entities.ProgressUpdate{ProgressPercent: 30, LastPosition: 30}))

	a := repo.get(id)
	assert.Equal(t, 1, repo.reducedWrites)
	assert.Equal(t, 30.0, a.ProgressPercent)
	assert.Zero(t, a.LastPosition)
}

func TestGetAssignmentFallsBackToReducedRead(t *testing.T) {
	repo := newFakeRepo()
	repo.missingColumn = true
	id := repo.add(student)
	s := newTestService(repo, &fakeNotifier{})

	a, err := s.GetAssignment(context.Background(), student, id)
	require.NoError(t, err)
	assert.Equal(t, id.String(), a.ID)
	assert.Zero(t, a.LastPosition)
	assert.Nil(t, a.StartedAt)

	_, err = s.GetAssignment(context.Background(), "someone-else", id)
	assert.ErrorIs(t, err, repository.ErrAssignmentNotFound)
}

func TestRecordFirstWatchSetsStartOnce(t *testing.T) {
	repo := newFakeRepo()
	id := repo.add(student)
	s := newTestService(repo, &fakeNotifier{})

	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return first }

	startedAt, isFirst, err := s.RecordFirstWatch(context.Background(), student, id)
	require.NoError(t, err)
	assert.True(t, isFirst)
	assert.Equal(t, first, startedAt)

	s.now = func() time.Time { return first.Add(time.Hour) }

	startedAt, isFirst, err = s.RecordFirstWatch(context.Background(), student, id)
	require.NoError(t, err)
	assert.False(t, isFirst)
	assert.Equal(t, first, startedAt)

	// One audit row per session, started_at untouched.
	assert.Len(t, repo.watchStarts, 2)
	assert.Equal(t, first, *repo.get(id).StartedAt)
}

func TestRecordFirstWatchWithoutAuditTable(t *testing.T) {
	repo := newFakeRepo()
	repo.missingTable = true
	id := repo.add(student)
	notifier := &fakeNotifier{}
	s := newTestService(repo, notifier)

	_, isFirst, err := s.RecordFirstWatch(context.Background(), student, id)
	require.NoError(t, err)
	assert.True(t, isFirst)
	assert.Empty(t, repo.watchStarts)
	assert.Empty(t, notifier.alerts)
}

func TestRecordFirstWatchWithoutStartedColumn(t *testing.T) {
	repo := newFakeRepo()
	repo.missingStarted = true
	id := repo.add(student)
	notifier := &fakeNotifier{}
	s := newTestService(repo, notifier)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	startedAt, isFirst, err := s.RecordFirstWatch(context.Background(), student, id)
	require.NoError(t, err)
	assert.False(t, isFirst)
	assert.Equal(t, now, startedAt)
	assert.Len(t, repo.watchStarts, 1)
	assert.Empty(t, notifier.alerts)

	_, _, err = s.RecordFirstWatch(context.Background(), "someone-else", id)
	assert.ErrorIs(t, err, repository.ErrAssignmentNotFound)
	assert.Len(t, repo.watchStarts, 1)
	assert.Empty(t, notifier.alerts)
}

func TestRecordFirstWatchFailureAlertsAdmin(t *testing.T) {
	repo := newFakeRepo()
	repo.markErr = errors.New("connection reset")
	id := repo.add(student)
	notifier := &fakeNotifier{}
	s := newTestService(repo, notifier)

	_, _, err := s.RecordFirstWatch(context.Background(), student, id)
	require.Error(t, err)
	require.Len(t, notifier.alerts, 1)
	assert.Contains(t, notifier.alerts[0], id.String())
}

func TestRecordFirstWatchNotFoundDoesNotAlert(t *testing.T) {
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	s := newTestService(repo, notifier)

	_, _, err := s.RecordFirstWatch(context.Background(), student, uuid.New())
	assert.ErrorIs(t, err, repository.ErrAssignmentNotFound)
	assert.Empty(t, notifier.alerts)
}

func TestRecordSegmentsValidation(t *testing.T) {
	repo := newFakeRepo()
	id := repo.add(student)
	s := newTestService(repo, &fakeNotifier{})
	ctx := context.Background()

	tooMany := make([]entities.WatchSegment, MaxSegmentsPerRequest+1)
	for i := range tooMany {
		tooMany[i] = entities.WatchSegment{StartSec: float64(i), EndSec: float64(i) + 1}
	}

	tests := []struct {
		name     string
		segments []entities.WatchSegment
	}{
		{"empty", nil},
		{"too many", tooMany},
		{"reversed", []entities.WatchSegment{{StartSec: 10, EndSec: 5}}},
		{"negative", []entities.WatchSegment{{StartSec: -1, EndSec: 5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, s.RecordSegments(ctx, student, id, tt.segments), ErrInvalidSegments)
		})
	}

	err := s.RecordSegments(ctx, "someone-else", id, []entities.WatchSegment{{StartSec: 0, EndSec: 5}})
	assert.ErrorIs(t, err, repository.ErrAssignmentNotFound)

	require.NoError(t, s.RecordSegments(ctx, student, id, []entities.WatchSegment{{StartSec: 10, EndSec: 90}}))
	assert.Equal(t, []entities.WatchSegment{{StartSec: 10, EndSec: 90}}, repo.ranges(id))
}
