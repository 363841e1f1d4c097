package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/aliskhannn/academy-tube/internal/domain/entities"
)

// CompactorConfig holds the compaction schedule and limits.
type CompactorConfig struct {
	Schedule      string  // cron spec, e.g. "@every 5m"
	MergeGap      float64 // seconds between segments that still merge
	MaxConcurrent int
	BatchSize     int
}

// SegmentCompactor periodically merges the raw segments of each assignment and
// refreshes its watched_seconds.
type SegmentCompactor struct {
	repo   AssignmentRepository
	tr     Transactor
	txRepo TxRepositoryFactory
	cfg    CompactorConfig
	logger *zap.Logger
}

func NewSegmentCompactor(
	repo AssignmentRepository,
	tr Transactor,
	cfg CompactorConfig,
	logger *zap.Logger,
) *SegmentCompactor {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &SegmentCompactor{
		repo:   repo,
		tr:     tr,
		txRepo: defaultTxRepository,
		cfg:    cfg,
		logger: logger,
	}
}

// Start runs the compaction job on its schedule until ctx is done.
func (c *SegmentCompactor) Start(ctx context.Context) error {
	sched := cron.New(cron.WithLocation(time.UTC))

	_, err := sched.AddFunc(c.cfg.Schedule, func() {
		compacted, err := c.RunOnce(ctx)
		if err != nil {
			c.logger.Error("failed to compact segments", zap.Error(err))
			return
		}
		if compacted > 0 {
			c.logger.Info("segments compacted", zap.Int("assignments", compacted))
		}
	})
	if err != nil {
		return fmt.Errorf("add compaction job: %w", err)
	}

	sched.Start()
	c.logger.Info("segment compactor started", zap.String("schedule", c.cfg.Schedule))

	<-ctx.Done()

	// Wait for a running job before returning.
	<-sched.Stop().Done()
	c.logger.Info("segment compactor stopped")
	return nil
}

// RunOnce compacts every assignment with pending segments and returns how many succeeded.
func (c *SegmentCompactor) RunOnce(ctx context.Context) (int, error) {
	total := 0

	for {
		ids, err := c.repo.PendingSegmentAssignments(ctx, c.cfg.BatchSize)
		if err != nil {
			return total, fmt.Errorf("pending segment assignments: %w", err)
		}
		if len(ids) == 0 {
			break
		}

		done := c.processBatch(ctx, ids)
		total += done

		// Stop on a short batch, or when nothing in the batch could be compacted.
		if len(ids) < c.cfg.BatchSize || done == 0 {
			break
		}
	}

	return total, nil
}

// processBatch compacts a batch of assignments concurrently.
func (c *SegmentCompactor) processBatch(ctx context.Context, ids []uuid.UUID) int {
	sem := make(chan struct{}, c.cfg.MaxConcurrent)
	var wg sync.WaitGroup
	var mu sync.Mutex
	done := 0

	for _, id := range ids {
		wg.Add(1)
		sem <- struct{}{}

		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			if err := c.compact(ctx, id); err != nil {
				c.logger.Error("failed to compact assignment segments",
					zap.String("assignment_id", id.String()),
					zap.Error(err))
				return
			}
			mu.Lock()
			done++
			mu.Unlock()
		}()
	}

	wg.Wait()
	return done
}

func (c *SegmentCompactor) compact(ctx context.Context, id uuid.UUID) error {
	return c.tr.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		repo := c.txRepo(tx)

		// 1. Lock and read every segment row, compacted or not.
		rows, err := repo.ListSegments(ctx, id)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		// 2. Merge and swap exactly the rows read. Rows appended meanwhile
		// stay pending for the next run.
		merged := entities.MergeSegments(entities.Ranges(rows), c.cfg.MergeGap)
		if err := repo.ReplaceSegments(ctx, id, entities.RowIDs(rows), merged); err != nil {
			return err
		}

		// 3. Refresh the total.
		return repo.SetWatchedSeconds(ctx, id, entities.TotalSeconds(merged))
	})
}
