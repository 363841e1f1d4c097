package postgres

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS videos (
		id UUID PRIMARY KEY,
		video_id VARCHAR(32) NOT NULL UNIQUE,
		title TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS assignments (
		id UUID PRIMARY KEY,
		student_id TEXT NOT NULL,
		video_ref UUID REFERENCES videos(id),
		is_completed BOOLEAN NOT NULL DEFAULT FALSE,
		progress_percent DOUBLE PRECISION NOT NULL DEFAULT 0
			CHECK (progress_percent >= 0 AND progress_percent <= 100),
		last_position DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (last_position >= 0),
		prevent_skip BOOLEAN NOT NULL DEFAULT FALSE,
		watched_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
		last_watched_at TIMESTAMPTZ,
		started_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (NOT is_completed OR progress_percent = 100)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_assignments_student ON assignments (student_id)`,
	`CREATE TABLE IF NOT EXISTS watch_starts (
		id UUID PRIMARY KEY,
		assignment_id UUID NOT NULL REFERENCES assignments(id) ON DELETE CASCADE,
		started_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS watch_segments (
		id UUID PRIMARY KEY,
		assignment_id UUID NOT NULL REFERENCES assignments(id) ON DELETE CASCADE,
		start_sec DOUBLE PRECISION NOT NULL CHECK (start_sec >= 0),
		end_sec DOUBLE PRECISION NOT NULL CHECK (end_sec > start_sec),
		compacted BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_watch_segments_pending
		ON watch_segments (assignment_id) WHERE compacted = FALSE`,
}

// InitSchema creates the tables the service needs if they do not exist yet.
func InitSchema(ctx context.Context, db DBTX) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
