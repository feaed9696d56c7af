package store

import (
	"context"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS episodes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    guid TEXT NOT NULL UNIQUE,
    podcast_title TEXT,
    title TEXT,
    published_at TEXT,
    analyzed_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL UNIQUE,
    episode_guid TEXT,
    episode_title TEXT,
    source TEXT NOT NULL,
    status TEXT NOT NULL,
    error TEXT,
    newsletter_path TEXT,
    segment_count INTEGER NOT NULL DEFAULT 0,
    audio_duration_ms INTEGER NOT NULL DEFAULT 0,
    stage_times_json TEXT,
    started_at TEXT NOT NULL,
    finished_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

func (s *Store) applySchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
