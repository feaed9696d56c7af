package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"lettercast/internal/config"
)

// Run statuses persisted in the ledger.
const (
	RunStatusRunning = "running"
	RunStatusDone    = "done"
	RunStatusFailed  = "failed"
)

// Store manages episode and run persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Episode is a feed item the pipeline has analyzed, keyed by its GUID.
type Episode struct {
	GUID         string
	PodcastTitle string
	Title        string
	Published    time.Time
	AnalyzedAt   time.Time
}

// Run is one ledger entry for a pipeline execution.
type Run struct {
	ID             int64
	RunID          string
	EpisodeGUID    string
	EpisodeTitle   string
	Source         string
	Status         string
	Error          string
	NewsletterPath string
	SegmentCount   int
	AudioDuration  time.Duration
	StageTimes     map[string]time.Time
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Open initializes or connects to the database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.Paths.StorePath
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applySchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SeenEpisode reports whether an episode with this GUID was already analyzed.
func (s *Store) SeenEpisode(ctx context.Context, guid string) (bool, error) {
	if guid == "" {
		return false, nil
	}
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM episodes WHERE guid = ?`, guid).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("query episode: %w", err)
	}
	return count > 0, nil
}

// MarkEpisodeAnalyzed records a successfully analyzed episode. Re-marking an
// existing GUID refreshes its metadata and timestamp.
func (s *Store) MarkEpisodeAnalyzed(ctx context.Context, episode Episode) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	published := ""
	if !episode.Published.IsZero() {
		published = episode.Published.UTC().Format(time.RFC3339Nano)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO episodes (guid, podcast_title, title, published_at, analyzed_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(guid) DO UPDATE SET
           podcast_title = excluded.podcast_title,
           title = excluded.title,
           published_at = excluded.published_at,
           analyzed_at = excluded.analyzed_at`,
		episode.GUID, episode.PodcastTitle, episode.Title, published, now,
	)
	if err != nil {
		return fmt.Errorf("mark episode: %w", err)
	}
	return nil
}

// StartRun inserts a running ledger entry for the given run ID.
func (s *Store) StartRun(ctx context.Context, runID, source, episodeGUID, episodeTitle string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, episode_guid, episode_title, source, status, started_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		runID, episodeGUID, episodeTitle, source, RunStatusRunning, now,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RunUpdate carries the terminal state of a run into the ledger.
type RunUpdate struct {
	RunID          string
	Status         string
	Error          string
	NewsletterPath string
	SegmentCount   int
	AudioDuration  time.Duration
	StageTimes     map[string]time.Time
}

// FinishRun marks a run done or failed and records its outcome.
func (s *Store) FinishRun(ctx context.Context, update RunUpdate) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var stageJSON []byte
	if len(update.StageTimes) > 0 {
		encoded, err := json.Marshal(update.StageTimes)
		if err != nil {
			return fmt.Errorf("marshal stage times: %w", err)
		}
		stageJSON = encoded
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET
           status = ?,
           error = ?,
           newsletter_path = ?,
           segment_count = ?,
           audio_duration_ms = ?,
           stage_times_json = ?,
           finished_at = ?
         WHERE run_id = ?`,
		update.Status,
		update.Error,
		update.NewsletterPath,
		update.SegmentCount,
		update.AudioDuration.Milliseconds(),
		nullableBytes(stageJSON),
		now,
		update.RunID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("finish run: unknown run id %q", update.RunID)
	}
	return nil
}

// ListRuns returns the most recent ledger entries, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, episode_guid, episode_title, source, status,
                COALESCE(error, ''), COALESCE(newsletter_path, ''),
                segment_count, audio_duration_ms,
                COALESCE(stage_times_json, ''), started_at, COALESCE(finished_at, '')
         FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var audioMS int64
		var stageJSON, startedAt, finishedAt string
		if err := rows.Scan(
			&run.ID, &run.RunID, &run.EpisodeGUID, &run.EpisodeTitle, &run.Source, &run.Status,
			&run.Error, &run.NewsletterPath, &run.SegmentCount, &audioMS,
			&stageJSON, &startedAt, &finishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.AudioDuration = time.Duration(audioMS) * time.Millisecond
		run.StartedAt = parseTimestamp(startedAt)
		run.FinishedAt = parseTimestamp(finishedAt)
		if stageJSON != "" {
			if err := json.Unmarshal([]byte(stageJSON), &run.StageTimes); err != nil {
				return nil, fmt.Errorf("parse stage times for run %s: %w", run.RunID, err)
			}
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func parseTimestamp(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
