package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"lettercast/internal/config"
)

// Uses the internal db handle to plant a corrupt ledger row, which the
// public API never writes.
func TestListRunsSurfacesCorruptStageTimes(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(dir, "out")
	cfg.Paths.WorkDir = filepath.Join(dir, "work")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	cfg.Paths.StorePath = filepath.Join(dir, "test.db")

	s, err := Open(&cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	if err := s.StartRun(ctx, "run-corrupt", "file.mp3", "", "Broken Row"); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE runs SET stage_times_json = '{not json' WHERE run_id = ?`, "run-corrupt"); err != nil {
		t.Fatalf("corrupt row: %v", err)
	}

	_, err = s.ListRuns(ctx, 5)
	if err == nil {
		t.Fatal("expected error for corrupt stage times")
	}
	if !strings.Contains(err.Error(), "run-corrupt") {
		t.Fatalf("error does not name the run: %v", err)
	}
}
