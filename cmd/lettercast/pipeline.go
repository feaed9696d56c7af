package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"lettercast/internal/analyzer"
	"lettercast/internal/audio"
	"lettercast/internal/config"
	"lettercast/internal/download"
	"lettercast/internal/logging"
	"lettercast/internal/newsletter"
	"lettercast/internal/notifications"
	"lettercast/internal/services"
	"lettercast/internal/services/gemini"
	"lettercast/internal/store"
	"lettercast/internal/workspace"
)

// runEpisode drives one episode through the pipeline and persists the
// outcome: the newsletter file, the run ledger entry, and (for feed runs)
// the episode dedup record.
func runEpisode(ctx context.Context, out io.Writer, cfg *config.Config, src download.Source, meta analyzer.Metadata, fromFeed bool) error {
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ws, err := workspace.Acquire(cfg.Paths.WorkDir)
	if err != nil {
		return err
	}
	defer ws.Release()

	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)

	if err := st.StartRun(ctx, runID, src.Location, meta.GUID, meta.Title); err != nil {
		return err
	}

	notifier := notifications.NewService(cfg)
	_ = notifier.NotifyRunStarted(ctx, meta.Title)
	started := time.Now()

	client := gemini.NewClient(gemini.Config{
		APIKey:         cfg.Gemini.APIKey,
		BaseURL:        cfg.Gemini.BaseURL,
		UploadBaseURL:  cfg.Gemini.UploadBaseURL,
		Model:          cfg.Gemini.Model,
		TimeoutSeconds: cfg.Gemini.TimeoutSeconds,
	},
		gemini.WithRetryMaxAttempts(cfg.Analysis.MaxPromptAttempts),
		gemini.WithRetryBackoff(
			time.Duration(cfg.Analysis.RetryBaseDelayMS)*time.Millisecond,
			time.Duration(cfg.Analysis.RetryMaxDelayMS)*time.Millisecond,
		),
	)

	a := analyzer.New(cfg, logger,
		download.NewDownloader(cfg, logger),
		audio.NewTransformer(cfg, logger),
		client,
	)

	result, runErr := a.Run(ctx, src, meta, ws.Dir)
	if runErr != nil {
		_ = st.FinishRun(ctx, store.RunUpdate{
			RunID:  runID,
			Status: store.RunStatusFailed,
			Error:  runErr.Error(),
		})
		_ = notifier.NotifyRunFailed(context.WithoutCancel(ctx), meta.Title, runErr)
		return runErr
	}

	now := time.Now()
	issue := newsletter.Assemble(result, now)
	path, err := newsletter.Write(issue, cfg.Paths.OutputDir, meta.Title, now)
	if err != nil {
		_ = st.FinishRun(ctx, store.RunUpdate{
			RunID:  runID,
			Status: store.RunStatusFailed,
			Error:  err.Error(),
		})
		return err
	}

	if err := st.FinishRun(ctx, store.RunUpdate{
		RunID:          runID,
		Status:         store.RunStatusDone,
		NewsletterPath: path,
		SegmentCount:   result.SegmentCount,
		AudioDuration:  result.AudioDuration,
		StageTimes:     stageTimes(result),
	}); err != nil {
		return err
	}

	if fromFeed && meta.GUID != "" {
		if err := st.MarkEpisodeAnalyzed(ctx, store.Episode{
			GUID:         meta.GUID,
			PodcastTitle: meta.PodcastTitle,
			Title:        meta.Title,
			Published:    meta.Published,
		}); err != nil {
			return err
		}
	}

	_ = notifier.NotifyRunCompleted(ctx, meta.Title, path, time.Since(started))

	fmt.Fprintf(out, "Newsletter written to %s\n", path)
	if len(result.MissingFields) > 0 {
		fmt.Fprintf(out, "Note: run completed without optional fields: %v\n", result.MissingFields)
	}
	return nil
}

func stageTimes(result *analyzer.Result) map[string]time.Time {
	times := make(map[string]time.Time, len(result.Stages))
	for _, event := range result.Stages {
		times[string(event.State)] = event.At
	}
	return times
}
