package analyzer

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"lettercast/internal/audio"
	"lettercast/internal/logging"
	"lettercast/internal/services"
	"lettercast/internal/services/gemini"
)

// submitSegments uploads every segment, at most upload_concurrency at a time.
// Results keep segment order regardless of completion order. The first
// permanent failure cancels the remaining uploads and fails the stage.
func (a *Analyzer) submitSegments(ctx context.Context, segments []audio.Segment) ([]gemini.FileRef, error) {
	if len(segments) == 0 {
		return nil, services.Wrap(services.ErrDecode, string(StateSubmitting), "submit segments", "no segments to upload", nil)
	}

	concurrency := a.cfg.Analysis.UploadConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	uploadCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	refs := make([]gemini.FileRef, len(segments))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	record := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for i, seg := range segments {
		wg.Add(1)
		go func(i int, seg audio.Segment) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-uploadCtx.Done():
				record(checkCancelled(uploadCtx, StateSubmitting))
				return
			}

			ref, err := a.uploadWithRetry(uploadCtx, seg)
			if err != nil {
				record(err)
				cancel()
				return
			}
			refs[i] = *ref
		}(i, seg)
	}
	wg.Wait()

	if firstErr != nil {
		if ctx.Err() != nil {
			return nil, checkCancelled(ctx, StateSubmitting)
		}
		return nil, firstErr
	}
	return refs, nil
}

// uploadWithRetry wraps the single-attempt upload in exponential backoff.
// Only transient failures are retried; everything else aborts immediately.
func (a *Analyzer) uploadWithRetry(ctx context.Context, seg audio.Segment) (*gemini.FileRef, error) {
	maxAttempts := a.cfg.Analysis.MaxUploadAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Duration(a.cfg.Analysis.RetryBaseDelayMS) * time.Millisecond
	policy.MaxInterval = time.Duration(a.cfg.Analysis.RetryMaxDelayMS) * time.Millisecond
	policy.MaxElapsedTime = 0

	attempt := 0
	operation := func() (*gemini.FileRef, error) {
		attempt++
		ref, err := a.model.UploadFile(ctx, string(StateSubmitting), seg.Path, "audio/mpeg")
		if err != nil {
			if !services.IsTransient(err) {
				return nil, backoff.Permanent(err)
			}
			a.logger.Warn("segment upload failed, will retry",
				logging.Int(logging.FieldSegment, seg.Index),
				logging.Int("attempt", attempt),
				logging.Error(err),
			)
			return nil, err
		}
		return ref, nil
	}

	wrapped := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(maxAttempts-1)), ctx)
	ref, err := backoff.RetryWithData(operation, wrapped)
	if err != nil {
		return nil, err
	}

	a.logger.Info("segment uploaded",
		logging.Int(logging.FieldSegment, seg.Index),
		logging.Int64("bytes", seg.Size),
	)
	return ref, nil
}
