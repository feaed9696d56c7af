package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"lettercast/internal/config"
	"lettercast/internal/logging"
	"lettercast/internal/services"
)

const stageName = "transforming"

// Asset is a normalized audio file ready for segmentation: mono, 16 kHz,
// low-bitrate MP3.
type Asset struct {
	Path     string
	Size     int64
	Duration time.Duration
}

// Segment is one contiguous slice of a normalized asset. Segments never split
// an MP3 frame; Offset is the playback position of the segment's first frame
// within the whole episode.
type Segment struct {
	Index    int
	Path     string
	Size     int64
	Duration time.Duration
	Offset   time.Duration
}

// runCommandFunc executes an external command and returns its combined
// output. Tests substitute this to avoid requiring ffmpeg on the host.
type runCommandFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Transformer normalizes downloaded audio and cuts it into
// model-submittable segments.
type Transformer struct {
	cfg    *config.Config
	logger *slog.Logger
	run    runCommandFunc
}

// Option customizes the transformer.
type Option func(*Transformer)

// WithRunner overrides the external command runner.
func WithRunner(run func(ctx context.Context, name string, args ...string) ([]byte, error)) Option {
	return func(t *Transformer) {
		if run != nil {
			t.run = run
		}
	}
}

// NewTransformer constructs a transformer using the supplied configuration.
func NewTransformer(cfg *config.Config, logger *slog.Logger, opts ...Option) *Transformer {
	t := &Transformer{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "transformer"),
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transform normalizes the input file into workDir and cuts the result into
// segments that respect the configured duration and size caps.
func (t *Transformer) Transform(ctx context.Context, inputPath, workDir string) (*Asset, []Segment, error) {
	asset, err := t.Normalize(ctx, inputPath, filepath.Join(workDir, "normalized.mp3"))
	if err != nil {
		return nil, nil, err
	}
	segments, err := t.Chunk(ctx, asset, workDir)
	if err != nil {
		return nil, nil, err
	}
	return asset, segments, nil
}

// Normalize transcodes the input to the canonical submission format: mono,
// 16 kHz, VBR MP3 at the smallest usable quality setting. Speech survives
// this fine and upload sizes drop by an order of magnitude.
func (t *Transformer) Normalize(ctx context.Context, inputPath, outputPath string) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, services.Wrap(services.ErrCancelled, stageName, "normalize", "run cancelled", err)
	}

	t.logger.Info("normalizing audio", logging.String("input", inputPath))
	start := time.Now()

	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-codec:a", "libmp3lame",
		"-q:a", "9",
		outputPath,
	}
	if output, err := t.run(ctx, t.cfg.FFmpegBinary(), args...); err != nil {
		if ctx.Err() != nil {
			return nil, services.Wrap(services.ErrCancelled, stageName, "normalize", "run cancelled", ctx.Err())
		}
		return nil, services.Wrap(services.ErrDecode, stageName, "normalize",
			fmt.Sprintf("ffmpeg: %s", strings.TrimSpace(string(output))), err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, services.Wrap(services.ErrDecode, stageName, "normalize", "ffmpeg produced no output", err)
	}
	if info.Size() == 0 {
		return nil, services.Wrap(services.ErrDecode, stageName, "normalize", "ffmpeg produced an empty file", nil)
	}

	duration, err := Measure(outputPath)
	if err != nil {
		return nil, err
	}

	t.logger.Info("normalization complete",
		logging.Int64("bytes", info.Size()),
		logging.Duration("audio_duration", duration),
		logging.Duration("elapsed", time.Since(start)),
	)
	return &Asset{Path: outputPath, Size: info.Size(), Duration: duration}, nil
}
