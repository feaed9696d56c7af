package audio_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lettercast/internal/audio"
	"lettercast/internal/services"
	"lettercast/internal/testsupport"
)

// copyRunner stands in for ffmpeg by copying the -i argument to the final
// argument, so tests control the "normalized" bytes exactly.
func copyRunner(t *testing.T) func(ctx context.Context, name string, args ...string) ([]byte, error) {
	t.Helper()
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		var input string
		for i, arg := range args {
			if arg == "-i" && i+1 < len(args) {
				input = args[i+1]
			}
		}
		output := args[len(args)-1]
		data, err := os.ReadFile(input)
		if err != nil {
			return nil, err
		}
		return nil, os.WriteFile(output, data, 0o644)
	}
}

func durationNear(got, want, tolerance time.Duration) bool {
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

func TestMeasure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.mp3")
	testsupport.WriteMP3(t, path, 100)

	got, err := audio.Measure(path)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	want := 100 * testsupport.MP3FrameDuration
	if !durationNear(got, want, 5*time.Millisecond) {
		t.Fatalf("duration = %v, want about %v", got, want)
	}
}

func TestMeasureRejectsNonAudio(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "junk.mp3")
	if err := os.WriteFile(path, []byte("definitely not mpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := audio.Measure(path); !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestTransformSingleSegmentWithinCaps(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "episode.mp3")
	testsupport.WriteMP3(t, input, 50)

	tr := audio.NewTransformer(cfg, nil, audio.WithRunner(copyRunner(t)))
	asset, segments, err := tr.Transform(context.Background(), input, dir)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	if segments[0].Size != asset.Size {
		t.Fatalf("segment size %d != asset size %d", segments[0].Size, asset.Size)
	}
	if segments[0].Offset != 0 {
		t.Fatalf("first segment offset = %v", segments[0].Offset)
	}
}

func TestChunkRespectsByteCap(t *testing.T) {
	const frames = 3000
	cfg := testsupport.NewConfig(t, testsupport.WithSegmentLimits(120, 1))
	dir := t.TempDir()
	path := filepath.Join(dir, "normalized.mp3")
	testsupport.WriteMP3(t, path, frames)

	duration, err := audio.Measure(path)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	asset := &audio.Asset{Path: path, Size: int64(frames * testsupport.MP3FrameSize), Duration: duration}

	tr := audio.NewTransformer(cfg, nil, audio.WithRunner(copyRunner(t)))
	segments, err := tr.Chunk(context.Background(), asset, dir)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(segments) < 2 {
		t.Fatalf("expected multiple segments under a 1 MB cap, got %d", len(segments))
	}

	maxBytes := int64(1024 * 1024)
	var totalSize int64
	var totalDuration time.Duration
	for i, seg := range segments {
		if seg.Size > maxBytes {
			t.Fatalf("segment %d size %d exceeds cap %d", i, seg.Size, maxBytes)
		}
		if seg.Size%testsupport.MP3FrameSize != 0 {
			t.Fatalf("segment %d size %d is not frame aligned", i, seg.Size)
		}
		if !durationNear(seg.Offset, totalDuration, time.Millisecond) {
			t.Fatalf("segment %d offset %v, want %v", i, seg.Offset, totalDuration)
		}
		info, err := os.Stat(seg.Path)
		if err != nil {
			t.Fatalf("stat segment %d: %v", i, err)
		}
		if info.Size() != seg.Size {
			t.Fatalf("segment %d on-disk size %d != recorded %d", i, info.Size(), seg.Size)
		}
		totalSize += seg.Size
		totalDuration += seg.Duration
	}
	if totalSize != asset.Size {
		t.Fatalf("segments cover %d bytes, asset is %d", totalSize, asset.Size)
	}
	if !durationNear(totalDuration, asset.Duration, time.Millisecond) {
		t.Fatalf("segments cover %v, asset is %v", totalDuration, asset.Duration)
	}
}

func TestChunkRespectsDurationCap(t *testing.T) {
	const frames = 5000 // a little over two minutes of synthetic audio
	cfg := testsupport.NewConfig(t, testsupport.WithSegmentLimits(1, 100))
	dir := t.TempDir()
	path := filepath.Join(dir, "normalized.mp3")
	testsupport.WriteMP3(t, path, frames)

	duration, err := audio.Measure(path)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	asset := &audio.Asset{Path: path, Size: int64(frames * testsupport.MP3FrameSize), Duration: duration}

	tr := audio.NewTransformer(cfg, nil, audio.WithRunner(copyRunner(t)))
	segments, err := tr.Chunk(context.Background(), asset, dir)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}

	want := int(duration/time.Minute) + 1
	if len(segments) != want {
		t.Fatalf("expected %d segments for %v at a 1 minute cap, got %d", want, duration, len(segments))
	}
	for i, seg := range segments {
		if seg.Duration > time.Minute {
			t.Fatalf("segment %d duration %v exceeds cap", i, seg.Duration)
		}
	}
}

func TestChunkRejectsNonAudio(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "junk.mp3")
	if err := os.WriteFile(path, []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	tr := audio.NewTransformer(cfg, nil)
	_, err := tr.Chunk(context.Background(), &audio.Asset{Path: path, Size: 4}, dir)
	if !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestChunkCancellation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "normalized.mp3")
	testsupport.WriteMP3(t, path, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := audio.NewTransformer(cfg, nil)
	_, err := tr.Chunk(ctx, &audio.Asset{Path: path}, dir)
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestNormalizeSurfacesDecodeFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "episode.mp3")
	testsupport.WriteMP3(t, input, 4)

	failing := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("corrupt stream"), fmt.Errorf("exit status 1")
	}
	tr := audio.NewTransformer(cfg, nil, audio.WithRunner(failing))
	_, err := tr.Normalize(context.Background(), input, filepath.Join(dir, "out.mp3"))
	if !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestNormalizePassesCanonicalArgs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "episode.mp3")
	testsupport.WriteMP3(t, input, 4)

	var captured []string
	runner := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		captured = args
		data, err := os.ReadFile(input)
		if err != nil {
			return nil, err
		}
		return nil, os.WriteFile(args[len(args)-1], data, 0o644)
	}

	tr := audio.NewTransformer(cfg, nil, audio.WithRunner(runner))
	if _, err := tr.Normalize(context.Background(), input, filepath.Join(dir, "out.mp3")); err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	joined := strings.Join(captured, " ")
	for _, want := range []string{"-ac 1", "-ar 16000", "-q:a 9", "libmp3lame"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("ffmpeg args missing %q: %s", want, joined)
		}
	}
}
