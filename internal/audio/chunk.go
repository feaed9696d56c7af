package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/tcolgate/mp3"

	"lettercast/internal/logging"
	"lettercast/internal/services"
)

// Chunk cuts a normalized asset into contiguous segments, each within the
// configured duration and size caps. Cuts land on frame boundaries: when the
// next frame would push the open segment past either cap, the segment is
// closed before that frame. Assets already within the caps yield one segment.
func (t *Transformer) Chunk(ctx context.Context, asset *Asset, destDir string) ([]Segment, error) {
	maxBytes := int64(t.cfg.Analysis.MaxSegmentMB) * 1024 * 1024
	maxDuration := time.Duration(t.cfg.Analysis.MaxSegmentMinutes) * time.Minute

	f, err := os.Open(asset.Path)
	if err != nil {
		return nil, services.Wrap(services.ErrDecode, stageName, "chunk", asset.Path, err)
	}
	defer f.Close()

	writer := newSegmentWriter(destDir)
	decoder := mp3.NewDecoder(f)
	var frame mp3.Frame
	var skipped int
	frames := 0

	for {
		if err := ctx.Err(); err != nil {
			writer.discard()
			return nil, services.Wrap(services.ErrCancelled, stageName, "chunk", "run cancelled", err)
		}

		err := decoder.Decode(&frame, &skipped)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if frames == 0 {
				writer.discard()
				return nil, services.Wrap(services.ErrDecode, stageName, "chunk", "no decodable MP3 frames", err)
			}
			break
		}

		data, err := io.ReadAll(frame.Reader())
		if err != nil {
			writer.discard()
			return nil, services.Wrap(services.ErrDecode, stageName, "chunk", "read frame payload", err)
		}

		if err := writer.append(data, frame.Duration(), maxBytes, maxDuration); err != nil {
			writer.discard()
			return nil, err
		}
		frames++
	}

	if frames == 0 {
		writer.discard()
		return nil, services.Wrap(services.ErrDecode, stageName, "chunk", "no decodable MP3 frames", nil)
	}

	segments, err := writer.finish()
	if err != nil {
		return nil, err
	}

	t.logger.Info("chunking complete",
		logging.Int("segments", len(segments)),
		logging.Duration("audio_duration", asset.Duration),
	)
	return segments, nil
}

// segmentWriter accumulates frames into numbered segment files.
type segmentWriter struct {
	destDir  string
	file     *os.File
	segments []Segment
	current  Segment
	offset   time.Duration
}

func newSegmentWriter(destDir string) *segmentWriter {
	return &segmentWriter{destDir: destDir}
}

func (w *segmentWriter) append(data []byte, frameDuration time.Duration, maxBytes int64, maxDuration time.Duration) error {
	if w.file != nil {
		over := w.current.Size+int64(len(data)) > maxBytes ||
			w.current.Duration+frameDuration > maxDuration
		if over {
			if err := w.closeCurrent(); err != nil {
				return err
			}
		}
	}
	if w.file == nil {
		if err := w.openNext(); err != nil {
			return err
		}
	}
	if _, err := w.file.Write(data); err != nil {
		return services.Wrap(services.ErrDecode, stageName, "chunk", "write segment", err)
	}
	w.current.Size += int64(len(data))
	w.current.Duration += frameDuration
	return nil
}

func (w *segmentWriter) openNext() error {
	index := len(w.segments)
	path := filepath.Join(w.destDir, fmt.Sprintf("segment-%03d.mp3", index))
	f, err := os.Create(path)
	if err != nil {
		return services.Wrap(services.ErrDecode, stageName, "chunk", "create segment file", err)
	}
	w.file = f
	w.current = Segment{Index: index, Path: path, Offset: w.offset}
	return nil
}

func (w *segmentWriter) closeCurrent() error {
	if w.file == nil {
		return nil
	}
	if err := w.file.Close(); err != nil {
		return services.Wrap(services.ErrDecode, stageName, "chunk", "close segment file", err)
	}
	w.file = nil
	w.offset += w.current.Duration
	w.segments = append(w.segments, w.current)
	return nil
}

func (w *segmentWriter) finish() ([]Segment, error) {
	if err := w.closeCurrent(); err != nil {
		return nil, err
	}
	return w.segments, nil
}

func (w *segmentWriter) discard() {
	if w.file != nil {
		w.file.Close()
		os.Remove(w.current.Path)
		w.file = nil
	}
	for _, seg := range w.segments {
		os.Remove(seg.Path)
	}
	w.segments = nil
}
