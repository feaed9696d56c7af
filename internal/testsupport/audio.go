package testsupport

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// MP3FrameSize is the byte length of one synthetic frame produced by
// MP3Bytes (MPEG-1 Layer III, 128 kbps, 44.1 kHz, no padding).
const MP3FrameSize = 417

// MP3FrameDuration is the playback duration of one synthetic frame
// (1152 samples at 44.1 kHz).
const MP3FrameDuration = 1152 * time.Second / 44100

// MP3Bytes returns a valid MP3 stream made of the requested number of
// identical constant-bitrate frames. The audio payload is silence-shaped
// filler; decoders only need the frame headers to be coherent.
func MP3Bytes(frames int) []byte {
	frame := make([]byte, MP3FrameSize)
	frame[0] = 0xFF
	frame[1] = 0xFB
	frame[2] = 0x90
	frame[3] = 0x00

	out := make([]byte, 0, frames*MP3FrameSize)
	for i := 0; i < frames; i++ {
		out = append(out, frame...)
	}
	return out
}

// WriteMP3 writes a synthetic MP3 stream with the given frame count to path.
func WriteMP3(t testing.TB, path string, frames int) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, MP3Bytes(frames), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
