package audio

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/tcolgate/mp3"

	"lettercast/internal/services"
)

// Measure returns the playback duration of an MP3 file by summing its frame
// durations. Frame headers carry everything needed; the audio payload is
// never decoded.
func Measure(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, services.Wrap(services.ErrDecode, stageName, "measure", path, err)
	}
	defer f.Close()

	decoder := mp3.NewDecoder(f)
	var frame mp3.Frame
	var skipped int
	var total time.Duration
	frames := 0

	for {
		err := decoder.Decode(&frame, &skipped)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if frames == 0 {
				return 0, services.Wrap(services.ErrDecode, stageName, "measure",
					"no decodable MP3 frames", err)
			}
			// Trailing garbage after the last frame is common in the wild.
			break
		}
		total += frame.Duration()
		frames++
	}

	if frames == 0 {
		return 0, services.Wrap(services.ErrDecode, stageName, "measure", "no decodable MP3 frames", nil)
	}
	return total, nil
}
