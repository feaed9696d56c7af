package download

import (
	"io"
	"os"

	"github.com/dhowden/tag"
	"github.com/tcolgate/mp3"

	"lettercast/internal/services"
)

// sniffAudio confirms the file holds a recognizable audio container and
// returns its MIME type. Tagged containers are identified via their metadata
// header; untagged MP3 streams fall back to decoding a frame header.
func sniffAudio(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, stageName, "open for sniff", path, err)
	}
	defer f.Close()

	meta, tagErr := tag.ReadFrom(f)
	if tagErr == nil {
		if mime, ok := mimeForFileType(meta.FileType()); ok {
			return mime, nil
		}
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", services.Wrap(services.ErrValidation, stageName, "rewind for sniff", path, err)
	}
	if hasMP3Frame(f) {
		return "audio/mpeg", nil
	}

	return "", services.Wrap(services.ErrUnsupportedFormat, stageName, "sniff container",
		"payload is not a recognizable audio container", tagErr)
}

func mimeForFileType(ft tag.FileType) (string, bool) {
	switch ft {
	case tag.MP3:
		return "audio/mpeg", true
	case tag.M4A, tag.M4B, tag.M4P, tag.ALAC:
		return "audio/mp4", true
	case tag.FLAC:
		return "audio/flac", true
	case tag.OGG:
		return "audio/ogg", true
	default:
		return "", false
	}
}

func hasMP3Frame(r io.Reader) bool {
	decoder := mp3.NewDecoder(r)
	var frame mp3.Frame
	var skipped int
	if err := decoder.Decode(&frame, &skipped); err != nil {
		return false
	}
	return frame.Duration() > 0
}
