// Package audio normalizes episode audio for model submission and cuts the
// result into frame-aligned segments. Normalization shells out to ffmpeg;
// measurement and chunking decode MP3 frame headers directly.
package audio
