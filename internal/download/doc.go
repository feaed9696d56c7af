// Package download resolves episode sources to local audio files. It
// understands direct audio URLs, RSS feeds (newest enclosure wins), and
// pre-existing local files, and verifies every resolved payload is a
// recognizable audio container before handing it to the pipeline.
package download
