package download_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lettercast/internal/download"
	"lettercast/internal/logging"
	"lettercast/internal/services"
	"lettercast/internal/testsupport"
)

const feedTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Deep Dive Weekly</title>
    <item>
      <title>Older Episode</title>
      <description>Last week's show.</description>
      <guid>ep-001</guid>
      <pubDate>Mon, 10 Aug 2026 08:00:00 GMT</pubDate>
      <enclosure url="%[1]s/older.mp3" type="audio/mpeg" length="100"/>
    </item>
    <item>
      <title>Newest Episode</title>
      <description>This week's show.</description>
      <guid>ep-002</guid>
      <pubDate>Mon, 17 Aug 2026 08:00:00 GMT</pubDate>
      <enclosure url="%[1]s/newest.mp3" type="audio/mpeg" length="100"/>
    </item>
    <item>
      <title>Transcript Only</title>
      <guid>ep-003</guid>
      <pubDate>Tue, 18 Aug 2026 08:00:00 GMT</pubDate>
      <enclosure url="%[1]s/notes.pdf" type="application/pdf" length="10"/>
    </item>
  </channel>
</rss>`

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, feedTemplate, server.URL)
	})
	mux.HandleFunc("/newest.mp3", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(testsupport.MP3Bytes(4))
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestEpisodesNewestFirst(t *testing.T) {
	server := newFeedServer(t)
	d := newTestDownloader(t)

	episodes, err := d.Episodes(context.Background(), server.URL+"/feed.xml")
	if err != nil {
		t.Fatalf("Episodes: %v", err)
	}
	if len(episodes) != 2 {
		t.Fatalf("expected 2 playable episodes, got %d", len(episodes))
	}
	if episodes[0].GUID != "ep-002" {
		t.Fatalf("newest episode GUID = %s, want ep-002", episodes[0].GUID)
	}
	if episodes[0].PodcastTitle != "Deep Dive Weekly" {
		t.Fatalf("podcast title = %q", episodes[0].PodcastTitle)
	}
	if episodes[0].Published.IsZero() {
		t.Fatal("expected parsed publish time")
	}
}

func TestLatestEpisodeSkipsNonAudioEnclosures(t *testing.T) {
	server := newFeedServer(t)
	d := newTestDownloader(t)

	episode, err := d.LatestEpisode(context.Background(), server.URL+"/feed.xml")
	if err != nil {
		t.Fatalf("LatestEpisode: %v", err)
	}
	if episode.Title != "Newest Episode" {
		t.Fatalf("title = %q, want Newest Episode", episode.Title)
	}
}

func TestResolveFeedURLFetchesNewestAudio(t *testing.T) {
	server := newFeedServer(t)
	d := newTestDownloader(t)

	asset, err := d.Resolve(context.Background(), download.Source{Location: server.URL + "/feed.xml", Kind: download.KindFeedURL}, t.TempDir())
	if err != nil {
		t.Fatalf("Resolve feed: %v", err)
	}
	if asset.MIMEType != "audio/mpeg" {
		t.Fatalf("mime = %q", asset.MIMEType)
	}
	if asset.Size == 0 {
		t.Fatal("expected non-empty asset")
	}
}

func TestEpisodesLogsResolutionProgress(t *testing.T) {
	server := newFeedServer(t)

	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}

	cfg := testsupport.NewConfig(t)
	d := download.NewDownloader(cfg, logger)
	if _, err := d.Episodes(context.Background(), server.URL+"/feed.xml"); err != nil {
		t.Fatalf("Episodes: %v", err)
	}

	logged := buf.String()
	for _, want := range []string{"fetching feed", "feed parsed", "Deep Dive Weekly"} {
		if !strings.Contains(logged, want) {
			t.Fatalf("log output missing %q:\n%s", want, logged)
		}
	}
}

func TestEpisodesRejectsFeedWithoutAudio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>Silent</title><item><title>No audio</title><guid>x</guid></item></channel></rss>`)
	}))
	defer server.Close()

	d := newTestDownloader(t)
	_, err := d.Episodes(context.Background(), server.URL)
	if !errors.Is(err, services.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestEpisodesRejectsMalformedFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not a feed")
	}))
	defer server.Close()

	d := newTestDownloader(t)
	_, err := d.Episodes(context.Background(), server.URL)
	if !errors.Is(err, services.ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
}
