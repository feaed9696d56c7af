package download

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"lettercast/internal/logging"
	"lettercast/internal/services"
)

// Episode is the metadata carried from a feed item into the analysis run.
type Episode struct {
	PodcastTitle string
	Title        string
	Description  string
	GUID         string
	Published    time.Time
	AudioURL     string
}

// Episodes parses the feed and returns its playable items, newest first.
// Items without an audio enclosure are skipped.
func (d *Downloader) Episodes(ctx context.Context, feedURL string) ([]Episode, error) {
	d.logger.Info("fetching feed", logging.String("url", feedURL))

	parser := gofeed.NewParser()
	parser.Client = d.httpClient

	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return nil, services.Wrap(classifyTransport(err), stageName, "fetch feed", feedURL, err)
		}
		return nil, services.Wrap(services.ErrInvalidResponse, stageName, "parse feed", feedURL, err)
	}

	episodes := make([]Episode, 0, len(feed.Items))
	for _, item := range feed.Items {
		audioURL := audioEnclosure(item)
		if audioURL == "" {
			continue
		}
		episodes = append(episodes, Episode{
			PodcastTitle: feed.Title,
			Title:        strings.TrimSpace(item.Title),
			Description:  strings.TrimSpace(item.Description),
			GUID:         episodeGUID(item, audioURL),
			Published:    publishedAt(item),
			AudioURL:     audioURL,
		})
	}
	if len(episodes) == 0 {
		return nil, services.Wrap(services.ErrUnsupportedFormat, stageName, "parse feed",
			"feed has no items with audio enclosures", nil)
	}

	sort.SliceStable(episodes, func(i, j int) bool {
		return episodes[i].Published.After(episodes[j].Published)
	})
	d.logger.Info("feed parsed",
		logging.String("podcast", feed.Title),
		logging.Int("episodes", len(episodes)),
	)
	return episodes, nil
}

// LatestEpisode returns the newest playable item in the feed.
func (d *Downloader) LatestEpisode(ctx context.Context, feedURL string) (*Episode, error) {
	episodes, err := d.Episodes(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	return &episodes[0], nil
}

func audioEnclosure(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if strings.HasPrefix(enc.Type, "audio/") {
			return enc.URL
		}
	}
	// Some feeds omit the enclosure type; fall back to an extension check.
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		lower := strings.ToLower(enc.URL)
		for _, ext := range []string{".mp3", ".m4a", ".ogg", ".flac"} {
			if strings.Contains(lower, ext) {
				return enc.URL
			}
		}
	}
	return ""
}

func episodeGUID(item *gofeed.Item, audioURL string) string {
	if item.GUID != "" {
		return item.GUID
	}
	if item.Link != "" {
		return item.Link
	}
	return audioURL
}

func publishedAt(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}
