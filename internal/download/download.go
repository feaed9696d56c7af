package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"lettercast/internal/config"
	"lettercast/internal/logging"
	"lettercast/internal/services"
)

const stageName = "downloading"

// Kind describes how an episode source should be resolved.
type Kind int

const (
	// KindLocalFile points at audio already on disk.
	KindLocalFile Kind = iota
	// KindAudioURL points directly at a fetchable audio resource.
	KindAudioURL
	// KindFeedURL points at an RSS feed whose newest enclosure is wanted.
	KindFeedURL
)

func (k Kind) String() string {
	switch k {
	case KindLocalFile:
		return "local file"
	case KindAudioURL:
		return "audio url"
	case KindFeedURL:
		return "feed url"
	default:
		return "unknown"
	}
}

// Source is the immutable input to the pipeline: where the episode lives and
// how the caller declared it.
type Source struct {
	Location string
	Kind     Kind
}

// Asset is a local audio file produced by the downloader. Size is measured
// from disk, never taken from response headers.
type Asset struct {
	Path     string
	MIMEType string
	Size     int64
}

// Downloader resolves episode sources to local audio assets.
type Downloader struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpClient *http.Client
}

// Option customizes the downloader.
type Option func(*Downloader)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Downloader) {
		if client != nil {
			d.httpClient = client
		}
	}
}

// NewDownloader constructs a downloader using the supplied configuration.
func NewDownloader(cfg *config.Config, logger *slog.Logger, opts ...Option) *Downloader {
	timeout := 5 * time.Minute
	if cfg != nil && cfg.Download.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.Download.TimeoutSeconds) * time.Second
	}
	d := &Downloader{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "downloader"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Resolve turns an episode source into a local audio asset. Remote sources
// are streamed to a file under destDir; the caller owns its cleanup, which is
// normally handled by releasing the run workspace.
func (d *Downloader) Resolve(ctx context.Context, src Source, destDir string) (*Asset, error) {
	switch src.Kind {
	case KindLocalFile:
		return d.resolveLocal(src.Location)
	case KindAudioURL:
		return d.fetch(ctx, src.Location, destDir)
	case KindFeedURL:
		episode, err := d.LatestEpisode(ctx, src.Location)
		if err != nil {
			return nil, err
		}
		return d.fetch(ctx, episode.AudioURL, destDir)
	default:
		return nil, services.Wrap(services.ErrValidation, stageName, "resolve", fmt.Sprintf("unknown source kind %d", src.Kind), nil)
	}
}

func (d *Downloader) resolveLocal(location string) (*Asset, error) {
	info, err := os.Stat(location)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, stageName, "stat local file", location, err)
	}
	if info.Size() == 0 {
		return nil, services.Wrap(services.ErrInvalidResponse, stageName, "validate local file", "file is empty", nil)
	}
	mimeType, err := sniffAudio(location)
	if err != nil {
		return nil, err
	}
	return &Asset{Path: location, MIMEType: mimeType, Size: info.Size()}, nil
}

func (d *Downloader) fetch(ctx context.Context, rawURL, destDir string) (asset *Asset, err error) {
	parsed, parseErr := url.Parse(rawURL)
	if parseErr != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, services.Wrap(services.ErrValidation, stageName, "parse url", rawURL, parseErr)
	}

	d.logger.Info("downloading episode audio", logging.String("url", rawURL))
	start := time.Now()

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if reqErr != nil {
		return nil, services.Wrap(services.ErrValidation, stageName, "build request", rawURL, reqErr)
	}

	resp, doErr := d.httpClient.Do(req)
	if doErr != nil {
		return nil, services.Wrap(classifyTransport(doErr), stageName, "fetch audio", rawURL, doErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, services.Wrap(services.ErrInvalidResponse, stageName, "fetch audio",
			fmt.Sprintf("http %d from %s", resp.StatusCode, rawURL), nil)
	}

	maxBytes := int64(d.cfg.Download.MaxFileMB) * 1024 * 1024
	if length := resp.ContentLength; length > 0 && length > maxBytes {
		return nil, services.Wrap(services.ErrValidation, stageName, "fetch audio",
			fmt.Sprintf("declared size %d exceeds limit %d bytes", length, maxBytes), nil)
	}

	suffix := path.Ext(parsed.Path)
	if suffix == "" {
		suffix = ".mp3"
	}
	tmp, tmpErr := os.CreateTemp(destDir, "episode-*"+suffix)
	if tmpErr != nil {
		return nil, services.Wrap(services.ErrValidation, stageName, "create temp file", destDir, tmpErr)
	}
	defer func() {
		tmp.Close()
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	written, copyErr := io.Copy(tmp, io.LimitReader(resp.Body, maxBytes+1))
	if copyErr != nil {
		return nil, services.Wrap(classifyTransport(copyErr), stageName, "stream body", rawURL, copyErr)
	}
	if written == 0 {
		return nil, services.Wrap(services.ErrInvalidResponse, stageName, "stream body", "empty payload", nil)
	}
	if written > maxBytes {
		return nil, services.Wrap(services.ErrValidation, stageName, "stream body",
			fmt.Sprintf("payload exceeds limit %d bytes", maxBytes), nil)
	}
	if syncErr := tmp.Sync(); syncErr != nil {
		return nil, services.Wrap(services.ErrValidation, stageName, "flush temp file", tmp.Name(), syncErr)
	}

	mimeType, sniffErr := sniffAudio(tmp.Name())
	if sniffErr != nil {
		return nil, sniffErr
	}

	d.logger.Info("download complete",
		logging.Int64("bytes", written),
		logging.Duration("elapsed", time.Since(start)),
	)
	return &Asset{Path: tmp.Name(), MIMEType: mimeType, Size: written}, nil
}

func classifyTransport(err error) error {
	if errors.Is(err, context.Canceled) {
		return services.ErrCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.ErrTimeout
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return services.ErrTimeout
	}
	// Client.Timeout surfaces as a wrapped string in some paths.
	if strings.Contains(err.Error(), "Client.Timeout") {
		return services.ErrTimeout
	}
	return services.ErrNetwork
}
