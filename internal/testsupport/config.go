package testsupport

import (
	"path/filepath"
	"testing"

	"lettercast/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Gemini.APIKey = "test"
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StorePath = filepath.Join(base, "lettercast.db")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAPIKey sets the model API key on the test config.
func WithAPIKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Gemini.APIKey = key
	}
}

// WithGeminiEndpoints points both API base URLs at a test server.
func WithGeminiEndpoints(baseURL, uploadURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Gemini.BaseURL = baseURL
		b.cfg.Gemini.UploadBaseURL = uploadURL
	}
}

// WithSegmentLimits overrides the chunking caps on the test config.
func WithSegmentLimits(minutes, megabytes int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Analysis.MaxSegmentMinutes = minutes
		b.cfg.Analysis.MaxSegmentMB = megabytes
	}
}

// WithDownloadLimit overrides the maximum download size on the test config.
func WithDownloadLimit(megabytes int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Download.MaxFileMB = megabytes
	}
}
