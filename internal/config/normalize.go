package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeGemini()
	c.normalizeDownload()
	c.normalizeAnalysis()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.StorePath, err = expandPath(c.Paths.StorePath); err != nil {
		return fmt.Errorf("paths.store_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeGemini() {
	if c.Gemini.APIKey == "" {
		if value, ok := os.LookupEnv("GEMINI_API_KEY"); ok {
			c.Gemini.APIKey = value
		}
	}
	c.Gemini.APIKey = strings.TrimSpace(c.Gemini.APIKey)
	c.Gemini.BaseURL = strings.TrimSpace(c.Gemini.BaseURL)
	if c.Gemini.BaseURL == "" {
		c.Gemini.BaseURL = defaultGeminiBaseURL
	}
	c.Gemini.UploadBaseURL = strings.TrimSpace(c.Gemini.UploadBaseURL)
	if c.Gemini.UploadBaseURL == "" {
		c.Gemini.UploadBaseURL = defaultGeminiUploadURL
	}
	c.Gemini.Model = strings.TrimSpace(c.Gemini.Model)
	if c.Gemini.Model == "" {
		c.Gemini.Model = defaultGeminiModel
	}
	if c.Gemini.TimeoutSeconds <= 0 {
		c.Gemini.TimeoutSeconds = defaultGeminiTimeout
	}
}

func (c *Config) normalizeDownload() {
	if c.Download.TimeoutSeconds <= 0 {
		c.Download.TimeoutSeconds = defaultDownloadTimeout
	}
	if c.Download.MaxFileMB <= 0 {
		c.Download.MaxFileMB = defaultMaxFileMB
	}
}

func (c *Config) normalizeAnalysis() {
	if c.Analysis.MaxSegmentMinutes <= 0 {
		c.Analysis.MaxSegmentMinutes = defaultSegmentMinutes
	}
	if c.Analysis.MaxSegmentMB <= 0 {
		c.Analysis.MaxSegmentMB = defaultSegmentMB
	}
	if c.Analysis.UploadConcurrency <= 0 {
		c.Analysis.UploadConcurrency = defaultUploadConc
	}
	if c.Analysis.MaxUploadAttempts <= 0 {
		c.Analysis.MaxUploadAttempts = defaultUploadAttempts
	}
	if c.Analysis.MaxPromptAttempts <= 0 {
		c.Analysis.MaxPromptAttempts = defaultPromptAttempts
	}
	if c.Analysis.RetryBaseDelayMS <= 0 {
		c.Analysis.RetryBaseDelayMS = defaultRetryBaseDelayMS
	}
	if c.Analysis.RetryMaxDelayMS <= 0 {
		c.Analysis.RetryMaxDelayMS = defaultRetryMaxDelayMS
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
