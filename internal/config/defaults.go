package config

const (
	defaultOutputDir        = "~/newsletters"
	defaultWorkDir          = "~/.local/share/lettercast/work"
	defaultLogDir           = "~/.local/share/lettercast/logs"
	defaultStorePath        = "~/.local/share/lettercast/lettercast.db"
	defaultGeminiBaseURL    = "https://generativelanguage.googleapis.com"
	defaultGeminiUploadURL  = "https://generativelanguage.googleapis.com/upload"
	defaultGeminiModel      = "gemini-2.0-flash"
	defaultGeminiTimeout    = 120
	defaultDownloadTimeout  = 300
	defaultMaxFileMB        = 450
	defaultSegmentMinutes   = 20
	defaultSegmentMB        = 18
	defaultUploadConc       = 3
	defaultUploadAttempts   = 4
	defaultPromptAttempts   = 5
	defaultRetryBaseDelayMS = 1000
	defaultRetryMaxDelayMS  = 10000
	defaultNotifyTimeout    = 10
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			WorkDir:   defaultWorkDir,
			LogDir:    defaultLogDir,
			StorePath: defaultStorePath,
		},
		Gemini: Gemini{
			BaseURL:        defaultGeminiBaseURL,
			UploadBaseURL:  defaultGeminiUploadURL,
			Model:          defaultGeminiModel,
			TimeoutSeconds: defaultGeminiTimeout,
		},
		Download: Download{
			TimeoutSeconds: defaultDownloadTimeout,
			MaxFileMB:      defaultMaxFileMB,
		},
		Analysis: Analysis{
			MaxSegmentMinutes: defaultSegmentMinutes,
			MaxSegmentMB:      defaultSegmentMB,
			UploadConcurrency: defaultUploadConc,
			MaxUploadAttempts: defaultUploadAttempts,
			MaxPromptAttempts: defaultPromptAttempts,
			RetryBaseDelayMS:  defaultRetryBaseDelayMS,
			RetryMaxDelayMS:   defaultRetryMaxDelayMS,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
