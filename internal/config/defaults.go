package config

const (
	defaultConfigPath       = "~/.config/versescope/config.toml"
	defaultEnvFile          = ".env"
	defaultStateDir         = "~/.local/state/versescope"
	defaultLogDir           = "~/.local/state/versescope/logs"
	defaultServerBind       = "127.0.0.1:7490"
	defaultBibleBaseURL     = "https://bible-api.com"
	defaultBibleTimeout     = 10
	defaultLLMBaseURL       = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel         = "google/gemini-3-flash-preview"
	defaultLLMReferer       = "https://github.com/versescope/versescope"
	defaultLLMTitle         = "Versescope"
	defaultLLMTimeout       = 60
	defaultLLMRetryAttempts = 3
	defaultLLMRetryDelayMS  = 1000
	defaultAnalysisDetail   = "brief"
	defaultExtractor        = "lenient"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

var (
	validDetailLevels = map[string]struct{}{"brief": {}, "comprehensive": {}}
	validExtractors   = map[string]struct{}{"lenient": {}, "span": {}, "balanced": {}}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Server: Server{
			Bind: defaultServerBind,
		},
		Bible: Bible{
			BaseURL:        defaultBibleBaseURL,
			TimeoutSeconds: defaultBibleTimeout,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeout,
			RetryAttempts:  defaultLLMRetryAttempts,
			RetryDelayMS:   defaultLLMRetryDelayMS,
		},
		Analysis: Analysis{
			Detail:    defaultAnalysisDetail,
			Extractor: defaultExtractor,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
