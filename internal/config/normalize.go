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
	c.normalizeServer()
	c.normalizeBible()
	c.normalizeLLM()
	c.normalizeAnalysis()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.EnvFile) != "" {
		if c.Paths.EnvFile, err = expandPath(c.Paths.EnvFile); err != nil {
			return fmt.Errorf("paths.env_file: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultServerBind
	}
	c.Server.APIToken = strings.TrimSpace(c.Server.APIToken)
	if c.Server.APIToken == "" {
		if value, ok := os.LookupEnv("VERSESCOPE_API_TOKEN"); ok {
			c.Server.APIToken = strings.TrimSpace(value)
		}
	}
	origins := make([]string, 0, len(c.Server.AllowedOrigins))
	for _, origin := range c.Server.AllowedOrigins {
		if trimmed := strings.TrimRight(strings.TrimSpace(origin), "/"); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.Server.AllowedOrigins = origins
}

func (c *Config) normalizeBible() {
	c.Bible.BaseURL = strings.TrimRight(strings.TrimSpace(c.Bible.BaseURL), "/")
	if c.Bible.BaseURL == "" {
		c.Bible.BaseURL = defaultBibleBaseURL
	}
	c.Bible.Translation = strings.ToLower(strings.TrimSpace(c.Bible.Translation))
	if c.Bible.TimeoutSeconds == 0 {
		c.Bible.TimeoutSeconds = defaultBibleTimeout
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("VERSESCOPE_LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	if value, ok := os.LookupEnv("VERSESCOPE_LLM_MODEL"); ok && strings.TrimSpace(value) != "" {
		c.LLM.Model = strings.TrimSpace(value)
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeout
	}
	if c.LLM.RetryAttempts == 0 {
		c.LLM.RetryAttempts = defaultLLMRetryAttempts
	}
}

func (c *Config) normalizeAnalysis() {
	c.Analysis.Detail = strings.ToLower(strings.TrimSpace(c.Analysis.Detail))
	switch c.Analysis.Detail {
	case "":
		c.Analysis.Detail = defaultAnalysisDetail
	case "short":
		c.Analysis.Detail = "brief"
	case "full", "detailed":
		c.Analysis.Detail = "comprehensive"
	}
	c.Analysis.Extractor = strings.ToLower(strings.TrimSpace(c.Analysis.Extractor))
	if c.Analysis.Extractor == "" {
		c.Analysis.Extractor = defaultExtractor
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
