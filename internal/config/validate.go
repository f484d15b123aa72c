package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable. LLM credentials are checked
// lazily by the analysis client, not here.
func (c *Config) Validate() error {
	if err := c.validateBible(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateBible() error {
	if err := validateURL("bible.base_url", c.Bible.BaseURL); err != nil {
		return err
	}
	if c.Bible.TimeoutSeconds <= 0 {
		return errors.New("bible.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if err := validateURL("llm.base_url", c.LLM.BaseURL); err != nil {
		return err
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return errors.New("llm.timeout_seconds must be positive")
	}
	if c.LLM.RetryAttempts < 1 {
		return errors.New("llm.retry_attempts must be >= 1")
	}
	if c.LLM.RetryDelayMS < 0 {
		return errors.New("llm.retry_delay_ms must be >= 0")
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	if _, ok := validDetailLevels[c.Analysis.Detail]; !ok {
		return fmt.Errorf("analysis.detail must be one of brief, comprehensive (got %q)", c.Analysis.Detail)
	}
	if _, ok := validExtractors[c.Analysis.Extractor]; !ok {
		return fmt.Errorf("analysis.extractor must be one of lenient, span, balanced (got %q)", c.Analysis.Extractor)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	return nil
}

func validateURL(key, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("%s must be set", key)
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must use http or https (got %q)", key, value)
	}
	return nil
}
