package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"versescope/internal/analysis"
	"versescope/internal/config"
	"versescope/internal/logging"
	"versescope/internal/pipeline"
	"versescope/internal/services/bibleapi"
	"versescope/internal/services/llm"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil {
			if level := strings.ToLower(strings.TrimSpace(*c.logLevelFlag)); level != "" {
				cfg.Logging.Level = level
				if err := cfg.Validate(); err != nil {
					c.configErr = fmt.Errorf("--log-level: %w", err)
					return
				}
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.loggerErr = fmt.Errorf("init logger: %w", err)
			return
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) lookupClient(cfg *config.Config, logger *slog.Logger) *bibleapi.Client {
	return bibleapi.New(cfg.Bible.BaseURL,
		bibleapi.WithTranslation(cfg.Bible.Translation),
		bibleapi.WithTimeout(cfg.BibleTimeout()),
		bibleapi.WithLogger(logger),
	)
}

func (c *commandContext) llmClient(cfg *config.Config, logger *slog.Logger) *llm.Client {
	settings := cfg.GetLLM()
	return llm.NewClient(llm.Config{
		APIKey:         settings.APIKey,
		BaseURL:        settings.BaseURL,
		Model:          settings.Model,
		Referer:        settings.Referer,
		Title:          settings.Title,
		TimeoutSeconds: settings.TimeoutSeconds,
	},
		llm.WithRetryMaxAttempts(cfg.LLM.RetryAttempts),
		llm.WithRetryDelay(cfg.RetryDelay()),
		llm.WithLogger(logger),
	)
}

func (c *commandContext) analyzer(cfg *config.Config, logger *slog.Logger) (*analysis.Analyzer, error) {
	extractor, err := llm.ExtractorByName(cfg.Analysis.Extractor)
	if err != nil {
		return nil, err
	}
	return analysis.NewAnalyzer(c.llmClient(cfg, logger),
		analysis.WithExtractor(extractor),
		analysis.WithLogger(logger),
	), nil
}

// orchestrator builds the full pipeline from configuration. Callers own the
// returned orchestrator and must Close it.
func (c *commandContext) orchestrator() (*pipeline.Orchestrator, *config.Config, *slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, nil, nil, err
	}
	analyzer, err := c.analyzer(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	orch := pipeline.New(c.lookupClient(cfg, logger), analyzer, pipeline.WithLogger(logger))
	return orch, cfg, logger, nil
}

// detailLevel resolves the --detail flag, falling back to analysis.detail.
func detailLevel(flag string, cfg *config.Config) (analysis.DetailLevel, error) {
	value := strings.TrimSpace(flag)
	if value == "" && cfg != nil {
		value = cfg.Analysis.Detail
	}
	return analysis.ParseDetailLevel(value)
}

func queryFromArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
