package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"versescope/internal/logging"
	"versescope/internal/retryhttp"
	"versescope/internal/services"
	"versescope/internal/textutil"
)

const (
	// DefaultBaseURL is the OpenRouter chat completions endpoint.
	DefaultBaseURL = "https://openrouter.ai/api/v1/chat/completions"

	defaultHTTPTimeout = 60 * time.Second
	maxResponseBytes   = 4 << 20
	stage              = "analysis"
	redacted           = "[redacted]"
)

// Config captures the runtime settings required to talk to the LLM.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// DefaultHTTPTimeout returns the default timeout used for LLM requests.
func DefaultHTTPTimeout() time.Duration {
	return defaultHTTPTimeout
}

// Completer is the subset of the client used by the analysis pipeline.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Client wraps an OpenRouter-compatible chat completion API.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryMaxAttempts int
	retryDelay       time.Duration
	sleeper          func(time.Duration)
	observer         func(retryhttp.Attempt)
	logger           *slog.Logger
}

var _ Completer = (*Client)(nil)

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the total attempt count (defaults to 3).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryDelay overrides the fixed delay between attempts (defaults to 1s).
func WithRetryDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = delay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// WithAttemptObserver registers a hook invoked after every HTTP attempt.
func WithAttemptObserver(observer func(retryhttp.Attempt)) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient constructs an LLM client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			Referer:        strings.TrimSpace(cfg.Referer),
			Title:          strings.TrimSpace(cfg.Title),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: retryhttp.DefaultMaxAttempts,
		retryDelay:       retryhttp.DefaultDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = DefaultBaseURL
	}
	client.logger = logging.NewComponentLogger(client.logger, "llm")
	return client
}

// Model reports the configured model identifier.
func (c *Client) Model() string {
	return c.cfg.Model
}

// StatusError reports a non-2xx reply that survived the retry budget.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

type emptyContentError struct {
	FinishReason string
	Refusal      string
	Snippet      string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf(
		"empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		e.FinishReason,
		e.Refusal,
		e.Snippet,
	)
}

// Complete sends prompt as the sole user message and returns the raw
// completion text. Missing credentials fail before any request is made.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if err := c.checkConfigured("complete"); err != nil {
		return "", err
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", services.Wrap(services.ErrValidation, stage, "complete", "prompt required", nil)
	}
	payload := chatCompletionRequest{
		Model:    c.cfg.Model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}
	return c.completionContent(ctx, payload, "complete")
}

// HealthCheck issues a fast ping to verify the API key and model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.checkConfigured("health"); err != nil {
		return err
	}
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "user", Content: "Respond with JSON only, exactly: {\"ok\":true}"},
		},
	}
	content, err := c.completionContent(ctx, payload, "health")
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return err
	}
	if !parsed.OK {
		return services.Wrap(services.ErrUpstream, stage, "health", "unexpected response: "+textutil.Snippet(content, 0), nil)
	}
	return nil
}

// Ready reports services.ErrConfiguration when the client lacks an API key or
// model. It never touches the network.
func (c *Client) Ready() error {
	return c.checkConfigured("complete")
}

func (c *Client) checkConfigured(op string) error {
	switch {
	case c == nil:
		return services.Wrap(services.ErrConfiguration, stage, op, "client not initialised", nil)
	case c.cfg.APIKey == "":
		return services.Wrap(services.ErrConfiguration, stage, op, "api key required (set llm.api_key or OPENROUTER_API_KEY)", nil)
	case c.cfg.Model == "":
		return services.Wrap(services.ErrConfiguration, stage, op, "model required (set llm.model)", nil)
	}
	return nil
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatCompletionMessage `json:"message"`
		// Some providers mistakenly return the streaming schema (delta) even when
		// stream=false, so tolerate it as a fallback.
		Delta chatCompletionMessage `json:"delta"`
		// Legacy "text" field (completion-style responses).
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type chatCompletionMessage struct {
	Content      string        `json:"content"`
	ToolCalls    []toolCall    `json:"tool_calls"`
	FunctionCall *functionCall `json:"function_call"`
	Refusal      string        `json:"refusal"`
}

type toolCall struct {
	Type     string       `json:"type"`
	ID       string       `json:"id"`
	Index    int          `json:"index"`
	Function functionCall `json:"function"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

func (c *Client) completionContent(ctx context.Context, payload chatCompletionRequest, op string) (string, error) {
	completion, body, err := c.send(ctx, payload, op)
	if err != nil {
		return "", err
	}
	content, finishReason := extractCompletionPayload(completion)
	if content != "" {
		return content, nil
	}
	if len(completion.Choices) == 0 {
		return "", services.Wrap(services.ErrParse, stage, op, "empty choices: "+c.scrub(textutil.Snippet(string(body), 0)), nil)
	}
	return "", services.Wrap(services.ErrParse, stage, op, "", &emptyContentError{
		FinishReason: finishReason,
		Refusal:      extractCompletionRefusal(completion),
		Snippet:      c.scrub(textutil.Snippet(string(body), 0)),
	})
}

func (c *Client) send(ctx context.Context, payload chatCompletionRequest, op string) (chatCompletionResponse, []byte, error) {
	var completion chatCompletionResponse
	encoded, err := json.Marshal(payload)
	if err != nil {
		return completion, nil, services.Wrap(services.ErrValidation, stage, op, "encode body", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return completion, nil, services.Wrap(services.ErrConfiguration, stage, op, "invalid base url", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
		req.Header.Set("Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	retrier := retryhttp.New(
		retryhttp.WithHTTPClient(c.httpClient),
		retryhttp.WithMaxAttempts(c.retryMaxAttempts),
		retryhttp.WithDelay(c.retryDelay),
		retryhttp.WithSleeper(c.sleeper),
		retryhttp.WithObserver(c.observer),
		retryhttp.WithLogger(c.logger),
	)
	resp, err := retrier.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return completion, nil, ctx.Err()
		}
		return completion, nil, services.Wrap(services.ErrTransient, stage, op,
			fmt.Sprintf("request failed (timeout=%s)", c.timeoutDuration()), errors.New(c.scrub(err.Error())))
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return completion, nil, services.Wrap(services.ErrTransient, stage, op, "read body", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{
			StatusCode: resp.StatusCode,
			Body:       c.scrub(textutil.Snippet(string(body), 0)),
		}
		logging.WarnWithContext(
			logging.WithContext(ctx, c.logger),
			"llm request rejected",
			"llm_upstream_error",
			logging.Int("status", resp.StatusCode),
			logging.String("model", c.cfg.Model),
			logging.String(logging.FieldErrorKind, services.KindUpstream),
			logging.String(logging.FieldErrorHint, "check llm.api_key, llm.model, and provider status"),
		)
		return completion, body, services.Wrap(services.ErrUpstream, stage, op, "", statusErr)
	}
	if err := json.Unmarshal(body, &completion); err != nil {
		return completion, body, services.Wrap(services.ErrParse, stage, op,
			"decode response envelope: "+c.scrub(textutil.Snippet(string(body), 0)), err)
	}
	if completion.Error != nil {
		return completion, body, services.Wrap(services.ErrUpstream, stage, op,
			"api error: "+c.scrub(strings.TrimSpace(completion.Error.Message)), nil)
	}
	return completion, body, nil
}

// scrub removes the API key from text that may be echoed back by a provider.
func (c *Client) scrub(text string) string {
	if c == nil || c.cfg.APIKey == "" {
		return text
	}
	return strings.ReplaceAll(text, c.cfg.APIKey, redacted)
}

func (c *Client) timeoutDuration() time.Duration {
	if c == nil || c.httpClient == nil || c.httpClient.Timeout <= 0 {
		return defaultHTTPTimeout
	}
	return c.httpClient.Timeout
}

func extractCompletionPayload(completion chatCompletionResponse) (string, string) {
	var finishReason string
	for _, choice := range completion.Choices {
		if finishReason == "" {
			finishReason = strings.TrimSpace(choice.FinishReason)
		}
		if content := firstNonEmpty(
			choice.Message.Content,
			choice.Delta.Content,
			choice.Text,
		); content != "" {
			return content, finishReason
		}
		if args := firstNonEmpty(
			functionCallArguments(choice.Message.FunctionCall),
			functionCallArguments(choice.Delta.FunctionCall),
		); args != "" {
			return args, finishReason
		}
		if args := firstNonEmpty(
			toolCallArguments(choice.Message.ToolCalls),
			toolCallArguments(choice.Delta.ToolCalls),
		); args != "" {
			return args, finishReason
		}
	}
	return "", finishReason
}

func extractCompletionRefusal(completion chatCompletionResponse) string {
	for _, choice := range completion.Choices {
		if refusal := firstNonEmpty(choice.Message.Refusal, choice.Delta.Refusal); refusal != "" {
			return refusal
		}
	}
	return ""
}

func functionCallArguments(fc *functionCall) string {
	if fc == nil {
		return ""
	}
	return strings.TrimSpace(fc.Arguments)
}

func toolCallArguments(calls []toolCall) string {
	for _, call := range calls {
		if args := strings.TrimSpace(call.Function.Arguments); args != "" {
			return args
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
