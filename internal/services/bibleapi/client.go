package bibleapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"versescope/internal/logging"
	"versescope/internal/retryhttp"
	"versescope/internal/services"
	"versescope/internal/textutil"
)

const (
	// DefaultBaseURL is the public lookup endpoint.
	DefaultBaseURL = "https://bible-api.com"
	// DefaultTimeout bounds a single lookup.
	DefaultTimeout = 10 * time.Second

	stage        = "lookup"
	maxBodyBytes = 1 << 20
)

// Verse is a resolved scripture passage. It is never mutated after Lookup
// returns it.
type Verse struct {
	Reference   string `json:"reference"`
	Text        string `json:"text"`
	Translation string `json:"translation,omitempty"`
}

// Looker resolves references into verses.
type Looker interface {
	Lookup(ctx context.Context, query string) (Verse, error)
}

// Client talks to the verse lookup service.
type Client struct {
	baseURL     string
	translation string
	timeout     time.Duration
	doer        retryhttp.Doer
	logger      *slog.Logger
}

var _ Looker = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.doer = client
		}
	}
}

// WithTranslation requests a specific translation (e.g. "kjv", "web").
func WithTranslation(translation string) Option {
	return func(c *Client) {
		c.translation = strings.ToLower(strings.TrimSpace(translation))
	}
}

// WithTimeout overrides the per-lookup timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a lookup client. An empty baseURL selects DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.doer == nil {
		client.doer = &http.Client{Timeout: client.timeout}
	}
	client.logger = logging.NewComponentLogger(client.logger, "bibleapi")
	return client
}

type lookupResponse struct {
	Reference       string `json:"reference"`
	Text            string `json:"text"`
	TranslationName string `json:"translation_name"`
	Error           string `json:"error"`
}

// Lookup resolves query into a Verse.
func (c *Client) Lookup(ctx context.Context, query string) (Verse, error) {
	var empty Verse
	query = textutil.NormalizeQuery(query)
	if query == "" {
		return empty, services.Wrap(services.ErrValidation, stage, "lookup verse", "query must not be empty", nil)
	}
	endpoint := c.baseURL + "/" + url.PathEscape(query)
	if c.translation != "" {
		endpoint += "?" + url.Values{"translation": {c.translation}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return empty, services.Wrap(services.ErrValidation, stage, "build request", "invalid reference", err)
	}
	req.Header.Set("Accept", "application/json")

	retrier := retryhttp.New(
		retryhttp.WithDoer(c.doer),
		retryhttp.WithMaxAttempts(1),
		retryhttp.WithLogger(c.logger),
	)
	logger := logging.WithContext(ctx, c.logger)
	requestStart := time.Now()
	resp, err := retrier.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		if ctx.Err() != nil {
			return empty, ctx.Err()
		}
		return empty, services.Wrap(services.ErrTransient, stage, "lookup verse", fmt.Sprintf("request failed (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return empty, services.Wrap(services.ErrTransient, stage, "read response", "", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Info("verse lookup rejected",
			logging.String("query", query),
			logging.Int("status", resp.StatusCode),
			logging.Duration("latency", latency),
		)
		return empty, services.Wrap(services.ErrNotFound, stage, "lookup verse",
			fmt.Sprintf("%q returned %d: %s", query, resp.StatusCode, textutil.Snippet(string(body), 0)), nil)
	}

	var payload lookupResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return empty, services.Wrap(services.ErrNotFound, stage, "decode response",
			"unreadable lookup payload: "+textutil.Snippet(string(body), 0), err)
	}
	verse := Verse{
		Reference:   strings.TrimSpace(payload.Reference),
		Text:        textutil.NormalizeVerseText(payload.Text),
		Translation: strings.TrimSpace(payload.TranslationName),
	}
	if verse.Reference == "" || verse.Text == "" {
		return empty, services.Wrap(services.ErrNotFound, stage, "lookup verse",
			fmt.Sprintf("%q resolved to an empty passage", query), nil)
	}
	logger.Debug("verse resolved",
		logging.String("reference", verse.Reference),
		logging.String("translation", verse.Translation),
		logging.Duration("latency", latency),
	)
	return verse, nil
}
