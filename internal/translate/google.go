package translate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/tidwall/gjson"
)

const (
	googleDefaultBaseURL = "https://translation.googleapis.com/language/translate/v2"
	googleName           = ProviderGoogle
)

// GoogleConfig holds configuration for the Google Translate v2 client.
type GoogleConfig struct {
	APIKey     string
	BaseURL    string // Optional (tests)
	Target     string
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
	HTTPClient *http.Client // Optional (tests)
	Limiter    *RateLimiter // Optional
	Logger     *slog.Logger // Optional
}

// GoogleClient calls the Google Translate v2 REST API.
type GoogleClient struct {
	apiKey     string
	baseURL    string
	target     string
	maxRetries int
	retryDelay time.Duration
	client     *http.Client
	limiter    *RateLimiter
	logger     *slog.Logger
}

// NewGoogleClient creates a Google Translate client.
func NewGoogleClient(cfg GoogleConfig) *GoogleClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = googleDefaultBaseURL
	}
	if cfg.Target == "" {
		cfg.Target = DefaultTarget
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &GoogleClient{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		target:     cfg.Target,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		client:     httpClient,
		limiter:    cfg.Limiter,
		logger:     logger,
	}
}

// Name returns the provider identifier.
func (c *GoogleClient) Name() string { return googleName }

// RateLimiter returns the client's limiter, nil when unlimited.
func (c *GoogleClient) RateLimiter() *RateLimiter { return c.limiter }

// Translate returns the translation of text, or text itself on failure.
func (c *GoogleClient) Translate(ctx context.Context, text string) string {
	out, err := c.TranslateText(ctx, text)
	if err != nil {
		c.logger.Warn("translation failed, keeping source text",
			"provider", googleName, "target", c.target, "error", err)
		return text
	}
	return out
}

// TranslateText translates text, retrying rate-limit and server errors.
func (c *GoogleClient) TranslateText(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	return retry.DoWithData(
		func() (string, error) {
			if c.limiter != nil {
				if err := c.limiter.Wait(ctx); err != nil {
					return "", retry.Unrecoverable(err)
				}
			}
			out, err := c.do(ctx, text)
			if se, ok := err.(*StatusError); ok && se.StatusCode == http.StatusTooManyRequests && c.limiter != nil {
				c.limiter.Record429(se.RetryAfter)
			}
			return out, err
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)+1),
		retry.Delay(c.retryDelay),
		retry.RetryIf(isRetryable),
		retry.LastErrorOnly(true),
	)
}

func (c *GoogleClient) do(ctx context.Context, text string) (string, error) {
	form := url.Values{}
	form.Set("q", text)
	form.Set("target", c.target)
	form.Set("format", "text")
	form.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("translation request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read translation response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{
			StatusCode: resp.StatusCode,
			Body:       gjson.GetBytes(body, "error.message").String(),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	translated := gjson.GetBytes(body, "data.translations.0.translatedText")
	if !translated.Exists() {
		return "", retry.Unrecoverable(fmt.Errorf("translation response has no translatedText"))
	}
	return translated.String(), nil
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
