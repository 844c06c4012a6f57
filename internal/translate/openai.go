package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const (
	openAIDefaultModel = "gpt-4o-mini"
	openAIName         = ProviderOpenAI
)

// OpenAIConfig holds configuration for the chat-completion translator.
type OpenAIConfig struct {
	APIKey     string
	Model      string
	Target     string
	MaxRetries int           // Retry attempts for SDK transport
	Timeout    time.Duration // HTTP timeout
	BaseURL    string        // Optional (tests)
	HTTPClient *http.Client  // Optional (tests)
	Limiter    *RateLimiter  // Optional
	Logger     *slog.Logger  // Optional
}

// OpenAIClient translates with an OpenAI chat model.
type OpenAIClient struct {
	model   string
	target  string
	prompt  string
	client  openai.Client
	limiter *RateLimiter
	logger  *slog.Logger
}

// NewOpenAIClient creates a chat-completion translator.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	if cfg.Target == "" {
		cfg.Target = DefaultTarget
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		model:   cfg.Model,
		target:  cfg.Target,
		prompt:  systemPrompt(cfg.Target),
		client:  openai.NewClient(opts...),
		limiter: cfg.Limiter,
		logger:  logger,
	}
}

func systemPrompt(target string) string {
	name := target
	if tag, err := language.Parse(target); err == nil {
		if n := display.English.Tags().Name(tag); n != "" {
			name = fmt.Sprintf("%s (%s)", n, target)
		}
	}
	return "You translate short passages from children's picture books. " +
		"Translate the user's text into " + name + ". " +
		"Reply with the translation only, without quotes or commentary."
}

// Name returns the provider identifier.
func (c *OpenAIClient) Name() string { return openAIName }

// RateLimiter returns the client's limiter, nil when unlimited.
func (c *OpenAIClient) RateLimiter() *RateLimiter { return c.limiter }

// Translate returns the translation of text, or text itself on failure.
func (c *OpenAIClient) Translate(ctx context.Context, text string) string {
	out, err := c.TranslateText(ctx, text)
	if err != nil {
		c.logger.Warn("translation failed, keeping source text",
			"provider", openAIName, "model", c.model, "target", c.target, "error", err)
		return text
	}
	return out
}

// TranslateText translates text. Transport retries are left to the SDK.
func (c *OpenAIClient) TranslateText(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(c.prompt),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		return "", c.mapError(err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("openai returned an empty translation")
	}
	return out, nil
}

func (c *OpenAIClient) mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		se := &StatusError{StatusCode: apiErr.StatusCode, Body: apiErr.Message}
		if apiErr.Response != nil {
			se.RetryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		if se.StatusCode == http.StatusTooManyRequests && c.limiter != nil {
			c.limiter.Record429(se.RetryAfter)
		}
		return se
	}
	return err
}
