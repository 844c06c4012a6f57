// Package translate provides the fail-soft translation collaborator used to
// suggest region translations, and the batch job that fills translations
// across a directory of books.
package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Provider names accepted in configuration.
const (
	ProviderGoogle = "google"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

// DefaultTarget is the language translations are written in.
const DefaultTarget = "zh-TW"

// Translator returns a translation of text. On any failure it returns text
// unchanged; failures are logged, never returned.
type Translator interface {
	Translate(ctx context.Context, text string) string
}

// Client is a Translator that can also report failures, for callers such as
// the batch job that need to tell "unchanged" from "failed".
type Client interface {
	Translator
	TranslateText(ctx context.Context, text string) (string, error)
	Name() string
}

// StatusError is a non-200 response from a translation backend.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("translation request failed (status %d): %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("translation request failed (status %d)", e.StatusCode)
}

// Retryable reports whether the request may succeed if repeated.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	// Transport errors.
	return true
}

// Noop returns every text unchanged.
type Noop struct{}

func (Noop) Translate(_ context.Context, text string) string { return text }

func (Noop) TranslateText(_ context.Context, text string) (string, error) { return text, nil }

func (Noop) Name() string { return ProviderNone }

// RateLimited is implemented by clients that pace their requests.
type RateLimited interface {
	RateLimiter() *RateLimiter
}

// LimiterStatus reports the rate limiter state of c, or nil when c is not
// rate limited.
func LimiterStatus(c Client) *RateLimiterStatus {
	rl, ok := c.(RateLimited)
	if !ok || rl.RateLimiter() == nil {
		return nil
	}
	st := rl.RateLimiter().Status()
	return &st
}

// NormalizeTarget validates a BCP 47 language tag and returns its canonical
// form.
func NormalizeTarget(target string) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return DefaultTarget, nil
	}
	tag, err := language.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid target language %q: %w", target, err)
	}
	return tag.String(), nil
}

// Config selects and configures a translation backend.
type Config struct {
	Provider   string
	Target     string
	RateLimit  int // requests per minute
	MaxRetries int
	Timeout    time.Duration

	Google GoogleConfig
	OpenAI OpenAIConfig

	Logger *slog.Logger
}

// New builds the configured client. A provider without credentials falls
// back to Noop with a warning, so the editor keeps working offline.
func New(cfg Config) (Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	target, err := NormalizeTarget(cfg.Target)
	if err != nil {
		return nil, err
	}
	limiter := NewRateLimiter(cfg.RateLimit)

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderGoogle:
		gc := cfg.Google
		if gc.APIKey == "" {
			logger.Warn("google translate API key not set, translations disabled")
			return Noop{}, nil
		}
		gc.Target = target
		gc.Limiter = limiter
		gc.Logger = logger
		if gc.MaxRetries == 0 {
			gc.MaxRetries = cfg.MaxRetries
		}
		if gc.Timeout == 0 {
			gc.Timeout = cfg.Timeout
		}
		return NewGoogleClient(gc), nil
	case ProviderOpenAI:
		oc := cfg.OpenAI
		if oc.APIKey == "" {
			logger.Warn("openai API key not set, translations disabled")
			return Noop{}, nil
		}
		oc.Target = target
		oc.Limiter = limiter
		oc.Logger = logger
		if oc.MaxRetries == 0 {
			oc.MaxRetries = cfg.MaxRetries
		}
		if oc.Timeout == 0 {
			oc.Timeout = cfg.Timeout
		}
		return NewOpenAIClient(oc), nil
	case ProviderNone, "":
		return Noop{}, nil
	}
	return nil, fmt.Errorf("unknown translation provider %q", cfg.Provider)
}
