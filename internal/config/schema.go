package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/jackzampolin/clickread/internal/book"
	"github.com/jackzampolin/clickread/internal/region"
	"github.com/jackzampolin/clickread/internal/translate"
)

// Config holds clickread configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Translate TranslateCfg `mapstructure:"translate" yaml:"translate"`
	Server    ServerCfg    `mapstructure:"server" yaml:"server"`
	Editor    EditorCfg    `mapstructure:"editor" yaml:"editor"`
}

// TranslateCfg configures the translation collaborator.
type TranslateCfg struct {
	Provider       string    `mapstructure:"provider" yaml:"provider"`               // "google", "openai", "none"
	Target         string    `mapstructure:"target" yaml:"target"`                   // BCP 47 tag, e.g. "zh-TW"
	RateLimit      int       `mapstructure:"rate_limit" yaml:"rate_limit"`           // Requests per minute
	MaxRetries     int       `mapstructure:"max_retries" yaml:"max_retries"`         // Retries on 429/5xx
	TimeoutSeconds int       `mapstructure:"timeout_seconds" yaml:"timeout_seconds"` // HTTP timeout
	Google         GoogleCfg `mapstructure:"google" yaml:"google"`
	OpenAI         OpenAICfg `mapstructure:"openai" yaml:"openai"`
}

// GoogleCfg configures Google Translate.
type GoogleCfg struct {
	APIKey  string `mapstructure:"api_key" yaml:"api_key"` // API key (supports ${ENV_VAR} syntax)
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// OpenAICfg configures the OpenAI chat translator.
type OpenAICfg struct {
	APIKey  string `mapstructure:"api_key" yaml:"api_key"` // API key (supports ${ENV_VAR} syntax)
	Model   string `mapstructure:"model" yaml:"model"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// ServerCfg configures the HTTP service.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// EditorCfg configures editing defaults.
type EditorCfg struct {
	// DefaultCategory seeds the form for a new drawing.
	DefaultCategory string `mapstructure:"default_category" yaml:"default_category"`
	// DefaultLayout is the record shape for books created by book init.
	DefaultLayout string `mapstructure:"default_layout" yaml:"default_layout"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Translate: TranslateCfg{
			Provider:       translate.ProviderGoogle,
			Target:         translate.DefaultTarget,
			RateLimit:      600,
			MaxRetries:     3,
			TimeoutSeconds: 30,
			Google: GoogleCfg{
				APIKey: "${GOOGLE_TRANSLATE_API_KEY}",
			},
			OpenAI: OpenAICfg{
				APIKey: "${OPENAI_API_KEY}",
				Model:  "gpt-4o-mini",
			},
		},
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: "8080",
		},
		Editor: EditorCfg{
			DefaultCategory: string(region.Word),
			DefaultLayout:   string(book.LayoutPaged),
		},
	}
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Translate.Provider) {
	case translate.ProviderGoogle, translate.ProviderOpenAI, translate.ProviderNone, "":
	default:
		return fmt.Errorf("translate.provider: unknown provider %q", c.Translate.Provider)
	}
	if c.Translate.Target != "" {
		if _, err := language.Parse(c.Translate.Target); err != nil {
			return fmt.Errorf("translate.target: %w", err)
		}
	}
	if c.Editor.DefaultCategory != "" {
		if _, err := region.ParseCategory(c.Editor.DefaultCategory); err != nil {
			return fmt.Errorf("editor.default_category: %w", err)
		}
	}
	if c.Editor.DefaultLayout != "" {
		if _, err := book.ParseLayout(c.Editor.DefaultLayout); err != nil {
			return fmt.Errorf("editor.default_layout: %w", err)
		}
	}
	return nil
}

// Addr returns the server listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// Category returns the configured default category, falling back to Word.
func (c *Config) Category() region.Category {
	cat, err := region.ParseCategory(c.Editor.DefaultCategory)
	if err != nil {
		return region.Word
	}
	return cat
}

// Layout returns the configured default layout, falling back to paged.
func (c *Config) Layout() book.Layout {
	l, err := book.ParseLayout(c.Editor.DefaultLayout)
	if err != nil {
		return book.LayoutPaged
	}
	return l
}

// ToTranslateConfig converts the config to a format suitable for
// translate.New. It resolves all ${ENV_VAR} references in API keys.
func (c *Config) ToTranslateConfig(logger *slog.Logger) translate.Config {
	t := c.Translate
	return translate.Config{
		Provider:   t.Provider,
		Target:     t.Target,
		RateLimit:  t.RateLimit,
		MaxRetries: t.MaxRetries,
		Timeout:    time.Duration(t.TimeoutSeconds) * time.Second,
		Google: translate.GoogleConfig{
			APIKey:  ResolveEnvVars(t.Google.APIKey),
			BaseURL: t.Google.BaseURL,
		},
		OpenAI: translate.OpenAIConfig{
			APIKey:  ResolveEnvVars(t.OpenAI.APIKey),
			Model:   t.OpenAI.Model,
			BaseURL: t.OpenAI.BaseURL,
		},
		Logger: logger,
	}
}
