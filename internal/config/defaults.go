package config

import (
	"errors"
	"fmt"
	"unicode"
)

// ErrNoDefault is returned when no default value exists for a config key.
var ErrNoDefault = errors.New("no default exists")

// ErrInvalidKey is returned when a config key contains invalid characters.
var ErrInvalidKey = errors.New("invalid config key")

// Entry represents a single configuration entry.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Description string `json:"description" yaml:"description"`
}

// DefaultEntries returns the default configuration entries.
// Every key here is registered as a viper default, which is also what makes
// it reachable through CLICKREAD_* environment variables.
func DefaultEntries() []Entry {
	d := DefaultConfig()
	return []Entry{
		// ===================
		// Translation
		// ===================
		{
			Key:         "translate.provider",
			Value:       d.Translate.Provider,
			Description: "Translation backend: google, openai or none",
		},
		{
			Key:         "translate.target",
			Value:       d.Translate.Target,
			Description: "Target language (BCP 47) for suggested translations",
		},
		{
			Key:         "translate.rate_limit",
			Value:       d.Translate.RateLimit,
			Description: "Translation requests per minute",
		},
		{
			Key:         "translate.max_retries",
			Value:       d.Translate.MaxRetries,
			Description: "Retry attempts for rate-limited or failed translation requests",
		},
		{
			Key:         "translate.timeout_seconds",
			Value:       d.Translate.TimeoutSeconds,
			Description: "HTTP timeout in seconds for translation requests",
		},
		{
			Key:         "translate.google.api_key",
			Value:       d.Translate.Google.APIKey,
			Description: "Google Translate API key (uses environment variable)",
		},
		{
			Key:         "translate.google.base_url",
			Value:       d.Translate.Google.BaseURL,
			Description: "Override for the Google Translate v2 endpoint",
		},
		{
			Key:         "translate.openai.api_key",
			Value:       d.Translate.OpenAI.APIKey,
			Description: "OpenAI API key (uses environment variable)",
		},
		{
			Key:         "translate.openai.model",
			Value:       d.Translate.OpenAI.Model,
			Description: "Chat model used for OpenAI translations",
		},
		{
			Key:         "translate.openai.base_url",
			Value:       d.Translate.OpenAI.BaseURL,
			Description: "Override for the OpenAI API base URL",
		},

		// ===================
		// Server
		// ===================
		{
			Key:         "server.host",
			Value:       d.Server.Host,
			Description: "Address the HTTP service binds to",
		},
		{
			Key:         "server.port",
			Value:       d.Server.Port,
			Description: "Port the HTTP service listens on",
		},

		// ===================
		// Editor
		// ===================
		{
			Key:         "editor.default_category",
			Value:       d.Editor.DefaultCategory,
			Description: "Category preselected for a newly drawn region",
		},
		{
			Key:         "editor.default_layout",
			Value:       d.Editor.DefaultLayout,
			Description: "Record shape for new books: paged or flat",
		},
	}
}

// GetDefault returns the default value for a config key.
// Returns nil if no default exists for the key.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}

// ValidateKey checks if a config key contains only allowed characters.
// Valid keys contain: letters, digits, dots, underscores, and hyphens.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	for i, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '_' && r != '-' {
			return fmt.Errorf("%w: invalid character %q at position %d", ErrInvalidKey, r, i)
		}
	}
	if key[0] == '.' || key[len(key)-1] == '.' {
		return fmt.Errorf("%w: key cannot start or end with a dot", ErrInvalidKey)
	}
	return nil
}
