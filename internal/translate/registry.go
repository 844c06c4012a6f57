package translate

import (
	"log/slog"
	"sync"
)

// Registry holds the active translation client and swaps it when the
// configuration changes. Callers fetch the client per request so a reload
// takes effect without restarting.
type Registry struct {
	mu     sync.RWMutex
	client Client
	logger *slog.Logger
}

// NewRegistry creates a registry that starts with the no-op client.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{client: Noop{}, logger: logger}
}

// Reload builds a client from cfg and makes it current. On error the
// previous client stays in place.
func (r *Registry) Reload(cfg Config) error {
	if cfg.Logger == nil {
		cfg.Logger = r.logger
	}
	client, err := New(cfg)
	if err != nil {
		r.logger.Warn("translator reload failed, keeping previous client", "error", err)
		return err
	}

	r.mu.Lock()
	prev := r.client
	r.client = client
	r.mu.Unlock()

	if prev == nil || prev.Name() != client.Name() {
		r.logger.Info("translator registered", "provider", client.Name())
	}
	return nil
}

// Set replaces the current client.
func (r *Registry) Set(client Client) {
	if client == nil {
		client = Noop{}
	}
	r.mu.Lock()
	r.client = client
	r.mu.Unlock()
}

// Client returns the current client. It is never nil.
func (r *Registry) Client() Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.client
}
