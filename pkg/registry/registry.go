// Package registry maps analyzer names to lazily constructed strategy
// instances. It is the one shared mutable structure of the library and
// is safe for concurrent use.
package registry

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/civitas/spamguard/pkg/config"
	"github.com/civitas/spamguard/pkg/store"
	"github.com/civitas/spamguard/pkg/strategy"
)

// UnknownAnalyzerError is returned when resolving a name no analyzer
// config was registered under. It indicates a programmer or wiring
// error and is never retried internally.
type UnknownAnalyzerError struct {
	Name string
}

func (e *UnknownAnalyzerError) Error() string {
	return fmt.Sprintf("unknown analyzer %q", e.Name)
}

// Registry caches at most one live strategy instance per analyzer name
// for the registry's lifetime. Construction happens on first Resolve;
// a failed construction is not cached and is retried on the next call.
type Registry struct {
	mu      sync.Mutex
	configs map[string]config.AnalyzerConfig
	order   []string
	entries map[string]*entry
}

type entry struct {
	ready    chan struct{}
	strategy strategy.Strategy
	err      error
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		configs: make(map[string]config.AnalyzerConfig),
		entries: make(map[string]*entry),
	}
}

// NewFromConfig creates a registry preloaded with the configured
// analyzers.
func NewFromConfig(cfg *config.Config) (*Registry, error) {
	r := New()
	for _, analyzer := range cfg.Analyzers {
		if err := r.Register(analyzer); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register stores an analyzer config under its name. Re-registering a
// name overwrites the stored config but never replaces an already
// instantiated strategy; call Reset to pick the new config up.
func (r *Registry) Register(cfg config.AnalyzerConfig) error {
	if cfg.Name == "" {
		return &config.ConfigurationError{Field: "name", Reason: "analyzer name cannot be empty"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.configs[cfg.Name]; !exists {
		r.order = append(r.order, cfg.Name)
	}
	r.configs[cfg.Name] = cfg

	return nil
}

// Names returns the registered analyzer names in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Resolve returns the cached strategy for name, constructing it on
// first access. Concurrent first resolves of the same name perform
// exactly one construction and all receive the identical instance.
func (r *Registry) Resolve(ctx context.Context, name string) (strategy.Strategy, error) {
	r.mu.Lock()

	if e, ok := r.entries[name]; ok {
		r.mu.Unlock()
		select {
		case <-e.ready:
			return e.strategy, e.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	cfg, ok := r.configs[name]
	if !ok {
		r.mu.Unlock()
		return nil, &UnknownAnalyzerError{Name: name}
	}

	e := &entry{ready: make(chan struct{})}
	r.entries[name] = e
	r.mu.Unlock()

	e.strategy, e.err = build(ctx, cfg)
	if e.err != nil {
		// Do not cache a broken instance; the next Resolve retries.
		r.mu.Lock()
		delete(r.entries, name)
		r.mu.Unlock()
	}
	close(e.ready)

	return e.strategy, e.err
}

// Reset closes and discards all cached strategy instances. Registered
// configs are kept. Intended for tests and config reloads.
func (r *Registry) Reset() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range entries {
		<-e.ready
		if closer, ok := e.strategy.(io.Closer); ok && e.err == nil {
			closer.Close()
		}
	}
}

func build(ctx context.Context, cfg config.AnalyzerConfig) (strategy.Strategy, error) {
	switch cfg.Strategy {
	case "bayes":
		st, err := buildStore(ctx, cfg.Options)
		if err != nil {
			return nil, err
		}
		return strategy.NewBayes(st, strategy.BayesConfig{
			KeyPrefix:      cfg.Options.Params.KeyPrefix,
			Categories:     cfg.Options.Categories,
			MinTokenLength: cfg.Options.MinTokenLength,
			MaxTokenLength: cfg.Options.MaxTokenLength,
			Smoothing:      cfg.Options.SmoothingFactor,
		}), nil

	case "lua":
		return strategy.NewLua(cfg.Options.ScriptPath)

	default:
		return nil, &config.ConfigurationError{
			Field:  "strategy",
			Reason: fmt.Sprintf("unknown strategy %q for analyzer %q", cfg.Strategy, cfg.Name),
		}
	}
}

func buildStore(ctx context.Context, opts config.AnalyzerOptions) (store.Store, error) {
	switch opts.Adapter {
	case "", "memory":
		return store.NewMemory(), nil

	case "redis":
		return store.NewRedis(ctx, store.RedisConfig{
			URL:      opts.Params.URL,
			Host:     opts.Params.Host,
			Port:     opts.Params.Port,
			DB:       opts.Params.DB,
			Password: opts.Params.Password,
			Timeout:  time.Duration(opts.Params.TimeoutMs) * time.Millisecond,
		})

	default:
		return nil, &config.ConfigurationError{
			Field:  "options.adapter",
			Reason: fmt.Sprintf("unknown adapter %q", opts.Adapter),
		}
	}
}
