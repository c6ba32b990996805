// Package cli wires configuration into a running engine for the chatflow commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/chatflow"
	"github.com/aretw0/chatflow/internal/config"
	"github.com/aretw0/chatflow/pkg/adapters/file"
	"github.com/aretw0/chatflow/pkg/adapters/memory"
	"github.com/aretw0/chatflow/pkg/adapters/openai"
	"github.com/aretw0/chatflow/pkg/adapters/redis"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/locale"
	"github.com/aretw0/chatflow/pkg/observability"
	"github.com/aretw0/chatflow/pkg/persistence/middleware"
	"github.com/aretw0/chatflow/pkg/ports"
	"github.com/aretw0/chatflow/pkg/session"
	"github.com/aretw0/chatflow/pkg/transition"
	"github.com/prometheus/client_golang/prometheus"
)

// Runtime is an engine together with the resources it owns.
type Runtime struct {
	Engine *chatflow.Engine
	Config config.Config
	Logger *slog.Logger

	closers []func() error
}

// Close releases the external connections opened by NewRuntime.
func (r *Runtime) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// RuntimeOption customizes NewRuntime.
type RuntimeOption func(*runtimeOptions)

type runtimeOptions struct {
	registerer prometheus.Registerer
	hooks      []domain.LifecycleHooks
}

// WithRegisterer records engine metrics into reg.
func WithRegisterer(reg prometheus.Registerer) RuntimeOption {
	return func(o *runtimeOptions) {
		o.registerer = reg
	}
}

// WithHooks adds lifecycle hooks next to the built-in ones.
func WithHooks(hooks domain.LifecycleHooks) RuntimeOption {
	return func(o *runtimeOptions) {
		o.hooks = append(o.hooks, hooks)
	}
}

// NewRuntime builds an engine from cfg: Redis sessions and completion cache
// when an address is set (else file sessions when a directory is set), OpenAI
// when an API key is set, custom locale bundles and transition table when paths
// are set. Sessions are masked and encrypted at rest when security is configured.
func NewRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...RuntimeOption) (*Runtime, error) {
	var o runtimeOptions
	for _, opt := range opts {
		opt(&o)
	}

	rt := &Runtime{Config: cfg, Logger: logger}
	engineOpts := []chatflow.Option{
		chatflow.WithLogger(logger),
		chatflow.WithRemoteTimeout(cfg.RemoteTimeout),
		chatflow.WithMaxInputSize(cfg.MaxInputSize),
	}

	if cfg.IdleTimeout > 0 {
		engineOpts = append(engineOpts, chatflow.WithEvictionPolicy(session.IdleTimeout(cfg.IdleTimeout)))
	}

	if cfg.LocaleDir != "" {
		catalog, err := locale.LoadDir(cfg.LocaleDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load locale bundles: %w", err)
		}
		engineOpts = append(engineOpts, chatflow.WithCatalog(catalog))
	}

	if cfg.TransitionsPath != "" {
		table, err := transition.LoadTable(cfg.TransitionsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load transition table: %w", err)
		}
		engineOpts = append(engineOpts, chatflow.WithTransitionTable(table))
	}

	var completion ports.CompletionService
	if cfg.OpenAI.Enabled() {
		client, err := openai.New(openai.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
		}, openai.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		completion = client
		engineOpts = append(engineOpts, chatflow.WithTranslator(client))
		logger.Info("remote completion enabled", "model", client.Model())
	}

	var store ports.ContextStore
	switch {
	case cfg.Redis.Enabled():
		rs := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, redis.WithTTL(cfg.Redis.SessionTTL))
		rt.closers = append(rt.closers, rs.Close)
		if err := rs.Ping(ctx); err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
		}
		store = rs

		if completion != nil {
			completion = redis.NewCompletionCache(rs.Client(), completion,
				redis.WithCacheTTL(cfg.Redis.CacheTTL),
				redis.WithCacheLogger(logger),
			)
		}
		logger.Info("redis session store enabled", "addr", cfg.Redis.Addr)
	case cfg.StoreDir != "":
		store = file.New(cfg.StoreDir)
		logger.Info("file session store enabled", "dir", cfg.StoreDir)
	}

	if cfg.Security.Enabled() {
		if store == nil {
			store = memory.NewStore()
		}
		secured, err := secureStore(store, cfg.Security)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		store = secured
	}
	if store != nil {
		engineOpts = append(engineOpts, chatflow.WithStore(store))
	}

	if completion != nil {
		engineOpts = append(engineOpts, chatflow.WithCompletion(completion))
	}

	hooks := []domain.LifecycleHooks{observability.LogHooks(logger)}
	if o.registerer != nil {
		hooks = append(hooks, observability.NewMetrics(o.registerer).Hooks())
	}
	hooks = append(hooks, o.hooks...)
	engineOpts = append(engineOpts, chatflow.WithLifecycleHooks(domain.MergeHooks(hooks...)))

	engine, err := chatflow.New(engineOpts...)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	rt.Engine = engine
	return rt, nil
}

// secureStore masks PII first, then seals the result.
func secureStore(store ports.ContextStore, cfg config.SecurityConfig) (ports.ContextStore, error) {
	var mws []middleware.Middleware
	if len(cfg.PIIKeys) > 0 {
		pii, err := middleware.NewPIIMiddleware(cfg.PIIKeys)
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}

	active, fallbacks, err := cfg.Keys()
	if err != nil {
		return nil, err
	}
	if active != nil {
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallbacks})
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}
	return middleware.Chain(store, mws...), nil
}
