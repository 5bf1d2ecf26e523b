// Package application assembles the pipeline and its optional backends from
// configuration. Both the HTTP server and the unify CLI start here.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/salesunifier/internal/assistant"
	"github.com/JonMunkholm/salesunifier/internal/config"
	"github.com/JonMunkholm/salesunifier/internal/core"
	"github.com/JonMunkholm/salesunifier/internal/sheet"
	"github.com/JonMunkholm/salesunifier/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// App is a fully wired pipeline plus the resources it holds.
type App struct {
	Pipeline  *core.Pipeline
	Registry  *prometheus.Registry
	FixStore  *store.FixStore // nil when DATABASE_URL is empty
	Assistant config.ResolvedAssistant

	closers []func()
}

// Options overrides parts of the wiring, mainly for tests.
type Options struct {
	// HTTPClient is used for completion calls. Nil builds one from
	// ASSISTANT_TIMEOUT.
	HTTPClient *http.Client

	// Completer replaces the HTTP completion client entirely.
	Completer assistant.Completer
}

// Build wires the pipeline. A configured database must be reachable; a
// configured Redis that cannot be reached only disables the mapping cache.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	resolved, err := cfg.Assistant.Resolve()
	if err != nil {
		return nil, fmt.Errorf("resolve assistant: %w", err)
	}

	app := &App{
		Registry:  prometheus.NewRegistry(),
		Assistant: resolved,
	}
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	completer := opts.Completer
	if completer == nil {
		completer = assistant.NewClient(assistant.ClientConfig{
			BaseURL:     resolved.BaseURL,
			APIKey:      cfg.Assistant.APIKey,
			Model:       resolved.Model,
			Temperature: cfg.Assistant.Temperature,
			Timeout:     cfg.Assistant.Timeout,
		}, opts.HTTPClient)
	}
	if cfg.Assistant.APIKey == "" && opts.Completer == nil {
		slog.Warn("assistant API key not set; translation and repair will fail until ASSISTANT_API_KEY is configured")
	}

	var recorder core.FixRecorder = core.NopRecorder{}
	if cfg.Database.URL != "" {
		pool, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, pool.Close)

		fixStore := store.NewFixStore(pool)
		if err := fixStore.EnsureSchema(ctx); err != nil {
			app.Close()
			return nil, err
		}
		app.FixStore = fixStore
		recorder = fixStore
		slog.Info("fix history persistence enabled")
	}

	app.Pipeline, err = core.NewPipeline(core.PipelineDeps{
		Reader:     sheet.NewReader(cfg.Upload.MaxRows),
		Translator: assistant.NewTranslator(completer, app.mappingCache(ctx, cfg.Redis)),
		Repairer:   assistant.NewRepairer(completer),
		Recorder:   recorder,
		Validator:  core.NewValidator(cfg.Validation.RequiredFields),
		Gate:       core.NewOperationGate(cfg.Upload.MaxWaitTime),
		Metrics:    core.NewMetrics(app.Registry),
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// mappingCache connects to Redis when configured. Any failure falls back to
// no caching.
func (a *App) mappingCache(ctx context.Context, cfg config.RedisConfig) assistant.MappingCache {
	if cfg.URL == "" {
		return assistant.NopCache{}
	}

	redisOpts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		slog.Warn("invalid REDIS_URL, header mapping cache disabled", "error", err)
		return assistant.NopCache{}
	}
	redisOpts.PoolSize = cfg.PoolSize
	redisOpts.DialTimeout = cfg.DialTimeout
	redisOpts.ReadTimeout = cfg.ReadTimeout
	redisOpts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		slog.Warn("redis unreachable, header mapping cache disabled", "error", err)
		return assistant.NopCache{}
	}

	a.closers = append(a.closers, func() { client.Close() })
	slog.Info("header mapping cache enabled", "ttl", cfg.MappingTTL)
	return assistant.NewRedisCache(client, cfg.MappingTTL)
}

// Close releases database and Redis connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
