// Package app assembles the SourceSage services from a Config. The HTTP
// server, the sweep worker and the CLI share this wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sourcesage/internal/cache"
	"sourcesage/internal/config"
	"sourcesage/internal/domain/entity"
	"sourcesage/internal/infra/adapter/persistence/memory"
	"sourcesage/internal/infra/adapter/persistence/postgres"
	"sourcesage/internal/infra/adapter/persistence/redis"
	"sourcesage/internal/infra/db"
	"sourcesage/internal/infra/github"
	"sourcesage/internal/infra/provider"
	"sourcesage/internal/infra/renderer"
	"sourcesage/internal/llm"
	"sourcesage/internal/observability/metrics"
	"sourcesage/internal/pipeline"
	"sourcesage/internal/repository"
	"sourcesage/internal/usecase/analyze"
	"sourcesage/internal/usecase/discover"
)

// Store is an opened cache backend.
type Store struct {
	Backend string
	// Repo is nil when the backend could not be reached. The caches then
	// treat every lookup as a miss.
	Repo repository.CacheRepository
	// Ping checks the backend. It is nil for the in-process store.
	Ping func(ctx context.Context) error
	// Err is why the backend is unavailable, or nil.
	Err   error
	close func() error
}

// Close releases the backend connection.
func (s *Store) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

// OpenStore connects the configured cache backend. The postgres backend
// runs its migrations before returning.
//
// Only misconfiguration is returned as an error. A backend that cannot be
// reached yields a degraded Store whose Ping keeps reporting the failure;
// callers that cannot work without the backend check Store.Err.
func OpenStore(ctx context.Context, cfg config.CacheConfig) (*Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		repo, err := memory.NewCacheRepo(cfg.MemorySize)
		if err != nil {
			return nil, fmt.Errorf("open memory cache: %w", err)
		}
		return &Store{Backend: cfg.Backend, Repo: repo}, nil

	case config.BackendPostgres:
		database, err := db.Open(ctx, cfg.DatabaseURL)
		if errors.Is(err, db.ErrMissingDSN) {
			return nil, fmt.Errorf("%w: open postgres cache: %w", entity.ErrConfiguration, err)
		}
		if err != nil {
			return unavailable(cfg.Backend, fmt.Errorf("open postgres cache: %w", err)), nil
		}
		if err := db.MigrateUp(database); err != nil {
			_ = database.Close()
			return unavailable(cfg.Backend, fmt.Errorf("migrate postgres cache: %w", err)), nil
		}
		metrics.RecordCacheBackendUp(cfg.Backend, true)
		return &Store{
			Backend: cfg.Backend,
			Repo:    postgres.NewCacheRepo(database),
			Ping:    database.PingContext,
			close:   database.Close,
		}, nil

	case config.BackendRedis:
		client, err := redis.NewClient(ctx, cfg.RedisURL)
		if errors.Is(err, entity.ErrConfiguration) {
			return nil, fmt.Errorf("open redis cache: %w", err)
		}
		if err != nil {
			return unavailable(cfg.Backend, fmt.Errorf("open redis cache: %w", err)), nil
		}
		metrics.RecordCacheBackendUp(cfg.Backend, true)
		return &Store{
			Backend: cfg.Backend,
			Repo:    redis.NewCacheRepo(client, cfg.RedisRetention),
			Ping:    func(ctx context.Context) error { return client.Ping(ctx).Err() },
			close:   client.Close,
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown cache backend %q", entity.ErrConfiguration, cfg.Backend)
	}
}

// unavailable returns a Store without a repository. Analyses are then
// recomputed on every request.
func unavailable(backend string, err error) *Store {
	slog.Warn("cache backend unavailable, running without cache",
		slog.String("backend", backend),
		slog.Any("error", err))
	metrics.RecordCacheBackendUp(backend, false)
	return &Store{
		Backend: backend,
		Ping:    func(context.Context) error { return err },
		Err:     err,
	}
}

// App holds the wired services.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Store  *Store

	GitHub   *github.Client
	LLM      *llm.Client
	Renderer *renderer.Markdown

	Issues   *cache.TTLCache[[]entity.Issue]
	Analyses *cache.TTLCache[entity.Analysis]

	Discover *discover.Service
	Analyze  *analyze.Service
}

// New opens the cache store and builds every service. The caller owns the
// returned App and must Close it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	store, err := OpenStore(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	a, err := build(ctx, cfg, logger, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return a, nil
}

func build(ctx context.Context, cfg *config.Config, logger *slog.Logger, store *Store) (*App, error) {
	gh, err := github.NewClient(cfg.GitHub)
	if err != nil {
		return nil, fmt.Errorf("github client: %w", err)
	}
	providers, err := provider.Build(ctx, cfg.Providers)
	if err != nil {
		return nil, fmt.Errorf("llm providers: %w", err)
	}
	client := llm.NewClient(providers,
		llm.WithPolicy(cfg.Policy),
		llm.WithMetrics(llm.NewPrometheusMetrics()),
		llm.WithLogger(logger))

	md, err := renderer.NewMarkdown(cfg.DownloadsDir, cfg.APIBaseURL)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		GitHub:   gh,
		LLM:      client,
		Renderer: md,
		Issues:   cache.NewIssues(store.Repo, cfg.Cache.IssuesTTL, cache.WithLogger(logger)),
		Analyses: cache.NewAnalyses(store.Repo, cfg.Cache.AnalysesTTL, cache.WithLogger(logger)),
	}
	a.Discover = &discover.Service{Finder: gh, Cache: a.Issues}
	a.Analyze = &analyze.Service{
		Machine:  a.Machine(),
		Cache:    a.Analyses,
		Resolver: gh,
	}

	logger.Info("services wired",
		slog.String("cache_backend", store.Backend),
		slog.Bool("cache_available", store.Err == nil),
		slog.Any("providers", client.Providers()),
		slog.Bool("github_token", cfg.GitHub.Token != ""))
	return a, nil
}

// Stages returns the pipeline stages in their run order.
func (a *App) Stages() []pipeline.Stage {
	par := a.Config.Parallelism
	return []pipeline.Stage{
		pipeline.DiscoverStage{Finder: a.GitHub},
		pipeline.ContextStage{Fetcher: a.GitHub},
		pipeline.PlanStage{Generator: a.LLM, Chain: a.Config.Chains.Plan, Parallelism: par},
		pipeline.PromptStage{Generator: a.LLM, Chain: a.Config.Chains.Prompt, Parallelism: par},
		pipeline.ReportStage{Generator: a.LLM, Renderer: a.Renderer, Chain: a.Config.Chains.Report, Parallelism: par},
	}
}

// Machine builds a state machine over Stages. opts are applied after the
// configured restart limit and logger.
func (a *App) Machine(opts ...pipeline.MachineOption) *pipeline.Machine {
	base := []pipeline.MachineOption{
		pipeline.WithMaxRestarts(a.Config.MaxRestarts),
		pipeline.WithLogger(a.Logger),
	}
	return pipeline.NewMachine(a.Stages(), append(base, opts...)...)
}

// Close releases the cache store.
func (a *App) Close() error {
	return a.Store.Close()
}
