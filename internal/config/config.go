// Package config assembles the service configuration from the environment
// (optionally seeded by a .env file) and the provider catalogue YAML.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"sourcesage/internal/cache"
	"sourcesage/internal/domain/entity"
	"sourcesage/internal/infra/github"
	"sourcesage/internal/infra/provider"
	"sourcesage/internal/llm"
	"sourcesage/internal/pipeline"
	"sourcesage/pkg/config"
)

//go:embed providers.yaml
var defaultCatalogue []byte

// Cache backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is the fully resolved service configuration.
type Config struct {
	Port         int
	APIBaseURL   string
	DownloadsDir string

	GitHub github.Config
	Cache  CacheConfig

	Providers []provider.Settings
	Chains    Chains
	Policy    llm.Policy

	Parallelism int
	MaxRestarts int
}

// CacheConfig selects and tunes the cache backend.
type CacheConfig struct {
	Backend        string
	DatabaseURL    string
	RedisURL       string
	MemorySize     int
	IssuesTTL      time.Duration
	AnalysesTTL    time.Duration
	RedisRetention time.Duration
}

// Chains holds the provider chain of each generating stage.
type Chains struct {
	Plan   pipeline.Chain `yaml:"plan"`
	Prompt pipeline.Chain `yaml:"prompt"`
	Report pipeline.Chain `yaml:"report"`
}

type catalogue struct {
	Providers []providerEntry `yaml:"providers"`
	Chains    Chains          `yaml:"chains"`
	Retry     struct {
		MaxAttempts    int           `yaml:"max_attempts"`
		RateLimitBase  time.Duration `yaml:"rate_limit_base"`
		TransientDelay time.Duration `yaml:"transient_delay"`
	} `yaml:"retry"`
	Timeout time.Duration `yaml:"timeout"`
}

type providerEntry struct {
	Name       string            `yaml:"name"`
	Kind       string            `yaml:"kind"`
	Model      string            `yaml:"model"`
	BaseURL    string            `yaml:"base_url"`
	Credential string            `yaml:"credential"`
	Headers    map[string]string `yaml:"headers"`
}

// Load reads an optional .env file, then the environment and the provider
// catalogue (PROVIDERS_FILE or the embedded default), and validates the
// result. Variables already set in the environment win over .env.
func Load() (*Config, error) {
	if err := godotenv.Load(config.GetEnvString("ENV_FILE", ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: load env file: %w", entity.ErrConfiguration, err)
	}

	raw := defaultCatalogue
	if path := os.Getenv("PROVIDERS_FILE"); path != "" {
		// #nosec G304 -- operator-supplied path
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: read providers file: %w", entity.ErrConfiguration, err)
		}
		raw = data
	}
	cat, err := parseCatalogue(raw)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:         config.GetEnvInt("PORT", 8000),
		APIBaseURL:   strings.TrimRight(config.GetEnvString("API_BASE_URL", "http://localhost:8000"), "/"),
		DownloadsDir: config.GetEnvString("DOWNLOADS_DIR", "downloads"),
		GitHub:       loadGitHub(),
		Cache:        loadCache(),
		Providers:    cat.settings(os.Getenv),
		Chains:       cat.Chains,
		Policy:       llm.NewPolicy(cat.Retry.MaxAttempts, cat.Retry.RateLimitBase, cat.Retry.TransientDelay),
		Parallelism:  config.GetEnvInt("PIPELINE_PARALLELISM", 1),
		MaxRestarts:  config.GetEnvInt("PIPELINE_MAX_RESTARTS", pipeline.DefaultMaxRestarts),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseCatalogue(raw []byte) (*catalogue, error) {
	var cat catalogue
	if err := yaml.Unmarshal(raw, &cat); err != nil {
		return nil, fmt.Errorf("%w: parse providers: %w", entity.ErrConfiguration, err)
	}
	if cat.Retry.MaxAttempts == 0 {
		cat.Retry.MaxAttempts = llm.DefaultPolicy().MaxAttempts
	}
	if cat.Retry.RateLimitBase <= 0 {
		cat.Retry.RateLimitBase = 5 * time.Second
	}
	if cat.Retry.TransientDelay <= 0 {
		cat.Retry.TransientDelay = 3 * time.Second
	}
	return &cat, nil
}

// settings resolves credentials through getenv. Missing keys leave
// APIKey empty; the provider then reports a missing credential when called.
func (c *catalogue) settings(getenv func(string) string) []provider.Settings {
	out := make([]provider.Settings, 0, len(c.Providers))
	for _, p := range c.Providers {
		out = append(out, provider.Settings{
			Name:           p.Name,
			Kind:           p.Kind,
			Model:          p.Model,
			BaseURL:        p.BaseURL,
			APIKey:         getenv(p.Credential),
			CredentialName: p.Credential,
			Headers:        p.Headers,
			Timeout:        c.Timeout,
		})
	}
	return out
}

func loadGitHub() github.Config {
	def := github.DefaultConfig()
	return github.Config{
		Token:             config.GetEnvString("GITHUB_TOKEN", ""),
		Timeout:           config.GetEnvDuration("GITHUB_TIMEOUT", def.Timeout),
		RequestsPerSecond: config.GetEnvFloat("GITHUB_RPS", def.RequestsPerSecond),
		Burst:             config.GetEnvInt("GITHUB_BURST", def.Burst),
		BaseURL:           config.GetEnvString("GITHUB_API_URL", ""),
	}
}

func loadCache() CacheConfig {
	return CacheConfig{
		Backend:        strings.ToLower(config.GetEnvString("CACHE_BACKEND", BackendMemory)),
		DatabaseURL:    config.GetEnvString("DATABASE_URL", ""),
		RedisURL:       config.GetEnvString("REDIS_URL", ""),
		MemorySize:     config.GetEnvInt("CACHE_MEMORY_SIZE", 4096),
		IssuesTTL:      config.GetEnvDuration("CACHE_ISSUES_TTL", cache.DefaultIssuesTTL),
		AnalysesTTL:    config.GetEnvDuration("CACHE_ANALYSES_TTL", cache.DefaultAnalysesTTL),
		RedisRetention: config.GetEnvDuration("CACHE_REDIS_RETENTION", time.Hour),
	}
}

// Validate reports every problem at once, wrapped in ErrConfiguration.
func (c *Config) Validate() error {
	var errs []error
	if err := config.ValidatePort(c.Port); err != nil {
		errs = append(errs, fmt.Errorf("PORT: %w", err))
	}
	if c.DownloadsDir == "" {
		errs = append(errs, errors.New("DOWNLOADS_DIR: cannot be empty"))
	}
	if c.Parallelism < 1 {
		errs = append(errs, fmt.Errorf("PIPELINE_PARALLELISM: must be at least 1, got %d", c.Parallelism))
	}
	if c.MaxRestarts < 0 {
		errs = append(errs, fmt.Errorf("PIPELINE_MAX_RESTARTS: must not be negative, got %d", c.MaxRestarts))
	}

	switch c.Cache.Backend {
	case BackendMemory:
		if c.Cache.MemorySize < 1 {
			errs = append(errs, fmt.Errorf("CACHE_MEMORY_SIZE: must be positive, got %d", c.Cache.MemorySize))
		}
	case BackendPostgres:
		if c.Cache.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL: required for the postgres cache backend"))
		}
	case BackendRedis:
		if c.Cache.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL: required for the redis cache backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("CACHE_BACKEND: unknown backend %q", c.Cache.Backend))
	}
	for name, ttl := range map[string]time.Duration{
		"CACHE_ISSUES_TTL":   c.Cache.IssuesTTL,
		"CACHE_ANALYSES_TTL": c.Cache.AnalysesTTL,
	} {
		if err := config.ValidatePositiveDuration(ttl); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	names := make([]string, 0, len(c.Providers))
	for _, p := range c.Providers {
		if slices.Contains(names, p.Name) {
			errs = append(errs, fmt.Errorf("provider %q: duplicate name", p.Name))
		}
		names = append(names, p.Name)
	}
	for stage, chain := range map[string]pipeline.Chain{
		"plan":   c.Chains.Plan,
		"prompt": c.Chains.Prompt,
		"report": c.Chains.Report,
	} {
		if chain.Primary == "" {
			errs = append(errs, fmt.Errorf("chain %s: primary provider is required", stage))
		}
		for _, n := range append([]string{chain.Primary}, chain.Fallbacks...) {
			if n != "" && !slices.Contains(names, n) {
				errs = append(errs, fmt.Errorf("chain %s: unknown provider %q", stage, n))
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", entity.ErrConfiguration, errors.Join(errs...))
}

// ProviderStatus reports, per provider name, whether its credential is set.
func (c *Config) ProviderStatus() map[string]bool {
	out := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		out[p.Name] = p.APIKey != ""
	}
	return out
}
