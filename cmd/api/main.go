package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sourcesage/internal/app"
	"sourcesage/internal/config"
	hhttp "sourcesage/internal/handler/http"
	"sourcesage/internal/handler/http/issue"
	"sourcesage/internal/handler/http/requestid"
	"sourcesage/internal/observability/logging"
	"sourcesage/internal/observability/tracing"
	"sourcesage/internal/pipeline"
	envconfig "sourcesage/pkg/config"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

func main() {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("api exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	shutdownTracing, err := tracing.Setup(ctx, tracing.ConfigFromEnv("sourcesage-api"))
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown failed", slog.Any("error", err))
		}
	}()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("cache store close failed", slog.Any("error", err))
		}
	}()

	handler, err := setupHandler(a, logger, getVersion())
	if err != nil {
		return err
	}
	return serve(ctx, logger, cfg.Port, handler)
}

// getVersion returns the application version from environment or default.
func getVersion() string {
	return envconfig.GetEnvString("VERSION", "dev")
}

func setupHandler(a *app.App, logger *slog.Logger, version string) (http.Handler, error) {
	origins := envconfig.GetEnvStringList("CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"})

	limiter, err := hhttp.NewRateLimiter(
		envconfig.GetEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		envconfig.GetEnvInt("RATE_LIMIT_BURST", 10),
		envconfig.GetEnvInt("RATE_LIMIT_MAX_CLIENTS", 10000),
	)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("GET /api/health", &hhttp.HealthHandler{
		Version:      version,
		Providers:    a.Config.ProviderStatus(),
		GitHubToken:  a.Config.GitHub.Token != "",
		CacheBackend: a.Store.Backend,
		CacheProbe:   a.Store.Ping,
	})
	mux.Handle("GET /health/live", hhttp.LiveHandler{})
	mux.Handle("GET /health/ready", &hhttp.ReadyHandler{Probe: a.Store.Ping})
	mux.Handle("GET /metrics", promhttp.Handler())

	issue.Register(mux, issue.Routes{
		Search:   issue.SearchHandler{Svc: a.Discover},
		Analyze:  issue.AnalyzeHandler{Svc: a.Analyze},
		Download: issue.DownloadHandler{Files: a.Renderer},
		Progress: &issue.ProgressHandler{
			Search: a.Discover,
			Analyze: func(o pipeline.Observer) issue.Analyzer {
				return a.Analyze.WithObserver(o)
			},
			Origins: origins,
			Logger:  logger,
		},
		Expensive: limiter.Limit,
	})

	return hhttp.Chain(mux,
		hhttp.CORS(origins),
		requestid.Middleware,
		tracing.Middleware,
		hhttp.Recover(logger),
		hhttp.Logging(logger),
		hhttp.LimitRequestBody(maxBodyBytes),
		hhttp.Metrics,
	), nil
}

func serve(ctx context.Context, logger *slog.Logger, port int, handler http.Handler) error {
	addr := ":" + strconv.Itoa(port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", addr), slog.String("version", getVersion()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
