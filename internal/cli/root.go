// Package cli implements the sourcesage command line: issue search,
// analysis, the interactive pipeline run and a one-off cache sweep.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sourcesage/internal/app"
	"sourcesage/internal/config"
	"sourcesage/internal/infra/worker"
	"sourcesage/internal/observability/logging"
	"sourcesage/internal/pipeline"
	"sourcesage/internal/usecase/analyze"
	"sourcesage/internal/usecase/discover"
)

var (
	Version = "dev"
	Commit  = "none"
)

// Searcher runs issue searches.
type Searcher interface {
	Search(ctx context.Context, in discover.Input) (*discover.Result, error)
}

// Analyzer analyzes issue URLs.
type Analyzer interface {
	Analyze(ctx context.Context, req analyze.Request) (*analyze.Result, error)
}

// Services is what the commands run against.
type Services struct {
	Search  Searcher
	Analyze func(o pipeline.Observer) Analyzer
	Machine func(opts ...pipeline.MachineOption) *pipeline.Machine
	Sweep   func(ctx context.Context) (int64, error)
	Close   func() error
}

// Loader builds the services for one command invocation.
type Loader func(ctx context.Context, logger *slog.Logger) (*Services, error)

// NewRootCmd returns the command tree. load is called lazily by the
// subcommands that need services.
func NewRootCmd(load Loader) *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:     "sourcesage",
		Version: Version + " (" + Commit + ")",
		Short:   "Find good first issues and turn them into contribution plans",
		Long: `SourceSage finds good-first-issues on GitHub that match your skills,
compiles their context, asks language models for a solution plan and a
coding-assistant prompt, and can draft a proposal document per issue.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	logger := func() *slog.Logger {
		level := os.Getenv("LOG_LEVEL")
		if verbose {
			level = "debug"
		}
		if level == "" {
			level = "warn"
		}
		return logging.New(os.Stderr, level, "text")
	}

	root.AddCommand(
		newSearchCmd(load, logger),
		newAnalyzeCmd(load, logger),
		newRunCmd(load, logger),
		newSweepCmd(load, logger),
	)
	return root
}

// Execute runs the CLI against the configured services.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd(LoadServices).ExecuteContext(ctx)
}

// LoadServices wires the services from the environment.
func LoadServices(ctx context.Context, logger *slog.Logger) (*Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	sweeper := worker.NewSweeper(a.Store.Repo, worker.DefaultSweepConfig(), logger)
	sweep := sweeper.RunOnce
	if err := a.Store.Err; err != nil {
		sweep = func(context.Context) (int64, error) { return 0, err }
	}
	return &Services{
		Search: a.Discover,
		Analyze: func(o pipeline.Observer) Analyzer {
			if o == nil {
				return a.Analyze
			}
			return a.Analyze.WithObserver(o)
		},
		Machine: a.Machine,
		Sweep:   sweep,
		Close:   a.Close,
	}, nil
}

// withServices loads the services, runs fn and closes them.
func withServices(cmd *cobra.Command, load Loader, logger func() *slog.Logger, fn func(*Services) error) error {
	l := logger()
	slog.SetDefault(l)
	svc, err := load(cmd.Context(), l)
	if err != nil {
		return err
	}
	if svc.Close != nil {
		defer func() {
			if err := svc.Close(); err != nil {
				l.Warn("close failed", slog.Any("error", err))
			}
		}()
	}
	return fn(svc)
}
