// Package commands implements the issuetrend CLI commands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/Sumatoshi-tech/issuetrend/pkg/build"
	"github.com/Sumatoshi-tech/issuetrend/pkg/config"
	"github.com/Sumatoshi-tech/issuetrend/pkg/history"
	"github.com/Sumatoshi-tech/issuetrend/pkg/observability"
	"github.com/Sumatoshi-tech/issuetrend/pkg/report"
	"github.com/Sumatoshi-tech/issuetrend/pkg/store"
	"github.com/Sumatoshi-tech/issuetrend/pkg/version"
)

// ExitFailure is the exit code of a build whose status is FAILURE.
const ExitFailure = 2

// defaultEnvFile is loaded before the config when present.
const defaultEnvFile = ".env"

// ErrNoBuilds is returned when a command needs a build and none is recorded.
var ErrNoBuilds = errors.New("no builds recorded")

// ExitError makes the process exit with Code.
type ExitError struct {
	Code int
	Err  error
}

// Error implements error.
func (e *ExitError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// Options are the persistent flags shared by every command.
type Options struct {
	ConfigPath string
	EnvFile    string
}

// Bind registers the options on flags.
func (o *Options) Bind(flags *pflag.FlagSet) {
	flags.StringVarP(&o.ConfigPath, "config", "c", "", "config file (default: .issuetrend.yaml in CWD or $HOME)")
	flags.StringVar(&o.EnvFile, "env-file", defaultEnvFile, "dotenv file loaded before the config")
}

// app holds what every command needs after startup.
type app struct {
	cfg       *config.Config
	providers observability.Providers
	store     store.Store
	logger    *slog.Logger
}

// openApp loads the configuration, starts telemetry and opens the store.
// adjust, if set, applies flag overrides before telemetry starts.
func openApp(ctx context.Context, opts *Options, mode observability.AppMode, adjust func(*config.Config)) (*app, error) {
	err := config.LoadEnvFile(opts.EnvFile)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if adjust != nil {
		adjust(cfg)
	}

	providers, err := observability.Init(cfg.Telemetry(mode, version.Version))
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		_ = providers.Shutdown(ctx)

		return nil, err
	}

	return &app{cfg: cfg, providers: providers, store: st, logger: providers.Logger}, nil
}

// Close releases the store and flushes telemetry.
func (a *app) Close(ctx context.Context) {
	if err := a.store.Close(); err != nil {
		a.logger.WarnContext(ctx, "store close failed", "error", err)
	}

	if err := a.providers.Shutdown(context.WithoutCancel(ctx)); err != nil {
		a.logger.WarnContext(ctx, "observability shutdown failed", "error", err)
	}
}

// resolve maps a non-positive id to the latest stored build.
func (a *app) resolve(ctx context.Context, id build.ID) (build.ID, error) {
	if id > 0 {
		return id, nil
	}

	latest, ok, err := history.Latest(ctx, a.store, 0)
	if err != nil {
		return 0, err
	}

	if !ok {
		return 0, ErrNoBuilds
	}

	return latest, nil
}

// document loads the reference of r, if still stored, and builds the view.
func (a *app) document(ctx context.Context, r *build.Result) (*report.Document, error) {
	if r.Reference == nil {
		return report.NewDocument(r, nil), nil
	}

	reference, err := a.store.Load(ctx, *r.Reference)
	if err != nil {
		if !errors.Is(err, history.ErrNotFound) {
			return nil, fmt.Errorf("load reference %d: %w", *r.Reference, err)
		}

		a.logger.WarnContext(ctx, "reference build no longer stored", "build", r.BuildID, "reference", *r.Reference)
	}

	return report.NewDocument(r, reference), nil
}

// renderFlags are the output flags of commands that print reports.
type renderFlags struct {
	format  string
	maxRows int
	noColor bool
}

func (f *renderFlags) bind(flags *pflag.FlagSet) {
	flags.StringVarP(&f.format, "format", "f", string(report.FormatText), "output format: text, json or yaml")
	flags.IntVar(&f.maxRows, "max-rows", 0, "maximum rows per issue table (0 shows all)")
	flags.BoolVar(&f.noColor, "no-color", false, "disable colored output")
}

func (f *renderFlags) parse() (report.Format, report.Options, error) {
	format, err := report.ParseFormat(f.format)
	if err != nil {
		return "", report.Options{}, err
	}

	return format, report.Options{MaxRows: f.maxRows, Color: !f.noColor && !color.NoColor}, nil
}
