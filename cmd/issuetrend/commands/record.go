package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/issuetrend/pkg/build"
	"github.com/Sumatoshi-tech/issuetrend/pkg/config"
	"github.com/Sumatoshi-tech/issuetrend/pkg/fingerprint"
	"github.com/Sumatoshi-tech/issuetrend/pkg/gitlib"
	"github.com/Sumatoshi-tech/issuetrend/pkg/health"
	"github.com/Sumatoshi-tech/issuetrend/pkg/history"
	"github.com/Sumatoshi-tech/issuetrend/pkg/notify"
	"github.com/Sumatoshi-tech/issuetrend/pkg/observability"
	"github.com/Sumatoshi-tech/issuetrend/pkg/recorder"
	"github.com/Sumatoshi-tech/issuetrend/pkg/report"
	"github.com/Sumatoshi-tech/issuetrend/pkg/source"
)

type recordFlags struct {
	buildID         int64
	previous        int64
	outcome         string
	reports         []string
	blame           bool
	failOnStatus    bool
	metricsTextfile string
	render          renderFlags
}

// NewRecordCommand creates the record command.
func NewRecordCommand(opts *Options) *cobra.Command {
	var flags recordFlags

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a build and classify its issues",
		Long: `Record the analysis output of one build.

Issues are read from one or more JSON reports ("-" reads stdin), fingerprinted
against the source tree, and compared with the reference build selected by the
configured policy. The result is persisted and summarized.`,
		Example: `  issuetrend record --build 42 --report lint.json
  golangci-lint run --out-format json | convert | issuetrend record --build 43 --fail-on-status`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRecord(cmd, opts, &flags)
		},
	}

	cmd.Flags().Int64Var(&flags.buildID, "build", 0, "id of the build to record (required)")
	cmd.Flags().Int64Var(&flags.previous, "previous", 0, "id of the preceding build (default: latest stored)")
	cmd.Flags().StringVar(&flags.outcome, "outcome", string(build.OutcomeSuccess),
		"job outcome: success, unstable, failure or aborted")
	cmd.Flags().StringSliceVarP(&flags.reports, "report", "r", []string{source.StdinName}, "issue report files")
	cmd.Flags().BoolVar(&flags.blame, "blame", false, "attribute issues with git blame (overrides blame.enabled)")
	cmd.Flags().BoolVar(&flags.failOnStatus, "fail-on-status", false,
		fmt.Sprintf("exit with code %d when the build status is FAILURE", ExitFailure))
	cmd.Flags().StringVar(&flags.metricsTextfile, "metrics-textfile", "",
		"write Prometheus metrics to this file (overrides observability.metrics_textfile)")
	flags.render.bind(cmd.Flags())

	_ = cmd.MarkFlagRequired("build")

	return cmd
}

func runRecord(cmd *cobra.Command, opts *Options, flags *recordFlags) error {
	ctx := cmd.Context()

	format, renderOpts, err := flags.render.parse()
	if err != nil {
		return err
	}

	outcome, err := build.ParseOutcome(flags.outcome)
	if err != nil {
		return err
	}

	a, err := openApp(ctx, opts, observability.ModeCLI, func(cfg *config.Config) {
		if cmd.Flags().Changed("blame") {
			cfg.Blame.Enabled = flags.blame
		}

		if flags.metricsTextfile != "" {
			cfg.Observability.MetricsTextfile = flags.metricsTextfile
		}
	})
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	rec, publisher, err := newRecorder(a)
	if err != nil {
		return err
	}
	defer func() { _ = publisher.Close() }()

	sources := make(source.Multi, 0, len(flags.reports))
	for _, path := range flags.reports {
		sources = append(sources, source.JSONReport{Path: path})
	}

	issues, err := sources.Issues(ctx)
	if err != nil {
		return err
	}

	in := recorder.Input{BuildID: flags.buildID, Outcome: outcome, Issues: issues}
	if flags.previous > 0 {
		in.Previous = &flags.previous
	}

	res, err := rec.Record(ctx, in)
	if err != nil {
		return err
	}

	if path := a.cfg.Observability.MetricsTextfile; path != "" {
		if err := a.providers.WriteTextfile(path); err != nil {
			a.logger.WarnContext(ctx, "metrics textfile not written", "path", path, "error", err)
		}
	}

	doc, err := a.document(ctx, res)
	if err != nil {
		return err
	}

	if err := report.WriteBuild(cmd.OutOrStdout(), format, doc, renderOpts); err != nil {
		return err
	}

	if flags.failOnStatus && res.Status == health.StatusFailure {
		return &ExitError{Code: ExitFailure, Err: fmt.Errorf("build %d status is %s (%s)", res.BuildID, res.Status, doc.Gate)}
	}

	return nil
}

// newRecorder wires the recorder from the configuration. The returned
// publisher must be closed by the caller.
func newRecorder(a *app) (*recorder.Recorder, notify.Publisher, error) {
	cfg := a.cfg

	thresholds, err := cfg.Thresholds()
	if err != nil {
		return nil, nil, err
	}

	evaluator, err := health.NewEvaluator(thresholds)
	if err != nil {
		return nil, nil, err
	}

	maxSize, err := cfg.MaxFileSize()
	if err != nil {
		return nil, nil, err
	}

	metrics, err := observability.NewRecorderMetrics(a.providers.Meter)
	if err != nil {
		return nil, nil, err
	}

	deps := recorder.Deps{
		Fingerprinter: fingerprint.New(
			fingerprint.NewOSSource(cfg.Fingerprint.SourceRoot, maxSize),
			fingerprint.WithContextLines(cfg.Fingerprint.ContextLines),
			fingerprint.WithLogger(a.logger),
		),
		Aggregator: history.NewAggregator(
			history.NewCached(a.store, cfg.History.CacheEntries),
			history.WithPolicy(cfg.Policy()),
			history.WithMaxDepth(cfg.History.MaxDepth),
			history.WithLogger(a.logger),
		),
		BlameWorkers: cfg.Blame.Workers,
		Filter:       cfg.PathFilter(),
		Metrics:      metrics,
		Tracer:       a.providers.Tracer,
		Logger:       a.logger,
	}

	if cfg.Blame.Enabled {
		deps.Oracle = gitlib.BlameOracle{RepoPath: cfg.Blame.Repository, Prefix: cfg.Blame.Prefix}
	}

	var publisher notify.Publisher = notify.Nop{}

	if cfg.Notify.NATSURL != "" {
		nats, err := notify.DialNATS(cfg.Notify.NATSURL, cfg.Notify.Subject, a.logger)
		if err != nil {
			return nil, nil, err
		}

		publisher = nats
	}

	deps.Publisher = publisher

	rec, err := recorder.New(a.store, evaluator, deps)
	if err != nil {
		_ = publisher.Close()

		return nil, nil, err
	}

	return rec, publisher, nil
}
