package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/issuetrend/pkg/history"
	"github.com/Sumatoshi-tech/issuetrend/pkg/observability"
	"github.com/Sumatoshi-tech/issuetrend/pkg/report"
)

type trendFlags struct {
	head   int64
	length int
	render renderFlags
}

// NewTrendCommand creates the trend command.
func NewTrendCommand(opts *Options) *cobra.Command {
	var flags trendFlags

	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Show the issue trend over recent builds",
		Long: `Show issue counts along the predecessor chain of a build, oldest first,
followed by a summary with the smoothed count and its slope.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrend(cmd, opts, &flags)
		},
	}

	cmd.Flags().Int64Var(&flags.head, "head", 0, "newest build of the trend (default: latest)")
	cmd.Flags().IntVarP(&flags.length, "length", "n", 0, "number of builds (default: history.trend_length)")
	flags.render.bind(cmd.Flags())

	return cmd
}

func runTrend(cmd *cobra.Command, opts *Options, flags *trendFlags) error {
	ctx := cmd.Context()

	format, renderOpts, err := flags.render.parse()
	if err != nil {
		return err
	}

	a, err := openApp(ctx, opts, observability.ModeCLI, nil)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	head, err := a.resolve(ctx, flags.head)
	if err != nil {
		return err
	}

	length := flags.length
	if length <= 0 {
		length = a.cfg.History.TrendLength
	}

	agg := history.NewAggregator(
		history.NewCached(a.store, a.cfg.History.CacheEntries),
		history.WithMaxDepth(a.cfg.History.MaxDepth),
		history.WithLogger(a.logger),
	)

	points, err := agg.Trend(ctx, head, length)
	if err != nil {
		return err
	}

	trend := report.Trend{Points: points, Summary: history.Summarize(points)}

	return report.WriteTrend(cmd.OutOrStdout(), format, trend, renderOpts)
}
