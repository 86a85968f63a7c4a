package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/issuetrend/pkg/config"
	"github.com/Sumatoshi-tech/issuetrend/pkg/mcp"
	"github.com/Sumatoshi-tech/issuetrend/pkg/observability"
	"github.com/Sumatoshi-tech/issuetrend/pkg/version"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand(opts *Options) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes the recorded build history as tools that AI agents
can discover and invoke:
  - issuetrend_build: one build with its new, fixed and changed issues
  - issuetrend_trend: issue counts over recent builds with a summary
  - issuetrend_builds: ids of all recorded builds`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx, opts, observability.ModeMCP, func(cfg *config.Config) {
				cfg.Observability.LogJSON = true

				if debug {
					cfg.Observability.LogLevel = "debug"
				}
			})
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			red, err := observability.NewREDMetrics(a.providers.Meter)
			if err != nil {
				return err
			}

			srv, err := mcp.NewServer(mcp.ServerDeps{
				Store:       a.store,
				Version:     version.Version,
				MaxDepth:    a.cfg.History.MaxDepth,
				TrendLength: a.cfg.History.TrendLength,
				Logger:      a.logger,
				Metrics:     red,
				Tracer:      a.providers.Tracer,
			})
			if err != nil {
				return err
			}

			return srv.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging to stderr")

	return cmd
}
