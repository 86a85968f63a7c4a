// Package main provides the entry point for the issuetrend CLI tool.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/issuetrend/cmd/issuetrend/commands"
	"github.com/Sumatoshi-tech/issuetrend/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	opts := &commands.Options{}

	rootCmd := &cobra.Command{
		Use:   "issuetrend",
		Short: "issuetrend - static analysis issue tracking across builds",
		Long: `issuetrend correlates static analysis findings across builds.

Commands:
  record    Record a build and classify its issues as new, fixed or outstanding
  show      Show a recorded build
  trend     Show the issue trend over recent builds
  mcp       Serve the build history over MCP`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	opts.Bind(rootCmd.PersistentFlags())

	rootCmd.AddCommand(commands.NewRecordCommand(opts))
	rootCmd.AddCommand(commands.NewShowCommand(opts))
	rootCmd.AddCommand(commands.NewTrendCommand(opts))
	rootCmd.AddCommand(commands.NewMCPCommand(opts))
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		var exitErr *commands.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}

		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "issuetrend %s\n", version.String())
		},
	}
}
