package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/issuetrend/pkg/build"
	"github.com/Sumatoshi-tech/issuetrend/pkg/observability"
	"github.com/Sumatoshi-tech/issuetrend/pkg/report"
)

// NewShowCommand creates the show command.
func NewShowCommand(opts *Options) *cobra.Command {
	var render renderFlags

	cmd := &cobra.Command{
		Use:   "show [build]",
		Short: "Show a recorded build",
		Long:  "Show a recorded build with its new, fixed and changed issues. Without an id the latest build is shown.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id build.ID

			if len(args) == 1 {
				parsed, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil || parsed <= 0 {
					return fmt.Errorf("invalid build id %q", args[0])
				}

				id = parsed
			}

			return runShow(cmd, opts, &render, id)
		},
	}

	render.bind(cmd.Flags())

	return cmd
}

func runShow(cmd *cobra.Command, opts *Options, render *renderFlags, id build.ID) error {
	ctx := cmd.Context()

	format, renderOpts, err := render.parse()
	if err != nil {
		return err
	}

	a, err := openApp(ctx, opts, observability.ModeCLI, nil)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	id, err = a.resolve(ctx, id)
	if err != nil {
		return err
	}

	r, err := a.store.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("load build %d: %w", id, err)
	}

	doc, err := a.document(ctx, r)
	if err != nil {
		return err
	}

	return report.WriteBuild(cmd.OutOrStdout(), format, doc, renderOpts)
}
