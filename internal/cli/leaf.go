package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/grove-sh/grove/internal/event"
)

// LeafNewResult is the JSON payload for leaf new.
type LeafNewResult struct {
	LeafID string `json:"leafId"`
}

// NewLeafCommand creates the leaf command group.
func NewLeafCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaf",
		Short: "Manage leaves (multi-sprout sagas)",
	}
	cmd.AddCommand(newLeafNewCommand(rootOpts))
	return cmd
}

func newLeafNewCommand(rootOpts *RootOptions) *cobra.Command {
	var plot string

	cmd := &cobra.Command{
		Use:           "new <name>",
		Short:         "Start a new leaf in a plot",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLeafNew(rootOpts, cmd, plot, args[0])
		},
	}

	cmd.Flags().StringVar(&plot, "plot", "", "plot (context) id (required)")
	_ = cmd.MarkFlagRequired("plot")

	return cmd
}

func runLeafNew(rootOpts *RootOptions, cmd *cobra.Command, plotID, name string) error {
	ctx := context.Background()
	e, err := openEnv(ctx, rootOpts)
	if err != nil {
		return err
	}
	defer e.close()

	ev := event.LeafCreated{
		Header: event.NewHeader(uuid.NewString(), time.Now()),
		LeafID: uuid.NewString(),
		PlotID: plotID,
		Name:   name,
	}
	if err := e.record(ctx, ev); err != nil {
		return WrapExitError(ExitCommandError, "record leaf", err)
	}

	if rootOpts.Format == "json" {
		return outputJSON(cmd.OutOrStdout(), LeafNewResult{LeafID: ev.LeafID})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Started leaf %q in %s\n", name, plotID)
	fmt.Fprintf(cmd.OutOrStdout(), "  id: %s\n", ev.LeafID)
	return nil
}
