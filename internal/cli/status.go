package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/grove-sh/grove/internal/derive"
	"github.com/grove-sh/grove/internal/syncer"
)

// StatusResult is the JSON payload for the status command.
type StatusResult struct {
	Soil      derive.Soil   `json:"soil"`
	Water     int           `json:"water"`
	Sun       int           `json:"sun"`
	Plots     []PlotStatus  `json:"plots"`
	Sync      syncer.Status `json:"sync,omitempty"`
	Sprouts   int           `json:"sprouts"`
	Completed int           `json:"completed"`
}

// PlotStatus summarizes one plot for display.
type PlotStatus struct {
	ID     string           `json:"id"`
	Active []*derive.Sprout `json:"active"`
	Leaves int              `json:"leaves"`
	Weekly int              `json:"weekly"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "status",
		Short:         "Show the garden: soil, water, sun, and active sprouts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		return runStatus(rootOpts, cmd)
	}
	return cmd
}

func runStatus(rootOpts *RootOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	e, err := openEnv(ctx, rootOpts)
	if err != nil {
		return err
	}
	defer e.close()

	now := time.Now()
	events, err := e.store.All(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "read event log", err)
	}
	state := derive.Derive(events, now)

	result := StatusResult{
		Soil:    state.Soil,
		Water:   derive.WaterAvailable(events, now),
		Sun:     derive.SunAvailable(events, now),
		Sprouts: len(state.Sprouts),
	}
	for _, sp := range state.Sprouts {
		if sp.State == derive.SproutCompleted {
			result.Completed++
		}
	}
	for _, plot := range state.Plots() {
		result.Plots = append(result.Plots, PlotStatus{
			ID:     plot,
			Active: state.ActiveSprouts(plot),
			Leaves: len(state.LeavesByPlot[plot]),
			Weekly: len(state.Weekly[plot]),
		})
	}
	if e.coord != nil {
		result.Sync = e.coord.Status(ctx)
	}

	if rootOpts.Format == "json" {
		return outputJSON(cmd.OutOrStdout(), result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Soil:  %.1f / %.1f\n", state.Soil.Available, state.Soil.Capacity)
	fmt.Fprintf(w, "Water: %d / %d today\n", result.Water, derive.WaterCapacity)
	fmt.Fprintf(w, "Sun:   %d / %d this week\n", result.Sun, derive.SunCapacity)
	if result.Sync != "" {
		fmt.Fprintf(w, "Sync:  %s\n", result.Sync)
	}
	fmt.Fprintln(w)

	if len(result.Plots) == 0 {
		fmt.Fprintln(w, "The garden is empty. Plant something: grove sprout create")
		return nil
	}
	for _, plot := range result.Plots {
		fmt.Fprintf(w, "%s (%d active", plot.ID, len(plot.Active))
		if plot.Leaves > 0 {
			fmt.Fprintf(w, ", %d leaves", plot.Leaves)
		}
		fmt.Fprintln(w, ")")
		for _, sp := range plot.Active {
			fmt.Fprintf(w, "  • %s [%s/%s]", sp.Title, sp.Duration, sp.Difficulty)
			if rootOpts.Verbose {
				fmt.Fprintf(w, " %s", sp.ID)
			}
			fmt.Fprintln(w)
		}
	}
	return nil
}
