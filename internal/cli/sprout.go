package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/grove-sh/grove/internal/derive"
	"github.com/grove-sh/grove/internal/event"
)

// NewSproutCommand creates the sprout command group.
func NewSproutCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sprout",
		Short: "Create and manage goals",
	}
	cmd.AddCommand(newSproutCreateCommand(rootOpts))
	cmd.AddCommand(newSproutCompleteCommand(rootOpts))
	cmd.AddCommand(newSproutAbandonCommand(rootOpts))
	return cmd
}

// SproutCreateOptions holds flags for sprout create.
type SproutCreateOptions struct {
	*RootOptions
	Plot       string
	Title      string
	Duration   string
	Difficulty string
	Leaf       string
}

// SproutCreateResult is the JSON payload for sprout create.
type SproutCreateResult struct {
	SproutID string `json:"sproutId"`
	SoilCost int    `json:"soilCost"`
}

func newSproutCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SproutCreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Plant a new sprout",
		Long: `Plant a new sprout in a plot.

The soil cost is computed from the duration and difficulty classes and
paid from available soil at creation time.

Examples:
  grove sprout create --plot health --title "Run 3x a week" --duration month --difficulty steady
  grove sprout create --plot writing --title "Draft chapter" --duration week --difficulty tough --leaf novel`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSproutCreate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Plot, "plot", "", "plot (context) id (required)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "sprout title (required)")
	cmd.Flags().StringVar(&opts.Duration, "duration", "week", "duration class (day|week|month|season)")
	cmd.Flags().StringVar(&opts.Difficulty, "difficulty", "steady", "difficulty class (gentle|steady|tough)")
	cmd.Flags().StringVar(&opts.Leaf, "leaf", "", "attach to a leaf (saga) id")
	_ = cmd.MarkFlagRequired("plot")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func runSproutCreate(opts *SproutCreateOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	e, err := openEnv(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.close()

	dur := event.Duration(opts.Duration)
	if !event.ValidDuration(dur) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid duration %q", opts.Duration))
	}
	diff := event.Difficulty(opts.Difficulty)
	if !event.ValidDifficulty(diff) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid difficulty %q", opts.Difficulty))
	}

	now := time.Now()
	state, err := deriveState(ctx, e, now)
	if err != nil {
		return err
	}

	cost := derive.CreationCost(dur, diff)
	if state.Soil.Available < float64(cost) {
		return NewExitError(ExitFailure,
			fmt.Sprintf("not enough soil: need %d, have %.1f", cost, state.Soil.Available))
	}
	if opts.Leaf != "" {
		if _, ok := state.Leaves[opts.Leaf]; !ok {
			return NewExitError(ExitFailure, fmt.Sprintf("unknown leaf %q", opts.Leaf))
		}
	}

	ev := event.SproutCreated{
		Header:     event.NewHeader(uuid.NewString(), now),
		SproutID:   uuid.NewString(),
		PlotID:     opts.Plot,
		Title:      opts.Title,
		Duration:   dur,
		Difficulty: diff,
		SoilCost:   cost,
		LeafID:     opts.Leaf,
	}
	if err := e.record(ctx, ev); err != nil {
		return WrapExitError(ExitCommandError, "record sprout", err)
	}

	if opts.Format == "json" {
		return outputJSON(cmd.OutOrStdout(), SproutCreateResult{SproutID: ev.SproutID, SoilCost: cost})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Planted %q in %s (cost %d soil)\n", opts.Title, opts.Plot, cost)
	fmt.Fprintf(cmd.OutOrStdout(), "  id: %s\n", ev.SproutID)
	return nil
}

// SproutCompleteOptions holds flags for sprout complete.
type SproutCompleteOptions struct {
	*RootOptions
	Outcome int
	Note    string
}

// SproutCompleteResult is the JSON payload for sprout complete.
type SproutCompleteResult struct {
	SproutID       string  `json:"sproutId"`
	Outcome        int     `json:"outcome"`
	CapacityGained float64 `json:"capacityGained"`
}

func newSproutCompleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SproutCompleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "complete <sprout-id>",
		Short: "Complete a sprout with a 1-5 outcome",
		Args:  cobra.ExactArgs(1),
		Long: `Complete an active sprout.

The capacity gained is computed from the sprout's duration and
difficulty, the outcome self-assessment, and the diminishing-returns
curve at the current capacity, then recorded on the event.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSproutComplete(opts, cmd, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.Outcome, "outcome", 3, "outcome self-assessment (1-5)")
	cmd.Flags().StringVar(&opts.Note, "note", "", "free-form completion note")

	return cmd
}

func runSproutComplete(opts *SproutCompleteOptions, cmd *cobra.Command, sproutID string) error {
	ctx := context.Background()
	e, err := openEnv(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.close()

	if opts.Outcome < 1 || opts.Outcome > 5 {
		return NewExitError(ExitCommandError, fmt.Sprintf("outcome must be 1-5, got %d", opts.Outcome))
	}

	now := time.Now()
	state, err := deriveState(ctx, e, now)
	if err != nil {
		return err
	}
	sp, ok := state.Sprouts[sproutID]
	if !ok {
		return NewExitError(ExitFailure, fmt.Sprintf("unknown sprout %q", sproutID))
	}
	if sp.State.Terminal() {
		return NewExitError(ExitFailure, fmt.Sprintf("sprout %q is already %s", sproutID, sp.State))
	}

	gained := derive.CompletionReward(sp.Duration, sp.Difficulty, opts.Outcome, state.Soil.Capacity)
	ev := event.SproutCompleted{
		Header:         event.NewHeader(uuid.NewString(), now),
		SproutID:       sproutID,
		Outcome:        opts.Outcome,
		CapacityGained: gained,
		Note:           opts.Note,
	}
	if err := e.record(ctx, ev); err != nil {
		return WrapExitError(ExitCommandError, "record completion", err)
	}

	if opts.Format == "json" {
		return outputJSON(cmd.OutOrStdout(), SproutCompleteResult{
			SproutID:       sproutID,
			Outcome:        opts.Outcome,
			CapacityGained: gained,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Completed %q (outcome %d, +%.1f capacity)\n", sp.Title, opts.Outcome, gained)
	return nil
}

// SproutAbandonResult is the JSON payload for sprout abandon.
type SproutAbandonResult struct {
	SproutID     string  `json:"sproutId"`
	RefundAmount float64 `json:"refundAmount"`
}

func newSproutAbandonCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "abandon <sprout-id>",
		Short:         "Abandon a sprout and reclaim part of its soil",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		return runSproutAbandon(rootOpts, cmd, args[0])
	}
	return cmd
}

func runSproutAbandon(rootOpts *RootOptions, cmd *cobra.Command, sproutID string) error {
	ctx := context.Background()
	e, err := openEnv(ctx, rootOpts)
	if err != nil {
		return err
	}
	defer e.close()

	now := time.Now()
	state, err := deriveState(ctx, e, now)
	if err != nil {
		return err
	}
	sp, ok := state.Sprouts[sproutID]
	if !ok {
		return NewExitError(ExitFailure, fmt.Sprintf("unknown sprout %q", sproutID))
	}
	if sp.State.Terminal() {
		return NewExitError(ExitFailure, fmt.Sprintf("sprout %q is already %s", sproutID, sp.State))
	}

	refund := derive.AbandonRefund(sp.SoilCost)
	ev := event.SproutAbandoned{
		Header:       event.NewHeader(uuid.NewString(), now),
		SproutID:     sproutID,
		RefundAmount: refund,
	}
	if err := e.record(ctx, ev); err != nil {
		return WrapExitError(ExitCommandError, "record abandonment", err)
	}

	if rootOpts.Format == "json" {
		return outputJSON(cmd.OutOrStdout(), SproutAbandonResult{SproutID: sproutID, RefundAmount: refund})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Abandoned %q (+%.1f soil back)\n", sp.Title, refund)
	return nil
}

// deriveState loads the full local log and folds it as of now.
func deriveState(ctx context.Context, e *env, now time.Time) (*derive.State, error) {
	events, err := e.store.All(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "read event log", err)
	}
	return derive.Derive(events, now), nil
}
