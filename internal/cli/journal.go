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

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Prompt string
}

// JournalResult is the JSON payload for journal and reflect.
type JournalResult struct {
	WaterLeft int `json:"waterLeft,omitempty"`
	SunLeft   int `json:"sunLeft,omitempty"`
}

// NewJournalCommand creates the journal command (daily entries).
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal <sprout-id> <content>",
		Short: "Water a sprout with a daily journal entry",
		Args:  cobra.ExactArgs(2),
		Long: `Record a daily journal entry against a sprout.

Each entry spends one water. Water refills to capacity at the daily
reset hour; entries past the daily bonus cap still record but grant no
extra soil.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(opts, cmd, args[0], args[1])
		},
	}

	cmd.Flags().StringVar(&opts.Prompt, "prompt", "", "prompt the entry answers")

	return cmd
}

func runJournal(opts *JournalOptions, cmd *cobra.Command, sproutID, content string) error {
	ctx := context.Background()
	e, err := openEnv(ctx, opts.RootOptions)
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

	sp, ok := state.Sprouts[sproutID]
	if !ok {
		return NewExitError(ExitFailure, fmt.Sprintf("unknown sprout %q", sproutID))
	}
	if derive.WaterAvailable(events, now) <= 0 {
		return NewExitError(ExitFailure, "no water left today")
	}

	ev := event.DailyEntry{
		Header:   event.NewHeader(uuid.NewString(), now),
		SproutID: sproutID,
		Content:  content,
		Prompt:   opts.Prompt,
	}
	if err := e.record(ctx, ev); err != nil {
		return WrapExitError(ExitCommandError, "record journal entry", err)
	}

	left := derive.WaterAvailable(append(events, ev), now)
	if opts.Format == "json" {
		return outputJSON(cmd.OutOrStdout(), JournalResult{WaterLeft: left})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Watered %q (%d water left today)\n", sp.Title, left)
	return nil
}

// ReflectOptions holds flags for the reflect command.
type ReflectOptions struct {
	*RootOptions
	Label  string
	Prompt string
}

// NewReflectCommand creates the reflect command (weekly entries).
func NewReflectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReflectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reflect <plot-id> <content>",
		Short: "Give a plot sun with a weekly reflection",
		Args:  cobra.ExactArgs(2),
		Long: `Record a weekly reflection against a plot.

Each reflection spends one sun. Sun refills to capacity at the weekly
reset, Monday at the reset hour.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReflect(opts, cmd, args[0], args[1])
		},
	}

	cmd.Flags().StringVar(&opts.Label, "label", "", "short label for the reflection")
	cmd.Flags().StringVar(&opts.Prompt, "prompt", "", "prompt the reflection answers")

	return cmd
}

func runReflect(opts *ReflectOptions, cmd *cobra.Command, plotID, content string) error {
	ctx := context.Background()
	e, err := openEnv(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.close()

	now := time.Now()
	events, err := e.store.All(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "read event log", err)
	}

	if derive.SunAvailable(events, now) <= 0 {
		return NewExitError(ExitFailure, "no sun left this week")
	}

	if opts.Label == "" {
		year, week := now.ISOWeek()
		opts.Label = fmt.Sprintf("%d-W%02d", year, week)
	}

	ev := event.WeeklyEntry{
		Header:  event.NewHeader(uuid.NewString(), now),
		PlotID:  plotID,
		Label:   opts.Label,
		Content: content,
		Prompt:  opts.Prompt,
	}
	if err := e.record(ctx, ev); err != nil {
		return WrapExitError(ExitCommandError, "record reflection", err)
	}

	left := derive.SunAvailable(append(events, ev), now)
	if opts.Format == "json" {
		return outputJSON(cmd.OutOrStdout(), JournalResult{SunLeft: left})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Reflected on %s (%d sun left this week)\n", plotID, left)
	return nil
}
