package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Watch bool
}

// SyncResult is the JSON payload for the sync command.
type SyncResult struct {
	Status  string `json:"status"`
	Pending int    `json:"pending"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync the local log with the remote store",
		Long: `Run one sync cycle: retry pending uploads, then pull new events.

With --watch, keep syncing on the configured interval and consume the
realtime stream until interrupted.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "keep syncing until interrupted")

	return cmd
}

func runSync(opts *SyncOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	e, err := openEnv(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.close()

	if e.coord == nil {
		return NewExitError(ExitCommandError, "no remote configured (set remote.url)")
	}

	if opts.Watch {
		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		fmt.Fprintf(cmd.OutOrStdout(), "Syncing every %s; Ctrl-C to stop.\n", e.cfg.Sync.Interval)
		if err := e.coord.Run(ctx, e.cfg.Sync.Interval, e.sub); err != nil && ctx.Err() == nil {
			return WrapExitError(ExitCommandError, "sync loop", err)
		}
		return nil
	}

	if err := e.coord.SmartSync(ctx); err != nil {
		return WrapExitError(ExitFailure, "sync failed", err)
	}
	e.coord.Wait()

	pending, err := e.store.PendingIDs(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "read pending queue", err)
	}

	if opts.Format == "json" {
		return outputJSON(cmd.OutOrStdout(), SyncResult{
			Status:  string(e.coord.Status(ctx)),
			Pending: len(pending),
		})
	}
	if len(pending) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Synced with %d upload(s) still pending.\n", len(pending))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Synced.")
	return nil
}
