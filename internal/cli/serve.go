package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/grove-sh/grove/internal/config"
	"github.com/grove-sh/grove/internal/logger"
	"github.com/grove-sh/grove/internal/remote"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr       string
	IssueToken string
	TokenTTL   time.Duration
}

// NewServeCommand creates the serve command, the reference remote
// store.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference remote store",
		Long: `Run the reference remote store: an HTTP API over Postgres (or
in-memory when no DSN is configured) with a websocket stream per owner.

With --issue-token, mint a bearer token for an owner id and exit.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&opts.IssueToken, "issue-token", "", "mint a token for this owner id and exit")
	cmd.Flags().DurationVar(&opts.TokenTTL, "token-ttl", 90*24*time.Hour, "lifetime of minted tokens")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}
	if cfg.Server.JWTSecret == "" {
		return NewExitError(ExitCommandError, "server.jwt_secret is required")
	}
	secret := []byte(cfg.Server.JWTSecret)

	if opts.IssueToken != "" {
		token, err := remote.IssueToken(secret, opts.IssueToken, opts.TokenTTL)
		if err != nil {
			return WrapExitError(ExitCommandError, "issue token", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	}

	level := cfg.Log.Level
	if opts.Verbose {
		level = "debug"
	}
	log := logger.New(level, cfg.Log.Format)

	var rows remote.RowStore
	if cfg.Server.PostgresDSN != "" {
		rows, err = remote.OpenPostgres(cfg.Server.PostgresDSN)
		if err != nil {
			return WrapExitError(ExitCommandError, "open postgres", err)
		}
	} else {
		log.Warn().Msg("no postgres_dsn configured, using in-memory row store")
		rows = remote.NewMemoryRowStore()
	}
	defer rows.Close()

	addr := cfg.Server.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           remote.NewServer(rows, secret, log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("remote store listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitCommandError, "serve", err)
		}
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			return WrapExitError(ExitCommandError, "shutdown", err)
		}
		log.Info().Msg("remote store stopped")
	}
	return nil
}
