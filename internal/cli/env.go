package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/grove-sh/grove/internal/config"
	"github.com/grove-sh/grove/internal/event"
	"github.com/grove-sh/grove/internal/logger"
	"github.com/grove-sh/grove/internal/remote"
	"github.com/grove-sh/grove/internal/store"
	"github.com/grove-sh/grove/internal/syncer"
)

// env bundles the runtime dependencies a command needs: configuration,
// logger, the local store, and (when a remote is configured) the sync
// coordinator.
type env struct {
	cfg   *config.AppConfig
	log   zerolog.Logger
	store *store.Store
	coord *syncer.Coordinator // nil without a configured remote
	sub   syncer.Subscriber   // nil without a configured remote
}

// openEnv loads configuration and opens the local store. Commands must
// call close when done.
func openEnv(ctx context.Context, opts *RootOptions) (*env, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}

	level := cfg.Log.Level
	if opts.Verbose {
		level = "debug"
	}
	log := logger.New(level, cfg.Log.Format)

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, WrapExitError(ExitCommandError, "create data directory", err)
	}
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open local store", err)
	}

	e := &env{cfg: cfg, log: log, store: st}

	if cfg.Remote.URL != "" {
		client := remote.NewClient(cfg.Remote.URL, cfg.Remote.Token)
		coord, err := syncer.New(ctx, st, client, log)
		if err != nil {
			st.Close()
			return nil, WrapExitError(ExitCommandError, "init sync coordinator", err)
		}
		e.coord = coord
		if cfg.Sync.Subscribe {
			e.sub = remote.NewSubscriber(cfg.Remote.URL, cfg.Remote.Token, log)
		}
	}
	return e, nil
}

func (e *env) close() {
	if e.coord != nil {
		e.coord.Wait()
	}
	if err := e.store.Close(); err != nil {
		e.log.Warn().Err(err).Msg("close store")
	}
}

// record appends an event locally and, when a remote is configured,
// schedules delivery. Without a remote it is a plain local append.
func (e *env) record(ctx context.Context, ev event.Event) error {
	if e.coord != nil {
		return e.coord.AppendPush(ctx, ev)
	}
	if err := ev.Validate(); err != nil {
		return err
	}
	_, err := e.store.Append(ctx, ev)
	return err
}
