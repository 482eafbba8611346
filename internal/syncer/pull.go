package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/grove-sh/grove/internal/event"
	"github.com/grove-sh/grove/internal/remote"
)

// PullIncremental fetches rows inserted after the stored watermark and
// appends the new ones locally. The watermark advances to the newest
// server insertion time seen; client timestamps never feed it.
func (c *Coordinator) PullIncremental(ctx context.Context) error {
	err := c.pullIncremental(ctx, c.beginCycle())
	if errors.Is(err, errCycleSuperseded) {
		return nil
	}
	return err
}

func (c *Coordinator) pullIncremental(ctx context.Context, token int64) error {
	c.mu.Lock()
	watermark, err := c.store.Watermark(ctx)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("read watermark: %w", err)
	}

	rows, err := c.transport.FetchSince(ctx, watermark)
	if err != nil {
		return fmt.Errorf("fetch since %s: %w", watermark.Format(time.RFC3339Nano), err)
	}
	if c.stale(token) {
		c.log.Debug().Int64("cycle", token).Msg("discarding stale incremental pull")
		return errCycleSuperseded
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// A newer cycle may have started between the fetch and taking mu;
	// its writes must not be overtaken by this cycle's.
	if c.staleLocked(token) {
		c.log.Debug().Int64("cycle", token).Msg("discarding stale incremental pull")
		return errCycleSuperseded
	}

	var newest time.Time
	appended := 0
	for _, row := range rows {
		if row.InsertedAt.After(newest) {
			newest = row.InsertedAt
		}
		e, ok := c.decodeRow(row)
		if !ok {
			continue
		}
		inserted, err := c.store.Append(ctx, e)
		if err != nil {
			return fmt.Errorf("append pulled event: %w", err)
		}
		if inserted {
			appended++
		}
	}
	if !newest.IsZero() {
		if err := c.store.SetWatermark(ctx, newest); err != nil {
			return fmt.Errorf("advance watermark: %w", err)
		}
	}
	c.loaded = true
	c.log.Debug().Int("fetched", len(rows)).Int("appended", appended).Msg("incremental pull")
	return nil
}

// PullFull fetches the owner's complete remote log and replaces the
// local log with it in one transaction. Any failure before the replace
// leaves local state untouched.
func (c *Coordinator) PullFull(ctx context.Context) error {
	err := c.pullFull(ctx, c.beginCycle())
	if errors.Is(err, errCycleSuperseded) {
		return nil
	}
	return err
}

func (c *Coordinator) pullFull(ctx context.Context, token int64) error {
	rows, err := c.transport.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("fetch all: %w", err)
	}
	if c.stale(token) {
		c.log.Debug().Int64("cycle", token).Msg("discarding stale full pull")
		return errCycleSuperseded
	}

	var (
		events []event.Event
		newest time.Time
	)
	for _, row := range rows {
		if row.InsertedAt.After(newest) {
			newest = row.InsertedAt
		}
		e, ok := c.decodeRow(row)
		if !ok {
			continue
		}
		events = append(events, e)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staleLocked(token) {
		c.log.Debug().Int64("cycle", token).Msg("discarding stale full pull")
		return errCycleSuperseded
	}
	if err := c.store.ReplaceAll(ctx, events); err != nil {
		return fmt.Errorf("replace local log: %w", err)
	}
	if !newest.IsZero() {
		if err := c.store.SetWatermark(ctx, newest); err != nil {
			return fmt.Errorf("set watermark: %w", err)
		}
	}
	// The marker moves with the replace; a discarded pull must leave it
	// behind so the next cycle still resyncs in full.
	if err := c.store.SetCacheVersion(ctx, c.schema); err != nil {
		return fmt.Errorf("set cache version: %w", err)
	}
	c.loaded = true
	c.log.Info().Int("events", len(events)).Msg("full resync complete")
	return nil
}

// SmartSync runs one complete cycle: retry the pending queue, then pull
// incrementally when the local cache was written by this schema version,
// or fall back to a full resync when it was not.
func (c *Coordinator) SmartSync(ctx context.Context) error {
	token := c.beginCycle()
	c.setState(stateSyncing)

	if _, err := c.RetryPending(ctx); err != nil {
		c.log.Warn().Err(err).Msg("retry pending during sync")
	}

	c.mu.Lock()
	cached, err := c.store.CacheVersion(ctx)
	c.mu.Unlock()
	if err != nil {
		c.setState(stateErrored)
		return fmt.Errorf("read cache version: %w", err)
	}

	if cached == c.schema {
		err = c.pullIncremental(ctx, token)
	} else {
		c.log.Info().Int("cached", cached).Int("current", c.schema).Msg("cache version mismatch, full resync")
		err = c.pullFull(ctx, token)
	}

	if errors.Is(err, errCycleSuperseded) || c.stale(token) {
		return nil
	}
	if err != nil {
		c.setState(stateErrored)
		return err
	}
	c.setState(stateSuccess)
	return nil
}

// HandleRealtime folds one streamed row into the local log. The append
// dedups, so a device receiving its own push back is a no-op. Realtime
// rows never advance the watermark: the next incremental pull re-covers
// the span and the dedup absorbs the overlap.
func (c *Coordinator) HandleRealtime(row remote.Row) {
	e, ok := c.decodeRow(row)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()

	c.mu.Lock()
	inserted, err := c.store.Append(ctx, e)
	c.mu.Unlock()
	if err != nil {
		c.log.Warn().Err(err).Str("client_id", row.ClientID).Msg("append realtime row")
		return
	}
	if inserted {
		c.log.Debug().Str("client_id", row.ClientID).Str("type", row.Type).Msg("realtime event")
	}
}

// Run performs an initial smart sync, then keeps syncing on the given
// interval until ctx is cancelled. When a subscriber is provided its
// stream is consumed concurrently.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration, sub Subscriber) error {
	if sub != nil {
		go func() {
			if err := sub.Listen(ctx, c.HandleRealtime); err != nil && ctx.Err() == nil {
				c.log.Warn().Err(err).Msg("realtime stream stopped")
			}
		}()
	}

	if err := c.SmartSync(ctx); err != nil {
		c.log.Warn().Err(err).Msg("initial sync failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.Wait()
			return ctx.Err()
		case <-ticker.C:
			if err := c.SmartSync(ctx); err != nil {
				c.log.Warn().Err(err).Msg("periodic sync failed")
			}
		}
	}
}
