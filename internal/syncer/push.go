package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/grove-sh/grove/internal/event"
	"github.com/grove-sh/grove/internal/remote"
)

// AppendPush records an event locally and schedules remote delivery.
// The local append and the pending mark commit before any network I/O
// starts, so the user's action is never lost to a flaky connection.
// Delivery happens in the background; its outcome only moves the sync
// badge.
func (c *Coordinator) AppendPush(ctx context.Context, e event.Event) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	c.mu.Lock()
	inserted, err := c.store.Append(ctx, e)
	if err == nil {
		c.loaded = true
		if inserted {
			err = c.store.MarkPending(ctx, e.Client())
		}
	}
	c.mu.Unlock()
	if err != nil {
		return err
	}
	if !inserted {
		// Already in the log; nothing to deliver.
		return nil
	}

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		c.deliver(e)
	}()
	return nil
}

// deliver pushes one event and clears its pending mark on success. A
// duplicate response means another device or an earlier attempt already
// delivered it, which is the same thing as success.
func (c *Coordinator) deliver(e event.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()

	row, err := rowFor(e)
	if err != nil {
		c.log.Error().Err(err).Str("client_id", e.Client()).Msg("encode event for push")
		return
	}

	err = c.transport.Insert(ctx, row)
	if err != nil && !errors.Is(err, remote.ErrDuplicateClientID) {
		c.log.Warn().Err(err).Str("client_id", e.Client()).Msg("push failed, left pending")
		c.setState(stateErrored)
		return
	}

	c.mu.Lock()
	clearErr := c.store.ClearPending(ctx, e.Client())
	c.state = stateSuccess
	c.mu.Unlock()
	if clearErr != nil {
		c.log.Warn().Err(clearErr).Str("client_id", e.Client()).Msg("clear pending mark")
	}
}

// RetryPending walks the pending queue in order and attempts delivery
// of each event. Pending ids that no longer resolve to a local event
// are stale and dropped. Returns the number of events still pending
// after the pass.
func (c *Coordinator) RetryPending(ctx context.Context) (int, error) {
	c.mu.Lock()
	ids, err := c.store.PendingIDs(ctx)
	c.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("read pending queue: %w", err)
	}

	remaining := 0
	for _, id := range ids {
		c.mu.Lock()
		e, ok, err := c.store.ByClientID(ctx, id)
		c.mu.Unlock()
		if err != nil {
			return remaining, err
		}
		if !ok {
			c.log.Warn().Str("client_id", id).Msg("dropping stale pending id")
			c.mu.Lock()
			err = c.store.ClearPending(ctx, id)
			c.mu.Unlock()
			if err != nil {
				return remaining, err
			}
			continue
		}

		row, err := rowFor(e)
		if err != nil {
			c.log.Error().Err(err).Str("client_id", id).Msg("encode pending event")
			remaining++
			continue
		}

		err = c.transport.Insert(ctx, row)
		if err != nil && !errors.Is(err, remote.ErrDuplicateClientID) {
			c.log.Warn().Err(err).Str("client_id", id).Msg("retry failed")
			remaining++
			continue
		}

		c.mu.Lock()
		err = c.store.ClearPending(ctx, id)
		c.mu.Unlock()
		if err != nil {
			return remaining, err
		}
	}
	return remaining, nil
}
