// Package syncer keeps the local event log and the remote store
// converged.
//
// The protocol is local-first and optimistic: an append always succeeds
// locally before any network I/O starts, remote delivery is retried
// from a persisted pending queue, and a duplicate-client-id response
// from the remote store counts as success. Convergence across devices
// is set-union of immutable events; the derivation engine's determinism
// does the rest.
package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/grove-sh/grove/internal/event"
	"github.com/grove-sh/grove/internal/remote"
	"github.com/grove-sh/grove/internal/store"
)

// SchemaVersion is the current version of the event vocabulary. When
// the local cache-version marker disagrees, smart sync falls back to a
// full resync before resuming incremental pulls.
const SchemaVersion = 3

// deliverTimeout bounds a single background delivery attempt.
const deliverTimeout = 30 * time.Second

// Transport is the network face of the remote store.
type Transport interface {
	// Insert pushes one row; remote.ErrDuplicateClientID means the row
	// is already stored.
	Insert(ctx context.Context, row remote.Row) error

	// FetchAll returns every row for the owner, ordered by server
	// insertion time ascending.
	FetchAll(ctx context.Context) ([]remote.Row, error)

	// FetchSince returns rows inserted strictly after the given server
	// insertion time, ordered ascending.
	FetchSince(ctx context.Context, after time.Time) ([]remote.Row, error)
}

// Subscriber delivers newly inserted rows in near-real-time.
type Subscriber interface {
	Listen(ctx context.Context, handle func(remote.Row)) error
}

// Pusher is the capability UI surfaces depend on to record a user
// action. They hold this interface, never the concrete Coordinator.
type Pusher interface {
	AppendPush(ctx context.Context, e event.Event) error
}

// Status is the aggregate sync state surfaced to the user, a badge and
// nothing more. Sync failures never raise per-event errors.
type Status string

const (
	StatusSynced        Status = "synced"
	StatusSyncing       Status = "syncing"
	StatusPendingUpload Status = "pendingUpload"
	StatusOffline       Status = "offline"
	StatusLoading       Status = "loading"
)

type syncState int

const (
	stateIdle syncState = iota
	stateSyncing
	stateSuccess
	stateErrored
)

// Coordinator orchestrates push, pull, retry, and realtime consumption
// over a local store and a remote transport.
//
// The store, pending queue, and watermark are mutated only while
// holding mu; no network I/O ever happens under it. Each sync cycle
// takes a monotonically increasing token, and a cycle commits nothing
// once a newer cycle has started.
type Coordinator struct {
	store     *store.Store
	transport Transport
	log       zerolog.Logger
	schema    int

	mu     sync.Mutex
	state  syncState
	loaded bool
	cycle  int64

	inflight sync.WaitGroup
}

// New returns a coordinator over the given store and transport. The
// coordinator starts in the loading state unless the local log already
// has data from a previous run.
func New(ctx context.Context, st *store.Store, transport Transport, log zerolog.Logger) (*Coordinator, error) {
	c := &Coordinator{
		store:     st,
		transport: transport,
		log:       log,
		schema:    SchemaVersion,
	}
	n, err := st.Count(ctx)
	if err != nil {
		return nil, err
	}
	c.loaded = n > 0
	return c, nil
}

// Status derives the user-facing badge from the internal state and the
// pending-queue size.
func (c *Coordinator) Status(ctx context.Context) Status {
	c.mu.Lock()
	state, loaded := c.state, c.loaded
	c.mu.Unlock()

	if state == stateSyncing {
		return StatusSyncing
	}

	pending, err := c.store.PendingIDs(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("read pending queue")
	}
	if len(pending) > 0 {
		return StatusPendingUpload
	}
	if state == stateErrored {
		return StatusOffline
	}
	if !loaded {
		return StatusLoading
	}
	return StatusSynced
}

// Wait blocks until all background deliveries spawned by AppendPush
// have finished. Used on shutdown and by tests.
func (c *Coordinator) Wait() {
	c.inflight.Wait()
}

func (c *Coordinator) setState(s syncState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// errCycleSuperseded reports that a newer sync cycle started while this
// one was in flight. The superseded cycle commits nothing; its caller
// treats the outcome as neither success nor failure.
var errCycleSuperseded = errors.New("sync cycle superseded")

// beginCycle issues the next cycle token. Tokens only grow; a cycle
// whose token is no longer the newest discards its results.
func (c *Coordinator) beginCycle() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cycle++
	return c.cycle
}

func (c *Coordinator) stale(token int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return token != c.cycle
}

// staleLocked is stale for callers already holding mu.
func (c *Coordinator) staleLocked(token int64) bool {
	return token != c.cycle
}

// rowFor converts a local event into its remote row. The owner id is
// attached by the transport's credentials, not here.
func rowFor(e event.Event) (remote.Row, error) {
	payload, err := event.Marshal(e)
	if err != nil {
		return remote.Row{}, err
	}
	return remote.Row{
		Type:            string(e.Kind()),
		Payload:         payload,
		ClientID:        e.Client(),
		ClientTimestamp: e.At(),
	}, nil
}

// decodeRow turns a remote row back into an event. Rows carrying a
// payload this build cannot decode (newer vocabulary, corrupt blob)
// are skipped with a warning; they stay on the server untouched.
func (c *Coordinator) decodeRow(row remote.Row) (event.Event, bool) {
	e, err := event.Unmarshal(row.Payload)
	if err != nil {
		c.log.Warn().Err(err).Str("client_id", row.ClientID).Msg("skipping undecodable row")
		return nil, false
	}
	return e, true
}
