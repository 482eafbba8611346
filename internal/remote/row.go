// Package remote speaks the Grove remote-store protocol: one logical
// table of immutable event rows keyed by a server id, with a uniqueness
// constraint on the client id and a websocket stream of new inserts.
//
// The package contains both sides of the wire: the HTTP client and
// websocket subscriber used by the sync coordinator, and a reference
// server (chi + JWT + Postgres or in-memory row store) used by tests
// and self-hosters.
package remote

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrDuplicateClientID is returned when an insert collides with an
// existing row's client id. Callers treat it as success: the event is
// already durably stored remotely.
var ErrDuplicateClientID = errors.New("duplicate client id")

// Row is one remote event row. Payload is the opaque wire envelope;
// the remote store never interprets it.
//
// ClientTimestamp and InsertedAt are different clocks on purpose:
// the client timestamp orders derivation, the server insertion time
// orders incremental pulls. Neither substitutes for the other.
type Row struct {
	ServerID        int64           `json:"serverId,omitempty"`
	OwnerID         string          `json:"ownerId,omitempty"`
	Type            string          `json:"type"`
	Payload         json.RawMessage `json:"payload"`
	ClientID        string          `json:"clientId"`
	ClientTimestamp time.Time       `json:"clientTimestamp"`
	InsertedAt      time.Time       `json:"insertedAt,omitempty"`
}
