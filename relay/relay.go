// Package relay implements the Relay Client external collaborator
// (spec.md §1, §6): the wire format for publishing and subscribing to
// signed events over a relay connection.
package relay

import (
	"time"

	"github.com/smartvaults/svengine/ids"
	"github.com/smartvaults/svengine/protocol"
)

// Filter selects which events a subscription receives, mirroring the
// relay wire format's REQ filter object (spec.md §6).
type Filter struct {
	Authors []ids.PubKey
	Tags    map[string][]string
	Kinds   []protocol.Kind
	Since   time.Time
}

// EndOfStoredEvents is delivered on a subscription's event channel exactly
// once, after the relay has sent every event matching the filter that it
// already had stored (spec.md §4.E: "On each end-of-stored-events message
// for a matching subscription id, persist now as the relay's last-sync").
type EndOfStoredEvents struct{}

// Client is the collaborator the Sync Engine and Action API depend on to
// talk to a single relay connection (spec.md §1).
type Client interface {
	// URL returns the relay's address, for logging and last-sync bookkeeping.
	URL() string

	// Connect establishes the underlying connection. Idempotent.
	Connect() error

	// Close tears down the connection and every open subscription.
	Close() error

	// Publish sends a signed event to the relay.
	Publish(ev *protocol.Event) error

	// Subscribe opens a subscription for filter and returns a channel
	// delivering *protocol.Event and EndOfStoredEvents markers in arrival
	// order, plus the subscription id the caller can later Unsubscribe.
	Subscribe(filter Filter) (<-chan interface{}, string, error)

	// Unsubscribe closes a previously opened subscription.
	Unsubscribe(subID string) error
}
