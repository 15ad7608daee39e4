// Package testutil implements an in-process stand-in for a relay (spec.md
// §8 end-to-end scenarios), grounded on lntest/harness.go's NetworkHarness:
// that harness spawns real lnd binaries and wires them to a shared miner so
// integration tests exercise the real wire protocol without real network
// hops. This package generalizes the same idea from spawned node processes
// to in-memory relay.Client values, since this engine's "network" is a
// single relay's publish/subscribe event log rather than a P2P mesh.
package testutil

import (
	"strconv"
	"sync"

	"github.com/smartvaults/svengine/ids"
	"github.com/smartvaults/svengine/protocol"
	"github.com/smartvaults/svengine/relay"
)

// Hub is an in-memory relay: every published event is retained and
// delivered to every current and future matching subscription, the same
// durable-log semantics a real relay's filter-matching REQ/EVENT protocol
// gives the Sync Engine (spec.md §4.E, §6).
type Hub struct {
	mu   sync.Mutex
	url  string
	log  []*protocol.Event
	subs map[string]*subscription
	next int
}

type subscription struct {
	filter relay.Filter
	ch     chan interface{}
}

// NewHub creates an empty in-memory relay addressed by url.
func NewHub(url string) *Hub {
	return &Hub{url: url, subs: make(map[string]*subscription)}
}

// Client returns a relay.Client backed by h. Every client sharing a Hub
// sees every other client's published events, the way every participant
// connected to the same real relay does.
func (h *Hub) Client() relay.Client {
	return &memClient{hub: h}
}

func (h *Hub) publish(ev *protocol.Event) {
	h.mu.Lock()
	h.log = append(h.log, ev)
	subs := make([]*subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		if matches(ev, s.filter) {
			s.ch <- ev
		}
	}
}

func (h *Hub) subscribe(filter relay.Filter) (<-chan interface{}, string) {
	h.mu.Lock()
	h.next++
	subID := "testutil-sub-" + strconv.Itoa(h.next)
	ch := make(chan interface{}, 64)
	backlog := make([]*protocol.Event, 0, len(h.log))
	for _, ev := range h.log {
		if matches(ev, filter) {
			backlog = append(backlog, ev)
		}
	}
	h.subs[subID] = &subscription{filter: filter, ch: ch}
	h.mu.Unlock()

	for _, ev := range backlog {
		ch <- ev
	}
	ch <- relay.EndOfStoredEvents{}
	return ch, subID
}

func (h *Hub) unsubscribe(subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.subs[subID]; ok {
		close(s.ch)
		delete(h.subs, subID)
	}
}

// matches reimplements a real relay's REQ filter semantics (spec.md §6)
// against an in-memory event: authors, kinds, tag values, and since are
// all AND-ed together, same as relay.Filter.toWire's fields.
func matches(ev *protocol.Event, f relay.Filter) bool {
	if len(f.Authors) > 0 && !containsPubKey(f.Authors, ev.PubKey) {
		return false
	}
	if len(f.Kinds) > 0 && !containsKind(f.Kinds, ev.Kind) {
		return false
	}
	if !f.Since.IsZero() && ev.CreatedAt < f.Since.Unix() {
		return false
	}
	for tagName, values := range f.Tags {
		if !eventHasTagValue(ev, tagName, values) {
			return false
		}
	}
	return true
}

func containsPubKey(haystack []ids.PubKey, needle ids.PubKey) bool {
	for _, pk := range haystack {
		if pk == needle {
			return true
		}
	}
	return false
}

func containsKind(haystack []protocol.Kind, needle protocol.Kind) bool {
	for _, k := range haystack {
		if k == needle {
			return true
		}
	}
	return false
}

func eventHasTagValue(ev *protocol.Event, tagName string, values []string) bool {
	for _, tag := range ev.Tags {
		if len(tag) < 2 || tag[0] != tagName {
			continue
		}
		for _, v := range values {
			if tag[1] == v {
				return true
			}
		}
	}
	return false
}
