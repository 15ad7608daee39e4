package testutil

import (
	"github.com/smartvaults/svengine/protocol"
	"github.com/smartvaults/svengine/relay"
)

// memClient is a relay.Client backed by a Hub rather than a websocket
// connection, standing in for relay.WSClient in tests (spec.md §8).
type memClient struct {
	hub *Hub
}

func (c *memClient) URL() string    { return c.hub.url }
func (c *memClient) Connect() error { return nil }
func (c *memClient) Close() error   { return nil }

func (c *memClient) Publish(ev *protocol.Event) error {
	c.hub.publish(ev)
	return nil
}

func (c *memClient) Subscribe(filter relay.Filter) (<-chan interface{}, string, error) {
	ch, subID := c.hub.subscribe(filter)
	return ch, subID, nil
}

func (c *memClient) Unsubscribe(subID string) error {
	c.hub.unsubscribe(subID)
	return nil
}

var _ relay.Client = (*memClient)(nil)
