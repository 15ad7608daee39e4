package relay

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/smartvaults/svengine/errs"
	"github.com/smartvaults/svengine/protocol"
)

// WSClient is the websocket-backed Client implementation (spec.md §6's wire
// format over a client-side websocket connection, the natural job for the
// teacher's otherwise-unused `github.com/gorilla/websocket` dependency).
type WSClient struct {
	url string

	mu      sync.Mutex
	conn    *websocket.Conn
	subs    map[string]chan interface{}
	closed  bool
	counter int
}

// NewWSClient constructs a WSClient for the given relay url. Connect must
// be called before Publish/Subscribe.
func NewWSClient(url string) *WSClient {
	return &WSClient{url: url, subs: make(map[string]chan interface{})}
}

// URL implements Client.
func (c *WSClient) URL() string { return c.url }

// Connect implements Client. Idempotent: a second call on an already
// connected client is a no-op.
func (c *WSClient) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return errs.External("dial relay", err)
	}
	c.conn = conn
	c.closed = false
	go c.readLoop(conn)
	return nil
}

// Close implements Client.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.closed = true
	for _, ch := range c.subs {
		close(ch)
	}
	c.subs = make(map[string]chan interface{})
	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return errs.External("close relay connection", err)
	}
	return nil
}

// Publish implements Client.
func (c *WSClient) Publish(ev *protocol.Event) error {
	payload, err := marshalEvent(ev)
	if err != nil {
		return errs.External("marshal event", err)
	}
	msg, err := json.Marshal([]json.RawMessage{json.RawMessage(`"EVENT"`), payload})
	if err != nil {
		return errs.External("marshal EVENT message", err)
	}
	return c.writeMessage(msg)
}

// Subscribe implements Client.
func (c *WSClient) Subscribe(filter Filter) (<-chan interface{}, string, error) {
	c.mu.Lock()
	c.counter++
	subID := fmt.Sprintf("sub-%d", c.counter)
	ch := make(chan interface{}, 256)
	c.subs[subID] = ch
	c.mu.Unlock()

	msg, err := json.Marshal([]interface{}{"REQ", subID, filter.toWire()})
	if err != nil {
		return nil, "", errs.External("marshal REQ message", err)
	}
	if err := c.writeMessage(msg); err != nil {
		return nil, "", err
	}
	return ch, subID, nil
}

// Unsubscribe implements Client.
func (c *WSClient) Unsubscribe(subID string) error {
	c.mu.Lock()
	ch, ok := c.subs[subID]
	if ok {
		delete(c.subs, subID)
		close(ch)
	}
	c.mu.Unlock()
	if !ok {
		return nil
	}
	msg, err := json.Marshal([]string{"CLOSE", subID})
	if err != nil {
		return errs.External("marshal CLOSE message", err)
	}
	return c.writeMessage(msg)
}

func (c *WSClient) writeMessage(msg []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errs.External("relay: not connected", nil)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return errs.External("write relay message", err)
	}
	return nil
}

// readLoop dispatches inbound ["EVENT", subID, event] and
// ["EOSE", subID] frames to their subscription channel, and drops anything
// else (NOTICE, OK, unrecognized) the way a tolerant relay client must
// (spec.md §1 Non-goals: malformed/unauthorized input is tolerated, never
// panicked on).
func (c *WSClient) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				c.Close()
			}
			return
		}
		c.dispatch(data)
	}
}

func (c *WSClient) dispatch(data []byte) {
	var frame []json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil || len(frame) < 2 {
		return
	}
	var kind string
	if err := json.Unmarshal(frame[0], &kind); err != nil {
		return
	}
	switch kind {
	case "EVENT":
		if len(frame) < 3 {
			return
		}
		var subID string
		if err := json.Unmarshal(frame[1], &subID); err != nil {
			return
		}
		ev, err := unmarshalEvent(frame[2])
		if err != nil {
			return
		}
		c.deliver(subID, ev)
	case "EOSE":
		var subID string
		if err := json.Unmarshal(frame[1], &subID); err != nil {
			return
		}
		c.deliver(subID, EndOfStoredEvents{})
	default:
		// NOTICE, OK, CLOSED, and anything unrecognized are dropped.
	}
}

func (c *WSClient) deliver(subID string, msg interface{}) {
	c.mu.Lock()
	ch, ok := c.subs[subID]
	c.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- msg:
	default:
		// Slow consumer: drop rather than block the read loop.
	}
}
