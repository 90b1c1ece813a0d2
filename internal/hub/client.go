package hub

import (
	"encoding/json"
	"sync"
)

// sendBuffer bounds the per-client outbound queue; a client that falls
// this far behind is considered stalled and dropped.
const sendBuffer = 16

// Client is one live subscriber connection as the hub sees it: an
// outbound message queue plus the last subscription preference the
// client sent. The transport (websocket read/write pumps) lives in the
// server package.
type Client struct {
	send chan []byte

	mu        sync.Mutex
	sources   []string
	timeRange string
}

// NewClient creates an unregistered client handle.
func NewClient() *Client {
	return &Client{send: make(chan []byte, sendBuffer)}
}

// Outbound is the queue the transport writer drains. It is closed when
// the hub drops the client.
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

// Subscription returns the last recorded subscribe preference.
func (c *Client) Subscription() ([]string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sources, c.timeRange
}

// reply queues a message for this client only. Best-effort: a full
// queue drops the reply, the stalled client is cleaned up by the next
// broadcast cycle or transport disconnect.
func (c *Client) reply(typ string, data any) {
	msg, err := marshalEnvelope(typ, data)
	if err != nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// HandleControl processes one client-sent message. Unknown types get
// an error reply; malformed JSON as well, mirroring the protocol's
// lenient stance: control failures never terminate the connection.
func (c *Client) HandleControl(h *Hub, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.reply("error", "Failed to process message")
		return
	}
	switch env.Type {
	case "subscribe":
		var req SubscribeRequest
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &req); err != nil {
				c.reply("error", "Failed to process message")
				return
			}
		}
		c.mu.Lock()
		c.sources = req.Sources
		c.timeRange = req.TimeRange
		c.mu.Unlock()
		c.reply("subscribed", req)
	case "requestUpdate":
		h.PushNow()
	default:
		c.reply("error", "Unknown message type")
	}
}
