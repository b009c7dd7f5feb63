package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/openresq/emergency_dispatch/internal/bus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096

	// sendBuffer bounds the per-connection outbound queue. A client that
	// cannot keep up is disconnected rather than allowed to stall the hub.
	sendBuffer = 64
)

// Client is one live WebSocket connection. Role and identity are set once by
// the auth message and never change for the connection's lifetime.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// done signals teardown. The send channel itself is never closed: the
	// read pump and the bus relay both enqueue concurrently, so closing it
	// would let a late enqueue panic the process.
	done      chan struct{}
	closeOnce sync.Once

	mu       sync.RWMutex
	authed   bool
	role     string
	identity string
	topics   map[string]struct{}
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		topics: make(map[string]struct{}),
	}
}

// close marks the client torn down and stops its write pump. Safe to call
// from any goroutine, any number of times.
func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) authenticate(identity, role string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.authed {
		return false // auth is set once per connection lifetime
	}
	c.authed = true
	c.identity = identity
	c.role = role
	return true
}

func (c *Client) credentials() (authed bool, identity, role string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authed, c.identity, c.role
}

func (c *Client) subscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics[topic] = struct{}{}
}

func (c *Client) unsubscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.topics, topic)
}

// subscribedTo reports whether any of the client's subscription patterns
// matches the given bus topic.
func (c *Client) subscribedTo(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for pattern := range c.topics {
		if bus.MatchTopic(pattern, topic) {
			return true
		}
	}
	return false
}

// enqueue hands a message to the write pump. Returns false when the client is
// gone or too far behind; the hub then drops the connection.
func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// readPump consumes inbound messages until the connection drops. Runs in its
// own goroutine per connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.WithError(err).Debug("WebSocket connection closed unexpectedly")
			}
			return
		}

		var msg InboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.enqueue(encode(OutboundMessage{Type: MsgError, Error: "malformed message"}))
			continue
		}
		c.hub.handleMessage(context.Background(), c, msg)
	}
}

// writePump serializes all writes to the connection and keeps it alive with
// pings. Runs in its own goroutine per connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
