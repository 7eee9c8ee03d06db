package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 64
)

// Client is one WebSocket connection and its channel subscriptions
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	channels map[string]bool
	mu       sync.RWMutex
	closed   bool
	done     chan struct{}
}

// subscription is the control message a client sends
type subscription struct {
	Action   string   `json:"action"` // subscribe or unsubscribe
	Channels []string `json:"channels"`
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		channels: make(map[string]bool),
		done:     make(chan struct{}),
	}
}

// Start registers the client and starts its pumps
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
	select {
	case c.hub.register <- c:
	case <-c.hub.shutdownChan:
		c.closeSend()
	}
}

// Wait blocks until the connection is closed. The fiber handler must not
// return before this or the connection is released.
func (c *Client) Wait() {
	<-c.done
}

// Subscribed reports whether the client listens on channel
func (c *Client) Subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channels[channel]
}

// subscribe adds channels and replays the latest message of each
func (c *Client) subscribe(channels []string) {
	c.mu.Lock()
	var added []string
	for _, channel := range channels {
		if !c.channels[channel] {
			c.channels[channel] = true
			added = append(added, channel)
		}
	}
	c.mu.Unlock()

	for _, channel := range added {
		if data, ok := c.hub.Latest(channel); ok {
			c.trySend(data)
		}
	}
}

func (c *Client) unsubscribe(channels []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, channel := range channels {
		delete(c.channels, channel)
	}
}

// trySend queues data without blocking; false means the buffer is full
func (c *Client) trySend(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend closes the send queue once
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.send)
		c.closed = true
	}
}

func (c *Client) handleControl(raw []byte) {
	var msg subscription
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}

	switch msg.Action {
	case "subscribe":
		c.subscribe(msg.Channels)
	case "unsubscribe":
		c.unsubscribe(msg.Channels)
	}
}

// readPump handles incoming control messages
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.shutdownChan:
		}
		c.conn.Close()
		close(c.done)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WebSocket] Read error: %v", err)
			}
			return
		}
		c.handleControl(message)
	}
}

// writePump sends queued messages and keepalive pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WebSocket] Write error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
