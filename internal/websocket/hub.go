package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Message is the envelope sent to subscribers
type Message struct {
	Channel   string      `json:"channel"`
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub fans messages out to clients subscribed to a channel. The latest
// message per channel is kept and replayed to new subscribers so a dashboard
// that connects between polls still gets the current view.
type Hub struct {
	clients      map[*Client]bool
	broadcast    chan *Message
	register     chan *Client
	unregister   chan *Client
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex

	latest   map[string][]byte
	latestMu sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:      make(map[*Client]bool),
		broadcast:    make(chan *Message, 256),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		shutdownChan: make(chan struct{}),
		latest:       make(map[string][]byte),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case <-h.shutdownChan:
			log.Printf("[WebSocket] Hub shutting down")
			h.mu.Lock()
			for client := range h.clients {
				client.closeSend()
				if client.conn != nil {
					client.conn.Close()
				}
			}
			h.clients = make(map[*Client]bool)
			h.mu.Unlock()
			log.Printf("[WebSocket] Hub shutdown complete")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.removeClients(client)

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				log.Printf("[WebSocket] Failed to marshal %s/%s message: %v", message.Channel, message.Event, err)
				continue
			}

			h.latestMu.Lock()
			h.latest[message.Channel] = data
			h.latestMu.Unlock()

			var slow []*Client
			h.mu.RLock()
			for client := range h.clients {
				if !client.Subscribed(message.Channel) {
					continue
				}
				if !client.trySend(data) {
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()

			if len(slow) > 0 {
				log.Printf("[WebSocket] Evicting %d slow client(s)", len(slow))
				h.removeClients(slow...)
			}
		}
	}
}

// removeClients drops clients from the hub and closes their send queues
func (h *Hub) removeClients(clients ...*Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range clients {
		if _, ok := h.clients[client]; ok {
			delete(h.clients, client)
			client.closeSend()
		}
	}
}

// Broadcast queues a message for every client subscribed to channel. It never
// blocks the caller: when the queue is full or the hub is shut down the
// message is dropped.
func (h *Hub) Broadcast(channel string, event string, data interface{}) {
	message := &Message{
		Channel:   channel,
		Event:     event,
		Data:      data,
		Timestamp: time.Now(),
	}

	select {
	case <-h.shutdownChan:
		return
	default:
	}

	select {
	case h.broadcast <- message:
	default:
		log.Printf("[WebSocket] Broadcast queue full, dropping %s/%s", channel, event)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Latest returns the last encoded message sent on channel
func (h *Hub) Latest(channel string) ([]byte, bool) {
	h.latestMu.RLock()
	defer h.latestMu.RUnlock()
	data, ok := h.latest[channel]
	return data, ok
}

// Shutdown gracefully shuts down the WebSocket hub
func (h *Hub) Shutdown() {
	h.shutdownOnce.Do(func() {
		close(h.shutdownChan)
	})
}
