package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient builds a client without a connection, subscribed to channels
func testClient(h *Hub, buffer int, channels ...string) *Client {
	c := &Client{
		hub:      h,
		send:     make(chan []byte, buffer),
		channels: make(map[string]bool),
		done:     make(chan struct{}),
	}
	for _, channel := range channels {
		c.channels[channel] = true
	}
	return c
}

func startHub(t *testing.T) *Hub {
	h := NewHub()
	go h.Run()
	t.Cleanup(h.Shutdown)
	return h
}

func receive(t *testing.T, c *Client) Message {
	select {
	case data, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestHub_BroadcastToSubscribers(t *testing.T) {
	h := startHub(t)
	subscribed := testClient(h, 4, "cluster")
	other := testClient(h, 4, "alerts")
	h.register <- subscribed
	h.register <- other

	assert.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	h.Broadcast("cluster", "cluster_view_updated", map[string]int{"nodes": 3})

	msg := receive(t, subscribed)
	assert.Equal(t, "cluster", msg.Channel)
	assert.Equal(t, "cluster_view_updated", msg.Event)
	assert.False(t, msg.Timestamp.IsZero())

	assert.Len(t, other.send, 0, "unsubscribed client receives nothing")
}

func TestHub_ReplaysLatestOnSubscribe(t *testing.T) {
	h := startHub(t)

	h.Broadcast("cluster", "cluster_view_updated", "first")
	h.Broadcast("cluster", "cluster_view_updated", "second")

	assert.Eventually(t, func() bool {
		data, ok := h.Latest("cluster")
		return ok && containsData(data, "second")
	}, time.Second, 5*time.Millisecond)

	late := testClient(h, 4)
	late.subscribe([]string{"cluster"})

	msg := receive(t, late)
	assert.Equal(t, "second", msg.Data)
}

func containsData(data []byte, want string) bool {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return false
	}
	return msg.Data == want
}

func TestHub_EvictsSlowClient(t *testing.T) {
	h := startHub(t)
	slow := testClient(h, 1, "cluster")
	h.register <- slow

	assert.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	h.Broadcast("cluster", "cluster_view_updated", 1)
	h.Broadcast("cluster", "cluster_view_updated", 2)

	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_BroadcastAfterShutdownDoesNotBlock(t *testing.T) {
	h := NewHub()
	h.Shutdown()
	h.Shutdown()

	done := make(chan struct{})
	go func() {
		h.Broadcast("cluster", "cluster_view_updated", nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked after shutdown")
	}
}

func TestClient_Unsubscribe(t *testing.T) {
	c := testClient(NewHub(), 1, "cluster")

	c.handleControl([]byte(`{"action":"unsubscribe","channels":["cluster"]}`))
	assert.False(t, c.Subscribed("cluster"))

	c.handleControl([]byte(`not json`))
	c.handleControl([]byte(`{"action":"subscribe","channels":["cluster"]}`))
	assert.True(t, c.Subscribed("cluster"))
}
