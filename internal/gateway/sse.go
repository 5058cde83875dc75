// Package gateway holds the connectivity glue living inside the API
// server: the SSE hubs browsers subscribe to, the per-user TCP sessions
// and process-wide UDP registration that feed them, and the dispatcher
// that injects domain events into the buses.
package gateway

import (
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"mangahub/pkg/logger"
)

const (
	clientBuffer = 100
	keepAlive    = 30 * time.Second
	sseEventConn = "connected"
	sseEventMsg  = "message"
	sseEventPing = "ping"
)

// SSEHub fans frames out to every subscribed browser stream. One hub
// exists per stream kind (progress, notifications).
type SSEHub struct {
	name string

	mu      sync.RWMutex
	clients map[chan []byte]bool
}

// NewSSEHub creates a hub for one stream kind.
func NewSSEHub(name string) *SSEHub {
	return &SSEHub{
		name:    name,
		clients: make(map[chan []byte]bool),
	}
}

// Subscribe registers a new client channel.
func (h *SSEHub) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	h.mu.Lock()
	h.clients[ch] = true
	total := len(h.clients)
	h.mu.Unlock()
	logger.SSE(h.name, "subscribe", total)
	return ch
}

// Unsubscribe removes and closes a client channel.
func (h *SSEHub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	if h.clients[ch] {
		delete(h.clients, ch)
		close(ch)
	}
	total := len(h.clients)
	h.mu.Unlock()
	logger.SSE(h.name, "unsubscribe", total)
}

// Publish delivers one frame to every client. A full client buffer
// drops the frame for that client rather than stalling the rest.
func (h *SSEHub) Publish(frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- frame:
		default:
		}
	}
}

// ClientCount reports the number of subscribed streams.
func (h *SSEHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve streams hub frames to one browser until its context cancels.
// Frames arrive as `message` events; a `ping` goes out every keep-alive
// interval.
func (h *SSEHub) Serve(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	writeEvent(c, sseEventConn, fmt.Sprintf(`{"stream":%q}`, h.name))

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(c, sseEventMsg, string(frame))
		case <-ticker.C:
			writeEvent(c, sseEventPing, `{}`)
		case <-c.Request.Context().Done():
			return
		}
	}
}

func writeEvent(c *gin.Context, event, data string) {
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data)
	c.Writer.Flush()
}
