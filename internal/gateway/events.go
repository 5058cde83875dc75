package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"mangahub/internal/protocols/websocket"
	"mangahub/pkg/logger"
	"mangahub/pkg/models"
)

const triggerTimeout = 5 * time.Second

// Dispatcher injects the side effects of successful intents: progress
// events POSTed to the TCP bus trigger, notifications POSTed to the UDP
// bus trigger, and chat-room projections. Every delivery is best-effort
// and asynchronous; a failed trigger never alters the intent's outcome.
type Dispatcher struct {
	tcpTriggerURL string
	udpTriggerURL string
	chat          *websocket.Hub
	client        *http.Client
}

// NewDispatcher creates the side-effect dispatcher. chat may be nil
// when no fabric runs in-process.
func NewDispatcher(tcpTriggerURL, udpTriggerURL string, chat *websocket.Hub) *Dispatcher {
	return &Dispatcher{
		tcpTriggerURL: tcpTriggerURL,
		udpTriggerURL: udpTriggerURL,
		chat:          chat,
		client:        &http.Client{Timeout: triggerTimeout},
	}
}

// PublishProgress forwards the event to the TCP bus and projects it
// into the manga's chat room.
func (d *Dispatcher) PublishProgress(_ context.Context, event models.ProgressEvent) {
	go d.post(d.tcpTriggerURL, event)
	if d.chat != nil && event.MangaID != "" {
		d.chat.BroadcastProgressUpdate(models.MangaRoom(event.MangaID),
			event.UserID, event.Username, event.Chapter)
	}
}

// PublishNotification forwards the notification to the UDP bus and
// projects it into the manga's chat room when one applies.
func (d *Dispatcher) PublishNotification(_ context.Context, notification models.Notification) {
	go d.post(d.udpTriggerURL, notification)
	if d.chat != nil && notification.MangaID != "" {
		d.chat.BroadcastNotification(models.MangaRoom(notification.MangaID),
			notification.Type, notification.Message)
	}
}

// post delivers one trigger POST with a bounded deadline, logging and
// swallowing every failure.
func (d *Dispatcher) post(url string, payload interface{}) {
	if url == "" {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Errorf("trigger marshal failed: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), triggerTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		logger.Errorf("trigger request build failed: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		logger.Warnf("trigger POST %s failed: %v", url, err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		logger.Warnf("trigger POST %s returned %d", url, resp.StatusCode)
	}
}
