// Package tcp implements the progress bus: long-lived per-user TCP
// sessions receiving every progress event, fed either by subscriber
// writes or by the HTTP admin trigger port.
package tcp

import (
	"encoding/json"
	"strings"

	"mangahub/pkg/models"
)

// Control frames are bare ASCII lines; everything else on the wire is a
// JSON object terminated by newline.
const (
	ControlPing       = "PING"
	ControlPong       = "PONG"
	ControlDisconnect = "DISCONNECT"
)

// SubscribeFrame is the first JSON frame a client sends to bind its
// connection to a user id.
type SubscribeFrame struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

// parsedLine classifies one inbound line.
type parsedLine struct {
	control   string
	subscribe *SubscribeFrame
	progress  *models.ProgressEvent
}

// parseLine classifies a line as control, subscribe, progress or noise.
// Non-JSON non-control noise yields the zero value and is ignored by the
// caller.
func parseLine(line string) parsedLine {
	line = strings.TrimSpace(line)
	switch line {
	case ControlPing, ControlPong, ControlDisconnect:
		return parsedLine{control: line}
	}
	if !strings.HasPrefix(line, "{") {
		return parsedLine{}
	}

	var sub SubscribeFrame
	if err := json.Unmarshal([]byte(line), &sub); err == nil && sub.Type == "subscribe" && sub.UserID != "" {
		return parsedLine{subscribe: &sub}
	}

	var event models.ProgressEvent
	if err := json.Unmarshal([]byte(line), &event); err == nil && event.UserID != "" {
		return parsedLine{progress: &event}
	}
	return parsedLine{}
}
