// Package websocket implements the chat fabric: room registry keyed by
// topic id, per-room membership and broadcast, presence roster, and
// domain-event projection into rooms.
package websocket

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mangahub/pkg/logger"
	"mangahub/pkg/models"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	sessionQueue    = 64
	roomIdleTimeout = 10 * time.Minute
	reapInterval    = time.Minute
)

// Session is one WebSocket member of one room. A user may hold several
// sessions; the room broadcasts to each.
type Session struct {
	room     *Room
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	userID   string
	username string

	closeOnce sync.Once
}

// close tears the session down exactly once. The readPump observes the
// closed connection and deregisters; the writePump observes done and
// exits without waiting out the ping interval.
func (sess *Session) close() {
	sess.closeOnce.Do(func() {
		close(sess.done)
		sess.conn.Close()
	})
}

// enqueue delivers a frame to the session. Overflow closes the session:
// a slow client is not the room's problem.
func (sess *Session) enqueue(frame []byte) {
	select {
	case sess.send <- frame:
	default:
		logger.Warnf("chat session %s overflow, closing", sess.userID)
		sess.close()
	}
}

// Room is one chat topic: a member set with fan-out.
type Room struct {
	topic string

	mu           sync.RWMutex
	sessions     map[*Session]bool
	lastActivity time.Time
}

func newRoom(topic string) *Room {
	return &Room{
		topic:        topic,
		sessions:     make(map[*Session]bool),
		lastActivity: time.Now(),
	}
}

// broadcast fans a message out to every member session.
func (r *Room) broadcast(msg *models.ChatMessage) {
	frame, err := json.Marshal(msg)
	if err != nil {
		logger.Errorf("chat broadcast marshal failed: %v", err)
		return
	}

	r.mu.Lock()
	r.lastActivity = time.Now()
	targets := make([]*Session, 0, len(r.sessions))
	for sess := range r.sessions {
		targets = append(targets, sess)
	}
	r.mu.Unlock()

	for _, sess := range targets {
		sess.enqueue(frame)
	}
}

// roster snapshots the member list, one entry per distinct user.
func (r *Room) roster() []models.ChatUser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(r.sessions))
	users := make([]models.ChatUser, 0, len(r.sessions))
	for sess := range r.sessions {
		if seen[sess.userID] {
			continue
		}
		seen[sess.userID] = true
		users = append(users, models.ChatUser{ID: sess.userID, Username: sess.username})
	}
	return users
}

// Hub is the process-wide room registry.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewHub creates the chat fabric and starts the empty-room reaper.
func NewHub() *Hub {
	h := &Hub{
		rooms: make(map[string]*Room),
		stop:  make(chan struct{}),
	}
	h.wg.Add(1)
	go h.reapRooms()
	return h
}

// Stop closes every session and halts the reaper. Safe to call more
// than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)

		h.mu.Lock()
		for _, room := range h.rooms {
			room.mu.Lock()
			for sess := range room.sessions {
				sess.close()
			}
			room.mu.Unlock()
		}
		h.rooms = make(map[string]*Room)
		h.mu.Unlock()

		h.wg.Wait()
	})
}

// getOrCreateRoom returns the room for a topic, creating it on first join.
func (h *Hub) getOrCreateRoom(topic string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, ok := h.rooms[topic]; ok {
		return room
	}
	room := newRoom(topic)
	h.rooms[topic] = room
	logger.Infof("chat room created: %s", topic)
	return room
}

// reapRooms removes rooms that have sat empty past the idle threshold.
func (h *Hub) reapRooms() {
	defer h.wg.Done()

	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			h.mu.Lock()
			for topic, room := range h.rooms {
				room.mu.RLock()
				empty := len(room.sessions) == 0
				idle := now.Sub(room.lastActivity)
				room.mu.RUnlock()
				if empty && idle > roomIdleTimeout {
					delete(h.rooms, topic)
					logger.Infof("chat room reaped: %s", topic)
				}
			}
			h.mu.Unlock()
		case <-h.stop:
			return
		}
	}
}

// Join attaches an upgraded, already-authenticated connection to a room
// and runs its pumps. Blocks until the session ends.
func (h *Hub) Join(conn *websocket.Conn, topic, userID, username string) {
	room := h.getOrCreateRoom(topic)
	sess := &Session{
		room:     room,
		conn:     conn,
		send:     make(chan []byte, sessionQueue),
		done:     make(chan struct{}),
		userID:   userID,
		username: username,
	}

	room.mu.Lock()
	room.sessions[sess] = true
	room.lastActivity = time.Now()
	room.mu.Unlock()

	logger.WebSocket(topic, "join", userID)
	room.broadcast(&models.ChatMessage{
		Type:      models.ChatTypeJoin,
		Room:      topic,
		UserID:    userID,
		Username:  username,
		Message:   username + " joined",
		Timestamp: time.Now().Unix(),
	})
	h.sendRoster(room)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		sess.writePump()
	}()
	sess.readPump(h)
}

// leave removes the session and announces it.
func (h *Hub) leave(sess *Session) {
	room := sess.room
	room.mu.Lock()
	_, present := room.sessions[sess]
	delete(room.sessions, sess)
	room.lastActivity = time.Now()
	room.mu.Unlock()
	sess.close()

	if !present {
		return
	}
	logger.WebSocket(room.topic, "leave", sess.userID)
	room.broadcast(&models.ChatMessage{
		Type:      models.ChatTypeLeave,
		Room:      room.topic,
		UserID:    sess.userID,
		Username:  sess.username,
		Message:   sess.username + " left",
		Timestamp: time.Now().Unix(),
	})
	h.sendRoster(room)
}

// sendRoster broadcasts the current user_list to every member.
func (h *Hub) sendRoster(room *Room) {
	room.broadcast(&models.ChatMessage{
		Type:      models.ChatTypeUserList,
		Room:      room.topic,
		Users:     room.roster(),
		Timestamp: time.Now().Unix(),
	})
}

// BroadcastProgressUpdate projects a progress event into a manga's room.
// Non-members see nothing.
func (h *Hub) BroadcastProgressUpdate(topic, userID, username string, chapter int) {
	h.mu.RLock()
	room, ok := h.rooms[topic]
	h.mu.RUnlock()
	if !ok {
		return
	}
	room.broadcast(&models.ChatMessage{
		Type:      models.ChatTypeProgressUpdate,
		Room:      topic,
		UserID:    userID,
		Username:  username,
		Chapter:   chapter,
		Timestamp: time.Now().Unix(),
	})
}

// BroadcastNotification projects a domain notification into a room.
func (h *Hub) BroadcastNotification(topic, notificationType, message string) {
	h.mu.RLock()
	room, ok := h.rooms[topic]
	h.mu.RUnlock()
	if !ok {
		return
	}
	room.broadcast(&models.ChatMessage{
		Type:      models.ChatTypeNotification,
		Room:      topic,
		Message:   message,
		Username:  notificationType,
		Timestamp: time.Now().Unix(),
	})
}

// RoomStatus describes a room for the HTTP status endpoint.
func (h *Hub) RoomStatus(topic string) models.ChatRoomStatus {
	h.mu.RLock()
	room, ok := h.rooms[topic]
	h.mu.RUnlock()
	if !ok {
		return models.ChatRoomStatus{Room: topic, OnlineUsers: []models.ChatUser{}}
	}

	room.mu.RLock()
	last := room.lastActivity
	count := len(room.sessions)
	room.mu.RUnlock()

	return models.ChatRoomStatus{
		Room:         topic,
		MemberCount:  count,
		Active:       count > 0,
		OnlineUsers:  room.roster(),
		LastActivity: last,
	}
}

// RoomCount reports the number of live rooms.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// inboundMessage is the only client->server frame.
type inboundMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Room    string `json:"room"`
}

// readPump consumes client frames until the connection drops.
func (sess *Session) readPump(h *Hub) {
	defer h.leave(sess)

	sess.conn.SetReadLimit(int64(models.MaxChatMessageLength * 4))
	sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	sess.conn.SetPongHandler(func(string) error {
		sess.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debugf("chat read error from %s: %v", sess.userID, err)
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != models.ChatTypeMessage {
			continue
		}
		body := strings.TrimSpace(msg.Message)
		if body == "" {
			sess.sendSystem("message must not be empty")
			continue
		}
		if len(body) > models.MaxChatMessageLength {
			sess.sendSystem("message too long")
			continue
		}

		sess.room.broadcast(&models.ChatMessage{
			Type:      models.ChatTypeMessage,
			Room:      sess.room.topic,
			UserID:    sess.userID,
			Username:  sess.username,
			Message:   body,
			Timestamp: time.Now().Unix(),
		})
	}
}

// writePump flushes the outbound queue and keeps the connection alive.
func (sess *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sess.close()
	}()

	for {
		select {
		case frame := <-sess.send:
			sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-sess.done:
			sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			sess.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendSystem queues a system message to this session only.
func (sess *Session) sendSystem(text string) {
	frame, err := json.Marshal(&models.ChatMessage{
		Type:      models.ChatTypeSystem,
		Room:      sess.room.topic,
		Message:   text,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		return
	}
	sess.enqueue(frame)
}
