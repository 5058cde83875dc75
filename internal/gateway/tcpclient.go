package gateway

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"mangahub/internal/protocols/tcp"
	"mangahub/pkg/logger"
	"mangahub/pkg/models"
)

const (
	dialTimeout      = 5 * time.Second
	heartbeatPeriod  = 30 * time.Second
	sessionReadLimit = 120 * time.Second
)

// userSession is one outbound TCP subscription held on behalf of a
// logged-in user.
type userSession struct {
	userID string
	conn   net.Conn

	closeOnce sync.Once
}

func (s *userSession) close() {
	s.closeOnce.Do(func() {
		s.conn.Close()
	})
}

// UserManager keeps at most one outbound progress-bus session per user.
// Frames read from the bus land in the progress SSE hub.
type UserManager struct {
	busAddr string
	hub     *SSEHub

	mu       sync.Mutex
	sessions map[string]*userSession

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewUserManager creates the per-user TCP session registry.
func NewUserManager(busAddr string, hub *SSEHub) *UserManager {
	return &UserManager{
		busAddr:  busAddr,
		hub:      hub,
		sessions: make(map[string]*userSession),
		stop:     make(chan struct{}),
	}
}

// ConnectUser opens a session for the user if none exists. Idempotent:
// a live session makes this a no-op.
func (m *UserManager) ConnectUser(userID string) error {
	m.mu.Lock()
	if _, ok := m.sessions[userID]; ok {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	conn, err := net.DialTimeout("tcp", m.busAddr, dialTimeout)
	if err != nil {
		return fmt.Errorf("dial progress bus %s: %w", m.busAddr, err)
	}

	frame, _ := json.Marshal(tcp.SubscribeFrame{Type: "subscribe", UserID: userID})
	conn.SetWriteDeadline(time.Now().Add(dialTimeout))
	if _, err := conn.Write(append(frame, '\n')); err != nil {
		conn.Close()
		return fmt.Errorf("subscribe %s: %w", userID, err)
	}

	sess := &userSession{userID: userID, conn: conn}

	m.mu.Lock()
	// A concurrent login may have raced us here; keep the first.
	if _, ok := m.sessions[userID]; ok {
		m.mu.Unlock()
		conn.Close()
		return nil
	}
	m.sessions[userID] = sess
	m.mu.Unlock()

	m.wg.Add(2)
	go m.readLoop(sess)
	go m.heartbeat(sess)

	logger.TCP("session_open", userID, m.SessionCount())
	return nil
}

// DisconnectUser says farewell and closes the user's session.
func (m *UserManager) DisconnectUser(userID string) {
	m.mu.Lock()
	sess, ok := m.sessions[userID]
	if ok {
		delete(m.sessions, userID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	sess.conn.SetWriteDeadline(time.Now().Add(time.Second))
	fmt.Fprintf(sess.conn, "%s\n", tcp.ControlDisconnect)
	sess.close()
	logger.TCP("session_close", userID, m.SessionCount())
}

// Stop closes every session.
func (m *UserManager) Stop() {
	close(m.stop)
	m.mu.Lock()
	for _, sess := range m.sessions {
		sess.close()
	}
	m.sessions = make(map[string]*userSession)
	m.mu.Unlock()
	m.wg.Wait()
}

// SessionCount reports the number of live outbound sessions.
func (m *UserManager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// IsConnected reports whether a user holds a live session.
func (m *UserManager) IsConnected(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[userID]
	return ok
}

// readLoop forwards bus frames into the progress hub. On read error the
// session is dropped and the user becomes reconnect-eligible.
func (m *UserManager) readLoop(sess *userSession) {
	defer m.wg.Done()
	defer m.drop(sess)

	scanner := bufio.NewScanner(sess.conn)
	for {
		sess.conn.SetReadDeadline(time.Now().Add(sessionReadLimit))
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case tcp.ControlPong:
		case tcp.ControlPing:
			sess.conn.SetWriteDeadline(time.Now().Add(time.Second))
			fmt.Fprintf(sess.conn, "%s\n", tcp.ControlPong)
		case "", tcp.ControlDisconnect:
		default:
			var event models.ProgressEvent
			if err := json.Unmarshal([]byte(line), &event); err != nil || event.UserID == "" {
				continue
			}
			m.hub.Publish([]byte(line))
		}
	}
}

// heartbeat keeps the subscription inside the bus's read deadline.
func (m *UserManager) heartbeat(sess *userSession) {
	defer m.wg.Done()

	ticker := time.NewTicker(heartbeatPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sess.conn.SetWriteDeadline(time.Now().Add(time.Second))
			if _, err := fmt.Fprintf(sess.conn, "%s\n", tcp.ControlPing); err != nil {
				m.drop(sess)
				return
			}
		case <-m.stop:
			return
		}
	}
}

func (m *UserManager) drop(sess *userSession) {
	m.mu.Lock()
	if current, ok := m.sessions[sess.userID]; ok && current == sess {
		delete(m.sessions, sess.userID)
	}
	m.mu.Unlock()
	sess.close()
}
