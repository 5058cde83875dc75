package tcp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"mangahub/pkg/logger"
	"mangahub/pkg/models"
)

const (
	readDeadline  = 90 * time.Second
	writeDeadline = 10 * time.Second
	queueSize     = 64
	drainBudget   = 5 * time.Second
)

// subscription is one user's live session. At most one per user id;
// re-subscribe closes the previous connection.
type subscription struct {
	userID string
	conn   net.Conn

	out   chan []byte
	drain chan struct{} // closed on DISCONNECT receipt

	closeOnce sync.Once
	drainOnce sync.Once
}

func (sub *subscription) close() {
	sub.closeOnce.Do(func() {
		sub.conn.Close()
	})
}

func (sub *subscription) beginDrain() {
	sub.drainOnce.Do(func() {
		close(sub.drain)
	})
}

// enqueue appends a frame to the outbound queue, dropping the oldest
// queued frame when the receiver is slow.
func (sub *subscription) enqueue(frame []byte) {
	for {
		select {
		case sub.out <- frame:
			return
		default:
			select {
			case <-sub.out:
			default:
			}
		}
	}
}

// Server is the TCP progress bus.
type Server struct {
	addr     string
	listener net.Listener

	mu   sync.RWMutex
	subs map[string]*subscription

	stop    chan struct{}
	stopped chan struct{}
	wg      sync.WaitGroup
}

// NewServer creates a progress bus listening on addr.
func NewServer(addr string) *Server {
	return &Server{
		addr:    addr,
		subs:    make(map[string]*subscription),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start binds the listener and begins accepting sessions.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("tcp listen failed on %s: %w", s.addr, err)
	}
	s.listener = listener
	logger.Infof("TCP progress bus listening on %s", listener.Addr())

	go s.acceptLoop()
	return nil
}

// Addr reports the bound address, useful when addr was ":0".
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and every live session.
func (s *Server) Stop() {
	close(s.stop)
	if s.listener != nil {
		s.listener.Close()
	}

	s.mu.Lock()
	for _, sub := range s.subs {
		sub.close()
	}
	s.subs = make(map[string]*subscription)
	s.mu.Unlock()

	select {
	case <-s.stopped:
	case <-time.After(5 * time.Second):
		logger.Warn("TCP progress bus forced stop after timeout")
	}
}

func (s *Server) acceptLoop() {
	defer close(s.stopped)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stop:
				return
			default:
				logger.Errorf("TCP accept error: %v", err)
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection reads lines until the session ends. The connection
// only joins the subscription map once a subscribe frame arrives.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	var sub *subscription
	draining := false
	defer func() {
		if draining {
			return // writeLoop owns teardown while flushing
		}
		if sub != nil {
			s.unsubscribe(sub)
		}
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	for {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		if !scanner.Scan() {
			return
		}

		parsed := parseLine(scanner.Text())
		switch {
		case parsed.control == ControlPing:
			if sub != nil {
				sub.enqueue([]byte(ControlPong))
			} else {
				conn.SetWriteDeadline(time.Now().Add(writeDeadline))
				fmt.Fprintf(conn, "%s\n", ControlPong)
			}
		case parsed.control == ControlPong:
			// Liveness confirmed; the refreshed read deadline is enough.
		case parsed.control == ControlDisconnect:
			if sub != nil {
				sub.beginDrain()
				draining = true
			}
			return
		case parsed.subscribe != nil:
			// A session binds once; replacing a user's subscription
			// takes a new connection.
			if sub != nil {
				continue
			}
			sub = s.subscribe(parsed.subscribe.UserID, conn)
			logger.TCP("subscribed", sub.userID, s.SubscriberCount())
		case parsed.progress != nil:
			s.Broadcast(*parsed.progress)
		default:
			// Noise line, ignored.
		}
	}
}

// subscribe installs the session, closing any previous connection bound
// to the same user id.
func (s *Server) subscribe(userID string, conn net.Conn) *subscription {
	sub := &subscription{
		userID: userID,
		conn:   conn,
		out:    make(chan []byte, queueSize),
		drain:  make(chan struct{}),
	}

	s.mu.Lock()
	if prev, ok := s.subs[userID]; ok {
		prev.close()
	}
	s.subs[userID] = sub
	s.mu.Unlock()

	s.wg.Add(1)
	go s.writeLoop(sub)
	return sub
}

func (s *Server) unsubscribe(sub *subscription) {
	s.mu.Lock()
	if current, ok := s.subs[sub.userID]; ok && current == sub {
		delete(s.subs, sub.userID)
	}
	s.mu.Unlock()
	sub.close()
}

// writeLoop drains the outbound queue onto the socket. On DISCONNECT the
// remaining queued frames are flushed under a bounded budget.
func (s *Server) writeLoop(sub *subscription) {
	defer s.wg.Done()
	defer s.unsubscribe(sub)

	for {
		select {
		case frame := <-sub.out:
			if !s.writeFrame(sub, frame) {
				return
			}
		case <-sub.drain:
			deadline := time.Now().Add(drainBudget)
			for n := len(sub.out); n > 0 && time.Now().Before(deadline); n-- {
				select {
				case frame := <-sub.out:
					if !s.writeFrame(sub, frame) {
						return
					}
				default:
					return
				}
			}
			return
		case <-s.stop:
			return
		}
	}
}

func (s *Server) writeFrame(sub *subscription, frame []byte) bool {
	sub.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if _, err := sub.conn.Write(append(frame, '\n')); err != nil {
		logger.Debugf("TCP write to %s failed: %v", sub.userID, err)
		return false
	}
	return true
}

// Broadcast fans a progress event out to every live subscription. The
// admin trigger and subscriber writes both land here.
func (s *Server) Broadcast(event models.ProgressEvent) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	frame, err := json.Marshal(event)
	if err != nil {
		logger.Errorf("TCP broadcast marshal failed: %v", err)
		return
	}

	s.mu.RLock()
	targets := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		targets = append(targets, sub)
	}
	s.mu.RUnlock()

	for _, sub := range targets {
		sub.enqueue(frame)
	}
	logger.TCP("broadcast", event.UserID, len(targets))
}

// SubscriberCount reports the number of live subscriptions.
func (s *Server) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// IsSubscribed reports whether a user currently holds a subscription.
func (s *Server) IsSubscribed(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.subs[userID]
	return ok
}
