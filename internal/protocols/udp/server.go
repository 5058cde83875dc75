package udp

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"mangahub/pkg/logger"
	"mangahub/pkg/models"
)

const (
	evictionThreshold = 30 * time.Second
	sweepInterval     = 10 * time.Second
	probeAfter        = 20 * time.Second
)

// endpoint is one registered datagram receiver.
type endpoint struct {
	addr     *net.UDPAddr
	lastSeen time.Time
}

// Server is the UDP notification bus.
type Server struct {
	addr string
	conn *net.UDPConn

	mu        sync.RWMutex
	endpoints map[string]*endpoint

	// Bounds the datagram send rate during fan-out so one noisy
	// notification burst cannot saturate the socket.
	limiter *rate.Limiter

	stop    chan struct{}
	stopped chan struct{}
}

// NewServer creates a notification bus listening on addr.
func NewServer(addr string) *Server {
	return &Server{
		addr:      addr,
		endpoints: make(map[string]*endpoint),
		limiter:   rate.NewLimiter(rate.Limit(500), 100),
		stop:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

// Start binds the socket and begins the read and sweep loops.
func (s *Server) Start() error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return fmt.Errorf("udp resolve %s: %w", s.addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("udp listen failed on %s: %w", s.addr, err)
	}
	s.conn = conn
	logger.Infof("UDP notification bus listening on %s", conn.LocalAddr())

	go s.readLoop()
	go s.sweepLoop()
	return nil
}

// Addr reports the bound address.
func (s *Server) Addr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Stop closes the socket; registered endpoints are simply forgotten.
func (s *Server) Stop() {
	close(s.stop)
	if s.conn != nil {
		s.conn.Close()
	}
	select {
	case <-s.stopped:
	case <-time.After(2 * time.Second):
	}
}

func (s *Server) readLoop() {
	defer close(s.stopped)

	buf := make([]byte, maxDatagramSize)
	for {
		n, remote, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.stop:
				return
			default:
				logger.Errorf("UDP read error: %v", err)
				continue
			}
		}
		s.handleDatagram(strings.TrimSpace(string(buf[:n])), remote)
	}
}

func (s *Server) handleDatagram(msg string, remote *net.UDPAddr) {
	switch msg {
	case ControlRegister:
		s.register(remote)
		s.send(remote, []byte(ControlRegistered))
	case ControlPong:
		s.refresh(remote)
	case ControlPing:
		s.refresh(remote)
		s.send(remote, []byte(ControlPong))
	default:
		var notification models.Notification
		if err := json.Unmarshal([]byte(msg), &notification); err != nil || notification.Type == "" {
			return
		}
		s.Broadcast(notification)
	}
}

func (s *Server) register(remote *net.UDPAddr) {
	key := remote.String()
	s.mu.Lock()
	s.endpoints[key] = &endpoint{addr: remote, lastSeen: time.Now()}
	total := len(s.endpoints)
	s.mu.Unlock()
	logger.Infof("UDP endpoint registered: %s (%d live)", key, total)
}

func (s *Server) refresh(remote *net.UDPAddr) {
	s.mu.Lock()
	if ep, ok := s.endpoints[remote.String()]; ok {
		ep.lastSeen = time.Now()
	}
	s.mu.Unlock()
}

// sweepLoop evicts endpoints past the liveness threshold and probes the
// quiet ones with PING.
func (s *Server) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *Server) sweep() {
	now := time.Now()
	var probes []*net.UDPAddr

	s.mu.Lock()
	for key, ep := range s.endpoints {
		idle := now.Sub(ep.lastSeen)
		switch {
		case idle > evictionThreshold:
			delete(s.endpoints, key)
			logger.Infof("UDP endpoint evicted: %s (idle %s)", key, idle.Round(time.Second))
		case idle > probeAfter:
			probes = append(probes, ep.addr)
		}
	}
	s.mu.Unlock()

	for _, addr := range probes {
		s.send(addr, []byte(ControlPing))
	}
}

// Broadcast sends one datagram per live endpoint. Send failures evict.
func (s *Server) Broadcast(notification models.Notification) {
	if notification.Timestamp == 0 {
		notification.Timestamp = time.Now().Unix()
	}
	payload, err := json.Marshal(notification)
	if err != nil {
		logger.Errorf("UDP broadcast marshal failed: %v", err)
		return
	}

	s.mu.RLock()
	targets := make([]*net.UDPAddr, 0, len(s.endpoints))
	for _, ep := range s.endpoints {
		targets = append(targets, ep.addr)
	}
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, addr := range targets {
		if err := s.limiter.Wait(ctx); err != nil {
			break
		}
		if !s.send(addr, payload) {
			s.evict(addr)
		}
	}
	logger.UDP(notification.Type, len(targets))
}

func (s *Server) send(addr *net.UDPAddr, payload []byte) bool {
	if _, err := s.conn.WriteToUDP(payload, addr); err != nil {
		logger.Debugf("UDP send to %s failed: %v", addr, err)
		return false
	}
	return true
}

func (s *Server) evict(addr *net.UDPAddr) {
	s.mu.Lock()
	delete(s.endpoints, addr.String())
	s.mu.Unlock()
}

// EndpointCount reports the number of live registered endpoints.
func (s *Server) EndpointCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.endpoints)
}
