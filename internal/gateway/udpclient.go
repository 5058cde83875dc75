package gateway

import (
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"mangahub/internal/protocols/udp"
	"mangahub/pkg/logger"
	"mangahub/pkg/models"
)

const (
	pongPeriod     = 20 * time.Second
	redialInterval = 5 * time.Second
)

// UDPBridge is the process-wide registration on the notification bus.
// One bridge serves every SSE notifications client: received datagrams
// are published into the notifications hub.
type UDPBridge struct {
	busAddr string
	hub     *SSEHub

	mu   sync.Mutex
	conn *net.UDPConn

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewUDPBridge creates the bridge; Start registers it with the bus.
func NewUDPBridge(busAddr string, hub *SSEHub) *UDPBridge {
	return &UDPBridge{
		busAddr: busAddr,
		hub:     hub,
		stop:    make(chan struct{}),
	}
}

// Start dials the bus, registers, and runs the read and heartbeat
// loops. Registration failures are retried in the background; the
// gateway never refuses to start because the bus is down.
func (b *UDPBridge) Start() {
	b.wg.Add(1)
	go b.run()
}

// Stop closes the socket and halts the loops.
func (b *UDPBridge) Stop() {
	close(b.stop)
	b.mu.Lock()
	if b.conn != nil {
		b.conn.Close()
	}
	b.mu.Unlock()
	b.wg.Wait()
}

func (b *UDPBridge) run() {
	defer b.wg.Done()

	for {
		select {
		case <-b.stop:
			return
		default:
		}

		conn, err := b.connect()
		if err != nil {
			logger.Warnf("UDP bridge connect failed: %v", err)
			select {
			case <-time.After(redialInterval):
			case <-b.stop:
				return
			}
			continue
		}

		done := make(chan struct{})
		b.wg.Add(1)
		go b.heartbeat(conn, done)
		b.readLoop(conn)
		close(done)

		// readLoop returned: socket died or Stop was called.
		select {
		case <-b.stop:
			return
		case <-time.After(redialInterval):
		}
	}
}

// connect dials and registers, closing any previous socket so a reconnect
// never leaves a stale endpoint registered on the bus.
func (b *UDPBridge) connect() (*net.UDPConn, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", b.busAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve notification bus %s: %w", b.busAddr, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("dial notification bus %s: %w", b.busAddr, err)
	}
	if _, err := conn.Write([]byte(udp.ControlRegister)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("register on notification bus: %w", err)
	}

	b.mu.Lock()
	if b.conn != nil {
		b.conn.Close()
	}
	b.conn = conn
	b.mu.Unlock()
	logger.Infof("UDP bridge registered with notification bus at %s", b.busAddr)
	return conn, nil
}

func (b *UDPBridge) current() *net.UDPConn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn
}

func (b *UDPBridge) readLoop(conn *net.UDPConn) {
	buf := make([]byte, 2048)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			select {
			case <-b.stop:
			default:
				logger.Warnf("UDP bridge read error: %v", err)
			}
			return
		}

		msg := strings.TrimSpace(string(buf[:n]))
		switch msg {
		case udp.ControlRegistered, udp.ControlPong:
		case udp.ControlPing:
			conn.Write([]byte(udp.ControlPong))
		default:
			var notification models.Notification
			if err := json.Unmarshal([]byte(msg), &notification); err != nil || notification.Type == "" {
				continue
			}
			b.hub.Publish([]byte(msg))
		}
	}
}

// heartbeat keeps one registration alive inside the bus's eviction
// window; it ends with its connection's read loop.
func (b *UDPBridge) heartbeat(conn *net.UDPConn, done chan struct{}) {
	defer b.wg.Done()

	ticker := time.NewTicker(pongPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := conn.Write([]byte(udp.ControlPong)); err != nil {
				return
			}
		case <-done:
			return
		case <-b.stop:
			return
		}
	}
}
