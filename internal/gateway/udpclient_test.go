package gateway

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangahub/internal/protocols/udp"
)

func startFakeNotificationBus(t *testing.T) net.PacketConn {
	t.Helper()
	bus, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { bus.Close() })
	return bus
}

func TestReconnectClosesPreviousSocket(t *testing.T) {
	bus := startFakeNotificationBus(t)
	b := NewUDPBridge(bus.LocalAddr().String(), NewSSEHub("notifications"))

	first, err := b.connect()
	require.NoError(t, err)
	second, err := b.connect()
	require.NoError(t, err)
	defer second.Close()

	assert.NotSame(t, first, second)
	assert.Same(t, second, b.current())
	_, err = first.Write([]byte(udp.ControlPong))
	assert.Error(t, err, "stale socket must be closed on reconnect")
}

func TestHeartbeatEndsWithItsConnection(t *testing.T) {
	bus := startFakeNotificationBus(t)
	b := NewUDPBridge(bus.LocalAddr().String(), NewSSEHub("notifications"))

	conn, err := b.connect()
	require.NoError(t, err)
	defer conn.Close()

	done := make(chan struct{})
	b.wg.Add(1)
	go b.heartbeat(conn, done)
	close(done)

	finished := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat outlived its connection cycle")
	}
}
