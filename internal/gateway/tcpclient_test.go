package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangahub/internal/protocols/tcp"
	"mangahub/pkg/models"
)

func startBus(t *testing.T) *tcp.Server {
	t.Helper()
	bus := tcp.NewServer("127.0.0.1:0")
	require.NoError(t, bus.Start())
	t.Cleanup(bus.Stop)
	return bus
}

func waitCond(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestConnectUserSubscribesOnBus(t *testing.T) {
	bus := startBus(t)
	hub := NewSSEHub("progress")
	manager := NewUserManager(bus.Addr().String(), hub)
	t.Cleanup(manager.Stop)

	require.NoError(t, manager.ConnectUser("u1"))
	waitCond(t, func() bool { return bus.IsSubscribed("u1") })
	assert.True(t, manager.IsConnected("u1"))
	assert.Equal(t, 1, manager.SessionCount())
}

func TestConnectUserIsIdempotent(t *testing.T) {
	bus := startBus(t)
	manager := NewUserManager(bus.Addr().String(), NewSSEHub("progress"))
	t.Cleanup(manager.Stop)

	require.NoError(t, manager.ConnectUser("u1"))
	require.NoError(t, manager.ConnectUser("u1"))
	assert.Equal(t, 1, manager.SessionCount())
}

func TestConnectUserFailsWhenBusDown(t *testing.T) {
	manager := NewUserManager("127.0.0.1:1", NewSSEHub("progress"))
	t.Cleanup(manager.Stop)

	err := manager.ConnectUser("u1")
	assert.Error(t, err)
	assert.False(t, manager.IsConnected("u1"))
}

func TestBusFramesLandInProgressHub(t *testing.T) {
	bus := startBus(t)
	hub := NewSSEHub("progress")
	manager := NewUserManager(bus.Addr().String(), hub)
	t.Cleanup(manager.Stop)

	stream := hub.Subscribe()
	require.NoError(t, manager.ConnectUser("u1"))
	waitCond(t, func() bool { return bus.IsSubscribed("u1") })

	bus.Broadcast(models.ProgressEvent{
		UserID:     "u2",
		Username:   "bob",
		MangaTitle: "One Piece",
		Chapter:    12,
	})

	select {
	case frame := <-stream:
		var event models.ProgressEvent
		require.NoError(t, json.Unmarshal(frame, &event))
		assert.Equal(t, "bob", event.Username)
		assert.Equal(t, 12, event.Chapter)
	case <-time.After(2 * time.Second):
		t.Fatal("bus frame never reached the SSE hub")
	}
}

func TestDisconnectUserTearsDownSession(t *testing.T) {
	bus := startBus(t)
	manager := NewUserManager(bus.Addr().String(), NewSSEHub("progress"))
	t.Cleanup(manager.Stop)

	require.NoError(t, manager.ConnectUser("u1"))
	waitCond(t, func() bool { return bus.IsSubscribed("u1") })

	manager.DisconnectUser("u1")
	assert.False(t, manager.IsConnected("u1"))
	waitCond(t, func() bool { return !bus.IsSubscribed("u1") })

	// Disconnecting an unknown user is a no-op.
	manager.DisconnectUser("ghost")
}
