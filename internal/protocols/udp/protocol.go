// Package udp implements the notification bus: registered datagram
// endpoints with heartbeat liveness, receiving every domain notification
// fanned out by the bus.
package udp

// Control messages are bare words; any other datagram is a JSON
// notification payload.
const (
	ControlRegister   = "REGISTER"
	ControlRegistered = "REGISTERED"
	ControlPing       = "PING"
	ControlPong       = "PONG"
)

const maxDatagramSize = 2048
