package websocket

import (
	"sync"
	"time"
)

// Connection lifecycle states. Background connections queue outbound
// frames instead of writing; disconnected connections accept nothing.
const (
	StateActive       = "active"
	StateBackground   = "background"
	StateDisconnected = "disconnected"
)

// Transport is the minimal write surface a connection needs. The gorilla
// *websocket.Conn satisfies it; tests substitute in-memory fakes.
type Transport interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

const textMessage = 1 // websocket.TextMessage

// Connection is one live client transport plus its bookkeeping: player and
// session association, lifecycle state, heartbeat counters, and the queue
// of frames held back while the client app is backgrounded.
type Connection struct {
	ID string

	sock         Transport
	writeTimeout time.Duration
	wmu          sync.Mutex // serializes transport writes

	mu               sync.Mutex
	playerID         string
	sessionID        string
	state            string
	lastSeen         time.Time
	missedHeartbeats int
	queue            [][]byte
}

// NewConnection wraps a transport. The connection starts active and
// unassociated.
func NewConnection(id string, sock Transport, writeTimeout time.Duration) *Connection {
	return &Connection{
		ID:           id,
		sock:         sock,
		writeTimeout: writeTimeout,
		state:        StateActive,
		lastSeen:     time.Now(),
	}
}

// Send delivers one marshaled frame. Active connections write through
// immediately; background connections queue the frame for later flushing;
// disconnected connections fail.
func (c *Connection) Send(data []byte) error {
	c.mu.Lock()
	switch c.state {
	case StateDisconnected:
		c.mu.Unlock()
		return ErrConnectionClosed
	case StateBackground:
		c.queue = append(c.queue, data)
		c.mu.Unlock()
		return nil
	}
	c.lastSeen = time.Now()
	c.mu.Unlock()

	// State lock is released before the network write; only wmu is held
	// while the transport is busy.
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.sock.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.sock.WriteMessage(textMessage, data)
}

// DrainQueue removes and returns frames queued while backgrounded, in FIFO
// order.
func (c *Connection) DrainQueue() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	queued := c.queue
	c.queue = nil
	return queued
}

// QueueLen reports how many frames are held for a backgrounded client.
func (c *Connection) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// SetState transitions the lifecycle state and returns the previous one.
func (c *Connection) SetState(state string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.state
	c.state = state
	return prev
}

func (c *Connection) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connection) PlayerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID
}

func (c *Connection) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Connection) setAssociation(playerID, sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playerID = playerID
	c.sessionID = sessionID
}

// Touch records client liveness and resets the missed-heartbeat counter.
func (c *Connection) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeen = time.Now()
	c.missedHeartbeats = 0
}

// MissHeartbeat increments and returns the missed-heartbeat counter.
// Backgrounded connections are exempt from heartbeat accounting.
func (c *Connection) MissHeartbeat() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateBackground {
		return 0
	}
	c.missedHeartbeats++
	return c.missedHeartbeats
}

func (c *Connection) LastSeen() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

// Close marks the connection disconnected and closes the transport.
func (c *Connection) Close() error {
	c.mu.Lock()
	c.state = StateDisconnected
	c.mu.Unlock()
	return c.sock.Close()
}
