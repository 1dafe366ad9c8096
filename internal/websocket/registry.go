package websocket

import (
	"encoding/json"
	"log"
	"sync"
)

// TeamResolver answers which team a player currently belongs to. The
// registry itself carries no session or game knowledge; team-scoped
// broadcasts delegate membership lookups through this interface.
type TeamResolver interface {
	PlayerTeam(sessionID, playerID string) (string, bool)
}

// Registry tracks every live connection and its player/session
// association. At most one connection is current for a player id at any
// time; binding a player to a new connection evicts the old entry.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*Connection         // connectionID -> Connection
	byPlayer    map[string]string              // playerID -> connectionID
	bySession   map[string]map[string]struct{} // sessionID -> connectionID set
	teams       TeamResolver
}

// NewRegistry creates an empty registry. resolver may be nil when no
// team-scoped broadcasts are needed (tests).
func NewRegistry(resolver TeamResolver) *Registry {
	return &Registry{
		connections: make(map[string]*Connection),
		byPlayer:    make(map[string]string),
		bySession:   make(map[string]map[string]struct{}),
		teams:       resolver,
	}
}

// Register adds a connection to the registry. The connection starts
// unassociated; Bind attaches it to a player and session.
func (r *Registry) Register(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections[conn.ID] = conn
}

// Bind associates a connection with a player and session, maintaining the
// player and session indexes. If the player id is already bound to a
// different connection that older entry is evicted and returned; closing
// its transport is the caller's decision. This is the reconnection path.
func (r *Registry) Bind(connectionID, playerID, sessionID string) (evicted *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[connectionID]
	if !ok {
		return nil
	}

	if oldID, ok := r.byPlayer[playerID]; ok && oldID != connectionID {
		if old, ok := r.connections[oldID]; ok {
			evicted = old
			r.removeLocked(oldID)
		}
	}

	r.removeIndexesLocked(conn)
	conn.setAssociation(playerID, sessionID)

	if playerID != "" {
		r.byPlayer[playerID] = connectionID
	}
	if sessionID != "" {
		if r.bySession[sessionID] == nil {
			r.bySession[sessionID] = make(map[string]struct{})
		}
		r.bySession[sessionID][connectionID] = struct{}{}
	}

	log.Printf("Connection bound: conn=%s player=%s session=%s", connectionID, playerID, sessionID)
	return evicted
}

// Unbind clears a connection's player/session association while keeping
// the connection registered.
func (r *Registry) Unbind(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[connectionID]
	if !ok {
		return
	}
	r.removeIndexesLocked(conn)
	conn.setAssociation("", "")
}

// Unregister removes a connection and all its index entries. Idempotent.
func (r *Registry) Unregister(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(connectionID)
}

func (r *Registry) removeLocked(connectionID string) {
	conn, ok := r.connections[connectionID]
	if !ok {
		return
	}
	r.removeIndexesLocked(conn)
	delete(r.connections, connectionID)
}

// removeIndexesLocked drops the player/session index entries that point at
// this connection, leaving entries owned by a newer connection intact.
func (r *Registry) removeIndexesLocked(conn *Connection) {
	if playerID := conn.PlayerID(); playerID != "" {
		if r.byPlayer[playerID] == conn.ID {
			delete(r.byPlayer, playerID)
		}
	}
	if sessionID := conn.SessionID(); sessionID != "" {
		if set, ok := r.bySession[sessionID]; ok {
			delete(set, conn.ID)
			if len(set) == 0 {
				delete(r.bySession, sessionID)
			}
		}
	}
}

// Get returns the connection with the given id.
func (r *Registry) Get(connectionID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.connections[connectionID]
	return conn, ok
}

// ByPlayer returns the current connection for a player id.
func (r *Registry) ByPlayer(playerID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connectionID, ok := r.byPlayer[playerID]
	if !ok {
		return nil, false
	}
	conn, ok := r.connections[connectionID]
	return conn, ok
}

// SendTo marshals and delivers one message to a connection. Background
// connections queue the frame; only unknown or fully disconnected
// connections fail.
func (r *Registry) SendTo(connectionID string, message any) bool {
	conn, ok := r.Get(connectionID)
	if !ok {
		return false
	}
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Failed to marshal frame for %s: %v", connectionID, err)
		return false
	}
	if err := conn.Send(data); err != nil {
		log.Printf("Failed to send to %s: %v", connectionID, err)
		return false
	}
	return true
}

// SendToPlayer resolves the player's current connection and delegates to
// SendTo.
func (r *Registry) SendToPlayer(playerID string, message any) bool {
	conn, ok := r.ByPlayer(playerID)
	if !ok {
		return false
	}
	return r.SendTo(conn.ID, message)
}

// BroadcastToSession delivers to every usable connection in the session,
// skipping excludeConnectionID (pass "" to skip nothing). Returns the
// delivery count; used for diagnostics, not correctness.
func (r *Registry) BroadcastToSession(sessionID string, message any, excludeConnectionID string) int {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Failed to marshal broadcast for session %s: %v", sessionID, err)
		return 0
	}

	sent := 0
	for _, conn := range r.sessionConnections(sessionID) {
		if conn.ID == excludeConnectionID {
			continue
		}
		if conn.Send(data) == nil {
			sent++
		}
	}
	return sent
}

// BroadcastToTeam is BroadcastToSession filtered to players whose current
// team matches teamID.
func (r *Registry) BroadcastToTeam(sessionID, teamID string, message any, excludeConnectionID string) int {
	if r.teams == nil {
		return 0
	}
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Failed to marshal team broadcast for session %s: %v", sessionID, err)
		return 0
	}

	sent := 0
	for _, conn := range r.sessionConnections(sessionID) {
		if conn.ID == excludeConnectionID {
			continue
		}
		playerTeam, ok := r.teams.PlayerTeam(sessionID, conn.PlayerID())
		if !ok || playerTeam != teamID {
			continue
		}
		if conn.Send(data) == nil {
			sent++
		}
	}
	return sent
}

// FlushQueued drains a connection's background queue and delivers the
// frames in FIFO order. Called on the background -> active transition.
func (r *Registry) FlushQueued(connectionID string) {
	conn, ok := r.Get(connectionID)
	if !ok {
		return
	}
	queued := conn.DrainQueue()
	if len(queued) == 0 {
		return
	}
	log.Printf("Flushing %d queued frames: conn=%s", len(queued), connectionID)
	for _, data := range queued {
		if err := conn.Send(data); err != nil {
			log.Printf("Failed to flush queued frame to %s: %v", connectionID, err)
			return
		}
	}
}

// sessionConnections snapshots the usable connections of a session so
// sends happen outside the registry lock.
func (r *Registry) sessionConnections(sessionID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.bySession[sessionID]
	if !ok {
		return nil
	}
	out := make([]*Connection, 0, len(set))
	for connectionID := range set {
		conn, ok := r.connections[connectionID]
		if !ok || conn.State() == StateDisconnected {
			continue
		}
		out = append(out, conn)
	}
	return out
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// Stats reports registry totals for the health endpoint.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]int{
		"total_connections": len(r.connections),
		"bound_players":     len(r.byPlayer),
		"active_sessions":   len(r.bySession),
	}
}
