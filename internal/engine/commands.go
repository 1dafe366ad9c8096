package engine

import (
	"context"
	"log"
	"time"

	"tacmap/internal/game"
	"tacmap/internal/journal"
	"tacmap/internal/protocol"
)

// Commands are the interactive half of the engine's inbox: session
// lifecycle operations that need an answer before the caller can reply to
// its client. They run on the engine goroutine between ticks, so they see
// and mutate state under the same single-writer discipline as inputs.
type command interface {
	execute(e *Engine, now time.Time)
}

type sessionResult struct {
	view         game.SessionView
	reconnection bool
	err          error
}

type createCmd struct {
	connectionID string
	playerID     string
	playerName   string
	reply        chan sessionResult
}

type joinCmd struct {
	connectionID string
	code         string
	playerID     string
	playerName   string
	reply        chan sessionResult
}

type leaveCmd struct {
	connectionID string
	reply        chan bool
}

// disconnectCmd carries the player identity captured before the connection
// was unregistered. The read loop tears the registry entry down right after
// reporting the disconnect, so the command cannot look the binding up later.
type disconnectCmd struct {
	connectionID string
	playerID     string
	sessionID    string
}

type syncCmd struct {
	connectionID string
	reply        chan sessionResult
}

type inputCmd struct {
	sessionID string
	input     Input
}

// CreateSession makes a new session with the caller as host and binds the
// caller's connection to it.
func (e *Engine) CreateSession(connectionID, playerID, playerName string) (game.SessionView, error) {
	reply := make(chan sessionResult, 1)
	stopped, err := e.submit(&createCmd{connectionID: connectionID, playerID: playerID, playerName: playerName, reply: reply})
	if err != nil {
		return game.SessionView{}, err
	}
	result := awaitResult(reply, stopped)
	return result.view, result.err
}

// JoinSession adds the caller to the session with the given code, or
// rebinds them if the player id is already a member (reconnection).
func (e *Engine) JoinSession(connectionID, code, playerID, playerName string) (game.SessionView, bool, error) {
	reply := make(chan sessionResult, 1)
	stopped, err := e.submit(&joinCmd{connectionID: connectionID, code: code, playerID: playerID, playerName: playerName, reply: reply})
	if err != nil {
		return game.SessionView{}, false, err
	}
	result := awaitResult(reply, stopped)
	return result.view, result.reconnection, result.err
}

// Leave removes the connection's player from their session. It reports
// whether the connection was bound to a session at all.
func (e *Engine) Leave(connectionID string) (bool, error) {
	reply := make(chan bool, 1)
	stopped, err := e.submit(&leaveCmd{connectionID: connectionID, reply: reply})
	if err != nil {
		return false, err
	}
	select {
	case left := <-reply:
		return left, nil
	case <-stopped:
		select {
		case left := <-reply:
			return left, nil
		default:
			return false, ErrEngineNotRunning
		}
	}
}

// Sync returns a full serialization of the connection's current session.
func (e *Engine) Sync(connectionID string) (game.SessionView, error) {
	reply := make(chan sessionResult, 1)
	stopped, err := e.submit(&syncCmd{connectionID: connectionID, reply: reply})
	if err != nil {
		return game.SessionView{}, err
	}
	result := awaitResult(reply, stopped)
	return result.view, result.err
}

// Enqueue appends a gameplay input to its session's queue. The input is
// applied on the next tick, in arrival order.
func (e *Engine) Enqueue(sessionID string, input Input) error {
	_, err := e.submit(&inputCmd{sessionID: sessionID, input: input})
	return err
}

// submit places a command on the inbox. It returns the lifecycle channel of
// the run the command was accepted into, so callers can stop waiting for a
// reply when the engine shuts down without executing the command.
func (e *Engine) submit(cmd command) (<-chan struct{}, error) {
	e.mu.RLock()
	running, stopped := e.running, e.stopped
	e.mu.RUnlock()
	if !running {
		return nil, ErrEngineNotRunning
	}
	select {
	case e.inbox <- cmd:
		return stopped, nil
	case <-stopped:
		return nil, ErrEngineNotRunning
	}
}

// awaitResult waits for a command reply. If the engine stops first, a reply
// that raced the shutdown is still honored; otherwise the caller gets
// ErrEngineNotRunning instead of blocking on a command that will never run.
func awaitResult(reply <-chan sessionResult, stopped <-chan struct{}) sessionResult {
	select {
	case result := <-reply:
		return result
	case <-stopped:
		select {
		case result := <-reply:
			return result
		default:
			return sessionResult{err: ErrEngineNotRunning}
		}
	}
}

func (e *Engine) handleCommand(cmd command) {
	cmd.execute(e, time.Now())
}

func (c *createCmd) execute(e *Engine, now time.Time) {
	session := e.store.Create(c.playerID)
	session.AddPlayer(&game.Player{
		ID:       c.playerID,
		Name:     c.playerName,
		IsHost:   true,
		JoinedAt: now,
	})
	e.bind(c.connectionID, c.playerID, session.ID)
	e.recordSessionEvent(journal.SessionEvent{
		SessionID:  session.ID,
		Code:       session.Code,
		Kind:       journal.EventSessionCreated,
		PlayerID:   c.playerID,
		PlayerName: c.playerName,
		At:         now,
	})
	c.reply <- sessionResult{view: session.FullSyncView()}
}

func (c *joinCmd) execute(e *Engine, now time.Time) {
	session, ok := e.store.ByCode(c.code)
	if !ok {
		c.reply <- sessionResult{err: ErrSessionNotFound}
		return
	}
	_, reconnection := session.Player(c.playerID)
	if !reconnection {
		session.AddPlayer(&game.Player{
			ID:       c.playerID,
			Name:     c.playerName,
			JoinedAt: now,
		})
	}
	e.bind(c.connectionID, c.playerID, session.ID)

	player, _ := session.Player(c.playerID)
	e.queueInput(session.ID, Input{
		Kind:         InputPlayerJoined,
		PlayerID:     c.playerID,
		ConnectionID: c.connectionID,
		ReceivedAt:   now,
		Player:       player,
		Reconnection: reconnection,
	})
	if !reconnection {
		e.recordSessionEvent(journal.SessionEvent{
			SessionID:  session.ID,
			Code:       session.Code,
			Kind:       journal.EventPlayerJoined,
			PlayerID:   c.playerID,
			PlayerName: c.playerName,
			At:         now,
		})
	}
	c.reply <- sessionResult{view: session.FullSyncView(), reconnection: reconnection}
}

func (c *leaveCmd) execute(e *Engine, now time.Time) {
	conn, ok := e.registry.Get(c.connectionID)
	if !ok {
		c.reply <- false
		return
	}
	c.reply <- e.removePlayer(c.connectionID, conn.PlayerID(), conn.SessionID(), now)
}

func (c *disconnectCmd) execute(e *Engine, now time.Time) {
	e.removePlayer(c.connectionID, c.playerID, c.sessionID, now)
}

func (c *syncCmd) execute(e *Engine, now time.Time) {
	conn, ok := e.registry.Get(c.connectionID)
	if !ok || conn.SessionID() == "" {
		c.reply <- sessionResult{err: ErrNotInSession}
		return
	}
	session, ok := e.store.ByID(conn.SessionID())
	if !ok {
		c.reply <- sessionResult{err: ErrSessionNotFound}
		return
	}
	c.reply <- sessionResult{view: session.FullSyncView()}
}

func (c *inputCmd) execute(e *Engine, now time.Time) {
	e.queueInput(c.sessionID, c.input)
}

// Disconnect handles a closed connection: the bound player leaves their
// session exactly as an explicit leave would. The caller captures the
// binding before tearing the connection down; passing it here keeps the
// leave working after the registry entry is gone. Safe to call with empty
// ids for connections that never joined a session.
func (e *Engine) Disconnect(connectionID, playerID, sessionID string) {
	if playerID == "" || sessionID == "" {
		return
	}
	if _, err := e.submit(&disconnectCmd{connectionID: connectionID, playerID: playerID, sessionID: sessionID}); err != nil {
		log.Printf("Disconnect dropped: conn=%s error=%v", connectionID, err)
	}
}

// removePlayer takes a player out of their session, broadcasting the
// departure and ending the session when it empties.
func (e *Engine) removePlayer(connectionID, playerID, sessionID string, now time.Time) bool {
	if playerID == "" || sessionID == "" {
		return false
	}
	e.registry.Unbind(connectionID)

	session, ok := e.store.ByID(sessionID)
	if !ok {
		return false
	}
	removed := session.RemovePlayer(playerID)
	if removed == nil {
		return false
	}
	e.markDirty(sessionID, CategoryPlayerStates)
	e.registry.BroadcastToSession(sessionID, protocol.NewPlayerLeft(removed.ID, removed.Name), connectionID)
	e.recordSessionEvent(journal.SessionEvent{
		SessionID:  sessionID,
		Code:       session.Code,
		Kind:       journal.EventPlayerLeft,
		PlayerID:   removed.ID,
		PlayerName: removed.Name,
		At:         now,
	})

	if session.PlayerCount() == 0 {
		e.store.Remove(sessionID)
		e.forgetSession(sessionID)
		e.recordSessionEvent(journal.SessionEvent{
			SessionID: sessionID,
			Code:      session.Code,
			Kind:      journal.EventSessionEnded,
			At:        now,
		})
	}
	return true
}

func (e *Engine) bind(connectionID, playerID, sessionID string) {
	if evicted := e.registry.Bind(connectionID, playerID, sessionID); evicted != nil {
		log.Printf("Connection evicted: conn=%s player=%s", evicted.ID, playerID)
		evicted.Close()
	}
}

func (e *Engine) queueInput(sessionID string, input Input) {
	e.inputs[sessionID] = append(e.inputs[sessionID], input)
}

func (e *Engine) recordSessionEvent(event journal.SessionEvent) {
	if err := e.journal.RecordSessionEvent(context.Background(), event); err != nil {
		log.Printf("Journal write failed: session=%s kind=%s error=%v", event.SessionID, event.Kind, err)
	}
}
