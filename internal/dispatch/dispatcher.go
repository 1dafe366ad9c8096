// Package dispatch routes decoded client frames to the engine. Session
// lifecycle frames are answered synchronously; gameplay frames become
// queued inputs that are acknowledged from the tick that applies them.
package dispatch

import (
	"errors"
	"log"
	"time"

	"tacmap/internal/engine"
	"tacmap/internal/protocol"
	"tacmap/internal/websocket"
)

type Dispatcher struct {
	engine   *engine.Engine
	registry *websocket.Registry
}

func NewDispatcher(eng *engine.Engine, registry *websocket.Registry) *Dispatcher {
	return &Dispatcher{engine: eng, registry: registry}
}

// HandleFrame processes one raw text frame from a connection. A frame that
// fails to decode answers with an error frame; the connection stays open.
func (d *Dispatcher) HandleFrame(conn *websocket.Connection, data []byte) {
	frame, err := protocol.Decode(data)
	if err != nil {
		log.Printf("Frame rejected: conn=%s error=%v", conn.ID, err)
		d.send(conn, protocol.NewError("Invalid message format"))
		return
	}

	switch f := frame.(type) {
	case protocol.CreateSession:
		d.createSession(conn, f)
	case protocol.JoinSession:
		d.joinSession(conn, f)
	case protocol.LeaveSession:
		d.leaveSession(conn)
	case protocol.LocationUpdate:
		d.enqueue(conn, engine.Input{
			Kind:     engine.InputLocationUpdate,
			Sequence: f.Sequence,
			Location: f.Location,
		})
	case protocol.AddPin:
		d.enqueue(conn, engine.Input{
			Kind:     engine.InputAddPin,
			Sequence: f.Sequence,
			Pin:      f.Pin,
		})
	case protocol.RemovePin:
		d.enqueue(conn, engine.Input{
			Kind:     engine.InputRemovePin,
			Sequence: f.Sequence,
			PinID:    f.PinID,
		})
	case protocol.SendMessage:
		d.enqueue(conn, engine.Input{
			Kind:     engine.InputSendMessage,
			Sequence: f.Sequence,
			Message:  f.Message,
		})
	case protocol.AssignTeam:
		d.enqueue(conn, engine.Input{
			Kind:           engine.InputAssignTeam,
			Sequence:       f.Sequence,
			TargetPlayerID: f.PlayerID,
			TeamID:         f.TeamID,
		})
	case protocol.SyncRequest:
		d.syncRequest(conn)
	case protocol.AppStateChange:
		d.appStateChange(conn, f)
	case protocol.Ping:
		d.send(conn, protocol.NewPong())
	}
}

// HandleDisconnect runs when a connection's read loop ends for any reason.
// The binding is read here, before the read loop unregisters the
// connection, so the implicit leave survives the teardown.
func (d *Dispatcher) HandleDisconnect(conn *websocket.Connection) {
	d.engine.Disconnect(conn.ID, conn.PlayerID(), conn.SessionID())
}

func (d *Dispatcher) createSession(conn *websocket.Connection, f protocol.CreateSession) {
	if f.PlayerID == "" || f.PlayerName == "" {
		d.send(conn, protocol.NewError("Player ID and name are required"))
		return
	}
	view, err := d.engine.CreateSession(conn.ID, f.PlayerID, f.PlayerName)
	if err != nil {
		log.Printf("Create session failed: conn=%s error=%v", conn.ID, err)
		d.send(conn, protocol.NewError("Failed to create session"))
		return
	}
	d.send(conn, protocol.NewSessionCreated(view, f.PlayerID))
}

func (d *Dispatcher) joinSession(conn *websocket.Connection, f protocol.JoinSession) {
	if f.SessionCode == "" || f.PlayerID == "" || f.PlayerName == "" {
		d.send(conn, protocol.NewError("Session code, player ID and name are required"))
		return
	}
	view, reconnection, err := d.engine.JoinSession(conn.ID, f.SessionCode, f.PlayerID, f.PlayerName)
	if err != nil {
		if errors.Is(err, engine.ErrSessionNotFound) {
			d.send(conn, protocol.NewError("Session not found"))
		} else {
			log.Printf("Join session failed: conn=%s code=%s error=%v", conn.ID, f.SessionCode, err)
			d.send(conn, protocol.NewError("Failed to join session"))
		}
		return
	}
	d.send(conn, protocol.NewSessionJoined(view, f.PlayerID, reconnection))
}

func (d *Dispatcher) leaveSession(conn *websocket.Connection) {
	if _, err := d.engine.Leave(conn.ID); err != nil {
		log.Printf("Leave session failed: conn=%s error=%v", conn.ID, err)
		return
	}
	d.send(conn, protocol.NewSessionLeft())
}

func (d *Dispatcher) syncRequest(conn *websocket.Connection) {
	view, err := d.engine.Sync(conn.ID)
	if err != nil {
		d.send(conn, protocol.NewError("Not in a session"))
		return
	}
	d.send(conn, protocol.NewFullSync(view))
}

func (d *Dispatcher) appStateChange(conn *websocket.Connection, f protocol.AppStateChange) {
	var state string
	switch f.State {
	case protocol.AppStateActive:
		state = websocket.StateActive
	case protocol.AppStateBackground, protocol.AppStateInactive:
		state = websocket.StateBackground
	default:
		return
	}
	prev := conn.SetState(state)
	log.Printf("App state change: conn=%s player=%s state=%s", conn.ID, conn.PlayerID(), state)
	if prev == websocket.StateBackground && state == websocket.StateActive {
		d.registry.FlushQueued(conn.ID)
	}
}

// enqueue forwards a gameplay input to the engine when the connection is
// bound to a session. Inputs from unbound connections are dropped.
func (d *Dispatcher) enqueue(conn *websocket.Connection, input engine.Input) {
	sessionID := conn.SessionID()
	if sessionID == "" {
		return
	}
	input.PlayerID = conn.PlayerID()
	input.ConnectionID = conn.ID
	input.ReceivedAt = time.Now()
	if err := d.engine.Enqueue(sessionID, input); err != nil {
		log.Printf("Input dropped: conn=%s kind=%s error=%v", conn.ID, input.Kind, err)
	}
}

func (d *Dispatcher) send(conn *websocket.Connection, frame any) {
	d.registry.SendTo(conn.ID, frame)
}
