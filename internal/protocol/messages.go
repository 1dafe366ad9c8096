// Package protocol defines the wire frames exchanged with clients. One
// WebSocket text frame carries one JSON object with a "type" field; inbound
// frames decode into a closed set of Go types so handling can be matched
// exhaustively.
package protocol

import (
	"encoding/json"
	"fmt"

	"tacmap/internal/game"
)

// Inbound frame types (client -> server).
const (
	TypeCreateSession  = "createSession"
	TypeJoinSession    = "joinSession"
	TypeLeaveSession   = "leaveSession"
	TypeLocationUpdate = "locationUpdate"
	TypeAddPin         = "addPin"
	TypeRemovePin      = "removePin"
	TypeSendMessage    = "sendMessage"
	TypeAssignTeam     = "assignTeam"
	TypeSyncRequest    = "syncRequest"
	TypeAppStateChange = "appStateChange"
	TypePing           = "ping"
)

// Outbound frame types (server -> client).
const (
	TypeSessionCreated    = "sessionCreated"
	TypeSessionJoined     = "sessionJoined"
	TypeSessionLeft       = "sessionLeft"
	TypePlayerJoined      = "playerJoined"
	TypePlayerReconnected = "playerReconnected"
	TypePlayerLeft        = "playerLeft"
	TypeLocationBroadcast = "locationUpdate"
	TypePinAdded          = "pinAdded"
	TypePinRemoved        = "pinRemoved"
	TypeMessageReceived   = "messageReceived"
	TypeTeamAssigned      = "teamAssigned"
	TypeGameSnapshot      = "gameSnapshot"
	TypeGameDelta         = "gameDelta"
	TypeInputAck          = "inputAck"
	TypeFullSync          = "fullSync"
	TypePong              = "pong"
	TypeError             = "error"
)

// Inbound is implemented by every decoded client frame.
type Inbound interface {
	inbound()
}

type CreateSession struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type JoinSession struct {
	SessionCode string `json:"sessionCode"`
	PlayerID    string `json:"playerId"`
	PlayerName  string `json:"playerName"`
}

type LeaveSession struct{}

type LocationUpdate struct {
	Location *game.Location `json:"location"`
	Sequence uint64         `json:"sequence"`
}

// PinPayload is the client-supplied part of an addPin frame. ID is
// optional; the server generates one when absent. Name defaults to the
// type tag.
type PinPayload struct {
	ID         string          `json:"id,omitempty"`
	Type       string          `json:"type"`
	Name       string          `json:"name,omitempty"`
	Coordinate game.Coordinate `json:"coordinate"`
	TeamID     string          `json:"teamId,omitempty"`
}

type AddPin struct {
	Pin      PinPayload `json:"pin"`
	Sequence uint64     `json:"sequence"`
}

type RemovePin struct {
	PinID    string `json:"pinId"`
	Sequence uint64 `json:"sequence"`
}

// MessagePayload is the client-supplied part of a sendMessage frame. A
// teamId scopes delivery to that team.
type MessagePayload struct {
	Text   string `json:"text"`
	TeamID string `json:"teamId,omitempty"`
}

type SendMessage struct {
	Message  MessagePayload `json:"message"`
	Sequence uint64         `json:"sequence"`
}

type AssignTeam struct {
	PlayerID string `json:"playerId"`
	TeamID   string `json:"teamId"`
	Sequence uint64 `json:"sequence"`
}

type SyncRequest struct{}

// App lifecycle states reported by mobile clients.
const (
	AppStateActive     = "active"
	AppStateBackground = "background"
	AppStateInactive   = "inactive"
)

type AppStateChange struct {
	State string `json:"state"`
}

type Ping struct{}

func (CreateSession) inbound()  {}
func (JoinSession) inbound()    {}
func (LeaveSession) inbound()   {}
func (LocationUpdate) inbound() {}
func (AddPin) inbound()         {}
func (RemovePin) inbound()      {}
func (SendMessage) inbound()    {}
func (AssignTeam) inbound()     {}
func (SyncRequest) inbound()    {}
func (AppStateChange) inbound() {}
func (Ping) inbound()           {}

type envelope struct {
	Type string `json:"type"`
}

// Decode parses one raw frame into its typed form. Unknown types and
// malformed JSON return an error; the caller answers with an error frame
// and keeps the connection open.
func Decode(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	var (
		frame Inbound
		err   error
	)
	switch env.Type {
	case TypeCreateSession:
		var f CreateSession
		err = json.Unmarshal(data, &f)
		frame = f
	case TypeJoinSession:
		var f JoinSession
		err = json.Unmarshal(data, &f)
		frame = f
	case TypeLeaveSession:
		frame = LeaveSession{}
	case TypeLocationUpdate:
		var f LocationUpdate
		err = json.Unmarshal(data, &f)
		frame = f
	case TypeAddPin:
		var f AddPin
		err = json.Unmarshal(data, &f)
		frame = f
	case TypeRemovePin:
		var f RemovePin
		err = json.Unmarshal(data, &f)
		frame = f
	case TypeSendMessage:
		var f SendMessage
		err = json.Unmarshal(data, &f)
		frame = f
	case TypeAssignTeam:
		var f AssignTeam
		err = json.Unmarshal(data, &f)
		frame = f
	case TypeSyncRequest:
		frame = SyncRequest{}
	case TypeAppStateChange:
		var f AppStateChange
		err = json.Unmarshal(data, &f)
		frame = f
	case TypePing:
		frame = Ping{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return frame, nil
}
