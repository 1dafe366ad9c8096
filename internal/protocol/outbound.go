package protocol

import (
	"time"

	"tacmap/internal/game"
)

// Outbound frames carry their own "type" field so they can be marshaled
// directly. Constructors fill the type tag to keep call sites short.

type SessionCreated struct {
	Type        string           `json:"type"`
	SessionCode string           `json:"sessionCode"`
	Session     game.SessionView `json:"session"`
	PlayerID    string           `json:"playerId"`
}

func NewSessionCreated(view game.SessionView, playerID string) SessionCreated {
	return SessionCreated{Type: TypeSessionCreated, SessionCode: view.Code, Session: view, PlayerID: playerID}
}

type SessionJoined struct {
	Type           string           `json:"type"`
	SessionCode    string           `json:"sessionCode"`
	Session        game.SessionView `json:"session"`
	PlayerID       string           `json:"playerId"`
	IsReconnection bool             `json:"isReconnection"`
}

func NewSessionJoined(view game.SessionView, playerID string, reconnection bool) SessionJoined {
	return SessionJoined{
		Type:           TypeSessionJoined,
		SessionCode:    view.Code,
		Session:        view,
		PlayerID:       playerID,
		IsReconnection: reconnection,
	}
}

type SessionLeft struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSessionLeft() SessionLeft {
	return SessionLeft{Type: TypeSessionLeft, Timestamp: time.Now()}
}

type PlayerEvent struct {
	Type   string      `json:"type"` // playerJoined or playerReconnected
	Player game.Player `json:"player"`
	Tick   uint64      `json:"tick"`
}

type PlayerLeft struct {
	Type       string `json:"type"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

func NewPlayerLeft(playerID, playerName string) PlayerLeft {
	return PlayerLeft{Type: TypePlayerLeft, PlayerID: playerID, PlayerName: playerName}
}

type LocationBroadcast struct {
	Type       string         `json:"type"`
	PlayerID   string         `json:"playerId"`
	PlayerName string         `json:"playerName"`
	Location   *game.Location `json:"location"`
	TeamID     string         `json:"teamId,omitempty"`
	Tick       uint64         `json:"tick"`
}

type PinAdded struct {
	Type string   `json:"type"`
	Pin  game.Pin `json:"pin"`
	Tick uint64   `json:"tick"`
}

type PinRemoved struct {
	Type  string `json:"type"`
	PinID string `json:"pinId"`
	Tick  uint64 `json:"tick"`
}

type MessageReceived struct {
	Type    string       `json:"type"`
	Message game.Message `json:"message"`
	Tick    uint64       `json:"tick"`
}

type TeamAssigned struct {
	Type       string `json:"type"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	TeamID     string `json:"teamId"`
	Tick       uint64 `json:"tick"`
}

type GameSnapshot struct {
	Type           string           `json:"type"`
	Tick           uint64           `json:"tick"`
	Timestamp      time.Time        `json:"timestamp"`
	IsFullSnapshot bool             `json:"isFullSnapshot"`
	Session        game.SessionView `json:"session"`
}

// DeltaChanges holds only the state categories that changed since the last
// publish. Empty categories are omitted from the wire form.
type DeltaChanges struct {
	PlayerPositions map[string]*game.Location    `json:"playerPositions,omitempty"`
	PlayerStates    map[string]game.PlayerStatus `json:"playerStates,omitempty"`
	Players         []game.Player                `json:"players,omitempty"`
	Pins            []game.Pin                   `json:"pins,omitempty"`
	Messages        []game.Message               `json:"messages,omitempty"`
	Teams           []game.TeamView              `json:"teams,omitempty"`
}

type GameDelta struct {
	Type      string       `json:"type"`
	Tick      uint64       `json:"tick"`
	Timestamp time.Time    `json:"timestamp"`
	Changes   DeltaChanges `json:"changes"`
}

type InputAck struct {
	Type       string `json:"type"`
	Sequence   uint64 `json:"sequence"`
	ActionType string `json:"actionType"`
	Tick       uint64 `json:"tick"`
}

type FullSync struct {
	Type      string           `json:"type"`
	Session   game.SessionView `json:"session"`
	Timestamp time.Time        `json:"timestamp"`
}

func NewFullSync(view game.SessionView) FullSync {
	return FullSync{Type: TypeFullSync, Session: view, Timestamp: time.Now()}
}

type Pong struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"` // unix millis
}

func NewPong() Pong {
	return Pong{Type: TypePong, Timestamp: time.Now().UnixMilli()}
}

type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(message string) ErrorFrame {
	return ErrorFrame{Type: TypeError, Message: message}
}
