package engine

import (
	"time"

	"tacmap/internal/game"
	"tacmap/internal/protocol"
)

// InputKind is the closed set of gameplay inputs the tick loop processes.
type InputKind int

const (
	InputPlayerJoined InputKind = iota
	InputLocationUpdate
	InputAddPin
	InputRemovePin
	InputSendMessage
	InputAssignTeam
)

// String returns the action type name carried on input acknowledgments.
func (k InputKind) String() string {
	switch k {
	case InputPlayerJoined:
		return "playerJoined"
	case InputLocationUpdate:
		return "locationUpdate"
	case InputAddPin:
		return "addPin"
	case InputRemovePin:
		return "removePin"
	case InputSendMessage:
		return "sendMessage"
	case InputAssignTeam:
		return "assignTeam"
	}
	return "unknown"
}

// Input is one queued unit of work. It lives only inside a session's queue
// between enqueue and the next tick's drain. Only the fields relevant to
// Kind are populated.
type Input struct {
	Kind         InputKind
	PlayerID     string // originating player
	ConnectionID string // originating connection, excluded from echo broadcasts
	Sequence     uint64
	ReceivedAt   time.Time

	Location       *game.Location          // InputLocationUpdate
	Pin            protocol.PinPayload     // InputAddPin
	PinID          string                  // InputRemovePin
	Message        protocol.MessagePayload // InputSendMessage
	TargetPlayerID string                  // InputAssignTeam
	TeamID         string                  // InputAssignTeam
	Player         game.Player             // InputPlayerJoined
	Reconnection   bool                    // InputPlayerJoined
}

// Dirty-flag categories tracked per session between publishes.
type Category string

const (
	CategoryPositions    Category = "playerPositions"
	CategoryPlayerStates Category = "playerStates"
	CategoryPins         Category = "pins"
	CategoryMessages     Category = "messages"
	CategoryTeams        Category = "teams"
)
