package game

import (
	"time"
)

// Session lifecycle phases mirrored into the sync view.
const (
	StateWaiting = "waiting"
	StateActive  = "active"
	StatePaused  = "paused"
	StateEnded   = "ended"
)

// Location is a player-reported fix. Heading, altitude, accuracy and speed
// are optional because not every device reports them.
type Location struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Heading   *float64  `json:"heading,omitempty"`
	Altitude  *float64  `json:"altitude,omitempty"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	Speed     *float64  `json:"speed,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Valid reports whether a location is usable: coordinates inside the
// ±90/±180 envelope and not the (0,0) null-island sentinel that broken
// sensor bridges emit before the first real fix.
func (l *Location) Valid() bool {
	if l == nil {
		return false
	}
	if l.Latitude == 0 && l.Longitude == 0 {
		return false
	}
	return l.Latitude >= -90 && l.Latitude <= 90 &&
		l.Longitude >= -180 && l.Longitude <= 180
}

// Player is a session member. TeamID is empty while unassigned. Players are
// mutated only through Session operations.
type Player struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Color    string    `json:"color,omitempty"`
	TeamID   string    `json:"teamId,omitempty"`
	IsHost   bool      `json:"isHost"`
	Location *Location `json:"location,omitempty"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Team holds ids of its members, never player objects, so the session
// remains the single owner of player state.
type Team struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`

	members map[string]struct{}
}

// View returns the serializable form of a team with a stable member list.
func (t *Team) View() TeamView {
	players := make([]string, 0, len(t.members))
	for id := range t.members {
		players = append(players, id)
	}
	return TeamView{ID: t.ID, Name: t.Name, Color: t.Color, Players: players}
}

type TeamView struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Color   string   `json:"color"`
	Players []string `json:"players"`
}

// Coordinate is a bare map point for pins.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Pin is a map annotation. Immutable once placed; a teamId restricts
// visibility to that team.
type Pin struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Name       string     `json:"name"`
	Coordinate Coordinate `json:"coordinate"`
	PlayerID   string     `json:"playerId"`
	TeamID     string     `json:"teamId,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Message is one chat entry. A teamId scopes delivery to that team.
type Message struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	PlayerID   string    `json:"playerId"`
	PlayerName string    `json:"playerName"`
	TeamID     string    `json:"teamId,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// PlayerStatus is the per-player entry of the sync view.
type PlayerStatus struct {
	IsActive bool      `json:"isActive"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
}

// SessionView is the full serializable session state used for snapshots,
// join responses, and sync requests.
type SessionView struct {
	ID              string                  `json:"id"`
	Code            string                  `json:"code"`
	Name            string                  `json:"name"`
	HostPlayerID    string                  `json:"hostPlayerId"`
	GameState       string                  `json:"gameState"`
	Teams           []TeamView              `json:"teams"`
	Players         []Player                `json:"players"`
	Pins            []Pin                   `json:"pins"`
	Messages        []Message               `json:"messages"`
	PlayerPositions map[string]*Location    `json:"playerPositions"`
	PlayerStates    map[string]PlayerStatus `json:"playerStates"`
	CreatedAt       time.Time               `json:"createdAt"`
	LastActivity    time.Time               `json:"lastActivity"`
}

// Summary is the reduced listing used by the REST surface. Nothing
// sensitive: no positions, pins, or messages.
type Summary struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	PlayerCount int       `json:"playerCount"`
	CreatedAt   time.Time `json:"createdAt"`
}
