package game

import (
	"strings"
	"sync"
	"time"
)

// Session is one live tactical map: players, teams, pins, the capped chat
// log, and the derived sync view. All mutation happens through the methods
// below, which the tick engine calls from its single goroutine; the mutex
// exists so the REST surface and registry can read concurrently.
type Session struct {
	ID           string
	Code         string
	Name         string
	HostPlayerID string
	CreatedAt    time.Time

	mu           sync.RWMutex
	state        string
	players      map[string]*Player
	teams        map[string]*Team
	pins         map[string]*Pin
	messages     []Message
	positions    map[string]*Location
	statuses     map[string]PlayerStatus
	lastActivity time.Time
	messageCap   int
}

// newSession builds a session with the two default teams pre-populated.
func newSession(id, hostPlayerID, code string, messageCap int) *Session {
	now := time.Now()
	code = strings.ToUpper(code)
	s := &Session{
		ID:           id,
		Code:         code,
		Name:         "Game " + code,
		HostPlayerID: hostPlayerID,
		CreatedAt:    now,
		state:        StateWaiting,
		players:      make(map[string]*Player),
		teams:        make(map[string]*Team),
		pins:         make(map[string]*Pin),
		positions:    make(map[string]*Location),
		statuses:     make(map[string]PlayerStatus),
		lastActivity: now,
		messageCap:   messageCap,
	}
	s.teams["red"] = &Team{ID: "red", Name: "Red Team", Color: "#FF0000", members: make(map[string]struct{})}
	s.teams["blue"] = &Team{ID: "blue", Name: "Blue Team", Color: "#0000FF", members: make(map[string]struct{})}
	return s
}

// AddPlayer inserts a player and seeds its sync-view entries: position
// unknown, status active.
func (s *Session) AddPlayer(player *Player) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.players[player.ID] = player
	s.positions[player.ID] = nil
	s.statuses[player.ID] = PlayerStatus{IsActive: true, Status: "active", LastSeen: time.Now()}
	s.lastActivity = time.Now()
}

// RemovePlayer deletes the player along with its team membership and
// sync-view entries. Returns the removed player, or nil if unknown.
func (s *Session) RemovePlayer(playerID string) *Player {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[playerID]
	if !ok {
		return nil
	}
	delete(s.players, playerID)
	delete(s.positions, playerID)
	delete(s.statuses, playerID)
	if player.TeamID != "" {
		if team, ok := s.teams[player.TeamID]; ok {
			delete(team.members, playerID)
		}
	}
	s.lastActivity = time.Now()
	return player
}

// UpdateLocation validates and stores a player's position. Invalid
// locations are rejected and the prior fix stays untouched.
func (s *Session) UpdateLocation(playerID string, location *Location) bool {
	if !location.Valid() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[playerID]
	if !ok {
		return false
	}

	if location.Timestamp.IsZero() {
		location.Timestamp = time.Now()
	}
	player.Location = location
	s.positions[playerID] = location

	if status, ok := s.statuses[playerID]; ok {
		status.IsActive = true
		status.LastSeen = time.Now()
		s.statuses[playerID] = status
	}
	s.lastActivity = time.Now()
	return true
}

// AssignTeam moves a player to a team, keeping team member sets and the
// player's TeamID in agreement. Unknown player or team is a no-op failure.
func (s *Session) AssignTeam(playerID, teamID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[playerID]
	if !ok {
		return false
	}
	team, ok := s.teams[teamID]
	if !ok {
		return false
	}

	if player.TeamID != "" {
		if old, ok := s.teams[player.TeamID]; ok {
			delete(old.members, playerID)
		}
	}
	player.TeamID = teamID
	team.members[playerID] = struct{}{}
	s.lastActivity = time.Now()
	return true
}

func (s *Session) AddPin(pin *Pin) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pins[pin.ID] = pin
	s.lastActivity = time.Now()
}

func (s *Session) RemovePin(pinID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pins[pinID]; !ok {
		return false
	}
	delete(s.pins, pinID)
	s.lastActivity = time.Now()
	return true
}

// AddMessage appends to the chat log, trimming the oldest entries past the
// cap.
func (s *Session) AddMessage(message Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, message)
	if len(s.messages) > s.messageCap {
		s.messages = s.messages[len(s.messages)-s.messageCap:]
	}
	s.lastActivity = time.Now()
}

// Player returns a copy of the player, so callers never hold a reference
// into session-owned state.
func (s *Session) Player(playerID string) (Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	player, ok := s.players[playerID]
	if !ok {
		return Player{}, false
	}
	return *player, true
}

// PlayerTeam resolves the current team of a player; ok is false when the
// player is unknown or unassigned.
func (s *Session) PlayerTeam(playerID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	player, ok := s.players[playerID]
	if !ok || player.TeamID == "" {
		return "", false
	}
	return player.TeamID, true
}

func (s *Session) PlayerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.players)
}

// RecentMessages returns up to n of the newest chat entries, oldest first.
func (s *Session) RecentMessages(n int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > len(s.messages) {
		n = len(s.messages)
	}
	out := make([]Message, n)
	copy(out, s.messages[len(s.messages)-n:])
	return out
}

// Positions returns a copy of the position sync view.
func (s *Session) Positions() map[string]*Location {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*Location, len(s.positions))
	for id, loc := range s.positions {
		out[id] = loc
	}
	return out
}

// Players returns a snapshot of all players.
func (s *Session) Players() []Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playersLocked()
}

func (s *Session) playersLocked() []Player {
	out := make([]Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, *p)
	}
	return out
}

// Pins returns a snapshot of all pins.
func (s *Session) Pins() []Pin {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pinsLocked()
}

func (s *Session) pinsLocked() []Pin {
	out := make([]Pin, 0, len(s.pins))
	for _, p := range s.pins {
		out = append(out, *p)
	}
	return out
}

// Teams returns the serializable team views.
func (s *Session) Teams() []TeamView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.teamsLocked()
}

func (s *Session) teamsLocked() []TeamView {
	out := make([]TeamView, 0, len(s.teams))
	for _, t := range s.teams {
		out = append(out, t.View())
	}
	return out
}

// FullSyncView produces the complete serializable session payload used for
// snapshots and explicit sync requests.
func (s *Session) FullSyncView() SessionView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	positions := make(map[string]*Location, len(s.positions))
	for id, loc := range s.positions {
		positions[id] = loc
	}
	statuses := make(map[string]PlayerStatus, len(s.statuses))
	for id, st := range s.statuses {
		statuses[id] = st
	}
	messages := make([]Message, len(s.messages))
	copy(messages, s.messages)

	return SessionView{
		ID:              s.ID,
		Code:            s.Code,
		Name:            s.Name,
		HostPlayerID:    s.HostPlayerID,
		GameState:       s.state,
		Teams:           s.teamsLocked(),
		Players:         s.playersLocked(),
		Pins:            s.pinsLocked(),
		Messages:        messages,
		PlayerPositions: positions,
		PlayerStates:    statuses,
		CreatedAt:       s.CreatedAt,
		LastActivity:    s.lastActivity,
	}
}

// PlayerStates returns a copy of the per-player status sync view.
func (s *Session) PlayerStates() map[string]PlayerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]PlayerStatus, len(s.statuses))
	for id, st := range s.statuses {
		out[id] = st
	}
	return out
}
