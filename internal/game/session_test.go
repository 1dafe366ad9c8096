package game

import (
	"testing"
	"time"
)

func testSession() *Session {
	return newSession("session-1", "host-1", "ABC123", 100)
}

func addTestPlayer(s *Session, id, name string, host bool) {
	s.AddPlayer(&Player{ID: id, Name: name, IsHost: host, JoinedAt: time.Now()})
}

func TestSession_DefaultTeams(t *testing.T) {
	s := testSession()

	teams := s.Teams()
	if len(teams) != 2 {
		t.Fatalf("Expected 2 default teams, got %d", len(teams))
	}

	byID := map[string]TeamView{}
	for _, team := range teams {
		byID[team.ID] = team
	}
	red, ok := byID["red"]
	if !ok {
		t.Fatal("Expected a red team")
	}
	if red.Color != "#FF0000" {
		t.Errorf("Expected red team color #FF0000, got %s", red.Color)
	}
	blue, ok := byID["blue"]
	if !ok {
		t.Fatal("Expected a blue team")
	}
	if blue.Color != "#0000FF" {
		t.Errorf("Expected blue team color #0000FF, got %s", blue.Color)
	}
	if len(red.Players) != 0 || len(blue.Players) != 0 {
		t.Error("Expected default teams to start empty")
	}
}

func TestSession_NameDerivedFromCode(t *testing.T) {
	s := testSession()
	if s.Name != "Game ABC123" {
		t.Errorf("Expected session name 'Game ABC123', got %q", s.Name)
	}
}

func TestSession_AddRemovePlayer(t *testing.T) {
	s := testSession()
	addTestPlayer(s, "host-1", "Alice", true)
	addTestPlayer(s, "p2", "Bob", false)

	if s.PlayerCount() != 2 {
		t.Fatalf("Expected 2 players, got %d", s.PlayerCount())
	}

	removed := s.RemovePlayer("p2")
	if removed == nil {
		t.Fatal("Expected removed player, got nil")
	}
	if removed.Name != "Bob" {
		t.Errorf("Expected removed player Bob, got %s", removed.Name)
	}
	if s.PlayerCount() != 1 {
		t.Errorf("Expected 1 player after removal, got %d", s.PlayerCount())
	}

	if s.RemovePlayer("unknown") != nil {
		t.Error("Expected nil removing unknown player")
	}
}

func TestSession_RemovePlayerCleansTeamMembership(t *testing.T) {
	s := testSession()
	addTestPlayer(s, "host-1", "Alice", true)
	addTestPlayer(s, "p2", "Bob", false)

	if !s.AssignTeam("p2", "red") {
		t.Fatal("Expected team assignment to succeed")
	}
	s.RemovePlayer("p2")

	for _, team := range s.Teams() {
		if team.ID == "red" && len(team.Players) != 0 {
			t.Errorf("Expected red team empty after player removal, got %v", team.Players)
		}
	}
}

func TestSession_UpdateLocation(t *testing.T) {
	s := testSession()
	addTestPlayer(s, "p1", "Alice", true)

	loc := &Location{Latitude: 51.5, Longitude: -0.12}
	if !s.UpdateLocation("p1", loc) {
		t.Fatal("Expected valid location update to succeed")
	}

	positions := s.Positions()
	stored, ok := positions["p1"]
	if !ok || stored == nil {
		t.Fatal("Expected stored position for p1")
	}
	if stored.Latitude != 51.5 || stored.Longitude != -0.12 {
		t.Errorf("Expected stored position (51.5, -0.12), got (%v, %v)", stored.Latitude, stored.Longitude)
	}
	if stored.Timestamp.IsZero() {
		t.Error("Expected timestamp to be stamped on untimed updates")
	}
}

func TestSession_UpdateLocationRejectsInvalid(t *testing.T) {
	s := testSession()
	addTestPlayer(s, "p1", "Alice", true)

	cases := []struct {
		name string
		loc  *Location
	}{
		{"nil", nil},
		{"zero island", &Location{Latitude: 0, Longitude: 0}},
		{"latitude out of range", &Location{Latitude: 91, Longitude: 10}},
		{"longitude out of range", &Location{Latitude: 10, Longitude: -181}},
	}
	for _, tc := range cases {
		if s.UpdateLocation("p1", tc.loc) {
			t.Errorf("Expected %s location to be rejected", tc.name)
		}
	}

	if s.UpdateLocation("unknown", &Location{Latitude: 1, Longitude: 1}) {
		t.Error("Expected update for unknown player to be rejected")
	}
}

func TestSession_AssignTeam(t *testing.T) {
	s := testSession()
	addTestPlayer(s, "p1", "Alice", true)

	if !s.AssignTeam("p1", "red") {
		t.Fatal("Expected assignment to red to succeed")
	}
	teamID, ok := s.PlayerTeam("p1")
	if !ok || teamID != "red" {
		t.Errorf("Expected player team red, got %q", teamID)
	}

	// Reassignment must move membership, not duplicate it.
	if !s.AssignTeam("p1", "blue") {
		t.Fatal("Expected reassignment to blue to succeed")
	}
	for _, team := range s.Teams() {
		switch team.ID {
		case "red":
			if len(team.Players) != 0 {
				t.Errorf("Expected red team empty after reassignment, got %v", team.Players)
			}
		case "blue":
			if len(team.Players) != 1 {
				t.Errorf("Expected blue team with 1 player, got %v", team.Players)
			}
		}
	}
}

func TestSession_AssignTeamUnknownTargets(t *testing.T) {
	s := testSession()
	addTestPlayer(s, "p1", "Alice", true)

	if s.AssignTeam("unknown", "red") {
		t.Error("Expected assignment of unknown player to fail")
	}
	if s.AssignTeam("p1", "green") {
		t.Error("Expected assignment to unknown team to fail")
	}
}

func TestSession_MessageLogCap(t *testing.T) {
	s := newSession("session-1", "host-1", "ABC123", 5)
	addTestPlayer(s, "p1", "Alice", true)

	for i := 0; i < 8; i++ {
		s.AddMessage(Message{
			ID:        string(rune('a' + i)),
			Text:      "msg",
			PlayerID:  "p1",
			Timestamp: time.Now(),
		})
	}

	messages := s.RecentMessages(100)
	if len(messages) != 5 {
		t.Fatalf("Expected message log capped at 5, got %d", len(messages))
	}
	// Oldest entries are dropped first.
	if messages[0].ID != "d" {
		t.Errorf("Expected oldest surviving message 'd', got %q", messages[0].ID)
	}
	if messages[4].ID != "h" {
		t.Errorf("Expected newest message 'h', got %q", messages[4].ID)
	}
}

func TestSession_RecentMessages(t *testing.T) {
	s := testSession()
	for i := 0; i < 15; i++ {
		s.AddMessage(Message{ID: string(rune('a' + i)), Text: "msg"})
	}

	recent := s.RecentMessages(10)
	if len(recent) != 10 {
		t.Fatalf("Expected 10 recent messages, got %d", len(recent))
	}
	if recent[9].ID != string(rune('a'+14)) {
		t.Errorf("Expected last message to be the newest, got %q", recent[9].ID)
	}
}

func TestSession_PinLifecycle(t *testing.T) {
	s := testSession()
	addTestPlayer(s, "p1", "Alice", true)

	s.AddPin(&Pin{ID: "pin-1", Type: "enemy", Name: "enemy", PlayerID: "p1", Timestamp: time.Now()})
	pins := s.Pins()
	if len(pins) != 1 {
		t.Fatalf("Expected 1 pin, got %d", len(pins))
	}

	if !s.RemovePin("pin-1") {
		t.Error("Expected pin removal to succeed")
	}
	if s.RemovePin("pin-1") {
		t.Error("Expected second removal to report missing pin")
	}
	if len(s.Pins()) != 0 {
		t.Error("Expected no pins after removal")
	}
}

func TestSession_FullSyncView(t *testing.T) {
	s := testSession()
	addTestPlayer(s, "host-1", "Alice", true)
	addTestPlayer(s, "p2", "Bob", false)
	s.UpdateLocation("p2", &Location{Latitude: 10, Longitude: 20})
	s.AssignTeam("p2", "blue")
	s.AddMessage(Message{ID: "m1", Text: "hello", PlayerID: "p2"})
	s.AddPin(&Pin{ID: "pin-1", Type: "objective", Name: "objective"})

	view := s.FullSyncView()
	if view.ID != "session-1" || view.Code != "ABC123" {
		t.Errorf("Expected view identity (session-1, ABC123), got (%s, %s)", view.ID, view.Code)
	}
	if view.HostPlayerID != "host-1" {
		t.Errorf("Expected host host-1, got %s", view.HostPlayerID)
	}
	if len(view.Players) != 2 {
		t.Errorf("Expected 2 players in view, got %d", len(view.Players))
	}
	if len(view.Teams) != 2 {
		t.Errorf("Expected 2 teams in view, got %d", len(view.Teams))
	}
	if len(view.Pins) != 1 {
		t.Errorf("Expected 1 pin in view, got %d", len(view.Pins))
	}
	if len(view.Messages) != 1 {
		t.Errorf("Expected 1 message in view, got %d", len(view.Messages))
	}
	if pos, ok := view.PlayerPositions["p2"]; !ok || pos == nil || pos.Latitude != 10 {
		t.Error("Expected p2 position in view")
	}
	if state, ok := view.PlayerStates["p2"]; !ok || !state.IsActive {
		t.Error("Expected active player state for p2")
	}
}

func TestLocation_Valid(t *testing.T) {
	cases := []struct {
		name  string
		loc   *Location
		valid bool
	}{
		{"nil", nil, false},
		{"normal", &Location{Latitude: 48.85, Longitude: 2.35}, true},
		{"null island", &Location{Latitude: 0, Longitude: 0}, false},
		{"equator nonzero longitude", &Location{Latitude: 0, Longitude: 10}, true},
		{"boundary north", &Location{Latitude: 90, Longitude: 0}, true},
		{"past boundary", &Location{Latitude: 90.01, Longitude: 0}, false},
		{"boundary west", &Location{Latitude: 0, Longitude: -180}, true},
		{"past west", &Location{Latitude: 0, Longitude: -180.5}, false},
	}
	for _, tc := range cases {
		if got := tc.loc.Valid(); got != tc.valid {
			t.Errorf("%s: expected valid=%v, got %v", tc.name, tc.valid, got)
		}
	}
}
