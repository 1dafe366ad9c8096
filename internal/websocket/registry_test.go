package websocket

import (
	"encoding/json"
	"testing"
)

// fakeResolver maps player ids to teams for broadcast scoping.
type fakeResolver struct {
	teams map[string]string // playerID -> teamID
}

func (f *fakeResolver) PlayerTeam(sessionID, playerID string) (string, bool) {
	teamID, ok := f.teams[playerID]
	if !ok || teamID == "" {
		return "", false
	}
	return teamID, true
}

func newTestRegistry(teams map[string]string) *Registry {
	return NewRegistry(&fakeResolver{teams: teams})
}

func registerBound(t *testing.T, r *Registry, connID, playerID, sessionID string) (*Connection, *fakeTransport) {
	t.Helper()
	conn, transport := newTestConnection(connID)
	r.Register(conn)
	if evicted := r.Bind(connID, playerID, sessionID); evicted != nil {
		t.Fatalf("Expected no eviction binding %s, got %s", connID, evicted.ID)
	}
	return conn, transport
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := newTestRegistry(nil)
	conn, _ := newTestConnection("c1")
	r.Register(conn)

	got, ok := r.Get("c1")
	if !ok || got.ID != "c1" {
		t.Fatal("Expected registered connection c1")
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Expected lookup of unknown connection to fail")
	}
	if r.Count() != 1 {
		t.Errorf("Expected count 1, got %d", r.Count())
	}
}

func TestRegistry_BindIndexesPlayer(t *testing.T) {
	r := newTestRegistry(nil)
	registerBound(t, r, "c1", "p1", "s1")

	conn, ok := r.ByPlayer("p1")
	if !ok || conn.ID != "c1" {
		t.Fatal("Expected player p1 bound to c1")
	}
	if conn.SessionID() != "s1" {
		t.Errorf("Expected session s1, got %s", conn.SessionID())
	}
}

func TestRegistry_BindEvictsPreviousConnection(t *testing.T) {
	r := newTestRegistry(nil)
	old, _ := registerBound(t, r, "c1", "p1", "s1")

	replacement, _ := newTestConnection("c2")
	r.Register(replacement)
	evicted := r.Bind("c2", "p1", "s1")
	if evicted == nil || evicted.ID != old.ID {
		t.Fatalf("Expected c1 evicted, got %v", evicted)
	}

	conn, ok := r.ByPlayer("p1")
	if !ok || conn.ID != "c2" {
		t.Error("Expected p1 rebound to c2")
	}
}

func TestRegistry_UnbindClearsAssociation(t *testing.T) {
	r := newTestRegistry(nil)
	conn, _ := registerBound(t, r, "c1", "p1", "s1")

	r.Unbind("c1")
	if conn.PlayerID() != "" || conn.SessionID() != "" {
		t.Error("Expected association cleared")
	}
	if _, ok := r.ByPlayer("p1"); ok {
		t.Error("Expected player index entry removed")
	}
	if _, ok := r.Get("c1"); !ok {
		t.Error("Expected connection still registered after unbind")
	}
}

func TestRegistry_UnregisterIdempotent(t *testing.T) {
	r := newTestRegistry(nil)
	registerBound(t, r, "c1", "p1", "s1")

	r.Unregister("c1")
	r.Unregister("c1")

	if r.Count() != 0 {
		t.Errorf("Expected count 0, got %d", r.Count())
	}
	if _, ok := r.ByPlayer("p1"); ok {
		t.Error("Expected player index cleared")
	}
}

func TestRegistry_BroadcastToSession(t *testing.T) {
	r := newTestRegistry(nil)
	_, t1 := registerBound(t, r, "c1", "p1", "s1")
	_, t2 := registerBound(t, r, "c2", "p2", "s1")
	_, t3 := registerBound(t, r, "c3", "p3", "other")

	sent := r.BroadcastToSession("s1", map[string]string{"type": "test"}, "")
	if sent != 2 {
		t.Fatalf("Expected 2 deliveries, got %d", sent)
	}
	if len(t1.sent()) != 1 || len(t2.sent()) != 1 {
		t.Error("Expected frames on both session members")
	}
	if len(t3.sent()) != 0 {
		t.Error("Expected no frame on other-session connection")
	}
}

func TestRegistry_BroadcastExcludesSender(t *testing.T) {
	r := newTestRegistry(nil)
	_, t1 := registerBound(t, r, "c1", "p1", "s1")
	_, t2 := registerBound(t, r, "c2", "p2", "s1")

	sent := r.BroadcastToSession("s1", map[string]string{"type": "test"}, "c1")
	if sent != 1 {
		t.Fatalf("Expected 1 delivery, got %d", sent)
	}
	if len(t1.sent()) != 0 {
		t.Error("Expected sender excluded from broadcast")
	}
	if len(t2.sent()) != 1 {
		t.Error("Expected other member to receive broadcast")
	}
}

func TestRegistry_BroadcastToTeam(t *testing.T) {
	r := newTestRegistry(map[string]string{"p1": "red", "p2": "blue", "p3": "red"})
	_, t1 := registerBound(t, r, "c1", "p1", "s1")
	_, t2 := registerBound(t, r, "c2", "p2", "s1")
	_, t3 := registerBound(t, r, "c3", "p3", "s1")

	sent := r.BroadcastToTeam("s1", "red", map[string]string{"type": "test"}, "")
	if sent != 2 {
		t.Fatalf("Expected 2 deliveries to red team, got %d", sent)
	}
	if len(t1.sent()) != 1 || len(t3.sent()) != 1 {
		t.Error("Expected frames on red team members")
	}
	if len(t2.sent()) != 0 {
		t.Error("Expected no frame on blue team member")
	}
}

func TestRegistry_SendToPlayer(t *testing.T) {
	r := newTestRegistry(nil)
	_, transport := registerBound(t, r, "c1", "p1", "s1")

	if !r.SendToPlayer("p1", map[string]string{"type": "ack"}) {
		t.Fatal("Expected send to succeed")
	}
	frames := transport.sent()
	if len(frames) != 1 {
		t.Fatalf("Expected 1 frame, got %d", len(frames))
	}
	var decoded map[string]string
	if err := json.Unmarshal(frames[0], &decoded); err != nil {
		t.Fatalf("Expected valid JSON, got %v", err)
	}
	if decoded["type"] != "ack" {
		t.Errorf("Expected type ack, got %s", decoded["type"])
	}

	if r.SendToPlayer("missing", map[string]string{}) {
		t.Error("Expected send to unknown player to fail")
	}
}

func TestRegistry_BackgroundQueueAndFlush(t *testing.T) {
	r := newTestRegistry(nil)
	conn, transport := registerBound(t, r, "c1", "p1", "s1")
	_, other := registerBound(t, r, "c2", "p2", "s1")

	conn.SetState(StateBackground)
	r.BroadcastToSession("s1", map[string]string{"seq": "1"}, "")
	r.BroadcastToSession("s1", map[string]string{"seq": "2"}, "")

	if len(transport.sent()) != 0 {
		t.Fatal("Expected no writes to backgrounded connection")
	}
	if len(other.sent()) != 2 {
		t.Fatal("Expected active connection to receive both frames")
	}
	if conn.QueueLen() != 2 {
		t.Fatalf("Expected 2 queued frames, got %d", conn.QueueLen())
	}

	conn.SetState(StateActive)
	r.FlushQueued("c1")

	frames := transport.sent()
	if len(frames) != 2 {
		t.Fatalf("Expected 2 flushed frames, got %d", len(frames))
	}
	var first, second map[string]string
	json.Unmarshal(frames[0], &first)
	json.Unmarshal(frames[1], &second)
	if first["seq"] != "1" || second["seq"] != "2" {
		t.Errorf("Expected FIFO flush order, got %v then %v", first, second)
	}
	if conn.QueueLen() != 0 {
		t.Errorf("Expected empty queue after flush, got %d", conn.QueueLen())
	}
}

func TestRegistry_Stats(t *testing.T) {
	r := newTestRegistry(nil)
	registerBound(t, r, "c1", "p1", "s1")
	registerBound(t, r, "c2", "p2", "s2")
	unbound, _ := newTestConnection("c3")
	r.Register(unbound)

	stats := r.Stats()
	if stats["total_connections"] != 3 {
		t.Errorf("Expected 3 total connections, got %d", stats["total_connections"])
	}
	if stats["bound_players"] != 2 {
		t.Errorf("Expected 2 bound players, got %d", stats["bound_players"])
	}
	if stats["active_sessions"] != 2 {
		t.Errorf("Expected 2 active sessions, got %d", stats["active_sessions"])
	}
}
