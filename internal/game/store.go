package game

import (
	"crypto/rand"
	"log"
	"math/big"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	codeLength = 6
	codeChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Store owns the set of live sessions and the code index. Codes are
// normalized to uppercase at creation and at lookup; a removed session
// releases its code for reuse.
type Store struct {
	mu         sync.RWMutex
	sessions   map[string]*Session // sessionID -> Session
	codes      map[string]string   // code -> sessionID
	messageCap int
}

// NewStore creates an empty session store. messageCap bounds each
// session's chat log.
func NewStore(messageCap int) *Store {
	return &Store{
		sessions:   make(map[string]*Session),
		codes:      make(map[string]string),
		messageCap: messageCap,
	}
}

// Create generates a unique code, constructs the session, and indexes it
// by id and code.
func (st *Store) Create(hostPlayerID string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	code := st.generateCodeLocked()
	session := newSession(uuid.New().String(), hostPlayerID, code, st.messageCap)
	st.sessions[session.ID] = session
	st.codes[session.Code] = session.ID

	log.Printf("Session created: code=%s id=%s host=%s", session.Code, session.ID, hostPlayerID)
	return session
}

// ByID returns the session with the given id.
func (st *Store) ByID(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	session, ok := st.sessions[id]
	return session, ok
}

// ByCode looks a session up by code, case-insensitively.
func (st *Store) ByCode(code string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	id, ok := st.codes[strings.ToUpper(code)]
	if !ok {
		return nil, false
	}
	session, ok := st.sessions[id]
	return session, ok
}

// Remove deletes a session from both indexes. Idempotent.
func (st *Store) Remove(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.removeLocked(id)
}

func (st *Store) removeLocked(id string) bool {
	session, ok := st.sessions[id]
	if !ok {
		return false
	}
	delete(st.sessions, id)
	delete(st.codes, session.Code)
	log.Printf("Session removed: code=%s id=%s", session.Code, id)
	return true
}

// Sweep removes every session whose player set is empty and returns how
// many were dropped. There is no time-based expiry: short-lived empty
// sessions during reconnection races are tolerated until the next sweep.
func (st *Store) Sweep() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	for id, session := range st.sessions {
		if session.PlayerCount() == 0 {
			st.removeLocked(id)
			removed++
		}
	}
	return removed
}

// Count returns the number of live sessions.
func (st *Store) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// All returns the live sessions in unspecified order.
func (st *Store) All() []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]*Session, 0, len(st.sessions))
	for _, session := range st.sessions {
		out = append(out, session)
	}
	return out
}

// Summaries returns the listing payload for the REST surface.
func (st *Store) Summaries() []Summary {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]Summary, 0, len(st.sessions))
	for _, session := range st.sessions {
		out = append(out, Summary{
			ID:          session.ID,
			Code:        session.Code,
			Name:        session.Name,
			PlayerCount: session.PlayerCount(),
			CreatedAt:   session.CreatedAt,
		})
	}
	return out
}

// PlayerTeam resolves the current team of a player within a session. Used
// by the connection registry for team-scoped broadcasts.
func (st *Store) PlayerTeam(sessionID, playerID string) (string, bool) {
	session, ok := st.ByID(sessionID)
	if !ok {
		return "", false
	}
	return session.PlayerTeam(playerID)
}

// generateCodeLocked draws random codes until one misses the live set.
// With 36^6 possibilities collisions are vanishingly rare, so rejection
// sampling terminates almost immediately.
func (st *Store) generateCodeLocked() string {
	for {
		code := randomCode(codeLength)
		if _, exists := st.codes[code]; !exists {
			return code
		}
	}
}

func randomCode(n int) string {
	b := make([]byte, n)
	max := big.NewInt(int64(len(codeChars)))
	for i := range b {
		idx, _ := rand.Int(rand.Reader, max)
		b[i] = codeChars[idx.Int64()]
	}
	return string(b)
}
