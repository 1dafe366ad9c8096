// Package journal records session lifecycle events and chat messages to
// SQLite for diagnostics. The journal is append-only and is never read
// back to rebuild runtime state; sessions do not survive a restart.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"tacmap/internal/game"
)

// Session event kinds.
const (
	EventSessionCreated = "sessionCreated"
	EventPlayerJoined   = "playerJoined"
	EventPlayerLeft     = "playerLeft"
	EventSessionEnded   = "sessionEnded"
)

// SessionEvent is one lifecycle entry.
type SessionEvent struct {
	SessionID  string
	Code       string
	Kind       string
	PlayerID   string
	PlayerName string
	At         time.Time
}

// Recorder is the write surface the rest of the system depends on.
type Recorder interface {
	RecordSessionEvent(ctx context.Context, event SessionEvent) error
	RecordMessage(ctx context.Context, sessionID string, message game.Message) error
	HealthCheck(ctx context.Context) error
	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS session_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	code TEXT NOT NULL,
	kind TEXT NOT NULL,
	player_id TEXT,
	player_name TEXT,
	at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_events_session ON session_events(session_id);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	player_id TEXT NOT NULL,
	player_name TEXT NOT NULL,
	team_id TEXT,
	text TEXT NOT NULL,
	at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
`

// SQLite is a Recorder backed by a local database file. All writes funnel
// through a single goroutine; SQLite performs poorly under concurrent
// writers.
type SQLite struct {
	db      *sql.DB
	timeout time.Duration

	writes   chan writeOp
	shutdown chan struct{}
	wg       sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type writeOp struct {
	run    func(*sql.DB) error
	result chan error
}

// NewSQLite opens (or creates) the journal database and starts the writer
// goroutine.
func NewSQLite(path string, timeout time.Duration) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}

	j := &SQLite{
		db:       db,
		timeout:  timeout,
		writes:   make(chan writeOp, 100),
		shutdown: make(chan struct{}),
	}

	j.wg.Add(1)
	go j.writeLoop()

	return j, nil
}

func (j *SQLite) writeLoop() {
	defer j.wg.Done()

	for {
		select {
		case op := <-j.writes:
			op.result <- op.run(j.db)
		case <-j.shutdown:
			return
		}
	}
}

func (j *SQLite) executeWrite(ctx context.Context, run func(*sql.DB) error) error {
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return ErrJournalClosed
	}
	j.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	op := writeOp{run: run, result: make(chan error, 1)}
	select {
	case j.writes <- op:
	case <-ctx.Done():
		return ctx.Err()
	case <-j.shutdown:
		return ErrJournalClosed
	}

	select {
	case err := <-op.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *SQLite) RecordSessionEvent(ctx context.Context, event SessionEvent) error {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	return j.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.Exec(
			`INSERT INTO session_events (session_id, code, kind, player_id, player_name, at) VALUES (?, ?, ?, ?, ?, ?)`,
			event.SessionID, event.Code, event.Kind, event.PlayerID, event.PlayerName, event.At,
		)
		if err != nil {
			return fmt.Errorf("failed to record session event: %w", err)
		}
		return nil
	})
}

func (j *SQLite) RecordMessage(ctx context.Context, sessionID string, message game.Message) error {
	return j.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.Exec(
			`INSERT OR IGNORE INTO messages (id, session_id, player_id, player_name, team_id, text, at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			message.ID, sessionID, message.PlayerID, message.PlayerName, message.TeamID, message.Text, message.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to record message: %w", err)
		}
		return nil
	})
}

func (j *SQLite) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	return j.db.PingContext(ctx)
}

// Close stops the writer and closes the database.
func (j *SQLite) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	j.mu.Unlock()

	close(j.shutdown)
	j.wg.Wait()

	log.Println("Journal closed")
	return j.db.Close()
}

// Noop is the Recorder wired when journaling is disabled by configuration.
type Noop struct{}

func (Noop) RecordSessionEvent(context.Context, SessionEvent) error    { return nil }
func (Noop) RecordMessage(context.Context, string, game.Message) error { return nil }
func (Noop) HealthCheck(context.Context) error                         { return nil }
func (Noop) Close() error                                              { return nil }
