package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"tacmap/internal/config"
	"tacmap/internal/game"
	"tacmap/internal/journal"
	"tacmap/internal/protocol"
	"tacmap/internal/websocket"
)

// Engine owns all mutation of game state. Every write path funnels through
// a single goroutine: gameplay inputs are queued per session and drained on
// the next tick, while interactive commands (create, join, leave, sync) run
// between ticks and answer over reply channels. Readers elsewhere only ever
// see state through the store's copying accessors.
type Engine struct {
	store    *game.Store
	registry *websocket.Registry
	journal  journal.Recorder

	tickInterval     time.Duration
	snapshotInterval time.Duration
	sweepInterval    time.Duration

	inbox chan command

	mu      sync.RWMutex
	running bool
	// Recreated on every Start so the engine can be restarted after a
	// Stop. Guarded by mu; the run goroutine gets its own references.
	stopCh  chan struct{}
	stopped chan struct{}

	// Owned by the run goroutine. Tests drive step and handleCommand
	// directly instead of racing the loop.
	tick           uint64
	inputs         map[string][]Input
	dirty          map[string]map[Category]struct{}
	lastSnapshotAt map[string]time.Time
}

func New(store *game.Store, registry *websocket.Registry, recorder journal.Recorder, cfg *config.TickConfig) *Engine {
	return &Engine{
		store:            store,
		registry:         registry,
		journal:          recorder,
		tickInterval:     time.Second / time.Duration(cfg.Rate),
		snapshotInterval: cfg.SnapshotInterval,
		sweepInterval:    cfg.SweepInterval,
		inbox:            make(chan command, 256),
		inputs:           make(map[string][]Input),
		dirty:            make(map[string]map[Category]struct{}),
		lastSnapshotAt:   make(map[string]time.Time),
	}
}

// Start launches the tick loop.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrEngineAlreadyActive
	}
	e.stopCh = make(chan struct{})
	e.stopped = make(chan struct{})
	e.running = true
	go e.run(e.stopCh, e.stopped)
	log.Printf("Engine started: tick=%v snapshot=%v sweep=%v", e.tickInterval, e.snapshotInterval, e.sweepInterval)
	return nil
}

// Stop halts the tick loop and waits for it to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	stopCh, stopped := e.stopCh, e.stopped
	e.mu.Unlock()

	close(stopCh)
	<-stopped
	log.Printf("Engine stopped: tick=%d", e.tick)
}

// run paces itself against wall-clock time so a slow tick shortens the
// following sleep instead of drifting the schedule.
func (e *Engine) run(stopCh, stopped chan struct{}) {
	defer close(stopped)

	timer := time.NewTimer(e.tickInterval)
	defer timer.Stop()
	sweep := time.NewTicker(e.sweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-stopCh:
			return
		case cmd := <-e.inbox:
			e.handleCommand(cmd)
		case <-sweep.C:
			if removed := e.store.Sweep(); removed > 0 {
				log.Printf("Session sweep: removed=%d remaining=%d", removed, e.store.Count())
			}
			e.pruneStale()
		case <-timer.C:
			started := time.Now()
			e.step(started)
			elapsed := time.Since(started)
			next := e.tickInterval - elapsed
			if next < 0 {
				next = 0
			}
			timer.Reset(next)
		}
	}
}

// step advances one tick: drain queued inputs in arrival order, then
// publish a snapshot or delta per session.
func (e *Engine) step(now time.Time) {
	e.tick++
	e.processInputs(now)
	e.publish(now)
}

func (e *Engine) processInputs(now time.Time) {
	for sessionID, queue := range e.inputs {
		if len(queue) == 0 {
			continue
		}
		session, ok := e.store.ByID(sessionID)
		if !ok {
			delete(e.inputs, sessionID)
			continue
		}
		for _, input := range queue {
			e.processInput(session, input, now)
		}
		e.inputs[sessionID] = queue[:0]
	}
}

func (e *Engine) processInput(session *game.Session, input Input, now time.Time) {
	switch input.Kind {
	case InputPlayerJoined:
		e.markDirty(session.ID, CategoryPlayerStates)
		eventType := protocol.TypePlayerJoined
		if input.Reconnection {
			eventType = protocol.TypePlayerReconnected
		}
		e.registry.BroadcastToSession(session.ID, protocol.PlayerEvent{
			Type:   eventType,
			Player: input.Player,
			Tick:   e.tick,
		}, input.ConnectionID)
		e.ack(input)

	case InputLocationUpdate:
		if !session.UpdateLocation(input.PlayerID, input.Location) {
			return
		}
		e.markDirty(session.ID, CategoryPositions)
		e.ack(input)
		player, _ := session.Player(input.PlayerID)
		e.registry.BroadcastToSession(session.ID, protocol.LocationBroadcast{
			Type:       protocol.TypeLocationBroadcast,
			PlayerID:   input.PlayerID,
			PlayerName: player.Name,
			Location:   input.Location,
			TeamID:     player.TeamID,
			Tick:       e.tick,
		}, input.ConnectionID)

	case InputAddPin:
		player, ok := session.Player(input.PlayerID)
		if !ok {
			return
		}
		pin := game.Pin{
			ID:         input.Pin.ID,
			Type:       input.Pin.Type,
			Name:       input.Pin.Name,
			Coordinate: input.Pin.Coordinate,
			PlayerID:   input.PlayerID,
			TeamID:     input.Pin.TeamID,
			Timestamp:  now,
		}
		if pin.ID == "" {
			pin.ID = uuid.New().String()
		}
		if pin.Name == "" {
			pin.Name = pin.Type
		}
		if pin.TeamID == "" {
			pin.TeamID = player.TeamID
		}
		session.AddPin(&pin)
		e.markDirty(session.ID, CategoryPins)
		e.ack(input)
		e.registry.BroadcastToSession(session.ID, protocol.PinAdded{
			Type: protocol.TypePinAdded,
			Pin:  pin,
			Tick: e.tick,
		}, "")

	case InputRemovePin:
		if !session.RemovePin(input.PinID) {
			return
		}
		e.markDirty(session.ID, CategoryPins)
		e.ack(input)
		e.registry.BroadcastToSession(session.ID, protocol.PinRemoved{
			Type:  protocol.TypePinRemoved,
			PinID: input.PinID,
			Tick:  e.tick,
		}, "")

	case InputSendMessage:
		player, ok := session.Player(input.PlayerID)
		if !ok {
			return
		}
		message := game.Message{
			ID:         uuid.New().String(),
			Text:       input.Message.Text,
			PlayerID:   input.PlayerID,
			PlayerName: player.Name,
			TeamID:     input.Message.TeamID,
			Timestamp:  now,
		}
		session.AddMessage(message)
		e.markDirty(session.ID, CategoryMessages)
		e.ack(input)
		frame := protocol.MessageReceived{
			Type:    protocol.TypeMessageReceived,
			Message: message,
			Tick:    e.tick,
		}
		if message.TeamID != "" {
			e.registry.BroadcastToTeam(session.ID, message.TeamID, frame, "")
		} else {
			e.registry.BroadcastToSession(session.ID, frame, "")
		}
		if err := e.journal.RecordMessage(context.Background(), session.ID, message); err != nil {
			log.Printf("Journal write failed: session=%s error=%v", session.ID, err)
		}

	case InputAssignTeam:
		// Host-only operation. Non-host attempts are dropped without an ack.
		if input.PlayerID != session.HostPlayerID {
			log.Printf("Team assignment rejected: session=%s player=%s (not host)", session.ID, input.PlayerID)
			return
		}
		if !session.AssignTeam(input.TargetPlayerID, input.TeamID) {
			return
		}
		e.markDirty(session.ID, CategoryTeams)
		e.markDirty(session.ID, CategoryPlayerStates)
		e.ack(input)
		target, _ := session.Player(input.TargetPlayerID)
		e.registry.BroadcastToSession(session.ID, protocol.TeamAssigned{
			Type:       protocol.TypeTeamAssigned,
			PlayerID:   input.TargetPlayerID,
			PlayerName: target.Name,
			TeamID:     input.TeamID,
			Tick:       e.tick,
		}, "")
	}
}

// publish sends a full snapshot when the session's snapshot interval has
// elapsed (or it has never received one), otherwise a delta built from the
// dirty categories. A snapshot clears every flag; a delta clears only the
// categories it carried.
func (e *Engine) publish(now time.Time) {
	for _, session := range e.store.All() {
		last, sent := e.lastSnapshotAt[session.ID]
		if !sent || now.Sub(last) >= e.snapshotInterval {
			e.registry.BroadcastToSession(session.ID, protocol.GameSnapshot{
				Type:           protocol.TypeGameSnapshot,
				Tick:           e.tick,
				Timestamp:      now,
				IsFullSnapshot: true,
				Session:        session.FullSyncView(),
			}, "")
			e.lastSnapshotAt[session.ID] = now
			delete(e.dirty, session.ID)
			continue
		}

		flags := e.dirty[session.ID]
		if len(flags) == 0 {
			continue
		}
		changes := protocol.DeltaChanges{}
		for category := range flags {
			switch category {
			case CategoryPositions:
				changes.PlayerPositions = session.Positions()
			case CategoryPlayerStates:
				changes.PlayerStates = session.PlayerStates()
				changes.Players = session.Players()
			case CategoryPins:
				changes.Pins = session.Pins()
			case CategoryMessages:
				changes.Messages = session.RecentMessages(10)
			case CategoryTeams:
				changes.Teams = session.Teams()
			}
			delete(flags, category)
		}
		if len(flags) == 0 {
			delete(e.dirty, session.ID)
		}
		e.registry.BroadcastToSession(session.ID, protocol.GameDelta{
			Type:      protocol.TypeGameDelta,
			Tick:      e.tick,
			Timestamp: now,
			Changes:   changes,
		}, "")
	}
}

func (e *Engine) ack(input Input) {
	e.registry.SendToPlayer(input.PlayerID, protocol.InputAck{
		Type:       protocol.TypeInputAck,
		Sequence:   input.Sequence,
		ActionType: input.Kind.String(),
		Tick:       e.tick,
	})
}

func (e *Engine) markDirty(sessionID string, category Category) {
	flags, ok := e.dirty[sessionID]
	if !ok {
		flags = make(map[Category]struct{})
		e.dirty[sessionID] = flags
	}
	flags[category] = struct{}{}
}

// pruneStale drops per-session bookkeeping for sessions the store no
// longer holds.
func (e *Engine) pruneStale() {
	for sessionID := range e.lastSnapshotAt {
		if _, ok := e.store.ByID(sessionID); !ok {
			e.forgetSession(sessionID)
		}
	}
	for sessionID := range e.inputs {
		if _, ok := e.store.ByID(sessionID); !ok {
			delete(e.inputs, sessionID)
		}
	}
}

func (e *Engine) forgetSession(sessionID string) {
	delete(e.inputs, sessionID)
	delete(e.dirty, sessionID)
	delete(e.lastSnapshotAt, sessionID)
}
