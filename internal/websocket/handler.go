package websocket

import (
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tacmap/internal/config"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Mobile clients connect from app contexts without a meaningful
		// Origin header.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Dispatcher consumes decoded activity from connection read loops. The
// read loop never mutates game state itself; it hands frames off and
// reports transport loss.
type Dispatcher interface {
	HandleFrame(conn *Connection, data []byte)
	HandleDisconnect(conn *Connection)
}

// Handler upgrades HTTP requests to WebSocket connections and runs their
// read and heartbeat loops.
type Handler struct {
	registry   *Registry
	dispatcher Dispatcher
	cfg        *config.WebSocketConfig
}

func NewHandler(registry *Registry, dispatcher Dispatcher, cfg *config.WebSocketConfig) *Handler {
	return &Handler{
		registry:   registry,
		dispatcher: dispatcher,
		cfg:        cfg,
	}
}

// HandleWebSocket accepts a client transport. Connections are anonymous at
// upgrade time; they gain a player/session association when the client
// creates or joins a session.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sock, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	conn := NewConnection(uuid.New().String(), sock, h.cfg.WriteTimeout)
	h.registry.Register(conn)
	log.Printf("Connection opened: conn=%s remote=%s", conn.ID, r.RemoteAddr)

	go h.heartbeatLoop(conn, sock)
	go h.readLoop(conn, sock)
}

// readLoop decodes frames and forwards them to the dispatcher. Any read
// error ends the connection and triggers the implicit leave path.
func (h *Handler) readLoop(conn *Connection, sock *websocket.Conn) {
	defer func() {
		h.dispatcher.HandleDisconnect(conn)
		h.registry.Unregister(conn.ID)
		_ = conn.Close()
		log.Printf("Connection closed: conn=%s", conn.ID)
	}()

	sock.SetPongHandler(func(string) error {
		conn.Touch()
		return nil
	})

	for {
		messageType, data, err := sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("Read error on %s: %v", conn.ID, err)
			}
			return
		}
		conn.Touch()
		if messageType == websocket.TextMessage {
			h.dispatcher.HandleFrame(conn, data)
		}
	}
}

// heartbeatLoop probes the client with ping control frames. A connection
// that misses the configured number of probes while not backgrounded is
// forcibly closed, which surfaces as a read error and runs the leave path.
func (h *Handler) heartbeatLoop(conn *Connection, sock *websocket.Conn) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for range ticker.C {
		if conn.State() == StateDisconnected {
			return
		}

		missed := conn.MissHeartbeat()
		if missed > h.cfg.MaxMissedHeartbeats {
			log.Printf("Heartbeat timeout: conn=%s missed=%d", conn.ID, missed)
			_ = conn.Close()
			return
		}

		deadline := time.Now().Add(h.cfg.WriteTimeout)
		if err := sock.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
			return
		}
	}
}
