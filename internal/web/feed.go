package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/spencerturkel/online-checkers-platform-api/internal/auth"
	"github.com/spencerturkel/online-checkers-platform-api/internal/room"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for now, tighten in production
		return true
	},
}

// feedMessage is what the feed pushes to a client: the user's current room
// view, or a null room once they no longer have one.
type feedMessage struct {
	Type string         `json:"type"`
	Room *room.Snapshot `json:"room"`
}

// Hub fans room changes out to connected WebSocket clients, keyed by the
// user the connection belongs to. One user may hold several connections
// (multiple tabs); each gets every update.
type Hub struct {
	rooms *room.Store

	userClients map[string]map[*feedClient]bool

	// Affected user ids from store changes.
	changes chan []string

	register   chan *feedClient
	unregister chan *feedClient

	mu sync.RWMutex
}

// feedClient is one WebSocket connection.
type feedClient struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
}

// NewHub creates a hub reading room state from the given store.
func NewHub(rooms *room.Store) *Hub {
	return &Hub{
		rooms:       rooms,
		userClients: make(map[string]map[*feedClient]bool),
		changes:     make(chan []string, 64),
		register:    make(chan *feedClient),
		unregister:  make(chan *feedClient),
	}
}

// Notify queues a room-change notification. The store calls this outside
// its lock; a full queue drops the notification rather than blocking.
func (h *Hub) Notify(userIDs []string) {
	select {
	case h.changes <- userIDs:
	default:
		log.Warn().Msg("feed change queue full, dropping update")
	}
}

// Run is the hub's main event loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.userClients[client.userID] == nil {
				h.userClients[client.userID] = make(map[*feedClient]bool)
			}
			h.userClients[client.userID][client] = true
			h.mu.Unlock()

			log.Info().
				Str("user_id", client.userID).
				Msg("feed client connected")

			// The client gets its current view right away.
			h.push(client.userID)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.userClients[client.userID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.userClients, client.userID)
					}
				}
			}
			h.mu.Unlock()

			log.Info().
				Str("user_id", client.userID).
				Msg("feed client disconnected")

		case userIDs := <-h.changes:
			for _, id := range userIDs {
				h.push(id)
			}
		}
	}
}

// push sends the user's current room view to each of their connections.
func (h *Hub) push(userID string) {
	h.mu.RLock()
	clients := h.userClients[userID]
	h.mu.RUnlock()
	if len(clients) == 0 {
		return
	}

	msg := feedMessage{Type: "room"}
	snap, err := h.rooms.Peek(userID)
	if err == nil {
		msg.Room = snap
	}

	message, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal feed message")
		return
	}

	for client := range clients {
		select {
		case client.send <- message:
		default:
			// Client's send channel is full, close it
			close(client.send)
			h.mu.Lock()
			delete(clients, client)
			h.mu.Unlock()
		}
	}
}

// FeedHandler upgrades the connection and subscribes it to the caller's
// room. Browsers cannot set headers during the WebSocket handshake, so the
// session token also comes from a query parameter.
func (s *Service) FeedHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.FromContext(r.Context())
		if !ok {
			token := r.URL.Query().Get("token")
			if token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			var err error
			id, err = s.sessions.Verify(token)
			if err != nil {
				http.Error(w, "invalid session token", http.StatusUnauthorized)
				return
			}
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error().Err(err).Msg("failed to upgrade feed connection")
			return
		}

		client := &feedClient{
			hub:    hub,
			conn:   conn,
			send:   make(chan []byte, 256),
			userID: id.ID,
		}
		client.hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}

// readPump discards client messages and watches for disconnects.
func (c *feedClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Msg("feed connection error")
			}
			break
		}
	}
}

// writePump forwards queued messages and keeps the connection alive with
// pings.
func (c *feedClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
