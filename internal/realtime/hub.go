package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Hub maintains room code -> set of connections plus a global connection
// index, and delivers the coordinator's notifications. It implements
// session.Notifier.
type Hub struct {
	mu           sync.RWMutex
	rooms        map[string]map[string]*Client
	clients      map[string]*Client
	roomByClient map[string]string
	logger       *zap.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:        make(map[string]map[string]*Client),
		clients:      make(map[string]*Client),
		roomByClient: make(map[string]string),
		logger:       logger,
	}
}

// Register adds a newly upgraded connection to the global index.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client connected", zap.String("client_id", c.ID))
}

// Unregister removes a connection from the global index and from its room
// channel, if any.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.ID)
	h.leaveRoomLocked(c.ID)
	h.mu.Unlock()
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID))
}

// JoinRoom places a connection into a room channel. A connection occupies at
// most one room; joining another leaves the previous one.
func (h *Hub) JoinRoom(roomID, clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[clientID]
	if !ok {
		return
	}
	h.leaveRoomLocked(clientID)
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]*Client)
	}
	h.rooms[roomID][clientID] = c
	h.roomByClient[clientID] = roomID
}

func (h *Hub) leaveRoomLocked(clientID string) {
	roomID, ok := h.roomByClient[clientID]
	if !ok {
		return
	}
	delete(h.roomByClient, clientID)
	if m, ok := h.rooms[roomID]; ok {
		delete(m, clientID)
		if len(m) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// ToRoom sends an event to every connection in a room.
func (h *Hub) ToRoom(roomID, event string, payload interface{}) {
	h.broadcast(roomID, "", event, payload)
}

// ToRoomExcept sends an event to every connection in a room except one.
func (h *Hub) ToRoomExcept(roomID, exceptID, event string, payload interface{}) {
	h.broadcast(roomID, exceptID, event, payload)
}

// ToClient sends an event to a single connection.
func (h *Hub) ToClient(clientID, event string, payload interface{}) {
	msg, ok := encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	c := h.clients[clientID]
	h.mu.RUnlock()
	if c == nil {
		return
	}
	c.enqueue(msg)
}

// Evict removes a connection from its room channel and terminates it. Used
// when the teacher kicks a student.
func (h *Hub) Evict(roomID string, clientID string) {
	h.mu.Lock()
	c := h.clients[clientID]
	h.leaveRoomLocked(clientID)
	h.mu.Unlock()
	if c != nil {
		c.close()
	}
}

// RoomSize returns the number of connections in a room channel.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (h *Hub) broadcast(roomID, exceptID, event string, payload interface{}) {
	msg, ok := encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[roomID]))
	for id, c := range h.rooms[roomID] {
		if id == exceptID {
			continue
		}
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		c.enqueue(msg)
	}
}

func encode(event string, payload interface{}) (WSMessage, bool) {
	var data json.RawMessage
	switch v := payload.(type) {
	case nil:
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return WSMessage{}, false
		}
		data = b
	}
	return WSMessage{Event: event, Data: data}, true
}
