package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are the heartbeat timings in seconds.
	PingInterval = 30
	PongWait     = 60
)

// Event names sent to clients.
const (
	EventSeats   = "seats"
	EventViewers = "viewers"
)

// Publisher fans an event room message out to other server instances.
type Publisher interface {
	PublishEventMessage(eventID uuid.UUID, name string, payload []byte) error
}

// Subscriber delivers messages published for an event room by any instance.
type Subscriber interface {
	SubscribeEvent(eventID uuid.UUID, handler func(name string, payload []byte)) (cancel func(), err error)
}

// Hub keeps event_id -> connected clients and broadcasts to them.
// With a Publisher and Subscriber set, every broadcast goes through Redis so all instances deliver it once.
type Hub struct {
	rooms  map[uuid.UUID]map[string]*Client
	subs   map[uuid.UUID]func()
	mu     sync.RWMutex
	logger *zap.Logger
	pub    Publisher
	sub    Subscriber
}

// NewHub creates a hub. pub and sub may be nil for a single instance.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:  make(map[uuid.UUID]map[string]*Client),
		subs:   make(map[uuid.UUID]func()),
		logger: logger,
		pub:    pub,
		sub:    sub,
	}
}

// Register adds c to its event room, subscribing the room to Redis on first join.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	room := h.rooms[c.EventID]
	if room == nil {
		room = make(map[string]*Client)
		h.rooms[c.EventID] = room
		if h.sub != nil {
			eventID := c.EventID
			cancel, err := h.sub.SubscribeEvent(eventID, func(name string, payload []byte) {
				h.broadcastLocal(eventID, name, json.RawMessage(payload))
			})
			if err != nil {
				h.logger.Warn("subscribe event room failed", zap.Error(err), zap.String("event_id", eventID.String()))
			} else {
				h.subs[eventID] = cancel
			}
		}
	}
	room[c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined event room", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()))
}

// Unregister removes c, dropping the room and its subscription when empty.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if room, ok := h.rooms[c.EventID]; ok {
		if _, present := room[c.ID]; present {
			delete(room, c.ID)
			close(c.send)
		}
		if len(room) == 0 {
			delete(h.rooms, c.EventID)
			if cancel, ok := h.subs[c.EventID]; ok {
				cancel()
				delete(h.subs, c.EventID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left event room", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()))
}

// Viewers returns the number of clients connected to this instance for eventID.
func (h *Hub) Viewers(eventID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[eventID])
}

func (h *Hub) broadcastLocal(eventID uuid.UUID, name string, data json.RawMessage) {
	msg := WSMessage{Event: name, Data: data}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[eventID] {
		select {
		case c.send <- msg:
		default:
			// slow client, drop
		}
	}
}

// Broadcast delivers payload to every client of eventID across instances.
func (h *Hub) Broadcast(eventID uuid.UUID, name string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("marshal broadcast failed", zap.Error(err), zap.String("event", name))
		return
	}
	if h.pub != nil {
		err := h.pub.PublishEventMessage(eventID, name, data)
		if err == nil {
			return
		}
		h.logger.Warn("publish failed, broadcasting locally", zap.Error(err))
	}
	h.broadcastLocal(eventID, name, data)
}

// sendTo delivers one message to c only.
func (h *Hub) sendTo(c *Client, name string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.rooms[c.EventID][c.ID]; !ok {
		return
	}
	select {
	case c.send <- WSMessage{Event: name, Data: data}:
	default:
	}
}
