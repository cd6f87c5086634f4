package ws

import (
	"encoding/json"
	"log"
	"sort"
	"sync"

	"nox-relay/internal/models"
	"nox-relay/internal/observability"
)

// Hub tracks live connections and the chat topics they are subscribed to.
// Delivery hands each frame to the client's send queue; it never blocks.
type Hub struct {
	clients map[string]*Client
	topics  map[string]map[string]bool
	mu      sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		topics:  make(map[string]map[string]bool),
	}
}

// AddClient registers a connection.
func (h *Hub) AddClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

// RemoveClient drops a connection from the hub and every topic, then closes
// its send queue.
func (h *Hub) RemoveClient(connID string) {
	h.mu.Lock()
	c, ok := h.clients[connID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, connID)
	h.unsubscribeAllLocked(connID)
	h.mu.Unlock()

	close(c.send)
}

// Subscribe adds a live connection to a chat topic.
func (h *Hub) Subscribe(topic, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[connID]; !ok {
		return
	}
	if _, ok := h.topics[topic]; !ok {
		h.topics[topic] = make(map[string]bool)
	}
	h.topics[topic][connID] = true
}

// Unsubscribe removes a connection from a chat topic.
func (h *Hub) Unsubscribe(topic, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.topics[topic]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(h.topics, topic)
		}
	}
}

// UnsubscribeAll removes a connection from every topic while keeping it registered.
func (h *Hub) UnsubscribeAll(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeAllLocked(connID)
}

// CloseTopic forgets a topic and all of its subscriptions.
func (h *Hub) CloseTopic(topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.topics, topic)
}

// SendTo delivers an event to a single connection.
func (h *Hub) SendTo(connID string, event models.Event) {
	payload, ok := encode(event)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if c, ok := h.clients[connID]; ok {
		h.deliver(c, payload)
	}
}

// Publish delivers an event to every subscriber of topic except exceptConnID.
func (h *Hub) Publish(topic string, event models.Event, exceptConnID string) {
	payload, ok := encode(event)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for connID := range h.topics[topic] {
		if connID == exceptConnID {
			continue
		}
		if c, ok := h.clients[connID]; ok {
			h.deliver(c, payload)
		}
	}
}

// BroadcastExcept delivers an event to every connection except exceptConnID.
func (h *Hub) BroadcastExcept(exceptConnID string, event models.Event) {
	payload, ok := encode(event)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for connID, c := range h.clients {
		if connID == exceptConnID {
			continue
		}
		h.deliver(c, payload)
	}
}

// Subscribers lists the connections subscribed to topic, sorted.
func (h *Hub) Subscribers(topic string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns := make([]string, 0, len(h.topics[topic]))
	for connID := range h.topics[topic] {
		conns = append(conns, connID)
	}
	sort.Strings(conns)
	return conns
}

// ClientCount returns the number of live connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// deliver must be called with h.mu held.
func (h *Hub) deliver(c *Client, payload []byte) {
	select {
	case c.send <- payload:
	default:
		log.Printf("websocket send queue full, dropping frame conn_id=%s", c.ID)
		observability.IncEventDropped("send_queue_full")
	}
}

func (h *Hub) unsubscribeAllLocked(connID string) {
	for topic, conns := range h.topics {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(h.topics, topic)
		}
	}
}

func encode(event models.Event) ([]byte, bool) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("websocket encode error: type=%s err=%v", event.Type, err)
		return nil, false
	}
	return payload, true
}
