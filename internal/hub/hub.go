package hub

import (
	"sync"

	"orderdesk/internal/model"
)

// Writer receives full order snapshots for the topic it is registered on.
type Writer interface {
	Write(snapshot []model.Order) error
	Close() error
}

type Connection struct {
	Topic  string
	Writer Writer
}

type Hub struct {
	mu          sync.RWMutex
	connections map[string]map[*Connection]struct{}
}

func New() *Hub {
	return &Hub{connections: make(map[string]map[*Connection]struct{})}
}

func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connections[conn.Topic] == nil {
		h.connections[conn.Topic] = make(map[*Connection]struct{})
	}
	h.connections[conn.Topic][conn] = struct{}{}
}

func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.connections[conn.Topic]
	if set == nil {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.connections, conn.Topic)
	}
}

func (h *Hub) Has(topic string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[topic]) > 0
}

func (h *Hub) Broadcast(topic string, snapshot []model.Order) {
	h.mu.RLock()
	set := h.connections[topic]
	conns := make([]*Connection, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	var failed []*Connection
	for _, c := range conns {
		if err := c.Writer.Write(snapshot); err != nil {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		_ = c.Writer.Close()
		h.Unregister(c)
	}
}

// Send delivers a snapshot to a single connection, dropping it on failure.
func (h *Hub) Send(conn *Connection, snapshot []model.Order) {
	if err := conn.Writer.Write(snapshot); err != nil {
		_ = conn.Writer.Close()
		h.Unregister(conn)
	}
}
