// Package hub fans session events out to live websocket subscribers. It is a
// secondary, best-effort feed alongside webhooks: failed writers are dropped,
// never retried.
package hub

import "sync"

type Writer interface {
	Write(message []byte) error
	Close() error
}

// Connection is one subscriber to one session's event stream.
type Connection struct {
	SessionKey string
	Writer     Writer
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

	if h.connections[conn.SessionKey] == nil {
		h.connections[conn.SessionKey] = make(map[*Connection]struct{})
	}
	h.connections[conn.SessionKey][conn] = struct{}{}
}

func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.connections[conn.SessionKey]
	if set == nil {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.connections, conn.SessionKey)
	}
}

// Broadcast writes message to every subscriber of sessionKey, unregistering
// any writer that fails.
func (h *Hub) Broadcast(sessionKey string, message []byte) {
	h.mu.RLock()
	set := h.connections[sessionKey]
	conns := make([]*Connection, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	var failed []*Connection
	for _, c := range conns {
		if err := c.Writer.Write(message); err != nil {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		_ = c.Writer.Close()
		h.Unregister(c)
	}
}
