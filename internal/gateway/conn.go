// Package gateway bridges chat-platform adapters and the session core.
// Adapters connect over WebSocket, identify themselves, and exchange JSON
// protocol messages; the gateway relays inbound messages and author
// choices to NATS and transport commands back to the owning adapter.
package gateway

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Conn is one adapter's WebSocket connection. Writes are serialized by a
// mutex because wsutil writers are not safe for concurrent use.
type Conn struct {
	AdapterID   string
	ConnectedAt time.Time

	raw     net.Conn
	writeMu sync.Mutex
	timeout time.Duration
}

// Send writes a server-side text frame to the adapter.
func (c *Conn) Send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.timeout > 0 {
		if err := c.raw.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return fmt.Errorf("gateway: set write deadline: %w", err)
		}
	}
	if err := wsutil.WriteServerMessage(c.raw, ws.OpText, data); err != nil {
		return fmt.Errorf("gateway: write frame: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.raw.Close()
}

// connManager tracks connected adapters by ID.
type connManager struct {
	mu    sync.RWMutex
	conns map[string]*Conn
}

func newConnManager() *connManager {
	return &connManager{conns: make(map[string]*Conn)}
}

// add registers a connection, closing and replacing any previous
// connection for the same adapter ID.
func (m *connManager) add(c *Conn) {
	m.mu.Lock()
	old := m.conns[c.AdapterID]
	m.conns[c.AdapterID] = c
	m.mu.Unlock()

	if old != nil {
		old.Close()
	}
}

// remove drops a connection if it is still the registered one.
func (m *connManager) remove(c *Conn) {
	m.mu.Lock()
	if m.conns[c.AdapterID] == c {
		delete(m.conns, c.AdapterID)
	}
	m.mu.Unlock()
}

// get returns the connection for an adapter, or nil.
func (m *connManager) get(adapterID string) *Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conns[adapterID]
}

// closeAll closes every connection.
func (m *connManager) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.conns {
		c.Close()
		delete(m.conns, id)
	}
}

// count returns the number of connected adapters.
func (m *connManager) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}
