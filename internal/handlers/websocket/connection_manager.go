package websocket

import (
	"sort"
	"sync"
	"time"

	"github.com/xpanvictor/aura/pkg/Logger"
)

// ConnectionManager tracks open sockets so they can be listed and closed on shutdown.
type ConnectionManager struct {
	logger      *Logger.Logger
	connections map[string]*Connection
	mutex       sync.RWMutex
}

func NewConnectionManager(logger *Logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		logger:      logger,
		connections: make(map[string]*Connection),
	}
}

func (cm *ConnectionManager) RegisterConnection(c *Connection) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	cm.connections[c.ID] = c
	cm.logger.Infof("registered connection %s (owner %q)", c.ID, c.OwnerID)
}

func (cm *ConnectionManager) UnregisterConnection(id string) {
	cm.mutex.Lock()
	c, ok := cm.connections[id]
	delete(cm.connections, id)
	cm.mutex.Unlock()

	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		cm.logger.Debugf("closing connection %s: %v", id, err)
	}
	cm.logger.Infof("unregistered connection %s", id)
}

func (cm *ConnectionManager) Count() int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return len(cm.connections)
}

type ConnectionInfo struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id,omitempty"`
	SessionID   string    `json:"session_id,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
	LastActive  time.Time `json:"last_active"`
	Busy        bool      `json:"busy"`
}

// Snapshot lists open connections, oldest first.
func (cm *ConnectionManager) Snapshot() []ConnectionInfo {
	cm.mutex.RLock()
	out := make([]ConnectionInfo, 0, len(cm.connections))
	for _, c := range cm.connections {
		out = append(out, ConnectionInfo{
			ID:          c.ID,
			OwnerID:     c.OwnerID,
			SessionID:   c.SessionID(),
			ConnectedAt: c.ConnectedAt,
			LastActive:  c.LastActive(),
			Busy:        c.Busy(),
		})
	}
	cm.mutex.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectedAt.Before(out[j].ConnectedAt) })
	return out
}

// Close closes every socket. Read loops then exit and run their own cleanup.
func (cm *ConnectionManager) Close() error {
	cm.mutex.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for _, c := range cm.connections {
		conns = append(conns, c)
	}
	cm.mutex.RUnlock()

	for _, c := range conns {
		if err := c.Close(); err != nil {
			cm.logger.Debugf("closing connection %s: %v", c.ID, err)
		}
	}
	cm.logger.Infof("connection manager closed %d sockets", len(conns))
	return nil
}
