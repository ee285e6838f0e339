package websocket

import (
	"sync"

	"auction-ledger/internal/domain"
	"auction-ledger/pkg/logger"
)

// ConnectionManager tracks the feed connections of the single auction, keyed by user.
type ConnectionManager struct {
	userConns map[string][]domain.WebSocketConnection
	mutex     sync.RWMutex
	log       logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		userConns: make(map[string][]domain.WebSocketConnection),
		log:       log,
	}
}

func (cm *ConnectionManager) RegisterConnection(userID string, conn domain.WebSocketConnection) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	cm.userConns[userID] = append(cm.userConns[userID], conn)

	cm.log.Info("Connection registered", "user_id", userID, "user_connections", len(cm.userConns[userID]))
	return nil
}

func (cm *ConnectionManager) UnregisterConnection(userID string, conn domain.WebSocketConnection) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	userConnections, exists := cm.userConns[userID]
	if !exists {
		return nil
	}

	var newConns []domain.WebSocketConnection
	for _, existingConn := range userConnections {
		if existingConn != conn {
			newConns = append(newConns, existingConn)
		}
	}

	if len(newConns) == 0 {
		delete(cm.userConns, userID)
	} else {
		cm.userConns[userID] = newConns
	}

	cm.log.Info("Connection unregistered", "user_id", userID)
	return nil
}

// CloseAll closes and forgets every connection.
func (cm *ConnectionManager) CloseAll() error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	closed := 0
	for userID, conns := range cm.userConns {
		for _, conn := range conns {
			if err := conn.Close(); err != nil {
				cm.log.Error("Failed to close connection", "user_id", userID, "error", err)
				continue
			}
			closed++
		}
	}
	cm.userConns = make(map[string][]domain.WebSocketConnection)

	cm.log.Info("Feed connections closed", "count", closed)
	return nil
}

func (cm *ConnectionManager) GetConnections() []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	var connections []domain.WebSocketConnection
	for _, conns := range cm.userConns {
		connections = append(connections, conns...)
	}
	return connections
}

func (cm *ConnectionManager) GetConnectionsForUser(userID string) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	conns := cm.userConns[userID]
	if len(conns) == 0 {
		return nil
	}
	connections := make([]domain.WebSocketConnection, len(conns))
	copy(connections, conns)
	return connections
}

func (cm *ConnectionManager) Broadcast(message interface{}) error {
	connections := cm.GetConnections()
	cm.log.Debug("Broadcasting to feed", "connections", len(connections))

	for _, conn := range connections {
		if err := conn.Send(message); err != nil {
			// Continue to other connections
			cm.log.Error("Failed to send message", "user_id", conn.UserID(), "error", err)
		}
	}

	return nil
}

func (cm *ConnectionManager) NotifyUser(userID string, message interface{}) error {
	for _, conn := range cm.GetConnectionsForUser(userID) {
		if err := conn.Send(message); err != nil {
			cm.log.Error("Failed to send message", "user_id", userID, "error", err)
		}
	}

	return nil
}
