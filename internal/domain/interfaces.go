package domain

import (
	"context"
	"time"
)

// FundsTransfer moves money out of the ledger. A batch either succeeds as a whole or
// fails without paying anyone. Implementations must not call back into the ledger.
type FundsTransfer interface {
	Transfer(ctx context.Context, transfers []Transfer) error
}

type Clock interface {
	Now() time.Time
}

// Repository interfaces
type EventRepository interface {
	SaveEvent(ctx context.Context, event *LedgerEvent) error
	GetEventHistory(ctx context.Context, limit int) ([]*LedgerEvent, error)
}

// Event interfaces
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, event *LedgerEvent) error
}

type EventSubscriber interface {
	SubscribeToLedgerEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *LedgerEvent) error

// Notification interfaces
type UserNotifier interface {
	NotifyUser(ctx context.Context, userID string, message interface{}) error
}

type Broadcaster interface {
	Broadcast(ctx context.Context, message interface{}) error
}

// WebSocket interfaces
type WebSocketConnection interface {
	Send(message interface{}) error
	Close() error
	UserID() string
}

type ConnectionManager interface {
	RegisterConnection(userID string, conn WebSocketConnection) error
	UnregisterConnection(userID string, conn WebSocketConnection) error
	GetConnections() []WebSocketConnection
	GetConnectionsForUser(userID string) []WebSocketConnection
	Broadcast(message interface{}) error
	NotifyUser(userID string, message interface{}) error
	CloseAll() error
}
