package services

import (
	"context"
	"fmt"

	"auction-ledger/internal/domain"
	"auction-ledger/pkg/logger"
)

// EventListener relays ledger events to connected feed clients.
type EventListener struct {
	broadcaster       domain.Broadcaster
	notifier          domain.UserNotifier
	connectionManager domain.ConnectionManager
	log               logger.Logger
}

func NewEventListener(connectionManager domain.ConnectionManager, broadcaster domain.Broadcaster,
	notifier domain.UserNotifier, log logger.Logger) *EventListener {
	return &EventListener{
		broadcaster:       broadcaster,
		notifier:          notifier,
		connectionManager: connectionManager,
		log:               log,
	}
}

func (el *EventListener) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	el.log.Info("Starting event listener")
	return subscriber.SubscribeToLedgerEvents(ctx, el.HandleLedgerEvent)
}

func (el *EventListener) HandleLedgerEvent(event *domain.LedgerEvent) error {
	el.log.Debug("Handling ledger event", "type", event.Type, "id", event.ID)

	switch event.Type {
	case domain.BidPlaced:
		return el.handleBidPlaced(event)
	case domain.AuctionExtended:
		return el.handleAuctionExtended(event)
	case domain.ExcessRefunded:
		return el.handleExcessRefunded(event)
	case domain.AuctionFinished:
		return el.handleAuctionFinished(event)
	case domain.DepositsSettled, domain.EmergencyWithdrawal:
		return el.handlePayout(event)
	}

	return fmt.Errorf("unknown event type %q", event.Type)
}

func (el *EventListener) handleBidPlaced(event *domain.LedgerEvent) error {
	return el.broadcaster.Broadcast(context.Background(), map[string]interface{}{
		"type":           "bid_update",
		"current_bid":    event.Amount,
		"current_winner": event.Bidder,
		"deadline":       event.Deadline,
		"timestamp":      event.Timestamp,
	})
}

func (el *EventListener) handleAuctionExtended(event *domain.LedgerEvent) error {
	return el.broadcaster.Broadcast(context.Background(), map[string]interface{}{
		"type":      "auction_extended",
		"deadline":  event.Deadline,
		"timestamp": event.Timestamp,
	})
}

// Refunds are private to the bidder who asked for them.
func (el *EventListener) handleExcessRefunded(event *domain.LedgerEvent) error {
	return el.notifier.NotifyUser(context.Background(), string(event.Bidder), map[string]interface{}{
		"type":      "excess_refunded",
		"amount":    event.Amount,
		"timestamp": event.Timestamp,
	})
}

func (el *EventListener) handleAuctionFinished(event *domain.LedgerEvent) error {
	return el.broadcaster.Broadcast(context.Background(), map[string]interface{}{
		"type":      "auction_ended",
		"winner":    event.Bidder,
		"amount":    event.Amount,
		"timestamp": event.Timestamp,
	})
}

// Once funds have left the ledger nothing else will be published, so the feed is closed.
func (el *EventListener) handlePayout(event *domain.LedgerEvent) error {
	if err := el.broadcaster.Broadcast(context.Background(), map[string]interface{}{
		"type":      string(event.Type),
		"amount":    event.Amount,
		"timestamp": event.Timestamp,
	}); err != nil {
		el.log.Error("Failed to broadcast payout event", "type", event.Type, "error", err)
		return err
	}

	if err := el.connectionManager.CloseAll(); err != nil {
		el.log.Error("Failed to close feed connections", "error", err)
		return err
	}
	return nil
}
