package redis

import (
	"context"
	"encoding/json"

	"auction-ledger/internal/domain"

	"github.com/go-redis/redis/v8"
)

const DefaultChannel = "ledger_events"

type EventPublisherImpl struct {
	client  *redis.Client
	channel string
}

func NewEventPublisher(client *redis.Client, channel string) *EventPublisherImpl {
	if channel == "" {
		channel = DefaultChannel
	}
	return &EventPublisherImpl{client: client, channel: channel}
}

func (r *EventPublisherImpl) PublishLedgerEvent(ctx context.Context, event *domain.LedgerEvent) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}

	return r.client.Publish(ctx, r.channel, payload).Err()
}

func encodeEvent(event *domain.LedgerEvent) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
