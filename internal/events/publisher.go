package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Channel is the redis pub/sub channel carrying ledger events.
const Channel = "ledger.events"

// Publisher fans events out to subscribers. Publish is called after the
// originating transaction has committed; failures are logged, never
// propagated, because the event log is the source of truth.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// RedisPublisher publishes events on a redis channel.
type RedisPublisher struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisPublisher constructs the publisher.
func NewRedisPublisher(client *redis.Client, logger *slog.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, logger: logger}
}

type wireEvent struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	OccurredAt string         `json:"occurred_at"`
	Payload    map[string]any `json:"payload"`
}

// Publish sends the event, best effort.
func (p *RedisPublisher) Publish(ctx context.Context, ev Event) {
	if p == nil || p.client == nil {
		return
	}
	data, err := json.Marshal(wireEvent{
		ID:         ev.ID.String(),
		Type:       ev.Type,
		OccurredAt: ev.OccurredAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Payload:    ev.Payload,
	})
	if err != nil {
		p.warn("marshal event", err)
		return
	}
	if err := p.client.Publish(ctx, Channel, data).Err(); err != nil {
		p.warn("publish event", err)
	}
}

func (p *RedisPublisher) warn(msg string, err error) {
	if p.logger != nil {
		p.logger.Warn(msg, slog.Any("error", err))
	}
}

// NopPublisher drops events. Used when redis is not configured.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) {}
