package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultInvalidationChannel carries tenant cache invalidations between instances.
const DefaultInvalidationChannel = "tenant_invalidations"

type invalidationMessage struct {
	TenantID uuid.UUID `json:"tenant_id"`
	Keys     []string  `json:"keys"`
}

// Evictor drops resolver cache entries.
type Evictor interface {
	Invalidate(keys ...string)
}

// InvalidationBus publishes tenant invalidations so every server instance
// evicts its cached copy.
type InvalidationBus struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

func NewInvalidationBus(client *redis.Client, channel string, logger *slog.Logger) *InvalidationBus {
	if channel == "" {
		channel = DefaultInvalidationChannel
	}
	return &InvalidationBus{client: client, channel: channel, logger: logger.With("component", "invalidation_bus")}
}

// InvalidateTenant publishes keys for tenantID.
func (b *InvalidationBus) InvalidateTenant(ctx context.Context, tenantID uuid.UUID, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	payload, err := json.Marshal(invalidationMessage{TenantID: tenantID, Keys: keys})
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish tenant invalidation: %w", err)
	}
	return nil
}

// InvalidationListener is a confirmed subscription to the invalidation channel.
type InvalidationListener struct {
	sub    *redis.PubSub
	logger *slog.Logger
}

// Listen subscribes and waits for Redis to confirm, so no invalidation
// published after Listen returns is missed.
func (b *InvalidationBus) Listen(ctx context.Context) (*InvalidationListener, error) {
	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}
	return &InvalidationListener{sub: sub, logger: b.logger}, nil
}

// Run evicts every received key from local until ctx is done.
func (l *InvalidationListener) Run(ctx context.Context, local Evictor) {
	defer l.sub.Close()
	ch := l.sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var m invalidationMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				l.logger.Warn("dropping malformed invalidation", "error", err)
				continue
			}
			local.Invalidate(m.Keys...)
			l.logger.Debug("evicted tenant cache entries", "tenant_id", m.TenantID, "keys", m.Keys)
		}
	}
}
