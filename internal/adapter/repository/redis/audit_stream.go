// Package redis buffers tenant audit events on Redis Streams and fans tenant
// cache invalidations out over Redis pub/sub.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/vetclinic/internal/domain"
)

var errNotImplemented = errors.New("method not implemented for the redis audit buffer")

const (
	defaultReadBlock = 2 * time.Second
	defaultClaimIdle = 30 * time.Second
)

// AuditStream implements the buffer half of domain.AuditRepository using a
// Redis Stream with a consumer group and a dead-letter stream.
type AuditStream struct {
	client    *redis.Client
	logger    *slog.Logger
	stream    string
	dlqStream string
	block     time.Duration
	claimIdle time.Duration
}

// NewAuditStream creates the buffer. When group is not empty the consumer
// group is created on the stream if it does not exist yet.
func NewAuditStream(ctx context.Context, client *redis.Client, logger *slog.Logger, stream, dlqStream, group string) (*AuditStream, error) {
	s := &AuditStream{
		client:    client,
		logger:    logger.With("component", "audit_stream"),
		stream:    stream,
		dlqStream: dlqStream,
		block:     defaultReadBlock,
		claimIdle: defaultClaimIdle,
	}
	if group == "" {
		return s, nil
	}
	if err := s.setupConsumerGroup(ctx, group); err != nil {
		return nil, err
	}
	return s, nil
}

// WithBlock overrides how long ReadBatch waits for new messages.
func (s *AuditStream) WithBlock(d time.Duration) *AuditStream {
	s.block = d
	return s
}

// WithClaimIdle sets how long a delivered entry may stay unacknowledged
// before another consumer reclaims it. Zero disables reclaiming.
func (s *AuditStream) WithClaimIdle(d time.Duration) *AuditStream {
	s.claimIdle = d
	return s
}

func (s *AuditStream) setupConsumerGroup(ctx context.Context, group string) error {
	err := s.client.XGroupCreateMkStream(ctx, s.stream, group, "0").Err()
	if err != nil && !isBusyGroupError(err) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// BufferEvent appends the event to the stream.
func (s *AuditStream) BufferEvent(ctx context.Context, event domain.AuditEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{"payload": payload},
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to XADD to redis stream: %w", err)
	}
	return nil
}

// ReadBatch returns up to count events for consumer in group. Entries left
// pending by a consumer that died are reclaimed first, then new entries are
// read.
func (s *AuditStream) ReadBatch(ctx context.Context, group, consumer string, count int) ([]domain.AuditEvent, error) {
	messages, err := s.claimStale(ctx, group, consumer, count)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		if messages, err = s.readNew(ctx, group, consumer, count); err != nil {
			return nil, err
		}
	}
	return s.decode(ctx, group, messages), nil
}

func (s *AuditStream) claimStale(ctx context.Context, group, consumer string, count int) ([]redis.XMessage, error) {
	if s.claimIdle <= 0 {
		return nil, nil
	}
	messages, _, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   s.stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  s.claimIdle,
		Start:    "0-0",
		Count:    int64(count),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to XAUTOCLAIM from redis: %w", err)
	}
	if len(messages) > 0 {
		s.logger.Info("reclaimed idle audit events", "count", len(messages), "consumer", consumer)
	}
	return messages, nil
}

func (s *AuditStream) readNew(ctx context.Context, group, consumer string, count int) ([]redis.XMessage, error) {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{s.stream, ">"},
		Count:    int64(count),
		Block:    s.block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to XREADGROUP from redis: %w", err)
	}
	if len(streams) == 0 {
		return nil, nil
	}
	return streams[0].Messages, nil
}

// decode turns stream entries into events. Entries that cannot be decoded are
// parked on the DLQ and acknowledged so they do not stay pending forever.
func (s *AuditStream) decode(ctx context.Context, group string, messages []redis.XMessage) []domain.AuditEvent {
	events := make([]domain.AuditEvent, 0, len(messages))
	var malformed []redis.XMessage
	for _, msg := range messages {
		payload, ok := msg.Values["payload"].(string)
		if !ok {
			s.logger.Warn("audit stream entry has no payload", "message_id", msg.ID)
			malformed = append(malformed, msg)
			continue
		}
		var event domain.AuditEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			s.logger.Warn("failed to unmarshal audit event from stream", "message_id", msg.ID, "error", err)
			malformed = append(malformed, msg)
			continue
		}
		event.StreamMessageID = msg.ID
		events = append(events, event)
	}

	if len(malformed) > 0 {
		if err := s.parkMalformed(ctx, group, malformed); err != nil {
			// Still pending; the next reclaim retries the park.
			s.logger.Error("failed to park malformed audit entries", "count", len(malformed), "error", err)
		}
	}
	return events
}

func (s *AuditStream) parkMalformed(ctx context.Context, group string, messages []redis.XMessage) error {
	ids := make([]string, 0, len(messages))
	pipe := s.client.TxPipeline()
	for _, msg := range messages {
		values := map[string]interface{}{
			"original_stream": s.stream,
			"original_msg_id": msg.ID,
			"failed_at":       time.Now().UTC().Format(time.RFC3339),
			"reason":          "malformed",
		}
		if raw, ok := msg.Values["payload"]; ok {
			values["payload"] = fmt.Sprint(raw)
		}
		pipe.XAdd(ctx, &redis.XAddArgs{Stream: s.dlqStream, Values: values})
		ids = append(ids, msg.ID)
	}
	pipe.XAck(ctx, s.stream, group, ids...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to park malformed entries: %w", err)
	}
	s.logger.Warn("moved malformed audit entries to DLQ", "count", len(ids))
	return nil
}

// Acknowledge marks messages as processed for group.
func (s *AuditStream) Acknowledge(ctx context.Context, group string, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if err := s.client.XAck(ctx, s.stream, group, messageIDs...).Err(); err != nil {
		return fmt.Errorf("failed to XACK messages in redis: %w", err)
	}
	return nil
}

// MoveToDLQ copies events to the dead-letter stream in one pipeline.
func (s *AuditStream) MoveToDLQ(ctx context.Context, events []domain.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			s.logger.Error("failed to marshal event for DLQ", "event_id", event.ID, "error", err)
			continue
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: s.dlqStream,
			Values: map[string]interface{}{
				"payload":         payload,
				"original_stream": s.stream,
				"original_msg_id": event.StreamMessageID,
				"failed_at":       time.Now().UTC().Format(time.RFC3339),
			},
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to execute DLQ pipeline: %w", err)
	}
	s.logger.Warn("moved audit events to DLQ", "count", len(events))
	return nil
}

// WriteBatch is not implemented for the buffer.
func (s *AuditStream) WriteBatch(ctx context.Context, events []domain.AuditEvent) error {
	return errNotImplemented
}

func isBusyGroupError(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}
