package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/vetclinic/internal/domain"
)

// AuditAdmin inspects and maintains the audit streams for operators.
type AuditAdmin struct {
	client    *redis.Client
	stream    string
	dlqStream string
}

func NewAuditAdmin(client *redis.Client, stream, dlqStream string) *AuditAdmin {
	return &AuditAdmin{client: client, stream: stream, dlqStream: dlqStream}
}

// Stats reports stream lengths and per-group backlog.
func (a *AuditAdmin) Stats(ctx context.Context) (*domain.AuditStreamStats, error) {
	stats := &domain.AuditStreamStats{Stream: a.stream, DLQStream: a.dlqStream}

	var err error
	if stats.Length, err = a.client.XLen(ctx, a.stream).Result(); err != nil {
		return nil, fmt.Errorf("failed to get length of stream %s: %w", a.stream, err)
	}
	if stats.DLQLength, err = a.client.XLen(ctx, a.dlqStream).Result(); err != nil {
		return nil, fmt.Errorf("failed to get length of stream %s: %w", a.dlqStream, err)
	}
	exists, err := a.client.Exists(ctx, a.stream).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check stream %s: %w", a.stream, err)
	}
	if exists == 0 {
		// XINFO GROUPS fails on a stream that was never created.
		return stats, nil
	}

	groups, err := a.client.XInfoGroups(ctx, a.stream).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get group info for stream %s: %w", a.stream, err)
	}
	for _, g := range groups {
		stats.Groups = append(stats.Groups, domain.AuditGroupInfo{
			Name:            g.Name,
			Consumers:       g.Consumers,
			Pending:         g.Pending,
			LastDeliveredID: g.LastDeliveredID,
		})
	}
	return stats, nil
}

// TrimDLQ caps the dead-letter stream at maxLen entries and returns how many were removed.
func (a *AuditAdmin) TrimDLQ(ctx context.Context, maxLen int64) (int64, error) {
	n, err := a.client.XTrimMaxLen(ctx, a.dlqStream, maxLen).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to trim stream %s: %w", a.dlqStream, err)
	}
	return n, nil
}
