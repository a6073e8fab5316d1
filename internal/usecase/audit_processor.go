package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/V4T54L/vetclinic/internal/domain"
)

const defaultAuditBatchSize = 500

// AuditProcessor moves audit events from the buffer into the durable sink.
type AuditProcessor struct {
	bufferRepo   domain.AuditRepository
	sinkRepo     domain.AuditRepository
	logger       *slog.Logger
	group        string
	consumer     string
	batchSize    int
	retryCount   int
	retryBackoff time.Duration
}

// NewAuditProcessor creates a new processor for one consumer of group.
func NewAuditProcessor(bufferRepo, sinkRepo domain.AuditRepository, logger *slog.Logger, group, consumer string, retryCount int, retryBackoff time.Duration) *AuditProcessor {
	if retryCount < 1 {
		retryCount = 1
	}
	return &AuditProcessor{
		bufferRepo:   bufferRepo,
		sinkRepo:     sinkRepo,
		logger:       logger,
		group:        group,
		consumer:     consumer,
		batchSize:    defaultAuditBatchSize,
		retryCount:   retryCount,
		retryBackoff: retryBackoff,
	}
}

// WithBatchSize overrides the number of events read per batch.
func (uc *AuditProcessor) WithBatchSize(n int) *AuditProcessor {
	if n > 0 {
		uc.batchSize = n
	}
	return uc
}

// ProcessBatch reads a batch of events, writes them to the sink, and
// acknowledges them in the buffer. A batch the sink keeps rejecting is moved
// to the DLQ and acknowledged so it does not block the stream.
func (uc *AuditProcessor) ProcessBatch(ctx context.Context) (int, error) {
	events, err := uc.bufferRepo.ReadBatch(ctx, uc.group, uc.consumer, uc.batchSize)
	if err != nil {
		uc.logger.Error("failed to read audit batch from buffer", "error", err)
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	uc.logger.Debug("read batch of audit events from buffer", "count", len(events))

	if err := uc.writeWithRetry(ctx, events); err != nil {
		uc.logger.Error("failed to write audit batch to sink after retries, moving to DLQ", "error", err, "count", len(events))
		if dlqErr := uc.bufferRepo.MoveToDLQ(ctx, events); dlqErr != nil {
			uc.logger.Error("failed to move audit batch to DLQ", "error", dlqErr)
			// Left pending; the stream reclaims it once it has been idle.
			return 0, dlqErr
		}
		if ackErr := uc.ack(ctx, events); ackErr != nil {
			return 0, ackErr
		}
		return 0, err
	}

	if err := uc.ack(ctx, events); err != nil {
		// The sink upserts on event_id, so redelivery is harmless.
		return 0, err
	}

	uc.logger.Info("sinked audit batch", "count", len(events))
	return len(events), nil
}

func (uc *AuditProcessor) ack(ctx context.Context, events []domain.AuditEvent) error {
	messageIDs := make([]string, 0, len(events))
	for _, event := range events {
		if event.StreamMessageID != "" {
			messageIDs = append(messageIDs, event.StreamMessageID)
		}
	}
	if err := uc.bufferRepo.Acknowledge(ctx, uc.group, messageIDs...); err != nil {
		uc.logger.Error("failed to acknowledge audit events in buffer", "error", err)
		return err
	}
	return nil
}

func (uc *AuditProcessor) writeWithRetry(ctx context.Context, events []domain.AuditEvent) error {
	var lastErr error
	for i := 0; i < uc.retryCount; i++ {
		err := uc.sinkRepo.WriteBatch(ctx, events)
		if err == nil {
			return nil
		}
		lastErr = err
		uc.logger.Warn("failed to write audit batch to sink, retrying...", "attempt", i+1, "error", err)
		if i == uc.retryCount-1 {
			break
		}
		select {
		case <-time.After(uc.retryBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
