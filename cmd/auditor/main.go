// Command auditor moves tenant audit events from the Redis stream into
// PostgreSQL. Several instances can share the consumer group.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/vetclinic/internal/adapter/repository/postgres"
	redisrepo "github.com/V4T54L/vetclinic/internal/adapter/repository/redis"
	"github.com/V4T54L/vetclinic/internal/pkg/config"
	"github.com/V4T54L/vetclinic/internal/pkg/logger"
	"github.com/V4T54L/vetclinic/internal/usecase"
)

const pollInterval = time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("auditor stopped", "error", err)
		os.Exit(1)
	}
	log.Info("auditor shut down gracefully")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if cfg.StorageDriver != config.StoragePostgres {
		return fmt.Errorf("auditor needs STORAGE_DRIVER=postgres, got %q", cfg.StorageDriver)
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	db, err := postgres.Open(ctx, cfg.PostgresURL)
	if err != nil {
		return err
	}
	defer db.Close()

	consumer, err := os.Hostname()
	if err != nil {
		log.Warn("hostname unavailable, using fallback consumer name", "error", err)
		consumer = "auditor-default"
	}

	stream, err := redisrepo.NewAuditStream(ctx, rdb, log, cfg.AuditStream, cfg.AuditDLQStream, cfg.AuditGroup)
	if err != nil {
		return fmt.Errorf("open audit stream: %w", err)
	}
	stream.WithClaimIdle(cfg.AuditClaimIdle)
	processor := usecase.NewAuditProcessor(stream, postgres.NewAuditRepository(db, log), log,
		cfg.AuditGroup, consumer, cfg.AuditRetryCount, cfg.AuditRetryBackoff).
		WithBatchSize(cfg.AuditBatchSize)

	log.Info("auditor started", "stream", cfg.AuditStream, "group", cfg.AuditGroup, "consumer", consumer)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			drain(ctx, processor, log)
		}
	}
}

// drain processes batches until the stream has nothing pending for this
// consumer or a batch fails.
func drain(ctx context.Context, p *usecase.AuditProcessor, log *slog.Logger) {
	for ctx.Err() == nil {
		n, err := p.ProcessBatch(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Error("audit batch failed", "error", err)
			}
			return
		}
		if n == 0 {
			return
		}
	}
}
