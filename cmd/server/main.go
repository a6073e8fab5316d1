package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/vetclinic/internal/adapter/api"
	"github.com/V4T54L/vetclinic/internal/adapter/metrics"
	"github.com/V4T54L/vetclinic/internal/adapter/pii"
	"github.com/V4T54L/vetclinic/internal/adapter/repository/memory"
	"github.com/V4T54L/vetclinic/internal/adapter/repository/postgres"
	redisrepo "github.com/V4T54L/vetclinic/internal/adapter/repository/redis"
	"github.com/V4T54L/vetclinic/internal/domain"
	"github.com/V4T54L/vetclinic/internal/pkg/auth"
	"github.com/V4T54L/vetclinic/internal/pkg/config"
	"github.com/V4T54L/vetclinic/internal/pkg/logger"
	"github.com/V4T54L/vetclinic/internal/usecase"
)

// storage is the set of repositories selected by STORAGE_DRIVER.
type storage struct {
	directory domain.TenantDirectory
	repos     usecase.ClinicRepositories
	adminKeys domain.AdminKeyRepository
}

func openStorage(ctx context.Context, cfg *config.Config, log *slog.Logger, m *metrics.Metrics) (*storage, func(), error) {
	if cfg.StorageDriver == config.StorageMemory {
		log.Warn("using in-memory storage; data is lost on restart")
		store := memory.NewStore()
		return &storage{
			directory: store.Tenants(),
			repos: usecase.ClinicRepositories{
				Clients:      store.Clients(),
				Pets:         store.Pets(),
				Appointments: store.Appointments(),
				Staff:        store.Staff(),
			},
			adminKeys: memory.NewAdminKeys(cfg.AdminKeys...),
		}, func() {}, nil
	}

	db, err := postgres.Open(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, nil, err
	}
	adminKeys := postgres.NewAdminKeyRepository(db, log, cfg.AdminKeyCacheTTL, m)
	go adminKeys.RunJanitor(ctx, cfg.AdminKeyCacheTTL)

	return &storage{
		directory: postgres.NewTenantDirectory(db),
		repos:     postgresRepositories(db),
		adminKeys: adminKeys,
	}, func() { db.Close() }, nil
}

func postgresRepositories(db *sql.DB) usecase.ClinicRepositories {
	return usecase.ClinicRepositories{
		Clients:      postgres.NewClientRepository(db),
		Pets:         postgres.NewPetRepository(db),
		Appointments: postgres.NewAppointmentRepository(db),
		Staff:        postgres.NewStaffRepository(db),
	}
}

func main() {
	cfg, err := config.Load()
	if err == nil {
		err = cfg.ValidateServer()
	}
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel)
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Storage and Redis Connections ---
	store, closeStore, err := openStorage(ctx, cfg, logger, m)
	if err != nil {
		logger.Error("failed to open storage", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error("failed to parse redis url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	// --- Tenant Resolution ---
	resolver := usecase.NewTenantResolver(store.directory, usecase.ResolverConfig{
		RootDomain:        cfg.RootDomain,
		MainSiteHosts:     cfg.MainSiteHosts,
		Development:       cfg.IsDevelopment(),
		DefaultTenantName: cfg.DefaultTenantName,
		CacheTTL:          cfg.TenantCacheTTL,
		LookupAttempts:    cfg.TenantLookupAttempts,
		LookupBackoff:     cfg.TenantLookupBackoff,
	}, logger, m)
	go resolver.RunJanitor(ctx)

	// Evictions published by any replica reach this replica's cache.
	bus := redisrepo.NewInvalidationBus(redisClient, cfg.InvalidationChan, logger)
	listener, err := bus.Listen(ctx)
	if err != nil {
		logger.Error("failed to subscribe to tenant invalidations", "error", err)
		os.Exit(1)
	}
	go listener.Run(ctx, resolver)

	// --- Audit Trail ---
	auditStream, err := redisrepo.NewAuditStream(ctx, redisClient, logger, cfg.AuditStream, cfg.AuditDLQStream, cfg.AuditGroup)
	if err != nil {
		logger.Error("failed to initialize audit stream", "error", err)
		os.Exit(1)
	}
	redactor := pii.NewRedactor(cfg.PIIRedactionFields, logger)
	recorder := usecase.NewAuditRecorder(auditStream, redactor, logger, m)

	// --- Use Cases ---
	tenantAdmin := usecase.NewTenantAdmin(store.directory, store.repos.Staff, usecase.Invalidators{resolver, bus}, recorder, logger)
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTExpiry)
	clinic := usecase.NewClinicService(store.repos, issuer, logger)

	// --- Admin and Metrics Server ---
	adminServer := &http.Server{
		Addr: cfg.AdminAddr,
		Handler: api.NewAdminRouter(api.AdminRouterDeps{
			Logger:    logger,
			Gatherer:  reg,
			AdminKeys: store.adminKeys,
			Tenants:   tenantAdmin,
			Audit:     redisrepo.NewAuditAdmin(redisClient, cfg.AuditStream, cfg.AuditDLQStream),
		}),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin & metrics server failed", "error", err)
			stop()
		}
	}()

	// --- Clinic Server ---
	appServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(api.RouterDeps{
			Logger:      logger,
			Metrics:     m,
			Resolver:    resolver,
			Issuer:      issuer,
			Clinic:      clinic,
			Development: cfg.IsDevelopment(),
		}),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	go func() {
		logger.Info("starting clinic server", "addr", appServer.Addr, "env", cfg.AppEnv, "storage", cfg.StorageDriver)
		if err := appServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("clinic server failed", "error", err)
			stop() // Trigger shutdown on server error
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown failed", "error", err)
	}
	if err := appServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("clinic server shutdown failed", "error", err)
	}

	logger.Info("servers shut down gracefully")
}
