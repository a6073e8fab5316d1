package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/V4T54L/vetclinic/internal/adapter/metrics"
	"github.com/V4T54L/vetclinic/internal/pkg/ttlcache"
)

// AdminKeyRepository implements domain.AdminKeyRepository using PostgreSQL
// as the source of truth and an in-memory, time-based cache.
type AdminKeyRepository struct {
	db      *sql.DB
	logger  *slog.Logger
	cache   *ttlcache.Cache[string, bool]
	metrics *metrics.Metrics
}

// NewAdminKeyRepository creates a new admin key repository. m may be nil.
func NewAdminKeyRepository(db *sql.DB, logger *slog.Logger, cacheTTL time.Duration, m *metrics.Metrics) *AdminKeyRepository {
	return &AdminKeyRepository{
		db:      db,
		logger:  logger,
		cache:   ttlcache.New[string, bool](cacheTTL),
		metrics: m,
	}
}

// IsValid checks the local cache first and falls back to the database when
// the key is unknown or its entry has expired. Negative answers are cached too.
func (r *AdminKeyRepository) IsValid(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	if valid, found := r.cache.Get(key); found {
		if r.metrics != nil {
			r.metrics.AdminKeyCacheHits.Inc()
		}
		return valid, nil
	}
	if r.metrics != nil {
		r.metrics.AdminKeyCacheMiss.Inc()
	}

	var valid bool
	// A key is valid if it exists, is active, and has not expired.
	query := `SELECT EXISTS(SELECT 1 FROM admin_keys WHERE key = $1 AND is_active = true AND (expires_at IS NULL OR expires_at > NOW()))`
	if err := r.db.QueryRowContext(ctx, query, key).Scan(&valid); err != nil {
		r.logger.Error("failed to validate admin key in database", "error", err)
		// Don't cache errors, let the next request retry from the DB
		return false, err
	}

	r.cache.Set(key, valid)
	return valid, nil
}

// RunJanitor purges expired cache entries until ctx is done.
func (r *AdminKeyRepository) RunJanitor(ctx context.Context, interval time.Duration) {
	r.cache.RunJanitor(ctx, interval)
}

// Create stores a new active key. expiresAt may be nil for a key that never expires.
func (r *AdminKeyRepository) Create(ctx context.Context, key, description string, expiresAt *time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO admin_keys (key, description, expires_at) VALUES ($1, $2, $3)`,
		key, description, nullTime(expiresAt),
	)
	return classify("create admin key", err)
}
