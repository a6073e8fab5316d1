package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/vetclinic/internal/adapter/metrics"
	"github.com/V4T54L/vetclinic/internal/domain"
	"github.com/V4T54L/vetclinic/internal/pkg/ttlcache"
)

// HostInfo is the parsed form of an inbound Host header.
type HostInfo struct {
	Host         string
	Subdomain    string
	Loopback     bool
	MainSite     bool
	CustomDomain bool
}

// CacheKey is the key the resolver caches this host under.
func (h HostInfo) CacheKey() string {
	if h.CustomDomain {
		return domain.DomainCacheKey(h.Host)
	}
	if h.Subdomain == "" {
		return ""
	}
	return domain.SubdomainCacheKey(h.Subdomain)
}

// ParseHost normalizes host and classifies it relative to rootDomain.
func ParseHost(host, rootDomain string, mainSiteHosts []string) HostInfo {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	host = strings.TrimSuffix(host, ".")
	rootDomain = strings.TrimSuffix(strings.ToLower(rootDomain), ".")

	info := HostInfo{Host: host}

	if ip := net.ParseIP(host); ip != nil {
		info.Loopback = ip.IsLoopback()
		return info
	}
	if host == "localhost" {
		info.Loopback = true
		return info
	}
	if strings.HasSuffix(host, ".localhost") {
		info.Loopback = true
		info.Subdomain = leftmostLabel(strings.TrimSuffix(host, ".localhost"))
		return info
	}

	if host == "" || host == rootDomain || host == "www."+rootDomain {
		info.MainSite = true
		return info
	}
	for _, h := range mainSiteHosts {
		if host == strings.ToLower(strings.TrimSpace(h)) {
			info.MainSite = true
			return info
		}
	}

	if rootDomain != "" && strings.HasSuffix(host, "."+rootDomain) {
		info.Subdomain = leftmostLabel(strings.TrimSuffix(host, "."+rootDomain))
		return info
	}

	info.CustomDomain = true
	return info
}

func leftmostLabel(prefix string) string {
	label, _, _ := strings.Cut(prefix, ".")
	return label
}

// ResolverConfig tunes a TenantResolver.
type ResolverConfig struct {
	RootDomain        string
	MainSiteHosts     []string
	Development       bool
	DefaultTenantName string
	CacheTTL          time.Duration
	LookupAttempts    int
	LookupBackoff     time.Duration
}

// TenantResolver maps request hosts to tenants through a TTL cache in front
// of the tenant directory.
type TenantResolver struct {
	directory domain.TenantDirectory
	cache     *ttlcache.Cache[string, domain.Tenant]
	cfg       ResolverConfig
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewTenantResolver creates a resolver. m may be nil.
func NewTenantResolver(directory domain.TenantDirectory, cfg ResolverConfig, logger *slog.Logger, m *metrics.Metrics) *TenantResolver {
	if cfg.LookupAttempts < 1 {
		cfg.LookupAttempts = 1
	}
	if cfg.DefaultTenantName == "" {
		cfg.DefaultTenantName = "Default Clinic"
	}
	return &TenantResolver{
		directory: directory,
		cache:     ttlcache.New[string, domain.Tenant](cfg.CacheTTL),
		cfg:       cfg,
		logger:    logger.With("component", "tenant_resolver"),
		metrics:   m,
	}
}

// Resolve returns the tenant serving host. Errors: domain.ErrMainSite,
// domain.ErrTenantNotFound, domain.ErrTenantSuspended,
// domain.ErrTenantCancelled, or a wrapped domain.ErrDirectoryUnavailable.
func (r *TenantResolver) Resolve(ctx context.Context, host string) (*domain.Tenant, error) {
	info := ParseHost(host, r.cfg.RootDomain, r.cfg.MainSiteHosts)

	if info.MainSite {
		r.observe(metrics.OutcomeMainSite)
		return nil, domain.ErrMainSite
	}

	key := info.CacheKey()
	if key == "" {
		return r.fallback(info)
	}

	if cached, ok := r.cache.Get(key); ok {
		if r.metrics != nil {
			r.metrics.TenantCacheHits.Inc()
		}
		r.observe(metrics.OutcomeResolved)
		return &cached, nil
	}
	if r.metrics != nil {
		r.metrics.TenantCacheMisses.Inc()
	}

	// An invalidation that lands while the lookup is in flight advances the
	// generation, and the possibly stale result is then not cached.
	gen := r.cache.Generation(key)
	tenant, err := r.lookup(ctx, info)
	if errors.Is(err, domain.ErrNotFound) {
		return r.fallback(info)
	}
	if err != nil {
		r.observe(metrics.OutcomeUnavailable)
		return nil, err
	}

	if err := tenant.AccessError(); err != nil {
		r.observe(metrics.OutcomeBlocked)
		return nil, err
	}

	if !r.cache.SetIfGeneration(key, *tenant, gen) {
		r.logger.Debug("tenant invalidated during lookup, not caching", "key", key)
	}
	r.observe(metrics.OutcomeResolved)
	return tenant, nil
}

// fallback handles a host with no matching tenant record.
func (r *TenantResolver) fallback(info HostInfo) (*domain.Tenant, error) {
	if r.cfg.Development && info.Loopback {
		r.observe(metrics.OutcomeDefault)
		return r.DefaultTenant(), nil
	}
	r.observe(metrics.OutcomeNotFound)
	return nil, domain.ErrTenantNotFound
}

// lookup queries the directory, retrying a bounded number of times while it
// reports itself unavailable.
func (r *TenantResolver) lookup(ctx context.Context, info HostInfo) (*domain.Tenant, error) {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.LookupAttempts; attempt++ {
		var (
			tenant *domain.Tenant
			err    error
		)
		if info.CustomDomain {
			tenant, err = r.directory.FindByDomain(ctx, info.Host)
		} else {
			tenant, err = r.directory.FindBySubdomain(ctx, info.Subdomain)
		}
		if err == nil || !errors.Is(err, domain.ErrDirectoryUnavailable) {
			return tenant, err
		}

		lastErr = err
		if attempt == r.cfg.LookupAttempts {
			break
		}
		r.logger.Warn("tenant directory unavailable, retrying", "attempt", attempt, "host", info.Host, "error", err)
		if r.metrics != nil {
			r.metrics.DirectoryRetries.Inc()
		}
		select {
		case <-time.After(r.cfg.LookupBackoff):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", domain.ErrDirectoryUnavailable, ctx.Err())
		}
	}

	r.logger.Error("tenant directory lookup failed", "attempts", r.cfg.LookupAttempts, "host", info.Host, "error", lastErr)
	return nil, lastErr
}

// Invalidate evicts the given cache keys immediately.
func (r *TenantResolver) Invalidate(keys ...string) {
	r.cache.Delete(keys...)
	if r.metrics != nil {
		r.metrics.TenantInvalidated.Add(float64(len(keys)))
	}
	r.logger.Debug("tenant cache invalidated", "keys", keys)
}

// RunJanitor purges expired cache entries every TTL until ctx is done.
func (r *TenantResolver) RunJanitor(ctx context.Context) {
	if r.cfg.CacheTTL <= 0 {
		return
	}
	r.cache.RunJanitor(ctx, r.cfg.CacheTTL)
}

// DefaultTenant is the synthesized development tenant served on loopback hosts.
// Its id is stable so data created against it survives restarts.
func (r *TenantResolver) DefaultTenant() *domain.Tenant {
	return &domain.Tenant{
		ID:        uuid.NewSHA1(uuid.NameSpaceDNS, []byte("default.localhost")),
		Subdomain: "default",
		Name:      r.cfg.DefaultTenantName,
		Theme:     BaselineTheme(),
		Plan:      "development",
		Status:    domain.TenantStatusActive,
	}
}

func (r *TenantResolver) observe(outcome string) {
	if r.metrics != nil {
		r.metrics.TenantResolutions.WithLabelValues(outcome).Inc()
	}
}
