package tenant

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
	errx "github.com/chative-commerce/storefront-agent/internal/core/error"
	logx "github.com/chative-commerce/storefront-agent/pkg/logger"
)

// loadTimeout bounds a shared store load, which no caller's deadline covers.
const loadTimeout = 10 * time.Second

// Store is the durable tenant lookup. Absent tenants yield errx.ErrNotFound.
type Store interface {
	GetTenant(ctx context.Context, id string) (*model.TenantConfig, error)
}

// entry with a nil config is a cached "no such tenant".
type entry struct {
	config    *model.TenantConfig
	expiresAt time.Time
}

// Resolver serves tenant configs from an expiring LRU in front of Store.
type Resolver struct {
	store Store
	cache *lru.Cache
	ttl   time.Duration
	group singleflight.Group
	now   func() time.Time
}

type Option func(*Resolver)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func NewResolver(store Store, cfg model.TenantCacheConfig, opts ...Option) (*Resolver, error) {
	size := cfg.Size
	if size <= 0 {
		size = 1024
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("tenant cache: %w", err)
	}
	r := &Resolver{store: store, cache: cache, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// GetTenant returns the tenant config, or nil when the tenant does not exist.
// Store failures other than "not found" are returned and never cached.
//
// Concurrent misses for one id share a single store load. The load is detached
// from the caller's cancellation so one departing caller cannot fail the
// others; each caller still stops waiting when its own ctx ends.
func (r *Resolver) GetTenant(ctx context.Context, id string) (*model.TenantConfig, error) {
	if cfg, ok := r.cached(id); ok {
		return cfg, nil
	}

	ch := r.group.DoChan(id, func() (any, error) {
		if cfg, ok := r.cached(id); ok {
			return cfg, nil
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		cfg, err := r.store.GetTenant(loadCtx, id)
		switch {
		case errors.Is(err, errx.ErrNotFound):
			logx.Debug().Str("tenant_id", id).Msg("tenant not found; caching negative entry")
			cfg = nil
		case err != nil:
			logx.Error().Err(err).Str("tenant_id", id).Msg("tenant lookup failed")
			return nil, fmt.Errorf("load tenant %q: %w", id, err)
		}
		r.cache.Add(id, entry{config: cfg, expiresAt: r.now().Add(r.ttl)})
		return cfg, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*model.TenantConfig), nil
	}
}

func (r *Resolver) cached(id string) (*model.TenantConfig, bool) {
	v, ok := r.cache.Get(id)
	if !ok {
		return nil, false
	}
	e := v.(entry)
	if !r.now().Before(e.expiresAt) {
		r.cache.Remove(id)
		return nil, false
	}
	return e.config, true
}

// ClearCache drops the given ids, or everything when none are given.
func (r *Resolver) ClearCache(ids ...string) {
	if len(ids) == 0 {
		r.cache.Purge()
		return
	}
	for _, id := range ids {
		r.cache.Remove(id)
	}
}
