package taxtable

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/salestax-cli/internal/model"
)

// Cache persists rate table snapshots keyed by provider name.
type Cache interface {
	// LoadTaxTable returns the latest snapshot. A miss returns no rows and a
	// zero time.
	LoadTaxTable(ctx context.Context, source string) ([]model.TaxTableRow, time.Time, error)
	SaveTaxTable(ctx context.Context, source string, rows []model.TaxTableRow, fetchedAt time.Time) error
}

// CachedProvider serves rows from a Cache while they are younger than the
// TTL, and falls back to a stale snapshot when the upstream fetch fails.
type CachedProvider struct {
	inner Provider
	cache Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewCachedProvider wraps inner. A zero ttl always refetches.
func NewCachedProvider(inner Provider, cache Cache, ttl time.Duration) *CachedProvider {
	return &CachedProvider{inner: inner, cache: cache, ttl: ttl, now: time.Now}
}

// Name implements Provider.
func (c *CachedProvider) Name() string { return c.inner.Name() }

// Fetch implements Provider.
func (c *CachedProvider) Fetch(ctx context.Context) ([]model.TaxTableRow, error) {
	log := zap.L().With(zap.String("source", c.inner.Name()))

	cached, fetchedAt, err := c.cache.LoadTaxTable(ctx, c.inner.Name())
	if err != nil {
		log.Warn("tax table cache read failed", zap.Error(err))
		cached = nil
	}
	if len(cached) > 0 && c.ttl > 0 && c.now().Sub(fetchedAt) < c.ttl {
		log.Debug("tax table served from cache", zap.Time("fetched_at", fetchedAt))
		return cached, nil
	}

	rows, err := c.inner.Fetch(ctx)
	if err != nil {
		if len(cached) > 0 {
			log.Warn("using stale tax table", zap.Time("fetched_at", fetchedAt), zap.Error(err))
			return cached, nil
		}
		return nil, err
	}
	if len(rows) == 0 && len(cached) > 0 {
		log.Warn("upstream returned no rows, using stale tax table", zap.Time("fetched_at", fetchedAt))
		return cached, nil
	}
	if len(rows) > 0 {
		if err := c.cache.SaveTaxTable(ctx, c.inner.Name(), rows, c.now()); err != nil {
			log.Warn("tax table cache write failed", zap.Error(err))
		}
	}
	return rows, nil
}

// Refresh fetches from upstream and stores a non-empty result.
func (c *CachedProvider) Refresh(ctx context.Context) ([]model.TaxTableRow, error) {
	rows, err := c.inner.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return rows, nil
	}
	if err := c.cache.SaveTaxTable(ctx, c.inner.Name(), rows, c.now()); err != nil {
		return rows, eris.Wrap(err, "taxtable: save snapshot")
	}
	return rows, nil
}
