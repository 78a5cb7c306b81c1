package profile

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// CachedStore decorates a Store with a TTL-based in-memory cache.
// Uses sync.Map for lock-free reads on the hot path.
//
// Stale-while-revalidate: when an entry expires, GetProfile still
// returns the stale value immediately and refreshes in the background,
// so no routing request ever blocks on a profile fetch after cold start.
type CachedStore struct {
	inner  Store
	store  sync.Map // map[string]*cacheEntry keyed by org ID
	ttl    time.Duration
	logger *zap.Logger
}

type cacheEntry struct {
	profile    *ComplianceProfile
	expiresAt  time.Time
	refreshing atomic.Bool // prevents duplicate background refreshes
}

// NewCachedStore wraps inner with a cache of the given TTL.
func NewCachedStore(inner Store, ttl time.Duration, logger *zap.Logger) *CachedStore {
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	return &CachedStore{
		inner:  inner,
		ttl:    ttl,
		logger: logger,
	}
}

// GetProfile returns the cached profile when fresh, serves stale while
// refreshing in the background, and falls through to the inner store on
// a miss.
func (c *CachedStore) GetProfile(ctx context.Context, orgID string) (*ComplianceProfile, error) {
	if v, ok := c.store.Load(orgID); ok {
		entry := v.(*cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			return entry.profile, nil
		}
		// Stale hit: CompareAndSwap ensures a single refresher.
		if entry.refreshing.CompareAndSwap(false, true) {
			go c.refresh(orgID)
		}
		return entry.profile, nil
	}

	prof, err := c.inner.GetProfile(ctx, orgID)
	if err != nil {
		return nil, err
	}
	c.set(orgID, prof)
	return prof, nil
}

func (c *CachedStore) refresh(orgID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	prof, err := c.inner.GetProfile(ctx, orgID)
	if err != nil {
		c.logger.Warn("background profile refresh failed",
			zap.String("org_id", orgID),
			zap.Error(err),
		)
		return
	}
	c.set(orgID, prof)
}

func (c *CachedStore) set(orgID string, prof *ComplianceProfile) {
	c.store.Store(orgID, &cacheEntry{
		profile:   prof,
		expiresAt: time.Now().Add(c.ttl),
	})
}
