package quote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ucsindex/ucs/internal/domain"
)

// DefaultCacheTTL is used when NewCachedStore is given a non-positive TTL.
const DefaultCacheTTL = 30 * time.Second

type cacheEntry struct {
	quote     domain.Quote
	expiresAt time.Time
}

// CachedStore fronts a Store with a short-lived read cache for exact-date
// lookups. Only hits are cached and every write through the store drops the
// affected key, so results are identical with or without the cache.
type CachedStore struct {
	Store

	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewCachedStore wraps store with a TTL read cache.
func NewCachedStore(store Store, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedStore{
		Store:   store,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// cacheKey returns the "{assetID}@{YYYY-MM-DD}" key for id on date.
func cacheKey(id domain.AssetID, date time.Time) string {
	return fmt.Sprintf("%s@%s", id, domain.DateOf(date).Format(domain.DateLayout))
}

func (c *CachedStore) GetQuote(ctx context.Context, id domain.AssetID, date time.Time) (domain.Quote, error) {
	key := cacheKey(id, date)
	if q, ok := c.get(key); ok {
		return q, nil
	}

	q, err := c.Store.GetQuote(ctx, id, date)
	if err != nil {
		return domain.Quote{}, err
	}
	c.set(key, q)
	return q, nil
}

func (c *CachedStore) SaveQuote(ctx context.Context, q domain.Quote) error {
	c.invalidate(cacheKey(q.AssetID, q.Date))
	return c.Store.SaveQuote(ctx, q)
}

func (c *CachedStore) UpdateChangePct(ctx context.Context, id domain.AssetID, date time.Time, pct decimal.Decimal) error {
	c.invalidate(cacheKey(id, date))
	return c.Store.UpdateChangePct(ctx, id, date, pct)
}

func (c *CachedStore) get(key string) (domain.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return domain.Quote{}, false
	}
	return entry.quote, true
}

func (c *CachedStore) set(key string, q domain.Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		quote:     q,
		expiresAt: time.Now().Add(c.ttl),
	}
}

func (c *CachedStore) invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}
