package stats

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// PublicStats are the aggregate figures shown on the landing page.
type PublicStats struct {
	Families       int64
	TasksCompleted int64
	TotalEarned    decimal.Decimal
}

// FetchFunc loads fresh figures from the datastore.
type FetchFunc func() (PublicStats, error)

// Cache serves PublicStats from memory, refreshing when the entry is older
// than the TTL or has been served more than callLimit times. It is an
// explicit, injected object rather than package-global state.
type Cache struct {
	mu        sync.Mutex
	fetch     FetchFunc
	ttl       time.Duration
	callLimit int

	cached    PublicStats
	fetchedAt time.Time
	calls     int
	now       func() time.Time
}

func NewCache(fetch FetchFunc, ttl time.Duration, callLimit int) *Cache {
	return &Cache{
		fetch:     fetch,
		ttl:       ttl,
		callLimit: callLimit,
		now:       time.Now,
	}
}

// Get returns the cached figures, refreshing if stale. When a refresh fails
// but a previous value exists, the stale value is served.
func (c *Cache) Get() (PublicStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++
	stale := c.fetchedAt.IsZero() ||
		c.now().Sub(c.fetchedAt) > c.ttl ||
		c.calls > c.callLimit

	if stale {
		fresh, err := c.fetch()
		if err != nil {
			if c.fetchedAt.IsZero() {
				return PublicStats{}, err
			}
			return c.cached, nil
		}
		c.cached = fresh
		c.fetchedAt = c.now()
		c.calls = 1
	}

	return c.cached, nil
}

// FormatCount renders a figure for the landing page: 1234 → "1.2k+".
func FormatCount(n int64) string {
	if n >= 1000 {
		return fmt.Sprintf("%.1fk+", float64(n)/1000)
	}
	return fmt.Sprintf("%d+", n)
}
