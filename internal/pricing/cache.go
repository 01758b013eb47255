package pricing

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type cachedQuote struct {
	price   decimal.Decimal
	fetched time.Time
}

// quoteCache is a TTL cache keyed by canonical symbol. The upstream APIs
// are rate-limited; repeated dashboard loads must not hammer them.
type quoteCache struct {
	ttl    time.Duration
	mu     sync.RWMutex
	quotes map[string]cachedQuote
}

func newQuoteCache(ttl time.Duration) *quoteCache {
	return &quoteCache{
		ttl:    ttl,
		quotes: make(map[string]cachedQuote),
	}
}

func (c *quoteCache) get(symbol string) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.quotes[symbol]
	if !ok || time.Since(q.fetched) >= c.ttl {
		return decimal.Decimal{}, false
	}
	return q.price, true
}

func (c *quoteCache) put(symbol string, price decimal.Decimal) {
	c.mu.Lock()
	c.quotes[symbol] = cachedQuote{price: price, fetched: time.Now()}
	c.mu.Unlock()
}
