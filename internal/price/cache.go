package price

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

// Source is anything that can quote a symbol.
type Source interface {
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, bool)
}

// Cached remembers successful quotes for a short while so alerts sharing a
// symbol cost one upstream lookup per cycle. Misses are never cached.
type Cached struct {
	source Source
	quotes *gocache.Cache
}

func NewCached(source Source, ttl time.Duration) *Cached {
	return &Cached{
		source: source,
		quotes: gocache.New(ttl, 2*ttl),
	}
}

func (c *Cached) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, bool) {
	if v, found := c.quotes.Get(symbol); found {
		return v.(decimal.Decimal), true
	}

	price, ok := c.source.CurrentPrice(ctx, symbol)
	if !ok {
		return decimal.Zero, false
	}
	c.quotes.SetDefault(symbol, price)
	return price, true
}

// CompanyName passes through to the wrapped source when it can describe symbols.
func (c *Cached) CompanyName(ctx context.Context, symbol string) (string, bool) {
	d, ok := c.source.(interface {
		CompanyName(ctx context.Context, symbol string) (string, bool)
	})
	if !ok {
		return "", false
	}
	return d.CompanyName(ctx, symbol)
}
