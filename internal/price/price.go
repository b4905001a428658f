package price

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/coinpaprika/coinpaprika-api-go-client/v2/coinpaprika"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// TickerLister is the part of the CoinPaprika client the poller uses.
type TickerLister interface {
	List(options *coinpaprika.TickersOptions) ([]*coinpaprika.Ticker, error)
}

// TickerListFunc adapts a method value such as client.Tickers.List to TickerLister.
type TickerListFunc func(options *coinpaprika.TickersOptions) ([]*coinpaprika.Ticker, error)

func (f TickerListFunc) List(options *coinpaprika.TickersOptions) ([]*coinpaprika.Ticker, error) {
	return f(options)
}

// PriceInfo represents the pricing details of a cryptocurrency
type PriceInfo struct {
	ID       string
	Name     string
	Symbol   string
	PriceUSD decimal.Decimal
}

// Paprika keeps an in-memory copy of all CoinPaprika USD tickers, refreshed
// in the background, and serves lookups by symbol from it.
type Paprika struct {
	tickers TickerLister

	mu     sync.RWMutex
	prices map[string]PriceInfo // symbol -> best ranked coin
}

// NewPaprikaClient creates a CoinPaprika API client, using the pro API when a key is set.
func NewPaprikaClient(apiProKey string) *coinpaprika.Client {
	if apiProKey != "" {
		return coinpaprika.NewClient(nil, coinpaprika.WithAPIKey(apiProKey))
	}
	return coinpaprika.NewClient(nil)
}

func NewPaprika(tickers TickerLister) *Paprika {
	return &Paprika{
		tickers: tickers,
		prices:  make(map[string]PriceInfo),
	}
}

// Refresh fetches all tickers once. The list comes ordered by rank, so when
// several coins share a symbol the highest ranked one wins.
func (p *Paprika) Refresh() error {
	tickers, err := p.tickers.List(&coinpaprika.TickersOptions{Quotes: "USD"})
	if err != nil {
		return errors.Wrap(err, "failed to fetch cryptocurrency prices")
	}

	prices := make(map[string]PriceInfo, len(tickers))
	for _, ticker := range tickers {
		if ticker == nil || ticker.Symbol == nil || ticker.ID == nil {
			continue
		}
		symbol := strings.ToUpper(*ticker.Symbol)
		if _, exists := prices[symbol]; exists {
			continue
		}
		quote, ok := ticker.Quotes["USD"]
		if !ok || quote.Price == nil {
			continue
		}

		info := PriceInfo{
			ID:       *ticker.ID,
			Symbol:   symbol,
			PriceUSD: decimal.NewFromFloat(*quote.Price),
		}
		if ticker.Name != nil {
			info.Name = *ticker.Name
		}
		prices[symbol] = info
	}

	p.mu.Lock()
	p.prices = prices
	p.mu.Unlock()

	log.Debugf("✅ Cryptocurrency prices updated successfully (%d symbols)", len(prices))
	return nil
}

// Start refreshes the tickers every interval until ctx is done.
func (p *Paprika) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if err := p.Refresh(); err != nil {
				log.Errorf("❌ %v", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	log.Debug("🚀 Price updater started.")
}

func (p *Paprika) lookup(symbol string) (PriceInfo, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	info, exists := p.prices[strings.ToUpper(symbol)]
	return info, exists
}

func (p *Paprika) CurrentPrice(_ context.Context, symbol string) (decimal.Decimal, bool) {
	info, exists := p.lookup(symbol)
	if !exists || !info.PriceUSD.IsPositive() {
		return decimal.Zero, false
	}
	return info.PriceUSD, true
}

func (p *Paprika) CompanyName(_ context.Context, symbol string) (string, bool) {
	info, exists := p.lookup(symbol)
	return info.Name, exists && info.Name != ""
}
