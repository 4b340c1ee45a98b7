package router

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/venuex/router/pkg/cache"
	"github.com/venuex/router/pkg/types"
)

// Quote is one venue's indicative pricing for a prospective leg. Fee and
// Slippage are advisory; the planner derives the authoritative figures
// from the venue's fee schedule and rolling metrics.
type Quote struct {
	Price    decimal.Decimal
	Fee      decimal.Decimal
	Slippage decimal.Decimal
}

// QuoteProvider supplies indicative prices for the planner. Injecting it
// keeps the allocation algorithm deterministic and testable independent
// of market data.
type QuoteProvider interface {
	Quote(ctx context.Context, venue *types.Venue, pair string, side types.Side, amount decimal.Decimal) (Quote, error)
}

// SeededQuoteProvider prices legs from a static mid-price table adjusted
// by each venue's rolling average spread: buys cross half the spread up,
// sells half down. Quotes are cached per venue/pair/side for a short TTL
// so repeated planning over one pair reuses them.
type SeededQuoteProvider struct {
	mu   sync.RWMutex
	mids map[string]decimal.Decimal

	quotes *cache.TTLCache
	ttl    time.Duration
}

// NewSeededQuoteProvider creates a provider with an empty price table.
func NewSeededQuoteProvider(quoteTTL time.Duration) *SeededQuoteProvider {
	return &SeededQuoteProvider{
		mids:   make(map[string]decimal.Decimal),
		quotes: cache.NewTTLCache(),
		ttl:    quoteTTL,
	}
}

// SetMidPrice installs or replaces the mid price for a pair.
func (p *SeededQuoteProvider) SetMidPrice(pair string, mid decimal.Decimal) {
	p.mu.Lock()
	p.mids[strings.ToUpper(pair)] = mid
	p.mu.Unlock()
	// Cached quotes for the pair are stale now; let TTL age them out.
}

// Quote implements QuoteProvider.
func (p *SeededQuoteProvider) Quote(_ context.Context, venue *types.Venue, pair string, side types.Side, _ decimal.Decimal) (Quote, error) {
	key := venue.ID + "|" + strings.ToUpper(pair) + "|" + side
	if cached, ok := p.quotes.Get(key); ok {
		return cached.(Quote), nil
	}

	p.mu.RLock()
	mid, ok := p.mids[strings.ToUpper(pair)]
	p.mu.RUnlock()
	if !ok {
		return Quote{}, fmt.Errorf("no mid price for pair %s", pair)
	}

	half := venue.Metrics.AvgSpread.Div(decimal.NewFromInt(2))
	price := mid
	switch side {
	case types.SideBuy:
		price = mid.Mul(decimal.NewFromInt(1).Add(half))
	case types.SideSell:
		price = mid.Mul(decimal.NewFromInt(1).Sub(half))
	}

	q := Quote{
		Price:    price,
		Fee:      venue.Fees.TakerFee,
		Slippage: venue.Metrics.AvgSlippage,
	}
	p.quotes.Set(key, q, p.ttl)
	return q, nil
}

// Close stops the quote cache janitor.
func (p *SeededQuoteProvider) Close() {
	p.quotes.Close()
}
