package router

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venuex/router/pkg/types"
)

func TestSeededQuoteProvider_SpreadAdjustment(t *testing.T) {
	p := NewSeededQuoteProvider(time.Minute)
	defer p.Close()
	p.SetMidPrice(testPair, decimal.NewFromInt(50000))

	venue := &types.Venue{
		ID: "v1",
		Metrics: types.VenueMetrics{
			AvgSpread: decimal.NewFromFloat(0.002),
		},
	}

	buy, err := p.Quote(context.Background(), venue, testPair, types.SideBuy, decimal.NewFromInt(1))
	require.NoError(t, err)
	sell, err := p.Quote(context.Background(), venue, testPair, types.SideSell, decimal.NewFromInt(1))
	require.NoError(t, err)

	// Buys cross half the spread up, sells half down.
	assert.True(t, buy.Price.Equal(decimal.NewFromInt(50050)), "buy %s", buy.Price)
	assert.True(t, sell.Price.Equal(decimal.NewFromInt(49950)), "sell %s", sell.Price)
}

func TestSeededQuoteProvider_UnknownPair(t *testing.T) {
	p := NewSeededQuoteProvider(time.Minute)
	defer p.Close()

	_, err := p.Quote(context.Background(), &types.Venue{ID: "v1"}, "XX-YY", types.SideBuy, decimal.NewFromInt(1))
	assert.Error(t, err)
}

func TestSeededQuoteProvider_CachesWithinTTL(t *testing.T) {
	p := NewSeededQuoteProvider(time.Minute)
	defer p.Close()
	p.SetMidPrice(testPair, decimal.NewFromInt(50000))

	venue := &types.Venue{ID: "v1"}
	first, err := p.Quote(context.Background(), venue, testPair, types.SideBuy, decimal.NewFromInt(1))
	require.NoError(t, err)

	// A mid-price change is not visible until the cached quote ages out.
	p.SetMidPrice(testPair, decimal.NewFromInt(60000))
	second, err := p.Quote(context.Background(), venue, testPair, types.SideBuy, decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.True(t, first.Price.Equal(second.Price))
}
