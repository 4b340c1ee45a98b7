package registry

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venuex/router/internal/config"
	"github.com/venuex/router/pkg/types"
)

func newTestRegistry() *Registry {
	return New(config.Default().Registry, nil)
}

func registerVenue(t *testing.T, r *Registry, name string, pairs ...string) *types.Venue {
	t.Helper()
	v, err := r.Register(types.Venue{
		Name:           name,
		Type:           types.VenueTypeExchange,
		SupportedPairs: pairs,
	})
	require.NoError(t, err)
	return v
}

func TestRegister_DefaultsAndIdentity(t *testing.T) {
	r := newTestRegistry()

	v := registerVenue(t, r, "Alpha", "BTC-USD")

	assert.NotEmpty(t, v.ID)
	assert.Equal(t, types.VenueStatusPending, v.Status)
	assert.False(t, v.Limits.MaxPerTrade.IsZero())
	assert.False(t, v.Limits.MaxDailyVolume.IsZero())
	assert.True(t, v.Policy.MaxAllocationPercent.Equal(decimal.NewFromInt(100)))
}

func TestGet_UnknownID(t *testing.T) {
	r := newTestRegistry()

	_, err := r.Get("missing")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestStatusTransitions(t *testing.T) {
	r := newTestRegistry()
	v := registerVenue(t, r, "Alpha", "BTC-USD")

	require.NoError(t, r.Activate(v.ID))
	got, err := r.Get(v.ID)
	require.NoError(t, err)
	assert.Equal(t, types.VenueStatusActive, got.Status)

	until := time.Now().Add(time.Hour)
	require.NoError(t, r.Suspend(v.ID, "elevated reject rate", &until))
	got, err = r.Get(v.ID)
	require.NoError(t, err)
	assert.Equal(t, types.VenueStatusSuspended, got.Status)
	assert.Equal(t, "elevated reject rate", got.SuspendedReason)
	require.NotNil(t, got.SuspendedUntil)

	require.NoError(t, r.Deactivate(v.ID, "offboarded"))
	got, err = r.Get(v.ID)
	require.NoError(t, err)
	assert.Equal(t, types.VenueStatusInactive, got.Status)
	assert.Nil(t, got.SuspendedUntil)
}

func TestList_FilterAndOrder(t *testing.T) {
	r := newTestRegistry()

	a := registerVenue(t, r, "Alpha", "BTC-USD", "ETH-USD")
	b := registerVenue(t, r, "Beta", "BTC-USD")
	c := registerVenue(t, r, "Gamma", "SOL-USD")

	require.NoError(t, r.Activate(a.ID))
	require.NoError(t, r.Activate(b.ID))

	// Raise Beta's priority above Alpha's.
	bv, err := r.Get(b.ID)
	require.NoError(t, err)
	bv.Policy.Priority = 90
	_, err = r.Update(*bv)
	require.NoError(t, err)

	active := r.List(Filter{Status: types.VenueStatusActive})
	require.Len(t, active, 2)
	assert.Equal(t, "Beta", active[0].Name) // higher priority first
	assert.Equal(t, "Alpha", active[1].Name)

	btc := r.List(Filter{Pair: "BTC-USD"})
	assert.Len(t, btc, 2)

	sol := r.List(Filter{Pair: "SOL-USD"})
	require.Len(t, sol, 1)
	assert.Equal(t, c.ID, sol[0].ID)
}

func TestRecordFill_AccumulatesAndRollsOver(t *testing.T) {
	r := newTestRegistry()
	v := registerVenue(t, r, "Alpha", "BTC-USD")

	now := time.Now()
	require.NoError(t, r.RecordFill(v.ID, decimal.NewFromInt(1000), now))
	require.NoError(t, r.RecordFill(v.ID, decimal.NewFromInt(500), now))

	got, err := r.Get(v.ID)
	require.NoError(t, err)
	assert.True(t, got.Metrics.VolumeToday.Equal(decimal.NewFromInt(1500)))
	assert.True(t, got.Metrics.TotalVolume.Equal(decimal.NewFromInt(1500)))
	assert.WithinDuration(t, now, got.Metrics.LastTradeAt, time.Second)

	// A fill on the next day resets the daily counter but not totals.
	require.NoError(t, r.RecordFill(v.ID, decimal.NewFromInt(200), now.Add(24*time.Hour)))
	got, err = r.Get(v.ID)
	require.NoError(t, err)
	assert.True(t, got.Metrics.VolumeToday.Equal(decimal.NewFromInt(200)))
	assert.True(t, got.Metrics.TotalVolume.Equal(decimal.NewFromInt(1700)))
}

func TestRemainingDailyCapacity(t *testing.T) {
	r := newTestRegistry()
	v, err := r.Register(types.Venue{
		Name:           "Capped",
		Type:           types.VenueTypeOTCDesk,
		SupportedPairs: []string{"BTC-USD"},
		Limits:         types.VenueLimits{MaxDailyVolume: decimal.NewFromInt(1000)},
	})
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, r.RecordFill(v.ID, decimal.NewFromInt(700), now))

	remaining, err := r.RemainingDailyCapacity(v.ID, now)
	require.NoError(t, err)
	assert.True(t, remaining.Equal(decimal.NewFromInt(300)))

	// Over the cap clamps at zero.
	require.NoError(t, r.RecordFill(v.ID, decimal.NewFromInt(400), now))
	remaining, err = r.RemainingDailyCapacity(v.ID, now)
	require.NoError(t, err)
	assert.True(t, remaining.IsZero())
}

func TestConcurrentReadsAndWrites(t *testing.T) {
	r := newTestRegistry()
	a := registerVenue(t, r, "Alpha", "BTC-USD")
	b := registerVenue(t, r, "Beta", "BTC-USD")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = r.RecordFill(a.ID, decimal.NewFromInt(10), time.Now())
		}()
		go func() {
			defer wg.Done()
			_, _ = r.Get(b.ID)
			_ = r.List(Filter{Pair: "BTC-USD"})
		}()
	}
	wg.Wait()

	got, err := r.Get(a.ID)
	require.NoError(t, err)
	assert.True(t, got.Metrics.TotalVolume.Equal(decimal.NewFromInt(500)))
}
