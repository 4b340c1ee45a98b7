package router

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venuex/router/internal/config"
	"github.com/venuex/router/pkg/events"
	"github.com/venuex/router/pkg/types"
)

func TestExecuteTrade_FullLifecycle(t *testing.T) {
	core := newTestCore(t)
	a := core.addVenue(t, venueSpec{name: "Alpha", priority: 80, maxAllocPct: 60, takerFee: "0.001"})
	b := core.addVenue(t, venueSpec{name: "Beta", priority: 50, maxAllocPct: 100, takerFee: "0.002"})

	exec, err := core.executor.ExecuteTrade(context.Background(), marketBuy(100))
	require.NoError(t, err)

	assert.Equal(t, types.ExecutionStatusFilled, exec.Status)
	assert.True(t, exec.FilledAmount.Equal(decimal.NewFromInt(100)))
	assert.True(t, exec.RemainingAmount().IsZero())
	require.Len(t, exec.Fills, 2)
	assert.Equal(t, a.ID, exec.Fills[0].VenueID)
	assert.Equal(t, b.ID, exec.Fills[1].VenueID)
	assert.Equal(t, 0, exec.Fills[0].LegIndex)
	assert.Equal(t, 1, exec.Fills[1].LegIndex)
	require.NotNil(t, exec.CompletedAt)

	// Fills settle at the leg estimates, so realized price matches the
	// route estimate and slippage is zero.
	assert.True(t, exec.RealizedAvgPrice.Sub(exec.Route.EstimatedPrice).Abs().
		LessThan(mustDec(t, "0.000001")),
		"realized %s estimated %s", exec.RealizedAvgPrice, exec.Route.EstimatedPrice)
	assert.True(t, exec.RealizedSlippage.Abs().LessThan(mustDec(t, "0.000001")))

	wantFees := decimal.NewFromInt(60).Mul(mustDec(t, "0.001")).
		Add(decimal.NewFromInt(40).Mul(mustDec(t, "0.002")))
	assert.True(t, exec.TotalFees.Equal(wantFees))

	// Realized volume written back per venue.
	gotA, err := core.registry.Get(a.ID)
	require.NoError(t, err)
	assert.True(t, gotA.Metrics.VolumeToday.Equal(decimal.NewFromInt(60)))
	assert.False(t, gotA.Metrics.LastTradeAt.IsZero())
	gotB, err := core.registry.Get(b.ID)
	require.NoError(t, err)
	assert.True(t, gotB.Metrics.VolumeToday.Equal(decimal.NewFromInt(40)))
}

func TestExecuteWithRoute_InvalidRouteCreatesNoRecord(t *testing.T) {
	core := newTestCore(t)
	v := core.addVenue(t, venueSpec{name: "Alpha", priority: 50, maxAllocPct: 100})

	req := marketBuy(100)
	route, err := core.planner.PlanRoute(context.Background(), req)
	require.NoError(t, err)

	require.NoError(t, core.registry.Suspend(v.ID, "maintenance", nil))

	_, err = core.executor.ExecuteWithRoute(context.Background(), req, route)
	assert.ErrorIs(t, err, types.ErrRouteInvalid)

	// No venue mutation either.
	got, err := core.registry.Get(v.ID)
	require.NoError(t, err)
	assert.True(t, got.Metrics.VolumeToday.IsZero())
	assert.True(t, got.Metrics.LastTradeAt.IsZero())
}

func TestCancelTrade_FilledRejectedUnchanged(t *testing.T) {
	core := newTestCore(t)
	core.addVenue(t, venueSpec{name: "Alpha", priority: 50, maxAllocPct: 100})

	exec, err := core.executor.ExecuteTrade(context.Background(), marketBuy(100))
	require.NoError(t, err)
	require.Equal(t, types.ExecutionStatusFilled, exec.Status)

	err = core.executor.CancelTrade(exec.ID)
	assert.ErrorIs(t, err, types.ErrInvalidStateTransition)

	after, err := core.executor.GetExecution(exec.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ExecutionStatusFilled, after.Status)
	assert.Equal(t, exec.UpdatedAt, after.UpdatedAt)
	assert.True(t, after.FilledAmount.Equal(exec.FilledAmount))
	assert.Len(t, after.Fills, len(exec.Fills))
}

func TestCancelTrade_UnknownExecution(t *testing.T) {
	core := newTestCore(t)
	err := core.executor.CancelTrade("missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestGetTradeStatus(t *testing.T) {
	core := newTestCore(t)
	core.addVenue(t, venueSpec{name: "Gamma", priority: 50, maxAllocPct: 30})

	exec, err := core.executor.ExecuteTrade(context.Background(), marketBuy(100))
	require.NoError(t, err)

	status, err := core.executor.GetTradeStatus(exec.ID)
	require.NoError(t, err)
	assert.Equal(t, exec.ID, status.ExecutionID)
	assert.True(t, status.FilledAmount.Equal(decimal.NewFromInt(30)))
	assert.True(t, status.RemainingAmount.Equal(decimal.NewFromInt(70)))
	assert.False(t, status.UpdatedAt.IsZero())

	_, err = core.executor.GetTradeStatus("missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestExecuteTrade_EmitsTradeExecuted(t *testing.T) {
	cfg := config.Default()
	bus := events.NewBus(cfg.Events.Workers, cfg.Events.QueueSize)
	defer bus.Close()

	core := newTestCore(t)
	core.executor = NewExecutor(core.registry, core.planner, core.validator, bus)
	core.addVenue(t, venueSpec{name: "Alpha", priority: 50, maxAllocPct: 100})

	received := make(chan events.TradeExecuted, 1)
	bus.Subscribe(events.EventTradeExecuted, func(ev events.Event) {
		if payload, ok := ev.Payload.(events.TradeExecuted); ok {
			received <- payload
		}
	})

	exec, err := core.executor.ExecuteTrade(context.Background(), marketBuy(100))
	require.NoError(t, err)

	select {
	case payload := <-received:
		assert.Equal(t, exec.ID, payload.ExecutionID)
		assert.Equal(t, string(types.ExecutionStatusFilled), payload.Status)
		assert.Equal(t, 1, payload.VenueCount)
	case <-time.After(2 * time.Second):
		t.Fatal("trade_executed event not delivered")
	}
}

func TestExecuteTrade_ParallelTradesIndependent(t *testing.T) {
	core := newTestCore(t)
	core.addVenue(t, venueSpec{name: "Alpha", priority: 80, maxAllocPct: 60})
	core.addVenue(t, venueSpec{name: "Beta", priority: 50, maxAllocPct: 100})

	const trades = 20
	var wg sync.WaitGroup
	errs := make(chan error, trades)
	ids := make(chan string, trades)

	for i := 0; i < trades; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			exec, err := core.executor.ExecuteTrade(context.Background(), marketBuy(10))
			if err != nil {
				errs <- err
				return
			}
			ids <- exec.ID
		}()
	}
	wg.Wait()
	close(errs)
	close(ids)

	for err := range errs {
		t.Fatalf("parallel execution failed: %v", err)
	}

	seen := make(map[string]bool)
	for id := range ids {
		require.False(t, seen[id], "duplicate execution id")
		seen[id] = true
		exec, err := core.executor.GetExecution(id)
		require.NoError(t, err)
		assert.Equal(t, types.ExecutionStatusFilled, exec.Status)
		assert.True(t, exec.FilledAmount.Equal(decimal.NewFromInt(10)))
	}
	assert.Len(t, seen, trades)
}
