package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/venuex/router/internal/registry"
	"github.com/venuex/router/pkg/events"
	"github.com/venuex/router/pkg/types"
)

// execRecord pairs an execution with its own lock, guaranteeing at most
// one in-flight mutation per execution identity while distinct trades
// proceed fully in parallel.
type execRecord struct {
	mu   sync.Mutex
	exec types.TradeExecution
}

// TradeStatus is the summary returned by GetTradeStatus.
type TradeStatus struct {
	ExecutionID      string                `json:"execution_id"`
	Status           types.ExecutionStatus `json:"status"`
	FilledAmount     decimal.Decimal       `json:"filled_amount"`
	RemainingAmount  decimal.Decimal       `json:"remaining_amount"`
	RealizedAvgPrice decimal.Decimal       `json:"realized_avg_price"`
	TotalFees        decimal.Decimal       `json:"total_fees"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// Executor drives validated routes through the execution lifecycle and
// feeds realized volume back into the registry. It never retries failed
// legs; partial fills stand and re-routing the remainder is the
// caller's responsibility.
type Executor struct {
	registry  *registry.Registry
	planner   *Planner
	validator *Validator
	bus       *events.Bus
	logger    *logrus.Entry

	mu         sync.RWMutex
	executions map[string]*execRecord
}

// NewExecutor creates an execution controller.
func NewExecutor(reg *registry.Registry, planner *Planner, validator *Validator, bus *events.Bus) *Executor {
	return &Executor{
		registry:   reg,
		planner:    planner,
		validator:  validator,
		bus:        bus,
		logger:     logrus.WithField("component", "execution-controller"),
		executions: make(map[string]*execRecord),
	}
}

// ExecuteTrade plans a route for the request and executes it.
func (e *Executor) ExecuteTrade(ctx context.Context, req *types.TradeRequest) (*types.TradeExecution, error) {
	route, err := e.planner.PlanRoute(ctx, req)
	if err != nil {
		return nil, err
	}
	return e.ExecuteWithRoute(ctx, req, route)
}

// ExecuteWithRoute validates the route and drives it through the
// lifecycle, committing legs in route order and recording one fill per
// leg. A route that fails validation produces no execution record and
// mutates no venue state.
func (e *Executor) ExecuteWithRoute(ctx context.Context, req *types.TradeRequest, route *types.Route) (*types.TradeExecution, error) {
	result := e.validator.ValidateRoute(route, time.Now())
	if !result.Allowed {
		return nil, fmt.Errorf("route %s rejected with %d violation(s): %w",
			route.ID, len(result.Violations), types.ErrRouteInvalid)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now()
	rec := &execRecord{exec: types.TradeExecution{
		ID:        uuid.NewString(),
		Request:   *req,
		Route:     *route,
		Status:    types.ExecutionStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}}

	e.mu.Lock()
	e.executions[rec.exec.ID] = rec
	e.mu.Unlock()

	rec.mu.Lock()
	defer rec.mu.Unlock()

	// Cancellation may have slipped in between registration and here.
	if rec.exec.Status != types.ExecutionStatusPending {
		return rec.exec.Clone(), nil
	}

	e.advance(rec, types.ExecutionStatusRouting)
	e.advance(rec, types.ExecutionStatusExecuting)
	e.commitLegs(rec)

	filled := rec.exec.Clone()
	e.publishExecuted(filled)
	return filled, nil
}

// commitLegs records one fill per leg at the leg's estimated price and
// fee, sequentially in route order, then aggregates realized figures
// and writes volume back to the venues. Called with the record locked.
func (e *Executor) commitLegs(rec *execRecord) {
	exec := &rec.exec
	legs := exec.Route.Legs

	for i, leg := range legs {
		fill := types.Fill{
			VenueID:  leg.VenueID,
			LegIndex: i,
			Amount:   leg.Amount,
			Price:    leg.EstimatedPrice,
			Fee:      leg.EstimatedFee,
			FilledAt: time.Now(),
		}
		exec.Fills = append(exec.Fills, fill)
		exec.FilledAmount = exec.FilledAmount.Add(fill.Amount)
		exec.TotalFees = exec.TotalFees.Add(fill.Fee)

		if i < len(legs)-1 {
			e.advance(rec, types.ExecutionStatusPartiallyFilled)
		}
	}

	notional := decimal.Zero
	for _, fill := range exec.Fills {
		notional = notional.Add(fill.Amount.Mul(fill.Price))
	}
	if exec.FilledAmount.IsPositive() {
		exec.RealizedAvgPrice = notional.Div(exec.FilledAmount)
	}
	if !exec.Route.EstimatedPrice.IsZero() {
		exec.RealizedSlippage = exec.RealizedAvgPrice.
			Sub(exec.Route.EstimatedPrice).
			Div(exec.Route.EstimatedPrice)
	}

	e.advance(rec, types.ExecutionStatusFilled)
	done := time.Now()
	exec.CompletedAt = &done

	// Realized volume feeds future routing decisions, one venue at a
	// time under that venue's own lock.
	for _, fill := range exec.Fills {
		if err := e.registry.RecordFill(fill.VenueID, fill.Amount, fill.FilledAt); err != nil {
			e.logger.WithError(err).WithField("venue_id", fill.VenueID).
				Warn("failed to record realized volume")
		}
	}

	e.logger.WithFields(logrus.Fields{
		"execution_id": exec.ID,
		"pair":         exec.Request.Pair,
		"side":         exec.Request.Side,
		"filled":       exec.FilledAmount.String(),
		"avg_price":    exec.RealizedAvgPrice.String(),
		"legs":         len(legs),
	}).Info("trade executed")
}

// advance moves the execution to the next status when the transition
// table permits it. Called with the record locked.
func (e *Executor) advance(rec *execRecord, next types.ExecutionStatus) {
	if !rec.exec.Status.CanTransition(next) {
		return
	}
	rec.exec.Status = next
	rec.exec.UpdatedAt = time.Now()
}

// CancelTrade cancels an execution that has not begun committing legs.
// Fills already committed are never unwound.
func (e *Executor) CancelTrade(id string) error {
	rec, err := e.record(id)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if !rec.exec.Status.CanTransition(types.ExecutionStatusCancelled) {
		return fmt.Errorf("cannot cancel execution %s in status %s: %w",
			id, rec.exec.Status, types.ErrInvalidStateTransition)
	}

	rec.exec.Status = types.ExecutionStatusCancelled
	now := time.Now()
	rec.exec.UpdatedAt = now
	rec.exec.CompletedAt = &now

	e.logger.WithField("execution_id", id).Info("trade cancelled")
	e.publishExecuted(rec.exec.Clone())
	return nil
}

// GetTradeStatus returns the execution's progress summary.
func (e *Executor) GetTradeStatus(id string) (*TradeStatus, error) {
	exec, err := e.GetExecution(id)
	if err != nil {
		return nil, err
	}
	return &TradeStatus{
		ExecutionID:      exec.ID,
		Status:           exec.Status,
		FilledAmount:     exec.FilledAmount,
		RemainingAmount:  exec.RemainingAmount(),
		RealizedAvgPrice: exec.RealizedAvgPrice,
		TotalFees:        exec.TotalFees,
		UpdatedAt:        exec.UpdatedAt,
	}, nil
}

// GetExecution returns a copy of the full execution record.
func (e *Executor) GetExecution(id string) (*types.TradeExecution, error) {
	rec, err := e.record(id)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.exec.Clone(), nil
}

func (e *Executor) record(id string) (*execRecord, error) {
	e.mu.RLock()
	rec, ok := e.executions[id]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("execution %s: %w", id, types.ErrNotFound)
	}
	return rec, nil
}

func (e *Executor) publishExecuted(exec *types.TradeExecution) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.EventTradeExecuted, events.TradeExecuted{
		ExecutionID:  exec.ID,
		Pair:         exec.Request.Pair,
		Side:         exec.Request.Side,
		Status:       string(exec.Status),
		FilledAmount: exec.FilledAmount.String(),
		AvgPrice:     exec.RealizedAvgPrice.String(),
		TotalFees:    exec.TotalFees.String(),
		VenueCount:   len(exec.Route.Legs),
	})
}
