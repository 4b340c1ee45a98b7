package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Trade sides
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Order types
const (
	OrderTypeMarket = "MARKET"
	OrderTypeLimit  = "LIMIT"
)

// Type aliases for readability
type Side = string
type OrderType = string

// TradeRequest is the ephemeral input to the route planner. It is never
// persisted by the core.
type TradeRequest struct {
	Pair              string          `json:"pair"`
	Side              Side            `json:"side"`
	Amount            decimal.Decimal `json:"amount"`
	OrderType         OrderType       `json:"order_type"`
	LimitPrice        decimal.Decimal `json:"limit_price,omitempty"`
	SlippageTolerance decimal.Decimal `json:"slippage_tolerance,omitempty"`
	PreferredVenues   []string        `json:"preferred_venues,omitempty"`
	ExcludedVenues    []string        `json:"excluded_venues,omitempty"`
}

// Validate checks the request for structural errors before planning.
func (r *TradeRequest) Validate() error {
	if r.Pair == "" {
		return fmt.Errorf("pair is required")
	}
	if r.Side != SideBuy && r.Side != SideSell {
		return fmt.Errorf("invalid side: %q", r.Side)
	}
	if r.Amount.IsZero() || r.Amount.IsNegative() {
		return fmt.Errorf("invalid amount: %s", r.Amount)
	}
	if r.OrderType == OrderTypeLimit && r.LimitPrice.IsZero() {
		return fmt.Errorf("limit price required for limit orders")
	}
	return nil
}

// Excludes reports whether the request excludes the given venue.
func (r *TradeRequest) Excludes(venueID string) bool {
	for _, id := range r.ExcludedVenues {
		if id == venueID {
			return true
		}
	}
	return false
}

// Prefers reports whether the venue is admissible under the request's
// preferred set. An empty preferred set admits every venue.
func (r *TradeRequest) Prefers(venueID string) bool {
	if len(r.PreferredVenues) == 0 {
		return true
	}
	for _, id := range r.PreferredVenues {
		if id == venueID {
			return true
		}
	}
	return false
}

// RouteLeg is the portion of a trade allocated to one venue. Immutable
// once the owning route is produced.
type RouteLeg struct {
	VenueID            string          `json:"venue_id"`
	VenueName          string          `json:"venue_name"`
	Amount             decimal.Decimal `json:"amount"`
	SharePercent       decimal.Decimal `json:"share_percent"`
	EstimatedPrice     decimal.Decimal `json:"estimated_price"`
	EstimatedFee       decimal.Decimal `json:"estimated_fee"`
	EstimatedLatencyMs decimal.Decimal `json:"estimated_latency_ms"`
	Priority           int             `json:"priority"`
}

// Route is the planned leg-by-leg allocation for a trade request.
type Route struct {
	ID                string          `json:"id"`
	Pair              string          `json:"pair"`
	Side              Side            `json:"side"`
	RequestedAmount   decimal.Decimal `json:"requested_amount"`
	Legs              []RouteLeg      `json:"legs"`
	EstimatedPrice    decimal.Decimal `json:"estimated_price"`
	EstimatedFees     decimal.Decimal `json:"estimated_fees"`
	EstimatedSlippage decimal.Decimal `json:"estimated_slippage"`
	Confidence        float64         `json:"confidence"` // 0.0 to 1.0
	UnderAllocated    bool            `json:"under_allocated"`
	UnallocatedAmount decimal.Decimal `json:"unallocated_amount"`
	Alternatives      []Route         `json:"alternatives,omitempty"` // Single-venue comparisons
	CreatedAt         time.Time       `json:"created_at"`
	ExpiresAt         time.Time       `json:"expires_at"`
}

// AllocatedAmount returns the sum of leg amounts.
func (r *Route) AllocatedAmount() decimal.Decimal {
	total := decimal.Zero
	for _, leg := range r.Legs {
		total = total.Add(leg.Amount)
	}
	return total
}

// Expired reports whether the route's validity window has elapsed.
func (r *Route) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// ExecutionStatus is the lifecycle state of a trade execution
type ExecutionStatus string

const (
	ExecutionStatusPending         ExecutionStatus = "pending"
	ExecutionStatusRouting         ExecutionStatus = "routing"
	ExecutionStatusExecuting       ExecutionStatus = "executing"
	ExecutionStatusPartiallyFilled ExecutionStatus = "partially_filled"
	ExecutionStatusFilled          ExecutionStatus = "filled"
	ExecutionStatusCancelled       ExecutionStatus = "cancelled"
	ExecutionStatusFailed          ExecutionStatus = "failed"
	ExecutionStatusExpired         ExecutionStatus = "expired"
)

// Terminal reports whether the status is final.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionStatusFilled, ExecutionStatusCancelled, ExecutionStatusFailed, ExecutionStatusExpired:
		return true
	}
	return false
}

// executionTransitions is the monotonic state machine: no state is
// revisited, terminal states have no successors.
var executionTransitions = map[ExecutionStatus][]ExecutionStatus{
	ExecutionStatusPending:         {ExecutionStatusRouting, ExecutionStatusCancelled, ExecutionStatusFailed, ExecutionStatusExpired},
	ExecutionStatusRouting:         {ExecutionStatusExecuting, ExecutionStatusCancelled, ExecutionStatusFailed, ExecutionStatusExpired},
	ExecutionStatusExecuting:       {ExecutionStatusPartiallyFilled, ExecutionStatusFilled, ExecutionStatusFailed, ExecutionStatusExpired},
	ExecutionStatusPartiallyFilled: {ExecutionStatusFilled, ExecutionStatusFailed, ExecutionStatusExpired},
}

// CanTransition reports whether moving from s to next is a legal
// lifecycle step.
func (s ExecutionStatus) CanTransition(next ExecutionStatus) bool {
	for _, allowed := range executionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Fill is the immutable record of one leg's settlement. It belongs to
// exactly one leg index of exactly one execution.
type Fill struct {
	VenueID  string          `json:"venue_id"`
	LegIndex int             `json:"leg_index"`
	Amount   decimal.Decimal `json:"amount"`
	Price    decimal.Decimal `json:"price"`
	Fee      decimal.Decimal `json:"fee"`
	FilledAt time.Time       `json:"filled_at"`
}

// TradeExecution tracks one trade through its lifecycle. Created once at
// execution start and mutated only by the execution controller.
type TradeExecution struct {
	ID               string          `json:"id"`
	Request          TradeRequest    `json:"request"`
	Route            Route           `json:"route"`
	Status           ExecutionStatus `json:"status"`
	Fills            []Fill          `json:"fills"`
	FilledAmount     decimal.Decimal `json:"filled_amount"`
	TotalFees        decimal.Decimal `json:"total_fees"`
	RealizedAvgPrice decimal.Decimal `json:"realized_avg_price"`
	RealizedSlippage decimal.Decimal `json:"realized_slippage"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
}

// RemainingAmount returns the unfilled portion of the requested amount.
func (e *TradeExecution) RemainingAmount() decimal.Decimal {
	return e.Request.Amount.Sub(e.FilledAmount)
}

// Clone returns a deep copy safe to hand out across goroutines.
func (e *TradeExecution) Clone() *TradeExecution {
	c := *e
	c.Fills = append([]Fill(nil), e.Fills...)
	c.Route.Legs = append([]RouteLeg(nil), e.Route.Legs...)
	c.Route.Alternatives = append([]Route(nil), e.Route.Alternatives...)
	if e.CompletedAt != nil {
		done := *e.CompletedAt
		c.CompletedAt = &done
	}
	return &c
}
