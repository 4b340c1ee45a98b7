package router

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/venuex/router/internal/config"
	"github.com/venuex/router/internal/health"
	"github.com/venuex/router/internal/registry"
	"github.com/venuex/router/pkg/types"
)

var hundred = decimal.NewFromInt(100)

// candidate is one eligible venue with its health classification, held
// through ranking and allocation.
type candidate struct {
	venue    *types.Venue
	degraded bool
}

// Planner computes venue allocations for trade requests. Planning is
// read-only over the registry and health monitor, so any number of
// requests may plan concurrently.
type Planner struct {
	registry *registry.Registry
	monitor  *health.Monitor
	quotes   QuoteProvider
	cfg      config.PlannerConfig
	logger   *logrus.Entry
}

// NewPlanner creates a planner over the given registry and monitor.
func NewPlanner(reg *registry.Registry, mon *health.Monitor, quotes QuoteProvider, cfg config.PlannerConfig) *Planner {
	return &Planner{
		registry: reg,
		monitor:  mon,
		quotes:   quotes,
		cfg:      cfg,
		logger:   logrus.WithField("component", "route-planner"),
	}
}

// PlanRoute computes the optimal venue allocation for the request. The
// returned route carries a validity window; after it elapses the route
// must be revalidated or re-planned before execution.
func (p *Planner) PlanRoute(ctx context.Context, req *types.TradeRequest) (*types.Route, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid trade request: %w", err)
	}

	candidates := p.eligible(req)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("pair %s: %w", req.Pair, types.ErrNoEligibleVenues)
	}

	rank(candidates)

	now := time.Now()
	route := &types.Route{
		ID:              uuid.NewString(),
		Pair:            req.Pair,
		Side:            req.Side,
		RequestedAmount: req.Amount,
		CreatedAt:       now,
		ExpiresAt:       now.Add(p.cfg.RouteTTL),
	}

	remaining := req.Amount
	for _, c := range candidates {
		if remaining.IsZero() {
			break
		}

		venueCap := req.Amount.Mul(c.venue.Policy.MaxAllocationPercent).Div(hundred)
		take := decimal.Min(remaining, venueCap)
		if !take.IsPositive() {
			continue
		}

		leg, err := p.buildLeg(ctx, c.venue, req, take)
		if err != nil {
			return nil, fmt.Errorf("venue %s: %w", c.venue.Name, err)
		}
		route.Legs = append(route.Legs, leg)
		remaining = remaining.Sub(take)
	}

	if len(route.Legs) == 0 {
		return nil, fmt.Errorf("pair %s: %w", req.Pair, types.ErrNoEligibleVenues)
	}

	p.aggregate(route, candidates)

	if remaining.IsPositive() {
		route.UnderAllocated = true
		route.UnallocatedAmount = remaining
		allocated, _ := route.AllocatedAmount().Div(req.Amount).Float64()
		route.Confidence *= allocated
		p.logger.WithFields(logrus.Fields{
			"route_id":    route.ID,
			"pair":        req.Pair,
			"unallocated": remaining.String(),
		}).Warn("route under-allocated: eligible venue capacity insufficient")
	}

	route.Alternatives = p.alternatives(ctx, req, candidates, route)

	p.logger.WithFields(logrus.Fields{
		"route_id":   route.ID,
		"pair":       req.Pair,
		"side":       req.Side,
		"legs":       len(route.Legs),
		"confidence": route.Confidence,
	}).Info("route planned")

	return route, nil
}

// eligible filters the venue pool for the request: active, pair listed
// and not venue-excluded, request exclusions and preferences honored,
// health down hard-excluded, degraded kept but flagged.
func (p *Planner) eligible(req *types.TradeRequest) []*candidate {
	venues := p.registry.List(registry.Filter{
		Status: types.VenueStatusActive,
		Pair:   req.Pair,
	})

	out := make([]*candidate, 0, len(venues))
	for _, v := range venues {
		if req.Excludes(v.ID) || !req.Prefers(v.ID) {
			continue
		}
		switch p.monitor.Classify(v) {
		case health.VenueDown:
			continue
		case health.VenueDegraded:
			out = append(out, &candidate{venue: v, degraded: true})
		default:
			out = append(out, &candidate{venue: v})
		}
	}
	return out
}

// rank orders candidates by routing priority descending, degraded after
// non-degraded peers of equal priority, then rolling average spread
// ascending. Name breaks any remaining tie for determinism.
func rank(candidates []*candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.venue.Policy.Priority != b.venue.Policy.Priority {
			return a.venue.Policy.Priority > b.venue.Policy.Priority
		}
		if a.degraded != b.degraded {
			return !a.degraded
		}
		if !a.venue.Metrics.AvgSpread.Equal(b.venue.Metrics.AvgSpread) {
			return a.venue.Metrics.AvgSpread.LessThan(b.venue.Metrics.AvgSpread)
		}
		return a.venue.Name < b.venue.Name
	})
}

func (p *Planner) buildLeg(ctx context.Context, v *types.Venue, req *types.TradeRequest, take decimal.Decimal) (types.RouteLeg, error) {
	quote, err := p.quotes.Quote(ctx, v, req.Pair, req.Side, take)
	if err != nil {
		return types.RouteLeg{}, fmt.Errorf("quote failed: %w", err)
	}

	takerFee := v.Fees.TakerFeeAt(v.Metrics.Volume30d)
	return types.RouteLeg{
		VenueID:            v.ID,
		VenueName:          v.Name,
		Amount:             take,
		SharePercent:       take.Div(req.Amount).Mul(hundred).Round(p.cfg.RoundingPlaces),
		EstimatedPrice:     quote.Price,
		EstimatedFee:       take.Mul(takerFee),
		EstimatedLatencyMs: v.Metrics.AvgLatencyMs,
		Priority:           v.Policy.Priority,
	}, nil
}

// aggregate fills in the route-level estimates from its legs: amount-
// weighted price, summed fees, share-weighted slippage, and mean venue
// fill-rate as confidence.
func (p *Planner) aggregate(route *types.Route, candidates []*candidate) {
	byID := make(map[string]*types.Venue, len(candidates))
	for _, c := range candidates {
		byID[c.venue.ID] = c.venue
	}

	allocated := route.AllocatedAmount()
	notional := decimal.Zero
	fees := decimal.Zero
	slippage := decimal.Zero
	fillRate := decimal.Zero

	for _, leg := range route.Legs {
		notional = notional.Add(leg.Amount.Mul(leg.EstimatedPrice))
		fees = fees.Add(leg.EstimatedFee)

		share := leg.Amount.Div(allocated)
		v := byID[leg.VenueID]
		slippage = slippage.Add(share.Mul(v.Metrics.AvgSlippage))
		fillRate = fillRate.Add(v.Metrics.FillRate)
	}

	route.EstimatedPrice = notional.Div(allocated).Round(p.cfg.RoundingPlaces)
	route.EstimatedFees = fees
	route.EstimatedSlippage = slippage
	route.Confidence, _ = fillRate.Div(decimal.NewFromInt(int64(len(route.Legs)))).Float64()
}

// alternatives synthesizes up to MaxAlternatives single-venue whole-
// amount routes from ranked venues other than the primary leg's, for
// comparison by the caller.
func (p *Planner) alternatives(ctx context.Context, req *types.TradeRequest, candidates []*candidate, route *types.Route) []types.Route {
	if p.cfg.MaxAlternatives <= 0 {
		return nil
	}

	primary := route.Legs[0].VenueID
	out := make([]types.Route, 0, p.cfg.MaxAlternatives)
	for _, c := range candidates {
		if len(out) == p.cfg.MaxAlternatives {
			break
		}
		if c.venue.ID == primary {
			continue
		}
		venueCap := req.Amount.Mul(c.venue.Policy.MaxAllocationPercent).Div(hundred)
		if venueCap.LessThan(req.Amount) {
			continue
		}

		leg, err := p.buildLeg(ctx, c.venue, req, req.Amount)
		if err != nil {
			continue
		}
		alt := types.Route{
			ID:              uuid.NewString(),
			Pair:            req.Pair,
			Side:            req.Side,
			RequestedAmount: req.Amount,
			Legs:            []types.RouteLeg{leg},
			CreatedAt:       route.CreatedAt,
			ExpiresAt:       route.ExpiresAt,
		}
		p.aggregate(&alt, candidates)
		out = append(out, alt)
	}
	return out
}
