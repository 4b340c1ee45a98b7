package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// VenueType classifies a liquidity venue
type VenueType string

const (
	VenueTypeExchange    VenueType = "exchange"
	VenueTypeOTCDesk     VenueType = "otc_desk"
	VenueTypeMarketMaker VenueType = "market_maker"
	VenueTypeAggregator  VenueType = "aggregator"
)

// VenueStatus represents the lifecycle status of a venue
type VenueStatus string

const (
	VenueStatusPending   VenueStatus = "pending"
	VenueStatusActive    VenueStatus = "active"
	VenueStatusSuspended VenueStatus = "suspended"
	VenueStatusInactive  VenueStatus = "inactive"
)

// RoutingPolicy controls how the planner allocates flow to a venue
type RoutingPolicy struct {
	Priority             int             `json:"priority"`               // Higher routes first
	Weight               decimal.Decimal `json:"weight"`                 // Relative routing weight
	MinAllocationPercent decimal.Decimal `json:"min_allocation_percent"` // Of total order size
	MaxAllocationPercent decimal.Decimal `json:"max_allocation_percent"`
	ExcludedPairs        []string        `json:"excluded_pairs,omitempty"`
}

// FeeTier is a volume-based fee discount level
type FeeTier struct {
	MinVolume30d decimal.Decimal `json:"min_volume_30d"`
	MakerFee     decimal.Decimal `json:"maker_fee"`
	TakerFee     decimal.Decimal `json:"taker_fee"`
}

// FeeSchedule contains a venue's fee information
type FeeSchedule struct {
	MakerFee        decimal.Decimal `json:"maker_fee"` // As fraction (0.001 = 0.1%)
	TakerFee        decimal.Decimal `json:"taker_fee"`
	FeeAsset        string          `json:"fee_asset,omitempty"`
	VolumeDiscounts []FeeTier       `json:"volume_discounts,omitempty"`
}

// TakerFeeAt returns the taker fee applicable at the given rolling
// 30-day volume, falling back to the base fee when no tier matches.
func (f FeeSchedule) TakerFeeAt(volume30d decimal.Decimal) decimal.Decimal {
	fee := f.TakerFee
	for _, tier := range f.VolumeDiscounts {
		if volume30d.GreaterThanOrEqual(tier.MinVolume30d) && tier.TakerFee.LessThan(fee) {
			fee = tier.TakerFee
		}
	}
	return fee
}

// MakerFeeAt returns the maker fee applicable at the given rolling
// 30-day volume.
func (f FeeSchedule) MakerFeeAt(volume30d decimal.Decimal) decimal.Decimal {
	fee := f.MakerFee
	for _, tier := range f.VolumeDiscounts {
		if volume30d.GreaterThanOrEqual(tier.MinVolume30d) && tier.MakerFee.LessThan(fee) {
			fee = tier.MakerFee
		}
	}
	return fee
}

// VenueLimits contains trading and exposure caps. A zero value means
// the limit is not set.
type VenueLimits struct {
	MaxPerTrade      decimal.Decimal `json:"max_per_trade"`
	MaxDailyVolume   decimal.Decimal `json:"max_daily_volume"`
	MaxWeeklyVolume  decimal.Decimal `json:"max_weekly_volume"`
	MaxMonthlyVolume decimal.Decimal `json:"max_monthly_volume"`
	MaxExposure      decimal.Decimal `json:"max_exposure"`
}

// VenueMetrics holds rolling performance numbers fed back from executions
// and external monitoring.
type VenueMetrics struct {
	UptimePercent decimal.Decimal `json:"uptime_percent"` // 0-100
	AvgLatencyMs  decimal.Decimal `json:"avg_latency_ms"`
	FillRate      decimal.Decimal `json:"fill_rate"` // 0-1
	AvgSpread     decimal.Decimal `json:"avg_spread"`
	AvgSlippage   decimal.Decimal `json:"avg_slippage"`
	VolumeToday   decimal.Decimal `json:"volume_today"`
	VolumeDate    string          `json:"volume_date,omitempty"` // YYYY-MM-DD of VolumeToday
	Volume30d     decimal.Decimal `json:"volume_30d"`
	TotalVolume   decimal.Decimal `json:"total_volume"`
	LastTradeAt   time.Time       `json:"last_trade_at,omitempty"`
}

// Venue is a liquidity counterparty the router can allocate flow to.
// Mutated exclusively through registry operations; never deleted while
// referenced by a stored execution.
type Venue struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Type            VenueType       `json:"type"`
	Status          VenueStatus     `json:"status"`
	SupportedPairs  []string        `json:"supported_pairs"`
	Policy          RoutingPolicy   `json:"policy"`
	Fees            FeeSchedule     `json:"fees"`
	Limits          VenueLimits     `json:"limits"`
	Metrics         VenueMetrics    `json:"metrics"`
	SuspendedReason string          `json:"suspended_reason,omitempty"`
	SuspendedUntil  *time.Time      `json:"suspended_until,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// SupportsPair reports whether the venue lists the pair as tradable and
// does not exclude it through its routing policy.
func (v *Venue) SupportsPair(pair string) bool {
	listed := false
	for _, p := range v.SupportedPairs {
		if p == pair {
			listed = true
			break
		}
	}
	if !listed {
		return false
	}
	for _, p := range v.Policy.ExcludedPairs {
		if p == pair {
			return false
		}
	}
	return true
}

// Clone returns a deep copy safe to hand out across goroutines.
func (v *Venue) Clone() *Venue {
	c := *v
	c.SupportedPairs = append([]string(nil), v.SupportedPairs...)
	c.Policy.ExcludedPairs = append([]string(nil), v.Policy.ExcludedPairs...)
	c.Fees.VolumeDiscounts = append([]FeeTier(nil), v.Fees.VolumeDiscounts...)
	if v.SuspendedUntil != nil {
		until := *v.SuspendedUntil
		c.SuspendedUntil = &until
	}
	return &c
}
