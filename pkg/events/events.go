package events

import (
	"time"
)

// EventType identifies the small typed event set the core emits
type EventType string

const (
	EventVenueAdded         EventType = "venue_added"
	EventVenueStatusChanged EventType = "venue_status_changed"
	EventTradeExecuted      EventType = "trade_executed"
	EventHealthChanged      EventType = "health_changed"
)

// Event is the envelope delivered to subscribers
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// VenueAdded is the payload for EventVenueAdded
type VenueAdded struct {
	VenueID string `json:"venue_id"`
	Name    string `json:"name"`
	Type    string `json:"venue_type"`
}

// VenueStatusChanged is the payload for EventVenueStatusChanged
type VenueStatusChanged struct {
	VenueID   string `json:"venue_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	Reason    string `json:"reason,omitempty"`
}

// TradeExecuted is the payload for EventTradeExecuted
type TradeExecuted struct {
	ExecutionID  string `json:"execution_id"`
	Pair         string `json:"pair"`
	Side         string `json:"side"`
	Status       string `json:"status"`
	FilledAmount string `json:"filled_amount"`
	AvgPrice     string `json:"avg_price"`
	TotalFees    string `json:"total_fees"`
	VenueCount   int    `json:"venue_count"`
}

// HealthChanged is the payload for EventHealthChanged
type HealthChanged struct {
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	Degraded  int    `json:"degraded_venues"`
	Down      int    `json:"down_venues"`
}
