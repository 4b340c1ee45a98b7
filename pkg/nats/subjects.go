package nats

// Subject naming convention:
// {domain}.{action}.{id}
// Examples:
// - venues.added.3f2a...
// - venues.status.3f2a...
// - trades.executed.9c1b...
// - health.changed
const (
	SubjectVenueAdded    = "venues.added"
	SubjectVenueStatus   = "venues.status"
	SubjectTradeExecuted = "trades.executed"
	SubjectHealthChanged = "health.changed"
)

// VenueAddedSubject returns the per-venue subject for registrations.
func VenueAddedSubject(venueID string) string {
	return SubjectVenueAdded + "." + venueID
}

// VenueStatusSubject returns the per-venue subject for status changes.
func VenueStatusSubject(venueID string) string {
	return SubjectVenueStatus + "." + venueID
}

// TradeExecutedSubject returns the per-execution subject for executions.
func TradeExecutedSubject(executionID string) string {
	return SubjectTradeExecuted + "." + executionID
}
