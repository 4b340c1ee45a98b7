package types

import "errors"

// Error kinds surfaced by the routing and execution core. Callers match
// with errors.Is; call sites wrap with fmt.Errorf("...: %w", ...) for
// context.
var (
	// ErrNotFound is returned for unknown venue or execution ids.
	ErrNotFound = errors.New("not found")

	// ErrNoEligibleVenues is returned when the planner filters every
	// candidate out.
	ErrNoEligibleVenues = errors.New("no eligible venues")

	// ErrRouteExpired marks a route past its validity window. It is a
	// validator warning, not a hard violation; the caller may re-plan.
	ErrRouteExpired = errors.New("route expired")

	// ErrRouteInvalid blocks execution when validation reports a
	// non-empty violation set.
	ErrRouteInvalid = errors.New("route invalid")

	// ErrLimitExceeded marks a venue capacity cap breach.
	ErrLimitExceeded = errors.New("limit exceeded")

	// ErrInvalidStateTransition is returned for illegal lifecycle moves,
	// e.g. cancelling a terminal execution.
	ErrInvalidStateTransition = errors.New("invalid state transition")
)
