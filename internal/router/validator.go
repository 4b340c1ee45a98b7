package router

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/venuex/router/internal/registry"
	"github.com/venuex/router/pkg/types"
)

// Issue is one itemized validation finding. Kind is a sentinel from
// pkg/types so callers can match with errors.Is.
type Issue struct {
	Kind    error  `json:"-"`
	VenueID string `json:"venue_id,omitempty"`
	Message string `json:"message"`
}

// ValidationResult is the structured outcome of a route re-check.
// Violations block execution; warnings leave the decision to the caller.
type ValidationResult struct {
	Allowed    bool    `json:"allowed"`
	Violations []Issue `json:"violations,omitempty"`
	Warnings   []Issue `json:"warnings,omitempty"`
}

// Validator re-checks computed routes against current venue state
// immediately before execution.
type Validator struct {
	registry *registry.Registry
	logger   *logrus.Entry
}

// NewValidator creates a validator over the given registry.
func NewValidator(reg *registry.Registry) *Validator {
	return &Validator{
		registry: reg,
		logger:   logrus.WithField("component", "route-validator"),
	}
}

// ValidateRoute re-checks each leg's venue existence, status and
// remaining capacity, and the route's validity window, as of now.
func (v *Validator) ValidateRoute(route *types.Route, now time.Time) ValidationResult {
	result := ValidationResult{}

	for _, leg := range route.Legs {
		venue, err := v.registry.Get(leg.VenueID)
		if err != nil {
			result.Violations = append(result.Violations, Issue{
				Kind:    types.ErrNotFound,
				VenueID: leg.VenueID,
				Message: fmt.Sprintf("venue %s no longer exists", leg.VenueID),
			})
			continue
		}

		if venue.Status != types.VenueStatusActive {
			result.Violations = append(result.Violations, Issue{
				Kind:    types.ErrRouteInvalid,
				VenueID: venue.ID,
				Message: fmt.Sprintf("venue %s is %s", venue.Name, venue.Status),
			})
			continue
		}

		maxPerTrade := venue.Limits.MaxPerTrade
		if !maxPerTrade.IsZero() && leg.Amount.GreaterThan(maxPerTrade) {
			result.Violations = append(result.Violations, Issue{
				Kind:    types.ErrLimitExceeded,
				VenueID: venue.ID,
				Message: fmt.Sprintf("leg amount %s exceeds per-trade limit %s on %s",
					leg.Amount, maxPerTrade, venue.Name),
			})
		}

		remaining, err := v.registry.RemainingDailyCapacity(venue.ID, now)
		if err == nil && !remaining.IsNegative() && leg.Amount.GreaterThan(remaining) {
			result.Violations = append(result.Violations, Issue{
				Kind:    types.ErrLimitExceeded,
				VenueID: venue.ID,
				Message: fmt.Sprintf("leg amount %s exceeds remaining daily capacity %s on %s",
					leg.Amount, remaining, venue.Name),
			})
		}
	}

	if route.Expired(now) {
		result.Warnings = append(result.Warnings, Issue{
			Kind:    types.ErrRouteExpired,
			Message: fmt.Sprintf("route expired at %s", route.ExpiresAt.Format(time.RFC3339)),
		})
	}

	result.Allowed = len(result.Violations) == 0
	if !result.Allowed {
		v.logger.WithFields(logrus.Fields{
			"route_id":   route.ID,
			"violations": len(result.Violations),
		}).Warn("route rejected by validation")
	}
	return result
}

// HasViolation reports whether the result contains a violation of the
// given kind.
func (r ValidationResult) HasViolation(kind error) bool {
	for _, issue := range r.Violations {
		if errors.Is(issue.Kind, kind) {
			return true
		}
	}
	return false
}

// HasWarning reports whether the result contains a warning of the given
// kind.
func (r ValidationResult) HasWarning(kind error) bool {
	for _, issue := range r.Warnings {
		if errors.Is(issue.Kind, kind) {
			return true
		}
	}
	return false
}
