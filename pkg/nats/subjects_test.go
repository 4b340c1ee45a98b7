package nats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubjects(t *testing.T) {
	assert.Equal(t, "venues.added.v1", VenueAddedSubject("v1"))
	assert.Equal(t, "venues.status.v1", VenueStatusSubject("v1"))
	assert.Equal(t, "trades.executed.e1", TradeExecutedSubject("e1"))
	assert.Equal(t, "health.changed", SubjectHealthChanged)
}
