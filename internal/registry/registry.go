package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/venuex/router/internal/config"
	"github.com/venuex/router/pkg/events"
	"github.com/venuex/router/pkg/types"
)

// record pairs a venue with its own lock so updates to one venue never
// block reads of, or writes to, other venues.
type record struct {
	mu    sync.RWMutex
	venue types.Venue
}

// Registry owns all venue records. It is the only shared mutable
// resource in the core: concurrent readers, single writer per record.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*record

	cfg    config.RegistryConfig
	bus    *events.Bus
	logger *logrus.Entry
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Type   types.VenueType
	Status types.VenueStatus
	Pair   string
}

// New creates an empty registry. The bus may be nil when the embedding
// application does not subscribe to events.
func New(cfg config.RegistryConfig, bus *events.Bus) *Registry {
	return &Registry{
		records: make(map[string]*record),
		cfg:     cfg,
		bus:     bus,
		logger:  logrus.WithField("component", "venue-registry"),
	}
}

// Register adds a venue, assigning an identity and defaulting to pending
// status with conservative limits where none are given.
func (r *Registry) Register(venue types.Venue) (*types.Venue, error) {
	if venue.Name == "" {
		return nil, fmt.Errorf("venue name is required")
	}

	now := time.Now()
	venue.ID = uuid.NewString()
	venue.Status = types.VenueStatusPending
	venue.CreatedAt = now
	venue.UpdatedAt = now

	if venue.Limits.MaxPerTrade.IsZero() {
		venue.Limits.MaxPerTrade = r.cfg.DefaultMaxPerTrade
	}
	if venue.Limits.MaxDailyVolume.IsZero() {
		venue.Limits.MaxDailyVolume = r.cfg.DefaultMaxDailyVolume
	}
	if venue.Limits.MaxExposure.IsZero() {
		venue.Limits.MaxExposure = r.cfg.DefaultMaxExposure
	}
	if venue.Policy.MaxAllocationPercent.IsZero() {
		venue.Policy.MaxAllocationPercent = decimal.NewFromInt(100)
	}

	r.mu.Lock()
	r.records[venue.ID] = &record{venue: venue}
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{
		"venue_id": venue.ID,
		"name":     venue.Name,
		"type":     venue.Type,
	}).Info("venue registered")

	r.publish(events.EventVenueAdded, events.VenueAdded{
		VenueID: venue.ID,
		Name:    venue.Name,
		Type:    string(venue.Type),
	})

	return venue.Clone(), nil
}

// Get returns a copy of the venue.
func (r *Registry) Get(id string) (*types.Venue, error) {
	rec, err := r.record(id)
	if err != nil {
		return nil, err
	}

	rec.mu.RLock()
	defer rec.mu.RUnlock()
	return rec.venue.Clone(), nil
}

// List returns venues matching the filter, sorted by routing priority
// descending and name ascending for determinism. It is a pure read path
// safe to call concurrently with writes to any record.
func (r *Registry) List(filter Filter) []*types.Venue {
	r.mu.RLock()
	recs := make([]*record, 0, len(r.records))
	for _, rec := range r.records {
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	out := make([]*types.Venue, 0, len(recs))
	for _, rec := range recs {
		rec.mu.RLock()
		v := rec.venue
		match := (filter.Type == "" || v.Type == filter.Type) &&
			(filter.Status == "" || v.Status == filter.Status) &&
			(filter.Pair == "" || v.SupportsPair(filter.Pair))
		if match {
			out = append(out, rec.venue.Clone())
		}
		rec.mu.RUnlock()
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Policy.Priority != out[j].Policy.Priority {
			return out[i].Policy.Priority > out[j].Policy.Priority
		}
		return out[i].Name < out[j].Name
	})

	return out
}

// Update applies mutable configuration fields from the given venue to
// the stored record. Identity, status and metrics are not touched here;
// status moves through the transition operations and metrics through
// RecordFill/UpdateMetrics.
func (r *Registry) Update(venue types.Venue) (*types.Venue, error) {
	rec, err := r.record(venue.ID)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if venue.Name != "" {
		rec.venue.Name = venue.Name
	}
	if venue.Type != "" {
		rec.venue.Type = venue.Type
	}
	if venue.SupportedPairs != nil {
		rec.venue.SupportedPairs = append([]string(nil), venue.SupportedPairs...)
	}
	rec.venue.Policy = venue.Policy
	rec.venue.Fees = venue.Fees
	rec.venue.Limits = venue.Limits
	rec.venue.UpdatedAt = time.Now()

	return rec.venue.Clone(), nil
}

// UpdateMetrics replaces the externally monitored rolling metrics
// (uptime, latency, fill rate, spread, slippage). Volume counters and
// last-trade time are owned by RecordFill and preserved.
func (r *Registry) UpdateMetrics(id string, m types.VenueMetrics) error {
	rec, err := r.record(id)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	m.VolumeToday = rec.venue.Metrics.VolumeToday
	m.VolumeDate = rec.venue.Metrics.VolumeDate
	m.Volume30d = rec.venue.Metrics.Volume30d
	m.TotalVolume = rec.venue.Metrics.TotalVolume
	m.LastTradeAt = rec.venue.Metrics.LastTradeAt
	rec.venue.Metrics = m
	rec.venue.UpdatedAt = time.Now()
	return nil
}

// Activate moves a venue into active status.
func (r *Registry) Activate(id string) error {
	return r.transition(id, types.VenueStatusActive, "", nil)
}

// Deactivate marks a venue inactive with a reason. Deactivation is a
// status change, never a removal: stored executions keep referencing it.
func (r *Registry) Deactivate(id, reason string) error {
	return r.transition(id, types.VenueStatusInactive, reason, nil)
}

// Suspend marks a venue suspended with a reason and an optional end.
func (r *Registry) Suspend(id, reason string, until *time.Time) error {
	return r.transition(id, types.VenueStatusSuspended, reason, until)
}

func (r *Registry) transition(id string, status types.VenueStatus, reason string, until *time.Time) error {
	rec, err := r.record(id)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	old := rec.venue.Status
	rec.venue.Status = status
	rec.venue.SuspendedReason = ""
	rec.venue.SuspendedUntil = nil
	if status == types.VenueStatusSuspended || status == types.VenueStatusInactive {
		rec.venue.SuspendedReason = reason
	}
	if status == types.VenueStatusSuspended {
		rec.venue.SuspendedUntil = until
	}
	rec.venue.UpdatedAt = time.Now()
	rec.mu.Unlock()

	r.logger.WithFields(logrus.Fields{
		"venue_id":   id,
		"old_status": old,
		"new_status": status,
	}).Info("venue status changed")

	r.publish(events.EventVenueStatusChanged, events.VenueStatusChanged{
		VenueID:   id,
		OldStatus: string(old),
		NewStatus: string(status),
		Reason:    reason,
	})

	return nil
}

// RecordFill writes realized volume and last-trade time back into a
// venue record after execution. Read-modify-write under the record lock;
// the daily counter rolls over on date change.
func (r *Registry) RecordFill(id string, notional decimal.Decimal, at time.Time) error {
	rec, err := r.record(id)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	day := at.UTC().Format("2006-01-02")
	if rec.venue.Metrics.VolumeDate != day {
		rec.venue.Metrics.VolumeDate = day
		rec.venue.Metrics.VolumeToday = decimal.Zero
	}
	rec.venue.Metrics.VolumeToday = rec.venue.Metrics.VolumeToday.Add(notional)
	rec.venue.Metrics.Volume30d = rec.venue.Metrics.Volume30d.Add(notional)
	rec.venue.Metrics.TotalVolume = rec.venue.Metrics.TotalVolume.Add(notional)
	if at.After(rec.venue.Metrics.LastTradeAt) {
		rec.venue.Metrics.LastTradeAt = at
	}
	rec.venue.UpdatedAt = time.Now()
	return nil
}

// RemainingDailyCapacity returns how much notional the venue may still
// trade today under its daily limit. A venue without a daily limit has
// unbounded capacity, reported as a negative value.
func (r *Registry) RemainingDailyCapacity(id string, now time.Time) (decimal.Decimal, error) {
	rec, err := r.record(id)
	if err != nil {
		return decimal.Zero, err
	}

	rec.mu.RLock()
	defer rec.mu.RUnlock()

	limit := rec.venue.Limits.MaxDailyVolume
	if limit.IsZero() {
		return decimal.NewFromInt(-1), nil
	}

	used := rec.venue.Metrics.VolumeToday
	if rec.venue.Metrics.VolumeDate != now.UTC().Format("2006-01-02") {
		used = decimal.Zero
	}

	remaining := limit.Sub(used)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return remaining, nil
}

func (r *Registry) record(id string) (*record, error) {
	r.mu.RLock()
	rec, ok := r.records[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("venue %s: %w", id, types.ErrNotFound)
	}
	return rec, nil
}

func (r *Registry) publish(eventType events.EventType, payload interface{}) {
	if r.bus != nil {
		r.bus.Publish(eventType, payload)
	}
}
