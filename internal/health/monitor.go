package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/venuex/router/internal/config"
	"github.com/venuex/router/internal/registry"
	"github.com/venuex/router/pkg/events"
	"github.com/venuex/router/pkg/types"
)

// VenueStatus classifies one venue from its rolling metrics
type VenueStatus string

const (
	VenueHealthy  VenueStatus = "healthy"
	VenueDegraded VenueStatus = "degraded"
	VenueDown     VenueStatus = "down"
)

// GroupStatus classifies a named venue group
type GroupStatus string

const (
	GroupOptimal    GroupStatus = "optimal"
	GroupSuboptimal GroupStatus = "suboptimal"
	GroupDegraded   GroupStatus = "degraded"
)

// NetworkStatus classifies the whole venue pool
type NetworkStatus string

const (
	NetworkHealthy  NetworkStatus = "healthy"
	NetworkDegraded NetworkStatus = "degraded"
	NetworkCritical NetworkStatus = "critical"
)

// AlertLevel grades advisory alerts
type AlertLevel string

const (
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
)

// VenueHealth is the classification of a single venue
type VenueHealth struct {
	VenueID   string      `json:"venue_id"`
	VenueName string      `json:"venue_name"`
	Status    VenueStatus `json:"status"`
	CheckedAt time.Time   `json:"checked_at"`
}

// GroupHealth is the classification of a named venue group
type GroupHealth struct {
	Name            string      `json:"name"`
	Status          GroupStatus `json:"status"`
	HealthyFraction float64     `json:"healthy_fraction"`
	VenueCount      int         `json:"venue_count"`
}

// Alert is an advisory signal for operators and the route planner
type Alert struct {
	Level   AlertLevel `json:"level"`
	VenueID string     `json:"venue_id"`
	Message string     `json:"message"`
}

// Snapshot is one consistent read of network health
type Snapshot struct {
	Network   NetworkStatus          `json:"network"`
	Venues    map[string]VenueHealth `json:"venues"`
	Groups    []GroupHealth          `json:"groups"`
	Alerts    []Alert                `json:"alerts"`
	CheckedAt time.Time              `json:"checked_at"`
}

// Monitor derives health classifications from registry metrics. It is a
// read-only view: it never mutates venue routing configuration.
type Monitor struct {
	registry *registry.Registry
	cfg      config.HealthConfig
	bus      *events.Bus
	logger   *logrus.Entry

	mu          sync.RWMutex
	groups      map[string][]string // group name -> venue ids
	lastNetwork NetworkStatus
}

// NewMonitor creates a monitor over the given registry.
func NewMonitor(reg *registry.Registry, cfg config.HealthConfig, bus *events.Bus) *Monitor {
	return &Monitor{
		registry: reg,
		cfg:      cfg,
		bus:      bus,
		logger:   logrus.WithField("component", "health-monitor"),
		groups:   make(map[string][]string),
	}
}

// DefineGroup names a set of venues for group classification.
func (m *Monitor) DefineGroup(name string, venueIDs []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[name] = append([]string(nil), venueIDs...)
}

// Classify maps one venue's rolling metrics to a health status. A
// suspended or inactive venue counts as down regardless of metrics.
func (m *Monitor) Classify(v *types.Venue) VenueStatus {
	if v.Status != types.VenueStatusActive {
		return VenueDown
	}

	met := v.Metrics
	if met.UptimePercent.LessThan(m.cfg.UptimeDegraded) ||
		met.AvgLatencyMs.GreaterThan(m.cfg.LatencyDegradedMs) ||
		met.FillRate.LessThan(m.cfg.FillRateDegraded) {
		return VenueDown
	}
	if met.UptimePercent.LessThan(m.cfg.UptimeHealthy) ||
		met.AvgLatencyMs.GreaterThan(m.cfg.LatencyHealthyMs) ||
		met.FillRate.LessThan(m.cfg.FillRateHealthy) {
		return VenueDegraded
	}
	return VenueHealthy
}

// VenueHealth classifies every active-pool venue. Calling it twice with
// no intervening state change returns identical classifications.
func (m *Monitor) VenueHealth() map[string]VenueHealth {
	now := time.Now()
	out := make(map[string]VenueHealth)
	for _, v := range m.registry.List(registry.Filter{}) {
		out[v.ID] = VenueHealth{
			VenueID:   v.ID,
			VenueName: v.Name,
			Status:    m.Classify(v),
			CheckedAt: now,
		}
	}
	return out
}

// GroupHealth classifies every named group from the healthy fraction of
// its members.
func (m *Monitor) GroupHealth() []GroupHealth {
	venues := m.VenueHealth()

	m.mu.RLock()
	names := make([]string, 0, len(m.groups))
	for name := range m.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	groups := make(map[string][]string, len(m.groups))
	for name, ids := range m.groups {
		groups[name] = ids
	}
	m.mu.RUnlock()

	out := make([]GroupHealth, 0, len(names))
	for _, name := range names {
		ids := groups[name]
		healthy := 0
		counted := 0
		for _, id := range ids {
			vh, ok := venues[id]
			if !ok {
				continue
			}
			counted++
			if vh.Status == VenueHealthy {
				healthy++
			}
		}

		gh := GroupHealth{Name: name, VenueCount: counted}
		if counted > 0 {
			gh.HealthyFraction = float64(healthy) / float64(counted)
		}
		switch {
		case gh.HealthyFraction >= m.cfg.GroupOptimal:
			gh.Status = GroupOptimal
		case gh.HealthyFraction >= m.cfg.GroupSuboptimal:
			gh.Status = GroupSuboptimal
		default:
			gh.Status = GroupDegraded
		}
		out = append(out, gh)
	}
	return out
}

// Check produces a full snapshot: venue and group classifications,
// overall network status and advisory alerts.
func (m *Monitor) Check() Snapshot {
	venues := m.VenueHealth()

	down, degraded := 0, 0
	var alerts []Alert
	ids := make([]string, 0, len(venues))
	for id := range venues {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		vh := venues[id]
		switch vh.Status {
		case VenueDown:
			down++
			alerts = append(alerts, Alert{
				Level:   AlertCritical,
				VenueID: id,
				Message: "venue " + vh.VenueName + " is down",
			})
		case VenueDegraded:
			degraded++
			alerts = append(alerts, Alert{
				Level:   AlertWarning,
				VenueID: id,
				Message: "venue " + vh.VenueName + " is degraded",
			})
		}
	}

	network := NetworkHealthy
	switch {
	case down > 0:
		network = NetworkCritical
	case len(venues) > 0 && float64(degraded)/float64(len(venues)) > m.cfg.DegradedNetworkCut:
		network = NetworkDegraded
	}

	snapshot := Snapshot{
		Network:   network,
		Venues:    venues,
		Groups:    m.GroupHealth(),
		Alerts:    alerts,
		CheckedAt: time.Now(),
	}

	m.mu.Lock()
	old := m.lastNetwork
	m.lastNetwork = network
	m.mu.Unlock()

	if old != "" && old != network {
		m.logger.WithFields(logrus.Fields{
			"old_status": old,
			"new_status": network,
		}).Warn("network health changed")
		if m.bus != nil {
			m.bus.Publish(events.EventHealthChanged, events.HealthChanged{
				OldStatus: string(old),
				NewStatus: string(network),
				Degraded:  degraded,
				Down:      down,
			})
		}
	}

	return snapshot
}

// Run evaluates health on the given interval until the context ends.
// The embedding application chooses the cadence; on-demand Check calls
// remain valid alongside.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check()
		}
	}
}
