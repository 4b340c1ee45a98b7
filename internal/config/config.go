package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// RegistryConfig holds venue registry defaults
type RegistryConfig struct {
	// Conservative limits assigned to newly registered venues that do
	// not specify their own.
	DefaultMaxPerTrade    decimal.Decimal
	DefaultMaxDailyVolume decimal.Decimal
	DefaultMaxExposure    decimal.Decimal
}

// PlannerConfig holds route planner tunables
type PlannerConfig struct {
	RouteTTL        time.Duration
	MaxAlternatives int
	QuoteTTL        time.Duration
	RoundingPlaces  int32
}

// HealthConfig holds classification thresholds
type HealthConfig struct {
	UptimeHealthy      decimal.Decimal // percent
	UptimeDegraded     decimal.Decimal
	LatencyHealthyMs   decimal.Decimal
	LatencyDegradedMs  decimal.Decimal
	FillRateHealthy    decimal.Decimal // 0-1
	FillRateDegraded   decimal.Decimal
	GroupOptimal       float64 // healthy fraction thresholds
	GroupSuboptimal    float64
	DegradedNetworkCut float64 // fraction of degraded venues marking the network degraded
}

// EventsConfig holds event bus sizing
type EventsConfig struct {
	Workers   int
	QueueSize int
}

// NATSConfig holds the outward publisher settings
type NATSConfig struct {
	URL     string
	Name    string
	Enabled bool
}

// Config is the full library configuration
type Config struct {
	Registry RegistryConfig
	Planner  PlannerConfig
	Health   HealthConfig
	Events   EventsConfig
	NATS     NATSConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("registry.default_max_per_trade", "100000")
	v.SetDefault("registry.default_max_daily_volume", "1000000")
	v.SetDefault("registry.default_max_exposure", "500000")

	v.SetDefault("planner.route_ttl", "30s")
	v.SetDefault("planner.max_alternatives", 3)
	v.SetDefault("planner.quote_ttl", "5s")
	v.SetDefault("planner.rounding_places", 8)

	v.SetDefault("health.uptime_healthy", "99.0")
	v.SetDefault("health.uptime_degraded", "95.0")
	v.SetDefault("health.latency_healthy_ms", "250")
	v.SetDefault("health.latency_degraded_ms", "1000")
	v.SetDefault("health.fill_rate_healthy", "0.95")
	v.SetDefault("health.fill_rate_degraded", "0.80")
	v.SetDefault("health.group_optimal", 0.8)
	v.SetDefault("health.group_suboptimal", 0.5)
	v.SetDefault("health.degraded_network_cut", 0.25)

	v.SetDefault("events.workers", 4)
	v.SetDefault("events.queue_size", 256)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.name", "venue-router")
	v.SetDefault("nats.enabled", false)
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, _ := fromViper(v)
	return cfg
}

// Load reads configuration from the given file (yaml/toml/json by
// extension), applying defaults for anything unset.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Registry: RegistryConfig{
			DefaultMaxPerTrade:    mustDecimal(v.GetString("registry.default_max_per_trade")),
			DefaultMaxDailyVolume: mustDecimal(v.GetString("registry.default_max_daily_volume")),
			DefaultMaxExposure:    mustDecimal(v.GetString("registry.default_max_exposure")),
		},
		Planner: PlannerConfig{
			RouteTTL:        v.GetDuration("planner.route_ttl"),
			MaxAlternatives: v.GetInt("planner.max_alternatives"),
			QuoteTTL:        v.GetDuration("planner.quote_ttl"),
			RoundingPlaces:  int32(v.GetInt("planner.rounding_places")),
		},
		Health: HealthConfig{
			UptimeHealthy:      mustDecimal(v.GetString("health.uptime_healthy")),
			UptimeDegraded:     mustDecimal(v.GetString("health.uptime_degraded")),
			LatencyHealthyMs:   mustDecimal(v.GetString("health.latency_healthy_ms")),
			LatencyDegradedMs:  mustDecimal(v.GetString("health.latency_degraded_ms")),
			FillRateHealthy:    mustDecimal(v.GetString("health.fill_rate_healthy")),
			FillRateDegraded:   mustDecimal(v.GetString("health.fill_rate_degraded")),
			GroupOptimal:       v.GetFloat64("health.group_optimal"),
			GroupSuboptimal:    v.GetFloat64("health.group_suboptimal"),
			DegradedNetworkCut: v.GetFloat64("health.degraded_network_cut"),
		},
		Events: EventsConfig{
			Workers:   v.GetInt("events.workers"),
			QueueSize: v.GetInt("events.queue_size"),
		},
		NATS: NATSConfig{
			URL:     v.GetString("nats.url"),
			Name:    v.GetString("nats.name"),
			Enabled: v.GetBool("nats.enabled"),
		},
	}

	if cfg.Planner.RouteTTL <= 0 {
		return nil, fmt.Errorf("planner.route_ttl must be positive")
	}
	return cfg, nil
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
