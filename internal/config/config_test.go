package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 30*time.Second, cfg.Planner.RouteTTL)
	assert.Equal(t, 3, cfg.Planner.MaxAlternatives)
	assert.True(t, cfg.Health.UptimeHealthy.Equal(decimal.NewFromFloat(99.0)))
	assert.Equal(t, 0.25, cfg.Health.DegradedNetworkCut)
	assert.False(t, cfg.NATS.Enabled)
	assert.True(t, cfg.Registry.DefaultMaxDailyVolume.Equal(decimal.NewFromInt(1_000_000)))
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "router.yaml")
	body := `
planner:
  route_ttl: 10s
  max_alternatives: 1
health:
  uptime_healthy: "98.5"
nats:
  enabled: true
  url: nats://broker:4222
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Planner.RouteTTL)
	assert.Equal(t, 1, cfg.Planner.MaxAlternatives)
	assert.True(t, cfg.Health.UptimeHealthy.Equal(decimal.NewFromFloat(98.5)))
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "nats://broker:4222", cfg.NATS.URL)

	// Unset keys keep their defaults.
	assert.Equal(t, 5*time.Second, cfg.Planner.QuoteTTL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/router.yaml")
	assert.Error(t, err)
}
