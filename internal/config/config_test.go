package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payrecon/reconciler/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", c.Server.Port)
	assert.Equal(t, "reconciler.db", c.Database.Path)
	assert.Equal(t, 4, c.Reconcile.Workers)
	assert.False(t, c.Reconcile.AutoFix)
	assert.Equal(t, ModeSimulated, c.Sources.Mode)
	assert.Equal(t, 30*time.Second, c.Redis.LockTTL)
	assert.Equal(t, "1250", c.Accounts.UndepositedFunds)

	names, err := c.Sources.Names()
	require.NoError(t, err)
	assert.Equal(t, []domain.PayoutSourceName{domain.SourceSquare, domain.SourceStripe, domain.SourceShopify, domain.SourcePayPal}, names)

	start, err := c.Simulation.StartTime()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), start)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", "/tmp/recon.db")
	t.Setenv("RECON_RECONCILE_WORKERS", "16")
	t.Setenv("RECON_RECONCILE_AUTO_FIX", "true")
	t.Setenv("RECON_SOURCES_ENABLED", "stripe,PayPal")
	t.Setenv("RECON_REDIS_LOCK_TTL", "5s")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "9090", c.Server.Port)
	assert.Equal(t, "/tmp/recon.db", c.Database.Path)
	assert.Equal(t, 16, c.Reconcile.Workers)
	assert.True(t, c.Reconcile.AutoFix)
	assert.Equal(t, 5*time.Second, c.Redis.LockTTL)

	names, err := c.Sources.Names()
	require.NoError(t, err)
	assert.Equal(t, []domain.PayoutSourceName{domain.SourceStripe, domain.SourcePayPal}, names)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: "7000"
reconcile:
  workers: 2
  account_filter: Business Checking
accounts:
  fee: "6150"
  by_type:
    REFUND_DRIFT: "4100"
sources:
  mode: files
  enabled: [stripe, shopify]
  files:
    stripe: data/stripe_payouts.csv
    SHOPIFY: data/shopify_payouts.csv
  deposits: data/deposits.json
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7000", c.Server.Port)
	assert.Equal(t, 2, c.Reconcile.Workers)
	assert.Equal(t, "Business Checking", c.Reconcile.AccountFilter)
	assert.Equal(t, "6150", c.Accounts.Fee)
	assert.Equal(t, "6900", c.Accounts.Default)
	assert.Equal(t, "4100", c.Accounts.ByType["refund_drift"])
	assert.Equal(t, ModeFiles, c.Sources.Mode)
	assert.Equal(t, "data/stripe_payouts.csv", c.Sources.File(domain.SourceStripe))
	assert.Equal(t, "data/shopify_payouts.csv", c.Sources.File(domain.SourceShopify))
	assert.Equal(t, "", c.Sources.File(domain.SourceSquare))
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown mode", map[string]string{"RECON_SOURCES_MODE": "kafka"}, "sources.mode"},
		{"unknown source", map[string]string{"RECON_SOURCES_ENABLED": "stripe,venmo"}, "sources.enabled"},
		{"files mode without files", map[string]string{"RECON_SOURCES_MODE": "files", "RECON_SOURCES_ENABLED": "stripe"}, "sources.files"},
		{"bad start", map[string]string{"RECON_SIMULATION_START": "Jan 1"}, "simulation.start"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.ErrorContains(t, err, tt.want)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")
}
