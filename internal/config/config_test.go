package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/possync/internal/money"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "possync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.DB)
	assert.Equal(t, 30*time.Second, cfg.Sync.Interval)
	assert.Equal(t, TransportNone, cfg.Sync.Transport)
	assert.Equal(t, 30*24*time.Hour, cfg.Retention.Window)
	assert.Equal(t, 24*time.Hour, cfg.Retention.Interval)
	assert.Equal(t, 24*time.Hour, cfg.Menu.Freshness)
	assert.Equal(t, uint32(5), cfg.Sync.BreakerThreshold)
	assert.Zero(t, cfg.TaxRate)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
db: /tmp/pos.db
terminal_id: front-1
tax_rate_bp: 825
sync:
  transport: kafka
  brokers: [k1:9092, k2:9092]
  topic: sales
  interval: 1m
retention:
  window: 168h
`)
	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/pos.db", cfg.DB)
	assert.Equal(t, "front-1", cfg.TerminalID)
	assert.Equal(t, money.Rate(825), cfg.TaxRate)
	assert.Equal(t, "8.25%", cfg.TaxRate.String())
	assert.Equal(t, TransportKafka, cfg.Sync.Transport)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Sync.Brokers)
	assert.Equal(t, time.Minute, cfg.Sync.Interval)
	assert.Equal(t, 7*24*time.Hour, cfg.Retention.Window)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "sync:\n  transport: http\n  endpoint: http://file\n")
	t.Setenv("POSSYNC_SYNC_ENDPOINT", "http://env")
	t.Setenv("POSSYNC_TAX_RATE_BP", "800")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "http://env", cfg.Sync.Endpoint)
	assert.Equal(t, money.Percent(8), cfg.TaxRate)
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			DB:           "pos.db",
			Sync:         SyncConfig{Transport: TransportNone, Interval: time.Second},
			Connectivity: ConnectivityConfig{Interval: time.Second},
			Retention:    RetentionConfig{Window: time.Hour, Interval: time.Hour},
			Menu:         MenuConfig{Freshness: time.Hour},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no db", func(c *Config) { c.DB = "" }},
		{"negative tax", func(c *Config) { c.TaxRate = -1 }},
		{"http without endpoint", func(c *Config) { c.Sync.Transport = TransportHTTP }},
		{"kafka without brokers", func(c *Config) { c.Sync.Transport = TransportKafka; c.Sync.Topic = "t" }},
		{"unknown transport", func(c *Config) { c.Sync.Transport = "carrier-pigeon" }},
		{"zero window", func(c *Config) { c.Retention.Window = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
