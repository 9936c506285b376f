// Package config loads terminal settings from a config file, POSSYNC_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/roach88/possync/internal/money"
)

// EnvPrefix prefixes every environment variable: sync.endpoint is read
// from POSSYNC_SYNC_ENDPOINT.
const EnvPrefix = "POSSYNC"

// Transports accepted in sync.transport.
const (
	TransportNone  = "none"
	TransportHTTP  = "http"
	TransportKafka = "kafka"
)

// Config is the full terminal configuration.
type Config struct {
	DB           string             `mapstructure:"db"`
	TerminalID   string             `mapstructure:"terminal_id"`
	TaxRate      money.Rate         `mapstructure:"tax_rate_bp"`
	Sync         SyncConfig         `mapstructure:"sync"`
	Connectivity ConnectivityConfig `mapstructure:"connectivity"`
	Retention    RetentionConfig    `mapstructure:"retention"`
	Menu         MenuConfig         `mapstructure:"menu"`
	Customers    CustomersConfig    `mapstructure:"customers"`
	Status       StatusConfig       `mapstructure:"status"`
}

// SyncConfig configures uploads.
type SyncConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	Transport        string        `mapstructure:"transport"`
	Endpoint         string        `mapstructure:"endpoint"`
	Brokers          []string      `mapstructure:"brokers"`
	Topic            string        `mapstructure:"topic"`
	Timeout          time.Duration `mapstructure:"timeout"`
	BreakerThreshold uint32        `mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
}

// ConnectivityConfig configures the online probe. An empty HealthURL means
// the terminal assumes it is online.
type ConnectivityConfig struct {
	HealthURL string        `mapstructure:"health_url"`
	Interval  time.Duration `mapstructure:"interval"`
}

// RetentionConfig configures the sweeper.
type RetentionConfig struct {
	Window   time.Duration `mapstructure:"window"`
	Interval time.Duration `mapstructure:"interval"`
}

// MenuConfig configures the menu cache.
type MenuConfig struct {
	URL       string        `mapstructure:"url"`
	Freshness time.Duration `mapstructure:"freshness"`
}

// CustomersConfig configures remote customer lookups.
type CustomersConfig struct {
	URL string `mapstructure:"url"`
}

// StatusConfig configures the local status API. An empty Addr disables it.
type StatusConfig struct {
	Addr string `mapstructure:"addr"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("db", defaultDBPath())
	v.SetDefault("terminal_id", "")
	v.SetDefault("tax_rate_bp", 0)

	v.SetDefault("sync.interval", "30s")
	v.SetDefault("sync.transport", TransportNone)
	v.SetDefault("sync.endpoint", "")
	v.SetDefault("sync.brokers", []string{})
	v.SetDefault("sync.topic", "pos-transactions")
	v.SetDefault("sync.timeout", "10s")
	v.SetDefault("sync.breaker_threshold", 5)
	v.SetDefault("sync.breaker_cooldown", "30s")

	v.SetDefault("connectivity.health_url", "")
	v.SetDefault("connectivity.interval", "10s")

	v.SetDefault("retention.window", "720h")
	v.SetDefault("retention.interval", "24h")

	v.SetDefault("menu.url", "")
	v.SetDefault("menu.freshness", "24h")

	v.SetDefault("customers.url", "")

	v.SetDefault("status.addr", "")
}

// Load reads configuration into a Config.
//
// cfgFile, if set, must exist. Otherwise possync.yaml is looked up in the
// working directory and in $HOME/.config/possync; a missing file is fine.
// Flags must already be bound to v by the caller.
func Load(v *viper.Viper, cfgFile string) (Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("possync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "possync"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	decoderConfigOption := viper.DecoderConfigOption(func(dc *mapstructure.DecoderConfig) {
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	})
	if err := v.Unmarshal(&cfg, decoderConfigOption); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.Sync.Transport = strings.ToLower(strings.TrimSpace(cfg.Sync.Transport))
	if cfg.Sync.Transport == "" {
		cfg.Sync.Transport = TransportNone
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	if c.DB == "" {
		return errors.New("config: db path is required")
	}
	if c.TaxRate < 0 {
		return fmt.Errorf("config: tax_rate_bp must not be negative, got %d", c.TaxRate)
	}
	switch c.Sync.Transport {
	case TransportNone:
	case TransportHTTP:
		if c.Sync.Endpoint == "" {
			return errors.New("config: sync.endpoint is required for the http transport")
		}
	case TransportKafka:
		if len(c.Sync.Brokers) == 0 || c.Sync.Topic == "" {
			return errors.New("config: sync.brokers and sync.topic are required for the kafka transport")
		}
	default:
		return fmt.Errorf("config: unknown sync.transport %q (want none, http or kafka)", c.Sync.Transport)
	}
	for name, d := range map[string]time.Duration{
		"sync.interval":         c.Sync.Interval,
		"connectivity.interval": c.Connectivity.Interval,
		"retention.window":      c.Retention.Window,
		"retention.interval":    c.Retention.Interval,
		"menu.freshness":        c.Menu.Freshness,
	} {
		if d <= 0 {
			return fmt.Errorf("config: %s must be positive, got %s", name, d)
		}
	}
	return nil
}

func defaultDBPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "possync", "possync.db")
	}
	return "possync.db"
}
