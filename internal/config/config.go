// Package config defines the engine's configuration surface. Config is
// loaded per chain from ~/.scale/<chain>_config.yaml (spec.md §6) with
// sensitive fields overridable via SCALE_* environment variables,
// matching the teacher's viper-plus-env-override wiring.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"scale-bot/internal/errs"
)

// PythSymbol is one entry of price_config.pyth_symbol[]: a supported
// upstream symbol and the on-chain oracle feed it updates.
type PythSymbol struct {
	Symbol string `mapstructure:"symbol" yaml:"symbol"`
	ID     string `mapstructure:"id" yaml:"id"`
}

// DBConfig is the optional metrics sink (price_config.db.*). A nil
// pointer (the field absent from YAML) disables DB writes.
type DBConfig struct {
	URL    string `mapstructure:"url" yaml:"url"`
	Org    string `mapstructure:"org" yaml:"org"`
	Bucket string `mapstructure:"bucket" yaml:"bucket"`
	Token  string `mapstructure:"token" yaml:"token"`
}

// PriceConfig is price_config.* from spec.md §6.
type PriceConfig struct {
	WSURL      string       `mapstructure:"ws_url" yaml:"ws_url"`
	PythSymbol []PythSymbol `mapstructure:"pyth_symbol" yaml:"pyth_symbol"`
	DB         *DBConfig    `mapstructure:"db" yaml:"db"`
}

// HTTPConfig carries the http.ip/http.port settings for config-surface
// parity; this engine starts no HTTP/WS server and does not read them.
type HTTPConfig struct {
	IP   string `mapstructure:"ip" yaml:"ip"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// LoggingConfig selects slog's handler and level.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Config is the top-level configuration, maps directly onto the YAML
// file structure.
type Config struct {
	StorePath string      `mapstructure:"store_path" yaml:"store_path"`
	Price     PriceConfig `mapstructure:"price_config" yaml:"price_config"`

	// Tasks is the liquidation scheduler's worker count (default 2, min 2).
	Tasks int `mapstructure:"tasks" yaml:"tasks"`
	// Threads is the async-runtime worker thread count; carried for
	// config-surface parity with the original per spec.md §6 (this Go
	// engine schedules goroutines onto GOMAXPROCS, not a fixed pool, so
	// the field is accepted but otherwise unused).
	Threads int `mapstructure:"threads" yaml:"threads"`

	HTTP           HTTPConfig    `mapstructure:"http" yaml:"http"`
	WritePriceToDB bool          `mapstructure:"write_price_to_db" yaml:"write_price_to_db"`
	Logging        LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// BurstRate is the maintenance-margin threshold the cascade force-
	// closes below (spec.md §4.5).
	BurstRate float64 `mapstructure:"burst_rate" yaml:"burst_rate"`

	SweepIntervalSec      int `mapstructure:"sweep_interval_sec" yaml:"sweep_interval_sec"`
	FundingTickSec        int `mapstructure:"funding_tick_sec" yaml:"funding_tick_sec"`
	OpeningPriceTickSec   int `mapstructure:"opening_price_tick_sec" yaml:"opening_price_tick_sec"`
	OraclePushIntervalSec int `mapstructure:"oracle_push_interval_sec" yaml:"oracle_push_interval_sec"`
}

// SweepInterval, FundingTickInterval, OpeningPriceTickInterval, and
// OraclePushInterval convert the YAML integer-seconds fields to
// time.Duration for the components that consume them.
func (c Config) SweepInterval() time.Duration      { return time.Duration(c.SweepIntervalSec) * time.Second }
func (c Config) FundingTickInterval() time.Duration {
	return time.Duration(c.FundingTickSec) * time.Second
}
func (c Config) OpeningPriceTickInterval() time.Duration {
	return time.Duration(c.OpeningPriceTickSec) * time.Second
}
func (c Config) OraclePushInterval() time.Duration {
	return time.Duration(c.OraclePushIntervalSec) * time.Second
}

// DefaultPath returns ~/.scale/<chain>_config.yaml, the location spec.md
// §6 specifies for per-chain config.
func DefaultPath(chain string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%w: resolve home directory: %v", errs.Config, err)
	}
	return filepath.Join(home, ".scale", chain+"_config.yaml"), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tasks", 2)
	v.SetDefault("threads", 4)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("burst_rate", 0.05)
	v.SetDefault("sweep_interval_sec", 10)
	v.SetDefault("funding_tick_sec", 3600)
	v.SetDefault("opening_price_tick_sec", 86400)
	v.SetDefault("oracle_push_interval_sec", 5)
}

// Load reads config from path with SCALE_* environment variable
// overrides (SetEnvKeyReplacer maps "." to "_", e.g. SCALE_PRICE_CONFIG_WS_URL
// overrides price_config.ws_url).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("SCALE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: read config %s: %v", errs.Config, path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal config: %v", errs.Config, err)
	}
	if cfg.Tasks < 2 {
		cfg.Tasks = 2
	}
	return &cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.StorePath == "" {
		return fmt.Errorf("%w: store_path is required", errs.Config)
	}
	if c.Price.WSURL == "" {
		return fmt.Errorf("%w: price_config.ws_url is required", errs.Config)
	}
	if len(c.Price.PythSymbol) == 0 {
		return fmt.Errorf("%w: price_config.pyth_symbol must list at least one symbol", errs.Config)
	}
	if c.Tasks < 2 {
		return fmt.Errorf("%w: tasks must be >= 2", errs.Config)
	}
	if c.BurstRate <= 0 || c.BurstRate >= 1 {
		return fmt.Errorf("%w: burst_rate must be in (0, 1)", errs.Config)
	}
	return nil
}

// Save writes cfg to path as YAML, creating parent directories as
// needed. Used by the CLI's "config set" subcommand.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: create config dir: %v", errs.Config, err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("%w: marshal config: %v", errs.Config, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: write config %s: %v", errs.Config, path, err)
	}
	return nil
}
