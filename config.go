package forge

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is FORGE's ambient operational configuration: where the store
// lives, which OTS calendars to use, and the default anchor interval.
// The zero value is not meaningful on its own; LoadConfig always returns
// usable defaults even with no config file present.
type Config struct {
	StoreDir               string   `mapstructure:"store_dir"`
	Calendars              []string `mapstructure:"calendars"`
	CalendarTimeoutSeconds int      `mapstructure:"calendar_timeout_seconds"`
	AnchorEvery            uint64   `mapstructure:"anchor_every"`
}

// DefaultConfig returns FORGE's built-in defaults: the three default OTS
// calendars, a 10s per-calendar timeout, and sealing every 100 atoms.
func DefaultConfig() Config {
	return Config{
		StoreDir:               defaultStoreDir(),
		Calendars:              append([]string(nil), DefaultCalendars...),
		CalendarTimeoutSeconds: int(otsRequestTimeout / time.Second),
		AnchorEvery:            100,
	}
}

// CalendarTimeout returns CalendarTimeoutSeconds as a time.Duration.
func (c Config) CalendarTimeout() time.Duration {
	return time.Duration(c.CalendarTimeoutSeconds) * time.Second
}

// LoadConfig reads configuration from path (any format viper supports —
// YAML, JSON, TOML, .env) layered over DefaultConfig. A missing file is
// not an error: the defaults are returned unchanged, so a process can
// always construct a usable Config whether or not an operator has
// written a config file yet.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("store_dir", cfg.StoreDir)
	v.SetDefault("calendars", cfg.Calendars)
	v.SetDefault("calendar_timeout_seconds", cfg.CalendarTimeoutSeconds)
	v.SetDefault("anchor_every", cfg.AnchorEvery)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("forge: load config %s: %w", path, err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("forge: parse config %s: %w", path, err)
	}
	return cfg, nil
}

// WatchConfig reloads the configuration at path whenever it changes on
// disk, calling onChange with the whole updated Config (every field,
// layered over DefaultConfig), not only the calendar list.
// It relies on viper's fsnotify-backed file watcher, so an OTSClient's
// calendar list can be updated without restarting the process. WatchConfig
// returns immediately; the watch runs until the process exits.
func WatchConfig(path string, onChange func(Config)) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("forge: watch config %s: %w", path, err)
		}
	}
	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg := DefaultConfig()
		if err := v.Unmarshal(&cfg); err == nil {
			onChange(cfg)
		}
	})
	v.WatchConfig()
	return nil
}

func defaultStoreDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".forge"
	}
	return home + "/.forge"
}
