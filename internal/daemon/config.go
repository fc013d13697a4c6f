package daemon

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/inkwell-notes/inkwell/internal/domain"
	"github.com/inkwell-notes/inkwell/internal/infra/logging"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "INKWELL_"

// Config is the top-level inkwell configuration.
type Config struct {
	API           APIConfig           `toml:"api" envPrefix:"API_"`
	Storage       StorageConfig       `toml:"storage" envPrefix:"STORAGE_"`
	Remote        RemoteConfig        `toml:"remote" envPrefix:"REMOTE_"`
	Rewards       RewardsConfig       `toml:"rewards" envPrefix:"REWARDS_"`
	Notifications NotificationsConfig `toml:"notifications" envPrefix:"NOTIFICATIONS_"`
	Sync          SyncConfig          `toml:"sync" envPrefix:"SYNC_"`
	Log           logging.Config      `toml:"log"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	Host    string `toml:"host" env:"HOST"`
	Port    int    `toml:"port" env:"PORT"`
	Metrics bool   `toml:"metrics" env:"METRICS"`
}

// Addr returns host:port.
func (c APIConfig) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

// StorageConfig selects the key-value backend. Notes and milestones always
// live in SQLite under DataDir.
type StorageConfig struct {
	Backend       string `toml:"backend" env:"BACKEND"` // sqlite, redis, memory
	DataDir       string `toml:"data_dir" env:"DATA_DIR"`
	RedisAddr     string `toml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string `toml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `toml:"redis_db" env:"REDIS_DB"`
	RedisPrefix   string `toml:"redis_prefix" env:"REDIS_PREFIX"`
}

// RemoteConfig selects the remote note collection and its probe.
type RemoteConfig struct {
	Backend       string `toml:"backend" env:"BACKEND"` // surreal, memory, none
	ProbeAddr     string `toml:"probe_addr" env:"PROBE_ADDR"`
	ProbeInterval string `toml:"probe_interval" env:"PROBE_INTERVAL"`
	ProbeTimeout  string `toml:"probe_timeout" env:"PROBE_TIMEOUT"`
	URL           string `toml:"url" env:"URL"`
	Namespace     string `toml:"namespace" env:"NAMESPACE"`
	Database      string `toml:"database" env:"DATABASE"`
	Username      string `toml:"username" env:"USERNAME"`
	Password      string `toml:"password" env:"PASSWORD"`
}

// RewardsConfig sets daily reward amounts and the calendar zone.
type RewardsConfig struct {
	DailyBase         int64  `toml:"daily_base" env:"DAILY_BASE"`
	StreakBonusPerDay int64  `toml:"streak_bonus_per_day" env:"STREAK_BONUS_PER_DAY"`
	StreakBonusCap    int64  `toml:"streak_bonus_cap" env:"STREAK_BONUS_CAP"`
	Timezone          string `toml:"timezone" env:"TIMEZONE"` // IANA name, empty for local
	Milestones        bool   `toml:"milestones" env:"MILESTONES"`
}

// NotificationsConfig sets notification timings.
type NotificationsConfig struct {
	DedupWindow string `toml:"dedup_window" env:"DEDUP_WINDOW"`
	ToastTTL    string `toml:"toast_ttl" env:"TOAST_TTL"`
	MaxRecords  int    `toml:"max_records" env:"MAX_RECORDS"`
}

// SyncConfig sets sync behaviour.
type SyncConfig struct {
	Mode       string `toml:"mode" env:"MODE"` // manual, auto; empty keeps the persisted mode
	Timeout    string `toml:"timeout" env:"TIMEOUT"`
	TraceSpans int    `toml:"trace_spans" env:"TRACE_SPANS"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:    "127.0.0.1",
			Port:    8787,
			Metrics: true,
		},
		Storage: StorageConfig{
			Backend:     "sqlite",
			DataDir:     InkwellHome(),
			RedisAddr:   "localhost:6379",
			RedisPrefix: "inkwell",
		},
		Remote: RemoteConfig{
			Backend:       "memory",
			ProbeInterval: "10s",
			ProbeTimeout:  "3s",
			URL:           "ws://127.0.0.1:8000/rpc",
			Namespace:     "inkwell",
			Database:      "notes",
		},
		Rewards: RewardsConfig{
			DailyBase:         50,
			StreakBonusPerDay: 10,
			StreakBonusCap:    100,
			Milestones:        true,
		},
		Notifications: NotificationsConfig{
			DedupWindow: "5s",
			ToastTTL:    "5s",
			MaxRecords:  100,
		},
		Sync: SyncConfig{
			Timeout:    "30s",
			TraceSpans: 200,
		},
		Log: logging.DefaultConfig(),
	}
}

// InkwellHome returns $INKWELL_HOME or ~/.inkwell.
func InkwellHome() string {
	if h := os.Getenv("INKWELL_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".inkwell"
	}
	return filepath.Join(home, ".inkwell")
}

// ConfigPath returns the default config file location.
func ConfigPath() string {
	return filepath.Join(InkwellHome(), "config.toml")
}

// LoadConfig layers defaults, the TOML file at path (missing is fine), a
// .env file from the home or working directory, and INKWELL_* variables.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	for _, f := range []string{filepath.Join(InkwellHome(), ".env"), ".env"} {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", f, err)
		}
	}

	if err := env.Parse(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, cfg.Validate()
}

// SaveConfig writes cfg as TOML.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// Validate rejects unknown backends and unparsable durations.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("storage.backend: unknown %q", c.Storage.Backend)
	}
	switch c.Remote.Backend {
	case "surreal", "memory", "none":
	default:
		return fmt.Errorf("remote.backend: unknown %q", c.Remote.Backend)
	}
	if c.Sync.Mode != "" {
		if _, err := domain.ParseSyncMode(c.Sync.Mode); err != nil {
			return fmt.Errorf("sync.mode: %w", err)
		}
	}
	for name, v := range map[string]string{
		"remote.probe_interval":      c.Remote.ProbeInterval,
		"remote.probe_timeout":       c.Remote.ProbeTimeout,
		"notifications.dedup_window": c.Notifications.DedupWindow,
		"notifications.toast_ttl":    c.Notifications.ToastTTL,
		"sync.timeout":               c.Sync.Timeout,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if _, err := c.Rewards.location(); err != nil {
		return fmt.Errorf("rewards.timezone: %w", err)
	}
	return nil
}

// Policy converts the rewards section to a domain policy.
func (c RewardsConfig) Policy() domain.RewardPolicy {
	return domain.RewardPolicy{
		DailyBase:         c.DailyBase,
		StreakBonusPerDay: c.StreakBonusPerDay,
		StreakBonusCap:    c.StreakBonusCap,
	}
}

func (c RewardsConfig) location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// parseDuration parses s, falling back to def when s is empty or invalid.
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// probeAddr returns the configured probe address, or host:port of the
// remote URL when the remote is SurrealDB and none is set.
func (c RemoteConfig) probeAddr() string {
	if c.ProbeAddr != "" || c.Backend != "surreal" {
		return c.ProbeAddr
	}
	u, err := url.Parse(c.URL)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Port() != "" {
		return u.Host
	}
	switch u.Scheme {
	case "wss", "https":
		return net.JoinHostPort(u.Hostname(), "443")
	default:
		return net.JoinHostPort(u.Hostname(), "80")
	}
}
