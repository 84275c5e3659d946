package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when no config path is given.
const DefaultPath = "configs/config.yaml"

// PathEnv overrides the config path.
const PathEnv = "REMINDERS_CONFIG_PATH"

const (
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverFailover = "failover"
	DriverMemory   = "memory"
)

var (
	ErrPollTooSlow   = errors.New("scheduler.poll_interval must be shorter than the reminder window")
	ErrUnknownDriver = errors.New("unknown storage driver")
)

type Clock struct {
	UTCOffsetHours int `yaml:"utc_offset_hours" env:"REMINDERS_UTC_OFFSET_HOURS"`
}

type Scheduler struct {
	PollInterval  time.Duration `yaml:"poll_interval" env:"REMINDERS_POLL_INTERVAL"`
	WindowMinutes int           `yaml:"window_minutes" env:"REMINDERS_WINDOW_MINUTES"`
	MidnightReset bool          `yaml:"midnight_reset" env:"REMINDERS_MIDNIGHT_RESET"`
}

type Redis struct {
	Address  string `yaml:"address" env:"REDIS_ADDRESS"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

type Storage struct {
	Driver     string `yaml:"driver" env:"REMINDERS_STORAGE_DRIVER"`
	SQLitePath string `yaml:"sqlite_path" env:"REMINDERS_SQLITE_PATH"`
	Namespace  string `yaml:"namespace" env:"REMINDERS_NAMESPACE"`
	Redis      Redis  `yaml:"redis"`
}

type Audio struct {
	Enabled  bool   `yaml:"enabled" env:"REMINDERS_AUDIO_ENABLED"`
	ClipPath string `yaml:"clip_path" env:"REMINDERS_AUDIO_CLIP"`
}

type Telegram struct {
	BotToken string `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN"`
	ChatID   int64  `yaml:"chat_id" env:"TELEGRAM_CHAT_ID"`
}

type Notifications struct {
	Telegram    Telegram `yaml:"telegram"`
	CalendarURL string   `yaml:"calendar_url" env:"REMINDERS_CALENDAR_URL"`
}

type Toast struct {
	Duration time.Duration `yaml:"duration" env:"REMINDERS_TOAST_DURATION"`
}

type Sync struct {
	Endpoint      string        `yaml:"endpoint" env:"REMINDERS_SYNC_ENDPOINT"`
	APIKey        string        `yaml:"api_key" env:"REMINDERS_SYNC_API_KEY"`
	Timeout       time.Duration `yaml:"timeout" env:"REMINDERS_SYNC_TIMEOUT"`
	RatePerMinute int           `yaml:"rate_per_minute" env:"REMINDERS_SYNC_RATE_PER_MINUTE"`
}

type Server struct {
	Port              int  `yaml:"port" env:"REMINDERS_PORT"`
	PrometheusEnabled bool `yaml:"prometheus_enabled" env:"REMINDERS_PROMETHEUS_ENABLED"`
}

type Log struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"LOG_PRETTY"`
}

type Config struct {
	Clock         Clock         `yaml:"clock"`
	Scheduler     Scheduler     `yaml:"scheduler"`
	Storage       Storage       `yaml:"storage"`
	Audio         Audio         `yaml:"audio"`
	Notifications Notifications `yaml:"notifications"`
	Toast         Toast         `yaml:"toast"`
	Sync          Sync          `yaml:"sync"`
	Server        Server        `yaml:"server"`
	Log           Log           `yaml:"log"`
}

// Default returns the configuration used for keys absent from the file.
func Default() Config {
	return Config{
		Clock: Clock{UTCOffsetHours: 6},
		Scheduler: Scheduler{
			PollInterval:  30 * time.Second,
			WindowMinutes: 3,
			MidnightReset: true,
		},
		Storage: Storage{
			Driver:     DriverSQLite,
			SQLitePath: "data/reminders.db",
			Namespace:  "default",
		},
		Audio:  Audio{Enabled: true},
		Toast:  Toast{Duration: 30 * time.Second},
		Sync:   Sync{Timeout: 10 * time.Second, RatePerMinute: 30},
		Server: Server{Port: 8080, PrometheusEnabled: true},
		Log:    Log{Level: "info"},
	}
}

// Load reads the YAML file at path, then applies environment overrides.
// An optional .env file next to the working directory is loaded first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	cfg := Default()
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err = env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	cfg.backfill()

	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Driver == DriverSQLite || cfg.Storage.Driver == DriverFailover {
		if err = os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o755); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

func (c *Config) backfill() {
	d := Default()
	if c.Scheduler.PollInterval <= 0 {
		c.Scheduler.PollInterval = d.Scheduler.PollInterval
	}
	if c.Scheduler.WindowMinutes <= 0 {
		c.Scheduler.WindowMinutes = d.Scheduler.WindowMinutes
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = d.Storage.Driver
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = d.Storage.SQLitePath
	}
	if c.Storage.Namespace == "" {
		c.Storage.Namespace = d.Storage.Namespace
	}
	if c.Toast.Duration <= 0 {
		c.Toast.Duration = d.Toast.Duration
	}
	if c.Sync.Timeout <= 0 {
		c.Sync.Timeout = d.Sync.Timeout
	}
	if c.Server.Port <= 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

// Validate checks constraints the scheduler relies on.
func (c *Config) Validate() error {
	if c.Scheduler.PollInterval >= c.Window() {
		return fmt.Errorf("%w: %s >= %s", ErrPollTooSlow, c.Scheduler.PollInterval, c.Window())
	}
	switch c.Storage.Driver {
	case DriverSQLite, DriverRedis, DriverFailover, DriverMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Storage.Driver)
	}
	if (c.Storage.Driver == DriverRedis || c.Storage.Driver == DriverFailover) && c.Storage.Redis.Address == "" {
		return errors.New("storage.redis.address is required for the redis and failover drivers")
	}
	return nil
}

// Window is the reminder window as a duration.
func (c *Config) Window() time.Duration {
	return time.Duration(c.Scheduler.WindowMinutes) * time.Minute
}

// TelegramEnabled reports whether system notifications are configured.
func (c *Config) TelegramEnabled() bool {
	return c.Notifications.Telegram.BotToken != "" && c.Notifications.Telegram.ChatID != 0
}

// SyncEnabled reports whether remote reminder-log sync is configured.
func (c *Config) SyncEnabled() bool {
	return c.Sync.Endpoint != ""
}
