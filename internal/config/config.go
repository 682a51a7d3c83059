package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
)

// Dialog state backends
const (
	StateMemory = "memory"
	StateRedis  = "redis"
)

// Config holds all application configuration
type Config struct {
	BotToken      string
	AdminPassword string
	Panel         PanelConfig
	Eligibility   []string
	PayoutChannel string
	Storage       StorageConfig
	Database      DatabaseConfig
	State         StateConfig
	Redis         RedisConfig
	Metrics       MetricsConfig
	Broadcast     BroadcastConfig
	Log           LogConfig
}

// PanelConfig holds SMM panel API settings
type PanelConfig struct {
	URL       string
	APIKey    string
	ServiceID string
	Timeout   time.Duration
}

// StorageConfig selects where snapshots live
type StorageConfig struct {
	Driver string
	Dir    string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
}

// StateConfig selects where dialog state lives
type StateConfig struct {
	Backend string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MetricsConfig holds the Prometheus endpoint address; empty disables it
type MetricsConfig struct {
	Addr string
}

// BroadcastConfig bounds broadcast fan-out
type BroadcastConfig struct {
	Concurrency int
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment, with .env as a fallback
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not exists)
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		BotToken:      v.GetString("bot.token"),
		AdminPassword: v.GetString("admin.password"),
		Panel: PanelConfig{
			URL:       v.GetString("panel.url"),
			APIKey:    v.GetString("panel.api_key"),
			ServiceID: v.GetString("panel.service_id"),
			Timeout:   v.GetDuration("panel.timeout"),
		},
		Eligibility:   splitList(v.GetString("eligibility.channels")),
		PayoutChannel: strings.TrimSpace(v.GetString("payout.channel")),
		Storage: StorageConfig{
			Driver: strings.ToLower(v.GetString("storage.driver")),
			Dir:    v.GetString("storage.dir"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("db.host"),
			Port:     v.GetString("db.port"),
			Name:     v.GetString("db.name"),
			User:     v.GetString("db.user"),
			Password: v.GetString("db.password"),
		},
		State: StateConfig{
			Backend: strings.ToLower(v.GetString("state.backend")),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Metrics: MetricsConfig{
			Addr: v.GetString("metrics.addr"),
		},
		Broadcast: BroadcastConfig{
			Concurrency: v.GetInt("broadcast.concurrency"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.token", "")
	v.SetDefault("admin.password", "")

	v.SetDefault("panel.url", "")
	v.SetDefault("panel.api_key", "")
	v.SetDefault("panel.service_id", "")
	v.SetDefault("panel.timeout", 10*time.Second)

	v.SetDefault("eligibility.channels", "")
	v.SetDefault("payout.channel", "")

	v.SetDefault("storage.driver", StorageFile)
	v.SetDefault("storage.dir", "data")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.name", "viewbot")
	v.SetDefault("db.user", "viewbot")
	v.SetDefault("db.password", "")

	v.SetDefault("state.backend", StateMemory)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("broadcast.concurrency", 8)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

func (c *Config) validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"BOT_TOKEN", c.BotToken},
		{"ADMIN_PASSWORD", c.AdminPassword},
		{"PANEL_URL", c.Panel.URL},
		{"PANEL_API_KEY", c.Panel.APIKey},
		{"PANEL_SERVICE_ID", c.Panel.ServiceID},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.key)
		}
	}

	switch c.Storage.Driver {
	case StorageFile:
	case StoragePostgres:
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}

	switch c.State.Backend {
	case StateMemory, StateRedis:
	default:
		return fmt.Errorf("unknown STATE_BACKEND %q", c.State.Backend)
	}

	return nil
}

// DSN returns PostgreSQL connection string
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
	)
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
