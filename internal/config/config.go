package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"giftwrap/internal/slots"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Timezone string `yaml:"timezone"`
	} `yaml:"app"`

	Shop struct {
		Name    string `yaml:"name"`
		Address string `yaml:"address"`
		Phone   string `yaml:"phone"`
	} `yaml:"shop"`

	Scheduling struct {
		WindowStart          string `yaml:"window_start"`
		WindowEnd            string `yaml:"window_end"`
		StepMinutes          int    `yaml:"step_minutes"`
		ClosingBufferMinutes *int   `yaml:"closing_buffer_minutes"`
		MinutesPerItem       int    `yaml:"minutes_per_item"`
	} `yaml:"scheduling"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
		LockTTLSeconds  int    `yaml:"lock_ttl_seconds"`
	} `yaml:"redis"`

	API struct {
		Enabled        bool     `yaml:"enabled"`
		Port           int      `yaml:"port"`
		APIKey         string   `yaml:"api_key"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"api"`

	GRPC struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"grpc"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Telegram struct {
		BotToken    string `yaml:"bot_token"`
		AdminChatID int64  `yaml:"admin_chat_id"`
		Debug       bool   `yaml:"debug"`
	} `yaml:"telegram"`

	Notifications struct {
		Workers       int     `yaml:"workers"`
		QueueSize     int     `yaml:"queue_size"`
		RatePerSecond float64 `yaml:"rate_per_second"`
		Burst         int     `yaml:"burst"`
	} `yaml:"notifications"`

	Kafka struct {
		Enabled bool   `yaml:"enabled"`
		Brokers string `yaml:"brokers"`
		Topic   string `yaml:"topic"`
	} `yaml:"kafka"`

	Google struct {
		Enabled         bool   `yaml:"enabled"`
		CredentialsFile string `yaml:"credentials_file"`
		SpreadsheetID   string `yaml:"spreadsheet_id"`
		SheetName       string `yaml:"sheet_name"`
	} `yaml:"google"`

	Reminders struct {
		Enabled bool `yaml:"enabled"`
		Hour    int  `yaml:"hour"`
	} `yaml:"reminders"`

	Reports struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"reports"`

	Catalog struct {
		Path         string `yaml:"path"`
		WatchSeconds int    `yaml:"watch_seconds"`
	} `yaml:"catalog"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/giftwrap.db"
	}
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = "configs/catalog.yaml"
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "giftwrap.bookings"
	}
	if cfg.Reports.Path == "" {
		cfg.Reports.Path = "data/reports"
	}
	if cfg.Google.SheetName == "" {
		cfg.Google.SheetName = "Bookings"
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	if _, err := cfg.Window(); err != nil {
		return nil, err
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Window is the slot grid used for weekdays without a template entry.
func (c *Config) Window() (slots.Window, error) {
	if c.Scheduling.WindowStart == "" && c.Scheduling.WindowEnd == "" {
		return slots.DefaultWindow(), nil
	}
	step := c.Scheduling.StepMinutes
	if step <= 0 {
		step = 60
	}
	w, err := slots.NewWindow(c.Scheduling.WindowStart, c.Scheduling.WindowEnd, step)
	if err != nil {
		return slots.Window{}, fmt.Errorf("scheduling: %w", err)
	}
	return w, nil
}

func (c *Config) ClosingBufferMinutes() int {
	if c.Scheduling.ClosingBufferMinutes == nil || *c.Scheduling.ClosingBufferMinutes < 0 {
		return slots.DefaultClosingBufferMinutes
	}
	return *c.Scheduling.ClosingBufferMinutes
}

func (c *Config) MinutesPerItem() int {
	if c.Scheduling.MinutesPerItem <= 0 {
		return slots.DefaultMinutesPerItem
	}
	return c.Scheduling.MinutesPerItem
}

func (c *Config) Location() (*time.Location, error) {
	if strings.TrimSpace(c.App.Timezone) == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("app.timezone: %w", err)
	}
	return loc, nil
}

func (c *Config) CacheTTL() time.Duration {
	if c.Redis.CacheTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}

func (c *Config) LockTTL() time.Duration {
	if c.Redis.LockTTLSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Redis.LockTTLSeconds) * time.Second
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

func (c *Config) CatalogWatchInterval() time.Duration {
	if c.Catalog.WatchSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Catalog.WatchSeconds) * time.Second
}
