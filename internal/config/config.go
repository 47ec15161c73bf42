package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		Debug    bool   `yaml:"debug"`
		// AllowedUserIDs restricts the bot to these Telegram accounts.
		// Empty means open to anyone who finds the bot.
		AllowedUserIDs []int64 `yaml:"allowed_user_ids"`
	} `yaml:"telegram"`

	API struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"api"`

	Payment struct {
		Enabled     bool   `yaml:"enabled"`
		BaseURL     string `yaml:"base_url"`
		SecretKey   string `yaml:"secret_key"`
		Currency    string `yaml:"currency"`
		AmountMinor int64  `yaml:"amount_minor"`
	} `yaml:"payment"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Database struct {
		StatePath string `yaml:"state_path"`
		AuditPath string `yaml:"audit_path"`
	} `yaml:"database"`

	Session struct {
		// Optional seed for environments where login happens out of band.
		AuthToken string `yaml:"auth_token"`
		UserID    string `yaml:"user_id"`
		UserName  string `yaml:"user_name"`
	} `yaml:"session"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Booking struct {
		DayStartHour int `yaml:"day_start_hour"`
		DayEndHour   int `yaml:"day_end_hour"`
	} `yaml:"booking"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		Dir           string `yaml:"dir"`
		IntervalHours int    `yaml:"interval_hours"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`
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

	if cfg.Database.StatePath == "" {
		cfg.Database.StatePath = "data/klemz_state.db"
	}
	if cfg.Database.AuditPath == "" {
		cfg.Database.AuditPath = "data/klemz_audit.db"
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "GHS"
	}
	if cfg.Booking.DayStartHour <= 0 {
		cfg.Booking.DayStartHour = 9
	}
	if cfg.Booking.DayEndHour <= 0 || cfg.Booking.DayEndHour <= cfg.Booking.DayStartHour {
		cfg.Booking.DayEndHour = 19
	}
	if cfg.Backup.Dir == "" {
		cfg.Backup.Dir = "data/backups"
	}
	if cfg.Backup.IntervalHours <= 0 {
		cfg.Backup.IntervalHours = 24
	}
	if cfg.Backup.RetentionDays <= 0 {
		cfg.Backup.RetentionDays = 7
	}

	for _, p := range []string{cfg.Database.StatePath, cfg.Database.AuditPath} {
		if err = os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// BookingDay returns the bookable window for the given day.
func (c *Config) BookingDay(day time.Time) (time.Time, time.Time) {
	y, m, d := day.Date()
	start := time.Date(y, m, d, c.Booking.DayStartHour, 0, 0, 0, day.Location())
	end := time.Date(y, m, d, c.Booking.DayEndHour, 0, 0, 0, day.Location())
	return start, end
}
