package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"Masjid Ledger"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"masjid"`
		Migrate  bool   `envconfig:"DB_MIGRATE" default:"true"`
	}

	Server struct {
		Timeout     time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
		CORSOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	}

	Log struct {
		Level string `envconfig:"LOG_LEVEL" default:"info"`
	}

	Ledger struct {
		// DefaultMonthlyDues in paisa, used when a member is registered without an explicit amount.
		DefaultMonthlyDues int64 `envconfig:"DEFAULT_MONTHLY_DUES" default:"20000"`
	}

	Scheduler struct {
		Enabled  bool          `envconfig:"SCHEDULER_ENABLED" default:"true"`
		Interval time.Duration `envconfig:"SCHEDULER_INTERVAL" default:"24h"`
		Timeout  time.Duration `envconfig:"SCHEDULER_TIMEOUT" default:"10m"`
	}

	Sync struct {
		OutboxPath string `envconfig:"OUTBOX_PATH" default:"./data/outbox.db"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
