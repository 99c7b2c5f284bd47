// Package config loads the refresher configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App     AppConfig     `yaml:"app"`
	Logging LoggingConfig `yaml:"logging"`
	Feed    FeedConfig    `yaml:"feed"`
	Refresh RefreshConfig `yaml:"refresh"`
	Stores  StoresConfig  `yaml:"stores"`
	API     APIConfig     `yaml:"api"`
}

type AppConfig struct {
	// PricesKey identifies this deployment's price store; LP entries that
	// reference an external store are rejected against it.
	PricesKey       string        `yaml:"prices_key"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // json|console
}

type FeedConfig struct {
	RPCEndpoint string        `yaml:"rpc_endpoint"`
	WSEndpoint  string        `yaml:"ws_endpoint"`
	RPCTimeout  time.Duration `yaml:"rpc_timeout"`
	MaxRetries  int           `yaml:"max_retries"`
}

type RefreshConfig struct {
	// Interval between refresh rounds over all configured slots.
	Interval time.Duration `yaml:"interval"`
	// BudgetCeiling caps the summed per-kind budgets of one batch. Zero
	// means the default.
	BudgetCeiling uint32 `yaml:"budget_ceiling"`
	// BatchSize bounds how many slots one batch carries.
	BatchSize int `yaml:"batch_size"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type ClickHouseConfig struct {
	DSN string `yaml:"dsn"`
}

type StoresConfig struct {
	Postgres   PostgresConfig   `yaml:"postgres"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

type APIConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// Load reads and parses the configuration file, filling defaults for
// anything left unset.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Feed.RPCTimeout == 0 {
		c.Feed.RPCTimeout = 30 * time.Second
	}
	if c.Refresh.Interval == 0 {
		c.Refresh.Interval = 10 * time.Second
	}
	if c.Refresh.BatchSize == 0 {
		c.Refresh.BatchSize = 32
	}
	if c.API.Addr == "" {
		c.API.Addr = ":8080"
	}
	if c.API.ReadTimeout == 0 {
		c.API.ReadTimeout = 10 * time.Second
	}
	if c.API.WriteTimeout == 0 {
		c.API.WriteTimeout = 10 * time.Second
	}
	if c.API.IdleTimeout == 0 {
		c.API.IdleTimeout = 60 * time.Second
	}
	if c.App.ShutdownTimeout == 0 {
		c.App.ShutdownTimeout = 15 * time.Second
	}
}
