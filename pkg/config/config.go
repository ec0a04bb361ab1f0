package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		MaxOpenConns     int           `yaml:"max_open_conns"`
		MaxIdleConns     int           `yaml:"max_idle_conns"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`
	Provider struct {
		BaseURL      string        `yaml:"base_url"`
		APIKey       string        `yaml:"api_key"`
		FetchTimeout time.Duration `yaml:"fetch_timeout"`
	} `yaml:"provider"`
	Collector struct {
		Interval    time.Duration `yaml:"interval"`
		Concurrency int           `yaml:"concurrency"`
		TailSize    int           `yaml:"tail_size"`
	} `yaml:"collector"`
	Aggregator struct {
		Interval       time.Duration `yaml:"interval"`
		ActivityWindow time.Duration `yaml:"activity_window"`
		FrameWindow    time.Duration `yaml:"frame_window"`
		RefreshWindow  time.Duration `yaml:"refresh_window"`
	} `yaml:"aggregator"`
	Export struct {
		Enabled bool     `yaml:"enabled"`
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"export"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("MATCHPULSE_CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("MATCHPULSE_CLICKHOUSE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.ClickHouse.Port = p
		}
	}
	if v := os.Getenv("MATCHPULSE_CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("MATCHPULSE_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("MATCHPULSE_PROVIDER_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv("MATCHPULSE_COLLECTOR_INTERVAL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Collector.Interval = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("MATCHPULSE_COLLECTOR_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Collector.Concurrency = n
		}
	}
	if v := os.Getenv("MATCHPULSE_AGGREGATOR_INTERVAL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Aggregator.Interval = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("MATCHPULSE_EXPORT_BROKERS"); v != "" {
		c.Export.Brokers = strings.Split(v, ",")
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.ClickHouse.Port == 0 {
		c.ClickHouse.Port = 9000
	}
	if c.ClickHouse.Database == "" {
		c.ClickHouse.Database = "matchpulse"
	}
	if c.ClickHouse.MaxOpenConns == 0 {
		c.ClickHouse.MaxOpenConns = 10
	}
	if c.ClickHouse.MaxIdleConns == 0 {
		c.ClickHouse.MaxIdleConns = 5
	}
	if c.Provider.FetchTimeout == 0 {
		c.Provider.FetchTimeout = 8 * time.Second
	}
	if c.Collector.Interval == 0 {
		c.Collector.Interval = 30 * time.Second
	}
	if c.Collector.Concurrency == 0 {
		c.Collector.Concurrency = 5
	}
	if c.Collector.TailSize == 0 {
		c.Collector.TailSize = 10
	}
	if c.Aggregator.Interval == 0 {
		c.Aggregator.Interval = 60 * time.Second
	}
	if c.Aggregator.ActivityWindow == 0 {
		c.Aggregator.ActivityWindow = 10 * time.Minute
	}
	if c.Aggregator.FrameWindow == 0 {
		c.Aggregator.FrameWindow = 2 * time.Minute
	}
	if c.Aggregator.RefreshWindow == 0 {
		c.Aggregator.RefreshWindow = 2 * time.Hour
	}
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider.base_url is required")
	}
	if c.Collector.Concurrency < 1 {
		return fmt.Errorf("collector.concurrency must be >= 1")
	}
	if c.Export.Enabled && len(c.Export.Brokers) == 0 {
		return fmt.Errorf("export.brokers required when export is enabled")
	}
	return nil
}
