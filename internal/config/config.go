// Package config provides YAML-based configuration loading for boardcore.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration, loaded from boardcore.yaml.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Engine   EngineConfig   `yaml:"engine"`
	Cache    CacheConfig    `yaml:"cache"`
	HTTP     HTTPConfig     `yaml:"http"`
	Audit    AuditConfig    `yaml:"audit"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig selects the store backend and its transaction policy.
type DatabaseConfig struct {
	Driver     string        `yaml:"driver"` // sqlite or mysql
	Path       string        `yaml:"path"`
	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"`
	User       string        `yaml:"user"`
	Password   string        `yaml:"password"`
	Name       string        `yaml:"name"`
	TxTimeout  time.Duration `yaml:"tx_timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// EngineConfig bounds the dependency graph traversal.
type EngineConfig struct {
	MaxDependencyNodes int `yaml:"max_dependency_nodes"`
}

// CacheConfig configures the Redis read cache. An empty URL disables it.
type CacheConfig struct {
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// AuditConfig configures the invariant auditor schedule.
type AuditConfig struct {
	Schedule string `yaml:"schedule"`
}

// LogConfig configures logrus.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// CronParser accepts standard 5-field cron expressions.
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a validated configuration for a local SQLite store.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "boardcore.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Name == "" {
			c.Database.Name = "boardcore"
		}
	}
	if c.Database.TxTimeout == 0 {
		c.Database.TxTimeout = 5 * time.Second
	}
	if c.Database.MaxRetries == 0 {
		c.Database.MaxRetries = 3
	}
	if c.Engine.MaxDependencyNodes == 0 {
		c.Engine.MaxDependencyNodes = 10000
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 5 * time.Minute
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be sqlite or mysql", c.Database.Driver))
	}
	if c.Database.TxTimeout < 0 {
		errs = append(errs, "database.tx_timeout must be positive")
	}
	if c.Database.MaxRetries < 0 {
		errs = append(errs, "database.max_retries must not be negative")
	}
	if c.Engine.MaxDependencyNodes < 0 {
		errs = append(errs, "engine.max_dependency_nodes must not be negative")
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, "cache.ttl must not be negative")
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Sprintf("http.port %d out of range", c.HTTP.Port))
	}
	if c.Audit.Schedule != "" {
		if _, err := CronParser.Parse(c.Audit.Schedule); err != nil {
			errs = append(errs, fmt.Sprintf("audit.schedule %q: %v", c.Audit.Schedule, err))
		}
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q must be text or json", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
