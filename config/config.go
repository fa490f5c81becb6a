// Package config loads the projectdb YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shrek82/projectdb/bindings"
	"github.com/shrek82/projectdb/conn"
	"github.com/shrek82/projectdb/dialect"
	"github.com/shrek82/projectdb/logger"
	"github.com/shrek82/projectdb/validator"
)

// Environment variables that override the file.
const (
	EnvDSN      = "PROJECTDB_DSN"
	EnvDialect  = "PROJECTDB_DIALECT"
	EnvLogLevel = "PROJECTDB_LOG_LEVEL"
)

type Config struct {
	Database Database `yaml:"database"`
	Hooks    Hooks    `yaml:"hooks"`
	Cache    Cache    `yaml:"cache"`
	Log      Log      `yaml:"log"`
}

type Database struct {
	Dialect    string            `yaml:"dialect"`
	DSN        string            `yaml:"dsn"`
	Params     map[string]string `yaml:"params"`
	KeepAlive  time.Duration     `yaml:"keepalive"`
	BusyPolicy string            `yaml:"busy_policy"`
	MaxSelect  int               `yaml:"max_select"`
	// SlowThreshold enables the slow query log when positive.
	SlowThreshold time.Duration `yaml:"slow_threshold"`
	SlowLogPath   string        `yaml:"slow_log_path"`
	// BreakerThreshold enables the circuit breaker when positive.
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerReset     time.Duration `yaml:"breaker_reset"`
}

type Hooks struct {
	WhereProjects  string              `yaml:"where_projects"`
	PlanningSource string              `yaml:"planning_source"`
	CurrencySymbol string              `yaml:"currency_symbol"`
	Locale         string              `yaml:"locale"`
	Locations      []string            `yaml:"locations"`
	Overrides      []bindings.Override `yaml:"overrides"`
}

type Cache struct {
	// Driver is "", "memory" or "redis".
	Driver        string        `yaml:"driver"`
	TTL           time.Duration `yaml:"ttl"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used for absent keys.
func Default() Config {
	return Config{
		Database: Database{
			Dialect:      "sqlserver",
			BusyPolicy:   string(conn.BusyWait),
			MaxSelect:    500,
			BreakerReset: 30 * time.Second,
		},
		Hooks: Hooks{
			CurrencySymbol: "€",
			Locale:         "en",
		},
		Cache: Cache{TTL: 5 * time.Minute},
		Log:   Log{Level: "info", Format: string(logger.LogFormatText)},
	}
}

// Load reads path, applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("configuration %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults, applies environment overrides and validates.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvDialect); ok && v != "" {
		c.Database.Dialect = v
	}
	if v, ok := lookup(EnvDSN); ok && v != "" {
		c.Database.DSN = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
}

func (c *Config) rules() validator.Rules {
	dialects := make([]any, 0)
	for _, name := range dialect.Names() {
		dialects = append(dialects, name)
	}
	return validator.Rules{
		"Database.Dialect":    {validator.Required, validator.In(dialects...).Msg(fmt.Sprintf("unknown dialect %q", c.Database.Dialect))},
		"Database.BusyPolicy": {validator.In(string(conn.BusyWait), string(conn.BusyReject))},
		"Database.MaxSelect":  {validator.Range(1, 100000)},
		"Database.KeepAlive":  {validator.Range(0, float64(24*time.Hour))},
		"Cache.Driver":        {validator.In("", "memory", "redis")},
		"Cache.RedisAddr": {validator.Required.When(func(any) bool {
			return c.Cache.Driver == "redis"
		}).Msg("is required for the redis cache")},
		"Log.Level": {validator.Func(func(v any) error {
			_, err := logger.ParseLevel(v.(string))
			return err
		})},
		"Log.Format": {validator.In(string(logger.LogFormatText), string(logger.LogFormatJSON))},
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := c.rules().Validate(c); err != nil {
		return err
	}
	if c.Database.DSN == "" && len(c.Database.Params) == 0 {
		return errors.New("database: dsn or params is required")
	}
	return nil
}

// ConnConfig returns the connection manager configuration.
func (c *Config) ConnConfig() conn.Config {
	return conn.Config{
		Dialect: c.Database.Dialect,
		DSN:     c.Database.DSN,
		Params:  c.Database.Params,
		Options: conn.Options{
			KeepAlive:  c.Database.KeepAlive,
			BusyPolicy: conn.BusyPolicy(c.Database.BusyPolicy),
		},
	}
}

// BindingsConfig returns the hook bindings configuration.
func (c *Config) BindingsConfig() bindings.Config {
	return bindings.Config{
		MaxSelect:      c.Database.MaxSelect,
		WhereProjects:  c.Hooks.WhereProjects,
		PlanningSource: c.Hooks.PlanningSource,
		CurrencySymbol: c.Hooks.CurrencySymbol,
		Locale:         c.Hooks.Locale,
		Overrides:      c.Hooks.Overrides,
	}
}

// NewLogger builds the logger described by the log section.
func (c *Config) NewLogger() logger.Logger {
	l := logger.NewStdLogger()
	if level, err := logger.ParseLevel(c.Log.Level); err == nil {
		l.SetLevel(level)
	}
	l.SetFormat(logger.LogFormat(c.Log.Format))
	return l
}
