// Package projectdb wires the hook bindings and the connection manager of a
// projects database client from one configuration.
package projectdb

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/shrek82/projectdb/bindings"
	"github.com/shrek82/projectdb/config"
	"github.com/shrek82/projectdb/conn"
	"github.com/shrek82/projectdb/hooks"
	"github.com/shrek82/projectdb/logger"
	"github.com/shrek82/projectdb/middleware"
)

// Re-exported types
type (
	Config     = config.Config
	Manager    = conn.Manager
	Bindings   = bindings.Bindings
	Registry   = hooks.Registry
	Prompter   = bindings.Prompter
	MessageBox = bindings.MessageBox
	Row        = conn.Row
)

var (
	LoadConfig  = config.Load
	ParseConfig = config.Parse
)

// Client is a bound hook vocabulary and the manager of its database.
type Client struct {
	Logger   logger.Logger
	Registry *hooks.Registry
	Bindings *bindings.Bindings
	Manager  *conn.Manager
	// Cached is set when a cache middleware is installed.
	Cached bool
}

type options struct {
	prompter   bindings.Prompter
	extensions []func(*bindings.Bindings)
	conn       []conn.Option
}

// Option configures Open.
type Option func(*options)

// WithPrompter sets the prompter of create_project_folder.
func WithPrompter(p bindings.Prompter) Option {
	return func(o *options) { o.prompter = p }
}

// WithExtensions adds transformers that run after the defaults and the
// configured overrides. See bindings.WithExtensions.
func WithExtensions(fns ...func(*bindings.Bindings)) Option {
	return func(o *options) { o.extensions = append(o.extensions, fns...) }
}

// WithConnOptions passes options to conn.New.
func WithConnOptions(opts ...conn.Option) Option {
	return func(o *options) { o.conn = append(o.conn, opts...) }
}

// Open builds a Client from cfg. The database is connected on first use.
func Open(cfg *config.Config, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	log := cfg.NewLogger()

	reg := hooks.NewRegistry()
	reg.SetLogger(log)
	b, err := bindings.New(reg, cfg.BindingsConfig(),
		bindings.WithPrompter(o.prompter),
		bindings.WithLocations(Locations(cfg.Hooks.Locations)),
		bindings.WithLogger(log),
		bindings.WithExtensions(o.extensions...),
	)
	if err != nil {
		return nil, fmt.Errorf("bind hooks: %w", err)
	}

	mgr, err := conn.New(cfg.ConnConfig(), append([]conn.Option{conn.WithLogger(log)}, o.conn...)...)
	if err != nil {
		return nil, err
	}
	mws, cached := Middlewares(cfg)
	if err := mgr.Use(mws...); err != nil {
		_ = mgr.Close()
		return nil, fmt.Errorf("install middleware: %w", err)
	}
	return &Client{Logger: log, Registry: reg, Bindings: b, Manager: mgr, Cached: cached}, nil
}

// Middlewares returns the chain described by cfg, outermost first, and
// whether it caches.
func Middlewares(cfg *config.Config) ([]conn.Middleware, bool) {
	mws := []conn.Middleware{middleware.NewTracing()}
	if cfg.Database.SlowThreshold > 0 {
		mws = append(mws, middleware.NewSlowLog(cfg.Database.SlowThreshold, cfg.Database.SlowLogPath))
	}

	cached := true
	switch cfg.Cache.Driver {
	case "memory":
		mws = append(mws, middleware.NewMemoryCache(cfg.Cache.TTL))
	case "redis":
		rc := middleware.NewRedisCache(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if cfg.Cache.TTL > 0 {
			rc.DefaultTTL = cfg.Cache.TTL
		}
		mws = append(mws, rc)
	default:
		cached = false
	}

	// Innermost so cache hits never count against the breaker.
	if cfg.Database.BreakerThreshold > 0 {
		mws = append(mws, middleware.NewCircuitBreaker(cfg.Database.BreakerThreshold, cfg.Database.BreakerReset))
	}
	return mws, cached
}

// Locations expands glob patterns each time the list is needed so new
// location folders are picked up without a restart. A pattern without
// matches is kept as is.
func Locations(patterns []string) func() []string {
	return func() []string {
		var out []string
		for _, p := range patterns {
			matches, err := filepath.Glob(p)
			if err != nil || len(matches) == 0 {
				out = append(out, p)
				continue
			}
			for _, m := range matches {
				if fi, err := os.Stat(m); err == nil && fi.IsDir() {
					out = append(out, m)
				}
			}
		}
		return out
	}
}

// Close closes the manager and its middleware.
func (c *Client) Close() error {
	return c.Manager.Close()
}
