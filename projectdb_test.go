package projectdb

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrek82/projectdb/bindings"
	"github.com/shrek82/projectdb/conn"
	"github.com/shrek82/projectdb/hooks"
)

func testConfig(t *testing.T, yaml string) *Config {
	t.Helper()
	t.Setenv("PROJECTDB_DSN", "")
	t.Setenv("PROJECTDB_DIALECT", "")
	t.Setenv("PROJECTDB_LOG_LEVEL", "")
	cfg, err := ParseConfig([]byte(yaml))
	require.NoError(t, err)
	return cfg
}

func middlewareNames(mws []conn.Middleware) []string {
	names := make([]string, len(mws))
	for i, m := range mws {
		names[i] = m.Name()
	}
	return names
}

func TestMiddlewares(t *testing.T) {
	cfg := testConfig(t, "database:\n  dsn: x\n")
	mws, cached := Middlewares(cfg)
	assert.False(t, cached)
	assert.Equal(t, []string{"Tracing"}, middlewareNames(mws))

	cfg.Database.SlowThreshold = time.Second
	cfg.Database.BreakerThreshold = 5
	cfg.Cache.Driver = "memory"
	mws, cached = Middlewares(cfg)
	assert.True(t, cached)
	assert.Equal(t, []string{"Tracing", "SlowLog", "MemoryCache", "CircuitBreaker"}, middlewareNames(mws))

	cfg.Cache.Driver = "redis"
	cfg.Cache.RedisAddr = "localhost:6379"
	mws, cached = Middlewares(cfg)
	assert.True(t, cached)
	assert.Equal(t, "RedisCache", mws[2].Name())
	for _, m := range mws {
		_ = m.Shutdown()
	}
}

func TestOpen(t *testing.T) {
	cfg := testConfig(t, `
database:
  dialect: sqlserver
  params:
    server: db01
    database: projects
log:
  level: silent
`)
	client, err := Open(cfg)
	require.NoError(t, err)
	defer client.Close()

	assert.True(t, client.Registry.Frozen())
	assert.Equal(t, conn.StateUnopened, client.Manager.State(), "connects lazily")
	assert.Equal(t, 500, client.Bindings.Config().MaxSelect)

	sql, err := client.Bindings.ProjectsSQL(bindings.GetProjectsArgs{Single: true})
	require.NoError(t, err)
	assert.Contains(t, sql, "SELECT TOP 1")
}

func TestOpen_WithExtensions(t *testing.T) {
	cfg := testConfig(t, "database:\n  dsn: x\nlog:\n  level: silent\n")
	client, err := Open(cfg, WithExtensions(func(b *bindings.Bindings) {
		b.ProjectNumber.Add(func(v string, _ hooks.None) (string, error) {
			return v + "!", nil
		})
	}))
	require.NoError(t, err)
	defer client.Close()

	// trimmed by the default first
	got, err := client.Bindings.ProjectNumber.Apply("  p-100 ", hooks.None{})
	require.NoError(t, err)
	assert.Equal(t, "p-100!", got)
	assert.Equal(t, 2, client.Registry.Len(bindings.HookProjectNumber))
}

func TestOpen_BadOverride(t *testing.T) {
	cfg := testConfig(t, "database:\n  dsn: x\nlog:\n  level: silent\n")
	cfg.Hooks.Overrides = append(cfg.Hooks.Overrides, bindings.Override{Hook: "no_such_hook", Expr: "value"})
	_, err := Open(cfg)
	assert.Error(t, err)
}

func TestLocations(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"2023", "2024"} {
		require.NoError(t, os.Mkdir(filepath.Join(root, d), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "2025"), nil, 0o600))

	missing := filepath.Join(root, "archive")
	got := Locations([]string{filepath.Join(root, "20*"), missing})()
	assert.Equal(t, []string{filepath.Join(root, "2023"), filepath.Join(root, "2024"), missing}, got)
}
