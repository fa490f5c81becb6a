package middleware

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shrek82/projectdb/conn"
	"github.com/shrek82/projectdb/logger"
)

func openSQLite(t *testing.T, mws ...conn.Middleware) *conn.Manager {
	t.Helper()
	m, err := conn.New(conn.Config{Dialect: "sqlite3", DSN: ":memory:"}, conn.WithLogger(logger.NewNopLogger()))
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	if err := m.Use(mws...); err != nil {
		t.Fatalf("failed to use middleware: %v", err)
	}
	return m
}

func mustExec(t *testing.T, m *conn.Manager, sql string) {
	t.Helper()
	if _, err := m.ExecuteQuery(context.Background(), sql, nil); err != nil {
		t.Fatalf("%s: %v", sql, err)
	}
}

func names(t *testing.T, m *conn.Manager, ctx context.Context) []string {
	t.Helper()
	var out []string
	_, err := m.ExecuteQuery(ctx, "SELECT name FROM users ORDER BY id", func(r conn.Row) error {
		out = append(out, r["name"].(string))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestSlowLog(t *testing.T) {
	buf := new(bytes.Buffer)
	slowLog := NewSlowLog(0, "") // Threshold 0 to log everything
	slowLog.SetOutput(buf)
	m := openSQLite(t, NewTracing(), slowLog)

	mustExec(t, m, "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)")
	if _, err := m.ExecuteQuery(WithRequestID(context.Background(), "req-7"), "SELECT count(*) FROM users", nil); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.Contains(out, "slow sql") || !strings.Contains(out, "SELECT count(*) FROM users") {
		t.Errorf("SlowLog should have logged query, got %q", out)
	}
	if !strings.Contains(out, "request_id:req-7") {
		t.Errorf("expected tracing field in slow log, got %q", out)
	}
	if !strings.Contains(out, "first_row=") {
		t.Errorf("expected first row latency, got %q", out)
	}
	if slowLog.Count() != 2 {
		t.Errorf("expected 2 slow statements, got %d", slowLog.Count())
	}
}

func TestMemoryCache(t *testing.T) {
	cache := NewMemoryCache(10 * time.Second)
	m := openSQLite(t, cache)

	mustExec(t, m, "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)")
	mustExec(t, m, "INSERT INTO users (name) VALUES ('Alice')")

	cached := WithCacheTTL(context.Background(), UseDefault)
	if got := names(t, m, cached); len(got) != 1 {
		t.Fatalf("expected 1 row, got %v", got)
	}
	if cache.Len() != 1 {
		t.Fatalf("expected 1 cache entry, got %d", cache.Len())
	}

	mustExec(t, m, "INSERT INTO users (name) VALUES ('Bob')")

	// Hit: rows replayed from the cache
	if got := names(t, m, cached); len(got) != 1 || got[0] != "Alice" {
		t.Errorf("expected cached [Alice], got %v", got)
	}
	// No TTL in context: straight to the database
	if got := names(t, m, context.Background()); len(got) != 2 {
		t.Errorf("expected 2 rows, got %v", got)
	}
	if got := names(t, m, WithCacheTTL(context.Background(), 0)); len(got) != 2 {
		t.Errorf("expected 2 rows with caching disabled, got %v", got)
	}
	if cache.Hits() != 1 || cache.Misses() != 1 {
		t.Errorf("expected 1 hit and 1 miss, got %d/%d", cache.Hits(), cache.Misses())
	}
}

func TestMemoryCacheEviction(t *testing.T) {
	cache := NewMemoryCache()
	cache.MaxEntries = 2
	ctx := context.Background()
	cache.store(ctx, "forever", []byte("a"), Forever)
	cache.store(ctx, "soon", []byte("b"), time.Minute)
	cache.store(ctx, "later", []byte("c"), time.Hour)

	if cache.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", cache.Len())
	}
	if _, ok := cache.load(ctx, "soon"); ok {
		t.Error("entry closest to expiry should be evicted")
	}
	for _, k := range []string{"forever", "later"} {
		if _, ok := cache.load(ctx, k); !ok {
			t.Errorf("%s should be kept", k)
		}
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	cache := NewMemoryCache()
	key := CacheKey("SELECT 1")
	cache.store(context.Background(), key, []byte("x"), time.Nanosecond)
	time.Sleep(time.Millisecond)
	if _, ok := cache.load(context.Background(), key); ok {
		t.Error("expired entry should not be returned")
	}
	cache.store(context.Background(), key, []byte("x"), Forever)
	if _, ok := cache.load(context.Background(), key); !ok {
		t.Error("entry without expiry should be returned")
	}
}

func TestReplayRows(t *testing.T) {
	rec := newRowRecorder()
	sink := rec.wrap(func(conn.Row) error { return nil })
	rows := []conn.Row{
		{"id": int64(1), "price": decimal.RequireFromString("12.50"), "start": time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), "note": nil},
		{"id": int64(2), "price": decimal.Zero, "start": time.Time{}, "note": "x"},
	}
	for _, r := range rows {
		if err := sink(r); err != nil {
			t.Fatal(err)
		}
	}
	data, err := rec.bytes()
	if err != nil {
		t.Fatal(err)
	}

	var got []conn.Row
	n, err := replayRows("q", data, func(r conn.Row) error {
		got = append(got, r)
		return nil
	})
	if err != nil || n != 2 {
		t.Fatalf("replay: n=%d err=%v", n, err)
	}
	if !got[0]["price"].(decimal.Decimal).Equal(rows[0]["price"].(decimal.Decimal)) {
		t.Errorf("price mismatch: %v", got[0]["price"])
	}
	if !got[0]["start"].(time.Time).Equal(rows[0]["start"].(time.Time)) {
		t.Errorf("start mismatch: %v", got[0]["start"])
	}
	if got[0]["note"] != nil || got[1]["note"] != "x" {
		t.Errorf("note mismatch: %v, %v", got[0]["note"], got[1]["note"])
	}

	stop := errors.New("stop")
	calls := 0
	n, err = replayRows("q", data, func(conn.Row) error {
		calls++
		if calls == 2 {
			return stop
		}
		return nil
	})
	// the failing row is counted, as on the database path
	if n != 2 || !errors.Is(err, stop) || !errors.Is(err, conn.ErrQueryFailed) {
		t.Errorf("expected handler error wrapped as query error, got n=%d err=%v", n, err)
	}
	var qe *conn.QueryError
	if !errors.As(err, &qe) || qe.Rows != 2 {
		t.Errorf("query error rows: %v", err)
	}
}

func TestCacheKey(t *testing.T) {
	a, b := CacheKey("SELECT 1"), CacheKey("SELECT 2")
	if a == b {
		t.Error("different statements should not share a key")
	}
	if !strings.HasPrefix(a, "projectdb:cache:") || len(a) != len("projectdb:cache:")+16 {
		t.Errorf("unexpected key %q", a)
	}
}

func TestCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker(2, 20*time.Millisecond)
	connErr := &conn.ConnectionError{Target: "sqlserver", Err: errors.New("refused")}
	calls := 0
	failing := func(context.Context, *conn.Request) (int64, error) {
		calls++
		return 0, connErr
	}
	ok := func(context.Context, *conn.Request) (int64, error) {
		calls++
		return 3, nil
	}
	req := &conn.Request{SQL: "SELECT 1"}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := cb.Process(ctx, req, failing); !errors.Is(err, conn.ErrConnectionFailed) {
			t.Fatalf("expected connection error, got %v", err)
		}
	}
	if cb.State() != BreakerOpen {
		t.Fatalf("expected open circuit, got %v", cb.State())
	}
	if _, err := cb.Process(ctx, req, ok); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if calls != 2 {
		t.Errorf("open circuit must not call through, calls=%d", calls)
	}

	time.Sleep(30 * time.Millisecond)
	n, err := cb.Process(ctx, req, ok)
	if err != nil || n != 3 {
		t.Fatalf("half-open probe should pass, n=%d err=%v", n, err)
	}
	if cb.State() != BreakerClosed {
		t.Errorf("expected closed circuit after probe, got %v", cb.State())
	}
}

func TestCircuitBreakerFailedProbeReopens(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)
	failing := func(context.Context, *conn.Request) (int64, error) {
		return 0, &conn.ConnectionError{Target: "sqlserver", Err: errors.New("refused")}
	}
	req := &conn.Request{SQL: "SELECT 1"}
	cb.Process(context.Background(), req, failing)

	_, err := cb.Process(context.Background(), req, failing)
	var open *OpenError
	if !errors.As(err, &open) || open.RetryIn <= 0 {
		t.Fatalf("expected OpenError with a retry delay, got %v", err)
	}

	time.Sleep(15 * time.Millisecond)
	if _, err := cb.Process(context.Background(), req, failing); !errors.Is(err, conn.ErrConnectionFailed) {
		t.Fatalf("probe should reach the manager, got %v", err)
	}
	if cb.State() != BreakerOpen {
		t.Errorf("failed probe should reopen, got %v", cb.State())
	}
}

func TestCircuitBreakerIgnoresQueryErrors(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	queryErr := &conn.QueryError{SQL: "SELEC", Err: errors.New("syntax")}
	next := func(context.Context, *conn.Request) (int64, error) { return 0, queryErr }
	for i := 0; i < 3; i++ {
		cb.Process(context.Background(), &conn.Request{}, next)
	}
	if cb.State() != BreakerClosed {
		t.Errorf("query errors should not open the circuit, got %v", cb.State())
	}
}

func TestTracing(t *testing.T) {
	ctx := WithTraceID(WithUserIP(WithRequestID(context.Background(), "r1"), "10.0.0.5"), "t1")
	req := &conn.Request{SQL: "SELECT 1"}
	_, err := NewTracing().Process(ctx, req, func(context.Context, *conn.Request) (int64, error) { return 0, nil })
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"request_id": "r1", "user_ip": "10.0.0.5", "trace_id": "t1"}
	for k, v := range want {
		if req.Fields[k] != v {
			t.Errorf("field %s = %v, want %v", k, req.Fields[k], v)
		}
	}
}
