package middleware

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/shopspring/decimal"

	"github.com/shrek82/projectdb/conn"
)

func init() {
	gob.Register(time.Time{})
	gob.Register(decimal.Decimal{})
}

type cacheKey struct{}

const (
	// Forever caches without expiry.
	Forever time.Duration = -1
	// UseDefault caches with the middleware's default TTL.
	UseDefault time.Duration = -2
)

// WithCacheTTL enables caching of the query run with ctx. A zero ttl disables it.
func WithCacheTTL(ctx context.Context, ttl time.Duration) context.Context {
	return context.WithValue(ctx, cacheKey{}, ttl)
}

func cacheTTL(ctx context.Context) (time.Duration, bool) {
	ttl, ok := ctx.Value(cacheKey{}).(time.Duration)
	if !ok || ttl == 0 {
		return 0, false
	}
	return ttl, true
}

// CacheKey is the key under which the result of sql is stored.
func CacheKey(sql string) string {
	return fmt.Sprintf("projectdb:cache:%016x", xxhash.Sum64String(sql))
}

// rowRecorder gob-encodes rows as they stream past.
type rowRecorder struct {
	buf bytes.Buffer
	enc *gob.Encoder
	err error
}

func newRowRecorder() *rowRecorder {
	r := &rowRecorder{}
	r.enc = gob.NewEncoder(&r.buf)
	return r
}

func (r *rowRecorder) wrap(next conn.RowHandler) conn.RowHandler {
	return func(row conn.Row) error {
		if r.err == nil {
			r.err = r.enc.Encode(row)
		}
		return next(row)
	}
}

func (r *rowRecorder) bytes() ([]byte, error) {
	return r.buf.Bytes(), r.err
}

// replayRows decodes recorded rows into onRow.
func replayRows(sql string, data []byte, onRow conn.RowHandler) (int64, error) {
	dec := gob.NewDecoder(bytes.NewReader(data))
	var n int64
	for {
		var row conn.Row
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, fmt.Errorf("decode cached rows: %w", err)
		}
		n++
		if err := onRow(row); err != nil {
			return n, &conn.QueryError{SQL: sql, Rows: n, Err: err}
		}
	}
}

// cacheStore is implemented by the memory and redis caches.
type cacheStore interface {
	load(ctx context.Context, key string) ([]byte, bool)
	store(ctx context.Context, key string, data []byte, ttl time.Duration)
}

func processCached(ctx context.Context, s cacheStore, ttl time.Duration, req *conn.Request, next conn.QueryFunc) (int64, error) {
	key := CacheKey(req.SQL)
	if data, ok := s.load(ctx, key); ok {
		n, err := replayRows(req.SQL, data, req.OnRow)
		if err == nil || n > 0 || errors.Is(err, conn.ErrQueryFailed) {
			return n, err
		}
		// undecodable entry, nothing delivered yet: ask the database
	}

	rec := newRowRecorder()
	onRow := req.OnRow
	req.OnRow = rec.wrap(onRow)
	n, err := next(ctx, req)
	req.OnRow = onRow
	if err != nil {
		return n, err
	}
	if data, encErr := rec.bytes(); encErr == nil {
		s.store(ctx, key, data, ttl)
	}
	return n, nil
}
