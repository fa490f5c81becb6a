package transport

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shrek82/projectdb/dialect"
)

// OpenFunc opens a database handle; sql.Open by default.
type OpenFunc func(driverName, dsn string) (*sql.DB, error)

// SQL is a Transport over database/sql. Every session owns a private *sql.DB
// limited to one connection, from which it pins a *sql.Conn, so a session maps
// to exactly one physical connection.
type SQL struct {
	dialect   dialect.Dialect
	dsn       string
	open      OpenFunc
	byName    bool
	keepAlive time.Duration
}

// SQLOption configures the SQL transport.
type SQLOption func(*SQL)

// WithOpener replaces sql.Open.
func WithOpener(open OpenFunc) SQLOption {
	return func(t *SQL) { t.open = open }
}

// WithKeepAlive pings idle sessions every d; failures are reported to the
// session observer. Zero disables it.
func WithKeepAlive(d time.Duration) SQLOption {
	return func(t *SQL) { t.keepAlive = d }
}

// WithColumnNames keys rows by column name when byName is set, and by column
// ordinal ("0", "1", ...) otherwise. Rows are keyed by name by default.
func WithColumnNames(byName bool) SQLOption {
	return func(t *SQL) { t.byName = byName }
}

// NewSQL creates a transport for the dialect and connection string.
func NewSQL(d dialect.Dialect, dsn string, opts ...SQLOption) *SQL {
	t := &SQL{
		dialect: d,
		dsn:     dsn,
		open:    sql.Open,
		byName:  true,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Connect opens the database, pins a connection and pings it.
func (t *SQL) Connect(ctx context.Context, obs Observer) (Session, error) {
	db, err := t.open(t.dialect.Driver(), t.dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("conn: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	base, cancel := context.WithCancel(context.Background())
	s := &sqlSession{
		transport: t,
		db:        db,
		conn:      conn,
		obs:       obs,
		base:      base,
		stop:      cancel,
	}
	if t.keepAlive > 0 {
		s.wg.Add(1)
		go s.keepAliveLoop(t.keepAlive)
	}
	return s, nil
}

type sqlSession struct {
	transport *SQL
	db        *sql.DB
	conn      *sql.Conn
	obs       Observer

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu       sync.Mutex
	inflight context.CancelFunc
	busy     bool
	gone     bool

	closeOnce sync.Once
	closeErr  error
}

func (s *sqlSession) Query(ctx context.Context, text string, onRow RowFunc) (int64, error) {
	qctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopOnCancel := context.AfterFunc(s.base, cancel)
	defer stopOnCancel()

	s.mu.Lock()
	s.inflight = cancel
	s.busy = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inflight = nil
		s.busy = false
		s.mu.Unlock()
	}()

	rows, err := s.conn.QueryContext(qctx, text)
	if err != nil {
		s.inspect(err)
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	cts, err := rows.ColumnTypes()
	if err != nil {
		return 0, fmt.Errorf("columns: %w", err)
	}
	cols := newColumns(cts, s.transport.byName)
	values := make([]any, len(cts))
	ptrs := make([]any, len(cts))
	for i := range values {
		ptrs[i] = &values[i]
	}

	var count int64
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return count, fmt.Errorf("scan: %w", err)
		}
		row, err := cols.row(values)
		if err != nil {
			return count, err
		}
		count++
		if err := onRow(row); err != nil {
			return count, err
		}
	}
	if err := rows.Err(); err != nil {
		s.inspect(err)
		return count, err
	}
	return count, nil
}

// inspect reports statement errors that took the connection down.
func (s *sqlSession) inspect(err error) {
	if s.base.Err() != nil || !s.transport.dialect.ConnLost(err) {
		return
	}
	s.mu.Lock()
	first := !s.gone
	s.gone = true
	s.mu.Unlock()
	if first {
		s.obs.Ended()
	}
}

func (s *sqlSession) keepAliveLoop(every time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.base.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			skip := s.busy || s.gone
			s.mu.Unlock()
			if skip {
				continue
			}
			ctx, cancel := context.WithTimeout(s.base, every)
			err := s.conn.PingContext(ctx)
			cancel()
			if err == nil || s.base.Err() != nil {
				continue
			}
			s.mu.Lock()
			s.gone = true
			s.mu.Unlock()
			if s.transport.dialect.ConnLost(err) || errors.Is(err, context.DeadlineExceeded) {
				s.obs.Ended()
			} else {
				s.obs.Failed(err)
			}
			return
		}
	}
}

func (s *sqlSession) Cancel() {
	s.mu.Lock()
	cancel := s.inflight
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.stop()
}

func (s *sqlSession) Close() error {
	s.closeOnce.Do(func() {
		s.stop()
		s.wg.Wait()
		err := s.conn.Close()
		if dbErr := s.db.Close(); err == nil {
			err = dbErr
		}
		s.closeErr = err
	})
	return s.closeErr
}
