// Package conn manages a single logical database connection per target: it
// dials lazily, notices when the handle went stale, replaces it transparently
// and streams query rows to the caller.
package conn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/shrek82/projectdb/dialect"
	"github.com/shrek82/projectdb/logger"
	"github.com/shrek82/projectdb/transport"
)

// Row maps column names to values.
type Row = transport.Row

// RowHandler is called once per row in arrival order.
type RowHandler = transport.RowFunc

// BusyPolicy decides what a query does while another one holds the connection.
type BusyPolicy string

const (
	// BusyWait blocks until the connection is free or the context ends.
	BusyWait BusyPolicy = "wait"
	// BusyReject fails immediately with ErrBusy.
	BusyReject BusyPolicy = "reject"
)

// Options defines the behaviour of the managed connection.
type Options struct {
	// UseColumnNames keys rows by column name. New always forces it on and
	// passes it to the database/sql transport.
	UseColumnNames bool
	// KeepAlive pings an idle connection at this interval; zero disables it.
	KeepAlive  time.Duration
	BusyPolicy BusyPolicy
}

// Config describes the target. It is copied by New and never changed afterwards.
type Config struct {
	Dialect string
	// DSN is used as is when set; otherwise it is built from Params by the dialect.
	DSN     string
	Params  map[string]string
	Options Options
}

// Stats counts manager activity.
type Stats struct {
	Connects int64
	Discards int64
	Queries  int64
}

// Option configures a Manager.
type Option func(*Manager)

// WithTransport replaces the database/sql transport, e.g. in tests.
func WithTransport(t transport.Transport) Option {
	return func(m *Manager) { m.transport = t }
}

// WithLogger sets the manager logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// Manager owns exactly one live handle at a time.
type Manager struct {
	cfg       Config
	target    string
	transport transport.Transport
	logger    logger.Logger
	slot      *semaphore.Weighted

	// mu serializes handle replacement, Use and Close.
	mu      sync.Mutex
	current atomic.Pointer[handle]
	nextID  uint64
	closed  atomic.Bool
	mws     []Middleware
	chain   atomic.Pointer[QueryFunc]

	connects atomic.Int64
	discards atomic.Int64
	queries  atomic.Int64
}

// New validates and normalizes cfg and returns an unopened manager.
func New(cfg Config, opts ...Option) (*Manager, error) {
	cfg = normalize(cfg)
	m := &Manager{
		cfg:    cfg,
		target: cfg.Dialect,
		logger: logger.NewStdLogger(),
		slot:   semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(m)
	}

	switch cfg.Options.BusyPolicy {
	case BusyWait, BusyReject:
	default:
		return nil, fmt.Errorf("unknown busy policy %q", cfg.Options.BusyPolicy)
	}

	if m.transport == nil {
		d, ok := dialect.Get(cfg.Dialect)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDialect, cfg.Dialect)
		}
		dsn := cfg.DSN
		if dsn == "" {
			var err error
			if dsn, err = d.DSN(cfg.Params); err != nil {
				return nil, err
			}
		}
		m.transport = transport.NewSQL(d, dsn,
			transport.WithKeepAlive(cfg.Options.KeepAlive),
			transport.WithColumnNames(cfg.Options.UseColumnNames),
		)
	}

	final := QueryFunc(m.execute)
	m.chain.Store(&final)
	return m, nil
}

// normalize copies cfg so the caller's maps are not shared, and applies the
// one time defaults.
func normalize(cfg Config) Config {
	if cfg.Params != nil {
		params := make(map[string]string, len(cfg.Params))
		for k, v := range cfg.Params {
			params[k] = v
		}
		cfg.Params = params
	}
	cfg.Options.UseColumnNames = true
	if cfg.Options.BusyPolicy == "" {
		cfg.Options.BusyPolicy = BusyWait
	}
	return cfg
}

// Config returns the normalized configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// State returns the state of the current handle.
func (m *Manager) State() State {
	if m.closed.Load() {
		return StateClosed
	}
	if h := m.current.Load(); h != nil {
		return h.State()
	}
	return StateUnopened
}

// Stats returns activity counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Connects: m.connects.Load(),
		Discards: m.discards.Load(),
		Queries:  m.queries.Load(),
	}
}

// Use appends middleware to the query chain and initializes it.
func (m *Manager) Use(mws ...Middleware) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mw := range mws {
		if err := mw.Init(m); err != nil {
			return fmt.Errorf("init %s: %w", mw.Name(), err)
		}
		m.mws = append(m.mws, mw)
	}
	chain := buildChain(m.execute, m.mws)
	m.chain.Store(&chain)
	return nil
}

// Open establishes the connection ahead of the first query.
func (m *Manager) Open(ctx context.Context) error {
	_, err := m.ensureConnected(ctx)
	return err
}

// ExecuteQuery runs text on the managed connection, calling onRow for every
// row, and returns the row count. text is sent as is.
func (m *Manager) ExecuteQuery(ctx context.Context, text string, onRow RowHandler) (int64, error) {
	if m.closed.Load() {
		return 0, ErrManagerClosed
	}
	if onRow == nil {
		onRow = func(Row) error { return nil }
	}
	chain := *m.chain.Load()
	return chain(ctx, &Request{SQL: text, OnRow: onRow})
}

func (m *Manager) execute(ctx context.Context, req *Request) (int64, error) {
	if err := m.acquire(ctx); err != nil {
		return 0, err
	}
	defer m.slot.Release(1)

	h, err := m.ensureConnected(ctx)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	n, err := h.sess.Query(ctx, req.SQL, req.OnRow)
	m.queries.Add(1)
	m.sqlLogger(req).SQL(req.SQL, time.Since(start))
	if err != nil {
		return n, &QueryError{SQL: req.SQL, Rows: n, Err: err}
	}
	return n, nil
}

func (m *Manager) acquire(ctx context.Context) error {
	if m.cfg.Options.BusyPolicy == BusyReject {
		if !m.slot.TryAcquire(1) {
			return ErrBusy
		}
		return nil
	}
	return m.slot.Acquire(ctx, 1)
}

// ensureConnected returns the open handle, replacing a stale one first.
func (m *Manager) ensureConnected(ctx context.Context) (*handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}

	if h := m.current.Load(); h != nil {
		if h.State() == StateOpen {
			return h, nil
		}
		m.discard(h)
	}

	m.nextID++
	h := newHandle(m.nextID, m.handleEvent)
	m.current.Store(h)
	m.connects.Add(1)

	sess, err := m.transport.Connect(ctx, h)
	if err != nil {
		h.setErr(err)
		h.transition(StateErrored, StateConnecting)
		m.logger.Error("connect %s (handle #%d): %v", m.target, h.id, err)
		return nil, &ConnectionError{Target: m.target, Err: err}
	}
	h.sess = sess
	if state, ok := h.transition(StateOpen, StateConnecting); !ok {
		err := h.lastErr()
		if err == nil {
			err = fmt.Errorf("connection %s while connecting", state)
		}
		if rerr := h.release(); rerr != nil {
			m.logger.Warn("release handle #%d: %v", h.id, rerr)
		}
		m.logger.Error("connect %s (handle #%d): %v", m.target, h.id, err)
		return nil, &ConnectionError{Target: m.target, Err: err}
	}
	m.logger.Info("connected to %s (handle #%d)", m.target, h.id)
	return h, nil
}

// discard must be called with mu held.
func (m *Manager) discard(h *handle) {
	m.discards.Add(1)
	m.logger.Warn("discarding %s handle #%d", h.State(), h.id)
	if err := h.release(); err != nil {
		m.logger.Warn("release handle #%d: %v", h.id, err)
	}
}

func (m *Manager) handleEvent(h *handle, from, to State, err error) {
	if err != nil {
		m.logger.Warn("handle #%d %s -> %s: %v", h.id, from, to, err)
		return
	}
	m.logger.Warn("handle #%d %s -> %s", h.id, from, to)
}

func (m *Manager) sqlLogger(req *Request) logger.Logger {
	if len(req.Fields) == 0 {
		return m.logger
	}
	return m.logger.WithFields(req.Fields)
}

// Logger returns the manager logger, for middleware.
func (m *Manager) Logger() logger.Logger {
	return m.logger
}

// Close releases the handle and shuts middleware down. Later calls are no-ops.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed.Swap(true) {
		return nil
	}

	var errs []error
	if h := m.current.Load(); h != nil {
		h.transition(StateClosed, StateConnecting, StateOpen)
		if err := h.release(); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(m.mws) - 1; i >= 0; i-- {
		if err := m.mws[i].Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", m.mws[i].Name(), err))
		}
	}
	return errors.Join(errs...)
}
