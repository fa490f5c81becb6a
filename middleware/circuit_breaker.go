package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shrek82/projectdb/conn"
	"github.com/shrek82/projectdb/logger"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// OpenError is returned while the breaker rejects queries.
type OpenError struct {
	Target  string
	RetryIn time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("%s: %v, retry in %v", e.Target, ErrCircuitOpen, e.RetryIn.Round(time.Millisecond))
}

func (e *OpenError) Is(target error) bool { return target == ErrCircuitOpen }

type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// CircuitBreakerMiddleware stops sending queries to a target that failed to
// connect Threshold times in a row. After ResetTimeout one probe query is let
// through; its outcome closes or reopens the breaker. Queries are never retried.
type CircuitBreakerMiddleware struct {
	Threshold    int
	ResetTimeout time.Duration
	// Trip reports whether err counts as a failure. Defaults to connection failures.
	Trip func(err error) bool

	target string
	log    logger.Logger

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool
}

func NewCircuitBreaker(threshold int, resetTimeout time.Duration) *CircuitBreakerMiddleware {
	return &CircuitBreakerMiddleware{
		Threshold:    threshold,
		ResetTimeout: resetTimeout,
		Trip: func(err error) bool {
			return errors.Is(err, conn.ErrConnectionFailed)
		},
		log: logger.NewNopLogger(),
	}
}

func (m *CircuitBreakerMiddleware) Name() string {
	return "CircuitBreaker"
}

func (m *CircuitBreakerMiddleware) Init(mgr *conn.Manager) error {
	m.target = mgr.Config().Dialect
	m.log = mgr.Logger()
	return nil
}

func (m *CircuitBreakerMiddleware) Shutdown() error {
	return nil
}

// State returns the current breaker state.
func (m *CircuitBreakerMiddleware) State() BreakerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *CircuitBreakerMiddleware) Process(ctx context.Context, req *conn.Request, next conn.QueryFunc) (int64, error) {
	if err := m.admit(); err != nil {
		return 0, err
	}
	n, err := next(ctx, req)
	m.record(err != nil && m.Trip(err))
	return n, err
}

// admit decides whether a query may reach the manager.
func (m *CircuitBreakerMiddleware) admit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case BreakerOpen:
		if wait := m.ResetTimeout - time.Since(m.openedAt); wait > 0 {
			return &OpenError{Target: m.target, RetryIn: wait}
		}
		m.setState(BreakerHalfOpen)
		m.probing = true
	case BreakerHalfOpen:
		if m.probing {
			return &OpenError{Target: m.target}
		}
		m.probing = true
	}
	return nil
}

func (m *CircuitBreakerMiddleware) record(failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probing = false
	if !failed {
		m.failures = 0
		if m.state != BreakerClosed {
			m.setState(BreakerClosed)
		}
		return
	}

	m.failures++
	if m.state == BreakerHalfOpen || m.failures >= m.Threshold {
		m.openedAt = time.Now()
		if m.state != BreakerOpen {
			m.setState(BreakerOpen)
		}
	}
}

// setState must be called with mu held.
func (m *CircuitBreakerMiddleware) setState(s BreakerState) {
	m.log.Warn("circuit breaker %s: %s -> %s after %d failures", m.target, m.state, s, m.failures)
	m.state = s
}
