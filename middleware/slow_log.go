package middleware

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/shrek82/projectdb/conn"
	"github.com/shrek82/projectdb/logger"
)

// SlowLogMiddleware logs statements that run longer than Threshold at warn
// level, together with the time until the first row arrived.
type SlowLogMiddleware struct {
	Threshold time.Duration
	// LogPath appends entries to a file; empty uses the manager logger.
	LogPath string

	logger logger.Logger
	file   *os.File
	count  atomic.Int64
}

func NewSlowLog(threshold time.Duration, logPath string) *SlowLogMiddleware {
	return &SlowLogMiddleware{Threshold: threshold, LogPath: logPath}
}

// SetOutput sends entries to w instead of the file or manager logger.
func (m *SlowLogMiddleware) SetOutput(w io.Writer) {
	m.logger = warnLogger(w)
}

func warnLogger(w io.Writer) logger.Logger {
	l := logger.NewStdLogger()
	l.SetOutput(w)
	l.SetLevel(logger.LogLevelWarn)
	return l
}

func (m *SlowLogMiddleware) Name() string {
	return "SlowLog"
}

func (m *SlowLogMiddleware) Init(mgr *conn.Manager) error {
	switch {
	case m.logger != nil:
	case m.LogPath != "":
		f, err := os.OpenFile(m.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open slow log file: %w", err)
		}
		m.file = f
		m.logger = warnLogger(f)
	default:
		m.logger = mgr.Logger()
	}
	return nil
}

func (m *SlowLogMiddleware) Shutdown() error {
	if m.file == nil {
		return nil
	}
	err := m.file.Close()
	m.file = nil
	return err
}

// Count returns the number of slow statements seen.
func (m *SlowLogMiddleware) Count() int64 {
	return m.count.Load()
}

func (m *SlowLogMiddleware) Process(ctx context.Context, req *conn.Request, next conn.QueryFunc) (int64, error) {
	start := time.Now()
	var firstRow time.Duration
	onRow := req.OnRow
	req.OnRow = func(row conn.Row) error {
		if firstRow == 0 {
			firstRow = time.Since(start)
		}
		return onRow(row)
	}
	n, err := next(ctx, req)
	req.OnRow = onRow

	elapsed := time.Since(start)
	if elapsed < m.Threshold {
		return n, err
	}
	m.count.Add(1)
	l := m.logger
	if len(req.Fields) > 0 {
		l = l.WithFields(req.Fields)
	}
	if err != nil {
		l.Warn("slow sql: duration=%v first_row=%v rows=%d err=%v sql=%s", elapsed, firstRow, n, err, req.SQL)
	} else {
		l.Warn("slow sql: duration=%v first_row=%v rows=%d sql=%s", elapsed, firstRow, n, req.SQL)
	}
	return n, err
}
