package dialect

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"sort"
	"sync"
)

// Dialect describes one database target: which database/sql driver serves it,
// how its connection string is assembled and which errors mean the connection
// itself is gone (as opposed to a failed statement).
type Dialect interface {
	// Name is the key the dialect is registered under
	Name() string
	// Driver is the database/sql driver name
	Driver() string
	// Quote wraps an identifier in the dialect's quotes
	Quote(name string) string
	// DSN builds a connection string from named parameters
	DSN(params map[string]string) (string, error)
	// ConnLost reports whether err means the connection was closed by the peer or broken
	ConnLost(err error) bool
}

var (
	mu       sync.RWMutex
	dialects = make(map[string]Dialect)
)

// Register registers a dialect under its name
func Register(d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialects[d.Name()] = d
}

// Get retrieves a registered dialect by name
func Get(name string) (Dialect, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := dialects[name]
	return d, ok
}

// Names returns the registered dialect names, sorted
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// brokenConn covers the driver independent signs of a dead connection.
func brokenConn(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
