package conn

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionFailed is matched by every *ConnectionError.
	ErrConnectionFailed = errors.New("connection failed")
	// ErrQueryFailed is matched by every *QueryError.
	ErrQueryFailed = errors.New("query failed")
	// ErrBusy is returned under the reject policy while another query holds the connection.
	ErrBusy = errors.New("connection busy")
	// ErrManagerClosed is returned by a manager after Close.
	ErrManagerClosed = errors.New("connection manager closed")
	// ErrUnknownDialect is returned by New for an unregistered dialect.
	ErrUnknownDialect = errors.New("unknown dialect")
)

// ConnectionError is returned when a handle could not reach the open state.
type ConnectionError struct {
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnectionFailed }

// Rows counts the rows handed to the row handler, a failing one included.
// Rows counts the rows delivered before the failure.
type QueryError struct {
	SQL  string
	Rows int64
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed after %d rows: %v", e.Rows, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

func (e *QueryError) Is(target error) bool { return target == ErrQueryFailed }
