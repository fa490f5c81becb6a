// Package transport is the boundary between the connection manager and a
// database client. A Transport dials Sessions; a Session runs one statement at a
// time and streams its rows; an Observer hears about the session ending or
// failing outside of a statement.
package transport

import "context"

// Row maps column names to values. Values are one of string, int64, float64,
// decimal.Decimal, bool, time.Time, []byte or nil.
type Row map[string]any

// RowFunc receives each row in arrival order. Returning an error stops the
// statement.
type RowFunc func(row Row) error

// Observer receives asynchronous lifecycle events of a session.
type Observer interface {
	// Ended is called when the peer closed the connection.
	Ended()
	// Failed is called when the connection broke with err.
	Failed(err error)
}

// Transport establishes sessions.
type Transport interface {
	// Connect blocks until the session is usable or failed. obs stays attached
	// to the returned session for its whole life.
	Connect(ctx context.Context, obs Observer) (Session, error)
}

// Session is one live connection.
type Session interface {
	// Query runs text and calls onRow for every row, returning the row count.
	Query(ctx context.Context, text string, onRow RowFunc) (int64, error)
	// Cancel aborts the statement in flight, if any.
	Cancel()
	// Close releases the connection. Calling it again is a no-op.
	Close() error
}
