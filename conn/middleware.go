package conn

import "context"

// Component is the lifecycle part of a middleware.
type Component interface {
	Name() string
	Init(m *Manager) error
	Shutdown() error
}

// Request is one ExecuteQuery call travelling through the middleware chain.
// Middleware may wrap OnRow and add log fields; SQL is opaque text.
type Request struct {
	SQL    string
	OnRow  RowHandler
	Fields map[string]any
}

// WithField records a log field for the statement.
func (r *Request) WithField(key string, value any) {
	if r.Fields == nil {
		r.Fields = make(map[string]any)
	}
	r.Fields[key] = value
}

// QueryFunc is the function type for the next step in the middleware chain.
type QueryFunc func(ctx context.Context, req *Request) (int64, error)

// Middleware intercepts queries. The first registered middleware is the outermost.
type Middleware interface {
	Component
	Process(ctx context.Context, req *Request, next QueryFunc) (int64, error)
}

func buildChain(final QueryFunc, mws []Middleware) QueryFunc {
	next := final
	for i := len(mws) - 1; i >= 0; i-- {
		mw, inner := mws[i], next
		next = func(ctx context.Context, req *Request) (int64, error) {
			return mw.Process(ctx, req, inner)
		}
	}
	return next
}
