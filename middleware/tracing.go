package middleware

import (
	"context"

	"github.com/shrek82/projectdb/conn"
)

type traceKey string

const (
	requestIDKey traceKey = "request_id"
	userIPKey    traceKey = "user_ip"
	traceIDKey   traceKey = "trace_id"
)

// WithRequestID attaches a request id to ctx for the SQL log.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithTraceID attaches a trace id to ctx for the SQL log.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

// WithUserIP attaches the caller address to ctx for the SQL log.
func WithUserIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, userIPKey, ip)
}

// TracingMiddleware copies tracing values from the context into the
// statement's log fields.
type TracingMiddleware struct{}

func NewTracing() *TracingMiddleware {
	return &TracingMiddleware{}
}

func (m *TracingMiddleware) Name() string {
	return "Tracing"
}

func (m *TracingMiddleware) Init(*conn.Manager) error {
	return nil
}

func (m *TracingMiddleware) Shutdown() error {
	return nil
}

func (m *TracingMiddleware) Process(ctx context.Context, req *conn.Request, next conn.QueryFunc) (int64, error) {
	for _, key := range []traceKey{requestIDKey, userIPKey, traceIDKey} {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			req.WithField(string(key), v)
		}
	}
	return next(ctx, req)
}
