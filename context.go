package bind

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

type contextKey[T any] struct{}

// SetValue stores a typed value in the request context. For use in middleware.
func SetValue[T any](r *http.Request, val T) *http.Request {
	ctx := context.WithValue(r.Context(), contextKey[T]{}, val)
	return r.WithContext(ctx)
}

// GetValue retrieves a typed value from the request context. For use in handlers.
func GetValue[T any](ctx context.Context) (T, bool) {
	val, ok := ctx.Value(contextKey[T]{}).(T)
	return val, ok
}

// ExecutionContext is the per-request state threaded through resolution,
// guards, the handler and response rendering.
type ExecutionContext struct {
	ctx      context.Context
	conn     Connection
	response *Response
	tasks    *BackgroundTasks
	services ServiceProvider
	logger   *zap.Logger
}

// NewExecutionContext builds the state for one request. services may be nil.
func NewExecutionContext(conn Connection, services ServiceProvider, logger *zap.Logger) *ExecutionContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	ec := &ExecutionContext{
		conn:     conn,
		response: &Response{header: make(http.Header)},
		tasks:    &BackgroundTasks{},
		services: services,
		logger:   logger,
	}
	ec.ctx = context.WithValue(conn.Context(), contextKey[*ExecutionContext]{}, ec)
	return ec
}

// FromContext returns the ExecutionContext of the request ctx belongs to.
func FromContext(ctx context.Context) (*ExecutionContext, bool) {
	return GetValue[*ExecutionContext](ctx)
}

// Context returns the request context carrying this ExecutionContext.
func (ec *ExecutionContext) Context() context.Context { return ec.ctx }

// Connection returns the request connection.
func (ec *ExecutionContext) Connection() Connection { return ec.conn }

// Response returns the response under construction.
func (ec *ExecutionContext) Response() *Response { return ec.response }

// Tasks returns the background tasks of the request.
func (ec *ExecutionContext) Tasks() *BackgroundTasks { return ec.tasks }

// Services returns the service provider, which may be nil.
func (ec *ExecutionContext) Services() ServiceProvider { return ec.services }

// Logger returns the request logger.
func (ec *ExecutionContext) Logger() *zap.Logger { return ec.logger }

// WithContext replaces the request context, keeping the ExecutionContext
// reachable from it.
func (ec *ExecutionContext) WithContext(ctx context.Context) {
	ec.ctx = context.WithValue(ctx, contextKey[*ExecutionContext]{}, ec)
}

// Response is the outbound response under construction. Guards and
// handlers use it to set a status, headers or cookies ahead of the body.
type Response struct {
	status  int
	header  http.Header
	cookies []*http.Cookie
}

// SetStatus sets an explicit status. It takes precedence over declared
// defaults but not over a status returned by the handler.
func (r *Response) SetStatus(code int) { r.status = code }

// Status returns the explicit status, or 0 when none was set.
func (r *Response) Status() int { return r.status }

// Header returns the response headers.
func (r *Response) Header() http.Header { return r.header }

// SetCookie adds a Set-Cookie header.
func (r *Response) SetCookie(c *http.Cookie) { r.cookies = append(r.cookies, c) }

func (r *Response) apply(w http.ResponseWriter) {
	for k, vs := range r.header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	for _, c := range r.cookies {
		http.SetCookie(w, c)
	}
}
