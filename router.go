package bind

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Router is the central type that holds routes, middleware, and configuration.
// It implements http.Handler.
type Router struct {
	mux        *http.ServeMux
	middleware []Middleware
	routes     []routeInfo
	endpoints  []*Endpoint

	title   string
	version string

	servers  []Server
	tagDescs map[string]string

	config       Config
	configSet    bool
	logger       *zap.Logger
	services     ServiceProvider
	validator    Validator
	errorHandler ErrorHandler

	encoders []Encoder
	decoders []Decoder
	codecs   *codecRegistry

	tracer SpanStarter

	mu sync.Mutex
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithTitle sets the API title (used in OpenAPI spec).
func WithTitle(title string) RouterOption {
	return func(r *Router) {
		r.title = title
	}
}

// WithVersion sets the API version (used in OpenAPI spec).
func WithVersion(version string) RouterOption {
	return func(r *Router) {
		r.version = version
	}
}

// WithValidator sets a global request validator.
func WithValidator(v Validator) RouterOption {
	return func(r *Router) {
		r.validator = v
	}
}

// WithServers sets the OpenAPI servers array.
func WithServers(servers ...Server) RouterOption {
	return func(r *Router) {
		r.servers = servers
	}
}

// WithTagDescriptions sets tag descriptions for the OpenAPI spec.
func WithTagDescriptions(descs map[string]string) RouterOption {
	return func(r *Router) {
		r.tagDescs = descs
	}
}

// ErrorHandler is a custom error response writer.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// WithErrorHandler sets a custom error handler for the router.
func WithErrorHandler(h ErrorHandler) RouterOption {
	return func(r *Router) {
		r.errorHandler = h
	}
}

// WithEncoder registers an additional response encoder.
func WithEncoder(enc Encoder) RouterOption {
	return func(r *Router) {
		r.encoders = append(r.encoders, enc)
	}
}

// WithDecoder registers an additional request body decoder.
func WithDecoder(dec Decoder) RouterOption {
	return func(r *Router) {
		r.decoders = append(r.decoders, dec)
	}
}

// WithTracer sets a tracing hook for the router.
func WithTracer(s SpanStarter) RouterOption {
	return func(r *Router) {
		r.tracer = s
	}
}

// WithConfig replaces the configuration read from the environment.
func WithConfig(cfg Config) RouterOption {
	return func(r *Router) {
		r.config = cfg
		r.configSet = true
	}
}

// WithLogger sets the logger handed to execution contexts.
func WithLogger(l *zap.Logger) RouterOption {
	return func(r *Router) {
		r.logger = l
	}
}

// WithServices sets the provider consulted by inject fields.
func WithServices(sp ServiceProvider) RouterOption {
	return func(r *Router) {
		r.services = sp
	}
}

// New creates a new Router with the given options.
func New(opts ...RouterOption) *Router {
	r := &Router{
		mux: http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if !r.configSet {
		r.config = DefaultConfig()
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	r.codecs = newCodecRegistry(r.encoders, r.decoders)
	return r
}

func (r *Router) env() endpointEnv {
	return endpointEnv{
		config:       r.config,
		codecs:       r.codecs,
		services:     r.services,
		logger:       r.logger,
		tracer:       r.tracer,
		validator:    r.validator,
		errorHandler: r.errorHandler,
	}
}

// Use adds middleware to the router. Middleware is applied in the order added.
func (r *Router) Use(mw ...Middleware) {
	r.middleware = append(r.middleware, mw...)
}

// Chain wraps h with the router middleware.
func (r *Router) Chain(h http.Handler) http.Handler {
	return wrapMiddleware(h, r.middleware)
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.Chain(r.mux).ServeHTTP(w, req)
}

// ListenAndServe starts an HTTP server on the given address.
// It blocks until the context is cancelled, then shuts down gracefully.
func (r *Router) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// RouteEntry describes a registered route. Endpoint is nil for raw routes.
type RouteEntry struct {
	Method   string
	Pattern  string
	Template *PathTemplate
	Handler  http.Handler
	Endpoint *Endpoint
}

// Routes returns the registered routes ordered by pattern, then method.
// Handlers carry group middleware but not router middleware.
func (r *Router) Routes() []RouteEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]RouteEntry, 0, len(r.routes))
	for i, ri := range r.routes {
		e := RouteEntry{
			Method:   ri.method,
			Pattern:  ri.pattern,
			Handler:  ri.handler,
			Endpoint: r.endpoints[i],
		}
		if ri.plan != nil {
			e.Template = ri.plan.Signature().Template
		} else {
			e.Template, _ = ParsePathTemplate(ri.pattern)
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pattern != out[j].Pattern {
			return out[i].Pattern < out[j].Pattern
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// addRoute registers a routeInfo with the router's mux and stores it
// for OpenAPI generation. Global middleware is applied in ServeHTTP;
// only group middleware is baked into ri.handler.
func (r *Router) addRoute(ri *routeInfo, ep *Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pattern := ri.pattern
	if ep != nil {
		pattern = ep.Template().Pattern()
	}
	r.mux.Handle(ri.method+" "+pattern, ri.handler)
	r.routes = append(r.routes, *ri)
	r.endpoints = append(r.endpoints, ep)
}
