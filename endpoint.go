package bind

import (
	"context"
	"net/http"
	"reflect"

	"go.uber.org/zap"
)

// endpointEnv is the router state an endpoint is compiled against.
type endpointEnv struct {
	config       Config
	codecs       *codecRegistry
	services     ServiceProvider
	logger       *zap.Logger
	tracer       SpanStarter
	validator    Validator
	errorHandler ErrorHandler
}

func defaultEndpointEnv() endpointEnv {
	return endpointEnv{
		config: DefaultConfig(),
		codecs: newCodecRegistry(nil, nil),
		logger: zap.NewNop(),
	}
}

// Endpoint is a compiled typed handler. It is a plain http.Handler, served
// by the Router and mountable on other routers through the adapters.
type Endpoint struct {
	method   string
	plan     *Plan
	response *ResponseSpec
	guards   []Guard
	env      endpointEnv
	call     func(ec *ExecutionContext, values Values) (any, error)
}

// NewEndpoint compiles h outside of a Router, with the default
// configuration. Configuration errors are returned.
func NewEndpoint[Req, Resp any](method, pattern string, h Handler[Req, Resp], opts ...RouteOption) (*Endpoint, error) {
	ri := &routeInfo{
		method:   method,
		pattern:  pattern,
		reqType:  reflect.TypeFor[Req](),
		respType: reflect.TypeFor[Resp](),
	}
	for _, opt := range opts {
		opt(ri)
	}
	return newEndpoint(ri, h, defaultEndpointEnv())
}

func newEndpoint[Req, Resp any](ri *routeInfo, h Handler[Req, Resp], env endpointEnv) (*Endpoint, error) {
	opts := append(env.config.CompileOptions(), withCodecs(env.codecs))
	plan, err := Compile(ri.reqType, ri.pattern, opts...)
	if err != nil {
		return nil, err
	}

	if ri.status == 0 {
		if derefType(ri.respType) == voidType {
			ri.status = http.StatusNoContent
		} else {
			ri.status = http.StatusOK
		}
	}
	schemas := ri.responses
	if len(schemas) == 0 {
		base := derefType(ri.respType)
		switch {
		case base == replyType:
			schemas = map[int]reflect.Type{AnyStatus: nil}
		case reflect.PointerTo(base).Implements(statusCoderType):
			// The value picks its own status.
			schemas = map[int]reflect.Type{AnyStatus: base}
		default:
			schemas = map[int]reflect.Type{ri.status: base}
		}
	}
	model := NewResponseModel(ri.respType, schemas, env.codecs, env.config.ValidationStatus)
	ri.plan = plan
	ri.model = model

	return &Endpoint{
		method: ri.method,
		plan:   plan,
		response: &ResponseSpec{
			Model:         model,
			DefaultStatus: ri.status,
			Options:       ri.serialize,
		},
		guards: ri.guards,
		env:    env,
		call: func(ec *ExecutionContext, values Values) (any, error) {
			req := new(Req)
			if err := plan.Bind(values, req); err != nil {
				return nil, err
			}
			if sv, ok := any(req).(SelfValidator); ok {
				if err := sv.Validate(); err != nil {
					return nil, asValidationError(err, env.config.ValidationStatus)
				}
			}
			if env.validator != nil {
				if err := env.validator.Validate(req); err != nil {
					return nil, asValidationError(err, env.config.ValidationStatus)
				}
			}
			resp, err := h(ec.Context(), req)
			if err != nil {
				return nil, err
			}
			return resp, nil
		},
	}, nil
}

// Method returns the HTTP method the endpoint was registered for.
func (e *Endpoint) Method() string { return e.method }

// Plan returns the compiled resolution plan.
func (e *Endpoint) Plan() *Plan { return e.plan }

// Response returns the response specification.
func (e *Endpoint) Response() *ResponseSpec { return e.response }

// Template returns the parsed route pattern.
func (e *Endpoint) Template() *PathTemplate { return e.plan.Signature().Template }

// ServeHTTP resolves the request, runs the handler and writes its result.
// Path values are read through r.PathValue.
func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn := NewConnection(r, WithBodyLimits(e.env.config.MaxBodyBytes, e.env.config.MultipartMemory))
	ec := NewExecutionContext(conn, e.env.services, e.env.logger)
	e.Serve(ec, w)
}

// Serve handles one request on an existing ExecutionContext.
func (e *Endpoint) Serve(ec *ExecutionContext, w http.ResponseWriter) {
	tmpl := e.Template()
	if !tmpl.Match(ec.Connection().PathParam) {
		e.fail(ec, w, Error(http.StatusNotFound, http.StatusText(http.StatusNotFound)))
		return
	}
	attrs := map[string]string{
		"http.method": ec.Connection().Method(),
		"http.route":  tmpl.String(),
	}

	if err := runGuards(ec, e.guards); err != nil {
		e.fail(ec, w, err)
		return
	}

	ctx, end := startSpan(ec.Context(), e.env.tracer, "bind.resolve", attrs)
	ec.WithContext(ctx)
	res, err := e.plan.ResolveDetailed(ec)
	end()
	if err != nil {
		if ce := ec.Logger().Check(zap.DebugLevel, "request resolution failed"); ce != nil {
			ce.Write(zap.Error(err), zap.String("raw", res.Dump()))
		}
		e.fail(ec, w, err)
		return
	}

	value, err := e.call(ec, res.Values)
	if err != nil {
		e.fail(ec, w, err)
		return
	}

	ctx, end = startSpan(ec.Context(), e.env.tracer, "bind.respond", attrs)
	ec.WithContext(ctx)
	wr, err := e.response.Resolve(ec, value)
	end()
	if err != nil {
		e.fail(ec, w, err)
		return
	}
	wr.Write(ec, w)

	if ec.Tasks().Len() > 0 {
		//nolint:errcheck,gosec // flushing is best-effort
		http.NewResponseController(w).Flush()
		ec.Tasks().run(context.WithoutCancel(ec.Context()), ec.Logger())
	}
}

func (e *Endpoint) fail(ec *ExecutionContext, w http.ResponseWriter, err error) {
	status := ErrorStatus(err)
	if status >= http.StatusInternalServerError {
		ec.Logger().Error("request failed", zap.Error(err), zap.Int("status", status))
	}

	ec.Response().apply(w)
	if e.env.errorHandler != nil {
		e.env.errorHandler(w, ec.Connection().Request(), err)
		return
	}
	writeErrorResponse(w, err)
}
