package bind

import (
	"net/http"
	"reflect"

	"github.com/cockroachdb/errors"
)

// compileConfig holds the settings a plan is compiled with.
type compileConfig struct {
	codecs           *codecRegistry
	mediaPolicy      MediaTypePolicy
	mediaPriority    []string
	readFile         fileReader
	fileConcurrency  int
	validationStatus int
	forceBodyGroup   bool
}

func newCompileConfig(opts []CompileOption) *compileConfig {
	cfg := &compileConfig{
		readFile:         readUpload,
		fileConcurrency:  DefaultConfig().FileReadConcurrency,
		validationStatus: http.StatusUnprocessableEntity,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.codecs == nil {
		cfg.codecs = newCodecRegistry(nil, nil)
	}
	return cfg
}

// CompileOption configures Compile.
type CompileOption func(*compileConfig)

// WithDecoders registers payload decoders in addition to JSON, XML and YAML.
func WithDecoders(decs ...Decoder) CompileOption {
	return func(c *compileConfig) {
		c.codecs = newCodecRegistry(nil, decs)
	}
}

// withCodecs shares a router's codec registry.
func withCodecs(cr *codecRegistry) CompileOption {
	return func(c *compileConfig) {
		c.codecs = cr
	}
}

// WithMediaTypePolicy sets how payload groups with mixed media types pick
// one. priority is consulted by MediaTypePriority.
func WithMediaTypePolicy(p MediaTypePolicy, priority ...string) CompileOption {
	return func(c *compileConfig) {
		c.mediaPolicy = p
		c.mediaPriority = priority
	}
}

// WithFileConcurrency bounds concurrent reads of a multi-file field.
// Zero or less means unbounded.
func WithFileConcurrency(n int) CompileOption {
	return func(c *compileConfig) {
		c.fileConcurrency = n
	}
}

// WithValidationStatus sets the status of validation failures that are not
// caused by a malformed payload.
func WithValidationStatus(code int) CompileOption {
	return func(c *compileConfig) {
		c.validationStatus = code
	}
}

// Plan is the compiled resolver graph of a request type. A Plan is
// immutable and safe for concurrent use.
type Plan struct {
	sig              *Signature
	body             Resolver
	resolvers        []Resolver
	mediaType        string
	validationStatus int
}

// Compile inspects reqType against the route pattern and builds its
// resolver graph. Every failure is a *ConfigurationError.
func Compile(reqType reflect.Type, pattern string, opts ...CompileOption) (*Plan, error) {
	cfg := newCompileConfig(opts)

	tmpl, err := ParsePathTemplate(pattern)
	if err != nil {
		return nil, &ConfigurationError{Type: reqType, Reason: err.Error()}
	}
	sig, err := Inspect(reqType, tmpl)
	if err != nil {
		return nil, err
	}

	a := assemble(sig, cfg)
	return &Plan{
		sig:              sig,
		body:             a.body,
		resolvers:        a.resolvers,
		mediaType:        a.mediaType,
		validationStatus: cfg.validationStatus,
	}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(reqType reflect.Type, pattern string, opts ...CompileOption) *Plan {
	p, err := Compile(reqType, pattern, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// Signature returns the descriptor graph the plan was built from.
func (p *Plan) Signature() *Signature { return p.sig }

// MediaType returns the media type chosen for the payload, or "" when the
// request type reads no payload.
func (p *Plan) MediaType() string { return p.mediaType }

// ResolveDetailed runs the resolver graph against one request. The payload
// resolves first; when it reports errors nothing else is resolved. Field
// errors are returned as one *RequestValidationError. Other failures
// (ambient state, unsupported media type, oversized payload) are returned
// as is. The Resolution is returned in every case for diagnostics.
func (p *Plan) ResolveDetailed(ec *ExecutionContext) (*Resolution, error) {
	acc := newResult()

	if p.body != nil {
		res, err := p.body.Resolve(ec)
		acc.merge(res)
		if err != nil {
			return newResolution(acc), err
		}
		if len(res.Errors) > 0 {
			return p.fail(acc)
		}
	}

	var hard error
	for _, r := range p.resolvers {
		res, err := r.Resolve(ec)
		acc.merge(res)
		if err != nil && hard == nil {
			hard = err
		}
	}
	if hard != nil {
		return newResolution(acc), hard
	}
	if len(acc.Errors) > 0 {
		return p.fail(acc)
	}
	return newResolution(acc), nil
}

func (p *Plan) fail(acc ResolverResult) (*Resolution, error) {
	return newResolution(acc), &RequestValidationError{Errors: acc.Errors, Status: p.validationStatus}
}

// Resolve returns the resolved values keyed by field name.
func (p *Plan) Resolve(ec *ExecutionContext) (Values, error) {
	res, err := p.ResolveDetailed(ec)
	if err != nil {
		return nil, err
	}
	return res.Values, nil
}

// Bind copies resolved values into target, a pointer to the request type.
func (p *Plan) Bind(values Values, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Type() != p.sig.Type {
		return errors.Newf("bind target must be a non-nil *%s, got %T", p.sig.Type, target)
	}
	rv = rv.Elem()

	for _, group := range [][]*FieldDescriptor{p.sig.Fields, p.sig.System} {
		for _, f := range group {
			v, ok := values[f.Name]
			if !ok {
				continue
			}
			if err := assign(rv.FieldByIndex(f.Index), v); err != nil {
				return errors.Wrapf(err, "bind %s", f.Name)
			}
		}
	}
	return nil
}
