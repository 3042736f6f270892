package bind

import (
	"context"
	"net/http"
	"reflect"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

type systemKind int

const (
	sysContext systemKind = iota
	sysExecution
	sysRequest
	sysResponse
	sysTasks
	sysServices
	sysLogger
	sysInject
)

// systemTypes are field types filled from per-request state instead of
// the wire.
var systemTypes = map[reflect.Type]systemKind{
	reflect.TypeFor[context.Context]():   sysContext,
	reflect.TypeFor[*ExecutionContext](): sysExecution,
	reflect.TypeFor[*http.Request]():     sysRequest,
	reflect.TypeFor[*Response]():         sysResponse,
	reflect.TypeFor[*BackgroundTasks]():  sysTasks,
	reflect.TypeFor[ServiceProvider]():   sysServices,
	reflect.TypeFor[*zap.Logger]():       sysLogger,
}

// systemKindOf reports whether f is a system field. Fields tagged `inject`
// are resolved through the ServiceProvider.
func systemKindOf(f reflect.StructField) (systemKind, bool) {
	if _, ok := f.Tag.Lookup("inject"); ok {
		return sysInject, true
	}
	kind, ok := systemTypes[f.Type]
	return kind, ok
}

type systemResolver struct {
	field *FieldDescriptor
	kind  systemKind
}

func newSystemResolver(f *FieldDescriptor, _ *compileConfig) Resolver {
	return &systemResolver{field: f, kind: f.system}
}

func (s *systemResolver) Field() *FieldDescriptor { return s.field }

func (s *systemResolver) Resolve(ec *ExecutionContext) (ResolverResult, error) {
	res := newResult()
	v, err := s.value(ec)
	if err != nil {
		return res, &AmbientStateError{Field: s.field.Name, Err: err}
	}
	res.Data[s.field.Name] = v
	return res, nil
}

func (s *systemResolver) value(ec *ExecutionContext) (any, error) {
	switch s.kind {
	case sysContext:
		return ec.Context(), nil
	case sysExecution:
		return ec, nil
	case sysRequest:
		if r := ec.Connection().Request(); r != nil {
			return r, nil
		}
		return nil, errors.Wrap(ErrAmbientState, "no http request")
	case sysResponse:
		return ec.Response(), nil
	case sysTasks:
		if t := ec.Tasks(); t != nil {
			return t, nil
		}
		return nil, errors.Wrap(ErrAmbientState, "no background tasks")
	case sysServices:
		if sp := ec.Services(); sp != nil {
			return sp, nil
		}
		return nil, errors.Wrap(ErrAmbientState, "no service provider")
	case sysLogger:
		return ec.Logger(), nil
	case sysInject:
		sp := ec.Services()
		if sp == nil {
			return nil, errors.Wrap(ErrAmbientState, "no service provider")
		}
		return sp.Get(s.field.Type)
	default:
		return nil, errors.Newf("unknown system kind %d", s.kind)
	}
}
