package bind

import (
	"reflect"
	"sync"

	"github.com/cockroachdb/errors"
)

// ServiceProvider resolves injected services by type.
type ServiceProvider interface {
	Get(t reflect.Type) (any, error)
}

// Services is a minimal type-keyed ServiceProvider.
type Services struct {
	mu       sync.RWMutex
	services map[reflect.Type]any
}

// NewServices creates an empty registry.
func NewServices() *Services {
	return &Services{services: make(map[reflect.Type]any)}
}

// Provide registers v under the type T.
func Provide[T any](s *Services, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[reflect.TypeFor[T]()] = v
}

// Get returns the service registered for t.
func (s *Services) Get(t reflect.Type) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.services[t]
	if !ok {
		return nil, errors.Wrapf(ErrServiceNotFound, "%s", t)
	}
	return v, nil
}

// Service fetches a typed service from sp.
func Service[T any](sp ServiceProvider) (T, error) {
	var zero T
	if sp == nil {
		return zero, errors.Wrap(ErrAmbientState, "no service provider")
	}
	v, err := sp.Get(reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, errors.Newf("service for %s has type %T", reflect.TypeFor[T](), v)
	}
	return out, nil
}
