package bind

import (
	"net/http"
	"reflect"
)

// Registrar is the interface accepted by the registration functions.
// Both *Router and *Group implement it.
type Registrar interface {
	owner() *Router
	routePrefix() string
	routeTags() []string
	routeGuards() []Guard
	routeMiddleware() []Middleware
}

func (r *Router) owner() *Router                { return r }
func (r *Router) routePrefix() string           { return "" }
func (r *Router) routeTags() []string           { return nil }
func (r *Router) routeGuards() []Guard          { return nil }
func (r *Router) routeMiddleware() []Middleware { return nil }

// register is the internal generic registration function. It compiles the
// request type against the full route pattern and panics with the
// *ConfigurationError when that fails.
func register[Req, Resp any](reg Registrar, method, pattern string, h Handler[Req, Resp], opts ...RouteOption) {
	ri := &routeInfo{
		method:   method,
		pattern:  reg.routePrefix() + pattern,
		reqType:  reflect.TypeFor[Req](),
		respType: reflect.TypeFor[Resp](),
		guards:   append([]Guard(nil), reg.routeGuards()...),
		tags:     append([]string(nil), reg.routeTags()...),
	}

	for _, opt := range opts {
		opt(ri)
	}

	r := reg.owner()
	ep, err := newEndpoint(ri, h, r.env())
	if err != nil {
		panic(err)
	}

	ri.handler = wrapMiddleware(ep, reg.routeMiddleware())

	r.addRoute(ri, ep)
}

// Get registers a GET handler.
func Get[Req, Resp any](reg Registrar, pattern string, h Handler[Req, Resp], opts ...RouteOption) {
	register(reg, http.MethodGet, pattern, h, opts...)
}

// Post registers a POST handler.
func Post[Req, Resp any](reg Registrar, pattern string, h Handler[Req, Resp], opts ...RouteOption) {
	register(reg, http.MethodPost, pattern, h, opts...)
}

// Put registers a PUT handler.
func Put[Req, Resp any](reg Registrar, pattern string, h Handler[Req, Resp], opts ...RouteOption) {
	register(reg, http.MethodPut, pattern, h, opts...)
}

// Patch registers a PATCH handler.
func Patch[Req, Resp any](reg Registrar, pattern string, h Handler[Req, Resp], opts ...RouteOption) {
	register(reg, http.MethodPatch, pattern, h, opts...)
}

// Delete registers a DELETE handler.
func Delete[Req, Resp any](reg Registrar, pattern string, h Handler[Req, Resp], opts ...RouteOption) {
	register(reg, http.MethodDelete, pattern, h, opts...)
}
