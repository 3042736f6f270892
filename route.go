package bind

import (
	"net/http"
	"reflect"
)

// routeInfo holds metadata for a registered route, used for both
// request dispatch and OpenAPI spec generation.
type routeInfo struct {
	method     string
	pattern    string
	summary    string
	desc       string
	tags       []string
	status     int
	deprecated bool
	errors     []int

	operationID string

	responses    map[int]reflect.Type
	responseDesc map[int]string
	serialize    *SerializeOptions
	guards       []Guard

	reqType  reflect.Type
	respType reflect.Type

	plan  *Plan
	model ResponseModel

	handler http.Handler
}

// RouteOption configures a route at registration time.
type RouteOption func(*routeInfo)

// WithStatus sets the default HTTP status code for the response.
func WithStatus(code int) RouteOption {
	return func(ri *routeInfo) {
		ri.status = code
	}
}

// WithSummary sets the OpenAPI summary for the route.
func WithSummary(s string) RouteOption {
	return func(ri *routeInfo) {
		ri.summary = s
	}
}

// WithDescription sets the OpenAPI description for the route.
func WithDescription(d string) RouteOption {
	return func(ri *routeInfo) {
		ri.desc = d
	}
}

// WithTags adds OpenAPI tags to the route.
func WithTags(tags ...string) RouteOption {
	return func(ri *routeInfo) {
		ri.tags = append(ri.tags, tags...)
	}
}

// WithDeprecated marks the route as deprecated in the OpenAPI spec.
func WithDeprecated() RouteOption {
	return func(ri *routeInfo) {
		ri.deprecated = true
	}
}

// WithErrors declares additional HTTP error status codes for the OpenAPI spec.
func WithErrors(codes ...int) RouteOption {
	return func(ri *routeInfo) {
		ri.errors = append(ri.errors, codes...)
	}
}

// WithOperationID sets a custom OpenAPI operationId.
func WithOperationID(id string) RouteOption {
	return func(ri *routeInfo) {
		ri.operationID = id
	}
}

// WithResponse declares the schema of responses with the given status.
// Use AnyStatus for the fallback entry. Values returned with that status
// are converted to T, validated and serialized as T.
func WithResponse[T any](status int, description string) RouteOption {
	return func(ri *routeInfo) {
		if ri.responses == nil {
			ri.responses = make(map[int]reflect.Type)
			ri.responseDesc = make(map[int]string)
		}
		ri.responses[status] = reflect.TypeFor[T]()
		if description != "" {
			ri.responseDesc[status] = description
		}
	}
}

// WithSerializeOptions sets the serialization applied to responses that
// carry no options of their own.
func WithSerializeOptions(opts SerializeOptions) RouteOption {
	return func(ri *routeInfo) {
		ri.serialize = &opts
	}
}

// WithGuards runs guards before the request is resolved.
func WithGuards(guards ...Guard) RouteOption {
	return func(ri *routeInfo) {
		ri.guards = append(ri.guards, guards...)
	}
}
