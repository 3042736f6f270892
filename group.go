package bind

import "slices"

// Group registers routes under a shared prefix. Its tags are added to each
// route, its guards run before the route's own, and its middleware wraps
// the route handler inside the router middleware.
type Group struct {
	router     *Router
	prefix     string
	middleware []Middleware
	guards     []Guard
	tags       []string
}

// GroupOption configures a Group.
type GroupOption func(*Group)

// WithGroupTags tags every route of the group.
func WithGroupTags(tags ...string) GroupOption {
	return func(g *Group) {
		g.tags = append(g.tags, tags...)
	}
}

// WithGroupMiddleware wraps every route of the group.
func WithGroupMiddleware(mw ...Middleware) GroupOption {
	return func(g *Group) {
		g.middleware = append(g.middleware, mw...)
	}
}

// WithGroupGuards adds guards that run before the guards of each route.
func WithGroupGuards(guards ...Guard) GroupOption {
	return func(g *Group) {
		g.guards = append(g.guards, guards...)
	}
}

// Group creates a route group under prefix.
func (r *Router) Group(prefix string, opts ...GroupOption) *Group {
	g := &Group{router: r, prefix: prefix}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Group creates a nested group. It inherits the prefix, tags, guards and
// middleware of g, which come before its own.
func (g *Group) Group(prefix string, opts ...GroupOption) *Group {
	sub := &Group{
		router:     g.router,
		prefix:     g.prefix + prefix,
		middleware: slices.Clone(g.middleware),
		guards:     slices.Clone(g.guards),
		tags:       slices.Clone(g.tags),
	}
	for _, opt := range opts {
		opt(sub)
	}
	return sub
}

func (g *Group) owner() *Router                { return g.router }
func (g *Group) routePrefix() string           { return g.prefix }
func (g *Group) routeTags() []string           { return g.tags }
func (g *Group) routeGuards() []Guard          { return g.guards }
func (g *Group) routeMiddleware() []Middleware { return g.middleware }
