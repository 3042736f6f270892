package adapters

import (
	"github.com/labstack/echo/v4"

	"github.com/bjaus/bind"
)

// EchoPath converts a route template to echo syntax. Echo names its single
// wildcard "*".
func EchoPath(tmpl *bind.PathTemplate) string {
	return convertPattern(tmpl,
		func(name string) string { return ":" + name },
		func(string) string { return "*" },
	)
}

// EchoRoutes is satisfied by *echo.Echo and *echo.Group.
type EchoRoutes interface {
	Add(method, path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

// MountEcho registers every route of r on e.
func MountEcho(e EchoRoutes, r *bind.Router) {
	for _, rt := range r.Routes() {
		tmpl := rt.Template
		h := r.Chain(rt.Handler)
		e.Add(rt.Method, EchoPath(tmpl), func(c echo.Context) error {
			serve(h, tmpl, c.Response(), c.Request(), func(p bind.PathParam) string {
				if p.Wildcard {
					return c.Param("*")
				}
				return c.Param(p.Name)
			})
			return nil
		})
	}
}
