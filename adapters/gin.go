package adapters

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bjaus/bind"
)

// GinPath converts a route template to gin syntax: {id} becomes :id and a
// trailing wildcard becomes *name.
func GinPath(tmpl *bind.PathTemplate) string {
	return convertPattern(tmpl,
		func(name string) string { return ":" + name },
		func(name string) string { return "*" + name },
	)
}

// MountGin registers every route of r on g. Router middleware wraps each
// route; gin middleware on g runs first.
func MountGin(g gin.IRoutes, r *bind.Router) {
	for _, rt := range r.Routes() {
		tmpl := rt.Template
		h := r.Chain(rt.Handler)
		g.Handle(rt.Method, GinPath(tmpl), func(c *gin.Context) {
			serve(h, tmpl, c.Writer, c.Request, func(p bind.PathParam) string {
				v := c.Param(p.Name)
				if p.Wildcard {
					v = strings.TrimPrefix(v, "/")
				}
				return v
			})
		})
	}
}
