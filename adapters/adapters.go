// Package adapters mounts the routes of a bind.Router on other HTTP
// frameworks. Path parameters matched by the host framework are copied onto
// the request so endpoints and raw handlers read them as usual.
package adapters

import (
	"net/http"
	"strings"

	"github.com/bjaus/bind"
)

// convertPattern rewrites a template into a host framework's syntax.
func convertPattern(tmpl *bind.PathTemplate, param, wildcard func(name string) string) string {
	out := strings.ReplaceAll(tmpl.Pattern(), "{$}", "")
	for _, p := range tmpl.Params() {
		if p.Wildcard {
			out = strings.Replace(out, "{"+p.Name+"...}", wildcard(p.Name), 1)
			continue
		}
		out = strings.Replace(out, "{"+p.Name+"}", param(p.Name), 1)
	}
	return out
}

// serve sets the path values read from lookup on r and serves it through h.
func serve(h http.Handler, tmpl *bind.PathTemplate, w http.ResponseWriter, r *http.Request, lookup func(p bind.PathParam) string) {
	for _, p := range tmpl.Params() {
		r.SetPathValue(p.Name, lookup(p))
	}
	h.ServeHTTP(w, r)
}
