package bind

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ServeSpec serves the OpenAPI document as JSON at pattern.
func (r *Router) ServeSpec(pattern string) {
	r.serveDocument(pattern, MediaJSON, r.WriteSpec)
}

// ServeSpecYAML serves the OpenAPI document as YAML at pattern.
func (r *Router) ServeSpecYAML(pattern string) {
	r.serveDocument(pattern, "application/yaml", r.WriteSpecYAML)
}

// serveDocument renders the document per request, so routes registered
// later are included. A rendering failure is answered with 500.
func (r *Router) serveDocument(pattern, contentType string, write func(io.Writer) error) {
	r.mux.HandleFunc("GET "+pattern, func(w http.ResponseWriter, req *http.Request) {
		var buf bytes.Buffer
		if err := write(&buf); err != nil {
			r.logger.Error("render openapi document", zap.Error(err), zap.String("path", req.URL.Path))
			writeErrorResponse(w, err)
			return
		}
		w.Header().Set("Content-Type", contentType)
		//nolint:errcheck,gosec // best-effort after WriteHeader
		buf.WriteTo(w)
	})
}

// WriteSpec writes the OpenAPI document as indented JSON.
func (r *Router) WriteSpec(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(r.Spec()), "encode openapi json")
}

// WriteSpecYAML writes the OpenAPI document as YAML.
func (r *Router) WriteSpecYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r.Spec()); err != nil {
		return errors.Wrap(err, "encode openapi yaml")
	}
	return enc.Close()
}
